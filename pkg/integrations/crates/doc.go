// Package crates reads Cargo registries through the sparse index protocol.
//
// # Overview
//
// Every crate in a sparse index has one file of newline-delimited JSON
// records, one per published version:
//
//	{"name":"docopt","vers":"0.8.3","deps":[...],"cksum":"...","features":{},"yanked":false}
//
// The file lives at a path derived from the lowercased crate name (see
// [IndexPath]).
//
// # Usage
//
//	client := crates.NewClient(backend, 10*time.Minute, crates.Config{})
//	versions, err := client.Versions(ctx, "docopt", "", false)
//
// An empty registry name means crates.io. Other names are looked up in
// [Config.Registries], which maps names to `sparse+https://...` index URLs
// as written in Cargo's own configuration.
//
// # Caching
//
// Index files are cached per index URL and crate through the embedded
// [integrations.Client]. Pass refresh=true to bypass the cache.
//
// # User-Agent
//
// The client sends a User-Agent header as requested by crates.io policy.
package crates
