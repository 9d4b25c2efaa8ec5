// Package integrations provides the HTTP plumbing for package registry clients.
//
// # Overview
//
// The [Client] type wraps an [http.Client] with response caching via
// [cache.Cache], retry with exponential backoff for transient failures, and
// default request headers. Registry-specific clients embed it:
//
//   - [crates]: the Cargo sparse registry index protocol
//
// # Errors
//
// HTTP 404 maps to [ErrNotFound]. Transport failures, 429 and 5xx map to
// [ErrNetwork] wrapped in [cache.RetryableError] so [Client.Cached] retries
// them; other statuses map to [ErrNetwork] without retry.
//
// [crates]: github.com/matzehuels/cargo-upgrade/pkg/integrations/crates
// [cache.Cache]: github.com/matzehuels/cargo-upgrade/pkg/cache.Cache
// [cache.RetryableError]: github.com/matzehuels/cargo-upgrade/pkg/cache.RetryableError
package integrations
