package upgrade

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/cargo-upgrade/pkg/integrations/crates"
	"github.com/matzehuels/cargo-upgrade/pkg/semver"
)

// Registry lists the published versions of a crate. An empty registry name
// means the default registry.
type Registry interface {
	Versions(ctx context.Context, crate, registry string) ([]semver.Version, error)
}

// CratesRegistry adapts a sparse index client to Registry.
type CratesRegistry struct {
	Client *crates.Client
	// Refresh bypasses the HTTP response cache.
	Refresh bool
	Logger  *log.Logger
}

// Versions fetches non-yanked versions. Index records that are not valid
// semantic versions are skipped.
func (r *CratesRegistry) Versions(ctx context.Context, crate, registry string) ([]semver.Version, error) {
	raw, err := r.Client.Versions(ctx, crate, registry, r.Refresh)
	if err != nil {
		return nil, err
	}
	out := make([]semver.Version, 0, len(raw))
	for _, s := range raw {
		v, err := semver.ParseVersion(s)
		if err != nil {
			if r.Logger != nil {
				r.Logger.Debug("skipping index record", "crate", crate, "version", s, "error", err)
			}
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

type versionKey struct {
	crate    string
	registry string
}

// VersionCache memoizes Registry lookups for the lifetime of one run.
// Failed lookups are not cached. It is not safe for concurrent use.
type VersionCache struct {
	registry Registry
	entries  map[versionKey][]semver.Version
	fetches  int
}

// NewVersionCache wraps registry.
func NewVersionCache(registry Registry) *VersionCache {
	return &VersionCache{
		registry: registry,
		entries:  make(map[versionKey][]semver.Version),
	}
}

// Versions returns the cached versions of crate, fetching them on first use.
func (c *VersionCache) Versions(ctx context.Context, crate, registry string) ([]semver.Version, error) {
	key := versionKey{crate: crate, registry: registry}
	if vs, ok := c.entries[key]; ok {
		return vs, nil
	}
	vs, err := c.registry.Versions(ctx, crate, registry)
	if err != nil {
		return nil, err
	}
	c.fetches++
	c.entries[key] = vs
	return vs, nil
}

// Fetches reports how many registry lookups were made.
func (c *VersionCache) Fetches() int { return c.fetches }
