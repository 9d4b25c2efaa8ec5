package crates

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matzehuels/cargo-upgrade/pkg/cache"
	uperrors "github.com/matzehuels/cargo-upgrade/pkg/errors"
	"github.com/matzehuels/cargo-upgrade/pkg/integrations"
)

// DefaultIndex is the sparse index of crates.io.
const DefaultIndex = "https://index.crates.io"

// Release is one published version of a crate.
type Release struct {
	Name    string `json:"name"`
	Version string `json:"vers"`
	Yanked  bool   `json:"yanked"`
}

// Config configures a Client.
type Config struct {
	// Index is the crates.io index URL; defaults to DefaultIndex.
	Index string
	// Registries maps alternative registry names to index URLs.
	Registries map[string]string
	// UserAgent overrides the default User-Agent header.
	UserAgent string
	// Timeout overrides the per-request timeout.
	Timeout time.Duration
}

// Client provides access to sparse registry indexes.
// It handles HTTP requests with caching and automatic retries.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	*integrations.Client
	index      string
	registries map[string]string
}

// NewClient creates a sparse index client with the given cache backend.
func NewClient(backend cache.Cache, cacheTTL time.Duration, cfg Config) *Client {
	ua := cfg.UserAgent
	if ua == "" {
		ua = integrations.UserAgent()
	}
	index := cfg.Index
	if index == "" {
		index = DefaultIndex
	}
	c := &Client{
		Client:     integrations.NewClient(backend, "crates:", cacheTTL, map[string]string{"User-Agent": ua}),
		index:      index,
		registries: cfg.Registries,
	}
	c.SetTimeout(cfg.Timeout)
	return c
}

// Releases returns every release of crate in the named registry, yanked
// ones included, in index order.
//
// Returns:
//   - NOT_FOUND if the crate doesn't exist in the index
//   - REGISTRY_UNSUPPORTED for unknown registries or non-sparse indexes
//   - NETWORK_ERROR for HTTP failures (timeout, 5xx, etc.)
func (c *Client) Releases(ctx context.Context, crate, registry string, refresh bool) ([]Release, error) {
	base, err := c.indexURL(registry)
	if err != nil {
		return nil, err
	}
	url := base + "/" + IndexPath(crate)

	var releases []Release
	err = c.Cached(ctx, url, refresh, &releases, func() error {
		return c.fetch(ctx, url, &releases)
	})
	switch {
	case errors.Is(err, integrations.ErrNotFound):
		return nil, uperrors.Wrap(uperrors.ErrCodeNotFound, err,
			"The crate `%s` could not be found in registry index.", crate)
	case err != nil:
		return nil, uperrors.Wrap(uperrors.ErrCodeNetwork, err,
			"Failed to fetch `%s` from %s", crate, base)
	}
	return releases, nil
}

// Versions returns the non-yanked version strings of crate.
func (c *Client) Versions(ctx context.Context, crate, registry string, refresh bool) ([]string, error) {
	releases, err := c.Releases(ctx, crate, registry, refresh)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(releases))
	for _, r := range releases {
		if !r.Yanked {
			out = append(out, r.Version)
		}
	}
	return out, nil
}

func (c *Client) fetch(ctx context.Context, url string, releases *[]Release) error {
	text, err := c.GetText(ctx, url)
	if err != nil {
		return err
	}
	parsed, err := ParseIndexFile(text)
	if err != nil {
		return fmt.Errorf("%s: %w", url, err)
	}
	*releases = parsed
	return nil
}

func (c *Client) indexURL(registry string) (string, error) {
	raw := c.index
	if registry != "" && registry != "crates-io" {
		var ok bool
		raw, ok = c.registries[registry]
		if !ok {
			raw, ok = c.registries[strings.ToLower(registry)]
		}
		if !ok {
			return "", uperrors.New(uperrors.ErrCodeRegistryUnsupported,
				"registry `%s` is not configured", registry)
		}
	}
	return SparseURL(raw)
}

// SparseURL normalizes an index URL from Cargo configuration.
// The "sparse+" scheme prefix is stripped; git indexes are rejected.
func SparseURL(raw string) (string, error) {
	u := strings.TrimSuffix(strings.TrimPrefix(raw, "sparse+"), "/")
	web := strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "http://")
	if !web || strings.HasSuffix(u, ".git") {
		return "", uperrors.New(uperrors.ErrCodeRegistryUnsupported,
			"index `%s` is not a sparse registry index", raw)
	}
	return u, nil
}

// IndexPath returns the path of a crate's file below the index root.
//
//	a       -> 1/a
//	ab      -> 2/ab
//	abc     -> 3/a/abc
//	docopt  -> do/co/docopt
func IndexPath(crate string) string {
	name := strings.ToLower(crate)
	switch len(name) {
	case 0:
		return ""
	case 1:
		return "1/" + name
	case 2:
		return "2/" + name
	case 3:
		return "3/" + name[:1] + "/" + name
	default:
		return name[:2] + "/" + name[2:4] + "/" + name
	}
}

// ParseIndexFile decodes a sparse index file. Blank lines are skipped.
func ParseIndexFile(text string) ([]Release, error) {
	var out []Release
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(strings.TrimSpace(string(b))) == 0 {
			continue
		}
		var r Release
		if err := json.Unmarshal(b, &r); err != nil {
			return nil, fmt.Errorf("index line %d: %w", line, err)
		}
		out = append(out, r)
	}
	return out, sc.Err()
}
