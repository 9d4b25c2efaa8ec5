// Package cache stores registry responses between cargo-upgrade runs.
//
// Three backends implement [Cache]:
//   - [FileCache]: JSON entries under the user cache directory (default)
//   - [RedisCache]: a shared Redis instance, for CI fleets hitting the same index
//   - [NullCache]: disables caching (--no-cache)
//
// Retry helpers ([Retryable], [RetryWithBackoff]) live here as well because
// they are used by the same fetch-then-store code path in the registry client.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
//
// A miss is reported as (nil, false, nil); errors are reserved for backend
// failures. A ttl of zero means the entry never expires.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
