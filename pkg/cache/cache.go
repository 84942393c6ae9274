// Package cache stores raw backend responses keyed by request.
//
// Expansions of the same vertex return the same payload for as long as the
// backend data is unchanged, so the explorer can answer repeated expands
// from a [Cache] instead of the network. Three implementations exist:
//
//   - [NullCache]: caching disabled
//   - [FileCache]: one JSON file per entry under ~/.cache/graphlens
//   - [RedisCache]: a shared Redis instance, for teams pointing several
//     explorers at the same backend
//
// Keys come from a [Keyer] so that different backends never share entries.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry TTL.
// A TTL of 0 means the entry never expires.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Clearer is implemented by caches that can drop every entry they own.
type Clearer interface {
	Clear(ctx context.Context) error
}
