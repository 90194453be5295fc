// Package cache provides content-addressed storage for computed layouts and
// rendered artifacts.
//
// Layouts are deterministic for a given graph, option set and seed, so a
// finished run can be stored under a key derived from the hashes of its
// inputs and served again without recomputation.
//
// # Backends
//
//   - [FileCache]: one JSON file per entry under a directory (CLI default)
//   - [RedisCache]: shared cache for multi-instance servers
//   - [NullCache]: caching disabled
//
// # Keys
//
// Keys are produced by a [Keyer]. [DefaultKeyer] hashes its inputs with
// SHA-256; [ScopedKeyer] adds a namespace prefix so that incompatible
// versions never read each other's entries.
package cache

import (
	"context"
	"time"
)

// Default time-to-live values for cached entries.
const (
	TTLLayout = 7 * 24 * time.Hour
	TTLRender = 7 * 24 * time.Hour
)

// Cache stores opaque byte values under string keys.
//
// Get reports a miss as (nil, false, nil); errors are reserved for backend
// failures. A ttl of zero means no expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Clearer is implemented by caches that can drop all of their entries.
type Clearer interface {
	Clear(ctx context.Context) error
}
