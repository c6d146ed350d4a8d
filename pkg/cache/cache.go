// Package cache provides persistent byte caches for HTTP metadata.
//
// Acquisition sources fetch a lot of small, slowly changing documents:
// release listings, version pages, paginated version APIs. Caching those
// between runs keeps repeated local invocations from hammering the sites.
// Downloaded packages themselves are never stored here; run-scoped
// deduplication of downloads lives in package runcache.
//
// # Backends
//
//   - [FileCache]: one JSON file per key under a local directory (CLI default)
//   - [RedisCache]: shared cache for CI runners, via go-redis
//   - [NullCache]: disables caching (--no-cache)
//
// # Keys
//
// Keys are produced by a [Keyer]. [NewScopedKeyer] prefixes every key so
// several configurations can share one Redis instance.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values with an optional time-to-live.
type Cache interface {
	// Get returns the value for key. The bool is false on a miss or an
	// expired entry.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the backend.
	Close() error
}

// Keyer generates cache keys.
type Keyer interface {
	// HTTPKey returns the key for a cached HTTP document in namespace.
	HTTPKey(namespace, key string) string
}

// DefaultKeyer produces unscoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns a [DefaultKeyer].
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// HTTPKey returns "http:<namespace>:<key>".
func (DefaultKeyer) HTTPKey(namespace, key string) string {
	return "http:" + namespace + ":" + key
}
