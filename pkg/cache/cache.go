// Package cache stores computed layouts so that repeated requests for the
// same collection and geometry skip balancing.
//
// Three backends implement [Cache]:
//
//   - [FileCache]: entries as JSON files under the user cache directory (CLI)
//   - [RedisCache]: a shared Redis instance (server)
//   - [NullCache]: caching disabled
//
// Keys are built by a [Keyer]. [DefaultKeyer] hashes the key options so that
// any change to width or column constraints yields a distinct key;
// [ScopedKeyer] prefixes keys to separate namespaces on a shared backend.
package cache

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// TTLs for cached entries.
const (
	// TTLLayout applies to balanced layouts. Layouts are pure functions of
	// their inputs, so the TTL only bounds storage growth.
	TTLLayout = 7 * 24 * time.Hour

	// TTLCollection applies to fetched photo pages.
	TTLCollection = time.Hour
)

// Cache is a byte-oriented key/value store with expiry.
//
// Get reports a miss as (nil, false, nil); errors are reserved for backend
// failures.
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

// DefaultDir returns the directory used by the CLI file cache:
// $XDG_CACHE_HOME/masonry, or the OS user cache directory.
func DefaultDir() (string, error) {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "masonry"), nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "masonry"), nil
}
