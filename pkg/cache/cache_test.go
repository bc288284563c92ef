package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	// Get always returns miss
	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit {
		t.Error("NullCache.Get should always return miss")
	}
	if data != nil {
		t.Error("NullCache.Get should return nil data")
	}

	// Set does nothing (no error)
	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}

	// Still a miss after Set
	_, hit, _ = c.Get(ctx, "key")
	if hit {
		t.Error("NullCache should not store data")
	}

	// Delete does nothing (no error)
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestHash(t *testing.T) {
	// Test determinism
	h1 := Hash([]byte("hello"))
	h2 := Hash([]byte("hello"))
	if h1 != h2 {
		t.Error("Hash should be deterministic")
	}

	// Test different inputs produce different hashes
	h3 := Hash([]byte("world"))
	if h1 == h3 {
		t.Error("Different inputs should produce different hashes")
	}

	// Test hash length (SHA-256 produces 64 hex chars)
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}

	j1, err := HashJSON([]string{"a", "b"})
	if err != nil {
		t.Fatalf("HashJSON error: %v", err)
	}
	if j1 != Hash([]byte(`["a","b"]`)) {
		t.Error("HashJSON should hash the JSON encoding")
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	lk1 := k.LayoutKey("hash123", LayoutKeyOpts{Width: 1280, MinColumnWidth: 250, MaxColumns: 5})
	lk2 := k.LayoutKey("hash123", LayoutKeyOpts{Width: 1024, MinColumnWidth: 250, MaxColumns: 5})
	lk3 := k.LayoutKey("hash456", LayoutKeyOpts{Width: 1280, MinColumnWidth: 250, MaxColumns: 5})
	if lk1 == lk2 {
		t.Error("Different widths should produce different keys")
	}
	if lk1 == lk3 {
		t.Error("Different collections should produce different keys")
	}
	if !strings.HasPrefix(lk1, "layout:") {
		t.Errorf("LayoutKey should be prefixed: %s", lk1)
	}
	if lk1 != k.LayoutKey("hash123", LayoutKeyOpts{Width: 1280, MinColumnWidth: 250, MaxColumns: 5}) {
		t.Error("LayoutKey should be deterministic")
	}

	ck1 := k.CollectionKey("photos.json", 0, 30)
	ck2 := k.CollectionKey("photos.json", 30, 30)
	if ck1 == ck2 {
		t.Error("Different offsets should produce different keys")
	}
}

func TestScopedKeyer(t *testing.T) {
	inner := NewDefaultKeyer()
	scoped := NewScopedKeyer(inner, "api:")

	key := scoped.LayoutKey("hash", LayoutKeyOpts{Width: 800})
	if key != "api:"+inner.LayoutKey("hash", LayoutKeyOpts{Width: 800}) {
		t.Errorf("ScopedKeyer LayoutKey unexpected: %s", key)
	}

	ck := scoped.CollectionKey("sqlite://photos.db", 0, 30)
	if !strings.HasPrefix(ck, "api:collection:") {
		t.Errorf("ScopedKeyer CollectionKey should be prefixed: %s", ck)
	}
}

func TestScopedKeyerNilInner(t *testing.T) {
	// Should use DefaultKeyer when inner is nil
	scoped := NewScopedKeyer(nil, "prefix:")
	key := scoped.LayoutKey("hash", LayoutKeyOpts{})
	if key != "prefix:"+NewDefaultKeyer().LayoutKey("hash", LayoutKeyOpts{}) {
		t.Errorf("Unexpected key with nil inner: %s", key)
	}
}

func TestRetryableError(t *testing.T) {
	// Retryable(nil) returns nil
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should return nil")
	}

	// Non-nil error is wrapped
	err := Retryable(ErrUnavailable)
	if err == nil {
		t.Fatal("Retryable should return wrapped error")
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable should return true for wrapped error")
	}

	// Error message is preserved
	if err.Error() != ErrUnavailable.Error() {
		t.Errorf("Error message should be preserved: %s", err.Error())
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Error("errors.Is should see through RetryableError")
	}

	// Non-wrapped errors are not retryable
	if IsRetryable(ErrUnavailable) {
		t.Error("IsRetryable should return false for unwrapped error")
	}
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()
	errPermanent := errors.New("permanent")

	// Success on first try
	calls := 0
	err := RetryWithBackoff(ctx, time.Millisecond, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Errorf("Should succeed: %v", err)
	}
	if calls != 1 {
		t.Errorf("Should call once: %d", calls)
	}

	// Non-retryable error stops immediately
	calls = 0
	err = RetryWithBackoff(ctx, time.Millisecond, func() error {
		calls++
		return errPermanent
	})
	if err != errPermanent {
		t.Errorf("Should return non-retryable error: %v", err)
	}
	if calls != 1 {
		t.Errorf("Should not retry non-retryable error: %d", calls)
	}

	// Retryable error triggers retries
	calls = 0
	err = RetryWithBackoff(ctx, time.Millisecond, func() error {
		calls++
		if calls < 2 {
			return Retryable(ErrUnavailable)
		}
		return nil
	})
	if err != nil {
		t.Errorf("Should succeed after retry: %v", err)
	}
	if calls != 2 {
		t.Errorf("Should retry once: %d", calls)
	}
}

func TestRetryWithBackoffContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	err := RetryWithBackoff(ctx, time.Second, func() error {
		return Retryable(ErrUnavailable)
	})
	if err != context.Canceled {
		t.Errorf("Should return context error: %v", err)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c, err := NewFileCache(filepath.Join(dir, "nested", "cache"))
	require.NoError(t, err)
	defer c.Close()

	_, hit, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, hit)

	require.NoError(t, c.Set(ctx, "layout:a", []byte(`{"columns":[]}`), time.Hour))
	data, hit, err := c.Get(ctx, "layout:a")
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, `{"columns":[]}`, string(data))

	require.NoError(t, c.Delete(ctx, "layout:a"))
	_, hit, err = c.Get(ctx, "layout:a")
	require.NoError(t, err)
	require.False(t, hit)

	require.NoError(t, c.Delete(ctx, "layout:a"), "deleting a missing key is not an error")
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "short", []byte("x"), time.Nanosecond))
	time.Sleep(2 * time.Millisecond)
	_, hit, err := c.Get(ctx, "short")
	require.NoError(t, err)
	require.False(t, hit, "expired entries are misses")
	require.NoFileExists(t, c.path("short"))

	require.NoError(t, c.Set(ctx, "forever", []byte("y"), 0))
	_, hit, err = c.Get(ctx, "forever")
	require.NoError(t, err)
	require.True(t, hit)
}

func TestFileCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	require.NoError(t, err)

	path := c.path("broken")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, hit, err := c.Get(ctx, "broken")
	require.NoError(t, err)
	require.False(t, hit)
	require.NoFileExists(t, path)
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	require.NoError(t, err)

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, c.Set(ctx, k, []byte(k), time.Hour))
	}
	require.NoError(t, c.Clear(ctx))

	for _, k := range []string{"a", "b", "c"} {
		_, hit, err := c.Get(ctx, k)
		require.NoError(t, err)
		require.False(t, hit, "key %s survived Clear", k)
	}
	require.DirExists(t, c.Dir())
}

func TestDefaultDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-cache")
	dir, err := DefaultDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/tmp/xdg-cache", "masonry"), dir)
}

// TestRedisCache runs against a live server named by MASONRY_TEST_REDIS.
func TestRedisCache(t *testing.T) {
	addr := os.Getenv("MASONRY_TEST_REDIS")
	if addr == "" {
		t.Skip("MASONRY_TEST_REDIS not set")
	}
	ctx := context.Background()

	c, err := NewRedisCache(ctx, RedisOptions{Addr: addr, Namespace: "masonry-test:"})
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Clear(ctx))

	_, hit, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, hit)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	data, hit, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, []byte("v"), data)

	require.NoError(t, c.Clear(ctx))
	_, hit, err = c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, hit)
}

func TestNewRedisCacheRequiresAddr(t *testing.T) {
	_, err := NewRedisCache(context.Background(), RedisOptions{})
	require.Error(t, err)
}
