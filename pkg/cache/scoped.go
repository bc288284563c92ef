package cache

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation.
// The server scopes its keys so that a Redis instance shared with other
// tools, or with the CLI, never sees colliding entries.
//
// Example usage:
//
//	apiKeyer := NewScopedKeyer(NewDefaultKeyer(), "api:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// LayoutKey generates a prefixed key for layout caching.
func (k *ScopedKeyer) LayoutKey(collectionHash string, opts LayoutKeyOpts) string {
	return k.prefix + k.inner.LayoutKey(collectionHash, opts)
}

// CollectionKey generates a prefixed key for page caching.
func (k *ScopedKeyer) CollectionKey(source string, offset, limit int) string {
	return k.prefix + k.inner.CollectionKey(source, offset, limit)
}
