package cache

// LayoutKeyOpts are the inputs, besides the collection, that determine a
// balanced layout.
type LayoutKeyOpts struct {
	Width          float64 `json:"width"`
	MinColumnWidth float64 `json:"min_column_width"`
	MaxColumns     int     `json:"max_columns"`
}

// Keyer builds cache keys.
type Keyer interface {
	// LayoutKey returns the key of a layout for a collection hash.
	LayoutKey(collectionHash string, opts LayoutKeyOpts) string

	// CollectionKey returns the key of a fetched page of a source.
	CollectionKey(source string, offset, limit int) string
}

// DefaultKeyer generates unscoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a DefaultKeyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// LayoutKey implements Keyer.
func (DefaultKeyer) LayoutKey(collectionHash string, opts LayoutKeyOpts) string {
	return hashKey("layout", collectionHash, opts)
}

// CollectionKey implements Keyer.
func (DefaultKeyer) CollectionKey(source string, offset, limit int) string {
	return hashKey("collection", source, offset, limit)
}
