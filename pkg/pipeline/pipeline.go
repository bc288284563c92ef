// Package pipeline provides the balance → window pipeline shared by the CLI
// and the HTTP API.
//
// By centralizing this logic, the CLI and the server produce identical
// layouts for identical inputs and share one caching strategy.
//
// # Architecture
//
// The pipeline consists of two stages:
//
//  1. Layout: balance the collection into columns (cached)
//  2. Window: select the items near a viewport (cheap, never cached)
//
// Each stage can be run independently or as part of [Runner.Execute].
//
// # Usage
//
//	runner := pipeline.NewRunner(c, nil, logger)
//	opts := pipeline.Options{
//	    Width:          1280,
//	    ViewportHeight: 800,
//	    Buffer:         3,
//	}
//	result, err := runner.Execute(ctx, photos, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Window.Visible())
package pipeline

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/masonry/pkg/cache"
	"github.com/matzehuels/masonry/pkg/core/masonry"
	"github.com/matzehuels/masonry/pkg/errors"
	"github.com/matzehuels/masonry/pkg/layout"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultWidth is the default of the CLI --width flag. Options never
	// substitute it; a zero width balances into one column.
	DefaultWidth = 1280.0

	// DefaultViewportHeight is the default of the CLI --viewport flag.
	DefaultViewportHeight = 800.0

	// DefaultBuffer is the window margin in estimated cards.
	DefaultBuffer = 3
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the pipeline.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Layout options
	Width               float64 `json:"width,omitempty"`
	MinColumnWidth      float64 `json:"min_column_width,omitempty"`
	MaxColumns          int     `json:"max_columns,omitempty"`
	EstimatedCardHeight float64 `json:"estimated_card_height,omitempty"`
	Refresh             bool    `json:"refresh,omitempty"`

	// Window options. Buffer is used as given; zero means no margin.
	ScrollOffset   float64 `json:"scroll_offset,omitempty"`
	ViewportHeight float64 `json:"viewport_height,omitempty"`
	Buffer         int     `json:"buffer,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// CollectionHash is the content hash of the input photos.
	CollectionHash string

	// Layout is the balanced layout.
	Layout layout.Layout

	// Window holds the items near the viewport.
	Window layout.Window

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Photos     int
	Columns    int
	Visible    int
	LayoutTime time.Duration
	WindowTime time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	LayoutHit bool // Whether the layout came from cache
}

// =============================================================================
// Options Methods
// =============================================================================

// SetLayoutDefaults sets default values for layout computation.
// Width is used as given; negative or NaN widths are treated as 0.
func (o *Options) SetLayoutDefaults() {
	if !(o.Width > 0) {
		o.Width = 0
	}
	if o.MinColumnWidth == 0 {
		o.MinColumnWidth = masonry.DefaultMinColumnWidth
	}
	if o.MaxColumns == 0 {
		o.MaxColumns = masonry.DefaultMaxColumns
	}
	if o.EstimatedCardHeight == 0 {
		o.EstimatedCardHeight = masonry.DefaultEstimatedCardHeight
	}
}

// ValidateForLayout validates and sets defaults for layout computation.
func (o *Options) ValidateForLayout() error {
	o.SetLayoutDefaults()
	return o.Config().Validate()
}

// SetWindowDefaults sets default values for windowing.
// A zero viewport height is kept; only the buffer margin is then visible.
func (o *Options) SetWindowDefaults() {
	o.SetLayoutDefaults()
}

// ValidateForWindow validates and sets defaults for windowing.
func (o *Options) ValidateForWindow() error {
	o.SetWindowDefaults()
	if err := o.ValidateForLayout(); err != nil {
		return err
	}
	if o.Buffer < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "buffer must be >= 0, got %d", o.Buffer)
	}
	if o.ViewportHeight < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "viewport_height must be >= 0, got %v", o.ViewportHeight)
	}
	return nil
}

// Config returns the layout constants.
func (o *Options) Config() masonry.Config {
	return masonry.Config{
		MinColumnWidth:      o.MinColumnWidth,
		MaxColumns:          o.MaxColumns,
		EstimatedCardHeight: o.EstimatedCardHeight,
	}
}

// Viewport returns the window request.
func (o *Options) Viewport() masonry.Viewport {
	return masonry.Viewport{
		ScrollOffset: o.ScrollOffset,
		Height:       o.ViewportHeight,
		Buffer:       o.Buffer,
	}
}

// LayoutKeyOpts returns cache key options for layout computation.
// EstimatedCardHeight is left out: it does not affect the balance. The runner
// compares it against the estimate stored in a cached layout and recomputes
// on mismatch.
func (o *Options) LayoutKeyOpts() cache.LayoutKeyOpts {
	return cache.LayoutKeyOpts{
		Width:          o.Width,
		MinColumnWidth: o.MinColumnWidth,
		MaxColumns:     o.MaxColumns,
	}
}
