package masonry

import (
	"math"

	"github.com/matzehuels/masonry/pkg/errors"
)

// Default configuration values, in CSS pixels.
const (
	DefaultMinColumnWidth      = 250.0
	DefaultMaxColumns          = 5
	DefaultEstimatedCardHeight = 300.0
)

// ContentFloorCards is the number of estimated cards the content height is
// floored at.
const ContentFloorCards = 3

// Config holds the layout constants shared by balancing and windowing.
type Config struct {
	// MinColumnWidth is the narrowest a column may become.
	MinColumnWidth float64 `json:"min_column_width" toml:"min_column_width"`

	// MaxColumns caps the column count on wide containers.
	MaxColumns int `json:"max_columns" toml:"max_columns"`

	// EstimatedCardHeight approximates a typical card. It sizes the window
	// buffer and floors the content height.
	EstimatedCardHeight float64 `json:"estimated_card_height" toml:"estimated_card_height"`
}

// DefaultConfig returns the stock layout configuration.
func DefaultConfig() Config {
	return Config{
		MinColumnWidth:      DefaultMinColumnWidth,
		MaxColumns:          DefaultMaxColumns,
		EstimatedCardHeight: DefaultEstimatedCardHeight,
	}
}

// WithDefaults returns c with zero fields replaced by their defaults.
func (c Config) WithDefaults() Config {
	if c.MinColumnWidth == 0 {
		c.MinColumnWidth = DefaultMinColumnWidth
	}
	if c.MaxColumns == 0 {
		c.MaxColumns = DefaultMaxColumns
	}
	if c.EstimatedCardHeight == 0 {
		c.EstimatedCardHeight = DefaultEstimatedCardHeight
	}
	return c
}

// Validate rejects configurations the engine cannot work with. Values are
// never clamped.
func (c Config) Validate() error {
	if c.MaxColumns < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "max_columns must be >= 1, got %d", c.MaxColumns)
	}
	if !(c.MinColumnWidth > 0) || math.IsInf(c.MinColumnWidth, 0) {
		return errors.New(errors.ErrCodeInvalidConfig, "min_column_width must be > 0, got %v", c.MinColumnWidth)
	}
	if !(c.EstimatedCardHeight > 0) || math.IsInf(c.EstimatedCardHeight, 0) {
		return errors.New(errors.ErrCodeInvalidConfig, "estimated_card_height must be > 0, got %v", c.EstimatedCardHeight)
	}
	return nil
}
