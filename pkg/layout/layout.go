package layout

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/matzehuels/masonry/pkg/core/masonry"
)

// =============================================================================
// Layout - Balanced Columns
// =============================================================================

// Layout is the serialized result of balancing a collection.
type Layout struct {
	ContainerWidth float64 `json:"container_width" bson:"container_width"`
	ColumnWidth    float64 `json:"column_width" bson:"column_width"`
	NumColumns     int     `json:"num_columns" bson:"num_columns"`
	ContentHeight  float64 `json:"content_height" bson:"content_height"`

	// Configuration the layout was computed with.
	MinColumnWidth      float64 `json:"min_column_width,omitempty" bson:"min_column_width,omitempty"`
	MaxColumns          int     `json:"max_columns,omitempty" bson:"max_columns,omitempty"`
	EstimatedCardHeight float64 `json:"estimated_card_height,omitempty" bson:"estimated_card_height,omitempty"`

	Columns []Column `json:"columns" bson:"columns"`
}

// Column is one serialized column.
type Column struct {
	Index  int     `json:"index" bson:"index"`
	Height float64 `json:"height" bson:"height"`
	Items  []Item  `json:"items" bson:"items"`
}

// Item is a photo positioned within its column.
type Item struct {
	Photo  masonry.Photo `json:"photo" bson:"photo"`
	Top    float64       `json:"top" bson:"top"`
	Height float64       `json:"height" bson:"height"`
}

// Len returns the number of items across all columns.
func (l Layout) Len() int {
	n := 0
	for _, c := range l.Columns {
		n += len(c.Items)
	}
	return n
}

// Config returns the layout constants recorded in l, with defaults for
// missing values.
func (l Layout) Config() masonry.Config {
	return masonry.Config{
		MinColumnWidth:      l.MinColumnWidth,
		MaxColumns:          l.MaxColumns,
		EstimatedCardHeight: l.EstimatedCardHeight,
	}.WithDefaults()
}

// Export converts a balance result to the wire format.
func Export(l masonry.Layout, cfg masonry.Config) Layout {
	out := Layout{
		ContainerWidth:      l.ContainerWidth,
		ColumnWidth:         l.ColumnWidth,
		NumColumns:          l.NumColumns,
		ContentHeight:       l.ContentHeight(cfg.EstimatedCardHeight),
		MinColumnWidth:      cfg.MinColumnWidth,
		MaxColumns:          cfg.MaxColumns,
		EstimatedCardHeight: cfg.EstimatedCardHeight,
		Columns:             make([]Column, len(l.Columns)),
	}
	for i, col := range l.Columns {
		out.Columns[i] = Column{
			Index:  i,
			Height: col.Height,
			Items:  exportItems(masonry.Place(col, l.ColumnWidth)),
		}
	}
	return out
}

// Parse converts a serialized layout back to a balance result. Column
// assignment and heights are taken as stored; nothing is rebalanced.
func Parse(l Layout) masonry.Layout {
	out := masonry.Layout{
		Columns:        make([]masonry.Column, len(l.Columns)),
		NumColumns:     l.NumColumns,
		ContainerWidth: l.ContainerWidth,
		ColumnWidth:    l.ColumnWidth,
	}
	for i, col := range l.Columns {
		photos := make([]masonry.Photo, len(col.Items))
		for j, it := range col.Items {
			photos[j] = it.Photo
		}
		out.Columns[i] = masonry.Column{Photos: photos, Height: col.Height}
	}
	return out
}

func exportItems(items []masonry.VisibleItem) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = Item{Photo: it.Item, Top: it.Top, Height: it.Height}
	}
	return out
}

// Validate checks structural consistency.
func (l Layout) Validate() error {
	if l.NumColumns < 1 {
		return fmt.Errorf("layout must have at least one column, got %d", l.NumColumns)
	}
	if len(l.Columns) != l.NumColumns {
		return fmt.Errorf("layout declares %d columns but contains %d", l.NumColumns, len(l.Columns))
	}
	for i, col := range l.Columns {
		if col.Index != i {
			return fmt.Errorf("column %d has index %d", i, col.Index)
		}
	}
	return nil
}

// =============================================================================
// Layout Serialization API
// =============================================================================

// MarshalLayout serializes a Layout to pretty-printed JSON bytes.
func MarshalLayout(l Layout) ([]byte, error) {
	return json.MarshalIndent(l, "", "  ")
}

// UnmarshalLayout deserializes JSON bytes into a Layout and validates it.
func UnmarshalLayout(data []byte) (Layout, error) {
	var l Layout
	if err := json.Unmarshal(data, &l); err != nil {
		return Layout{}, fmt.Errorf("unmarshal layout: %w", err)
	}
	if err := l.Validate(); err != nil {
		return Layout{}, err
	}
	return l, nil
}

// WriteLayoutFile writes a Layout to a JSON file.
func WriteLayoutFile(l Layout, path string) error {
	data, err := MarshalLayout(l)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadLayoutFile reads a Layout from a JSON file.
func ReadLayoutFile(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("read %s: %w", path, err)
	}
	return UnmarshalLayout(data)
}
