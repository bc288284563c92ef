package layout

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/masonry/pkg/core/masonry"
	"github.com/matzehuels/masonry/pkg/viewport"
)

// Window is the serialized set of materialized items for one viewport.
type Window struct {
	ScrollOffset   float64 `json:"scroll_offset"`
	ViewportHeight float64 `json:"viewport_height"`
	Buffer         int     `json:"buffer"`

	ContainerWidth float64 `json:"container_width"`
	ColumnWidth    float64 `json:"column_width"`
	NumColumns     int     `json:"num_columns"`
	ContentHeight  float64 `json:"content_height"`
	Sentinel       float64 `json:"sentinel"`
	Total          int     `json:"total"`

	Columns []Column `json:"columns"`
}

// Visible returns the number of materialized items.
func (w Window) Visible() int {
	n := 0
	for _, c := range w.Columns {
		n += len(c.Items)
	}
	return n
}

// ExportWindow windows every column of l and converts the result.
func ExportWindow(l masonry.Layout, vp masonry.Viewport, cfg masonry.Config) Window {
	content := l.ContentHeight(cfg.EstimatedCardHeight)
	out := Window{
		ScrollOffset:   vp.ScrollOffset,
		ViewportHeight: vp.Height,
		Buffer:         vp.Buffer,
		ContainerWidth: l.ContainerWidth,
		ColumnWidth:    l.ColumnWidth,
		NumColumns:     l.NumColumns,
		ContentHeight:  content,
		Sentinel:       content,
		Total:          l.Len(),
		Columns:        make([]Column, len(l.Columns)),
	}
	for i, items := range masonry.WindowAll(l, vp, cfg.EstimatedCardHeight) {
		out.Columns[i] = Column{
			Index:  i,
			Height: l.Columns[i].Height,
			Items:  exportItems(items),
		}
	}
	return out
}

// FromSnapshot converts a coordinator snapshot.
func FromSnapshot(s viewport.Snapshot, buffer int) Window {
	out := Window{
		ScrollOffset:   s.ScrollOffset,
		ViewportHeight: s.ViewportHeight,
		Buffer:         buffer,
		ContainerWidth: s.ContainerWidth,
		ColumnWidth:    s.ColumnWidth,
		NumColumns:     s.NumColumns,
		ContentHeight:  s.ContentHeight,
		Sentinel:       s.Sentinel,
		Total:          s.Total,
		Columns:        make([]Column, len(s.Columns)),
	}
	for i, c := range s.Columns {
		out.Columns[i] = Column{Index: c.Index, Height: c.Height, Items: exportItems(c.Items)}
	}
	return out
}

// MarshalWindow serializes a Window to pretty-printed JSON bytes.
func MarshalWindow(w Window) ([]byte, error) {
	return json.MarshalIndent(w, "", "  ")
}

// UnmarshalWindow deserializes JSON bytes into a Window.
func UnmarshalWindow(data []byte) (Window, error) {
	var w Window
	if err := json.Unmarshal(data, &w); err != nil {
		return Window{}, fmt.Errorf("unmarshal window: %w", err)
	}
	return w, nil
}

// WriteWindow writes a Window as JSON to an io.Writer.
func WriteWindow(w Window, out io.Writer) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(w); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// WriteWindowFile writes a Window to a JSON file.
func WriteWindowFile(w Window, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteWindow(w, f)
}
