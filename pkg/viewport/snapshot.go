package viewport

import "github.com/matzehuels/masonry/pkg/core/masonry"

// ColumnView is the renderable state of one column.
type ColumnView struct {
	Index  int
	Height float64
	Items  []masonry.VisibleItem
}

// Snapshot is the renderable state of the coordinator after a handler ran.
// Snapshots are immutable once returned.
type Snapshot struct {
	Columns        []ColumnView
	NumColumns     int
	ContainerWidth float64
	ColumnWidth    float64
	ScrollOffset   float64
	ViewportHeight float64

	// ContentHeight is the tallest column, floored at three estimated cards.
	ContentHeight float64

	// Sentinel is the offset of the end-of-content marker, placed once after
	// all columns.
	Sentinel float64

	// Total is the number of photos in the collection.
	Total int
}

// Visible returns the number of materialized items across all columns.
func (s Snapshot) Visible() int {
	n := 0
	for _, c := range s.Columns {
		n += len(c.Items)
	}
	return n
}

// Find returns the materialized item with the given photo ID.
func (s Snapshot) Find(id string) (masonry.VisibleItem, bool) {
	for _, c := range s.Columns {
		for _, it := range c.Items {
			if it.Item.ID == id {
				return it, true
			}
		}
	}
	return masonry.VisibleItem{}, false
}

// Equal reports whether two snapshots render identically. Scroll offset and
// viewport height are ignored; only what is drawn counts, display fields of
// the photos included.
func (s Snapshot) Equal(o Snapshot) bool {
	if s.NumColumns != o.NumColumns ||
		s.ContainerWidth != o.ContainerWidth ||
		s.ColumnWidth != o.ColumnWidth ||
		s.ContentHeight != o.ContentHeight ||
		s.Sentinel != o.Sentinel ||
		s.Total != o.Total ||
		len(s.Columns) != len(o.Columns) {
		return false
	}
	for i := range s.Columns {
		a, b := s.Columns[i], o.Columns[i]
		if a.Index != b.Index || a.Height != b.Height || len(a.Items) != len(b.Items) {
			return false
		}
		for j := range a.Items {
			x, y := a.Items[j], b.Items[j]
			if x.Top != y.Top || x.Height != y.Height || x.Item != y.Item {
				return false
			}
		}
	}
	return true
}
