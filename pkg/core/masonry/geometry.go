package masonry

// ImageSources holds the URLs of the differently sized renditions of a photo.
// The engine never reads them; they pass through to renderers untouched.
type ImageSources struct {
	Original string `json:"original,omitempty" yaml:"original,omitempty" bson:"original,omitempty"`
	Large    string `json:"large,omitempty" yaml:"large,omitempty" bson:"large,omitempty"`
	Medium   string `json:"medium,omitempty" yaml:"medium,omitempty" bson:"medium,omitempty"`
	Small    string `json:"small,omitempty" yaml:"small,omitempty" bson:"small,omitempty"`
	Tiny     string `json:"tiny,omitempty" yaml:"tiny,omitempty" bson:"tiny,omitempty"`
}

// Photo is a single item of the collection. Width and Height are the
// intrinsic pixel dimensions and must both be greater than zero.
type Photo struct {
	ID     string  `json:"id" yaml:"id" bson:"_id"`
	Width  float64 `json:"width" yaml:"width" bson:"width"`
	Height float64 `json:"height" yaml:"height" bson:"height"`

	Alt          string       `json:"alt,omitempty" yaml:"alt,omitempty" bson:"alt,omitempty"`
	Photographer string       `json:"photographer,omitempty" yaml:"photographer,omitempty" bson:"photographer,omitempty"`
	URL          string       `json:"url,omitempty" yaml:"url,omitempty" bson:"url,omitempty"`
	AvgColor     string       `json:"avg_color,omitempty" yaml:"avg_color,omitempty" bson:"avg_color,omitempty"`
	Src          ImageSources `json:"src,omitzero" yaml:"src,omitempty" bson:"src,omitempty"`
}

// AspectRatio returns Height/Width.
func (p Photo) AspectRatio() float64 { return p.Height / p.Width }

// HeightAt returns the rendered height of the photo scaled to width w.
func (p Photo) HeightAt(w float64) float64 { return p.AspectRatio() * w }

// SameDimensions reports whether p and q share ID and intrinsic size.
// Display fields are ignored.
func (p Photo) SameDimensions(q Photo) bool {
	return p.ID == q.ID && p.Width == q.Width && p.Height == q.Height
}

// Column is an ordered run of photos. Photos are kept in assignment order and
// Height is the sum of their rendered heights at the column width.
//
// Columns are produced fresh by every [Balance] call and never mutated
// afterwards.
type Column struct {
	Photos []Photo
	Height float64
}

// Len returns the number of photos in the column.
func (c Column) Len() int { return len(c.Photos) }

// VisibleItem is a photo positioned within its column.
type VisibleItem struct {
	Item   Photo
	Top    float64
	Height float64
}

// Bottom returns the offset just past the item.
func (v VisibleItem) Bottom() float64 { return v.Top + v.Height }

// CenterY returns the vertical center point of the item.
func (v VisibleItem) CenterY() float64 { return v.Top + v.Height/2 }

// Layout is the result of one balancing pass.
type Layout struct {
	Columns        []Column
	NumColumns     int
	ContainerWidth float64
	ColumnWidth    float64
}

// Len returns the total number of photos across all columns.
func (l Layout) Len() int {
	n := 0
	for _, c := range l.Columns {
		n += len(c.Photos)
	}
	return n
}

// MaxHeight returns the height of the tallest column, or 0 without columns.
func (l Layout) MaxHeight() float64 {
	var h float64
	for _, c := range l.Columns {
		if c.Height > h {
			h = c.Height
		}
	}
	return h
}

// ContentHeight returns the scrollable height of the layout: the tallest
// column, floored at three estimated cards so that an empty or unmeasured
// layout never collapses to zero.
func (l Layout) ContentHeight(estimatedCardHeight float64) float64 {
	return max(l.MaxHeight(), estimatedCardHeight*ContentFloorCards)
}

// ColumnOf returns the index of the column holding the photo with the given
// ID, or -1 if no column does.
func (l Layout) ColumnOf(id string) int {
	for i, c := range l.Columns {
		for _, p := range c.Photos {
			if p.ID == id {
				return i
			}
		}
	}
	return -1
}
