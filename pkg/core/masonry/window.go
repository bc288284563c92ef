package masonry

// Viewport describes the visible region of the scroll container.
type Viewport struct {
	// ScrollOffset is the distance scrolled from the top of the content.
	ScrollOffset float64

	// Height is the visible height of the scroll container.
	Height float64

	// Buffer is the margin above and below the viewport, counted in
	// estimated card heights.
	Buffer int
}

// Band is a half-open vertical interval [Start, End).
type Band struct {
	Start, End float64
}

// Band returns the interval in which items are materialized.
func (v Viewport) Band(estimatedItemHeight float64) Band {
	margin := float64(v.Buffer) * estimatedItemHeight
	return Band{
		Start: v.ScrollOffset - margin,
		End:   v.ScrollOffset + v.Height + margin,
	}
}

// Intersects reports whether [top, top+height) overlaps the band.
// Items without height occupy no space and never overlap.
func (b Band) Intersects(top, height float64) bool {
	return height > 0 && top < b.End && top+height > b.Start
}

// Place positions every photo of the column at the given column width.
// Heights are recomputed from aspect ratios and tops accumulate from zero, so
// Top[i+1] == Top[i]+Height[i] for the whole column.
func Place(col Column, columnWidth float64) []VisibleItem {
	if len(col.Photos) == 0 {
		return nil
	}
	items := make([]VisibleItem, len(col.Photos))
	var top float64
	for i, p := range col.Photos {
		h := p.HeightAt(columnWidth)
		items[i] = VisibleItem{Item: p, Top: top, Height: h}
		top += h
	}
	return items
}

// Window returns the items of col that intersect the viewport band, in column
// order. The result is empty when the column is empty or nothing intersects.
//
// Offsets are recomputed on every call rather than cached, so a window taken
// right after a rebalance is consistent with it.
func Window(col Column, columnWidth float64, vp Viewport, estimatedItemHeight float64) []VisibleItem {
	band := vp.Band(estimatedItemHeight)

	var out []VisibleItem
	var top float64
	for _, p := range col.Photos {
		if top >= band.End {
			break
		}
		h := p.HeightAt(columnWidth)
		if band.Intersects(top, h) {
			out = append(out, VisibleItem{Item: p, Top: top, Height: h})
		}
		top += h
	}
	return out
}

// WindowAll windows every column of the layout.
func WindowAll(l Layout, vp Viewport, estimatedItemHeight float64) [][]VisibleItem {
	out := make([][]VisibleItem, len(l.Columns))
	for i, col := range l.Columns {
		out[i] = Window(col, l.ColumnWidth, vp, estimatedItemHeight)
	}
	return out
}
