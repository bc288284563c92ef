package masonry

import "math"

// ColumnCount returns the number of columns for a container of the given
// width. Widths that are not positive (including NaN) count as zero and
// yield one column. The result always lies in [1, cfg.MaxColumns].
func ColumnCount(containerWidth float64, cfg Config) int {
	maxCols := max(cfg.MaxColumns, 1)
	if !(containerWidth > 0) {
		return 1
	}

	candidate := containerWidth / float64(maxCols)
	if candidate >= cfg.MinColumnWidth {
		// containerWidth/candidate is exactly maxCols; dividing again could
		// round down to maxCols-1.
		return maxCols
	}

	// Plain floor keeps every column at least MinColumnWidth wide.
	n := int(math.Floor(containerWidth / cfg.MinColumnWidth))
	return min(max(n, 1), maxCols)
}

// Balance assigns photos to columns using the greedy shortest-column rule.
//
// Photos are visited in input order; each goes to the column with the least
// accumulated height, ties resolved to the lowest index. The column grows by
// the photo's height at containerWidth/numColumns. Every input photo lands in
// exactly one column.
//
// A container width that is not positive is treated as zero: one column whose
// height stays zero. An empty collection yields empty columns.
func Balance(photos []Photo, containerWidth float64, cfg Config) Layout {
	if !(containerWidth > 0) {
		containerWidth = 0
	}
	n := ColumnCount(containerWidth, cfg)
	colWidth := containerWidth / float64(n)

	cols := make([]Column, n)
	for _, p := range photos {
		i := shortest(cols)
		cols[i].Photos = append(cols[i].Photos, p)
		cols[i].Height += p.HeightAt(colWidth)
	}

	return Layout{
		Columns:        cols,
		NumColumns:     n,
		ContainerWidth: containerWidth,
		ColumnWidth:    colWidth,
	}
}

func shortest(cols []Column) int {
	best := 0
	for i := 1; i < len(cols); i++ {
		if cols[i].Height < cols[best].Height {
			best = i
		}
	}
	return best
}
