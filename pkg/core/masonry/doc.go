// Package masonry computes balanced multi-column layouts for photo
// collections and the subset of each column that is near the viewport.
//
// # Overview
//
// A masonry layout packs items of varying height into a fixed number of
// equal-width columns so that column heights stay close to each other. This
// package implements the two pure computations at the heart of that:
//
//   - [Balance] assigns photos to columns and computes each column's height.
//   - [Window] selects the items of one column that intersect the visible
//     band (viewport plus a buffer margin) and reports their offsets.
//
// Both are deterministic functions over in-memory values. Neither keeps state
// between calls, so the same inputs always yield the same outputs.
//
// # Column Count
//
// The number of columns is derived from the container width and [Config]:
//
//	candidate    = containerWidth / MaxColumns
//	effectiveMin = max(MinColumnWidth, candidate)
//	numColumns   = max(1, floor(containerWidth / effectiveMin))
//
// Columns therefore never shrink below MinColumnWidth, and wide containers
// are capped at MaxColumns. A container width of zero (not yet measured)
// yields a single column. See [ColumnCount].
//
// # Balancing
//
// Photos are processed in input order. Each one goes to the column with the
// smallest accumulated height, ties going to the lowest column index, and
// that column grows by the photo's rendered height at the column width:
//
//	(photo.Height / photo.Width) * (containerWidth / numColumns)
//
// This greedy shortest-column heuristic is O(n·k) and stable: appending
// photos to a collection never moves the photos that were already placed.
//
// # Windowing
//
// [Place] recomputes every item's rendered height and cumulative top offset
// from scratch. [Window] keeps the items whose [top, top+height) interval
// intersects the band
//
//	[scroll - buffer*estimate, scroll + viewportHeight + buffer*estimate)
//
// where the buffer is counted in estimated card heights rather than pixels.
// Offsets are never rounded; snapping to device pixels is left to callers.
//
// # Preconditions
//
// Photos must have strictly positive dimensions. The engine does not guard
// against zero widths; filter collections before balancing (the source
// package's Sanitize does this for ingested data).
//
// # Usage
//
//	cfg := masonry.DefaultConfig()
//	l := masonry.Balance(photos, 1280, cfg)
//	vp := masonry.Viewport{ScrollOffset: 0, Height: 800, Buffer: 3}
//	for _, col := range l.Columns {
//	    items := masonry.Window(col, l.ColumnWidth, vp, cfg.EstimatedCardHeight)
//	    _ = items
//	}
package masonry
