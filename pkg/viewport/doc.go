// Package viewport drives a masonry layout from the events of a scrollable
// container.
//
// # Overview
//
// A [Coordinator] owns the latest balanced layout and the latest viewport
// geometry. It decides, per event, whether the layout must be rebalanced or
// only re-windowed:
//
//   - container width changed, or the photo collection changed: rebalance all
//     columns, then re-window them
//   - scroll offset or viewport height changed: re-window only, reusing the
//     stored balance
//
// Rebalancing is O(n·k) and happens only on structural change. Scrolling
// costs one offset walk per column.
//
// # Rendering
//
// After every handler the coordinator builds a [Snapshot] and compares it with
// the last one handed to the renderer ([WithRenderer]). The renderer is only
// called when the two differ, which replaces the memoization a UI framework
// would otherwise provide.
//
// # Near-bottom signal
//
// Detecting that the user approaches the end of the content is delegated to a
// [BoundaryTrigger]. The coordinator attaches one callback and forwards every
// invocation to [WithOnBoundary] unchanged: no debouncing, no suppression.
// [SignalTrigger] is fired by an external mechanism such as a browser
// intersection observer; [ScrollTrigger] derives crossings from the geometry
// the coordinator feeds it.
//
// # Concurrency
//
// A Coordinator is not safe for concurrent use. Each transport (a terminal
// program loop, a websocket connection) owns one coordinator and drives it
// from a single goroutine. Triggers and event emitters in this package are
// safe to share.
//
// # Usage
//
//	c, err := viewport.New(photos,
//	    viewport.WithBuffer(3),
//	    viewport.WithRenderer(func(s viewport.Snapshot) { draw(s) }),
//	    viewport.WithOnBoundary(loadMore),
//	)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	c.OnContainerWidthChanged(1280)
//	c.OnScroll(0, 800)
package viewport
