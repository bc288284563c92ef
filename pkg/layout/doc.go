// Package layout provides the serialization types for balanced layouts and
// viewport windows.
//
// This package defines the wire format used for JSON files, API responses,
// websocket messages and cache entries.
//
// # Architecture
//
// The package sits at the serialization boundary between the engine and
// external formats:
//
//   - [Layout], [Window]: serialization types (this package)
//   - pkg/core/masonry.Layout: internal balance result
//   - pkg/viewport.Snapshot: internal coordinator state
//
// Use [Export]/[Parse], [ExportWindow] and [FromSnapshot] to convert between
// them.
//
// # Layout Format
//
// A layout lists every photo with its column, top offset and rendered height:
//
//	{
//	  "container_width": 1280,
//	  "column_width": 256,
//	  "num_columns": 5,
//	  "content_height": 4120.5,
//	  "columns": [
//	    {"index": 0, "height": 4120.5, "items": [
//	      {"photo": {"id": "2014422", "width": 3024, "height": 3024}, "top": 0, "height": 256}
//	    ]}
//	  ]
//	}
//
// Common operations:
//
//	l, _ := layout.ReadLayoutFile("photos.layout.json")
//	layout.WriteLayoutFile(l, "out.json")
//	data, _ := layout.MarshalLayout(l)
//	parsed, _ := layout.UnmarshalLayout(data)
//
// # Concurrency
//
// All functions are safe for concurrent use.
package layout
