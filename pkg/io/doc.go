// Package io reads and writes graph batches as JSON or YAML files.
//
// # Format
//
// A file holds one [graph.Batch] in the backend wire format:
//
//	{
//	  "vertices": [
//	    {"id": 1, "label": "host", "properties": {"name": "gateway"}},
//	    {"id": 2, "label": "host"}
//	  ],
//	  "edges": [
//	    {"id": 10, "label": "conn", "head_id": 1, "tail_id": 2}
//	  ]
//	}
//
// Ids may be strings or numbers. YAML files use the same keys.
//
// # Import
//
// [ReadFile] picks the codec from the file extension and [Validate]s the
// result: vertex and edge ids must be unique and every edge must join two
// listed vertices.
//
// # Export
//
// [Export] captures what an explorer currently shows, so a snapshot can be
// served again with "graphlens serve":
//
//	b := io.Export(store)
//	err := io.WriteFile("view.json", b)
package io
