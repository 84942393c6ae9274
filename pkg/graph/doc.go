// Package graph holds the materialized subset of a backend property graph.
//
// A [Store] is anchored at a single root (centre) vertex and grows as
// fetched batches are merged into it. Every vertex and edge remembers the
// vertex whose expansion first introduced it (its provenance parent), which
// makes it possible to collapse a branch later.
//
// # Core Types
//
//   - [Store]: id-keyed vertices and edges, label registry, palette
//   - [Batch], [VertexRecord], [EdgeRecord]: the backend wire shapes
//   - [Vertex], [Edge]: materialized entities, mutated in place by the
//     visibility engine and the layout
//   - [Diff], [Removal]: what a merge added or a removal deleted
//
// # Merging
//
//	s, _ := graph.NewStore("1")
//	s.Merge(bootstrap, "1")          // root gets no parent
//	diff := s.Merge(expansion, "7")  // new entities get parent 7
//
// Merging is an idempotent union by id: entities already present are never
// touched, and edges whose endpoints are missing are dropped.
//
// # Removal
//
// [Store.Collapse] removes the subtree below a vertex, [Store.RemoveVertex]
// removes one vertex and its incident edges. Neither will remove the root.
//
// # Concurrency
//
// A Store is not safe for concurrent use.
package graph
