// Package pkg provides the core libraries for graphlens, an incremental
// explorer for property graphs served over HTTP.
//
// # Overview
//
// graphlens never loads a whole graph. It bootstraps the neighbourhood of a
// centre vertex and grows or shrinks the materialized subgraph as the user
// expands and collapses vertices. The pkg directory is organized into four
// areas:
//
//  1. Model: [graph] (store and merge), [visibility], [layout]
//  2. Exploration: [explore] (the lifecycle controller), [filter]
//  3. Transport: [backend] (HTTP client), [server] (reference backend), [httputil]
//  4. Support: [cache], [config], [errors], [io], [observability], [render]
//
// # Architecture
//
// The data flow of one expansion:
//
//	backend HTTP response
//	         ↓
//	    [backend] package (fetch, cache, decode into a graph.Batch)
//	         ↓
//	    [graph] package (merge, provenance, degrees)
//	         ↓
//	    [visibility] package (label toggles, shown set)
//	         ↓
//	    [layout] package (force simulation, pinning)
//	         ↓
//	    TUI, DOT/SVG/PNG snapshot or JSON/YAML export
//
// # Quick Start
//
// Bootstrap, expand a vertex and render the result:
//
//	import (
//	    "context"
//	    "github.com/matzehuels/graphlens/pkg/backend"
//	    "github.com/matzehuels/graphlens/pkg/explore"
//	    "github.com/matzehuels/graphlens/pkg/graph"
//	    "github.com/matzehuels/graphlens/pkg/render"
//	)
//
//	client, _ := backend.New(backend.Config{PageURL: "http://localhost:8080/vertices/1"})
//	ex, _ := explore.New(ctx, client)
//	counts, _ := ex.Expand(ctx, "2")
//
//	for ex.Tick() {
//	}
//	ex.View(func(s *graph.Store, _ *explore.Scene) {
//	    dot = render.ToDOT(s, render.Options{Positions: true})
//	})
//
// # Main Packages
//
// [graph] - The materialized subgraph. Merging is idempotent per id and
// records provenance, so collapsing a vertex removes exactly what its
// expansion introduced.
//
// [visibility] - Per-label toggles and the shown set derived from them. The
// root is always shown.
//
// [layout] - Barnes-Hut force simulation with anchor placement for new
// vertices and pinning.
//
// [explore] - Expand, collapse, remove, edge editing and recentring, with
// stale-response detection for overlapping operations.
//
// [filter] - Filter expression parsing, chaining with AND/OR and evaluation
// against the backend.
//
// [backend] - The HTTP client for bootstrap, expand, filter and mutations.
// Responses are cached through [cache].
//
// [server] - A reference backend over JSON, YAML, SQLite or MongoDB datasets.
//
// # Testing
//
// Run tests:
//
//	go test ./...                 # All tests
//	go test ./pkg/graph/...       # Specific package
//	go test -run Property ./...   # Property tests only
//
// [graph]: https://pkg.go.dev/github.com/matzehuels/graphlens/pkg/graph
// [visibility]: https://pkg.go.dev/github.com/matzehuels/graphlens/pkg/visibility
// [layout]: https://pkg.go.dev/github.com/matzehuels/graphlens/pkg/layout
// [explore]: https://pkg.go.dev/github.com/matzehuels/graphlens/pkg/explore
// [filter]: https://pkg.go.dev/github.com/matzehuels/graphlens/pkg/filter
// [backend]: https://pkg.go.dev/github.com/matzehuels/graphlens/pkg/backend
// [server]: https://pkg.go.dev/github.com/matzehuels/graphlens/pkg/server
// [httputil]: https://pkg.go.dev/github.com/matzehuels/graphlens/pkg/httputil
// [cache]: https://pkg.go.dev/github.com/matzehuels/graphlens/pkg/cache
// [config]: https://pkg.go.dev/github.com/matzehuels/graphlens/pkg/config
// [errors]: https://pkg.go.dev/github.com/matzehuels/graphlens/pkg/errors
// [io]: https://pkg.go.dev/github.com/matzehuels/graphlens/pkg/io
// [observability]: https://pkg.go.dev/github.com/matzehuels/graphlens/pkg/observability
// [render]: https://pkg.go.dev/github.com/matzehuels/graphlens/pkg/render
package pkg
