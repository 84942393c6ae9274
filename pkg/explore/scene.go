package explore

import (
	"slices"

	"github.com/matzehuels/graphlens/pkg/graph"
	"github.com/matzehuels/graphlens/pkg/layout"
)

// Scene is the live render collection: the materialized entities in the
// order they appeared, shared by pointer with the store and the layout.
// Merges append to it and removals cut from it, so a frame never has to
// walk the whole store to find what changed.
type Scene struct {
	vertices []*graph.Vertex
	edges    []*graph.Edge
}

// Push appends the entities of a merge diff.
func (s *Scene) Push(d graph.Diff) {
	s.vertices = append(s.vertices, d.Vertices...)
	s.edges = append(s.edges, d.Edges...)
}

// Remove drops the entities listed in r.
func (s *Scene) Remove(r graph.Removal) {
	if r.Empty() {
		return
	}
	vs := make(map[graph.ID]struct{}, len(r.Vertices))
	for _, id := range r.Vertices {
		vs[id] = struct{}{}
	}
	es := make(map[graph.ID]struct{}, len(r.Edges))
	for _, id := range r.Edges {
		es[id] = struct{}{}
	}
	s.vertices = slices.DeleteFunc(s.vertices, func(v *graph.Vertex) bool {
		_, ok := vs[v.ID]
		return ok
	})
	s.edges = slices.DeleteFunc(s.edges, func(e *graph.Edge) bool {
		_, ok := es[e.ID]
		return ok
	})
}

// Reset empties the scene.
func (s *Scene) Reset() {
	s.vertices = nil
	s.edges = nil
}

// Vertices returns the scene's vertices. The slice is shared; callers must
// not modify it.
func (s *Scene) Vertices() []*graph.Vertex { return s.vertices }

// Edges returns the scene's edges. The slice is shared; callers must not
// modify it.
func (s *Scene) Edges() []*graph.Edge { return s.edges }

// Links resolves every scene edge to its endpoints for the layout.
func (s *Scene) Links(store *graph.Store) []layout.Link {
	links := make([]layout.Link, 0, len(s.edges))
	for _, e := range s.edges {
		src, dst, ok := store.Endpoints(e)
		if !ok {
			continue
		}
		links = append(links, layout.Link{Source: src, Target: dst})
	}
	return links
}
