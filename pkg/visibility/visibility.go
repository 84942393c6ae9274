// Package visibility decides which materialized entities are shown.
//
// Visibility is driven by a toggle per (entity type, label). A vertex is
// visible when its label is toggled on; the root always is. An edge is
// visible when its label is on and both endpoints are visible, where a root
// endpoint always counts as visible. Each vertex tracks the ids of its
// visible incident edges, and a non-root vertex with none of them is not
// shown even if its own label is on.
package visibility

import (
	"cmp"
	"slices"
	"sync"

	"github.com/matzehuels/graphlens/pkg/graph"
)

// Key identifies one toggle.
type Key struct {
	Type  graph.EntityType
	Label string
}

// Toggles is the per-label visibility switchboard. Labels default to on and
// the default is stored on first lookup, so later toggling is stable. Safe
// for concurrent use.
type Toggles struct {
	mu sync.RWMutex
	on map[Key]bool
}

// NewToggles returns an empty toggle map.
func NewToggles() *Toggles {
	return &Toggles{on: make(map[Key]bool)}
}

// Enabled reports the toggle for (t, label), recording the default.
func (tg *Toggles) Enabled(t graph.EntityType, label string) bool {
	k := Key{t, label}
	tg.mu.RLock()
	on, ok := tg.on[k]
	tg.mu.RUnlock()
	if ok {
		return on
	}
	tg.mu.Lock()
	defer tg.mu.Unlock()
	if on, ok := tg.on[k]; ok {
		return on
	}
	tg.on[k] = true
	return true
}

// Set switches (t, label) on or off.
func (tg *Toggles) Set(t graph.EntityType, label string, on bool) {
	tg.mu.Lock()
	tg.on[Key{t, label}] = on
	tg.mu.Unlock()
}

// Toggle flips (t, label) and returns the new state.
func (tg *Toggles) Toggle(t graph.EntityType, label string) bool {
	k := Key{t, label}
	tg.mu.Lock()
	defer tg.mu.Unlock()
	on, ok := tg.on[k]
	on = ok && !on
	tg.on[k] = on
	return on
}

// State is one toggle as listed by [Toggles.Snapshot].
type State struct {
	Key
	On bool
}

// Snapshot lists every observed toggle, vertices first, then by label.
func (tg *Toggles) Snapshot() []State {
	tg.mu.RLock()
	out := make([]State, 0, len(tg.on))
	for k, on := range tg.on {
		out = append(out, State{Key: k, On: on})
	}
	tg.mu.RUnlock()
	slices.SortFunc(out, func(a, b State) int {
		if c := cmp.Compare(typeRank(a.Type), typeRank(b.Type)); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	return out
}

func typeRank(t graph.EntityType) int {
	if t == graph.VertexType {
		return 0
	}
	return 1
}

// Engine recomputes visibility over a store.
type Engine struct {
	toggles *Toggles
}

// NewEngine returns an engine reading toggles. A nil toggles gets a fresh
// map.
func NewEngine(toggles *Toggles) *Engine {
	if toggles == nil {
		toggles = NewToggles()
	}
	return &Engine{toggles: toggles}
}

// Toggles returns the engine's toggle map.
func (e *Engine) Toggles() *Toggles { return e.toggles }

// Stats summarises one recompute.
type Stats struct {
	ShownVertices int
	ShownEdges    int
}

// Recompute refreshes Visible, Shown and VisibleEdges on every entity in s.
func (e *Engine) Recompute(s *graph.Store) Stats {
	vertices := s.Vertices()
	for _, v := range vertices {
		// Enabled records the label even for the root.
		v.Visible = e.toggles.Enabled(graph.VertexType, v.Label) || s.IsRoot(v.ID)
		if v.VisibleEdges == nil {
			v.VisibleEdges = make(map[graph.ID]struct{})
		}
	}

	var st Stats
	for _, ed := range s.Edges() {
		src, dst, ok := s.Endpoints(ed)
		if !ok {
			ed.Visible = false
			continue
		}
		ed.Visible = e.toggles.Enabled(graph.EdgeType, ed.Label) &&
			(src.Visible || s.IsRoot(src.ID)) &&
			(dst.Visible || s.IsRoot(dst.ID))
		for _, end := range []*graph.Vertex{src, dst} {
			if ed.Visible {
				end.VisibleEdges[ed.ID] = struct{}{}
			} else {
				delete(end.VisibleEdges, ed.ID)
			}
		}
		if ed.Visible {
			st.ShownEdges++
		}
	}

	for _, v := range vertices {
		v.Shown = s.IsRoot(v.ID) || (v.Visible && len(v.VisibleEdges) > 0)
		if v.Shown {
			st.ShownVertices++
		}
	}
	return st
}
