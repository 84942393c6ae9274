package explore

import (
	"context"

	"github.com/matzehuels/graphlens/pkg/graph"
	"github.com/matzehuels/graphlens/pkg/visibility"
)

// ExpandInterceptor can answer an expansion before the backend is asked.
// A non-nil batch is merged as if the backend had returned it. handled with
// a nil batch cancels the expansion. Returning (nil, false) falls through
// to the next interceptor and finally to the backend.
type ExpandInterceptor interface {
	InterceptExpand(ctx context.Context, v *graph.Vertex) (batch *graph.Batch, handled bool)
}

// ExpandInterceptorFunc adapts a function to ExpandInterceptor.
type ExpandInterceptorFunc func(ctx context.Context, v *graph.Vertex) (*graph.Batch, bool)

// InterceptExpand implements ExpandInterceptor.
func (f ExpandInterceptorFunc) InterceptExpand(ctx context.Context, v *graph.Vertex) (*graph.Batch, bool) {
	return f(ctx, v)
}

// Selection is a selected entity and its neighbourhood. For a vertex,
// Edges are its incident edges and Vertices their far endpoints; for an
// edge, Vertices are its two endpoints.
type Selection struct {
	Ref      graph.EntityRef
	Vertex   *graph.Vertex
	Edge     *graph.Edge
	Vertices []*graph.Vertex
	Edges    []*graph.Edge
}

// SelectionObserver is notified when an entity is selected.
type SelectionObserver interface {
	OnSelect(sel Selection)
}

// SelectionFunc adapts a function to SelectionObserver.
type SelectionFunc func(sel Selection)

// OnSelect implements SelectionObserver.
func (f SelectionFunc) OnSelect(sel Selection) { f(sel) }

// EdgeRequestObserver is asked to confirm a new edge requested by a
// drag-to-connect gesture. Observers typically prompt the user and then
// call [Explorer.CreateEdge].
type EdgeRequestObserver interface {
	OnEdgeRequest(from, to *graph.Vertex)
}

// EdgeRequestFunc adapts a function to EdgeRequestObserver.
type EdgeRequestFunc func(from, to *graph.Vertex)

// OnEdgeRequest implements EdgeRequestObserver.
func (f EdgeRequestFunc) OnEdgeRequest(from, to *graph.Vertex) { f(from, to) }

// ChangeKind names what mutated the graph.
type ChangeKind string

const (
	ChangeExpand   ChangeKind = "expand"
	ChangeCollapse ChangeKind = "collapse"
	ChangeRemove   ChangeKind = "remove"
	ChangeEdge     ChangeKind = "edge"
	ChangeToggle   ChangeKind = "toggle"
	ChangeRecenter ChangeKind = "recenter"
)

// Change describes one mutation. Added and Removed count entities; Shown is
// the visibility after the change.
type Change struct {
	Kind    ChangeKind
	Target  graph.ID
	Added   graph.Counts
	Removed graph.Counts
	Shown   visibility.Stats
}

// ChangeObserver is notified after every mutation, once the explorer lock
// is released.
type ChangeObserver interface {
	OnChange(c Change)
}

// ChangeFunc adapts a function to ChangeObserver.
type ChangeFunc func(c Change)

// OnChange implements ChangeObserver.
func (f ChangeFunc) OnChange(c Change) { f(c) }
