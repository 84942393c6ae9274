package explore

import (
	"context"
	"maps"

	gerrors "github.com/matzehuels/graphlens/pkg/errors"
	"github.com/matzehuels/graphlens/pkg/graph"
	"github.com/matzehuels/graphlens/pkg/observability"
	"github.com/matzehuels/graphlens/pkg/visibility"
)

// Collapse removes the provenance subtree below id and keeps id. Collapsing
// the centre removes everything but the centre.
func (e *Explorer) Collapse(ctx context.Context, id graph.ID) (graph.Counts, error) {
	if !e.features.Expand {
		return graph.Counts{}, gerrors.New(gerrors.ErrCodeFeatureDisabled, "collapse is disabled")
	}

	e.mu.Lock()
	r, err := e.store.Collapse(id)
	if err != nil {
		e.mu.Unlock()
		return graph.Counts{}, gerrors.Wrap(gerrors.ErrCodeNotFound, err, "collapse %s", id)
	}
	st := e.commitRemoval(r, id)
	e.mu.Unlock()

	c := r.Counts()
	observability.Explore().OnCollapse(ctx, id.String(), c.Vertices, c.Edges)
	e.logger.Info("collapsed", "id", id, "vertices deleted", c.Vertices, "edges deleted", c.Edges)
	e.notify(Change{Kind: ChangeCollapse, Target: id, Removed: c, Shown: st})
	return c, nil
}

// RemoveVertex drops one vertex and its incident edges from the local graph.
// The backend is not told; see [Explorer.Delete] for that.
func (e *Explorer) RemoveVertex(ctx context.Context, id graph.ID) (graph.Counts, error) {
	e.mu.Lock()
	r, err := e.store.RemoveVertex(id)
	if err != nil {
		e.mu.Unlock()
		observability.Explore().OnRemove(ctx, string(graph.VertexType), id.String(), err)
		return graph.Counts{}, err
	}
	st := e.commitRemoval(r)
	e.mu.Unlock()

	c := r.Counts()
	observability.Explore().OnRemove(ctx, string(graph.VertexType), id.String(), nil)
	e.logger.Info("1 vertex deleted", "id", id, "edges deleted", c.Edges)
	e.notify(Change{Kind: ChangeRemove, Target: id, Removed: c, Shown: st})
	return c, nil
}

// commitRemoval applies a store removal to the scene, visibility and
// layout. Callers hold e.mu.
func (e *Explorer) commitRemoval(r graph.Removal, extra ...graph.ID) (st visibility.Stats) {
	e.bump(extra...)
	e.bump(r.Vertices...)
	e.scene.Remove(r)
	st = e.vis.Recompute(e.store)
	e.layout.Restart()
	return st
}

// RequestEdge asks the edge request observers to confirm a new edge from a
// drag-to-connect gesture. Nothing is created until an observer calls
// [Explorer.CreateEdge].
func (e *Explorer) RequestEdge(from, to graph.ID) error {
	if !e.features.DragNew {
		return gerrors.New(gerrors.ErrCodeFeatureDisabled, "edge creation is disabled")
	}
	e.mu.Lock()
	src, dst, err := e.endpoints(from, to)
	e.mu.Unlock()
	if err != nil {
		return err
	}

	e.obsMu.RLock()
	obs := append([]EdgeRequestObserver(nil), e.edgeRequests...)
	e.obsMu.RUnlock()
	for _, o := range obs {
		o.OnEdgeRequest(src, dst)
	}
	return nil
}

// CreateEdge asks the backend for a new edge and merges the one it returns.
func (e *Explorer) CreateEdge(ctx context.Context, from, to graph.ID) (*graph.Edge, error) {
	if !e.features.DragNew {
		return nil, gerrors.New(gerrors.ErrCodeFeatureDisabled, "edge creation is disabled")
	}
	e.mu.Lock()
	_, _, err := e.endpoints(from, to)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	rec, err := e.backend.CreateEdge(ctx, from, to)
	if err != nil {
		return nil, wrapBackend(err, "create edge %s -> %s", from, to)
	}
	return e.AddEdge(rec)
}

// AddEdge merges one edge record with the centre as provenance. Both
// endpoints must be materialized. Adding an edge that is already present
// returns the existing edge.
func (e *Explorer) AddEdge(rec graph.EdgeRecord) (*graph.Edge, error) {
	e.mu.Lock()
	if ed, ok := e.store.Edge(rec.ID); ok {
		e.mu.Unlock()
		return ed, nil
	}
	diff := e.store.Merge(graph.Batch{Edges: []graph.EdgeRecord{rec}}, e.store.Root())
	if len(diff.Edges) == 0 {
		e.mu.Unlock()
		return nil, gerrors.New(gerrors.ErrCodeNotFound, "edge %s: endpoint %s or %s is not materialized", rec.ID, rec.Head, rec.Tail)
	}
	e.scene.Push(diff)
	st := e.vis.Recompute(e.store)
	e.layout.Restart()
	ed := diff.Edges[0]
	e.mu.Unlock()

	e.logger.Info("edge added", "id", ed.ID, "source", ed.Source, "target", ed.Target)
	e.notify(Change{Kind: ChangeEdge, Target: ed.ID, Added: diff.Counts(), Shown: st})
	return ed, nil
}

// UpdateEdge points an edge at a new target, first on the backend, then
// locally.
func (e *Explorer) UpdateEdge(ctx context.Context, edgeID, newDest graph.ID) error {
	if !e.features.ChangeEdge {
		return gerrors.New(gerrors.ErrCodeFeatureDisabled, "edge editing is disabled")
	}
	e.mu.Lock()
	_, hasEdge := e.store.Edge(edgeID)
	_, hasDest := e.store.Vertex(newDest)
	e.mu.Unlock()
	switch {
	case !hasEdge:
		return gerrors.New(gerrors.ErrCodeNotFound, "edge %s is not materialized", edgeID)
	case !hasDest:
		return gerrors.New(gerrors.ErrCodeNotFound, "vertex %s is not materialized", newDest)
	}

	if err := e.backend.UpdateEdge(ctx, edgeID, newDest); err != nil {
		return wrapBackend(err, "update edge %s", edgeID)
	}

	e.mu.Lock()
	if err := e.store.RetargetEdge(edgeID, newDest); err != nil {
		e.mu.Unlock()
		return err
	}
	st := e.vis.Recompute(e.store)
	e.layout.Restart()
	e.mu.Unlock()

	e.logger.Info("edge updated", "id", edgeID, "target", newDest)
	e.notify(Change{Kind: ChangeEdge, Target: edgeID, Shown: st})
	return nil
}

// Delete removes an entity on the backend and, once the backend accepts,
// locally. The centre is refused before the backend is asked.
func (e *Explorer) Delete(ctx context.Context, t graph.EntityType, id graph.ID) (graph.Counts, error) {
	if !e.features.DeleteSelection {
		return graph.Counts{}, gerrors.New(gerrors.ErrCodeFeatureDisabled, "deleting is disabled")
	}
	hooks := observability.Explore()

	e.mu.Lock()
	var err error
	switch t {
	case graph.VertexType:
		if e.store.IsRoot(id) {
			err = gerrors.New(gerrors.ErrCodeRootProtected, "cannot delete centre vertex %s", id)
		} else if _, ok := e.store.Vertex(id); !ok {
			err = gerrors.New(gerrors.ErrCodeNotFound, "vertex %s is not materialized", id)
		}
	case graph.EdgeType:
		if _, ok := e.store.Edge(id); !ok {
			err = gerrors.New(gerrors.ErrCodeNotFound, "edge %s is not materialized", id)
		}
	default:
		err = gerrors.New(gerrors.ErrCodeInvalidInput, "unknown entity type %q", t)
	}
	e.mu.Unlock()
	if err != nil {
		hooks.OnRemove(ctx, string(t), id.String(), err)
		return graph.Counts{}, err
	}

	if err := e.backend.Delete(ctx, t, id); err != nil {
		err = wrapBackend(err, "delete %s %s", t, id)
		hooks.OnRemove(ctx, string(t), id.String(), err)
		return graph.Counts{}, err
	}

	e.mu.Lock()
	var r graph.Removal
	if t == graph.VertexType {
		r, err = e.store.RemoveVertex(id)
	} else {
		r, err = e.store.RemoveEdge(id)
	}
	if err != nil {
		// Removed concurrently while the backend was deleting it.
		e.mu.Unlock()
		return graph.Counts{}, nil
	}
	st := e.commitRemoval(r)
	e.mu.Unlock()

	c := r.Counts()
	hooks.OnRemove(ctx, string(t), id.String(), nil)
	e.logger.Info("deleted", "type", t, "id", id, "vertices deleted", c.Vertices, "edges deleted", c.Edges)
	e.notify(Change{Kind: ChangeRemove, Target: id, Removed: c, Shown: st})
	return c, nil
}

// Recenter restarts the exploration around id. The new store is seeded with
// id's neighbourhood; label toggles carry over. In-flight expansions of the
// old store are dropped.
func (e *Explorer) Recenter(ctx context.Context, id graph.ID) error {
	if !e.features.ReCenter {
		return gerrors.New(gerrors.ErrCodeFeatureDisabled, "recentring is disabled")
	}
	e.mu.Lock()
	v, ok := e.store.Vertex(id)
	var seed graph.VertexRecord
	if ok {
		seed = graph.VertexRecord{ID: v.ID, Label: v.Label, Properties: maps.Clone(v.Properties)}
	}
	e.mu.Unlock()
	if !ok {
		return gerrors.New(gerrors.ErrCodeNotFound, "vertex %s is not materialized", id)
	}

	batch, err := e.backend.Expand(ctx, id)
	if err != nil {
		return wrapBackend(err, "recenter %s", id)
	}
	if !hasVertex(batch, id) {
		batch.Vertices = append([]graph.VertexRecord{seed}, batch.Vertices...)
	}

	e.mu.Lock()
	err = e.reset(id, batch)
	var st visibility.Stats
	if err == nil {
		st = e.vis.Recompute(e.store)
	}
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.notify(Change{Kind: ChangeRecenter, Target: id, Shown: st})
	return nil
}

func hasVertex(b graph.Batch, id graph.ID) bool {
	for _, v := range b.Vertices {
		if v.ID == id {
			return true
		}
	}
	return false
}

// endpoints resolves two distinct materialized vertices. Callers hold e.mu.
func (e *Explorer) endpoints(from, to graph.ID) (*graph.Vertex, *graph.Vertex, error) {
	if from == to {
		return nil, nil, gerrors.New(gerrors.ErrCodeInvalidOperation, "edge endpoints must differ")
	}
	src, ok := e.store.Vertex(from)
	if !ok {
		return nil, nil, gerrors.New(gerrors.ErrCodeNotFound, "vertex %s is not materialized", from)
	}
	dst, ok := e.store.Vertex(to)
	if !ok {
		return nil, nil, gerrors.New(gerrors.ErrCodeNotFound, "vertex %s is not materialized", to)
	}
	return src, dst, nil
}
