package explore

import (
	"context"
	"errors"
	"maps"
	"time"

	gerrors "github.com/matzehuels/graphlens/pkg/errors"
	"github.com/matzehuels/graphlens/pkg/graph"
	"github.com/matzehuels/graphlens/pkg/observability"
)

// ticket identifies the state a request was issued against.
type ticket struct {
	epoch uint64
	gen   uint64
}

// Expand fetches the neighbourhood of id and merges it with id as
// provenance. Interceptors may answer instead of the backend; they receive
// a copy of the vertex taken under the lock. Concurrent
// expansions of the same vertex share one request; the first merge adds the
// new entities and the others report empty counts.
//
// On error the store is unchanged.
func (e *Explorer) Expand(ctx context.Context, id graph.ID) (graph.Counts, error) {
	if !e.features.Expand {
		return graph.Counts{}, gerrors.New(gerrors.ErrCodeFeatureDisabled, "expand is disabled")
	}

	e.mu.Lock()
	v, ok := e.store.Vertex(id)
	if !ok {
		e.mu.Unlock()
		return graph.Counts{}, gerrors.New(gerrors.ErrCodeNotFound, "vertex %s is not materialized", id)
	}
	t := ticket{epoch: e.epoch, gen: e.gen[id]}
	snapshot := *v
	snapshot.VisibleEdges = maps.Clone(v.VisibleEdges)
	snapshot.Properties = maps.Clone(v.Properties)
	e.mu.Unlock()

	hooks := observability.Explore()
	hooks.OnExpandStart(ctx, id.String())
	start := time.Now()

	batch, handled, err := e.fetch(ctx, &snapshot)
	var counts graph.Counts
	if err == nil && !handled {
		counts, err = e.apply(id, t, batch)
	}
	hooks.OnExpandComplete(ctx, id.String(), counts.Vertices, counts.Edges, time.Since(start), err)
	if err != nil {
		if errors.Is(err, ErrStaleResponse) {
			e.logger.Debug("dropped stale expansion", "id", id)
		} else {
			e.logger.Warn("expand failed", "id", id, "err", err)
		}
		return graph.Counts{}, err
	}
	if handled {
		return graph.Counts{}, nil
	}
	e.logger.Info("expanded", "id", id, "vertices added", counts.Vertices, "edges added", counts.Edges)
	return counts, nil
}

// fetch asks the interceptors, then the backend. handled reports that an
// interceptor consumed the expansion without a batch.
func (e *Explorer) fetch(ctx context.Context, v *graph.Vertex) (graph.Batch, bool, error) {
	e.obsMu.RLock()
	interceptors := append([]ExpandInterceptor(nil), e.interceptors...)
	e.obsMu.RUnlock()

	for _, i := range interceptors {
		batch, handled := i.InterceptExpand(ctx, v)
		if batch != nil {
			return *batch, false, nil
		}
		if handled {
			return graph.Batch{}, true, nil
		}
	}

	res, err, _ := e.flight.Do(v.ID.String(), func() (any, error) {
		return e.backend.Expand(ctx, v.ID)
	})
	if err != nil {
		return graph.Batch{}, false, wrapBackend(err, "expand %s", v.ID)
	}
	return res.(graph.Batch), false, nil
}

// apply merges a fetched batch unless the vertex was collapsed, removed or
// recentred away while the request was in flight.
func (e *Explorer) apply(id graph.ID, t ticket, batch graph.Batch) (graph.Counts, error) {
	e.mu.Lock()
	if _, ok := e.store.Vertex(id); !ok || t.epoch != e.epoch || t.gen != e.gen[id] {
		e.mu.Unlock()
		return graph.Counts{}, gerrors.New(gerrors.ErrCodeStaleResponse, "vertex %s changed while expanding", id)
	}

	diff := e.store.Merge(batch, id)
	e.scene.Push(diff)
	e.layout.Place(diff.Vertices, e.store.Vertex)
	st := e.vis.Recompute(e.store)
	e.layout.Restart()
	e.mu.Unlock()

	if diff.Dropped > 0 {
		e.logger.Debug("dropped edges with unknown endpoints", "id", id, "edges", diff.Dropped)
	}
	c := diff.Counts()
	e.notify(Change{Kind: ChangeExpand, Target: id, Added: c, Shown: st})
	return c, nil
}

// bump invalidates in-flight expansions of the given vertices.
func (e *Explorer) bump(ids ...graph.ID) {
	for _, id := range ids {
		e.gen[id]++
	}
}

// wrapBackend keeps the code of a backend error and falls back to
// NETWORK_ERROR or TIMEOUT for uncoded ones.
func wrapBackend(err error, format string, args ...any) error {
	code := gerrors.GetCode(err)
	switch {
	case code != "":
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = gerrors.ErrCodeTimeout
	default:
		code = gerrors.ErrCodeNetwork
	}
	return gerrors.Wrap(code, err, format, args...)
}
