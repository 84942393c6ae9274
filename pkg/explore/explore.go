// Package explore drives an incremental exploration of a backend graph.
//
// An [Explorer] owns the materialized [graph.Store] around one centre
// vertex and keeps the scene, visibility and layout in step with it. Every
// mutation runs under one lock, in the same order:
//
//	store mutation -> scene push/removal -> visibility recompute -> layout restart
//
// Backend requests run without the lock. An expansion whose vertex was
// collapsed or removed while its request was in flight is dropped with
// [ErrStaleResponse] rather than re-inserting the collapsed branch.
package explore

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	gerrors "github.com/matzehuels/graphlens/pkg/errors"
	"github.com/matzehuels/graphlens/pkg/graph"
	"github.com/matzehuels/graphlens/pkg/layout"
	"github.com/matzehuels/graphlens/pkg/visibility"
)

var (
	// ErrStaleResponse is returned for an expansion whose vertex was
	// collapsed or removed while the request was in flight.
	ErrStaleResponse = gerrors.Sentinel(gerrors.ErrCodeStaleResponse)

	// ErrFeatureDisabled is returned for operations switched off by
	// [Features].
	ErrFeatureDisabled = gerrors.Sentinel(gerrors.ErrCodeFeatureDisabled)
)

// Backend is the graph API an explorer talks to.
type Backend interface {
	Bootstrap(ctx context.Context) (graph.Batch, error)
	Expand(ctx context.Context, id graph.ID) (graph.Batch, error)
	CreateEdge(ctx context.Context, from, to graph.ID) (graph.EdgeRecord, error)
	UpdateEdge(ctx context.Context, edgeID, newDest graph.ID) error
	Delete(ctx context.Context, t graph.EntityType, id graph.ID) error
}

// Features switches optional operations on and off.
type Features struct {
	Expand          bool // expand and collapse
	ReCenter        bool
	Pin             bool
	DragNew         bool // drag-to-connect edge creation
	ChangeEdge      bool
	DeleteSelection bool
}

// AllFeatures enables everything.
func AllFeatures() Features {
	return Features{Expand: true, ReCenter: true, Pin: true, DragNew: true, ChangeEdge: true, DeleteSelection: true}
}

// Option configures an Explorer.
type Option func(*Explorer)

// WithCenter selects the centre vertex by id or by name. Without it the
// first vertex of the bootstrap payload is the centre.
func WithCenter(center string) Option { return func(e *Explorer) { e.center = center } }

// WithCenterColor overrides the centre vertex's fill colour.
func WithCenterColor(color string) Option { return func(e *Explorer) { e.centerColor = color } }

// WithFeatures replaces the default [AllFeatures].
func WithFeatures(f Features) Option { return func(e *Explorer) { e.features = f } }

// WithPolicy sets the layout policy. Pinning follows [Features.Pin].
func WithPolicy(p layout.Policy) Option { return func(e *Explorer) { e.policy = p } }

// WithSimulation replaces the default force simulation.
func WithSimulation(sim layout.Simulation) Option { return func(e *Explorer) { e.sim = sim } }

// WithToggles shares a visibility toggle map, for example across recentres.
func WithToggles(t *visibility.Toggles) Option { return func(e *Explorer) { e.toggles = t } }

// WithPalette replaces the label palette.
func WithPalette(colors []string) Option { return func(e *Explorer) { e.palette = colors } }

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option { return func(e *Explorer) { e.logger = l } }

// Explorer is the lifecycle controller of one exploration. It is safe for
// concurrent use.
type Explorer struct {
	mu      sync.Mutex
	backend Backend
	store   *graph.Store
	scene   Scene
	vis     *visibility.Engine
	layout  *layout.Adapter

	center      string
	centerColor string
	features    Features
	policy      layout.Policy
	sim         layout.Simulation
	toggles     *visibility.Toggles
	palette     []string
	logger      *log.Logger
	session     string

	flight singleflight.Group
	epoch  uint64
	gen    map[graph.ID]uint64

	obsMu        sync.RWMutex
	interceptors []ExpandInterceptor
	selection    []SelectionObserver
	edgeRequests []EdgeRequestObserver
	changes      []ChangeObserver
}

// New bootstraps an exploration from the backend's page payload. A failed
// bootstrap is fatal: there is no graph to explore without it.
func New(ctx context.Context, b Backend, opts ...Option) (*Explorer, error) {
	e := &Explorer{
		backend:     b,
		centerColor: graph.CenterColor,
		features:    AllFeatures(),
		policy:      layout.Policy{Width: 960, Height: 600, Bounded: true},
		logger:      log.Default(),
		session:     uuid.NewString(),
		gen:         make(map[graph.ID]uint64),
	}
	for _, o := range opts {
		o(e)
	}
	e.logger = e.logger.With("session", e.session[:8])
	e.policy.DisablePin = !e.features.Pin
	e.vis = visibility.NewEngine(e.toggles)

	batch, err := b.Bootstrap(ctx)
	if err != nil {
		return nil, wrapBackend(err, "bootstrap")
	}
	root, err := resolveCenter(batch, e.center)
	if err != nil {
		return nil, err
	}
	if err := e.reset(root, batch); err != nil {
		return nil, err
	}
	return e, nil
}

// reset replaces the store with one centred on root and seeded with batch.
// Callers hold e.mu or own e exclusively.
func (e *Explorer) reset(root graph.ID, batch graph.Batch) error {
	var sopts []graph.StoreOption
	if e.palette != nil {
		sopts = append(sopts, graph.WithPalette(e.palette))
	}
	store, err := graph.NewStore(root, sopts...)
	if err != nil {
		return gerrors.Wrap(gerrors.ErrCodeInvalidInput, err, "centre")
	}
	diff := store.Merge(batch, root)
	rv, ok := store.Vertex(root)
	if !ok {
		return gerrors.New(gerrors.ErrCodeNotFound, "centre vertex %s missing from payload", root)
	}
	if e.centerColor != "" {
		rv.Color = e.centerColor
	}

	e.store = store
	e.scene.Reset()
	e.scene.Push(diff)
	e.epoch++
	clear(e.gen)
	e.layout = layout.NewAdapter(root, e.policy, e.sim)
	e.layout.PlaceRoot(rv)
	e.layout.Place(without(diff.Vertices, root), store.Vertex)
	e.vis.Recompute(store)
	e.layout.Restart()

	e.logger.Info("exploring", "centre", root, "vertices", len(diff.Vertices), "edges", len(diff.Edges))
	return nil
}

// resolveCenter finds the centre vertex by id, then by properties.name.
func resolveCenter(b graph.Batch, center string) (graph.ID, error) {
	if len(b.Vertices) == 0 {
		return graph.None, gerrors.New(gerrors.ErrCodeNotFound, "bootstrap payload has no vertices")
	}
	if center == "" {
		return b.Vertices[0].ID, nil
	}
	for _, v := range b.Vertices {
		if v.ID == graph.ID(center) {
			return v.ID, nil
		}
	}
	for _, v := range b.Vertices {
		if name, ok := v.Properties["name"]; ok && fmt.Sprint(name) == center {
			return v.ID, nil
		}
	}
	return graph.None, gerrors.New(gerrors.ErrCodeNotFound, "centre %q not in bootstrap payload", center)
}

func without(vs []*graph.Vertex, id graph.ID) []*graph.Vertex {
	out := make([]*graph.Vertex, 0, len(vs))
	for _, v := range vs {
		if v.ID != id {
			out = append(out, v)
		}
	}
	return out
}

// Session returns the explorer's session id.
func (e *Explorer) Session() string { return e.session }

// Features returns the enabled features.
func (e *Explorer) Features() Features { return e.features }

// Root returns the centre vertex id.
func (e *Explorer) Root() graph.ID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Root()
}

// View runs fn with read access to the store and scene under the explorer
// lock. fn must not retain the arguments or call back into e.
func (e *Explorer) View(fn func(s *graph.Store, sc *Scene)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.store, &e.scene)
}

// Summary describes the materialized graph.
func (e *Explorer) Summary() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fmt.Sprintf("Showing %d edges linked to %d vertices", len(e.scene.edges), len(e.scene.vertices))
}

// Toggles returns the visibility toggles.
func (e *Explorer) Toggles() *visibility.Toggles { return e.vis.Toggles() }

// Toggle flips the visibility of a label and recomputes visibility.
func (e *Explorer) Toggle(t graph.EntityType, label string) bool {
	e.mu.Lock()
	on := e.vis.Toggles().Toggle(t, label)
	st := e.vis.Recompute(e.store)
	e.mu.Unlock()
	e.notify(Change{Kind: ChangeToggle, Shown: st})
	return on
}

// SetVisible switches a label on or off and recomputes visibility.
func (e *Explorer) SetVisible(t graph.EntityType, label string, on bool) {
	e.mu.Lock()
	e.vis.Toggles().Set(t, label, on)
	st := e.vis.Recompute(e.store)
	e.mu.Unlock()
	e.notify(Change{Kind: ChangeToggle, Shown: st})
}

// Tick advances the layout one step and reports whether it is still
// running.
func (e *Explorer) Tick() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.layout.Tick(e.scene.vertices, e.scene.Links(e.store))
}

// ObserveTicks registers a layout tick observer.
func (e *Explorer) ObserveTicks(o layout.TickObserver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.layout.Observe(o)
}

// Pin fixes a vertex in place.
func (e *Explorer) Pin(id graph.ID) error {
	return e.withVertex(id, func(v *graph.Vertex) { e.layout.Pin(v) })
}

// Unpin releases a vertex to the simulation.
func (e *Explorer) Unpin(id graph.ID) error {
	return e.withVertex(id, func(v *graph.Vertex) { e.layout.Unpin(v) })
}

// Drag moves a vertex by (dx, dy) and pins it.
func (e *Explorer) Drag(id graph.ID, dx, dy float64) error {
	return e.withVertex(id, func(v *graph.Vertex) {
		e.layout.Drag(v, dx, dy)
		e.layout.Restart()
	})
}

// PinAll pins every materialized vertex.
func (e *Explorer) PinAll() error {
	if !e.features.Pin {
		return gerrors.New(gerrors.ErrCodeFeatureDisabled, "pinning is disabled")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.layout.PinAll(e.scene.vertices)
	return nil
}

func (e *Explorer) withVertex(id graph.ID, fn func(v *graph.Vertex)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.store.Vertex(id)
	if !ok {
		return gerrors.New(gerrors.ErrCodeNotFound, "vertex %s is not materialized", id)
	}
	fn(v)
	return nil
}

// Select notifies selection observers of an entity and its neighbourhood.
func (e *Explorer) Select(ref graph.EntityRef) (Selection, error) {
	e.mu.Lock()
	sel, err := e.buildSelection(ref)
	e.mu.Unlock()
	if err != nil {
		return Selection{}, err
	}
	e.obsMu.RLock()
	obs := append([]SelectionObserver(nil), e.selection...)
	e.obsMu.RUnlock()
	for _, o := range obs {
		o.OnSelect(sel)
	}
	return sel, nil
}

func (e *Explorer) buildSelection(ref graph.EntityRef) (Selection, error) {
	sel := Selection{Ref: ref}
	switch ref.Type {
	case graph.VertexType:
		v, ok := e.store.Vertex(ref.ID)
		if !ok {
			return sel, gerrors.New(gerrors.ErrCodeNotFound, "vertex %s is not materialized", ref.ID)
		}
		sel.Vertex = v
		sel.Edges = e.store.IncidentEdges(ref.ID)
		for _, ed := range sel.Edges {
			other := ed.Target
			if other == ref.ID {
				other = ed.Source
			}
			if ov, ok := e.store.Vertex(other); ok {
				sel.Vertices = append(sel.Vertices, ov)
			}
		}
	case graph.EdgeType:
		ed, ok := e.store.Edge(ref.ID)
		if !ok {
			return sel, gerrors.New(gerrors.ErrCodeNotFound, "edge %s is not materialized", ref.ID)
		}
		sel.Edge = ed
		if src, dst, ok := e.store.Endpoints(ed); ok {
			sel.Vertices = []*graph.Vertex{src, dst}
		}
	default:
		return sel, gerrors.New(gerrors.ErrCodeInvalidInput, "unknown entity type %q", ref.Type)
	}
	return sel, nil
}

// InterceptExpand registers an expand interceptor. Interceptors run in
// registration order.
func (e *Explorer) InterceptExpand(i ExpandInterceptor) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.interceptors = append(e.interceptors, i)
}

// ObserveSelection registers a selection observer.
func (e *Explorer) ObserveSelection(o SelectionObserver) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.selection = append(e.selection, o)
}

// ObserveEdgeRequests registers an edge request observer.
func (e *Explorer) ObserveEdgeRequests(o EdgeRequestObserver) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.edgeRequests = append(e.edgeRequests, o)
}

// ObserveChanges registers a change observer.
func (e *Explorer) ObserveChanges(o ChangeObserver) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.changes = append(e.changes, o)
}

func (e *Explorer) notify(c Change) {
	e.obsMu.RLock()
	obs := append([]ChangeObserver(nil), e.changes...)
	e.obsMu.RUnlock()
	for _, o := range obs {
		o.OnChange(c)
	}
}
