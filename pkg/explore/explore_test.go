package explore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"pgregory.net/rapid"

	gerrors "github.com/matzehuels/graphlens/pkg/errors"
	"github.com/matzehuels/graphlens/pkg/graph"
)

type fakeBackend struct {
	mu         sync.Mutex
	boot       graph.Batch
	neighbours map[graph.ID]graph.Batch
	expandErr  error
	calls      atomic.Int32

	// entered and release gate Expand when set.
	entered chan struct{}
	release chan struct{}

	created   graph.EdgeRecord
	createErr error
	updated   [2]graph.ID
	deleted   []graph.EntityRef
	deleteErr error
}

func (f *fakeBackend) Bootstrap(context.Context) (graph.Batch, error) { return f.boot, nil }

func (f *fakeBackend) Expand(ctx context.Context, id graph.ID) (graph.Batch, error) {
	f.calls.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.expandErr != nil {
		return graph.Batch{}, f.expandErr
	}
	b, ok := f.neighbours[id]
	if !ok {
		return graph.Batch{}, gerrors.New(gerrors.ErrCodeNotFound, "no vertex %s", id)
	}
	return b, nil
}

func (f *fakeBackend) CreateEdge(_ context.Context, from, to graph.ID) (graph.EdgeRecord, error) {
	if f.createErr != nil {
		return graph.EdgeRecord{}, f.createErr
	}
	f.created = graph.EdgeRecord{ID: "99", Label: "new", Head: from, Tail: to}
	return f.created, nil
}

func (f *fakeBackend) UpdateEdge(_ context.Context, edgeID, newDest graph.ID) error {
	f.updated = [2]graph.ID{edgeID, newDest}
	return nil
}

func (f *fakeBackend) Delete(_ context.Context, t graph.EntityType, id graph.ID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, graph.EntityRef{Type: t, ID: id})
	return nil
}

func vrec(id graph.ID, label string) graph.VertexRecord {
	return graph.VertexRecord{ID: id, Label: label, Properties: graph.Properties{}, Metadata: map[string]any{}}
}

func erec(id, head, tail graph.ID, label string) graph.EdgeRecord {
	return graph.EdgeRecord{ID: id, Label: label, Head: head, Tail: tail, Properties: graph.Properties{}}
}

// scenarioBackend serves root 1 ("A"), its neighbour 2 over edge 10 and 2's
// neighbour 3 over edge 20.
func scenarioBackend() *fakeBackend {
	root := vrec("1", "host")
	root.Properties["name"] = "A"
	return &fakeBackend{
		boot: graph.Batch{Vertices: []graph.VertexRecord{root}},
		neighbours: map[graph.ID]graph.Batch{
			"1": {
				Vertices: []graph.VertexRecord{vrec("2", "host")},
				Edges:    []graph.EdgeRecord{erec("10", "1", "2", "conn")},
			},
			"2": {
				Vertices: []graph.VertexRecord{vrec("3", "db")},
				Edges:    []graph.EdgeRecord{erec("20", "2", "3", "conn")},
			},
		},
	}
}

func quietLogger() *log.Logger { return log.New(io.Discard) }

func newTestExplorer(t *testing.T, b Backend, opts ...Option) *Explorer {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	e, err := New(context.Background(), b, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func vertex(t *testing.T, e *Explorer, id graph.ID) (v *graph.Vertex, ok bool) {
	t.Helper()
	e.View(func(s *graph.Store, _ *Scene) { v, ok = s.Vertex(id) })
	return v, ok
}

func edge(t *testing.T, e *Explorer, id graph.ID) (ed *graph.Edge, ok bool) {
	t.Helper()
	e.View(func(s *graph.Store, _ *Scene) { ed, ok = s.Edge(id) })
	return ed, ok
}

func TestBootstrap(t *testing.T) {
	e := newTestExplorer(t, scenarioBackend())

	v, ok := vertex(t, e, "1")
	if !ok {
		t.Fatal("root not materialized")
	}
	if v.Parent != graph.None || v.Name != "A" || v.Color != graph.CenterColor {
		t.Errorf("root = %+v", v)
	}
	if e.Root() != "1" {
		t.Errorf("Root() = %s", e.Root())
	}
	if got := e.Summary(); got != "Showing 0 edges linked to 1 vertices" {
		t.Errorf("Summary() = %q", got)
	}
}

func TestBootstrapFailureIsFatal(t *testing.T) {
	b := &fakeBackend{}
	_, err := New(context.Background(), bootstrapErr{b, errors.New("connection refused")}, WithLogger(quietLogger()))
	if !gerrors.Is(err, gerrors.ErrCodeNetwork) {
		t.Errorf("New() error = %v, want NETWORK_ERROR", err)
	}
}

type bootstrapErr struct {
	*fakeBackend
	err error
}

func (b bootstrapErr) Bootstrap(context.Context) (graph.Batch, error) { return graph.Batch{}, b.err }

func TestCenterResolution(t *testing.T) {
	b := scenarioBackend()
	b.boot.Vertices = append(b.boot.Vertices, graph.VertexRecord{ID: "7", Label: "host", Properties: graph.Properties{"name": "gateway"}})

	tests := []struct {
		center string
		want   graph.ID
		code   gerrors.Code
	}{
		{"", "1", ""},
		{"7", "7", ""},
		{"gateway", "7", ""},
		{"A", "1", ""},
		{"nope", "", gerrors.ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.center, func(t *testing.T) {
			e, err := New(context.Background(), b, WithCenter(tt.center), WithLogger(quietLogger()))
			if tt.code != "" {
				if !gerrors.Is(err, tt.code) {
					t.Fatalf("New() error = %v, want %s", err, tt.code)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if e.Root() != tt.want {
				t.Errorf("Root() = %s, want %s", e.Root(), tt.want)
			}
		})
	}
}

func TestScenarios(t *testing.T) {
	ctx := context.Background()
	e := newTestExplorer(t, scenarioBackend())

	// Expand the root.
	c, err := e.Expand(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	if c != (graph.Counts{Vertices: 1, Edges: 1}) {
		t.Errorf("Expand(1) = %+v", c)
	}
	v2, _ := vertex(t, e, "2")
	e10, _ := edge(t, e, "10")
	if v2.Parent != "1" || e10.Parent != "1" || e10.Source != "1" || e10.Target != "2" {
		t.Errorf("v2 = %+v, e10 = %+v", v2, e10)
	}

	// Re-expanding merges nothing new.
	c, err = e.Expand(ctx, "1")
	if err != nil || c != (graph.Counts{}) {
		t.Errorf("second Expand(1) = %+v, %v", c, err)
	}

	// Expand then collapse a non-root vertex.
	if _, err := e.Expand(ctx, "2"); err != nil {
		t.Fatal(err)
	}
	c, err = e.Collapse(ctx, "2")
	if err != nil {
		t.Fatal(err)
	}
	if c != (graph.Counts{Vertices: 1, Edges: 1}) {
		t.Errorf("Collapse(2) = %+v", c)
	}
	if _, ok := vertex(t, e, "3"); ok {
		t.Error("vertex 3 survived collapse of 2")
	}
	if _, ok := edge(t, e, "20"); ok {
		t.Error("edge 20 survived collapse of 2")
	}
	if _, ok := vertex(t, e, "2"); !ok {
		t.Error("collapse target 2 was removed")
	}

	// Collapse the root.
	c, err = e.Collapse(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	if c != (graph.Counts{Vertices: 1, Edges: 1}) {
		t.Errorf("Collapse(1) = %+v", c)
	}
	if _, ok := vertex(t, e, "1"); !ok {
		t.Error("root removed by collapse")
	}
	if got := e.Summary(); got != "Showing 0 edges linked to 1 vertices" {
		t.Errorf("Summary() = %q", got)
	}
}

func TestToggleIsolation(t *testing.T) {
	e := newTestExplorer(t, scenarioBackend())
	if _, err := e.Expand(context.Background(), "1"); err != nil {
		t.Fatal(err)
	}

	var changes []Change
	e.ObserveChanges(ChangeFunc(func(c Change) { changes = append(changes, c) }))

	if on := e.Toggle(graph.VertexType, "host"); on {
		t.Fatal("Toggle(host) = true, want false")
	}
	v1, _ := vertex(t, e, "1")
	v2, _ := vertex(t, e, "2")
	e10, _ := edge(t, e, "10")
	if !v1.Visible || !v1.Shown {
		t.Errorf("root hidden: %+v", v1)
	}
	if v2.Visible || v2.Shown || e10.Visible {
		t.Errorf("v2 visible=%v shown=%v, e10 visible=%v", v2.Visible, v2.Shown, e10.Visible)
	}
	if len(changes) != 1 || changes[0].Kind != ChangeToggle || changes[0].Shown.ShownVertices != 1 {
		t.Errorf("changes = %+v", changes)
	}

	e.SetVisible(graph.VertexType, "host", true)
	if !v2.Shown || !e10.Visible {
		t.Error("toggling back on did not restore vertex 2")
	}
}

func TestExpandFailureLeavesStoreUnchanged(t *testing.T) {
	b := scenarioBackend()
	b.expandErr = errors.New("connection reset")
	e := newTestExplorer(t, b)

	_, err := e.Expand(context.Background(), "1")
	if !gerrors.Is(err, gerrors.ErrCodeNetwork) {
		t.Errorf("Expand() error = %v, want NETWORK_ERROR", err)
	}
	e.View(func(s *graph.Store, sc *Scene) {
		if s.Len() != (graph.Counts{Vertices: 1}) || len(sc.Vertices()) != 1 {
			t.Errorf("store = %+v", s.Len())
		}
	})

	if _, err := e.Expand(context.Background(), "404"); !gerrors.Is(err, gerrors.ErrCodeNotFound) {
		t.Errorf("Expand(404) error = %v", err)
	}
}

func TestStaleExpansionIsDropped(t *testing.T) {
	ctx := context.Background()
	b := scenarioBackend()
	e := newTestExplorer(t, b)
	if _, err := e.Expand(ctx, "1"); err != nil {
		t.Fatal(err)
	}

	b.entered = make(chan struct{})
	b.release = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := e.Expand(ctx, "2")
		done <- err
	}()
	<-b.entered

	if _, err := e.Collapse(ctx, "1"); err != nil {
		t.Fatal(err)
	}
	close(b.release)

	if err := <-done; !errors.Is(err, ErrStaleResponse) {
		t.Fatalf("Expand(2) error = %v, want ErrStaleResponse", err)
	}
	if _, ok := vertex(t, e, "3"); ok {
		t.Error("stale response re-inserted vertex 3")
	}
}

func TestConcurrentExpandSharesRequest(t *testing.T) {
	ctx := context.Background()
	b := scenarioBackend()
	e := newTestExplorer(t, b)

	b.entered = make(chan struct{}, 1)
	b.release = make(chan struct{})

	var wg sync.WaitGroup
	results := make([]graph.Counts, 2)
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = e.Expand(ctx, "1")
	}()
	<-b.entered
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = e.Expand(ctx, "1")
	}()
	// Give the second caller time to join the in-flight request.
	time.Sleep(20 * time.Millisecond)
	close(b.release)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}
	if n := b.calls.Load(); n != 1 {
		t.Errorf("backend called %d times, want 1", n)
	}
	if total := results[0].Vertices + results[1].Vertices; total != 1 {
		t.Errorf("results = %+v, want one vertex added in total", results)
	}
}

func TestInterceptors(t *testing.T) {
	ctx := context.Background()
	b := scenarioBackend()
	e := newTestExplorer(t, b)

	e.InterceptExpand(ExpandInterceptorFunc(func(_ context.Context, v *graph.Vertex) (*graph.Batch, bool) {
		switch v.ID {
		case "1":
			return &graph.Batch{Vertices: []graph.VertexRecord{vrec("5", "local")}, Edges: []graph.EdgeRecord{erec("50", "1", "5", "conn")}}, true
		case "5":
			return nil, true
		}
		return nil, false
	}))

	c, err := e.Expand(ctx, "1")
	if err != nil || c != (graph.Counts{Vertices: 1, Edges: 1}) {
		t.Fatalf("Expand(1) = %+v, %v", c, err)
	}
	if v, ok := vertex(t, e, "5"); !ok || v.Parent != "1" {
		t.Errorf("intercepted vertex = %+v", v)
	}

	c, err = e.Expand(ctx, "5")
	if err != nil || c != (graph.Counts{}) {
		t.Errorf("Expand(5) = %+v, %v", c, err)
	}
	if n := b.calls.Load(); n != 0 {
		t.Errorf("backend called %d times, want 0", n)
	}
}

func TestInterceptorGetsVertexCopy(t *testing.T) {
	ctx := context.Background()
	e := newTestExplorer(t, scenarioBackend())
	if _, err := e.Expand(ctx, "1"); err != nil {
		t.Fatal(err)
	}

	e.InterceptExpand(ExpandInterceptorFunc(func(_ context.Context, v *graph.Vertex) (*graph.Batch, bool) {
		n := 0
		for range 50 {
			for range v.VisibleEdges {
				n++
			}
			for range v.Properties {
				n++
			}
		}
		v.VisibleEdges["intercepted"] = struct{}{}
		v.Properties["intercepted"] = n
		return nil, true
	}))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				e.Toggle(graph.EdgeType, "conn")
			}
		}
	}()
	for range 20 {
		if _, err := e.Expand(ctx, "1"); err != nil {
			t.Errorf("Expand(1) error = %v", err)
		}
	}
	close(stop)
	wg.Wait()

	e.View(func(s *graph.Store, _ *Scene) {
		v, _ := s.Vertex("1")
		if _, ok := v.VisibleEdges["intercepted"]; ok {
			t.Error("interceptor wrote into the stored VisibleEdges")
		}
		if _, ok := v.Properties["intercepted"]; ok {
			t.Error("interceptor wrote into the stored Properties")
		}
	})
}

func TestFeatures(t *testing.T) {
	ctx := context.Background()
	e := newTestExplorer(t, scenarioBackend(), WithFeatures(Features{}))

	tests := []struct {
		name string
		fn   func() error
	}{
		{"expand", func() error { _, err := e.Expand(ctx, "1"); return err }},
		{"collapse", func() error { _, err := e.Collapse(ctx, "1"); return err }},
		{"request edge", func() error { return e.RequestEdge("1", "2") }},
		{"create edge", func() error { _, err := e.CreateEdge(ctx, "1", "2"); return err }},
		{"update edge", func() error { return e.UpdateEdge(ctx, "10", "1") }},
		{"delete", func() error { _, err := e.Delete(ctx, graph.VertexType, "2"); return err }},
		{"recenter", func() error { return e.Recenter(ctx, "1") }},
		{"pin all", e.PinAll},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, ErrFeatureDisabled) {
				t.Errorf("error = %v, want ErrFeatureDisabled", err)
			}
		})
	}
}

func TestRemoveVertex(t *testing.T) {
	ctx := context.Background()
	e := newTestExplorer(t, scenarioBackend())
	e.Expand(ctx, "1")
	e.Expand(ctx, "2")

	if _, err := e.RemoveVertex(ctx, "1"); !gerrors.Is(err, gerrors.ErrCodeRootProtected) {
		t.Errorf("RemoveVertex(root) error = %v", err)
	}

	c, err := e.RemoveVertex(ctx, "2")
	if err != nil {
		t.Fatal(err)
	}
	if c != (graph.Counts{Vertices: 1, Edges: 2}) {
		t.Errorf("RemoveVertex(2) = %+v", c)
	}
	v3, ok := vertex(t, e, "3")
	if !ok || v3.Parent != "1" {
		t.Errorf("vertex 3 = %+v, want re-parented to root", v3)
	}
	if v3.Shown {
		t.Error("isolated vertex 3 is shown")
	}
}

func TestEdgeEditing(t *testing.T) {
	ctx := context.Background()
	b := scenarioBackend()
	e := newTestExplorer(t, b)
	e.Expand(ctx, "1")
	e.Expand(ctx, "2")

	var requested [2]graph.ID
	e.ObserveEdgeRequests(EdgeRequestFunc(func(from, to *graph.Vertex) {
		requested = [2]graph.ID{from.ID, to.ID}
	}))
	if err := e.RequestEdge("3", "1"); err != nil {
		t.Fatal(err)
	}
	if requested != [2]graph.ID{"3", "1"} {
		t.Errorf("requested = %v", requested)
	}
	if err := e.RequestEdge("1", "1"); !gerrors.Is(err, gerrors.ErrCodeInvalidOperation) {
		t.Errorf("RequestEdge(1,1) error = %v", err)
	}

	ed, err := e.CreateEdge(ctx, "3", "1")
	if err != nil {
		t.Fatal(err)
	}
	if ed.ID != "99" || ed.Parent != "1" || ed.Source != "3" || ed.Target != "1" {
		t.Errorf("created = %+v", ed)
	}

	if err := e.UpdateEdge(ctx, "99", "2"); err != nil {
		t.Fatal(err)
	}
	if b.updated != [2]graph.ID{"99", "2"} || ed.Target != "2" {
		t.Errorf("updated = %v, edge target = %s", b.updated, ed.Target)
	}

	if _, err := e.AddEdge(erec("77", "1", "404", "conn")); !gerrors.Is(err, gerrors.ErrCodeNotFound) {
		t.Errorf("AddEdge(dangling) error = %v", err)
	}

	b.createErr = gerrors.New(gerrors.ErrCodeRejected, "backend refused")
	if _, err := e.CreateEdge(ctx, "3", "2"); !gerrors.Is(err, gerrors.ErrCodeRejected) {
		t.Errorf("CreateEdge rejected error = %v", err)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	b := scenarioBackend()
	e := newTestExplorer(t, b)
	e.Expand(ctx, "1")

	if _, err := e.Delete(ctx, graph.VertexType, "1"); !gerrors.Is(err, gerrors.ErrCodeRootProtected) {
		t.Errorf("Delete(root) error = %v", err)
	}
	if len(b.deleted) != 0 {
		t.Fatalf("backend asked to delete %v", b.deleted)
	}

	b.deleteErr = gerrors.New(gerrors.ErrCodeRejected, "success: false")
	if _, err := e.Delete(ctx, graph.EdgeType, "10"); !gerrors.Is(err, gerrors.ErrCodeRejected) {
		t.Errorf("Delete rejected error = %v", err)
	}
	if _, ok := edge(t, e, "10"); !ok {
		t.Error("rejected delete removed edge 10 locally")
	}

	b.deleteErr = nil
	c, err := e.Delete(ctx, graph.EdgeType, "10")
	if err != nil || c != (graph.Counts{Edges: 1}) {
		t.Errorf("Delete(edge 10) = %+v, %v", c, err)
	}
	if _, ok := edge(t, e, "10"); ok {
		t.Error("edge 10 still materialized")
	}
}

func TestRecenter(t *testing.T) {
	ctx := context.Background()
	b := scenarioBackend()
	e := newTestExplorer(t, b)
	e.Expand(ctx, "1")

	if err := e.Recenter(ctx, "2"); err != nil {
		t.Fatal(err)
	}
	if e.Root() != "2" {
		t.Fatalf("Root() = %s", e.Root())
	}
	v2, _ := vertex(t, e, "2")
	if v2.Parent != graph.None || v2.Color != graph.CenterColor {
		t.Errorf("new root = %+v", v2)
	}
	if _, ok := vertex(t, e, "3"); !ok {
		t.Error("neighbour 3 missing after recenter")
	}
	if _, ok := vertex(t, e, "1"); ok {
		t.Error("old root survived recenter")
	}
}

func TestSelect(t *testing.T) {
	e := newTestExplorer(t, scenarioBackend())
	e.Expand(context.Background(), "1")

	var got Selection
	e.ObserveSelection(SelectionFunc(func(s Selection) { got = s }))

	if _, err := e.Select(graph.EntityRef{Type: graph.VertexType, ID: "1"}); err != nil {
		t.Fatal(err)
	}
	if got.Vertex == nil || len(got.Edges) != 1 || len(got.Vertices) != 1 || got.Vertices[0].ID != "2" {
		t.Errorf("selection = %+v", got)
	}

	sel, err := e.Select(graph.EntityRef{Type: graph.EdgeType, ID: "10"})
	if err != nil || sel.Edge == nil || len(sel.Vertices) != 2 {
		t.Errorf("edge selection = %+v, %v", sel, err)
	}

	if _, err := e.Select(graph.EntityRef{Type: graph.EdgeType, ID: "404"}); !gerrors.Is(err, gerrors.ErrCodeNotFound) {
		t.Errorf("Select(404) error = %v", err)
	}
}

func TestTickKeepsRootCentred(t *testing.T) {
	e := newTestExplorer(t, scenarioBackend())
	e.Expand(context.Background(), "1")
	for range 5 {
		e.Tick()
	}
	v1, _ := vertex(t, e, "1")
	if v1.X != 480 || v1.Y != 300 {
		t.Errorf("root at (%v, %v), want (480, 300)", v1.X, v1.Y)
	}
}

// TestSceneMatchesStore checks that after any sequence of expands, collapses
// and removals the scene holds exactly the materialized entities.
func TestSceneMatchesStore(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		const pool = 8
		b := &fakeBackend{
			boot:       graph.Batch{Vertices: []graph.VertexRecord{vrec("1", "host")}},
			neighbours: make(map[graph.ID]graph.Batch),
		}
		for i := 1; i <= pool; i++ {
			var nb graph.Batch
			for j := range rapid.IntRange(0, 3).Draw(t, "fanout") {
				to := graph.ID(fmt.Sprint(rapid.IntRange(1, pool).Draw(t, "to")))
				nb.Vertices = append(nb.Vertices, vrec(to, "host"))
				nb.Edges = append(nb.Edges, erec(graph.ID(fmt.Sprintf("%d-%d", i, j)), graph.ID(fmt.Sprint(i)), to, "conn"))
			}
			b.neighbours[graph.ID(fmt.Sprint(i))] = nb
		}
		e, err := New(context.Background(), b, WithLogger(quietLogger()))
		if err != nil {
			t.Fatal(err)
		}

		ctx := context.Background()
		for range rapid.IntRange(1, 20).Draw(t, "steps") {
			id := graph.ID(fmt.Sprint(rapid.IntRange(1, pool).Draw(t, "id")))
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				e.Expand(ctx, id)
			case 1:
				e.Collapse(ctx, id)
			case 2:
				e.RemoveVertex(ctx, id)
			}
		}

		e.View(func(s *graph.Store, sc *Scene) {
			if len(sc.Vertices()) != s.Len().Vertices || len(sc.Edges()) != s.Len().Edges {
				t.Fatalf("scene has %d/%d entities, store %+v", len(sc.Vertices()), len(sc.Edges()), s.Len())
			}
			for _, v := range sc.Vertices() {
				if got, ok := s.Vertex(v.ID); !ok || got != v {
					t.Fatalf("scene vertex %s is not the stored one", v.ID)
				}
			}
			for _, ed := range sc.Edges() {
				if _, _, ok := s.Endpoints(ed); !ok {
					t.Fatalf("scene edge %s has a missing endpoint", ed.ID)
				}
			}
			if _, ok := s.Vertex("1"); !ok {
				t.Fatal("root removed")
			}
		})
	})
}
