package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/graphlens/pkg/cache"
	gerrors "github.com/matzehuels/graphlens/pkg/errors"
	"github.com/matzehuels/graphlens/pkg/filter"
	"github.com/matzehuels/graphlens/pkg/graph"
	"github.com/matzehuels/graphlens/pkg/httputil"
)

const neighbourhood = `{
	"vertices": [{"id": 2, "label": "host", "properties": {"name": "B"}, "metadata": {"in_edge_count": "3"}}],
	"edges": [{"id": 10, "label": "conn", "head_id": 1, "tail_id": 2, "properties": {}}]
}`

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithHTTPClient(httputil.NewClient(httputil.WithRetry(2, time.Millisecond)))}, opts...)
	c, err := New(Config{PageURL: srv.URL + "/vertices/1"}, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestBootstrapIsCacheBusted(t *testing.T) {
	var gotPath, gotCB string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCB = r.URL.Query().Get("__cb")
		w.Write([]byte(`{"vertices":[{"id":"1","label":"host"}],"edges":[]}`))
	}), WithClock(func() time.Time { return time.UnixMilli(1700000000123) }))

	b, err := c.Bootstrap(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if gotPath != "/vertices/1" || gotCB != "1700000000123" {
		t.Errorf("request = %s?__cb=%s", gotPath, gotCB)
	}
	if len(b.Vertices) != 1 || b.Vertices[0].ID != "1" {
		t.Errorf("batch = %+v", b)
	}
}

func TestBootstrapFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	if _, err := c.Bootstrap(context.Background()); !gerrors.Is(err, gerrors.ErrCodeNetwork) {
		t.Errorf("Bootstrap() error = %v, want NETWORK_ERROR", err)
	}
}

func TestExpandDecodesNumericIDs(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/vertices/1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(neighbourhood))
	}))

	b, err := c.Expand(context.Background(), "1")
	if err != nil {
		t.Fatal(err)
	}
	if b.Vertices[0].ID != "2" || b.Edges[0].ID != "10" || b.Edges[0].Head != "1" || b.Edges[0].Tail != "2" {
		t.Errorf("batch = %+v", b)
	}
}

func TestExpandUsesCache(t *testing.T) {
	var calls atomic.Int32
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(neighbourhood))
	}), WithCache(fc, time.Hour))

	for range 3 {
		b, err := c.Expand(context.Background(), "1")
		if err != nil {
			t.Fatal(err)
		}
		if len(b.Vertices) != 1 {
			t.Fatalf("batch = %+v", b)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("backend called %d times, want 1", calls.Load())
	}
}

// editableBackend serves the neighbourhood of vertex 1 and honours vertex
// deletes and edge edits.
type editableBackend struct {
	mu      sync.Mutex
	deleted map[string]bool
	expands atomic.Int32
}

func (b *editableBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case strings.HasPrefix(r.URL.Path, "/vertices/deleteVertex/"):
		b.deleted[strings.TrimPrefix(r.URL.Path, "/vertices/deleteVertex/")] = true
		w.Write([]byte(`{"success":true}`))
	case strings.HasPrefix(r.URL.Path, "/vertices/deleteEdge/"), r.URL.Path == updateEdgePath:
		w.Write([]byte(`{"success":true}`))
	case r.URL.Path == createEdgePath:
		w.Write([]byte(`{"success":true,"edge":{"id":99,"label":"conn","head_id":1,"tail_id":2}}`))
	case r.URL.Path == "/vertices/1":
		b.expands.Add(1)
		var vs, es []string
		for _, id := range []string{"2", "3"} {
			if b.deleted[id] {
				continue
			}
			vs = append(vs, `{"id":`+id+`,"label":"host"}`)
			es = append(es, `{"id":1`+id+`,"label":"conn","head_id":1,"tail_id":`+id+`}`)
		}
		w.Write([]byte(`{"vertices":[` + strings.Join(vs, ",") + `],"edges":[` + strings.Join(es, ",") + `]}`))
	default:
		http.NotFound(w, r)
	}
}

func TestEditsInvalidateExpandCache(t *testing.T) {
	tests := []struct {
		name      string
		edit      func(ctx context.Context, c *Client) error
		wantAfter int
	}{
		{"delete vertex", func(ctx context.Context, c *Client) error { return c.Delete(ctx, graph.VertexType, "3") }, 1},
		{"delete edge", func(ctx context.Context, c *Client) error { return c.Delete(ctx, graph.EdgeType, "13") }, 2},
		{"create edge", func(ctx context.Context, c *Client) error { _, err := c.CreateEdge(ctx, "1", "2"); return err }, 2},
		{"update edge", func(ctx context.Context, c *Client) error { return c.UpdateEdge(ctx, "12", "3") }, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			fc, err := cache.NewFileCache(t.TempDir())
			if err != nil {
				t.Fatal(err)
			}
			b := &editableBackend{deleted: map[string]bool{}}
			c := newTestClient(t, b, WithCache(fc, time.Hour))

			for range 2 {
				if _, err := c.Expand(ctx, "1"); err != nil {
					t.Fatal(err)
				}
			}
			if n := b.expands.Load(); n != 1 {
				t.Fatalf("backend expanded %d times before the edit, want 1", n)
			}

			if err := tt.edit(ctx, c); err != nil {
				t.Fatal(err)
			}
			got, err := c.Expand(ctx, "1")
			if err != nil {
				t.Fatal(err)
			}
			if n := b.expands.Load(); n != 2 {
				t.Errorf("backend expanded %d times after the edit, want 2", n)
			}
			if len(got.Vertices) != tt.wantAfter {
				t.Errorf("expand after edit = %d vertices, want %d", len(got.Vertices), tt.wantAfter)
			}
		})
	}
}

func TestDeleteVertexEvictsItsExpansion(t *testing.T) {
	ctx := context.Background()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	c := newTestClient(t, &editableBackend{deleted: map[string]bool{}}, WithCache(fc, time.Hour))
	key := c.keyer.ExpandKey(c.expand.String(), "3")
	if err := fc.Set(ctx, key, []byte(neighbourhood), time.Hour); err != nil {
		t.Fatal(err)
	}

	if err := c.Delete(ctx, graph.VertexType, "3"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := fc.Get(ctx, key); ok {
		t.Error("cached expansion of the deleted vertex survived")
	}
}

// brokenCache returns a corrupt entry and fails to delete it.
type brokenCache struct{ cache.Cache }

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return []byte("{"), true, nil
}

func (brokenCache) Delete(context.Context, string) error {
	return errors.New("read-only")
}

func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func TestExpandLogsFailedEviction(t *testing.T) {
	var logs bytes.Buffer
	logger := log.NewWithOptions(&logs, log.Options{Level: log.DebugLevel})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(neighbourhood))
	}), WithCache(brokenCache{}, time.Hour), WithLogger(logger))

	b, err := c.Expand(context.Background(), "1")
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Vertices) != 1 {
		t.Errorf("batch = %+v", b)
	}
	if !strings.Contains(logs.String(), "cache delete failed") || !strings.Contains(logs.String(), "read-only") {
		t.Errorf("eviction failure not logged: %s", logs.String())
	}
}

func TestExpandDecodeErrorHasContext(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>"))
	}))
	_, err := c.Expand(context.Background(), "1")
	if !gerrors.Is(err, gerrors.ErrCodeNetwork) {
		t.Fatalf("Expand() error = %v, want NETWORK_ERROR", err)
	}
	if !strings.Contains(err.Error(), "expand 1") {
		t.Errorf("Expand() error = %v, want the vertex in the message", err)
	}
}

func TestExpandErrors(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())

	tests := []struct {
		id   graph.ID
		code gerrors.Code
	}{
		{"42", gerrors.ErrCodeNotFound},
		{"", gerrors.ErrCodeInvalidID},
		{"../etc", gerrors.ErrCodeInvalidID},
	}
	for _, tt := range tests {
		if _, err := c.Expand(context.Background(), tt.id); !gerrors.Is(err, tt.code) {
			t.Errorf("Expand(%q) error = %v, want %s", tt.id, err, tt.code)
		}
	}
}

func TestCreateEdge(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantErr gerrors.Code
	}{
		{"accepted", `{"success":true,"edge":{"id":99,"label":"new","head_id":1,"tail_id":2}}`, ""},
		{"rejected", `{"success":false}`, gerrors.ErrCodeRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body map[string]string
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/vertices/createEdge" {
					t.Errorf("request = %s %s", r.Method, r.URL.Path)
				}
				json.NewDecoder(r.Body).Decode(&body)
				w.Write([]byte(tt.reply))
			}))

			e, err := c.CreateEdge(context.Background(), "1", "2")
			if body["from"] != "1" || body["to"] != "2" {
				t.Errorf("body = %v", body)
			}
			if tt.wantErr != "" {
				if !gerrors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %s", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if e.ID != "99" || e.Head != "1" || e.Tail != "2" {
				t.Errorf("edge = %+v", e)
			}
		})
	}
}

func TestUpdateEdge(t *testing.T) {
	var body map[string]string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"success":true}`))
	}))
	if err := c.UpdateEdge(context.Background(), "10", "3"); err != nil {
		t.Fatal(err)
	}
	if body["edgeId"] != "10" || body["newDestNodeId"] != "3" {
		t.Errorf("body = %v", body)
	}
}

func TestDelete(t *testing.T) {
	var paths []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/vertices/deleteEdge/11" {
			w.Write([]byte(`{"success":false}`))
			return
		}
		w.Write([]byte(`{"success":true}`))
	}))

	ctx := context.Background()
	if err := c.Delete(ctx, graph.VertexType, "7"); err != nil {
		t.Errorf("Delete(vertex) error = %v", err)
	}
	if err := c.Delete(ctx, graph.EdgeType, "11"); !gerrors.Is(err, gerrors.ErrCodeRejected) {
		t.Errorf("Delete(edge) error = %v, want REJECTED", err)
	}
	if err := c.Delete(ctx, "thing", "1"); !gerrors.Is(err, gerrors.ErrCodeInvalidInput) {
		t.Errorf("Delete(thing) error = %v", err)
	}
	want := []string{"/vertices/deleteVertex/7", "/vertices/deleteEdge/11"}
	if len(paths) != 2 || paths[0] != want[0] || paths[1] != want[1] {
		t.Errorf("paths = %v, want %v", paths, want)
	}
}

func TestFilter(t *testing.T) {
	var gotPath, gotFilter string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFilter = r.URL.Query().Get("filter")
		w.Write([]byte(`{"vertices":[{"id":1}],"edges":[]}`))
	}))

	seq := filter.NewSequence("hosts", "")
	seq.Add("label = host", "")
	res := filter.EvaluateOne(context.Background(), c, seq)
	if !res.Valid() {
		t.Fatalf("result = %+v", res)
	}
	if gotPath != "/filter/" || gotFilter != `[["label = host",null]]` {
		t.Errorf("request = %s ?filter=%s", gotPath, gotFilter)
	}
	if len(res.Matches.Vertices) != 1 || res.Matches.Vertices[0].ID != "1" {
		t.Errorf("matches = %+v", res.Matches)
	}
}

func TestList(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/vertices/list" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`[{"id":1,"name":"A","label":"host"}]`))
	}))
	got, err := c.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "1" || got[0].Name != "A" {
		t.Errorf("List() = %+v", got)
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New(Config{PageURL: "ftp://x"}); !gerrors.Is(err, gerrors.ErrCodeInvalidInput) {
		t.Errorf("New() error = %v", err)
	}
}
