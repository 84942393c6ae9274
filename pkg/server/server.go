// Package server is a reference graph backend speaking the wire format the
// explorer expects.
//
// Routes:
//
//	GET  /vertices/{id}              vertex, neighbours and incident edges
//	GET  /vertices, /vertices/list   [{id, name, label}]
//	POST /vertices/createEdge        {from, to[, label]} -> {success, edge}
//	POST /vertices/updateEdge        {edgeId, newDestNodeId} -> {success}
//	GET  /vertices/deleteVertex/{id} {success}
//	GET  /vertices/deleteEdge/{id}   {success}
//	GET  /filter/?filter=<json>      {vertices, edges}
//
// The graph is held in memory. Edits are written through to sources that
// implement [source.Writer], and sources implementing [source.Watcher]
// trigger a reload when they change.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	gerrors "github.com/matzehuels/graphlens/pkg/errors"
	"github.com/matzehuels/graphlens/pkg/filter"
	"github.com/matzehuels/graphlens/pkg/graph"
	"github.com/matzehuels/graphlens/pkg/server/query"
	"github.com/matzehuels/graphlens/pkg/server/source"
)

// DefaultEdgeLabel labels created edges that carry no label.
const DefaultEdgeLabel = "edge"

// Server serves one dataset.
type Server struct {
	src    source.Source
	logger *log.Logger

	mu   sync.RWMutex
	data *dataset
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option { return func(s *Server) { s.logger = l } }

// New loads src and returns a server for it.
func New(ctx context.Context, src source.Source, opts ...Option) (*Server, error) {
	s := &Server{src: src, logger: log.Default()}
	for _, o := range opts {
		o(s)
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload replaces the served graph with a fresh load of the source.
func (s *Server) Reload(ctx context.Context) error {
	b, err := s.src.Load(ctx)
	if err != nil {
		return err
	}
	d := newDataset(b)
	s.mu.Lock()
	s.data = d
	s.mu.Unlock()
	s.logger.Info("dataset loaded", "vertices", len(d.vertices), "edges", len(d.edges))
	return nil
}

// Watch reloads on source changes until ctx ends. Sources that cannot
// report changes are not watched.
func (s *Server) Watch(ctx context.Context) error {
	w, ok := s.src.(source.Watcher)
	if !ok {
		return nil
	}
	return w.Watch(ctx, func() {
		if err := s.Reload(ctx); err != nil {
			s.logger.Warn("reload failed", "err", err)
		}
	})
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/vertices", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Get("/list", s.handleList)
		r.Post("/createEdge", s.handleCreateEdge)
		r.Post("/updateEdge", s.handleUpdateEdge)
		r.Get("/deleteVertex/{id}", s.handleDelete(graph.VertexType))
		r.Get("/deleteEdge/{id}", s.handleDelete(graph.EdgeType))
		r.Get("/{id}", s.handleVertex)
	})
	r.Get("/filter", s.handleFilter)
	r.Get("/filter/", s.handleFilter)
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "took", time.Since(start).Round(time.Microsecond))
	})
}

func (s *Server) handleVertex(w http.ResponseWriter, r *http.Request) {
	id := graph.ID(chi.URLParam(r, "id"))
	s.mu.RLock()
	b, ok := s.data.neighbourhood(id)
	s.mu.RUnlock()
	if !ok {
		writeError(w, gerrors.New(gerrors.ErrCodeNotFound, "vertex %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	l := s.data.list()
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, l)
}

type createEdgeRequest struct {
	From  graph.ID `json:"from"`
	To    graph.ID `json:"to"`
	Label string   `json:"label"`
}

type createEdgeResponse struct {
	Success bool              `json:"success"`
	Edge    *graph.EdgeRecord `json:"edge,omitempty"`
}

func (s *Server) handleCreateEdge(w http.ResponseWriter, r *http.Request) {
	var req createEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, gerrors.Wrap(gerrors.ErrCodeInvalidInput, err, "decode request"))
		return
	}
	if req.Label == "" {
		req.Label = DefaultEdgeLabel
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e := graph.EdgeRecord{ID: s.data.nextEdgeID(), Label: req.Label, Head: req.From, Tail: req.To, Properties: graph.Properties{}}
	if req.From == req.To || !s.data.putEdge(e) {
		writeJSON(w, http.StatusOK, createEdgeResponse{Success: false})
		return
	}
	if err := s.persist(func(wr source.Writer) error { return wr.PutEdge(r.Context(), e) }); err != nil {
		s.data.removeEdge(e.ID)
		writeError(w, err)
		return
	}
	s.logger.Info("edge created", "id", e.ID, "from", e.Head, "to", e.Tail)
	writeJSON(w, http.StatusOK, createEdgeResponse{Success: true, Edge: &e})
}

type updateEdgeRequest struct {
	EdgeID  graph.ID `json:"edgeId"`
	NewDest graph.ID `json:"newDestNodeId"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func (s *Server) handleUpdateEdge(w http.ResponseWriter, r *http.Request) {
	var req updateEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, gerrors.Wrap(gerrors.ErrCodeInvalidInput, err, "decode request"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.data.edges[req.EdgeID]
	if !ok || s.data.retarget(req.EdgeID, req.NewDest) != nil {
		writeJSON(w, http.StatusOK, successResponse{Success: false})
		return
	}
	e := s.data.edges[req.EdgeID]
	if err := s.persist(func(wr source.Writer) error { return wr.PutEdge(r.Context(), e) }); err != nil {
		s.data.putEdge(old)
		writeError(w, err)
		return
	}
	s.logger.Info("edge updated", "id", e.ID, "target", e.Tail)
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (s *Server) handleDelete(t graph.EntityType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := graph.ID(chi.URLParam(r, "id"))
		ctx := r.Context()

		s.mu.Lock()
		defer s.mu.Unlock()
		var ok bool
		var write func(source.Writer) error
		if t == graph.VertexType {
			_, ok = s.data.vertices[id]
			write = func(wr source.Writer) error { return wr.DeleteVertex(ctx, id) }
		} else {
			_, ok = s.data.edges[id]
			write = func(wr source.Writer) error { return wr.DeleteEdge(ctx, id) }
		}
		if !ok {
			writeJSON(w, http.StatusOK, successResponse{Success: false})
			return
		}
		if err := s.persist(write); err != nil {
			writeError(w, err)
			return
		}
		if t == graph.VertexType {
			s.data.removeVertex(id)
		} else {
			s.data.removeEdge(id)
		}
		s.logger.Info("deleted", "type", t, "id", id)
		writeJSON(w, http.StatusOK, successResponse{Success: true})
	}
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("filter")
	var terms []filter.Term
	if err := json.Unmarshal([]byte(raw), &terms); err != nil {
		writeError(w, gerrors.Wrap(gerrors.ErrCodeInvalidFilter, err, "decode filter"))
		return
	}
	chain, err := query.Compile(terms)
	if err != nil {
		writeError(w, err)
		return
	}
	s.mu.RLock()
	m := s.data.filter(chain)
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, m)
}

// persist runs fn against the source when it can store edits. Callers hold
// s.mu.
func (s *Server) persist(fn func(source.Writer) error) error {
	wr, ok := s.src.(source.Writer)
	if !ok {
		return nil
	}
	return fn(wr)
}

type errorResponse struct {
	Code    gerrors.Code `json:"code"`
	Message string       `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := gerrors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case gerrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case gerrors.ErrCodeInvalidInput, gerrors.ErrCodeInvalidFilter, gerrors.ErrCodeInvalidID:
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorResponse{Code: code, Message: gerrors.UserMessage(err)})
}

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdown)
}
