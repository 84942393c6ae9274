package graph

import (
	"cmp"
	"errors"
	"slices"

	gerrors "github.com/matzehuels/graphlens/pkg/errors"
)

var (
	// ErrRootProtected is returned when an operation would remove the root.
	ErrRootProtected = gerrors.Sentinel(gerrors.ErrCodeRootProtected)

	// ErrNotFound is returned for ids that are not materialized.
	ErrNotFound = gerrors.Sentinel(gerrors.ErrCodeNotFound)

	// ErrEmptyRoot is returned by [NewStore] callers that pass an empty root.
	ErrEmptyRoot = errors.New("graph: root id must not be empty")
)

// Store is the canonical, id-keyed set of materialized vertices and edges
// around a single root vertex. Edges reference their endpoints by id.
//
// A Store is not safe for concurrent use; callers serialise access.
type Store struct {
	root     ID
	vertices map[ID]*Vertex
	edges    map[ID]*Edge
	incident map[ID]map[ID]struct{}
	labels   *labelRegistry
	palette  *Palette
	seq      uint64
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithPalette replaces the default category10 label palette.
func WithPalette(colors []string) StoreOption {
	return func(s *Store) { s.palette = NewPalette(colors) }
}

// NewStore returns an empty store anchored at root. The root vertex itself
// is materialized by the first merge that contains it.
func NewStore(root ID, opts ...StoreOption) (*Store, error) {
	if root == None {
		return nil, ErrEmptyRoot
	}
	s := &Store{
		root:     root,
		vertices: make(map[ID]*Vertex),
		edges:    make(map[ID]*Edge),
		incident: make(map[ID]map[ID]struct{}),
		labels:   newLabelRegistry(),
		palette:  NewPalette(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the root vertex id.
func (s *Store) Root() ID { return s.root }

// IsRoot reports whether id is the root vertex.
func (s *Store) IsRoot(id ID) bool { return id == s.root }

// Vertex returns the vertex with the given id.
func (s *Store) Vertex(id ID) (*Vertex, bool) {
	v, ok := s.vertices[id]
	return v, ok
}

// Edge returns the edge with the given id.
func (s *Store) Edge(id ID) (*Edge, bool) {
	e, ok := s.edges[id]
	return e, ok
}

// Len returns the number of materialized vertices and edges.
func (s *Store) Len() Counts {
	return Counts{Vertices: len(s.vertices), Edges: len(s.edges)}
}

// Vertices returns all vertices in merge order.
func (s *Store) Vertices() []*Vertex {
	out := make([]*Vertex, 0, len(s.vertices))
	for _, v := range s.vertices {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b *Vertex) int { return cmp.Compare(a.seq, b.seq) })
	return out
}

// Edges returns all edges in merge order.
func (s *Store) Edges() []*Edge {
	out := make([]*Edge, 0, len(s.edges))
	for _, e := range s.edges {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b *Edge) int { return cmp.Compare(a.seq, b.seq) })
	return out
}

// Endpoints resolves an edge's source and target vertices.
func (s *Store) Endpoints(e *Edge) (src, dst *Vertex, ok bool) {
	src, ok1 := s.vertices[e.Source]
	dst, ok2 := s.vertices[e.Target]
	return src, dst, ok1 && ok2
}

// IncidentEdges returns the edges touching vertex id in merge order.
func (s *Store) IncidentEdges(id ID) []*Edge {
	set := s.incident[id]
	out := make([]*Edge, 0, len(set))
	for eid := range set {
		out = append(out, s.edges[eid])
	}
	slices.SortFunc(out, func(a, b *Edge) int { return cmp.Compare(a.seq, b.seq) })
	return out
}

// Children returns the vertices and edges whose provenance parent is id.
func (s *Store) Children(id ID) ([]*Vertex, []*Edge) {
	var vs []*Vertex
	var es []*Edge
	for _, v := range s.Vertices() {
		if v.Parent == id {
			vs = append(vs, v)
		}
	}
	for _, e := range s.Edges() {
		if e.Parent == id {
			es = append(es, e)
		}
	}
	return vs, es
}

// Ancestors returns the provenance chain above id, nearest first. The walk
// stops at a missing vertex or a repeated id.
func (s *Store) Ancestors(id ID) []ID {
	var out []ID
	seen := map[ID]bool{id: true}
	v, ok := s.vertices[id]
	for ok && v.HasParent() && !seen[v.Parent] {
		seen[v.Parent] = true
		out = append(out, v.Parent)
		v, ok = s.vertices[v.Parent]
	}
	return out
}

// Labels returns the labels registered for t in first-seen order.
func (s *Store) Labels(t EntityType) []LabelInfo { return s.labels.list(t) }

// Label returns the registered info for one label.
func (s *Store) Label(t EntityType, label string) (LabelInfo, bool) {
	return s.labels.get(t, label)
}

// RemoveVertex removes every edge incident to id and then the vertex itself.
// Vertices and edges whose provenance parent was id are re-parented to id's
// own parent (or the root) so every provenance chain still reaches the root.
func (s *Store) RemoveVertex(id ID) (Removal, error) {
	if s.IsRoot(id) {
		return Removal{}, gerrors.New(gerrors.ErrCodeRootProtected, "cannot remove centre vertex %s", id)
	}
	v, ok := s.vertices[id]
	if !ok {
		return Removal{}, gerrors.New(gerrors.ErrCodeNotFound, "vertex %s is not materialized", id)
	}

	var r Removal
	for _, e := range s.IncidentEdges(id) {
		s.removeEdge(e)
		r.Edges = append(r.Edges, e.ID)
	}

	s.removeVertex(v)
	r.Vertices = append(r.Vertices, id)
	return r, nil
}

// RemoveEdge removes a single edge.
func (s *Store) RemoveEdge(id ID) (Removal, error) {
	e, ok := s.edges[id]
	if !ok {
		return Removal{}, gerrors.New(gerrors.ErrCodeNotFound, "edge %s is not materialized", id)
	}
	s.removeEdge(e)
	return Removal{Edges: []ID{id}}, nil
}

// RemoveEntities removes the listed vertices and edges. Vertices take their
// incident edges with them. The root is refused; unknown ids are ignored.
func (s *Store) RemoveEntities(r Removal) (Removal, error) {
	if slices.Contains(r.Vertices, s.root) {
		return Removal{}, gerrors.New(gerrors.ErrCodeRootProtected, "cannot remove centre vertex %s", s.root)
	}
	var out Removal
	for _, id := range r.Edges {
		if e, ok := s.edges[id]; ok {
			s.removeEdge(e)
			out.Edges = append(out.Edges, id)
		}
	}
	for _, id := range r.Vertices {
		v, ok := s.vertices[id]
		if !ok {
			continue
		}
		for _, e := range s.IncidentEdges(id) {
			s.removeEdge(e)
			out.Edges = append(out.Edges, e.ID)
		}
		s.removeVertex(v)
		out.Vertices = append(out.Vertices, id)
	}
	return out, nil
}

// RetargetEdge points an edge at a new target vertex.
func (s *Store) RetargetEdge(id, target ID) error {
	e, ok := s.edges[id]
	if !ok {
		return gerrors.New(gerrors.ErrCodeNotFound, "edge %s is not materialized", id)
	}
	dst, ok := s.vertices[target]
	if !ok {
		return gerrors.New(gerrors.ErrCodeNotFound, "vertex %s is not materialized", target)
	}
	if e.Target == target {
		return nil
	}
	if e.Target != e.Source {
		delete(s.incident[e.Target], id)
	}
	if old, ok := s.vertices[e.Target]; ok {
		delete(old.VisibleEdges, id)
	}
	e.Target = target
	s.link(target, id)
	if src, ok := s.vertices[e.Source]; ok {
		e.Info = edgeInfo(e, src, dst)
	}
	return nil
}

func (s *Store) link(vertex, edge ID) {
	set, ok := s.incident[vertex]
	if !ok {
		set = make(map[ID]struct{})
		s.incident[vertex] = set
	}
	set[edge] = struct{}{}
}

func (s *Store) removeEdge(e *Edge) {
	for _, end := range []ID{e.Source, e.Target} {
		delete(s.incident[end], e.ID)
		if v, ok := s.vertices[end]; ok {
			delete(v.VisibleEdges, e.ID)
		}
	}
	delete(s.edges, e.ID)
}

// removeVertex drops v and hands its provenance children to v's parent, or
// to the root when v had none.
func (s *Store) removeVertex(v *Vertex) {
	delete(s.incident, v.ID)
	delete(s.vertices, v.ID)

	heir := v.Parent
	if heir == None {
		heir = s.root
	}
	for _, c := range s.vertices {
		if c.Parent == v.ID {
			c.Parent = heir
		}
	}
	for _, e := range s.edges {
		if e.Parent == v.ID {
			e.Parent = heir
		}
	}
}

func (s *Store) nextSeq() uint64 {
	s.seq++
	return s.seq
}
