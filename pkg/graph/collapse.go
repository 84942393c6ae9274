package graph

// Collapse removes the provenance subtree hanging below id, keeping id
// itself. It works for the root and for any other materialized vertex.
//
// The sweep is a worklist seeded with id. For each popped id, every vertex
// and edge whose parent is that id is removed. A removed vertex queues its
// own id; a removed edge queues each endpoint that has a parent, so that a
// vertex reached through the collapsed branch is swept as well. The root, id
// and id's ancestors are never queued or removed, and every id is queued at
// most once, so malformed provenance cannot loop.
//
// Edges left without an endpoint by the sweep are removed too.
func (s *Store) Collapse(id ID) (Removal, error) {
	if _, ok := s.vertices[id]; !ok {
		return Removal{}, ErrNotFound
	}

	protected := map[ID]bool{id: true, s.root: true}
	for _, a := range s.Ancestors(id) {
		protected[a] = true
	}

	var r Removal
	visited := map[ID]bool{id: true}
	queue := []ID{id}
	enqueue := func(v ID) {
		if visited[v] || protected[v] {
			return
		}
		visited[v] = true
		queue = append(queue, v)
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, e := range s.Edges() {
			if e.Parent != cur {
				continue
			}
			for _, end := range []ID{e.Source, e.Target} {
				if v, ok := s.vertices[end]; ok && v.HasParent() {
					enqueue(end)
				}
			}
			s.removeEdge(e)
			r.Edges = append(r.Edges, e.ID)
		}

		for _, v := range s.Vertices() {
			if v.Parent != cur || protected[v.ID] {
				continue
			}
			enqueue(v.ID)
			s.detachVertex(v)
			r.Vertices = append(r.Vertices, v.ID)
		}
	}

	for _, e := range s.Edges() {
		if _, _, ok := s.Endpoints(e); !ok {
			s.removeEdge(e)
			r.Edges = append(r.Edges, e.ID)
		}
	}

	return r, nil
}

// detachVertex drops v without re-parenting: the sweep removes v's
// provenance children itself.
func (s *Store) detachVertex(v *Vertex) {
	delete(s.incident, v.ID)
	delete(s.vertices, v.ID)
}
