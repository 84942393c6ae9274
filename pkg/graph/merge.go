package graph

// Diff holds the entities a merge newly materialized, in batch order.
type Diff struct {
	Vertices []*Vertex
	Edges    []*Edge

	// Dropped counts edges skipped because an endpoint was not materialized.
	Dropped int
}

// Empty reports whether the merge added nothing.
func (d Diff) Empty() bool { return len(d.Vertices) == 0 && len(d.Edges) == 0 }

// Counts returns the number of added vertices and edges.
func (d Diff) Counts() Counts {
	return Counts{Vertices: len(d.Vertices), Edges: len(d.Edges)}
}

// Merge folds batch into the store. Ids already present are left untouched,
// so the first merge that introduces an entity fixes its provenance. New
// entities get provenance as their parent, except a vertex whose id equals
// provenance, which gets none.
//
// Vertices merge before edges. An edge whose head or tail is not
// materialized after the vertex pass is skipped and counted in
// [Diff.Dropped].
func (s *Store) Merge(batch Batch, provenance ID) Diff {
	var d Diff

	for _, rec := range batch.Vertices {
		if rec.ID == None {
			continue
		}
		if _, ok := s.vertices[rec.ID]; ok {
			continue
		}
		border := s.palette.Color(rec.Label)
		v := &Vertex{
			ID:           rec.ID,
			Label:        rec.Label,
			Name:         displayName(rec.ID, rec.Properties),
			InDegree:     parseCount(rec.Metadata["in_edge_count"]),
			OutDegree:    parseCount(rec.Metadata["out_edge_count"]),
			BorderColor:  border,
			Color:        Lighten(border, 0.3),
			Parent:       provenance,
			Properties:   rec.Properties,
			VisibleEdges: make(map[ID]struct{}),
			Visible:      true,
			seq:          s.nextSeq(),
		}
		if v.Parent == v.ID {
			v.Parent = None
		}
		v.Info = vertexInfo(v)
		s.labels.register(VertexType, v.Label, border)
		s.vertices[v.ID] = v
		d.Vertices = append(d.Vertices, v)
	}

	for _, rec := range batch.Edges {
		if rec.ID == None {
			continue
		}
		if _, ok := s.edges[rec.ID]; ok {
			continue
		}
		src, ok1 := s.vertices[rec.Head]
		dst, ok2 := s.vertices[rec.Tail]
		if !ok1 || !ok2 {
			d.Dropped++
			continue
		}
		e := &Edge{
			ID:         rec.ID,
			Label:      rec.Label,
			Source:     src.ID,
			Target:     dst.ID,
			Parent:     provenance,
			Color:      EdgeColor,
			Properties: rec.Properties,
			Visible:    true,
			seq:        s.nextSeq(),
		}
		e.Info = edgeInfo(e, src, dst)
		s.labels.register(EdgeType, e.Label, EdgeColor)
		s.edges[e.ID] = e
		s.link(e.Source, e.ID)
		s.link(e.Target, e.ID)
		d.Edges = append(d.Edges, e)
	}

	return d
}
