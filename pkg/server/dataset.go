package server

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/google/uuid"

	gerrors "github.com/matzehuels/graphlens/pkg/errors"
	"github.com/matzehuels/graphlens/pkg/graph"
	"github.com/matzehuels/graphlens/pkg/server/query"
)

// dataset is the served graph with adjacency indexes. It is not safe for
// concurrent use; Server guards it.
type dataset struct {
	vertices map[graph.ID]graph.VertexRecord
	edges    map[graph.ID]graph.EdgeRecord
	incident map[graph.ID][]graph.ID
	order    []graph.ID // vertex ids in load order
	eorder   []graph.ID
}

func newDataset(b graph.Batch) *dataset {
	d := &dataset{
		vertices: make(map[graph.ID]graph.VertexRecord, len(b.Vertices)),
		edges:    make(map[graph.ID]graph.EdgeRecord, len(b.Edges)),
		incident: make(map[graph.ID][]graph.ID),
	}
	for _, v := range b.Vertices {
		if _, dup := d.vertices[v.ID]; dup || v.ID == graph.None {
			continue
		}
		d.vertices[v.ID] = v
		d.order = append(d.order, v.ID)
	}
	for _, e := range b.Edges {
		d.putEdge(e)
	}
	return d
}

// putEdge adds or replaces an edge. Edges with unknown endpoints are
// ignored.
func (d *dataset) putEdge(e graph.EdgeRecord) bool {
	if _, ok := d.vertices[e.Head]; !ok {
		return false
	}
	if _, ok := d.vertices[e.Tail]; !ok {
		return false
	}
	if old, ok := d.edges[e.ID]; ok {
		d.unlink(old)
	} else {
		d.eorder = append(d.eorder, e.ID)
	}
	d.edges[e.ID] = e
	d.incident[e.Head] = append(d.incident[e.Head], e.ID)
	if e.Tail != e.Head {
		d.incident[e.Tail] = append(d.incident[e.Tail], e.ID)
	}
	return true
}

func (d *dataset) unlink(e graph.EdgeRecord) {
	for _, end := range []graph.ID{e.Head, e.Tail} {
		d.incident[end] = slices.DeleteFunc(d.incident[end], func(id graph.ID) bool { return id == e.ID })
	}
}

// neighbourhood returns the vertex, its neighbours and its incident edges,
// annotated with degree metadata.
func (d *dataset) neighbourhood(id graph.ID) (graph.Batch, bool) {
	v, ok := d.vertices[id]
	if !ok {
		return graph.Batch{}, false
	}
	b := graph.Batch{Vertices: []graph.VertexRecord{d.annotate(v)}}
	seen := map[graph.ID]bool{id: true}
	for _, eid := range d.incident[id] {
		e := d.edges[eid]
		b.Edges = append(b.Edges, e)
		for _, end := range []graph.ID{e.Head, e.Tail} {
			if !seen[end] {
				seen[end] = true
				b.Vertices = append(b.Vertices, d.annotate(d.vertices[end]))
			}
		}
	}
	return b, true
}

// annotate fills in_edge_count and out_edge_count unless the source set
// them.
func (d *dataset) annotate(v graph.VertexRecord) graph.VertexRecord {
	var in, out int
	for _, eid := range d.incident[v.ID] {
		e := d.edges[eid]
		if e.Tail == v.ID {
			in++
		}
		if e.Head == v.ID {
			out++
		}
	}
	meta := make(map[string]any, len(v.Metadata)+2)
	for k, val := range v.Metadata {
		meta[k] = val
	}
	if _, ok := meta["in_edge_count"]; !ok {
		meta["in_edge_count"] = in
	}
	if _, ok := meta["out_edge_count"]; !ok {
		meta["out_edge_count"] = out
	}
	v.Metadata = meta
	return v
}

// nextEdgeID continues numeric ids when every edge id is numeric and falls
// back to a UUID otherwise.
func (d *dataset) nextEdgeID() graph.ID {
	var top int64
	for id := range d.edges {
		n, err := strconv.ParseInt(id.String(), 10, 64)
		if err != nil {
			return graph.ID(uuid.NewString())
		}
		top = max(top, n)
	}
	for id := range d.vertices {
		if n, err := strconv.ParseInt(id.String(), 10, 64); err == nil {
			top = max(top, n)
		}
	}
	return graph.ID(strconv.FormatInt(top+1, 10))
}

func (d *dataset) removeVertex(id graph.ID) bool {
	if _, ok := d.vertices[id]; !ok {
		return false
	}
	for _, eid := range slices.Clone(d.incident[id]) {
		d.removeEdge(eid)
	}
	delete(d.vertices, id)
	delete(d.incident, id)
	d.order = slices.DeleteFunc(d.order, func(v graph.ID) bool { return v == id })
	return true
}

func (d *dataset) removeEdge(id graph.ID) bool {
	e, ok := d.edges[id]
	if !ok {
		return false
	}
	d.unlink(e)
	delete(d.edges, id)
	d.eorder = slices.DeleteFunc(d.eorder, func(v graph.ID) bool { return v == id })
	return true
}

func (d *dataset) retarget(edgeID, dest graph.ID) error {
	e, ok := d.edges[edgeID]
	if !ok {
		return gerrors.New(gerrors.ErrCodeNotFound, "edge %s not found", edgeID)
	}
	if _, ok := d.vertices[dest]; !ok {
		return gerrors.New(gerrors.ErrCodeNotFound, "vertex %s not found", dest)
	}
	e.Tail = dest
	d.putEdge(e)
	return nil
}

// summary is one row of the vertex list.
type summary struct {
	ID    graph.ID `json:"id"`
	Name  string   `json:"name"`
	Label string   `json:"label"`
}

func (d *dataset) list() []summary {
	out := make([]summary, 0, len(d.order))
	for _, id := range d.order {
		v := d.vertices[id]
		name := id.String()
		if n, ok := v.Properties["name"]; ok {
			name = fmt.Sprint(n)
		}
		out = append(out, summary{ID: id, Name: name, Label: v.Label})
	}
	return out
}

type match struct {
	ID    graph.ID `json:"id"`
	Label string   `json:"label,omitempty"`
}

type matches struct {
	Vertices []match `json:"vertices"`
	Edges    []match `json:"edges"`
}

func (d *dataset) filter(c *query.Chain) matches {
	m := matches{Vertices: []match{}, Edges: []match{}}
	for _, id := range d.order {
		v := d.vertices[id]
		if c.Match(query.Entity{ID: v.ID, Label: v.Label, Properties: v.Properties}) {
			m.Vertices = append(m.Vertices, match{ID: v.ID, Label: v.Label})
		}
	}
	for _, id := range d.eorder {
		e := d.edges[id]
		if c.Match(query.Entity{ID: e.ID, Label: e.Label, Properties: e.Properties}) {
			m.Edges = append(m.Edges, match{ID: e.ID, Label: e.Label})
		}
	}
	return m
}
