package graph

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// ID is an opaque, backend-assigned identifier. Backends send ids either as
// JSON numbers or strings; both decode to the same ID.
type ID string

// None is the zero ID, used for "no provenance parent".
const None ID = ""

// String implements fmt.Stringer.
func (id ID) String() string { return string(id) }

// IsZero reports whether id is empty.
func (id ID) IsZero() bool { return id == None }

// UnmarshalJSON accepts strings, numbers and null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*id = None
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(b), 64); err != nil {
		return fmt.Errorf("graph: id must be a string or number, got %s", b)
	}
	*id = ID(b)
	return nil
}

// UnmarshalYAML accepts any scalar.
func (id *ID) UnmarshalYAML(n *yaml.Node) error {
	*id = ID(n.Value)
	return nil
}

// EntityType distinguishes vertices from edges. Ids and labels are scoped
// per entity type.
type EntityType string

const (
	VertexType EntityType = "vertex"
	EdgeType   EntityType = "edge"
)

// Properties is the opaque backend payload attached to vertices and edges.
type Properties map[string]any

// VertexRecord is a vertex as the backend sends it.
type VertexRecord struct {
	ID         ID             `json:"id" yaml:"id" bson:"id"`
	Label      string         `json:"label" yaml:"label" bson:"label"`
	Properties Properties     `json:"properties,omitempty" yaml:"properties,omitempty" bson:"properties,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty" bson:"metadata,omitempty"`
}

// EdgeRecord is an edge as the backend sends it. Head is the source and Tail
// the target.
type EdgeRecord struct {
	ID         ID         `json:"id" yaml:"id" bson:"id"`
	Label      string     `json:"label" yaml:"label" bson:"label"`
	Head       ID         `json:"head_id" yaml:"head_id" bson:"head_id"`
	Tail       ID         `json:"tail_id" yaml:"tail_id" bson:"tail_id"`
	Properties Properties `json:"properties,omitempty" yaml:"properties,omitempty" bson:"properties,omitempty"`
}

// Batch is one fetch response: the unit of merging.
type Batch struct {
	Vertices []VertexRecord `json:"vertices" yaml:"vertices" bson:"vertices"`
	Edges    []EdgeRecord   `json:"edges" yaml:"edges" bson:"edges"`
}

// Empty reports whether the batch carries nothing.
func (b Batch) Empty() bool { return len(b.Vertices) == 0 && len(b.Edges) == 0 }

// Vertex is a materialized vertex. Position fields (X, Y, PX, PY) belong to
// the layout; Visible, Shown and VisibleEdges belong to the visibility
// engine. Everything else is fixed at merge time.
type Vertex struct {
	ID          ID
	Label       string
	Name        string
	InDegree    int
	OutDegree   int
	Color       string
	BorderColor string
	Parent      ID
	Properties  Properties
	Info        string

	Visible      bool
	Shown        bool
	VisibleEdges map[ID]struct{}

	Fixed  bool
	Clean  bool
	X, Y   float64
	PX, PY float64

	seq uint64
}

// HasParent reports whether the vertex has a provenance parent.
func (v *Vertex) HasParent() bool { return v.Parent != None }

// Degree is the larger of the in and out degree.
func (v *Vertex) Degree() int { return max(v.InDegree, v.OutDegree) }

// Edge is a materialized edge. Source and Target resolve through the Store.
type Edge struct {
	ID         ID
	Label      string
	Source     ID
	Target     ID
	Parent     ID
	Color      string
	Properties Properties
	Info       string
	Visible    bool

	seq uint64
}

// EntityRef names one vertex or edge.
type EntityRef struct {
	Type EntityType
	ID   ID
}

// Removal lists the entities deleted by one removal operation.
type Removal struct {
	Vertices []ID
	Edges    []ID
}

// Counts summarises a Removal or Diff for reporting.
type Counts struct {
	Vertices int
	Edges    int
}

// Counts returns the number of removed vertices and edges.
func (r Removal) Counts() Counts {
	return Counts{Vertices: len(r.Vertices), Edges: len(r.Edges)}
}

// Empty reports whether nothing was removed.
func (r Removal) Empty() bool { return len(r.Vertices) == 0 && len(r.Edges) == 0 }

// parseCount converts a metadata degree value. Missing or non-numeric
// values yield 0; numeric strings are read up to the first non-digit and
// fractional numbers are truncated.
func parseCount(v any) int {
	var n int
	switch x := v.(type) {
	case int:
		n = x
	case int32:
		n = int(x)
	case int64:
		n = int(x)
	case float64:
		n = int(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			n = int(i)
		} else if f, err := x.Float64(); err == nil {
			n = int(f)
		}
	case string:
		n = leadingInt(x)
	}
	return max(n, 0)
}

func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
