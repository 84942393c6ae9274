package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/matzehuels/graphlens/pkg/graph"
	"github.com/matzehuels/graphlens/pkg/layout"
)

// pointsPerInch converts layout pixels to Graphviz inches.
const pointsPerInch = 72.0

// Options configures DOT output.
type Options struct {
	// Positions pins every vertex at its layout coordinates.
	Positions bool

	// Detailed adds the info string as a tooltip and labels edges.
	Detailed bool

	// Highlight outlines the listed entities in the given colour, for
	// example the matches of a filter.
	Highlight map[graph.EntityRef]string
}

// ToDOT converts the shown entities of s to Graphviz DOT.
func ToDOT(s *graph.Store, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=circle, style=filled, fixedsize=true, fontsize=10, fontname=\"Helvetica\"];\n")
	buf.WriteString("  edge [arrowsize=0.6, fontsize=8, fontname=\"Helvetica\"];\n")
	if opts.Positions {
		buf.WriteString("  splines=true;\n")
	}
	buf.WriteString("\n")

	shown := make(map[graph.ID]bool)
	for _, v := range s.Vertices() {
		if !v.Shown {
			continue
		}
		shown[v.ID] = true
		fmt.Fprintf(&buf, "  %q [%s];\n", v.ID, strings.Join(vertexAttrs(s, v, opts), ", "))
	}

	buf.WriteString("\n")
	for _, e := range s.Edges() {
		if !e.Visible || !shown[e.Source] || !shown[e.Target] {
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q [%s];\n", e.Source, e.Target, strings.Join(edgeAttrs(e, opts), ", "))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func vertexAttrs(s *graph.Store, v *graph.Vertex, opts Options) []string {
	d := 2 * layout.Radius(v) / pointsPerInch
	attrs := []string{
		fmt.Sprintf("label=%q", v.Name),
		fmt.Sprintf("width=%.3f", d),
		fmt.Sprintf("fillcolor=%q", v.Color),
		fmt.Sprintf("color=%q", v.BorderColor),
	}
	if s.IsRoot(v.ID) {
		attrs = append(attrs, "penwidth=3")
	}
	if c, ok := opts.Highlight[graph.EntityRef{Type: graph.VertexType, ID: v.ID}]; ok {
		attrs = append(attrs, fmt.Sprintf("color=%q", c), "penwidth=3")
	}
	if opts.Positions {
		// Graphviz puts y up; the canvas puts it down.
		attrs = append(attrs, fmt.Sprintf("pos=\"%.3f,%.3f!\"", v.X/pointsPerInch, -v.Y/pointsPerInch))
	}
	if opts.Detailed {
		attrs = append(attrs, fmt.Sprintf("tooltip=%q", v.Info))
	}
	return attrs
}

func edgeAttrs(e *graph.Edge, opts Options) []string {
	attrs := []string{fmt.Sprintf("color=%q", e.Color)}
	if c, ok := opts.Highlight[graph.EntityRef{Type: graph.EdgeType, ID: e.ID}]; ok {
		attrs = append(attrs, fmt.Sprintf("color=%q", c), "penwidth=2")
	}
	if opts.Detailed {
		attrs = append(attrs, fmt.Sprintf("label=%q", graph.Tag(e.Label)), fmt.Sprintf("tooltip=%q", e.Info))
	}
	return attrs
}
