package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/goccy/go-json"
)

// FormatProperties renders properties as "key: value" pairs in key order.
// Nested maps and slices are JSON-encoded.
func FormatProperties(p Properties) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+formatValue(p[k]))
	}
	return strings.Join(parts, ", ")
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case map[string]any, []any, Properties:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
	return fmt.Sprint(v)
}

func vertexInfo(v *Vertex) string {
	return fmt.Sprintf("%s %s {%s}", Tag(v.Label), v.ID, FormatProperties(v.Properties))
}

func edgeInfo(e *Edge, src, dst *Vertex) string {
	return fmt.Sprintf("(%s) %s → (%s) {%s}", src.Name, Tag(e.Label), dst.Name, FormatProperties(e.Properties))
}

// displayName picks properties.name when present, falling back to the id.
func displayName(id ID, p Properties) string {
	switch n := p["name"].(type) {
	case nil:
	case string:
		if n != "" {
			return n
		}
	default:
		return formatValue(n)
	}
	return string(id)
}
