package graph

import (
	"strings"

	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// LabelInfo describes one registered label.
type LabelInfo struct {
	Type  EntityType
	Label string
	Color string
	Tag   string
}

// labelRegistry keeps the labels seen per entity type in first-seen order,
// which is the order the toggle list is presented in.
type labelRegistry struct {
	byType map[EntityType]*linkedhashmap.Map
}

func newLabelRegistry() *labelRegistry {
	return &labelRegistry{byType: map[EntityType]*linkedhashmap.Map{
		VertexType: linkedhashmap.New(),
		EdgeType:   linkedhashmap.New(),
	}}
}

// register records label and returns its info; the first registration wins.
func (r *labelRegistry) register(t EntityType, label, color string) LabelInfo {
	m := r.byType[t]
	if v, ok := m.Get(label); ok {
		return v.(LabelInfo)
	}
	info := LabelInfo{Type: t, Label: label, Color: color, Tag: Tag(label)}
	m.Put(label, info)
	return info
}

func (r *labelRegistry) get(t EntityType, label string) (LabelInfo, bool) {
	v, ok := r.byType[t].Get(label)
	if !ok {
		return LabelInfo{}, false
	}
	return v.(LabelInfo), true
}

func (r *labelRegistry) list(t EntityType) []LabelInfo {
	m, ok := r.byType[t]
	if !ok {
		return nil
	}
	out := make([]LabelInfo, 0, m.Size())
	it := m.Iterator()
	for it.Next() {
		out = append(out, it.Value().(LabelInfo))
	}
	return out
}

// Tag renders a label as the bracketed upper-case marker used in info
// strings.
func Tag(label string) string {
	return "[" + strings.ToUpper(label) + "]"
}
