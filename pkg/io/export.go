package io

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	gerrors "github.com/matzehuels/graphlens/pkg/errors"
	"github.com/matzehuels/graphlens/pkg/graph"
)

// Export returns the shown vertices of s and the visible edges between
// them as a batch. Vertex metadata carries the degrees the backend
// reported, so a re-served export keeps them.
func Export(s *graph.Store) graph.Batch {
	b := graph.Batch{Vertices: []graph.VertexRecord{}, Edges: []graph.EdgeRecord{}}
	shown := make(map[graph.ID]bool)
	for _, v := range s.Vertices() {
		if !v.Shown {
			continue
		}
		shown[v.ID] = true
		b.Vertices = append(b.Vertices, graph.VertexRecord{
			ID:         v.ID,
			Label:      v.Label,
			Properties: v.Properties,
			Metadata: map[string]any{
				"in_edge_count":  v.InDegree,
				"out_edge_count": v.OutDegree,
			},
		})
	}
	for _, e := range s.Edges() {
		if !e.Visible || !shown[e.Source] || !shown[e.Target] {
			continue
		}
		b.Edges = append(b.Edges, graph.EdgeRecord{
			ID: e.ID, Label: e.Label, Head: e.Source, Tail: e.Target, Properties: e.Properties,
		})
	}
	return b
}

// Codec is a file encoding.
type Codec string

const (
	JSON Codec = "json"
	YAML Codec = "yaml"
)

// Write encodes b to w.
func Write(w io.Writer, b graph.Batch, c Codec) error {
	switch c {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(b); err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		return nil
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(b); err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		return enc.Close()
	}
	return gerrors.New(gerrors.ErrCodeUnsupported, "unknown codec %q", c)
}

// WriteFile writes b to path in the codec its extension names.
func WriteFile(path string, b graph.Batch) error {
	c, err := CodecFor(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(f, b, c); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
