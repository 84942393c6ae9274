package io

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	gerrors "github.com/matzehuels/graphlens/pkg/errors"
	"github.com/matzehuels/graphlens/pkg/graph"
	"github.com/matzehuels/graphlens/pkg/visibility"
)

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"g.json": `{"vertices":[{"id":1,"label":"host"},{"id":"b","label":"db"}],"edges":[{"id":7,"label":"q","head_id":1,"tail_id":"b"}]}`,
		"g.yaml": "vertices:\n  - {id: 1, label: host}\n  - {id: b, label: db}\nedges:\n  - {id: 7, label: q, head_id: 1, tail_id: b}\n",
	}
	for name, body := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
			b, err := ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if len(b.Vertices) != 2 || len(b.Edges) != 1 {
				t.Fatalf("batch = %+v", b)
			}
			if e := b.Edges[0]; e.ID != "7" || e.Head != "1" || e.Tail != "b" {
				t.Errorf("edge = %+v", e)
			}
		})
	}
}

func TestReadFileErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	tests := []struct {
		name string
		path string
		code gerrors.Code
	}{
		{"missing", filepath.Join(dir, "nope.json"), gerrors.ErrCodeNotFound},
		{"extension", write("g.txt", "{}"), gerrors.ErrCodeUnsupported},
		{"malformed", write("bad.json", "{"), gerrors.ErrCodeInvalidInput},
		{"duplicate", write("dup.json", `{"vertices":[{"id":1},{"id":1}],"edges":[]}`), gerrors.ErrCodeInvalidInput},
		{"dangling", write("dangle.json", `{"vertices":[{"id":1}],"edges":[{"id":2,"head_id":1,"tail_id":9}]}`), gerrors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadFile(tt.path); !gerrors.Is(err, tt.code) {
				t.Errorf("ReadFile() error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestExportRoundTrip(t *testing.T) {
	s, err := graph.NewStore("1")
	if err != nil {
		t.Fatal(err)
	}
	s.Merge(graph.Batch{
		Vertices: []graph.VertexRecord{
			{ID: "1", Label: "host", Properties: graph.Properties{"name": "gateway"}},
			{ID: "2", Label: "host"},
			{ID: "3", Label: "db"},
		},
		Edges: []graph.EdgeRecord{
			{ID: "10", Label: "conn", Head: "1", Tail: "2"},
			{ID: "11", Label: "conn", Head: "1", Tail: "3"},
		},
	}, "1")
	toggles := visibility.NewToggles()
	toggles.Set(graph.VertexType, "db", false)
	visibility.NewEngine(toggles).Recompute(s)

	b := Export(s)
	if len(b.Vertices) != 2 || len(b.Edges) != 1 {
		t.Fatalf("Export() = %+v, want the hidden db vertex and its edge dropped", b)
	}

	for _, c := range []Codec{JSON, YAML} {
		var buf bytes.Buffer
		if err := Write(&buf, b, c); err != nil {
			t.Fatal(err)
		}
		got, err := Read(&buf, c)
		if err != nil {
			t.Fatal(err)
		}
		if err := Validate(got); err != nil {
			t.Errorf("%s: exported batch invalid: %v", c, err)
		}
		if got.Vertices[0].Properties["name"] != "gateway" || got.Edges[0].Tail != "2" {
			t.Errorf("%s: round trip lost data: %+v", c, got)
		}
	}
}
