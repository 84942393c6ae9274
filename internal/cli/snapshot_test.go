package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/graphlens/pkg/graph"
	gio "github.com/matzehuels/graphlens/pkg/io"
)

func TestSnapshotCommand(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	page := startBackend(t)
	out := filepath.Join(t.TempDir(), "net.dot")

	var logs bytes.Buffer
	root := New(&logs, LogInfo).RootCommand()
	root.SetArgs([]string{
		"snapshot", "--url", page, "--no-cache",
		"-e", "2", "--hide", "vertex:db",
		"--filter", "name ~ '^web'", "--highlight", "orange",
		"--ticks", "20", "-o", out,
	})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	dot := string(data)
	for _, want := range []string{`"1" [label="gateway"`, `"2" [label="web-1"`, `color="orange"`, `pos="`} {
		if !strings.Contains(dot, want) {
			t.Errorf("snapshot missing %s:\n%s", want, dot)
		}
	}
	if strings.Contains(dot, `"3" [`) {
		t.Errorf("hidden db vertex rendered:\n%s", dot)
	}
	if !strings.Contains(logs.String(), "snapshot written") {
		t.Errorf("no completion log: %s", logs.String())
	}
}

func TestSnapshotCommandExport(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	page := startBackend(t)
	out := filepath.Join(t.TempDir(), "net.yaml")

	root := New(&bytes.Buffer{}, LogInfo).RootCommand()
	root.SetArgs([]string{"snapshot", "--url", page, "--no-cache", "-e", "2", "-o", out})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}

	b, err := gio.ReadFile(out)
	if err != nil {
		t.Fatalf("exported dataset does not load: %v", err)
	}
	if len(b.Vertices) != 4 || len(b.Edges) != 3 {
		t.Errorf("export = %d vertices, %d edges, want 4 and 3", len(b.Vertices), len(b.Edges))
	}
}

func TestSnapshotCommandErrors(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	tests := []struct {
		name string
		args []string
	}{
		{"no url", []string{"snapshot", "-o", "g.svg"}},
		{"bad format", []string{"snapshot", "--url", "http://localhost:1/vertices/1", "-o", "g.pdf"}},
		{"bad hide", []string{"snapshot", "--url", "http://localhost:1/vertices/1", "--hide", "node:db", "-o", "g.dot"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			root := New(&logs, LogInfo).RootCommand()
			root.SetArgs(tt.args)
			root.SetErr(&logs)
			if err := root.Execute(); err == nil {
				t.Error("Execute() succeeded")
			}
		})
	}
}

func TestParseLabelRefs(t *testing.T) {
	refs, err := parseLabelRefs([]string{"db", "edge:conn", "vertex:host"})
	if err != nil {
		t.Fatal(err)
	}
	want := []graph.EntityRef{
		{Type: graph.VertexType, ID: "db"},
		{Type: graph.EdgeType, ID: "conn"},
		{Type: graph.VertexType, ID: "host"},
	}
	for i, r := range refs {
		if r != want[i] {
			t.Errorf("refs[%d] = %+v, want %+v", i, r, want[i])
		}
	}
	for _, bad := range []string{"node:db", "edge:"} {
		if _, err := parseLabelRefs([]string{bad}); err == nil {
			t.Errorf("parseLabelRefs(%q) succeeded", bad)
		}
	}
}
