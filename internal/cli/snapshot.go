package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	gerrors "github.com/matzehuels/graphlens/pkg/errors"
	"github.com/matzehuels/graphlens/pkg/explore"
	"github.com/matzehuels/graphlens/pkg/filter"
	"github.com/matzehuels/graphlens/pkg/graph"
	gio "github.com/matzehuels/graphlens/pkg/io"
	"github.com/matzehuels/graphlens/pkg/render"
)

// defaultTicks bounds the layout steps run before a snapshot.
const defaultTicks = 300

// snapshotCommand creates the "snapshot" command.
func (c *CLI) snapshotCommand() *cobra.Command {
	var (
		flags     backendFlags
		expand    []string
		hide      []string
		filters   []string
		highlight string
		output    string
		format    string
		ticks     int
		detailed  bool
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Render the explored graph to DOT, SVG or PNG, or export it",
		Long: `Bootstrap a graph, expand the given vertices, run the layout and render
the shown vertices and edges with Graphviz.

A .json or .yaml output exports the shown graph as a dataset that
"graphlens serve" can load.`,
		Example: `  graphlens snapshot -u http://localhost:8080/vertices/1 -e 2 -e 4 -o net.svg
  graphlens snapshot --hide vertex:db --filter "label = host" -o hosts.png
  graphlens snapshot -e 2 -o subgraph.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			var err error

			if format == "" {
				format = strings.TrimPrefix(filepath.Ext(output), ".")
			}
			export := isExportFormat(format)
			var fmtOut render.Format
			if !export {
				if fmtOut, err = render.ParseFormat(format); err != nil {
					return err
				}
			}
			hidden, err := parseLabelRefs(hide)
			if err != nil {
				return err
			}

			sess, err := c.openSession(ctx, &flags)
			if err != nil {
				return err
			}
			defer sess.Close()

			spinner := newSpinnerWithContext(ctx, "Exploring "+sess.cfg.PageURL)
			spinner.Start()
			prog := newProgress(logger)

			ex, err := explore.New(ctx, sess.client, c.explorerOptions(sess.cfg)...)
			if err != nil {
				spinner.StopWithError("Bootstrap failed")
				return err
			}
			for _, id := range expand {
				if _, err := ex.Expand(ctx, graph.ID(id)); err != nil {
					spinner.StopWithError("Expand " + id + " failed")
					return err
				}
			}
			for _, ref := range hidden {
				ex.SetVisible(ref.Type, string(ref.ID), false)
			}
			for i := 0; i < ticks && ex.Tick(); i++ {
			}

			opts := render.Options{Positions: ticks > 0, Detailed: detailed}
			if len(filters) > 0 {
				opts.Highlight, err = evaluateHighlight(ctx, ex, sess.client, filters, highlight)
				if err != nil {
					spinner.StopWithError("Filter failed")
					return err
				}
			}

			if export {
				err = exportSnapshot(ex, output)
			} else {
				err = writeSnapshot(ctx, ex, output, fmtOut, opts)
			}
			if err != nil {
				spinner.StopWithError("Render failed")
				return err
			}
			spinner.Stop()
			prog.done("snapshot written", "path", output)

			printSuccess("%s", ex.Summary())
			printFile(output)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringSliceVarP(&expand, "expand", "e", nil, "vertex ids to expand, in order")
	cmd.Flags().StringSliceVar(&hide, "hide", nil, "labels to hide as type:label, e.g. vertex:db or edge:conn")
	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "filter expression to highlight, AND-joined when repeated")
	cmd.Flags().StringVar(&highlight, "highlight", "red", "highlight colour for filter matches")
	cmd.Flags().StringVarP(&output, "output", "o", "graph.svg", "output file")
	cmd.Flags().StringVar(&format, "format", "", "output format: dot, svg, png, json or yaml (default from the output extension)")
	cmd.Flags().IntVar(&ticks, "ticks", defaultTicks, "layout steps before rendering; 0 lets Graphviz lay out")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "label edges and add tooltips")

	return cmd
}

// parseLabelRefs parses "type:label" pairs. A bare label means a vertex
// label.
func parseLabelRefs(specs []string) ([]graph.EntityRef, error) {
	refs := make([]graph.EntityRef, 0, len(specs))
	for _, s := range specs {
		t, label, ok := strings.Cut(s, ":")
		if !ok {
			t, label = string(graph.VertexType), s
		}
		switch graph.EntityType(t) {
		case graph.VertexType, graph.EdgeType:
		default:
			return nil, gerrors.New(gerrors.ErrCodeInvalidInput, "bad label %q: type must be vertex or edge", s)
		}
		if label == "" {
			return nil, gerrors.New(gerrors.ErrCodeInvalidInput, "bad label %q: empty label", s)
		}
		refs = append(refs, graph.EntityRef{Type: graph.EntityType(t), ID: graph.ID(label)})
	}
	return refs, nil
}

// evaluateHighlight runs exprs as one AND-joined sequence against the
// backend and colours the materialized matches.
func evaluateHighlight(ctx context.Context, ex *explore.Explorer, m filter.Matcher, exprs []string, color string) (map[graph.EntityRef]string, error) {
	seq := filter.NewSequence("snapshot", color)
	for _, e := range exprs {
		if err := seq.Add(e, filter.And); err != nil {
			return nil, err
		}
	}
	set := filter.NewSet()
	if err := set.Put(seq); err != nil {
		return nil, err
	}
	results, err := set.Evaluate(ctx, m)
	if err != nil {
		return nil, err
	}
	if r := results[0]; !r.Valid() {
		return nil, r.Err
	}
	return highlightMap(ex, set, seq), nil
}

// highlightMap colours the entities matched by seq's last result.
func highlightMap(ex *explore.Explorer, set *filter.Set, seq *filter.Sequence) map[graph.EntityRef]string {
	out := make(map[graph.EntityRef]string)
	ex.View(func(s *graph.Store, _ *explore.Scene) {
		for _, ref := range set.Highlight(seq.Name, s) {
			out[ref] = seq.Color
		}
	})
	return out
}

// writeSnapshot renders the explorer's shown graph to path.
func writeSnapshot(ctx context.Context, ex *explore.Explorer, path string, format render.Format, opts render.Options) error {
	var dot string
	ex.View(func(s *graph.Store, _ *explore.Scene) {
		dot = render.ToDOT(s, opts)
	})
	out, err := render.Render(ctx, dot, format, render.Engine(opts))
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func isExportFormat(format string) bool {
	switch format {
	case string(gio.JSON), string(gio.YAML), "yml":
		return true
	}
	return false
}

// exportSnapshot writes the shown graph as a dataset file.
func exportSnapshot(ex *explore.Explorer, path string) error {
	var b graph.Batch
	ex.View(func(s *graph.Store, _ *explore.Scene) {
		b = gio.Export(s)
	})
	return gio.WriteFile(path, b)
}
