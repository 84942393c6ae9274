package cli

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/matzehuels/graphlens/pkg/server"
	"github.com/matzehuels/graphlens/pkg/server/source"
)

// serveCommand creates the "serve" command running the reference backend.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve <dataset>",
		Short: "Serve a dataset over the backend HTTP protocol",
		Long: `Serve a graph dataset over the HTTP protocol graphlens explores.

Datasets:
  graph.json, graph.yaml      file (reloaded on change with --watch)
  sqlite:///path/to/graph.db  SQLite database, edits are persisted
  mongodb://host/db           MongoDB database, edits are persisted`,
		Example: `  graphlens serve testdata/network.yaml --watch
  graphlens explore --url http://localhost:8080/vertices/1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			src, err := source.Open(ctx, args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			srv, err := server.New(ctx, src, server.WithLogger(logger))
			if err != nil {
				return err
			}

			if watch {
				if err := srv.Watch(ctx); err != nil {
					return err
				}
			}
			err = srv.ListenAndServe(ctx, addr)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "listen address")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "reload the dataset when its file changes")

	return cmd
}
