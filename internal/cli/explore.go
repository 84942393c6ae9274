package cli

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/graphlens/pkg/explore"
	"github.com/matzehuels/graphlens/pkg/graph"
)

// exploreCommand creates the interactive "explore" command.
func (c *CLI) exploreCommand() *cobra.Command {
	var (
		flags    backendFlags
		logFile  string
		snapshot string
	)

	cmd := &cobra.Command{
		Use:   "explore",
		Short: "Explore a backend graph interactively",
		Long: `Bootstrap the graph around the centre vertex and explore it in the terminal.

Expand a vertex to fetch its neighbours, collapse it to prune them again,
toggle label visibility, highlight filter matches and edit edges.`,
		Example: `  graphlens explore --url http://localhost:8080/vertices/1
  graphlens explore --center gateway --log-file graphlens.log`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sess, err := c.openSession(ctx, &flags)
			if err != nil {
				return err
			}
			defer sess.Close()

			spinner := newSpinnerWithContext(ctx, "Loading "+sess.cfg.PageURL)
			spinner.Start()
			ex, err := explore.New(ctx, sess.client, c.explorerOptions(sess.cfg)...)
			spinner.Stop()
			if err != nil {
				return err
			}

			// The TUI owns the terminal; logs go to --log-file or nowhere.
			var logOut io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("open log file: %w", err)
				}
				defer f.Close()
				logOut = f
			}
			c.Logger.SetOutput(logOut)
			defer c.Logger.SetOutput(os.Stderr)

			f := sess.cfg.Features
			model := newExploreModel(ctx, ex, sess.client, panelFeatures{
				ControlPanel: f.ControlPanel,
				InfoPanel:    f.InfoPanel,
				Help:         f.Help,
				OpenNewTab:   f.OpenNewTab,
			})
			model.newTab = func(id graph.ID) string {
				return fmt.Sprintf("%s explore --url %s --center %s", appName, sess.cfg.PageURL, id)
			}
			if snapshot != "" {
				model.snapshot = snapshot
			}

			if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
				return err
			}
			printSuccess("%s", ex.Summary())
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&logFile, "log-file", "", "append logs to this file while the TUI runs")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "path written by the snapshot key (default graphlens.svg)")

	return cmd
}
