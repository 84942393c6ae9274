// Package cli implements the graphlens command-line interface.
package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/graphlens/pkg/backend"
	"github.com/matzehuels/graphlens/pkg/buildinfo"
	"github.com/matzehuels/graphlens/pkg/cache"
	"github.com/matzehuels/graphlens/pkg/config"
	gerrors "github.com/matzehuels/graphlens/pkg/errors"
	"github.com/matzehuels/graphlens/pkg/explore"
	"github.com/matzehuels/graphlens/pkg/observability"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "graphlens"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
}

// New creates a new CLI instance logging to w.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level. At debug level every explorer,
// cache and HTTP event is logged as well.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
	if level <= log.DebugLevel {
		observability.NewLogHooks(c.Logger).Register()
	}
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "graphlens explores large graphs one neighbourhood at a time",
		Long:         `graphlens bootstraps a graph around a centre vertex from an HTTP backend and grows it on demand: expand a vertex to fetch its neighbours, collapse it to prune what it brought in.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/graphlens/config.toml)")

	root.AddCommand(c.exploreCommand())
	root.AddCommand(c.snapshotCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.versionCommand())

	return root
}

func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(buildinfo.String())
		},
	}
}

// =============================================================================
// Config and Backend Factories
// =============================================================================

// loadConfig reads --config, or the default config file when it exists.
func (c *CLI) loadConfig() (config.Config, error) {
	if c.configPath != "" {
		return config.Load(c.configPath, false)
	}
	path, err := config.DefaultPath()
	if err != nil {
		return config.Default(), nil
	}
	return config.Load(path, true)
}

// backendFlags are the flags shared by commands that talk to a backend.
type backendFlags struct {
	url     string
	center  string
	noCache bool
}

func (f *backendFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.url, "url", "u", "", "page URL serving the bootstrap payload (overrides page_url)")
	cmd.Flags().StringVar(&f.center, "center", "", "centre vertex id or name (overrides center)")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable the expand response cache")
}

// apply overrides cfg with the flags that were set.
func (f *backendFlags) apply(cfg *config.Config) error {
	if f.url != "" {
		cfg.PageURL = f.url
	}
	if f.center != "" {
		cfg.Center = f.center
	}
	if f.noCache {
		cfg.Cache.Backend = cache.BackendNone
	}
	if cfg.PageURL == "" {
		return gerrors.New(gerrors.ErrCodeInvalidConfig, "no page URL: set page_url or pass --url")
	}
	return cfg.Validate()
}

// session is one configured backend client and its cache.
type session struct {
	cfg    config.Config
	client *backend.Client
	cache  cache.Cache
}

func (s *session) Close() error { return s.cache.Close() }

// openSession loads the config, applies flag overrides and connects the
// backend client. A cache that cannot be opened is replaced by no cache.
func (c *CLI) openSession(ctx context.Context, flags *backendFlags) (*session, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	if err := flags.apply(&cfg); err != nil {
		return nil, err
	}

	store, err := cache.Open(ctx, cfg.CacheOptions())
	if err != nil {
		c.Logger.Warn("cache unavailable, continuing without", "backend", cfg.Cache.Backend, "err", err)
		store = cache.NewNullCache()
	}

	client, err := backend.New(backend.Config{
		PageURL:        cfg.PageURL,
		ExpandEndpoint: cfg.ExpandEndpoint,
		FilterEndpoint: cfg.FilterEndpoint,
	}, backend.WithCache(store, cfg.Cache.TTL.Duration), backend.WithLogger(c.Logger))
	if err != nil {
		store.Close()
		return nil, err
	}
	return &session{cfg: cfg, client: client, cache: store}, nil
}

// explorerOptions maps the config onto explorer options.
func (c *CLI) explorerOptions(cfg config.Config) []explore.Option {
	opts := []explore.Option{
		explore.WithCenter(cfg.Center),
		explore.WithFeatures(cfg.ExploreFeatures()),
		explore.WithPolicy(cfg.LayoutPolicy()),
		explore.WithSimulation(cfg.Simulation()),
		explore.WithLogger(c.Logger),
	}
	if cfg.CenterColor != "" {
		opts = append(opts, explore.WithCenterColor(cfg.CenterColor))
	}
	return opts
}
