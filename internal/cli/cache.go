package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/graphlens/pkg/cache"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the expand response cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached expand response",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Cache.Backend == cache.BackendNone {
				printInfo("Caching is disabled")
				return nil
			}

			store, err := cache.Open(cmd.Context(), cfg.CacheOptions())
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			defer store.Close()

			clearer, ok := store.(cache.Clearer)
			if !ok {
				return fmt.Errorf("%s cache cannot be cleared", cfg.Cache.Backend)
			}
			if err := clearer.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}

			printSuccess("Cleared the %s cache", cfg.Cache.Backend)
			printDetail("Location: %s", cacheLocation(cfg.Cache.Backend, cfg.Cache.Dir, cfg.CacheOptions().RedisURL))
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where cached responses are stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			cmd.Println(cacheLocation(cfg.Cache.Backend, cfg.Cache.Dir, cfg.CacheOptions().RedisURL))
			return nil
		},
	}
}

// cacheLocation describes where a backend keeps its entries.
func cacheLocation(backend, dir, redisURL string) string {
	switch backend {
	case cache.BackendRedis:
		return redisURL
	case cache.BackendNone:
		return "(disabled)"
	}
	if dir != "" {
		return dir
	}
	d, err := cache.DefaultDir()
	if err != nil {
		return "(unknown)"
	}
	return d
}
