package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/fm3/pkg/cache"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the layout and render cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand. It clears the
// local file cache, or the redis cache when --redis (or FM3_REDIS_URL) is set.
func (c *CLI) cacheClearCommand() *cobra.Command {
	var flags cacheFlags

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached layouts and renderings",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := c.newCache(ctx, flags)
			if err != nil {
				return err
			}
			defer store.Close()

			clearer, ok := store.(cache.Clearer)
			if !ok {
				printWarning("Cache is disabled, nothing to clear")
				return nil
			}
			if err := clearer.Clear(ctx); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}

			printSuccess("Cache cleared")
			if fc, ok := store.(*cache.FileCache); ok {
				printDetail("Directory: %s", fc.Dir())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.redisURL, "redis", "", "redis URL of a shared cache (default: $"+envRedisURL+")")
	return cmd
}

// cachePathCommand creates the "cache path" subcommand. With --usage it also
// reports how many entries the local cache holds.
func (c *CLI) cachePathCommand() *cobra.Command {
	var usage bool

	cmd := &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cacheDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			if !usage {
				return nil
			}

			fc, err := cache.NewFileCache(dir)
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			n, size, err := fc.Usage(cmd.Context())
			if err != nil {
				return fmt.Errorf("scan cache: %w", err)
			}
			printKeyValue("Entries", fmt.Sprintf("%d", n))
			printKeyValue("Size", fmt.Sprintf("%.1f KiB", float64(size)/1024))
			return nil
		},
	}
	cmd.Flags().BoolVar(&usage, "usage", false, "also print the number and size of cached entries")
	return cmd
}
