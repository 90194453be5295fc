// Package cli implements the fm3 command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/fm3/pkg/buildinfo"
	"github.com/matzehuels/fm3/pkg/cache"
	"github.com/matzehuels/fm3/pkg/pipeline"
	"github.com/matzehuels/fm3/pkg/render"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "fm3"

	// envRedisURL selects the shared redis cache when --redis is not given.
	envRedisURL = "FM3_REDIS_URL"
)

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
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "fm3 lays out large undirected graphs",
		Long: `fm3 computes straight-line drawings of large undirected graphs with the
fast multipole multilevel method: a multilevel force-directed layout whose
repulsive forces are approximated with multipole expansions.`,
		Version:      buildinfo.CurrentVersion(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// cacheFlags selects the cache backend of a command.
type cacheFlags struct {
	noCache  bool
	redisURL string
}

func (f *cacheFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable caching")
	cmd.Flags().StringVar(&f.redisURL, "redis", "", "redis URL for a shared cache (default: $"+envRedisURL+")")
}

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, flags cacheFlags) (*pipeline.Runner, error) {
	store, err := c.newCache(ctx, flags)
	if err != nil {
		return nil, err
	}
	keyer := cache.NewScopedKeyer(nil, buildinfo.CurrentVersion()+":")
	return pipeline.NewRunner(store, keyer, c.Logger), nil
}

// newCache picks the backend: none, redis, or the local file cache.
// A local cache that cannot be created degrades to no caching.
func (c *CLI) newCache(ctx context.Context, flags cacheFlags) (cache.Cache, error) {
	if flags.noCache {
		return cache.NewNullCache(), nil
	}
	url := flags.redisURL
	if url == "" {
		url = os.Getenv(envRedisURL)
	}
	if url != "" {
		rc, err := cache.NewRedisCache(ctx, url)
		if err != nil {
			return nil, err
		}
		c.Logger.Debug("using redis cache")
		return rc, nil
	}

	dir, err := cacheDir()
	if err != nil {
		c.Logger.Warn("cache disabled", "err", err)
		return cache.NewNullCache(), nil
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		c.Logger.Warn("cache disabled", "err", err)
		return cache.NewNullCache(), nil
	}
	return fc, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/fm3/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return cache.DefaultDir()
	}
	return filepath.Join(home, ".cache", appName), nil
}

// outputPath derives an output file next to input when output is empty.
// Input "-" (stdin) derives from "graph".
func outputPath(output, input, suffix string) string {
	if output != "" {
		return output
	}
	if input == "-" || input == "" {
		input = "graph"
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + suffix
}

// =============================================================================
// Options Helpers
// =============================================================================

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return []string{render.FormatSVG}
	}
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
