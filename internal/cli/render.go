package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/fm3/pkg/errors"
	"github.com/matzehuels/fm3/pkg/graph"
	"github.com/matzehuels/fm3/pkg/pipeline"
)

// renderCmdFlags holds the command-line flags of the render command.
type renderCmdFlags struct {
	output  string
	config  string
	layout  string
	formats string
	scale   float64
	labels  bool
	refresh bool
	cache   cacheFlags
	opts    layoutFlags
}

// renderCommand creates the render command for drawing graphs.
func (c *CLI) renderCommand() *cobra.Command {
	var flags renderCmdFlags

	cmd := &cobra.Command{
		Use:   "render [graph.json]",
		Short: "Draw a graph as SVG, PNG or DOT",
		Long: `Draw a graph as SVG, PNG or DOT.

Without --layout the positions are computed first, exactly as 'fm3 layout'
would, using the same config file and flags. With --layout a stored layout is
applied to the graph; every node must have a position.

DOT output pins every node with pos="x,y!" so that Graphviz tools reproduce
the computed drawing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags.config)
			if err != nil {
				return err
			}
			lo, err := layoutOptions(cmd, cfg, &flags.opts)
			if err != nil {
				return err
			}
			opts := pipeline.Options{
				Layout:  lo,
				Formats: cfg.Render.Formats,
				Scale:   cfg.Render.Scale,
				Labels:  cfg.Render.Labels,
				Refresh: flags.refresh,
				Logger:  c.Logger,
			}
			if cmd.Flags().Changed("format") {
				opts.Formats = parseFormats(flags.formats)
			}
			if cmd.Flags().Changed("scale") {
				opts.Scale = flags.scale
			}
			if cmd.Flags().Changed("labels") {
				opts.Labels = flags.labels
			}
			if len(opts.Formats) == 0 {
				opts.Formats = parseFormats("")
			}
			if err := pipeline.ValidateFormats(opts.Formats); err != nil {
				return err
			}
			return c.runRender(cmd.Context(), args[0], opts, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&flags.config, "config", "c", "", "TOML config file")
	cmd.Flags().StringVarP(&flags.layout, "layout", "l", "", "precomputed layout.json to draw")
	cmd.Flags().StringVarP(&flags.formats, "format", "f", "", "output format(s): svg (default), png, dot (comma-separated)")
	cmd.Flags().Float64Var(&flags.scale, "scale", pipeline.DefaultScale, "points per layout unit")
	cmd.Flags().BoolVar(&flags.labels, "labels", false, "draw node labels")
	cmd.Flags().BoolVar(&flags.refresh, "refresh", false, "ignore cached results")
	flags.cache.register(cmd)
	flags.opts.register(cmd)

	return cmd
}

// runRender loads the graph, obtains a layout and writes one file per format.
func (c *CLI) runRender(ctx context.Context, input string, opts pipeline.Options, flags renderCmdFlags) error {
	logger := loggerFromContext(ctx)

	g, err := pipeline.LoadGraph(input)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, flags.cache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, "Rendering...")
	spinner.Start()

	var (
		artifacts map[string][]byte
		cacheHit  bool
	)
	if flags.layout != "" {
		var l graph.Layout
		if l, err = pipeline.LoadLayout(flags.layout); err == nil {
			artifacts, cacheHit, err = runner.RenderWithCacheInfo(ctx, g, l, opts)
		}
	} else {
		var res *pipeline.Result
		if res, err = runner.Execute(ctx, g, opts); err == nil {
			artifacts, cacheHit = res.Artifacts, res.CacheInfo.LayoutHit && res.CacheInfo.RenderHit
		}
	}
	if err != nil {
		spinner.StopWithError("Render failed")
		return err
	}
	spinner.Stop()
	if ctx.Err() != nil {
		return ctx.Err()
	}

	paths := outputPaths(flags.output, input, opts.Formats)
	for _, format := range opts.Formats {
		path := paths[format]
		if err := errors.ValidatePath(path); err != nil {
			return err
		}
		if err := os.WriteFile(path, artifacts[format], 0644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		logger.Debugf("Wrote %s: %d bytes", format, len(artifacts[format]))
	}

	printSuccess("Rendered %d file(s)", len(opts.Formats))
	for _, format := range opts.Formats {
		printFile(paths[format])
	}
	printStats(len(g.Nodes), len(g.Edges), cacheHit)
	return nil
}

// outputPaths maps each format to its output file. A single format writes to
// output as given; multiple formats append their extension to the base path.
func outputPaths(output, input string, formats []string) map[string]string {
	paths := make(map[string]string, len(formats))
	if len(formats) == 1 && output != "" {
		paths[formats[0]] = output
		return paths
	}
	base := basePath(output, input)
	for _, f := range formats {
		paths[f] = base + "." + f
	}
	return paths
}

// basePath derives the base output path. If output is empty, it strips the
// extension from input; a known format extension on output is stripped too.
func basePath(output, input string) string {
	if output == "" {
		return outputPath("", input, "")
	}
	ext := filepath.Ext(output)
	if pipeline.ValidateFormat(strings.TrimPrefix(ext, ".")) == nil {
		return strings.TrimSuffix(output, ext)
	}
	return output
}
