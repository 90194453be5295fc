package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/fm3/pkg/errors"
	"github.com/matzehuels/fm3/pkg/graph"
	"github.com/matzehuels/fm3/pkg/layout"
	"github.com/matzehuels/fm3/pkg/pipeline"
)

// layoutCmdFlags holds the command-line flags of the layout command.
type layoutCmdFlags struct {
	output   string
	config   string
	refresh  bool
	progress bool
	summary  bool
	cache    cacheFlags
	layout   layoutFlags
}

// layoutCommand creates the layout command for computing positions.
func (c *CLI) layoutCommand() *cobra.Command {
	var flags layoutCmdFlags

	cmd := &cobra.Command{
		Use:   "layout [graph.json]",
		Short: "Compute a force-directed layout of a graph",
		Long: `Compute a force-directed layout of a graph.

The input is a JSON graph ("-" reads stdin):

  {"nodes": [{"id": "a"}, {"id": "b"}], "edges": [{"from": "a", "to": "b"}]}

The output is a layout.json file with one position per node that can be drawn
with 'fm3 render --layout'. Layout options are read from --config (TOML,
[layout] table) and overridden by flags.

Results are cached locally unless the placement is seeded from the clock.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags.config)
			if err != nil {
				return err
			}
			opts, err := layoutOptions(cmd, cfg, &flags.layout)
			if err != nil {
				return err
			}
			return c.runLayout(cmd.Context(), args[0], opts, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output file (default: <input>.layout.json)")
	cmd.Flags().StringVarP(&flags.config, "config", "c", "", "TOML config file")
	cmd.Flags().BoolVar(&flags.refresh, "refresh", false, "recompute even if a cached layout exists")
	cmd.Flags().BoolVar(&flags.progress, "progress", false, "show live per-level progress")
	cmd.Flags().BoolVar(&flags.summary, "summary", false, "print per-component statistics")
	flags.cache.register(cmd)
	flags.layout.register(cmd)

	return cmd
}

// runLayout loads the graph, computes the layout, and writes output.
func (c *CLI) runLayout(ctx context.Context, input string, lo layout.Options, flags layoutCmdFlags) error {
	logger := loggerFromContext(ctx)

	g, err := pipeline.LoadGraph(input)
	if err != nil {
		return err
	}
	logger.Debugf("Loaded graph: %d nodes, %d edges", len(g.Nodes), len(g.Edges))

	runner, err := c.newRunner(ctx, flags.cache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	opts := pipeline.Options{Layout: lo, Refresh: flags.refresh, Logger: c.Logger}
	if !lo.Deterministic() {
		logger.Debug("time-seeded placement, skipping cache")
	}

	var (
		result   graph.Layout
		cacheHit bool
	)
	compute := func(progress func(layout.Event)) error {
		o := opts
		o.Layout.Progress = progress
		var err error
		result, cacheHit, err = runner.LayoutWithCacheInfo(ctx, g, o)
		return err
	}

	prog := newProgress(logger)
	if flags.progress {
		err = runWithProgress(ctx, os.Stderr, "Computing layout", compute)
	} else {
		spinner := newSpinnerWithContext(ctx, "Computing layout...")
		spinner.Start()
		err = compute(func(ev layout.Event) {
			spinner.SetMessage(fmt.Sprintf("Computing layout... component %d/%d, level %d",
				ev.Component+1, ev.Components, ev.Level))
		})
		if err != nil {
			spinner.StopWithError("Layout failed")
		} else {
			spinner.Stop()
		}
	}
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	prog.done("Layout computed")

	out := outputPath(flags.output, input, ".layout.json")
	if err := errors.ValidatePath(out); err != nil {
		return err
	}
	if err := graph.WriteLayoutFile(result, out); err != nil {
		return fmt.Errorf("write output %s: %w", out, err)
	}

	printSuccess("Layout complete")
	printFile(out)
	printStats(len(g.Nodes), len(g.Edges), cacheHit)
	if result.Stats != nil {
		printKeyValue("bounds", fmt.Sprintf("%.0f × %.0f", result.Bounds.Width(), result.Bounds.Height()))
		printKeyValue("components", fmt.Sprint(len(result.Stats.Components)))
		if flags.summary && len(result.Stats.Components) > 0 {
			fmt.Println(componentTable(result.Stats))
		}
	}
	printNewline()
	printNextStep("Render", fmt.Sprintf("%s render %s --layout %s", appName, input, out))

	return nil
}
