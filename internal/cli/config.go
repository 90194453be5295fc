package cli

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/matzehuels/fm3/internal/server"
	"github.com/matzehuels/fm3/pkg/errors"
	"github.com/matzehuels/fm3/pkg/force"
	"github.com/matzehuels/fm3/pkg/layout"
	"github.com/matzehuels/fm3/pkg/pipeline"
	"github.com/matzehuels/fm3/pkg/render"
	"github.com/matzehuels/fm3/pkg/repulsion"
)

// =============================================================================
// Config File
// =============================================================================

// fileConfig is the TOML layout of a --config file:
//
//	[layout]
//	seed = 7
//	quality = "gorgeous_and_efficient"
//	use_high_level_options = true
//
//	[render]
//	formats = ["svg", "dot"]
//	scale = 2
//
//	[server]
//	addr = ":8080"
type fileConfig struct {
	Layout layout.Options `toml:"layout"`
	Render renderConfig   `toml:"render"`
	Server serverConfig   `toml:"server"`
}

type renderConfig struct {
	Formats []string `toml:"formats"`
	Scale   float64  `toml:"scale"`
	Labels  bool     `toml:"labels"`
}

type serverConfig struct {
	Addr        string `toml:"addr"`
	MaxVertices int    `toml:"max_vertices"`
	MaxEdges    int    `toml:"max_edges"`
	MaxBodySize int64  `toml:"max_body_size"`
	Timeout     string `toml:"timeout"`
}

// defaultConfig returns the configuration used when no file is given.
func defaultConfig() fileConfig {
	return fileConfig{
		Layout: layout.DefaultOptions(),
		Render: renderConfig{
			Formats: []string{render.FormatSVG},
			Scale:   pipeline.DefaultScale,
		},
		Server: serverConfig{
			Addr:        server.DefaultAddr,
			MaxVertices: pipeline.DefaultMaxVertices,
			MaxEdges:    pipeline.DefaultMaxEdges,
			MaxBodySize: server.DefaultMaxBodySize,
		},
	}
}

// loadConfig reads path on top of the defaults. Keys absent from the file
// keep their default; unknown keys are rejected. An empty path returns the
// defaults.
func loadConfig(path string) (fileConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return fileConfig{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fileConfig{}, errors.New(errors.ErrCodeInvalidConfig, "config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Layout.Check(); err != nil {
		return fileConfig{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "config %s", path)
	}
	return cfg, nil
}

// =============================================================================
// Layout Flags
// =============================================================================

// layoutFlags are the layout options exposed as command-line flags. A flag
// only overrides the config file when it was set explicitly.
type layoutFlags struct {
	seed             int
	unitEdgeLength   float64
	quality          string
	pageFormat       string
	repulsion        string
	forceModel       string
	singleLevel      bool
	newPlacement     bool
	fixedIterations  int
	parallelism      int
	minDistComponent float64
}

func (f *layoutFlags) register(cmd *cobra.Command) {
	def := layout.DefaultOptions()
	fs := cmd.Flags()
	fs.IntVar(&f.seed, "seed", def.Seed, "random seed")
	fs.Float64Var(&f.unitEdgeLength, "unit-edge-length", def.UnitEdgeLength, "ideal edge length")
	fs.StringVar(&f.quality, "quality", string(def.Quality), "quality tier: gorgeous_and_efficient, beautiful_and_fast, nice_and_incredible_speed (enables high-level options)")
	fs.StringVar(&f.pageFormat, "page-format", string(def.PageFormat), "aspect ratio: square, landscape, portrait (enables high-level options)")
	fs.StringVar(&f.repulsion, "repulsion", string(def.RepulsiveForces), "repulsive force method: exact, grid_approximation, nmm, barnes_hut")
	fs.StringVar(&f.forceModel, "force-model", string(def.ForceModel), "force model: fruchterman_reingold, eades, new")
	fs.BoolVar(&f.singleLevel, "single-level", false, "skip the multilevel coarsening")
	fs.BoolVar(&f.newPlacement, "new-initial-placement", false, "seed random placement from the clock (disables caching, enables high-level options)")
	fs.IntVar(&f.fixedIterations, "iterations", def.FixedIterations, "force iterations per level (reset by high-level options)")
	fs.IntVar(&f.parallelism, "parallelism", 0, "components laid out concurrently (default: GOMAXPROCS)")
	fs.Float64Var(&f.minDistComponent, "component-distance", def.MinDistCC, "minimum distance between packed components")
}

// apply overrides the options with every flag set on cmd.
func (f *layoutFlags) apply(cmd *cobra.Command, opts *layout.Options) {
	changed := cmd.Flags().Changed
	if changed("seed") {
		opts.Seed = f.seed
	}
	if changed("unit-edge-length") {
		opts.UnitEdgeLength = f.unitEdgeLength
	}
	if changed("quality") {
		opts.Quality = layout.Quality(f.quality)
		opts.UseHighLevelOptions = true
	}
	if changed("page-format") {
		opts.PageFormat = layout.PageFormat(f.pageFormat)
		opts.UseHighLevelOptions = true
	}
	if changed("new-initial-placement") {
		opts.NewInitialPlacement = f.newPlacement
		opts.UseHighLevelOptions = true
	}
	if changed("repulsion") {
		opts.RepulsiveForces = repulsion.Method(f.repulsion)
	}
	if changed("force-model") {
		opts.ForceModel = force.Model(f.forceModel)
	}
	if changed("single-level") {
		opts.SingleLevel = f.singleLevel
	}
	if changed("iterations") {
		opts.FixedIterations = f.fixedIterations
	}
	if changed("component-distance") {
		opts.MinDistCC = f.minDistComponent
	}
	opts.Parallelism = f.parallelism
}

// layoutOptions resolves defaults, the config file and flags into
// validated layout options.
func layoutOptions(cmd *cobra.Command, cfg fileConfig, flags *layoutFlags) (layout.Options, error) {
	opts := cfg.Layout
	flags.apply(cmd, &opts)
	if err := opts.Check(); err != nil {
		return layout.Options{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "invalid layout options")
	}
	return opts, nil
}
