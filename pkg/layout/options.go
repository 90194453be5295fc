package layout

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/fm3/pkg/force"
	"github.com/matzehuels/fm3/pkg/multigraph/transform"
	"github.com/matzehuels/fm3/pkg/multilevel"
	"github.com/matzehuels/fm3/pkg/pack"
	"github.com/matzehuels/fm3/pkg/quadtree"
	"github.com/matzehuels/fm3/pkg/repulsion"
)

// =============================================================================
// High-Level Knobs
// =============================================================================

// PageFormat is the high-level choice of the drawing's aspect ratio.
type PageFormat string

const (
	PageSquare    PageFormat = "square"
	PageLandscape PageFormat = "landscape"
	PagePortrait  PageFormat = "portrait"
)

// Quality trades drawing quality against running time.
type Quality string

const (
	QualityGorgeous  Quality = "gorgeous_and_efficient"
	QualityBeautiful Quality = "beautiful_and_fast"
	QualityNice      Quality = "nice_and_incredible_speed"
)

// =============================================================================
// Options
// =============================================================================

// Options configures [Run]. The zero value is not useful; start from
// [DefaultOptions]. Out-of-range values are clamped by [Options.Normalize],
// which Run calls on its own copy.
type Options struct {
	// High-level options. When UseHighLevelOptions is set, every low-level
	// option below is reset to its default and then derived from these.
	UseHighLevelOptions bool       `json:"use_high_level_options" toml:"use_high_level_options"`
	PageFormat          PageFormat `json:"page_format" toml:"page_format"`
	Quality             Quality    `json:"quality" toml:"quality"`
	NewInitialPlacement bool       `json:"new_initial_placement" toml:"new_initial_placement"`

	// General
	UnitEdgeLength        float64                     `json:"unit_edge_length" toml:"unit_edge_length"`
	Seed                  int                         `json:"seed" toml:"seed"`
	EdgeLengthMeasurement transform.LengthMeasurement `json:"edge_length_measurement" toml:"edge_length_measurement"`
	AllowedPositions      force.AllowedPositions      `json:"allowed_positions" toml:"allowed_positions"`
	MaxIntPosExponent     int                         `json:"max_int_pos_exponent" toml:"max_int_pos_exponent"`

	// Divide and pack
	PageRatio     float64      `json:"page_ratio" toml:"page_ratio"`
	RotationSteps int          `json:"rotation_steps" toml:"rotation_steps"`
	TipOver       pack.TipOver `json:"tip_over" toml:"tip_over"`
	MinDistCC     float64      `json:"min_dist_cc" toml:"min_dist_cc"`
	Presort       pack.Presort `json:"presort" toml:"presort"`

	// Multilevel
	SingleLevel          bool                     `json:"single_level" toml:"single_level"`
	MinGraphSize         int                      `json:"min_graph_size" toml:"min_graph_size"`
	GalaxyChoice         multilevel.GalaxyChoice  `json:"galaxy_choice" toml:"galaxy_choice"`
	RandomTries          int                      `json:"random_tries" toml:"random_tries"`
	MaxIterChange        force.IterationPolicy    `json:"max_iter_change" toml:"max_iter_change"`
	MaxIterFactor        int                      `json:"max_iter_factor" toml:"max_iter_factor"`
	InitialPlacementMult multilevel.Interpolation `json:"initial_placement_mult" toml:"initial_placement_mult"`

	// Force calculation
	ForceModel             force.Model         `json:"force_model" toml:"force_model"`
	SpringStrength         float64             `json:"spring_strength" toml:"spring_strength"`
	RepForcesStrength      float64             `json:"rep_forces_strength" toml:"rep_forces_strength"`
	RepulsiveForces        repulsion.Method    `json:"repulsive_forces" toml:"repulsive_forces"`
	StopCriterion          force.StopCriterion `json:"stop_criterion" toml:"stop_criterion"`
	Threshold              float64             `json:"threshold" toml:"threshold"`
	FixedIterations        int                 `json:"fixed_iterations" toml:"fixed_iterations"`
	ForceScalingFactor     float64             `json:"force_scaling_factor" toml:"force_scaling_factor"`
	CoolTemperature        bool                `json:"cool_temperature" toml:"cool_temperature"`
	CoolValue              float64             `json:"cool_value" toml:"cool_value"`
	InitialPlacementForces force.Placement     `json:"initial_placement_forces" toml:"initial_placement_forces"`

	// Postprocessing
	ResizeDrawing         bool    `json:"resize_drawing" toml:"resize_drawing"`
	ResizingScalar        float64 `json:"resizing_scalar" toml:"resizing_scalar"`
	FineTuningIterations  int     `json:"fine_tuning_iterations" toml:"fine_tuning_iterations"`
	FineTuneScalar        float64 `json:"fine_tune_scalar" toml:"fine_tune_scalar"`
	AdjustPostRepStrength bool    `json:"adjust_post_rep_strength_dynamically" toml:"adjust_post_rep_strength_dynamically"`
	PostSpringStrength    float64 `json:"post_spring_strength" toml:"post_spring_strength"`
	PostRepForcesStrength float64 `json:"post_rep_forces_strength" toml:"post_rep_forces_strength"`

	// Repulsion approximation
	FrGridQuotient      int                         `json:"fr_grid_quotient" toml:"fr_grid_quotient"`
	NMTreeConstruction  quadtree.ConstructionPolicy `json:"nm_tree_construction" toml:"nm_tree_construction"`
	NMSmallCell         quadtree.CellPolicy         `json:"nm_small_cell" toml:"nm_small_cell"`
	NMParticlesInLeaves int                         `json:"nm_particles_in_leaves" toml:"nm_particles_in_leaves"`
	NMPrecision         int                         `json:"nm_precision" toml:"nm_precision"`
	BarnesHutTheta      float64                     `json:"barnes_hut_theta" toml:"barnes_hut_theta"`

	// Runtime options (not serialized)

	// Parallelism bounds the number of components laid out at once.
	// Zero means GOMAXPROCS.
	Parallelism int `json:"-" toml:"-"`
	// Logger receives debug output per component and level. Nil is silent.
	Logger *log.Logger `json:"-" toml:"-"`
	// Progress, when set, is called after every level of every component.
	// Components run concurrently, so it must be safe for concurrent use.
	Progress func(Event) `json:"-" toml:"-"`
}

// DefaultOptions returns the standard configuration.
func DefaultOptions() Options {
	return Options{
		PageFormat: PageSquare,
		Quality:    QualityBeautiful,

		UnitEdgeLength:        100,
		Seed:                  100,
		EdgeLengthMeasurement: transform.MeasureBoundingCircle,
		AllowedPositions:      force.PositionsInteger,
		MaxIntPosExponent:     40,

		PageRatio:     1,
		RotationSteps: 10,
		TipOver:       pack.TipNoGrowingRow,
		MinDistCC:     100,
		Presort:       pack.PresortDecreasingHeight,

		MinGraphSize:         50,
		GalaxyChoice:         multilevel.ChoiceLowerMass,
		RandomTries:          20,
		MaxIterChange:        force.IterLinearlyDecreasing,
		MaxIterFactor:        10,
		InitialPlacementMult: multilevel.InterpolateAdvanced,

		ForceModel:             force.ModelNew,
		SpringStrength:         1,
		RepForcesStrength:      1,
		RepulsiveForces:        repulsion.MethodMultipole,
		StopCriterion:          force.StopFixedIterationsOrThreshold,
		Threshold:              0.01,
		FixedIterations:        30,
		ForceScalingFactor:     0.05,
		CoolValue:              0.99,
		InitialPlacementForces: force.PlacementRandomSeed,

		ResizeDrawing:         true,
		ResizingScalar:        1,
		FineTuningIterations:  20,
		FineTuneScalar:        0.2,
		AdjustPostRepStrength: true,
		PostSpringStrength:    2,
		PostRepForcesStrength: 0.01,

		FrGridQuotient:      2,
		NMTreeConstruction:  quadtree.SubtreeBySubtree,
		NMSmallCell:         quadtree.CellIterative,
		NMParticlesInLeaves: 25,
		NMPrecision:         4,
		BarnesHutTheta:      0.5,
	}
}

// Normalize clamps out-of-range values to safe defaults and replaces
// unknown enum values with their defaults.
func (o *Options) Normalize() {
	def := DefaultOptions()

	positive := func(v *float64) {
		if !(*v > 0) {
			*v = 1
		}
	}
	positive(&o.UnitEdgeLength)
	positive(&o.PageRatio)
	positive(&o.MinDistCC)
	positive(&o.SpringStrength)
	positive(&o.RepForcesStrength)
	positive(&o.ForceScalingFactor)
	positive(&o.ResizingScalar)
	positive(&o.PostSpringStrength)
	positive(&o.PostRepForcesStrength)

	atLeast := func(v *int, lo, fallback int) {
		if *v < lo {
			*v = fallback
		}
	}
	atLeast(&o.Seed, 0, 1)
	atLeast(&o.RotationSteps, 0, 0)
	atLeast(&o.MinGraphSize, 2, 2)
	atLeast(&o.RandomTries, 1, 1)
	atLeast(&o.MaxIterFactor, 1, 1)
	atLeast(&o.FixedIterations, 1, 1)
	atLeast(&o.FineTuningIterations, 0, 0)
	atLeast(&o.FrGridQuotient, 0, 2)
	atLeast(&o.NMParticlesInLeaves, 1, 1)
	atLeast(&o.NMPrecision, 1, 1)
	atLeast(&o.Parallelism, 0, 0)

	if !(o.Threshold > 0) {
		o.Threshold = 0.1
	}
	if !(o.CoolValue > 0 && o.CoolValue <= 1) {
		o.CoolValue = 0.99
	}
	if !(o.FineTuneScalar >= 0) {
		o.FineTuneScalar = 1
	}
	if o.MaxIntPosExponent < 31 || o.MaxIntPosExponent > 51 {
		o.MaxIntPosExponent = 31
	}
	if !(o.BarnesHutTheta > 0) {
		o.BarnesHutTheta = def.BarnesHutTheta
	}

	oneOf(&o.PageFormat, def.PageFormat, PageSquare, PageLandscape, PagePortrait)
	oneOf(&o.Quality, def.Quality, QualityGorgeous, QualityBeautiful, QualityNice)
	oneOf(&o.EdgeLengthMeasurement, def.EdgeLengthMeasurement,
		transform.MeasureMidpoint, transform.MeasureBoundingCircle)
	oneOf(&o.AllowedPositions, def.AllowedPositions,
		force.PositionsAll, force.PositionsInteger, force.PositionsExponent)
	oneOf(&o.TipOver, def.TipOver, pack.TipNone, pack.TipNoGrowingRow, pack.TipAlways)
	oneOf(&o.Presort, def.Presort,
		pack.PresortNone, pack.PresortDecreasingHeight, pack.PresortDecreasingWidth)
	oneOf(&o.GalaxyChoice, def.GalaxyChoice,
		multilevel.ChoiceUniform, multilevel.ChoiceLowerMass, multilevel.ChoiceHigherMass)
	oneOf(&o.MaxIterChange, def.MaxIterChange,
		force.IterConstant, force.IterLinearlyDecreasing, force.IterRapidlyDecreasing)
	oneOf(&o.InitialPlacementMult, def.InitialPlacementMult,
		multilevel.InterpolateSimple, multilevel.InterpolateAdvanced)
	oneOf(&o.ForceModel, def.ForceModel,
		force.ModelFruchtermanReingold, force.ModelEades, force.ModelNew)
	oneOf(&o.RepulsiveForces, def.RepulsiveForces,
		repulsion.MethodExact, repulsion.MethodGrid, repulsion.MethodMultipole, repulsion.MethodBarnesHut)
	oneOf(&o.StopCriterion, def.StopCriterion,
		force.StopFixedIterations, force.StopThreshold, force.StopFixedIterationsOrThreshold)
	oneOf(&o.InitialPlacementForces, def.InitialPlacementForces,
		force.PlacementKeep, force.PlacementGrid, force.PlacementRandomTime, force.PlacementRandomSeed)
	oneOf(&o.NMTreeConstruction, def.NMTreeConstruction, quadtree.PathByPath, quadtree.SubtreeBySubtree)
	oneOf(&o.NMSmallCell, def.NMSmallCell, quadtree.CellIterative, quadtree.CellAluru)
}

// ErrUnknownValue is returned by [Options.Check] for enum fields holding a
// value that Normalize would replace.
var ErrUnknownValue = errors.New("unknown value")

// Check reports enum fields whose value is not recognized. Run accepts such
// options and falls back to defaults; callers that take user input use Check
// to reject typos instead.
func (o Options) Check() error {
	n := o
	n.Normalize()

	var errs []error
	check := func(field string, got, want string) {
		if got != want {
			errs = append(errs, fmt.Errorf("%s: %w %q", field, ErrUnknownValue, got))
		}
	}
	check("page_format", string(o.PageFormat), string(n.PageFormat))
	check("quality", string(o.Quality), string(n.Quality))
	check("edge_length_measurement", string(o.EdgeLengthMeasurement), string(n.EdgeLengthMeasurement))
	check("allowed_positions", string(o.AllowedPositions), string(n.AllowedPositions))
	check("tip_over", string(o.TipOver), string(n.TipOver))
	check("presort", string(o.Presort), string(n.Presort))
	check("galaxy_choice", string(o.GalaxyChoice), string(n.GalaxyChoice))
	check("max_iter_change", string(o.MaxIterChange), string(n.MaxIterChange))
	check("initial_placement_mult", string(o.InitialPlacementMult), string(n.InitialPlacementMult))
	check("force_model", string(o.ForceModel), string(n.ForceModel))
	check("repulsive_forces", string(o.RepulsiveForces), string(n.RepulsiveForces))
	check("stop_criterion", string(o.StopCriterion), string(n.StopCriterion))
	check("initial_placement_forces", string(o.InitialPlacementForces), string(n.InitialPlacementForces))
	check("nm_tree_construction", string(o.NMTreeConstruction), string(n.NMTreeConstruction))
	check("nm_small_cell", string(o.NMSmallCell), string(n.NMSmallCell))
	return errors.Join(errs...)
}

// Deterministic reports whether two runs with these options on the same
// graph produce the same drawing. Only time-seeded placement breaks this.
func (o Options) Deterministic() bool {
	o.ApplyHighLevel()
	o.Normalize()
	return o.InitialPlacementForces != force.PlacementRandomTime
}

// Hash returns a hex SHA-256 digest of the effective options, after high
// level knobs and clamping are applied. Runtime fields do not contribute.
func (o Options) Hash() string {
	o.ApplyHighLevel()
	o.Normalize()
	o.Parallelism = 0
	data, _ := json.Marshal(o)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func oneOf[T comparable](v *T, fallback T, valid ...T) {
	for _, x := range valid {
		if *v == x {
			return
		}
	}
	*v = fallback
}

// ApplyHighLevel derives the low-level options from the high-level knobs
// when UseHighLevelOptions is set. Every other low-level option is reset to
// its default; runtime options are kept.
func (o *Options) ApplyHighLevel() {
	if !o.UseHighLevelOptions {
		return
	}
	keep := *o
	*o = DefaultOptions()
	o.UseHighLevelOptions = true
	o.PageFormat = keep.PageFormat
	o.Quality = keep.Quality
	o.NewInitialPlacement = keep.NewInitialPlacement
	o.UnitEdgeLength = keep.UnitEdgeLength
	o.Parallelism = keep.Parallelism
	o.Logger = keep.Logger
	o.Progress = keep.Progress

	switch o.PageFormat {
	case PageLandscape:
		o.PageRatio = 1.4142
	case PagePortrait:
		o.PageRatio = 0.7071
	default:
		o.PageRatio = 1
	}

	if o.NewInitialPlacement {
		o.InitialPlacementForces = force.PlacementRandomTime
	} else {
		o.InitialPlacementForces = force.PlacementRandomSeed
	}

	switch o.Quality {
	case QualityGorgeous:
		o.FixedIterations, o.FineTuningIterations, o.NMPrecision = 60, 40, 6
	case QualityNice:
		o.FixedIterations, o.FineTuningIterations, o.NMPrecision = 15, 10, 2
	default:
		o.FixedIterations, o.FineTuningIterations, o.NMPrecision = 30, 20, 4
	}
}

func (o *Options) forceParams() force.Params {
	return force.Params{
		Model:                 o.ForceModel,
		SpringStrength:        o.SpringStrength,
		RepulsionStrength:     o.RepForcesStrength,
		PostSpringStrength:    o.PostSpringStrength,
		PostRepulsionStrength: o.PostRepForcesStrength,
		DynamicPostRepulsion:  o.AdjustPostRepStrength,
		Stop:                  o.StopCriterion,
		Threshold:             o.Threshold,
		ForceScaling:          o.ForceScalingFactor,
		Cool:                  o.CoolTemperature,
		CoolValue:             o.CoolValue,
		FineTuningIterations:  o.FineTuningIterations,
		FineTuneScalar:        o.FineTuneScalar,
		Resize:                o.ResizeDrawing,
		ResizeScalar:          o.ResizingScalar,
		Positions:             o.AllowedPositions,
		MaxIntPosExponent:     o.MaxIntPosExponent,
	}
}

func (o *Options) repulsionConfig() repulsion.Config {
	return repulsion.Config{
		GridQuotient: float64(o.FrGridQuotient),
		Tree: quadtree.Options{
			LeafCapacity: o.NMParticlesInLeaves,
			Precision:    o.NMPrecision,
			Construction: o.NMTreeConstruction,
			SmallestCell: o.NMSmallCell,
		},
		BarnesHutTheta: o.BarnesHutTheta,
	}
}

func (o *Options) packOptions() pack.Options {
	return pack.Options{
		PageRatio:     o.PageRatio,
		RotationSteps: o.RotationSteps,
		MinDistance:   o.MinDistCC,
		Presort:       o.Presort,
		TipOver:       o.TipOver,
	}
}
