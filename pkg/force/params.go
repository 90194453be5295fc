package force

import "math"

// Model selects the spring force law.
type Model string

const (
	// ModelFruchtermanReingold pulls with d²/L³.
	ModelFruchtermanReingold Model = "fruchterman_reingold"
	// ModelEades pulls with 10·log2(d/L)/L.
	ModelEades Model = "eades"
	// ModelNew pulls with log2(d/L)·d²/L³.
	ModelNew Model = "new"
)

// Attraction returns the signed spring force for an edge of ideal length l
// whose endpoints are d apart. Positive values pull the endpoints together.
func (m Model) Attraction(d, l float64) float64 {
	switch m {
	case ModelFruchtermanReingold:
		return d * d / (l * l * l)
	case ModelEades:
		if d == 0 {
			return -1e10
		}
		return 10 * math.Log2(d/l) / l
	default:
		if d <= 0 {
			return -1e10
		}
		return math.Log2(d/l) * d * d / (l * l * l)
	}
}

// StopCriterion decides when a level's main loop ends.
type StopCriterion string

const (
	StopFixedIterations            StopCriterion = "fixed_iterations"
	StopThreshold                  StopCriterion = "threshold"
	StopFixedIterationsOrThreshold StopCriterion = "fixed_iterations_or_threshold"
)

// AllowedPositions restricts where vertices may be placed.
type AllowedPositions string

const (
	// PositionsAll leaves positions unrestricted.
	PositionsAll AllowedPositions = "all"
	// PositionsInteger bounds positions by 100·avgIdealLength·n² and
	// truncates them to integers.
	PositionsInteger AllowedPositions = "integer"
	// PositionsExponent bounds positions by 2^MaxIntPosExponent and
	// truncates them to integers.
	PositionsExponent AllowedPositions = "exponent"
)

// IterationCeiling bounds the threshold-only main loop.
const IterationCeiling = 10000

// Params configures an [Iterator]. Values are used as given; clamping to
// valid ranges is the caller's job.
type Params struct {
	Model                 Model
	SpringStrength        float64
	RepulsionStrength     float64
	PostSpringStrength    float64
	PostRepulsionStrength float64
	DynamicPostRepulsion  bool // fine-tuning repulsion = min(0.2, 400/n)

	Stop      StopCriterion
	Threshold float64

	ForceScaling float64
	Cool         bool
	CoolValue    float64

	FineTuningIterations int
	FineTuneScalar       float64
	Resize               bool
	ResizeScalar         float64

	Positions         AllowedPositions
	MaxIntPosExponent int
}

// IterationPolicy distributes iterations over multilevel levels.
type IterationPolicy string

const (
	IterConstant           IterationPolicy = "constant"
	IterLinearlyDecreasing IterationPolicy = "linearly_decreasing"
	IterRapidlyDecreasing  IterationPolicy = "rapidly_decreasing"
)

// Budget returns the iteration count for level of a hierarchy whose
// coarsest level is maxLevel. Coarse levels receive up to factor times the
// fixed count. Graphs with at most 500 vertices always get at least 100.
func Budget(policy IterationPolicy, level, maxLevel, n, fixed, factor int) int {
	extra := (factor - 1) * fixed
	iter := fixed
	switch policy {
	case IterLinearlyDecreasing:
		if maxLevel == 0 {
			iter = fixed + extra
		} else {
			iter = fixed + int(float64(level)/float64(maxLevel)*float64(extra))
		}
	case IterRapidlyDecreasing:
		switch level {
		case maxLevel:
			iter = fixed + extra
		case maxLevel - 1:
			iter = fixed + int(0.5*float64(extra))
		case maxLevel - 2:
			iter = fixed + int(0.25*float64(extra))
		}
	}
	if n <= 500 && iter < 100 {
		return 100
	}
	return iter
}
