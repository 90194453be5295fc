package multilevel

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r2"
)

// Interpolation selects how planets and moons are seeded from a solved
// coarse level.
type Interpolation string

const (
	// InterpolateSimple places each vertex at a random point on the circle
	// around its sun.
	InterpolateSimple Interpolation = "simple"
	// InterpolateAdvanced places each vertex along the paths towards
	// neighbouring systems, falling back to the simple rule.
	InterpolateAdvanced Interpolation = "advanced"
)

// jitter is the fraction of the sun distance by which advanced placements
// are perturbed, so that vertices sharing the same paths do not coincide.
const jitter = 0.01

// Interpolate writes the initial positions of l into pos from the positions
// of the next coarser level. l must not be the coarsest level.
func (l *Level) Interpolate(coarse []r2.Vec, pos []r2.Vec, mode Interpolation, rnd *rand.Rand) {
	for v := range pos {
		sun := coarse[l.Parent[v]]
		if l.Role[v] == RoleSun {
			pos[v] = sun
			continue
		}
		lambdas := l.Lambda[v]
		if mode == InterpolateSimple || len(lambdas) == 0 {
			pos[v] = r2.Add(sun, circle(rnd, l.SunDist[v]))
			continue
		}
		var sum r2.Vec
		for _, lm := range lambdas {
			sum = r2.Add(sum, r2.Add(sun, r2.Scale(lm.Ratio, r2.Sub(coarse[lm.Coarse], sun))))
		}
		p := r2.Scale(1/float64(len(lambdas)), sum)
		pos[v] = r2.Add(p, circle(rnd, jitter*l.SunDist[v]*rnd.Float64()))
	}
}

func circle(rnd *rand.Rand, r float64) r2.Vec {
	a := rnd.Float64() * 2 * math.Pi
	return r2.Vec{X: r * math.Cos(a), Y: r * math.Sin(a)}
}
