// Package repulsion computes the repulsive force field acting on every vertex.
//
// All strategies model unit charges with a force of magnitude 1/d between
// each pair of vertices at distance d, and differ only in how they
// approximate the O(n²) pairwise sum:
//
//   - [Exact] sums every pair.
//   - [Grid] sums pairs in neighbouring grid cells and ignores the rest, as
//     in the grid variant of Fruchterman and Reingold.
//   - [Multipole] builds a reduced bucket quadtree with multipole expansions
//     (see package quadtree) and evaluates far cells through their
//     expansions.
//   - [BarnesHut] uses gonum's Barnes-Hut plane with monopole
//     approximation.
//
// A [Strategy] is stateful and owned by a single component layout. The
// caller announces the current computation box with Prepare before every
// Forces call.
package repulsion

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/fm3/pkg/geom"
	"github.com/matzehuels/fm3/pkg/quadtree"
)

// Method names a repulsion strategy in configuration.
type Method string

const (
	MethodExact     Method = "exact"
	MethodGrid      Method = "grid_approximation"
	MethodMultipole Method = "nmm"
	MethodBarnesHut Method = "barnes_hut"
)

// Strategy is the contract shared by all repulsion engines.
type Strategy interface {
	// Prepare records the computation box for the next Forces call.
	Prepare(box geom.Box)
	// Forces writes the repulsive force acting on vertex i to out[i].
	Forces(pos []r2.Vec, out []r2.Vec)
}

// Config carries the sub-parameters of every strategy; each strategy reads
// only its own fields.
type Config struct {
	GridQuotient   float64          // grid: cells per side = sqrt(n)/quotient
	Tree           quadtree.Options // multipole
	BarnesHutTheta float64          // barnes-hut opening angle
}

// New returns a fresh strategy for method. Unknown methods fall back to
// the multipole strategy.
func New(method Method, cfg Config) Strategy {
	switch method {
	case MethodExact:
		return &Exact{}
	case MethodGrid:
		return &Grid{Quotient: cfg.GridQuotient}
	case MethodBarnesHut:
		return &BarnesHut{Theta: cfg.BarnesHutTheta}
	default:
		return &Multipole{Options: cfg.Tree}
	}
}

// minSeparation is the distance, relative to the box, below which two
// vertices count as coincident.
const minSeparation = 1e-9

// goldenAngle spreads the fallback directions of coincident pairs.
const goldenAngle = 2.399963229728653

// pairForce returns the force vertex j exerts on vertex i. Coincident
// vertices are pushed apart along a direction derived from their indices,
// as if they were eps apart, so the result is antisymmetric and
// deterministic.
func pairForce(i, j int, pi, pj r2.Vec, eps float64) r2.Vec {
	d := r2.Sub(pi, pj)
	n2 := r2.Norm2(d)
	if n2 > eps*eps {
		return r2.Scale(1/n2, d)
	}
	a, b := min(i, j), max(i, j)
	theta := goldenAngle * float64(a*31+b)
	dir := r2.Vec{X: math.Cos(theta), Y: math.Sin(theta)}
	if i == a {
		dir = r2.Scale(-1, dir)
	}
	return r2.Scale(1/eps, dir)
}

// fitBox returns box grown to contain every position, or a fresh box when
// none was prepared.
func fitBox(box geom.Box, pos []r2.Vec) geom.Box {
	if box.Length <= 0 {
		return geom.Fit(pos)
	}
	for _, p := range pos {
		box = box.Grow(p)
	}
	return box
}

func epsilon(box geom.Box) float64 {
	if box.Length <= 0 {
		return minSeparation
	}
	return minSeparation * box.Length
}

// Exact sums the repulsion of every vertex pair.
type Exact struct {
	box geom.Box
}

func (s *Exact) Prepare(box geom.Box) { s.box = box }

func (s *Exact) Forces(pos []r2.Vec, out []r2.Vec) {
	clear(out)
	eps := epsilon(s.box)
	for i := range pos {
		for j := i + 1; j < len(pos); j++ {
			f := pairForce(i, j, pos[i], pos[j], eps)
			out[i] = r2.Add(out[i], f)
			out[j] = r2.Sub(out[j], f)
		}
	}
}

// Multipole evaluates repulsion through a reduced bucket quadtree with
// multipole expansions.
type Multipole struct {
	Options quadtree.Options
	box     geom.Box
}

func (s *Multipole) Prepare(box geom.Box) { s.box = box }

func (s *Multipole) Forces(pos []r2.Vec, out []r2.Vec) {
	clear(out)
	if len(pos) < 2 {
		return
	}
	box := fitBox(s.box, pos)
	tree := quadtree.Build(pos, box, s.Options)
	tree.Expand()
	eps := epsilon(box)
	for i := range pos {
		var near r2.Vec
		far := tree.Field(i, func(j int) {
			near = r2.Add(near, pairForce(i, j, pos[i], pos[j], eps))
		})
		out[i] = r2.Add(far, near)
	}
}
