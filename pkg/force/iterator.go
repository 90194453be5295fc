package force

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/fm3/pkg/geom"
	"github.com/matzehuels/fm3/pkg/multigraph"
	"github.com/matzehuels/fm3/pkg/repulsion"
)

// =============================================================================
// Iterator
// =============================================================================

type phase int

const (
	phaseMain phase = iota
	phaseSettle
	phaseFineTune
)

// settleIterations is the number of low-energy iterations run at the start
// of postprocessing.
const settleIterations = 10

// cancelInterval is the number of iterations between context checks.
const cancelInterval = 64

// sectorDamping holds the oscillation damping factor per 30° sector of the
// angle between a vertex's previous and current force.
var sectorDamping = [12]float64{
	2, 1.5, 1, 0.66666666, 0.5, 0.33333333,
	0.33333333, 0.5, 0.66666666, 1, 1.5, 2,
}

// Stats summarises one call to [Iterator.Run] or [Iterator.Postprocess].
type Stats struct {
	Iterations   int      `json:"iterations"`
	AverageForce float64  `json:"average_force"`
	Box          geom.Box `json:"-"`
}

// Iterator simulates one level of one connected component.
type Iterator struct {
	// trace, when set, is called after every iteration with the
	// iteration number and the refitted computation box.
	trace func(iter int, box geom.Box)

	g      *multigraph.Graph
	pos    []r2.Vec
	rep    repulsion.Strategy
	params Params
	box    geom.Box
	avgLen float64
	bound  float64

	attr, repF, net, last []r2.Vec
	cool                  float64
}

// NewIterator creates an iterator over g that moves pos in place. pos must
// have one entry per vertex of g. The strategy is prepared with box before
// the first iteration.
func NewIterator(g *multigraph.Graph, pos []r2.Vec, box geom.Box, rep repulsion.Strategy, p Params) *Iterator {
	n := len(pos)
	it := &Iterator{
		g:      g,
		pos:    pos,
		rep:    rep,
		params: p,
		box:    box,
		avgLen: g.AverageEdgeLength(50),
		attr:   make([]r2.Vec, n),
		repF:   make([]r2.Vec, n),
		net:    make([]r2.Vec, n),
		last:   make([]r2.Vec, n),
		cool:   1,
	}
	it.bound = Bound(p.Positions, it.avgLen, n, p.MaxIntPosExponent)
	rep.Prepare(box)
	return it
}

// Box returns the current computation box.
func (it *Iterator) Box() geom.Box { return it.box }

// Positions returns the slice the iterator moves.
func (it *Iterator) Positions() []r2.Vec { return it.pos }

// Run iterates the main phase. maxIter caps the fixed-iteration criteria;
// the threshold criterion stops once the average force drops below
// Params.Threshold or [IterationCeiling] is reached. ctx is checked every
// few iterations; on cancellation Run returns the stats so far and
// ctx.Err().
func (it *Iterator) Run(ctx context.Context, maxIter int) (Stats, error) {
	if len(it.pos) < 2 {
		return Stats{Box: it.box}, nil
	}
	avg := it.params.Threshold + 1
	iter := 1
	for it.proceed(iter, maxIter, avg) {
		if err := checkpoint(ctx, iter); err != nil {
			return Stats{Iterations: iter - 1, AverageForce: avg, Box: it.box}, err
		}
		it.step(iter, phaseMain)
		avg = it.averageForce()
		iter++
	}
	return Stats{Iterations: iter - 1, AverageForce: avg, Box: it.box}, nil
}

func (it *Iterator) proceed(iter, maxIter int, avg float64) bool {
	switch it.params.Stop {
	case StopFixedIterations:
		return iter <= maxIter
	case StopThreshold:
		return avg >= it.params.Threshold && iter <= IterationCeiling
	default:
		return iter <= maxIter && avg >= it.params.Threshold
	}
}

func checkpoint(ctx context.Context, iter int) error {
	if (iter-1)%cancelInterval != 0 {
		return nil
	}
	return ctx.Err()
}

// Postprocess runs the settle phase, an optional resize, the fine-tuning
// phase and a second optional resize. Cancellation is handled as in Run.
func (it *Iterator) Postprocess(ctx context.Context) (Stats, error) {
	if len(it.pos) < 2 {
		return Stats{Box: it.box}, nil
	}
	if err := ctx.Err(); err != nil {
		return Stats{Box: it.box}, err
	}
	for i := 1; i <= settleIterations; i++ {
		it.step(i, phaseSettle)
	}
	if it.params.Resize {
		it.resize()
		it.refit()
	}
	for i := 1; i <= it.params.FineTuningIterations; i++ {
		if err := checkpoint(ctx, i); err != nil {
			return Stats{Iterations: settleIterations + i - 1, AverageForce: it.averageForce(), Box: it.box}, err
		}
		it.step(i, phaseFineTune)
	}
	if it.params.Resize {
		it.resize()
		it.refit()
	}
	return Stats{
		Iterations:   settleIterations + it.params.FineTuningIterations,
		AverageForce: it.averageForce(),
		Box:          it.box,
	}, nil
}

func (it *Iterator) step(iter int, ph phase) {
	if it.params.Positions != PositionsAll {
		it.box = Constrain(it.pos, it.bound, it.box)
	}
	it.attract()
	it.rep.Forces(it.pos, it.repF)
	it.combine(iter, ph)
	it.damp(iter)
	for i := range it.pos {
		it.pos[i] = r2.Add(it.pos[i], it.net[i])
	}
	it.refit()
	if it.trace != nil {
		it.trace(iter, it.box)
	}
}

func (it *Iterator) refit() {
	it.box = geom.Fit(it.pos)
	it.rep.Prepare(it.box)
}

// =============================================================================
// Forces
// =============================================================================

// tiny is the distance below which an edge is treated as having coincident
// endpoints.
const tiny = 1e-300

func (it *Iterator) attract() {
	clear(it.attr)
	model := it.params.Model
	for _, e := range it.g.Edges {
		if e.IsLoop() {
			continue
		}
		d := r2.Sub(it.pos[e.V], it.pos[e.U])
		dist := r2.Norm(d)
		if dist < tiny {
			continue
		}
		f := r2.Scale(model.Attraction(dist, e.Length)/dist, d)
		it.attr[e.U] = r2.Add(it.attr[e.U], f)
		it.attr[e.V] = r2.Sub(it.attr[e.V], f)
	}
}

func (it *Iterator) combine(iter int, ph phase) {
	p := it.params
	n := len(it.pos)

	switch {
	case !p.Cool:
		it.cool = 1
	case ph == phaseMain && iter == 1:
		it.cool = p.CoolValue
	case ph == phaseMain:
		it.cool *= p.CoolValue
	}
	switch ph {
	case phaseSettle:
		it.cool /= 10
	case phaseFineTune:
		it.cool = p.FineTuneScalar
		if iter > p.FineTuningIterations-5 {
			it.cool /= 10
		}
	}

	spring, rep := p.SpringStrength, p.RepulsionStrength
	if ph == phaseFineTune {
		spring, rep = p.PostSpringStrength, p.PostRepulsionStrength
		if p.DynamicPostRepulsion {
			rep = math.Min(0.2, 400/float64(n))
		}
	}

	maxRadius := it.box.Length / 5
	if iter == 1 {
		maxRadius = it.box.Length / 1000
	}
	l2 := it.avgLen * it.avgLen
	for i := range it.net {
		f := r2.Scale(l2, r2.Add(r2.Scale(spring, it.attr[i]), r2.Scale(rep, it.repF[i])))
		it.net[i] = limit(f, it.cool*p.ForceScaling, maxRadius)
	}
}

// limit scales f by s and caps the result's length at maxRadius. Forces
// that overflowed point along the sign of their components.
func limit(f r2.Vec, s, maxRadius float64) r2.Vec {
	nf := r2.Norm(f)
	switch {
	case nf == 0 || math.IsNaN(nf):
		return r2.Vec{}
	case math.IsInf(nf, 0):
		dir := r2.Vec{X: sign(f.X), Y: sign(f.Y)}
		if dn := r2.Norm(dir); dn > 0 {
			return r2.Scale(maxRadius/dn, dir)
		}
		return r2.Vec{}
	}
	return r2.Scale(math.Min(nf*s, maxRadius)/nf, f)
}

func sign(x float64) float64 {
	switch {
	case math.IsNaN(x) || x == 0:
		return 0
	case x < 0:
		return -1
	}
	return 1
}

func (it *Iterator) damp(iter int) {
	if iter == 1 {
		copy(it.last, it.net)
		return
	}
	sector := math.Pi / 6
	for i, f := range it.net {
		prev := it.last[i]
		pn, fn := r2.Norm(prev), r2.Norm(f)
		if pn > 0 && fn > 0 {
			s := int(geom.Angle(prev, f) / sector)
			s = min(max(s, 0), len(sectorDamping)-1)
			k := sectorDamping[s]
			if fn > pn*k {
				f = r2.Scale(pn/fn*k, f)
				it.net[i] = f
			}
		}
		it.last[i] = f
	}
}

func (it *Iterator) averageForce() float64 {
	if len(it.net) == 0 {
		return 0
	}
	var sum float64
	for _, f := range it.net {
		sum += r2.Norm(f)
	}
	return sum / float64(len(it.net))
}

// resize scales all positions so that drawn edge lengths match their ideal
// lengths on average.
func (it *Iterator) resize() {
	var ideal, drawn float64
	for _, e := range it.g.Edges {
		ideal += e.Length
		drawn += r2.Norm(r2.Sub(it.pos[e.U], it.pos[e.V]))
	}
	factor := 1.0
	if drawn > 0 {
		factor = ideal / drawn
	}
	s := it.params.ResizeScalar * factor
	for i := range it.pos {
		it.pos[i] = r2.Scale(s, it.pos[i])
	}
}

// =============================================================================
// Position constraints
// =============================================================================

// Bound returns the half side of the square positions are confined to, or
// +Inf when positions are unrestricted.
func Bound(mode AllowedPositions, avgLen float64, n, exponent int) float64 {
	switch mode {
	case PositionsInteger:
		return 100 * avgLen * float64(n) * float64(n)
	case PositionsExponent:
		return math.Exp2(float64(exponent))
	}
	return math.Inf(1)
}

// Constrain projects positions outside [-bound, bound]² onto its border and
// truncates every coordinate to an integer. It returns box extended so that
// it still covers the truncated positions.
func Constrain(pos []r2.Vec, bound float64, box geom.Box) geom.Box {
	for i, p := range pos {
		q, ok := geom.ProjectToSquare(p, bound)
		if !ok {
			panic(fmt.Sprintf("force: %v has no projection onto the border of [-%g, %g]²", p, bound, bound))
		}
		q = r2.Vec{X: math.Floor(q.X), Y: math.Floor(q.Y)}
		if q.X < box.Corner.X {
			box.Length += 2
			box.Corner.X -= 2
		}
		if q.Y < box.Corner.Y {
			box.Length += 2
			box.Corner.Y -= 2
		}
		pos[i] = q
	}
	return box
}
