package force

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/fm3/pkg/geom"
	"github.com/matzehuels/fm3/pkg/multigraph"
	"github.com/matzehuels/fm3/pkg/repulsion"
)

func testParams() Params {
	return Params{
		Model:                 ModelFruchtermanReingold,
		SpringStrength:        1,
		RepulsionStrength:     1,
		PostSpringStrength:    2,
		PostRepulsionStrength: 0.01,
		Stop:                  StopFixedIterationsOrThreshold,
		Threshold:             0.01,
		ForceScaling:          1,
		Cool:                  true,
		CoolValue:             0.99,
		FineTuningIterations:  20,
		FineTuneScalar:        0.2,
		Resize:                true,
		ResizeScalar:          1,
		Positions:             PositionsAll,
	}
}

func pathGraph(t *testing.T, n int, length float64) *multigraph.Graph {
	t.Helper()
	g := multigraph.New(n, n-1)
	for i := 0; i < n; i++ {
		g.AddVertex(multigraph.Vertex{Width: 10, Height: 10})
	}
	for i := 0; i+1 < n; i++ {
		if _, err := g.AddEdge(i, i+1, length); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
	}
	return g
}

func TestModelAttraction(t *testing.T) {
	tests := []struct {
		model Model
		d, l  float64
		want  float64
	}{
		{ModelFruchtermanReingold, 10, 10, 0.1},
		{ModelFruchtermanReingold, 20, 10, 0.4},
		{ModelEades, 10, 10, 0},
		{ModelEades, 20, 10, 1},
		{ModelEades, 0, 10, -1e10},
		{ModelNew, 10, 10, 0},
		{ModelNew, 20, 10, 0.4},
		{ModelNew, 0, 10, -1e10},
	}
	for _, tt := range tests {
		got := tt.model.Attraction(tt.d, tt.l)
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("%s.Attraction(%v, %v) = %v, want %v", tt.model, tt.d, tt.l, got, tt.want)
		}
	}
}

func TestBudget(t *testing.T) {
	tests := []struct {
		name                string
		policy              IterationPolicy
		level, maxLevel, n  int
		fixed, factor, want int
	}{
		{"constant", IterConstant, 3, 5, 1000, 30, 10, 30},
		{"small graph floor", IterConstant, 0, 5, 500, 30, 10, 100},
		{"linear top", IterLinearlyDecreasing, 4, 4, 1000, 30, 10, 300},
		{"linear half", IterLinearlyDecreasing, 2, 4, 1000, 30, 10, 165},
		{"linear finest", IterLinearlyDecreasing, 0, 4, 1000, 30, 10, 30},
		{"linear single level", IterLinearlyDecreasing, 0, 0, 1000, 30, 10, 300},
		{"rapid top", IterRapidlyDecreasing, 4, 4, 1000, 30, 10, 300},
		{"rapid second", IterRapidlyDecreasing, 3, 4, 1000, 30, 10, 165},
		{"rapid third", IterRapidlyDecreasing, 2, 4, 1000, 30, 10, 97},
		{"rapid rest", IterRapidlyDecreasing, 1, 4, 1000, 30, 10, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Budget(tt.policy, tt.level, tt.maxLevel, tt.n, tt.fixed, tt.factor)
			if got != tt.want {
				t.Errorf("Budget() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLimit(t *testing.T) {
	tests := []struct {
		name      string
		f         r2.Vec
		s, radius float64
		want      r2.Vec
	}{
		{"scaled", r2.Vec{X: 3, Y: 4}, 0.5, 100, r2.Vec{X: 1.5, Y: 2}},
		{"capped", r2.Vec{X: 3, Y: 4}, 1, 1, r2.Vec{X: 0.6, Y: 0.8}},
		{"zero", r2.Vec{}, 1, 1, r2.Vec{}},
		{"nan", r2.Vec{X: math.NaN()}, 1, 1, r2.Vec{}},
		{"overflow", r2.Vec{X: math.Inf(1), Y: 0}, 1, 2, r2.Vec{X: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := limit(tt.f, tt.s, tt.radius)
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
				t.Errorf("limit() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDampReversal(t *testing.T) {
	it := &Iterator{
		net:  []r2.Vec{{X: -4}, {X: 3}, {Y: 3}},
		last: []r2.Vec{{X: 1}, {X: 1}, {}},
	}
	it.damp(2)

	want := []r2.Vec{
		{X: -0.33333333}, // reversed: capped at a third of the previous step
		{X: 2},           // same direction: capped at twice the previous step
		{Y: 3},           // no previous movement
	}
	if diff := cmp.Diff(want, it.net, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("damped forces mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, it.last, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("last movement mismatch (-want +got):\n%s", diff)
	}
}

func TestDampFirstIterationRecords(t *testing.T) {
	it := &Iterator{
		net:  []r2.Vec{{X: 5}},
		last: []r2.Vec{{X: -1}},
	}
	it.damp(1)
	if it.net[0] != (r2.Vec{X: 5}) || it.last[0] != (r2.Vec{X: 5}) {
		t.Errorf("damp(1): net = %v, last = %v, want both {5 0}", it.net[0], it.last[0])
	}
}

func TestBound(t *testing.T) {
	if got := Bound(PositionsAll, 10, 5, 0); !math.IsInf(got, 1) {
		t.Errorf("Bound(all) = %v, want +Inf", got)
	}
	if got := Bound(PositionsInteger, 10, 5, 0); got != 25000 {
		t.Errorf("Bound(integer) = %v, want 25000", got)
	}
	if got := Bound(PositionsExponent, 10, 5, 8); got != 256 {
		t.Errorf("Bound(exponent) = %v, want 256", got)
	}
}

func TestConstrain(t *testing.T) {
	pos := []r2.Vec{{X: 20, Y: 5}, {X: 1.7, Y: -2.2}, {X: -30, Y: -30}}
	box := geom.Box{Corner: r2.Vec{X: -5, Y: -5}, Length: 30}

	got := Constrain(pos, 10, box)

	want := []r2.Vec{{X: 10, Y: 2}, {X: 1, Y: -3}, {X: -10, Y: -10}}
	if diff := cmp.Diff(want, pos, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("positions mismatch (-want +got):\n%s", diff)
	}
	wantBox := geom.Box{Corner: r2.Vec{X: -7, Y: -7}, Length: 34}
	if got != wantBox {
		t.Errorf("Constrain() box = %+v, want %+v", got, wantBox)
	}
}

func TestPlaceGrid(t *testing.T) {
	g := pathGraph(t, 5, 1)
	pos := make([]r2.Vec, 5)

	box := Place(g, pos, PlacementGrid, 0)

	// Five vertices fill the first five cells of a 4x4 grid, column by column.
	cell := InitialBox(g) / 4
	center := func(i, j int) r2.Vec {
		return r2.Vec{X: cell*float64(i) + cell/2, Y: cell*float64(j) + cell/2}
	}
	want := []r2.Vec{center(0, 0), center(0, 1), center(0, 2), center(0, 3), center(1, 0)}
	opts := cmp.Options{
		cmpopts.EquateApprox(0, 1e-9),
		cmpopts.SortSlices(func(a, b r2.Vec) bool { return a.X < b.X || (a.X == b.X && a.Y < b.Y) }),
	}
	if diff := cmp.Diff(want, pos, opts); diff != "" {
		t.Errorf("Place(grid) cells mismatch (-want +got):\n%s", diff)
	}
	for i, p := range pos {
		if !box.Contains(p) {
			t.Errorf("pos[%d] = %v outside box %+v", i, p, box)
		}
	}
}

func cycleGraph(t *testing.T, n int, length float64) *multigraph.Graph {
	t.Helper()
	g := pathGraph(t, n, length)
	if _, err := g.AddEdge(n-1, 0, length); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	return g
}

func TestPlaceCycleIsSimple(t *testing.T) {
	tests := []struct {
		mode Placement
		seed uint64
	}{
		{PlacementGrid, 0},
		{PlacementRandomSeed, 1},
		{PlacementRandomSeed, 2},
		{PlacementRandomSeed, 3},
		{PlacementRandomSeed, 4},
		{PlacementRandomSeed, 5},
		{PlacementRandomSeed, 17},
	}
	for _, tt := range tests {
		g := cycleGraph(t, 4, 100)
		pos := make([]r2.Vec, 4)
		Place(g, pos, tt.mode, tt.seed)
		for _, pair := range [][2]int{{0, 2}, {1, 3}} {
			a, b := pair[0], pair[1]
			s := geom.Segment{A: pos[a], B: pos[(a+1)%4]}
			u := geom.Segment{A: pos[b], B: pos[(b+1)%4]}
			if p, ok := s.Intersect(u); ok {
				t.Errorf("Place(%s, %d): edges %d-%d and %d-%d cross at %v", tt.mode, tt.seed, a, (a+1)%4, b, (b+1)%4, p)
			}
		}
	}
}

func TestWalkOrder(t *testing.T) {
	g := multigraph.New(6, 4)
	for range 6 {
		g.AddVertex(multigraph.Vertex{})
	}
	for _, e := range [][2]int{{0, 3}, {3, 1}, {0, 2}, {4, 5}} {
		if _, err := g.AddEdge(e[0], e[1], 1); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
	}
	want := []int{0, 3, 1, 2, 4, 5}
	if diff := cmp.Diff(want, walkOrder(g)); diff != "" {
		t.Errorf("walkOrder mismatch (-want +got):\n%s", diff)
	}
}

func TestPlaceRandomSeedDeterministic(t *testing.T) {
	g := pathGraph(t, 20, 1)
	a := make([]r2.Vec, 20)
	b := make([]r2.Vec, 20)
	Place(g, a, PlacementRandomSeed, 42)
	Place(g, b, PlacementRandomSeed, 42)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("same seed produced different placements (-a +b):\n%s", diff)
	}
	side := InitialBox(g)
	for i, p := range a {
		if p.X < 1 || p.X > side-1 || p.Y < 1 || p.Y > side-1 {
			t.Errorf("pos[%d] = %v outside [1, %v]", i, p, side-1)
		}
	}
}

func TestPlaceKeep(t *testing.T) {
	g := pathGraph(t, 2, 1)
	g.Vertices[0].Pos = r2.Vec{X: 3, Y: 4}
	g.Vertices[1].Pos = r2.Vec{X: -1, Y: 2}
	pos := make([]r2.Vec, 2)
	Place(g, pos, PlacementKeep, 0)
	want := []r2.Vec{{X: 3, Y: 4}, {X: -1, Y: 2}}
	if diff := cmp.Diff(want, pos); diff != "" {
		t.Errorf("Place(keep) mismatch (-want +got):\n%s", diff)
	}
}

func TestRunFixedIterations(t *testing.T) {
	g := pathGraph(t, 4, 50)
	pos := make([]r2.Vec, 4)
	box := Place(g, pos, PlacementRandomSeed, 1)
	p := testParams()
	p.Stop = StopFixedIterations

	stats, err := NewIterator(g, pos, box, &repulsion.Exact{}, p).Run(context.Background(), 7)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Iterations != 7 {
		t.Errorf("Run(7).Iterations = %d, want 7", stats.Iterations)
	}
}

func TestRunBoxCoversPositions(t *testing.T) {
	g := pathGraph(t, 12, 30)
	pos := make([]r2.Vec, 12)
	box := Place(g, pos, PlacementRandomSeed, 7)

	it := NewIterator(g, pos, box, &repulsion.Exact{}, testParams())
	var calls int
	it.trace = func(iter int, box geom.Box) {
		calls++
		for i, p := range it.Positions() {
			if !box.Contains(p) {
				t.Fatalf("iteration %d: pos[%d] = %v outside box %+v", iter, i, p, box)
			}
		}
	}
	stats, err := it.Run(context.Background(), 50)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != stats.Iterations {
		t.Errorf("trace called %d times, want %d", calls, stats.Iterations)
	}
}

func TestPostprocessMatchesIdealLength(t *testing.T) {
	g := pathGraph(t, 2, 100)
	pos := []r2.Vec{{X: 0, Y: 0}, {X: 30, Y: 10}}
	box := geom.Fit(pos)

	it := NewIterator(g, pos, box, &repulsion.Exact{}, testParams())
	if _, err := it.Run(context.Background(), 100); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := it.Postprocess(context.Background()); err != nil {
		t.Fatalf("Postprocess: %v", err)
	}

	if d := r2.Norm(r2.Sub(pos[0], pos[1])); math.Abs(d-100) > 1e-6 {
		t.Errorf("edge length after postprocess = %v, want 100", d)
	}
}

func TestRunSingleVertex(t *testing.T) {
	g := multigraph.New(1, 0)
	g.AddVertex(multigraph.Vertex{})
	pos := []r2.Vec{{X: 4, Y: 4}}
	stats, _ := NewIterator(g, pos, geom.Fit(pos), &repulsion.Exact{}, testParams()).Run(context.Background(), 10)
	if stats.Iterations != 0 || pos[0] != (r2.Vec{X: 4, Y: 4}) {
		t.Errorf("Run on single vertex: iterations %d, pos %v", stats.Iterations, pos[0])
	}
}

func TestRunThresholdStopsAtCeiling(t *testing.T) {
	g := pathGraph(t, 4, 50)
	pos := make([]r2.Vec, 4)
	box := Place(g, pos, PlacementRandomSeed, 3)
	p := testParams()
	p.Stop = StopThreshold
	p.Threshold = 0 // average force never drops below zero

	stats, err := NewIterator(g, pos, box, &repulsion.Exact{}, p).Run(context.Background(), 5)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Iterations != IterationCeiling {
		t.Errorf("Run.Iterations = %d, want %d", stats.Iterations, IterationCeiling)
	}
}

func TestRunThresholdStopsEarly(t *testing.T) {
	g := pathGraph(t, 4, 50)
	pos := make([]r2.Vec, 4)
	box := Place(g, pos, PlacementRandomSeed, 3)
	p := testParams()
	p.Stop = StopThreshold
	p.Threshold = 1e6

	stats, err := NewIterator(g, pos, box, &repulsion.Exact{}, p).Run(context.Background(), 5)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Iterations != 1 {
		t.Errorf("Run.Iterations = %d, want 1", stats.Iterations)
	}
}

func TestRunForcesDecrease(t *testing.T) {
	g := cycleGraph(t, 12, 40)
	pos := make([]r2.Vec, 12)
	box := Place(g, pos, PlacementRandomSeed, 11)
	p := testParams()
	p.Stop = StopFixedIterations

	const iterations, window = 300, 30
	it := NewIterator(g, pos, box, &repulsion.Exact{}, p)
	var forces []float64
	it.trace = func(int, geom.Box) { forces = append(forces, it.averageForce()) }
	if _, err := it.Run(context.Background(), iterations); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(forces) != iterations {
		t.Fatalf("recorded %d iterations, want %d", len(forces), iterations)
	}

	var means []float64
	for i := 0; i < iterations; i += window {
		var sum float64
		for _, f := range forces[i : i+window] {
			sum += f
		}
		means = append(means, sum/window)
	}
	var rises int
	for i := 1; i < len(means); i++ {
		if means[i] > means[i-1] {
			rises++
		}
	}
	if rises > len(means)/4 {
		t.Errorf("windowed mean force rose %d times in %v", rises, means)
	}
	if last, first := means[len(means)-1], means[0]; last >= first {
		t.Errorf("final mean force %v, want below initial %v", last, first)
	}
}

func TestRunCancelled(t *testing.T) {
	g := pathGraph(t, 6, 50)
	pos := make([]r2.Vec, 6)
	box := Place(g, pos, PlacementRandomSeed, 5)
	p := testParams()
	p.Stop = StopFixedIterations

	ctx, cancel := context.WithCancel(context.Background())
	it := NewIterator(g, pos, box, &repulsion.Exact{}, p)
	it.trace = func(iter int, _ geom.Box) {
		if iter == 100 {
			cancel()
		}
	}
	stats, err := it.Run(ctx, 1_000_000)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if stats.Iterations < 100 || stats.Iterations > 100+cancelInterval {
		t.Errorf("Run.Iterations = %d, want within %d of 100", stats.Iterations, cancelInterval)
	}

	if _, err := it.Postprocess(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Postprocess error = %v, want context.Canceled", err)
	}
}
