package multilevel

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/fm3/pkg/multigraph"
)

func path(t *testing.T, n int, length float64) *multigraph.Graph {
	t.Helper()
	g := multigraph.New(n, n-1)
	for range n {
		g.AddVertex(multigraph.Vertex{Width: 10, Height: 10})
	}
	for i := 0; i+1 < n; i++ {
		if _, err := g.AddEdge(i, i+1, length); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
	}
	return g
}

func star(t *testing.T, leaves int) *multigraph.Graph {
	t.Helper()
	g := multigraph.New(leaves+1, leaves)
	for range leaves + 1 {
		g.AddVertex(multigraph.Vertex{})
	}
	for i := 1; i <= leaves; i++ {
		if _, err := g.AddEdge(0, i, 5); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
	}
	return g
}

func TestBuildStarCollapses(t *testing.T) {
	for _, choice := range []GalaxyChoice{ChoiceUniform, ChoiceLowerMass, ChoiceHigherMass} {
		t.Run(string(choice), func(t *testing.T) {
			h := Build(star(t, 10), Options{MinGraphSize: 2, Choice: choice, RandomTries: 3}, rand.New(rand.NewSource(1)))
			if h.Depth() != 1 {
				t.Fatalf("Depth() = %d, want 1", h.Depth())
			}
			top := h.Levels[1]
			if n := top.Graph.NumVertices(); n != 1 {
				t.Errorf("coarse vertices = %d, want 1", n)
			}
			if top.Mass[0] != 11 {
				t.Errorf("coarse mass = %v, want 11", top.Mass[0])
			}
			suns := 0
			for _, r := range h.Levels[0].Role {
				if r == RoleSun {
					suns++
				}
			}
			if suns != 1 {
				t.Errorf("suns = %d, want 1", suns)
			}
		})
	}
}

func TestBuildSmallGraphStaysSingleLevel(t *testing.T) {
	h := Build(path(t, 5, 10), Options{MinGraphSize: 50}, rand.New(rand.NewSource(1)))
	if h.Depth() != 0 {
		t.Errorf("Depth() = %d, want 0", h.Depth())
	}
}

func TestBuildInvariants(t *testing.T) {
	for _, seed := range []uint64{1, 2, 3} {
		g := path(t, 200, 10)
		h := Build(g, Options{MinGraphSize: 10, Choice: ChoiceLowerMass, RandomTries: 20}, rand.New(rand.NewSource(seed)))

		if h.Depth() == 0 {
			t.Fatalf("seed %d: no coarsening happened", seed)
		}
		if n := h.Levels[h.Depth()].Graph.NumVertices(); n > 10 {
			t.Errorf("seed %d: coarsest level has %d vertices, want <= 10", seed, n)
		}
		for i, l := range h.Levels[:h.Depth()] {
			checkLevel(t, l, h.Levels[i+1])
		}
	}
}

func checkLevel(t *testing.T, fine, coarse *Level) {
	t.Helper()
	g := fine.Graph
	n := g.NumVertices()
	cn := coarse.Graph.NumVertices()
	if cn >= n {
		t.Errorf("level did not shrink: %d -> %d", n, cn)
	}

	adjacent := func(u, v int) (float64, bool) {
		for _, inc := range g.Adjacency()[u] {
			if inc.Neighbor == v {
				return g.Edges[inc.Edge].Length, true
			}
		}
		return 0, false
	}

	sunOf := make([]int, cn)
	for i := range sunOf {
		sunOf[i] = -1
	}
	var fineMass, coarseMass float64
	for v := range n {
		fineMass += fine.Mass[v]
		c := fine.Parent[v]
		if c < 0 || c >= cn {
			t.Fatalf("Parent[%d] = %d out of range", v, c)
		}
		s := fine.Sun[v]
		if fine.Role[s] != RoleSun || fine.Parent[s] != c {
			t.Errorf("vertex %d: sun %d is not the sun of system %d", v, s, c)
		}
		switch fine.Role[v] {
		case RoleSun:
			if sunOf[c] >= 0 {
				t.Errorf("system %d has two suns: %d and %d", c, sunOf[c], v)
			}
			sunOf[c] = v
		case RolePlanet:
			if d, ok := adjacent(v, s); !ok || d != fine.SunDist[v] {
				t.Errorf("planet %d: SunDist = %v, edge to sun (%v, %v)", v, fine.SunDist[v], d, ok)
			}
		case RoleMoon:
			p := fine.Planet[v]
			if p < 0 || fine.Role[p] != RolePlanet || fine.Sun[p] != s {
				t.Errorf("moon %d orbits %d which is not a planet of sun %d", v, p, s)
			}
			if d, ok := adjacent(v, p); !ok || d+fine.SunDist[p] != fine.SunDist[v] {
				t.Errorf("moon %d: SunDist = %v, want edge + planet distance", v, fine.SunDist[v])
			}
		default:
			t.Errorf("vertex %d has no role", v)
		}
		for _, lm := range fine.Lambda[v] {
			if lm.Ratio <= 0 || lm.Ratio >= 1 || lm.Coarse == c {
				t.Errorf("vertex %d: bad lambda %+v", v, lm)
			}
		}
	}
	for c, s := range sunOf {
		if s < 0 {
			t.Errorf("system %d has no sun", c)
		}
	}
	for _, m := range coarse.Mass {
		coarseMass += m
	}
	if fineMass != coarseMass {
		t.Errorf("mass not preserved: %v -> %v", fineMass, coarseMass)
	}

	seen := map[[2]int]bool{}
	for _, e := range coarse.Graph.Edges {
		if e.IsLoop() {
			t.Errorf("coarse loop at %d", e.U)
		}
		key := [2]int{min(e.U, e.V), max(e.U, e.V)}
		if seen[key] {
			t.Errorf("parallel coarse edges between %d and %d", e.U, e.V)
		}
		seen[key] = true
	}
}

func TestBuildDeterministic(t *testing.T) {
	opts := Options{MinGraphSize: 5, Choice: ChoiceUniform}
	a := Build(path(t, 100, 10), opts, rand.New(rand.NewSource(9)))
	b := Build(path(t, 100, 10), opts, rand.New(rand.NewSource(9)))
	if a.Depth() != b.Depth() {
		t.Fatalf("Depth() = %d and %d for the same seed", a.Depth(), b.Depth())
	}
	for i := range a.Levels[:a.Depth()] {
		if diff := cmp.Diff(a.Levels[i].Parent, b.Levels[i].Parent); diff != "" {
			t.Errorf("level %d parents differ (-a +b):\n%s", i, diff)
		}
	}
}

// fixedSystems builds the path 0-1-2-3-4 (edge length 10) partitioned into
// sun 0 with planet 1 and moon 2, and sun 4 with planet 3.
func fixedSystems(t *testing.T) (*Level, *systems) {
	t.Helper()
	l := &Level{Graph: path(t, 5, 10), Mass: []float64{1, 1, 1, 1, 1}}
	p := &systems{
		suns:   []int{0, 4},
		role:   []Role{RoleSun, RolePlanet, RoleMoon, RolePlanet, RoleSun},
		sun:    []int{0, 0, 0, 4, 4},
		planet: []int{-1, -1, 1, -1, -1},
		parent: []int{0, 0, 0, 1, 1},
		dist:   []float64{0, 10, 20, 10, 0},
		lambda: make([][]Lambda, 5),
	}
	return l, p
}

func TestCollapse(t *testing.T) {
	fine, p := fixedSystems(t)
	coarse := collapse(fine, p)

	if n := coarse.Graph.NumEdges(); n != 1 {
		t.Fatalf("coarse edges = %d, want 1", n)
	}
	if got := coarse.Graph.Edges[0].Length; got != 40 {
		t.Errorf("coarse edge length = %v, want 40", got)
	}
	if diff := cmp.Diff([]float64{3, 2}, coarse.Mass); diff != "" {
		t.Errorf("coarse mass mismatch (-want +got):\n%s", diff)
	}
	want := [][]Lambda{
		nil,
		{{Coarse: 1, Ratio: 0.25}},
		{{Coarse: 1, Ratio: 0.5}},
		{{Coarse: 0, Ratio: 0.25}},
		nil,
	}
	if diff := cmp.Diff(want, p.lambda); diff != "" {
		t.Errorf("lambda mismatch (-want +got):\n%s", diff)
	}
}

func TestInterpolate(t *testing.T) {
	fine, p := fixedSystems(t)
	collapse(fine, p)
	p.apply(fine)
	coarse := []r2.Vec{{X: 0, Y: 0}, {X: 40, Y: 0}}
	rnd := rand.New(rand.NewSource(3))

	t.Run("simple", func(t *testing.T) {
		pos := make([]r2.Vec, 5)
		fine.Interpolate(coarse, pos, InterpolateSimple, rnd)
		if pos[0] != coarse[0] || pos[4] != coarse[1] {
			t.Errorf("suns at %v and %v, want %v and %v", pos[0], pos[4], coarse[0], coarse[1])
		}
		for _, v := range []int{1, 2, 3} {
			d := r2.Norm(r2.Sub(pos[v], coarse[fine.Parent[v]]))
			if math.Abs(d-fine.SunDist[v]) > 1e-9 {
				t.Errorf("vertex %d is %v from its sun, want %v", v, d, fine.SunDist[v])
			}
		}
	})

	t.Run("advanced", func(t *testing.T) {
		pos := make([]r2.Vec, 5)
		fine.Interpolate(coarse, pos, InterpolateAdvanced, rnd)
		want := []r2.Vec{{X: 0}, {X: 10}, {X: 20}, {X: 30}, {X: 40}}
		// Jitter moves each vertex by at most 1% of its sun distance.
		if diff := cmp.Diff(want, pos, cmpopts.EquateApprox(0, 0.21)); diff != "" {
			t.Errorf("advanced placement mismatch (-want +got):\n%s", diff)
		}
	})
}
