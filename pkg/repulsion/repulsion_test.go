package repulsion

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/fm3/pkg/geom"
	"github.com/matzehuels/fm3/pkg/quadtree"
)

func randomPositions(n int, seed uint64) []r2.Vec {
	rng := rand.New(rand.NewSource(seed))
	pos := make([]r2.Vec, n)
	for i := range pos {
		pos[i] = r2.Vec{X: rng.Float64() * 1000, Y: rng.Float64() * 1000}
	}
	return pos
}

func compute(s Strategy, pos []r2.Vec) []r2.Vec {
	out := make([]r2.Vec, len(pos))
	s.Prepare(geom.Fit(pos))
	s.Forces(pos, out)
	return out
}

func relativeError(got, want []r2.Vec) float64 {
	var errSum, normSum float64
	for i := range want {
		errSum += r2.Norm(r2.Sub(got[i], want[i]))
		normSum += r2.Norm(want[i])
	}
	return errSum / normSum
}

func TestExactPair(t *testing.T) {
	pos := []r2.Vec{{X: 0, Y: 0}, {X: 4, Y: 0}}
	out := compute(&Exact{}, pos)
	if want := (r2.Vec{X: -0.25}); r2.Norm(r2.Sub(out[0], want)) > 1e-12 {
		t.Errorf("force on 0 = %v, want %v", out[0], want)
	}
	if want := (r2.Vec{X: 0.25}); r2.Norm(r2.Sub(out[1], want)) > 1e-12 {
		t.Errorf("force on 1 = %v, want %v", out[1], want)
	}
}

func TestCoincidentVerticesSeparate(t *testing.T) {
	pos := []r2.Vec{{X: 5, Y: 5}, {X: 5, Y: 5}, {X: 5, Y: 5}}
	for _, m := range []Method{MethodExact, MethodGrid, MethodMultipole, MethodBarnesHut} {
		t.Run(string(m), func(t *testing.T) {
			out := compute(New(m, Config{GridQuotient: 2, Tree: quadtree.DefaultOptions()}), pos)
			var sum r2.Vec
			for i, f := range out {
				if math.IsNaN(f.X) || math.IsNaN(f.Y) || math.IsInf(f.X, 0) || math.IsInf(f.Y, 0) {
					t.Fatalf("force on %d = %v, want finite", i, f)
				}
				if r2.Norm(f) == 0 {
					t.Errorf("force on %d is zero, want separation", i)
				}
				sum = r2.Add(sum, f)
			}
			if r2.Norm(sum) > 1e-6*r2.Norm(out[0]) {
				t.Errorf("net force = %v, want ~0", sum)
			}
		})
	}
}

func TestApproximationsTrackExact(t *testing.T) {
	pos := randomPositions(500, 42)
	want := compute(&Exact{}, pos)

	tests := []struct {
		name string
		s    Strategy
		tol  float64
	}{
		{"multipole subtree", &Multipole{Options: quadtree.DefaultOptions()}, 1e-2},
		{"multipole path aluru", &Multipole{Options: quadtree.Options{
			LeafCapacity: 8, Precision: 6,
			Construction: quadtree.PathByPath, SmallestCell: quadtree.CellAluru,
		}}, 1e-2},
		{"barnes-hut", &BarnesHut{Theta: 0.5}, 0.15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rel := relativeError(compute(tt.s, pos), want); rel > tt.tol {
				t.Errorf("relative error = %.3g, want <= %g", rel, tt.tol)
			}
		})
	}
}

func TestGridIgnoresFarCells(t *testing.T) {
	// Two clusters in opposite corners of a 3×3 grid.
	var near, far []r2.Vec
	for i := 0; i < 18; i++ {
		near = append(near, r2.Vec{X: float64(i%6) * 2, Y: float64(i/6) * 2})
		far = append(far, r2.Vec{X: 990 + float64(i%6)*2, Y: 990 + float64(i/6)*2})
	}
	pos := append(append([]r2.Vec{}, near...), far...)

	got := compute(&Grid{Quotient: 2}, pos)
	want := compute(&Exact{}, near)
	for i := range near {
		if d := r2.Norm(r2.Sub(got[i], want[i])); d > 1e-9*r2.Norm(want[i]) {
			t.Errorf("force on %d = %v, want %v", i, got[i], want[i])
		}
	}
	exact := compute(&Exact{}, pos)
	if r2.Norm(r2.Sub(exact[0], want[0])) == 0 {
		t.Errorf("exact force on 0 ignores the far cluster")
	}
}

func TestGridVisitsNeighbourhoodOnly(t *testing.T) {
	// A vertex alone in its cell neighbourhood feels no force at all, however
	// many vertices sit elsewhere.
	pos := randomPositions(400, 7)
	for i := range pos {
		pos[i] = r2.Vec{X: pos[i].X * 0.4, Y: pos[i].Y * 0.4}
	}
	pos = append(pos, r2.Vec{X: 1000, Y: 1000})
	out := compute(&Grid{Quotient: 2}, pos)
	if f := out[len(pos)-1]; r2.Norm(f) != 0 {
		t.Errorf("force on isolated vertex = %v, want zero", f)
	}
}

func TestNewSelectsStrategy(t *testing.T) {
	tests := []struct {
		method Method
		want   string
	}{
		{MethodExact, "*repulsion.Exact"},
		{MethodGrid, "*repulsion.Grid"},
		{MethodMultipole, "*repulsion.Multipole"},
		{MethodBarnesHut, "*repulsion.BarnesHut"},
		{"unknown", "*repulsion.Multipole"},
	}
	for _, tt := range tests {
		got := typeName(New(tt.method, Config{}))
		if got != tt.want {
			t.Errorf("New(%q) = %s, want %s", tt.method, got, tt.want)
		}
	}
}

func typeName(s Strategy) string {
	switch s.(type) {
	case *Exact:
		return "*repulsion.Exact"
	case *Grid:
		return "*repulsion.Grid"
	case *Multipole:
		return "*repulsion.Multipole"
	case *BarnesHut:
		return "*repulsion.BarnesHut"
	}
	return "unknown"
}
