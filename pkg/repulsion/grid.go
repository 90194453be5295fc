package repulsion

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/fm3/pkg/geom"
)

// Grid buckets vertices into a uniform grid with sqrt(n)/Quotient cells per
// side. Pairs in the same or adjacent cells interact exactly and farther
// pairs are ignored, so each vertex only visits its 3×3 cell neighbourhood.
type Grid struct {
	Quotient float64
	box      geom.Box
}

func (s *Grid) Prepare(box geom.Box) { s.box = box }

func (s *Grid) Forces(pos []r2.Vec, out []r2.Vec) {
	clear(out)
	n := len(pos)
	if n < 2 {
		return
	}
	box := fitBox(s.box, pos)
	eps := epsilon(box)

	q := s.Quotient
	if q <= 0 {
		q = 2
	}
	k := max(int(math.Sqrt(float64(n))/q), 1)
	side := box.Length / float64(k)

	index := func(v float64) int {
		return min(max(int(math.Floor(v/side)), 0), k-1)
	}
	cellX := make([]int, n)
	cellY := make([]int, n)
	cells := make([][]int, k*k)
	for i, p := range pos {
		cx, cy := index(p.X-box.Corner.X), index(p.Y-box.Corner.Y)
		cellX[i], cellY[i] = cx, cy
		cells[cy*k+cx] = append(cells[cy*k+cx], i)
	}

	for i, p := range pos {
		var f r2.Vec
		for cy := max(cellY[i]-1, 0); cy <= min(cellY[i]+1, k-1); cy++ {
			for cx := max(cellX[i]-1, 0); cx <= min(cellX[i]+1, k-1); cx++ {
				for _, j := range cells[cy*k+cx] {
					if j != i {
						f = r2.Add(f, pairForce(i, j, p, pos[j], eps))
					}
				}
			}
		}
		out[i] = f
	}
}
