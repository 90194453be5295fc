package force

import (
	"cmp"
	"math"
	"slices"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/fm3/pkg/geom"
	"github.com/matzehuels/fm3/pkg/multigraph"
)

// Placement selects how the coarsest level is seeded.
type Placement string

const (
	// PlacementKeep starts from the positions already stored on the graph.
	PlacementKeep Placement = "keep_positions"
	// PlacementGrid spreads vertices over the cells of a square grid.
	PlacementGrid Placement = "uniform_grid"
	// PlacementRandomTime places vertices uniformly at random, seeded from
	// the wall clock.
	PlacementRandomTime Placement = "random_time"
	// PlacementRandomSeed places vertices uniformly at random from the
	// configured seed.
	PlacementRandomSeed Placement = "random_seed"
)

const (
	minVertexSize = 10
	boxScaling    = 1.1
)

// InitialBox returns the side length of the square that fresh placements
// are drawn into: 1.1 times the larger of the summed vertex widths and
// heights, each counted as at least 10.
func InitialBox(g *multigraph.Graph) float64 {
	var w, h float64
	for _, v := range g.Vertices {
		w += math.Max(v.Width, minVertexSize)
		h += math.Max(v.Height, minVertexSize)
	}
	return math.Ceil(math.Max(w, h) * boxScaling)
}

// Place writes initial positions for every vertex of g into pos and returns
// the computation box fitted to them. seed is used by PlacementRandomSeed.
//
// Fresh placements are reordered by [untangle], so a cycle starts as a
// simple polygon rather than in a crossed order that the forces cannot
// undo.
func Place(g *multigraph.Graph, pos []r2.Vec, mode Placement, seed uint64) geom.Box {
	n := len(pos)
	if n == 0 {
		return geom.Box{}
	}
	side := InitialBox(g)
	switch mode {
	case PlacementKeep:
		for i, v := range g.Vertices {
			pos[i] = v.Pos
		}
	case PlacementGrid:
		level := int(math.Ceil(math.Log(float64(n)) / math.Log(4)))
		cells := 1 << level
		cell := side / float64(cells)
		for k := range pos {
			i, j := k/cells, k%cells
			pos[k] = r2.Vec{
				X: side*float64(i)/float64(cells) + cell/2,
				Y: side*float64(j)/float64(cells) + cell/2,
			}
		}
	default:
		if mode == PlacementRandomTime {
			seed = uint64(time.Now().Unix())
		}
		rnd := rand.New(rand.NewSource(seed))
		for k := range pos {
			pos[k] = r2.Vec{
				X: rnd.Float64()*(side-2) + 1,
				Y: rnd.Float64()*(side-2) + 1,
			}
		}
	}
	if mode != PlacementKeep {
		untangle(g, pos)
	}
	return geom.Fit(pos)
}

// untangle permutes pos so that a depth-first walk of g meets the points in
// angular order around their centroid. The set of points is unchanged.
func untangle(g *multigraph.Graph, pos []r2.Vec) {
	n := len(pos)
	if n < 3 {
		return
	}
	var c r2.Vec
	for _, p := range pos {
		c = r2.Add(c, p)
	}
	c = r2.Scale(1/float64(n), c)

	pts := slices.Clone(pos)
	slices.SortStableFunc(pts, func(a, b r2.Vec) int {
		da, db := r2.Sub(a, c), r2.Sub(b, c)
		if o := cmp.Compare(math.Atan2(da.Y, da.X), math.Atan2(db.Y, db.X)); o != 0 {
			return o
		}
		return cmp.Compare(r2.Norm2(da), r2.Norm2(db))
	})
	for k, v := range walkOrder(g) {
		pos[v] = pts[k]
	}
}

// walkOrder returns the vertices of g in depth-first preorder, restarting
// from the lowest unvisited vertex until all are covered.
func walkOrder(g *multigraph.Graph) []int {
	adj := g.Adjacency()
	seen := make([]bool, len(adj))
	order := make([]int, 0, len(adj))
	var stack []int
	for root := range adj {
		if seen[root] {
			continue
		}
		stack = append(stack[:0], root)
		for len(stack) > 0 {
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if seen[v] {
				continue
			}
			seen[v] = true
			order = append(order, v)
			for i := len(adj[v]) - 1; i >= 0; i-- {
				if w := adj[v][i].Neighbor; !seen[w] {
					stack = append(stack, w)
				}
			}
		}
	}
	return order
}
