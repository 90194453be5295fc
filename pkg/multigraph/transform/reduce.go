package transform

import (
	"slices"

	"github.com/matzehuels/fm3/pkg/multigraph"
)

// LengthMeasurement selects how requested edge lengths are measured.
type LengthMeasurement string

const (
	// MeasureMidpoint measures lengths between vertex centres.
	MeasureMidpoint LengthMeasurement = "midpoint"
	// MeasureBoundingCircle measures lengths between the bounding circles of
	// the two vertex boxes, so large vertices are not pushed apart as if
	// they were points.
	MeasureBoundingCircle LengthMeasurement = "bounding_circle"
)

// PrepareLengths rewrites every edge length in place. Non-positive requested
// lengths become 1, the result is multiplied by unit, and in bounding-circle
// mode the radii of both endpoints are added.
func PrepareLengths(g *multigraph.Graph, unit float64, mode LengthMeasurement) {
	for i := range g.Edges {
		e := &g.Edges[i]
		if e.Length <= 0 {
			e.Length = 1
		}
		e.Length *= unit
		if mode == MeasureBoundingCircle {
			e.Length += g.Vertices[e.U].Radius() + g.Vertices[e.V].Radius()
		}
	}
}

// Result reports what [Reduce] removed.
type Result struct {
	LoopsRemoved int // self-loops dropped
	EdgesMerged  int // parallel edges absorbed into a kept edge
}

// Reduce returns a loop-free simple copy of g. Vertices are copied one to one.
// Each bundle of parallel edges, regardless of orientation, is replaced by
// its lowest-indexed member carrying the mean length of the bundle. Edge Orig
// fields of the result point at that member in g.
func Reduce(g *multigraph.Graph) (*multigraph.Graph, Result) {
	var res Result

	keep := make([]int, 0, len(g.Edges))
	for i, e := range g.Edges {
		if e.IsLoop() {
			res.LoopsRemoved++
			continue
		}
		keep = append(keep, i)
	}

	// Sorting by the unordered endpoint pair makes every bundle contiguous.
	slices.SortStableFunc(keep, func(a, b int) int {
		ua, va := pair(g.Edges[a])
		ub, vb := pair(g.Edges[b])
		if ua != ub {
			return ua - ub
		}
		return va - vb
	})

	out := multigraph.New(len(g.Vertices), len(keep))
	for i, v := range g.Vertices {
		v.Orig = i
		out.Vertices = append(out.Vertices, v)
	}

	for start := 0; start < len(keep); {
		first := g.Edges[keep[start]]
		u, v := pair(first)
		sum := first.Length
		end := start + 1
		for end < len(keep) {
			cu, cv := pair(g.Edges[keep[end]])
			if cu != u || cv != v {
				break
			}
			sum += g.Edges[keep[end]].Length
			end++
		}
		count := end - start
		res.EdgesMerged += count - 1
		out.Edges = append(out.Edges, multigraph.Edge{
			U:      first.U,
			V:      first.V,
			Length: sum / float64(count),
			Orig:   keep[start],
		})
		start = end
	}

	// Restore input order among kept edges for deterministic downstream use.
	slices.SortFunc(out.Edges, func(a, b multigraph.Edge) int { return a.Orig - b.Orig })
	return out, res
}

func pair(e multigraph.Edge) (int, int) {
	if e.U < e.V {
		return e.U, e.V
	}
	return e.V, e.U
}
