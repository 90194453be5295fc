package multigraph

import (
	"slices"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Components returns the connected components of g as lists of vertex
// indices. Components are ordered by their smallest vertex index and each
// list is sorted ascending, so the result is deterministic.
func (g *Graph) Components() [][]int {
	if len(g.Vertices) == 0 {
		return nil
	}
	ug := simple.NewUndirectedGraph()
	for i := range g.Vertices {
		ug.AddNode(simple.Node(int64(i)))
	}
	for _, e := range g.Edges {
		if e.IsLoop() {
			continue
		}
		ug.SetEdge(ug.NewEdge(simple.Node(int64(e.U)), simple.Node(int64(e.V))))
	}

	ccs := topo.ConnectedComponents(ug)
	out := make([][]int, 0, len(ccs))
	for _, cc := range ccs {
		out = append(out, nodeIndices(cc))
	}
	slices.SortFunc(out, func(a, b []int) int { return a[0] - b[0] })
	return out
}

func nodeIndices(nodes []graph.Node) []int {
	idx := make([]int, len(nodes))
	for i, n := range nodes {
		idx[i] = int(n.ID())
	}
	slices.Sort(idx)
	return idx
}
