// Package multigraph provides the undirected multigraph that every layout
// stage reads and writes.
//
// # Overview
//
// A [Graph] is two arenas: a slice of [Vertex] values and a slice of [Edge]
// values. Identities are slice indices. Graphs derived from another graph
// (the reduced copy, a connected component, a coarser multilevel graph) keep
// an Orig index per vertex and edge pointing into their parent, so results
// can be mapped back without pointers between graphs.
//
// Loops and parallel edges are allowed here; the layout removes them with
// [transform.Reduce] before any force computation.
//
// # Basic Usage
//
//	g := multigraph.New(2, 1)
//	a := g.AddVertex(multigraph.Vertex{Width: 20, Height: 10})
//	b := g.AddVertex(multigraph.Vertex{Width: 20, Height: 10})
//	if _, err := g.AddEdge(a, b, 1); err != nil {
//	    return err
//	}
//
// [Graph.Components] splits a graph into connected components using gonum's
// graph/topo package.
//
// # Concurrency
//
// A Graph is not safe for concurrent mutation. Distinct graphs, including
// the induced subgraphs of distinct components, share no state and may be
// processed in parallel.
package multigraph
