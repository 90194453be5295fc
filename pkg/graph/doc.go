// Package graph provides the JSON interchange format for layout input and
// output.
//
// It sits at the serialization boundary between files, API requests and
// cache entries on one side and the arena-indexed [multigraph.Graph] that the
// layout engine works on on the other.
//
// # Core Types
//
//   - [Graph]: nodes with optional box size and position, undirected edges
//     with optional ideal length
//   - [Layout]: one position per node, the bounding box and run statistics
//
// # Graph Serialization
//
//	{
//	  "nodes": [{"id": "a", "width": 40, "height": 20}, {"id": "b"}],
//	  "edges": [{"from": "a", "to": "b", "length": 2}]
//	}
//
// Common operations:
//
//	g, _ := graph.ReadGraphFile("input.json")   // File → Graph
//	mg, _ := graph.ToMultigraph(g)              // Graph → multigraph
//	res, _ := layout.Run(ctx, mg, opts)
//	out := graph.FromResult(mg, res)            // Result → Layout
//	data, _ := graph.MarshalLayout(out)
//
// A stored layout can be put back onto its graph with [Graph.Apply], which
// is how rendering works from a precomputed layout file.
//
// Edge lengths are multiples of the unit edge length; zero means 1.
package graph
