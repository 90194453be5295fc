// Package pkg provides the libraries behind fm3, a fast multipole multilevel
// force-directed layout for large undirected graphs.
//
// # Overview
//
// A drawing is computed in four stages. The input multigraph is reduced
// (self-loops removed, parallel edges merged) and split into connected
// components. Each component is coarsened into a hierarchy of smaller graphs,
// laid out from the coarsest level down with a force iteration whose
// repulsive forces come from a multipole approximation, and finally the
// component drawings are packed side by side.
//
//	JSON graph
//	     ↓
//	[graph] → [multigraph] (+ transform: loops, parallel edges)
//	     ↓
//	[layout] orchestrator, one goroutine per component
//	     ↓   [multilevel] coarsening and interpolation
//	     ↓   [force] iteration with [repulsion] (exact, grid, multipole)
//	     ↓   [pack] component packing
//	     ↓
//	[graph] Layout → [render] SVG / PNG / DOT
//
// # Quick Start
//
//	g, _ := graph.ReadGraphFile("input.json")
//	mg, _ := graph.ToMultigraph(g)
//	res, _ := layout.Run(ctx, mg, layout.DefaultOptions())
//	out := graph.FromResult(mg, res)
//
// # Main Packages
//
// ## Layout Engine
//
// [geom] - Rectangles, boxes and the small geometric helpers shared by the
// engine.
//
// [quadtree] - Reduced bucket quadtree with multipole and local expansions.
//
// [repulsion] - Repulsive force strategies behind one interface.
//
// [force] - Force models, the iteration loop, damping and postprocessing.
//
// [multilevel] - Solar-system coarsening and placement interpolation.
//
// [pack] - Rotation search and best-fit row packing of component drawings.
//
// [layout] - The orchestrator and its configuration surface.
//
// ## Interchange and Output
//
// [graph] - JSON input graphs and computed layouts.
//
// [multigraph] - Arena-indexed multigraph used by the engine.
//
// [render] - DOT, SVG and PNG drawings of placed graphs.
//
// ## Infrastructure
//
// [pipeline] - Cache-aware runner shared by the CLI and the HTTP API.
//
// [cache] - Cache interface with file, redis and null backends.
//
// [errors] - Coded errors for the outer surfaces.
//
// [observability] - Hooks for layout, cache and server events.
//
// [buildinfo] - Version information, also used to scope cache keys.
//
// # Testing
//
//	go test ./pkg/...            # All tests
//	go test ./pkg/quadtree/...   # Specific package
//	go test -run Example ./...   # Examples only
package pkg
