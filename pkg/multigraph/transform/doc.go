// Package transform prepares a [multigraph.Graph] for force-directed layout.
//
// Layout works on a loop-free simple graph. [Reduce] produces one from an
// arbitrary multigraph: self-loops are dropped, and every bundle of parallel
// or anti-parallel edges collapses into a single edge whose ideal length is
// the mean of the bundle. The vertex set is left untouched, so vertex i of
// the reduced graph is vertex i of the input.
//
// [PrepareLengths] runs before reduction and turns the requested per-edge
// lengths into the ideal lengths the force model targets, either between
// vertex centres or between the bounding circles of the vertex boxes.
package transform
