// Package multilevel coarsens a graph into a hierarchy of solar systems and
// interpolates layouts from one level down to the next.
//
// # Coarsening
//
// Each round partitions the vertices of the current level into solar
// systems. A sun is drawn from the remaining candidates, every unassigned
// neighbour of the sun becomes one of its planets, and the neighbours of
// those planets stop being candidates. Once no candidates remain, each
// vertex still unassigned becomes a moon of the adjacent planet it reaches
// over the shortest edge. Every system collapses into one vertex of the
// next coarser level, which carries the sun's size and the summed mass of
// the system.
//
// An edge between two systems becomes a coarse edge whose length is the
// fine edge length plus the distances of both endpoints to their suns.
// Parallel coarse edges are merged by averaging their lengths.
//
// Coarsening stops at [MaxLevel], once a level has at most
// Options.MinGraphSize vertices, once a round fails to shrink the graph, or
// after five rounds that kept more than 80% of the edges.
//
// # Interpolation
//
// [Level.Interpolate] seeds a finer level from the solved coarser one. Suns
// take the position of their coarse vertex. Planets and moons are placed
// either at a random point on the circle around their sun whose radius is
// their distance to it, or, in advanced mode, at the mean of the points that
// split the segments towards neighbouring systems in the ratio of their
// distance to the total inter-system path length.
//
// All randomness comes from the *rand.Rand passed in by the caller, so a
// fixed seed reproduces the same hierarchy.
package multilevel
