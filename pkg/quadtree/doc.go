// Package quadtree implements the reduced bucket quadtree used by the
// multipole repulsion strategy.
//
// # Cells
//
// The computation box is overlaid with a lattice of 2^30 × 2^30 cells. A
// tree cell at depth l covers a square of side box/2^l and is identified by
// its lattice prefix, so containment and common-ancestor tests are integer
// shifts. Every tree node holds the smallest lattice cell that encloses its
// particles, which removes chains of single-child nodes ("reduced" tree).
// Leaves hold at most [Options.LeafCapacity] particles unless the particles
// coincide at lattice resolution.
//
// Two interchangeable procedures find the smallest enclosing cell:
// [CellIterative] descends from a known enclosing cell one level at a time,
// [CellAluru] computes it in closed form from the highest differing bit of
// the extreme lattice coordinates. They always agree.
//
// # Construction
//
// [SubtreeBySubtree] partitions the particle set recursively. [PathByPath]
// inserts particles one at a time, splitting leaves that overflow and
// inserting common ancestors where a particle falls outside a shrunken
// cell. Both produce the same tree shape.
//
// # Multipole expansions
//
// Positions are treated as complex numbers. The repulsive field of unit
// charges at z_i seen from z is conj(Σ 1/(z - z_i)), a force of magnitude
// 1/d pointing away from every particle. [Tree.Expand] computes, per node,
// the truncated expansion
//
//	φ(z) = a_0 log(z - z_c) + Σ_{k=1..p} a_k / (z - z_c)^k
//
// around the cell centre z_c, from particles at the leaves and by shifting
// children's expansions at inner nodes. [Tree.Field] walks the tree for one
// particle, evaluates φ' for cells that are well separated from it, and
// reports the remaining near particles to a callback for direct summation.
package quadtree
