// Package force runs the force-directed simulation on one level of one
// connected component.
//
// An [Iterator] owns the per-vertex force buffers and the computation box of
// its graph. Each iteration bounds the positions (when configured), sums
// spring forces along edges, asks the configured repulsion strategy for the
// repulsive field, scales and clamps the combined force, damps oscillating
// vertices and moves them, then refits the box and hands it back to the
// repulsion strategy. Nothing is shared between iterators, so components
// can be simulated concurrently.
//
// [Iterator.Run] iterates until the configured [StopCriterion] is met,
// bounded by [IterationCeiling]. [Iterator.Postprocess] runs the settle and
// fine-tuning phases applied to the finest level only. Both poll their
// context every few iterations and stop early once it is done.
package force
