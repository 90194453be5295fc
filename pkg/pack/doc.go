// Package pack arranges the drawings of connected components side by side.
//
// Every component is enclosed in a bounding rectangle padded by half the
// minimum component distance on each side. [Arrange] optionally rotates
// each component through a fixed number of angles in [0°, 90°) to find the
// smallest rectangle and tips rectangles whose orientation disagrees with
// the page ratio. [Pack] then places the rectangles in rows using a
// best-fit rule that minimises the aspect-ratio-weighted area of the
// result, and the component positions are translated onto their packed
// rectangles.
package pack
