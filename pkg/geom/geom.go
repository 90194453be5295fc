// Package geom provides the small set of planar primitives shared by the
// layout stages: the square computation box that every force iteration
// re-derives from the current vertex positions, segment intersection, and the
// projection used to keep positions inside an integer bound.
//
// All coordinates are [r2.Vec] values from gonum's spatial/r2 package.
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Box is an axis-aligned square given by its lower-left corner and side length.
type Box struct {
	Corner r2.Vec  // lower-left corner
	Length float64 // side length
}

// Max returns the upper-right corner of the box.
func (b Box) Max() r2.Vec {
	return r2.Vec{X: b.Corner.X + b.Length, Y: b.Corner.Y + b.Length}
}

// Center returns the midpoint of the box.
func (b Box) Center() r2.Vec {
	return r2.Vec{X: b.Corner.X + b.Length/2, Y: b.Corner.Y + b.Length/2}
}

// Contains reports whether p lies inside the box, borders included.
func (b Box) Contains(p r2.Vec) bool {
	m := b.Max()
	return p.X >= b.Corner.X && p.X <= m.X && p.Y >= b.Corner.Y && p.Y <= m.Y
}

// Grow extends the box so that it contains p, keeping it square.
func (b Box) Grow(p r2.Vec) Box {
	for !b.Contains(p) {
		if p.X < b.Corner.X || p.Y < b.Corner.Y {
			b.Corner = r2.Vec{X: b.Corner.X - b.Length, Y: b.Corner.Y - b.Length}
		}
		b.Length *= 2
	}
	return b
}

// Clamp moves p to the nearest point of the box.
func (b Box) Clamp(p r2.Vec) r2.Vec {
	m := b.Max()
	return r2.Vec{
		X: math.Min(math.Max(p.X, b.Corner.X), m.X),
		Y: math.Min(math.Max(p.Y, b.Corner.Y), m.Y),
	}
}

// Extent returns the component-wise minimum and maximum of pts.
// It returns zero vectors for an empty slice.
func Extent(pts []r2.Vec) (lo, hi r2.Vec) {
	if len(pts) == 0 {
		return r2.Vec{}, r2.Vec{}
	}
	lo, hi = pts[0], pts[0]
	for _, p := range pts[1:] {
		lo.X = math.Min(lo.X, p.X)
		lo.Y = math.Min(lo.Y, p.Y)
		hi.X = math.Max(hi.X, p.X)
		hi.Y = math.Max(hi.Y, p.Y)
	}
	return lo, hi
}

// Fit derives the computation box for pts.
//
// The corner is floor(min-1) and the side is ceil(1.01*max(dx, dy) + 2), so
// every point lies strictly inside. When all points coincide the box would
// degenerate; it then gets side 20*len(pts) centred on the common point.
func Fit(pts []r2.Vec) Box {
	lo, hi := Extent(pts)
	b := Box{
		Corner: r2.Vec{X: math.Floor(lo.X - 1), Y: math.Floor(lo.Y - 1)},
		Length: math.Ceil(math.Max(hi.X-lo.X, hi.Y-lo.Y)*1.01 + 2),
	}
	if b.Length <= 2 {
		b.Length = float64(len(pts) * 20)
		b.Corner = r2.Vec{X: math.Floor(lo.X) - b.Length/2, Y: math.Floor(lo.Y) - b.Length/2}
	}
	return b
}

// Segment is the closed line segment between A and B.
type Segment struct {
	A, B r2.Vec
}

const intersectEps = 1e-12

// Intersect returns the intersection point of s and t. Parallel segments
// never intersect, even when collinear and overlapping.
func (s Segment) Intersect(t Segment) (r2.Vec, bool) {
	d1 := r2.Sub(s.B, s.A)
	d2 := r2.Sub(t.B, t.A)
	den := r2.Cross(d1, d2)
	if math.Abs(den) < intersectEps {
		return r2.Vec{}, false
	}
	w := r2.Sub(t.A, s.A)
	u := r2.Cross(w, d2) / den
	v := r2.Cross(w, d1) / den
	if u < -intersectEps || u > 1+intersectEps || v < -intersectEps || v > 1+intersectEps {
		return r2.Vec{}, false
	}
	return r2.Add(s.A, r2.Scale(u, d1)), true
}

// ProjectToSquare maps p onto the border of the square [-bound, bound]² along
// the segment from the origin to p. Points inside the square are returned
// unchanged. The boolean is false only when no border is hit, which cannot
// happen for a point outside the square.
func ProjectToSquare(p r2.Vec, bound float64) (r2.Vec, bool) {
	if math.Abs(p.X) <= bound && math.Abs(p.Y) <= bound {
		return p, true
	}
	lb := r2.Vec{X: -bound, Y: -bound}
	lt := r2.Vec{X: -bound, Y: bound}
	rb := r2.Vec{X: bound, Y: -bound}
	rt := r2.Vec{X: bound, Y: bound}
	ray := Segment{A: r2.Vec{}, B: p}
	for _, side := range [...]Segment{{lb, lt}, {rb, rt}, {lt, rt}, {lb, rb}} {
		if q, ok := ray.Intersect(side); ok {
			return q, true
		}
	}
	return p, false
}

// Angle returns the counterclockwise angle in [0, 2π) that rotates from onto
// to. Either vector being zero yields 0.
func Angle(from, to r2.Vec) float64 {
	n := r2.Norm(from) * r2.Norm(to)
	if n == 0 {
		return 0
	}
	c := r2.Dot(from, to) / n
	switch {
	case c >= 1:
		return 0
	case c <= -1:
		return math.Pi
	}
	fi := math.Acos(c)
	if r2.Cross(from, to) < 0 {
		fi = 2*math.Pi - fi
	}
	return fi
}
