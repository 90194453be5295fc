package pack

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Options configures [Arrange].
type Options struct {
	PageRatio     float64 // desired width / height of the whole drawing
	RotationSteps int     // rotation angles tried per component; 0 disables rotation
	MinDistance   float64 // minimum gap between component rectangles
	Presort       Presort
	TipOver       TipOver
}

// Component is the drawing of one connected component. Pos is moved in
// place; Size holds each vertex's width in X and height in Y.
type Component struct {
	Pos  []r2.Vec
	Size []r2.Vec
}

// Bound returns the bounding rectangle of pos, padding every vertex by the
// larger of its half width and half height and the whole rectangle by
// minDist/2 on each side. Padding vertices uniformly keeps the rectangle
// valid when the drawing is tipped over.
func Bound(pos, size []r2.Vec, minDist float64) Rect {
	var lo, hi r2.Vec
	for i, p := range pos {
		b := math.Max(size[i].X/2, size[i].Y/2)
		if i == 0 {
			lo = r2.Vec{X: p.X - b, Y: p.Y - b}
			hi = r2.Vec{X: p.X + b, Y: p.Y + b}
			continue
		}
		lo = r2.Vec{X: math.Min(lo.X, p.X-b), Y: math.Min(lo.Y, p.Y-b)}
		hi = r2.Vec{X: math.Max(hi.X, p.X+b), Y: math.Max(hi.Y, p.Y+b)}
	}
	pad := minDist / 2
	return Rect{
		Width:  hi.X - lo.X + 2*pad,
		Height: hi.Y - lo.Y + 2*pad,
		Old:    r2.Vec{X: lo.X - pad, Y: lo.Y - pad},
	}
}

// Arrange rotates, packs and translates comps and returns the packed
// rectangles, indexed by component.
func Arrange(comps []Component, opts Options) []Rect {
	rects := make([]Rect, len(comps))
	for i, c := range comps {
		var r Rect
		if opts.RotationSteps > 0 {
			r = rotate(c, opts, len(comps) == 1)
		} else {
			r = Bound(c.Pos, c.Size, opts.MinDistance)
		}
		r.Component = i
		rects[i] = r
	}

	Pack(rects, opts.PageRatio, opts.Presort, opts.TipOver)

	for _, r := range rects {
		pos := comps[r.Component].Pos
		shift := r2.Sub(r.New, r.Old)
		for j, p := range pos {
			if r.Tipped {
				p = r2.Vec{X: -p.Y, Y: p.X}
			}
			pos[j] = r2.Add(p, shift)
		}
	}
	return rects
}

// rotate tries RotationSteps angles in (0°, 90°) and keeps the rotation with
// the smallest rectangle. A lone component is judged by aspect-ratio area
// instead, counting a further quarter turn as free. The result is tipped
// when its orientation disagrees with the page ratio. c.Pos is left in the
// chosen orientation.
func rotate(c Component, opts Options, single bool) Rect {
	area := func(w, h float64) float64 {
		if single {
			return AspectArea(w, h, opts.PageRatio)
		}
		return w * h
	}

	orig := append([]r2.Vec(nil), c.Pos...)
	best := append([]r2.Vec(nil), c.Pos...)
	bestRect := Bound(orig, c.Size, opts.MinDistance)
	bestArea := area(bestRect.Width, bestRect.Height)

	for j := 1; j <= opts.RotationSteps; j++ {
		angle := math.Pi / 2 * float64(j) / float64(opts.RotationSteps+1)
		sin, cos := math.Sincos(angle)
		for k, p := range orig {
			c.Pos[k] = r2.Vec{X: cos*p.X - sin*p.Y, Y: sin*p.X + cos*p.Y}
		}
		r := Bound(c.Pos, c.Size, opts.MinDistance)
		a := area(r.Width, r.Height)
		switch {
		case a < bestArea:
		case single && area(r.Height, r.Width) < bestArea:
			a = area(r.Height, r.Width)
		default:
			continue
		}
		bestRect, bestArea = r, a
		copy(best, c.Pos)
	}

	ratio := bestRect.Width / bestRect.Height
	if (opts.PageRatio < 1 && ratio > 1) || (opts.PageRatio >= 1 && ratio < 1) {
		for k, p := range best {
			best[k] = r2.Vec{X: -p.Y, Y: p.X}
		}
		bestRect.tip()
		bestRect.Tipped = false
	}
	copy(c.Pos, best)
	return bestRect
}
