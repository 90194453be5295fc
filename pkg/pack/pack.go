package pack

import (
	"cmp"
	"slices"

	"gonum.org/v1/gonum/spatial/r2"
)

// Presort orders rectangles before packing.
type Presort string

const (
	PresortNone             Presort = "none"
	PresortDecreasingHeight Presort = "decreasing_height"
	PresortDecreasingWidth  Presort = "decreasing_width"
)

// TipOver controls whether the packer may rotate rectangles by 90°.
type TipOver string

const (
	// TipNone never rotates.
	TipNone TipOver = "none"
	// TipNoGrowingRow rotates only into an existing row that the rotated
	// rectangle does not make taller.
	TipNoGrowingRow TipOver = "no_growing_row"
	// TipAlways rotates whenever that yields a better packing.
	TipAlways TipOver = "always"
)

// Rect is the padded bounding rectangle of one component.
type Rect struct {
	Component     int // index of the component it encloses
	Width, Height float64
	Old           r2.Vec // lower-left corner in component coordinates
	New           r2.Vec // lower-left corner after packing
	Tipped        bool   // rotated by 90° during packing
}

// tip rotates r by 90° counterclockwise about the component origin.
func (r *Rect) tip() {
	r.Old = r2.Vec{X: -r.Old.Y - r.Height, Y: r.Old.X}
	r.Width, r.Height = r.Height, r.Width
	r.Tipped = !r.Tipped
}

// AspectArea weighs the area of a w×h rectangle by how far its aspect ratio
// deviates from ratio, so that two rectangles of equal area compare by how
// well they fit the page.
func AspectArea(w, h, ratio float64) float64 {
	if h == 0 {
		return 0
	}
	r := w / h
	if r < ratio {
		return w * h * (ratio / r)
	}
	return w * h * (r / ratio)
}

type row struct {
	width, height float64
	members       []int
}

type option struct {
	row    int // -1 opens a new row
	tipped bool
	area   float64
}

// Pack assigns New to every rectangle so that none overlap. Rectangles the
// packer rotates have Width, Height and Old updated and Tipped toggled.
// Rows stack upwards from the origin and fill from left to right.
func Pack(rects []Rect, ratio float64, presort Presort, tip TipOver) {
	if len(rects) == 0 {
		return
	}
	order := make([]int, len(rects))
	for i := range order {
		order[i] = i
	}
	switch presort {
	case PresortDecreasingHeight:
		slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(rects[b].Height, rects[a].Height) })
	case PresortDecreasingWidth:
		slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(rects[b].Width, rects[a].Width) })
	}

	var rows []row
	for k, idx := range order {
		r := &rects[idx]
		if k == 0 {
			rows = append(rows, row{width: r.Width, height: r.Height, members: []int{idx}})
			continue
		}
		best := option{row: -1, area: -1}
		consider := func(i int, tipped bool) {
			w, h := r.Width, r.Height
			if tipped {
				w, h = h, w
			}
			ew, eh := extent(rows, i, w, h)
			if a := AspectArea(ew, eh, ratio); best.area < 0 || a < best.area {
				best = option{row: i, tipped: tipped, area: a}
			}
		}
		for i := range rows {
			consider(i, false)
			if tip == TipAlways || (tip == TipNoGrowingRow && r.Width <= rows[i].height) {
				consider(i, true)
			}
		}
		consider(-1, false)
		if tip == TipAlways {
			consider(-1, true)
		}

		if best.tipped {
			r.tip()
		}
		if best.row < 0 {
			rows = append(rows, row{width: r.Width, height: r.Height, members: []int{idx}})
			continue
		}
		rw := &rows[best.row]
		rw.width += r.Width
		rw.height = max(rw.height, r.Height)
		rw.members = append(rw.members, idx)
	}

	var y float64
	for _, rw := range rows {
		var x float64
		for _, idx := range rw.members {
			rects[idx].New = r2.Vec{X: x, Y: y}
			x += rects[idx].Width
		}
		y += rw.height
	}
}

// extent returns the width and height of the packing if a w×h rectangle were
// appended to row i, or to a new row when i is negative.
func extent(rows []row, i int, w, h float64) (float64, float64) {
	var width, height float64
	for j, rw := range rows {
		rowW, rowH := rw.width, rw.height
		if j == i {
			rowW += w
			rowH = max(rowH, h)
		}
		width = max(width, rowW)
		height += rowH
	}
	if i < 0 {
		width = max(width, w)
		height += h
	}
	return width, height
}
