package repulsion

import (
	"gonum.org/v1/gonum/spatial/barneshut"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/fm3/pkg/geom"
)

// BarnesHut approximates repulsion with gonum's Barnes-Hut plane. Layouts
// with coincident vertices are computed exactly instead, since the plane
// cannot separate identical coordinates.
type BarnesHut struct {
	Theta float64 // opening angle; 0.5 when unset
	box   geom.Box
}

func (s *BarnesHut) Prepare(box geom.Box) { s.box = box }

func (s *BarnesHut) Forces(pos []r2.Vec, out []r2.Vec) {
	clear(out)
	if len(pos) < 2 {
		return
	}
	seen := make(map[r2.Vec]struct{}, len(pos))
	particles := make([]barneshut.Particle2, len(pos))
	for i, p := range pos {
		if _, dup := seen[p]; dup {
			s.exact(pos, out)
			return
		}
		seen[p] = struct{}{}
		particles[i] = &charge{pos: p}
	}

	plane, err := barneshut.NewPlane(particles)
	if err != nil {
		s.exact(pos, out)
		return
	}
	theta := s.Theta
	if theta <= 0 {
		theta = 0.5
	}
	for i, p := range particles {
		out[i] = plane.ForceOn(p, theta, repel)
	}
}

func (s *BarnesHut) exact(pos []r2.Vec, out []r2.Vec) {
	e := Exact{box: s.box}
	e.Forces(pos, out)
}

type charge struct{ pos r2.Vec }

func (c *charge) Coord2() r2.Vec { return c.pos }
func (c *charge) Mass() float64  { return 1 }

// repel is a barneshut.Force2 pushing p1 away from p2 with magnitude
// m1*m2/d; v points from p1 to p2.
func repel(_, _ barneshut.Particle2, m1, m2 float64, v r2.Vec) r2.Vec {
	d2 := r2.Norm2(v)
	if d2 == 0 {
		return r2.Vec{}
	}
	return r2.Scale(-m1*m2/d2, v)
}
