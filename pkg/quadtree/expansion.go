package quadtree

import (
	"gonum.org/v1/gonum/spatial/r2"
)

func toComplex(v r2.Vec) complex128 { return complex(v.X, v.Y) }

// Expand computes the multipole coefficients of every node. It must be
// called before [Tree.Field].
func (t *Tree) Expand() {
	p := t.opts.Precision
	binom := make([][]float64, p+1)
	for n := range binom {
		binom[n] = make([]float64, n+1)
		binom[n][0], binom[n][n] = 1, 1
		for k := 1; k < n; k++ {
			binom[n][k] = binom[n-1][k-1] + binom[n-1][k]
		}
	}
	t.expand(t.Root, binom)
}

func (t *Tree) expand(id int, binom [][]float64) {
	p := t.opts.Precision
	coeffs := make([]complex128, p+1)
	zc := toComplex(t.Nodes[id].Center)

	if t.Nodes[id].IsLeaf() {
		coeffs[0] = complex(float64(len(t.Nodes[id].Particles)), 0)
		for _, i := range t.Nodes[id].Particles {
			z := toComplex(t.pos[i]) - zc
			zk := z
			for k := 1; k <= p; k++ {
				coeffs[k] -= zk / complex(float64(k), 0)
				zk *= z
			}
		}
		t.Nodes[id].coeffs = coeffs
		return
	}

	pow := make([]complex128, p+1)
	for _, ch := range t.Nodes[id].Children {
		t.expand(ch, binom)
		a := t.Nodes[ch].coeffs
		z0 := toComplex(t.Nodes[ch].Center) - zc
		pow[0] = 1
		for k := 1; k <= p; k++ {
			pow[k] = pow[k-1] * z0
		}
		coeffs[0] += a[0]
		for l := 1; l <= p; l++ {
			s := -a[0] * pow[l] / complex(float64(l), 0)
			for k := 1; k <= l; k++ {
				s += a[k] * pow[l-k] * complex(binom[l-1][k-1], 0)
			}
			coeffs[l] += s
		}
	}
	t.Nodes[id].coeffs = coeffs
}

// gradient evaluates φ'(z) of node id.
func (t *Tree) gradient(id int, z complex128) complex128 {
	a := t.Nodes[id].coeffs
	inv := 1 / (z - toComplex(t.Nodes[id].Center))
	g := a[0] * inv
	ik := inv * inv
	for k := 1; k < len(a); k++ {
		g -= complex(float64(k), 0) * a[k] * ik
		ik *= inv
	}
	return g
}

// Field returns the far-field repulsion acting on particle i and calls near
// for every other particle whose cell is too close for its expansion to be
// used. The far-field contribution of each unit charge has magnitude 1/d.
func (t *Tree) Field(i int, near func(j int)) r2.Vec {
	z := t.pos[i]
	zc := toComplex(z)
	var far complex128

	stack := []int{t.Root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.Nodes[id]
		if r2.Norm(r2.Sub(z, n.Center)) >= separation*n.Side {
			far += t.gradient(id, zc)
			continue
		}
		if n.IsLeaf() {
			for _, j := range n.Particles {
				if j != i {
					near(j)
				}
			}
			continue
		}
		stack = append(stack, n.Children...)
	}
	return r2.Vec{X: real(far), Y: -imag(far)}
}
