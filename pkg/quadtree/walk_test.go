package quadtree

import "gonum.org/v1/gonum/spatial/r2"

// leaves returns the particle sets of all leaves in depth-first order.
func (t *Tree) leaves() [][]int {
	var out [][]int
	var walk func(int)
	walk = func(id int) {
		n := &t.Nodes[id]
		if n.IsLeaf() {
			out = append(out, n.Particles)
			return
		}
		for _, ch := range n.Children {
			walk(ch)
		}
	}
	walk(t.Root)
	return out
}

// contains reports whether the cell of node id contains position p.
func (t *Tree) contains(id int, p r2.Vec) bool {
	n := &t.Nodes[id]
	h := n.Side / 2
	const eps = 1e-9
	return p.X >= n.Center.X-h-eps && p.X <= n.Center.X+h+eps &&
		p.Y >= n.Center.Y-h-eps && p.Y <= n.Center.Y+h+eps
}
