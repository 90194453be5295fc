package quadtree

import (
	"math"
	"math/bits"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/fm3/pkg/geom"
)

// maxDepth is the lattice resolution in bits per axis.
const maxDepth = 30

// separation is the distance, in cell sides, beyond which a cell's
// expansion replaces its particles.
const separation = 2.0

// ConstructionPolicy selects how the tree is built.
type ConstructionPolicy string

const (
	PathByPath       ConstructionPolicy = "path_by_path"
	SubtreeBySubtree ConstructionPolicy = "subtree_by_subtree"
)

// CellPolicy selects how the smallest enclosing cell is computed.
type CellPolicy string

const (
	CellIterative CellPolicy = "iteratively"
	CellAluru     CellPolicy = "aluru"
)

// Options configures tree construction and expansion.
type Options struct {
	LeafCapacity int                // maximum particles per leaf, >= 1
	Precision    int                // number of expansion terms after a_0, >= 1
	Construction ConstructionPolicy // tree construction procedure
	SmallestCell CellPolicy         // smallest enclosing cell procedure
}

// DefaultOptions returns the leaf capacity 25, precision 4, subtree-by-subtree
// construction and iterative cell search.
func DefaultOptions() Options {
	return Options{
		LeafCapacity: 25,
		Precision:    4,
		Construction: SubtreeBySubtree,
		SmallestCell: CellIterative,
	}
}

type point struct{ x, y uint64 }

// cell is a lattice square: depth level, index (x, y) in [0, 2^level).
type cell struct {
	level uint
	x, y  uint64
}

func (c cell) contains(p point) bool {
	shift := maxDepth - c.level
	return p.x>>shift == c.x && p.y>>shift == c.y
}

// encloses reports whether d lies inside c.
func (c cell) encloses(d cell) bool {
	if d.level < c.level {
		return false
	}
	shift := d.level - c.level
	return d.x>>shift == c.x && d.y>>shift == c.y
}

func (c cell) child(q int) cell {
	return cell{level: c.level + 1, x: c.x<<1 | uint64(q&1), y: c.y<<1 | uint64(q>>1)}
}

// span returns the lattice extent of c.
func (c cell) span() (lo, hi point) {
	shift := maxDepth - c.level
	lo = point{c.x << shift, c.y << shift}
	w := uint64(1)<<shift - 1
	return lo, point{lo.x + w, lo.y + w}
}

func quadrant(p point, level uint) int {
	shift := maxDepth - level - 1
	return int(p.x>>shift&1) | int(p.y>>shift&1)<<1
}

// Node is one cell of the tree.
type Node struct {
	Center    r2.Vec // centre of the cell
	Side      float64
	Children  []int // node indices; empty for leaves
	Particles []int // particle indices; leaves only
	Count     int   // particles in the subtree

	cell   cell
	coeffs []complex128
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool { return len(n.Children) == 0 }

// Tree is a reduced bucket quadtree over a fixed set of positions.
type Tree struct {
	Nodes []Node
	Root  int

	box  geom.Box
	pos  []r2.Vec
	pts  []point
	opts Options
}

// Build constructs the tree for pos inside box. Positions outside the box
// are clamped to its border for indexing purposes only.
func Build(pos []r2.Vec, box geom.Box, opts Options) *Tree {
	if opts.LeafCapacity < 1 {
		opts.LeafCapacity = 1
	}
	if opts.Precision < 1 {
		opts.Precision = 1
	}
	t := &Tree{
		Nodes: make([]Node, 0, 2*len(pos)/opts.LeafCapacity+1),
		box:   box,
		pos:   pos,
		pts:   make([]point, len(pos)),
		opts:  opts,
	}
	scale := float64(uint64(1)<<maxDepth) / box.Length
	limit := float64(uint64(1)<<maxDepth - 1)
	for i, p := range pos {
		t.pts[i] = point{
			x: uint64(math.Min(math.Max(math.Floor((p.X-box.Corner.X)*scale), 0), limit)),
			y: uint64(math.Min(math.Max(math.Floor((p.Y-box.Corner.Y)*scale), 0), limit)),
		}
	}
	if len(pos) == 0 {
		t.Root = t.newNode(cell{}, nil)
		return t
	}

	switch opts.Construction {
	case PathByPath:
		t.Root = t.newNode(cell{}, nil)
		for i := range pos {
			t.Root = t.insert(t.Root, i)
		}
		t.shrinkLeaves(t.Root)
	default:
		all := make([]int, len(pos))
		for i := range all {
			all[i] = i
		}
		t.Root = t.buildSubtree(all, cell{})
	}
	return t
}

func (t *Tree) newNode(c cell, parts []int) int {
	side := t.box.Length / float64(uint64(1)<<c.level)
	t.Nodes = append(t.Nodes, Node{
		Center: r2.Vec{
			X: t.box.Corner.X + (float64(c.x)+0.5)*side,
			Y: t.box.Corner.Y + (float64(c.y)+0.5)*side,
		},
		Side:      side,
		Particles: parts,
		Count:     len(parts),
		cell:      c,
	})
	return len(t.Nodes) - 1
}

// setCell moves node id to cell c and refreshes its geometry.
func (t *Tree) setCell(id int, c cell) {
	side := t.box.Length / float64(uint64(1)<<c.level)
	n := &t.Nodes[id]
	n.cell = c
	n.Side = side
	n.Center = r2.Vec{
		X: t.box.Corner.X + (float64(c.x)+0.5)*side,
		Y: t.box.Corner.Y + (float64(c.y)+0.5)*side,
	}
}

func (t *Tree) extent(parts []int) (lo, hi point) {
	lo, hi = t.pts[parts[0]], t.pts[parts[0]]
	for _, p := range parts[1:] {
		q := t.pts[p]
		lo.x, hi.x = min(lo.x, q.x), max(hi.x, q.x)
		lo.y, hi.y = min(lo.y, q.y), max(hi.y, q.y)
	}
	return lo, hi
}

// smallestCell returns the smallest lattice cell containing lo and hi. For
// the iterative policy start must already contain both.
func (t *Tree) smallestCell(start cell, lo, hi point) cell {
	if t.opts.SmallestCell == CellAluru {
		diff := (lo.x ^ hi.x) | (lo.y ^ hi.y)
		level := uint(maxDepth - bits.Len64(diff))
		shift := maxDepth - level
		return cell{level: level, x: lo.x >> shift, y: lo.y >> shift}
	}
	c := start
	for c.level < maxDepth {
		shift := maxDepth - c.level - 1
		if lo.x>>shift != hi.x>>shift || lo.y>>shift != hi.y>>shift {
			break
		}
		c = cell{level: c.level + 1, x: lo.x >> shift, y: lo.y >> shift}
	}
	return c
}

func (t *Tree) buildSubtree(parts []int, start cell) int {
	lo, hi := t.extent(parts)
	c := t.smallestCell(start, lo, hi)
	if len(parts) <= t.opts.LeafCapacity || c.level == maxDepth {
		return t.newNode(c, parts)
	}

	var quads [4][]int
	for _, p := range parts {
		q := quadrant(t.pts[p], c.level)
		quads[q] = append(quads[q], p)
	}
	id := t.newNode(c, nil)
	t.Nodes[id].Count = len(parts)
	for q, qp := range quads {
		if len(qp) == 0 {
			continue
		}
		child := t.buildSubtree(qp, c.child(q))
		t.Nodes[id].Children = append(t.Nodes[id].Children, child)
	}
	return id
}

// insert adds particle p below node id and returns the node that now roots
// that subtree.
func (t *Tree) insert(id, p int) int {
	pt := t.pts[p]
	c := t.Nodes[id].cell

	if !c.contains(pt) {
		lo, hi := c.span()
		lo.x, hi.x = min(lo.x, pt.x), max(hi.x, pt.x)
		lo.y, hi.y = min(lo.y, pt.y), max(hi.y, pt.y)
		anc := t.smallestCell(cell{}, lo, hi)
		if t.Nodes[id].IsLeaf() && t.Nodes[id].Count < t.opts.LeafCapacity {
			t.setCell(id, anc)
			t.Nodes[id].Particles = append(t.Nodes[id].Particles, p)
			t.Nodes[id].Count++
			return id
		}
		leaf := t.newNode(anc.child(quadrant(pt, anc.level)), []int{p})
		nid := t.newNode(anc, nil)
		t.Nodes[nid].Children = []int{id, leaf}
		t.Nodes[nid].Count = t.Nodes[id].Count + 1
		return nid
	}

	if t.Nodes[id].IsLeaf() {
		t.Nodes[id].Particles = append(t.Nodes[id].Particles, p)
		t.Nodes[id].Count++
		if t.Nodes[id].Count > t.opts.LeafCapacity {
			t.split(id)
		}
		return id
	}

	t.Nodes[id].Count++
	qc := c.child(quadrant(pt, c.level))
	for k, ch := range t.Nodes[id].Children {
		if qc.encloses(t.Nodes[ch].cell) {
			t.Nodes[id].Children[k] = t.insert(ch, p)
			return id
		}
	}
	leaf := t.newNode(qc, []int{p})
	t.Nodes[id].Children = append(t.Nodes[id].Children, leaf)
	return id
}

// split turns an overflowing leaf into an inner node.
func (t *Tree) split(id int) {
	parts := t.Nodes[id].Particles
	lo, hi := t.extent(parts)
	c := t.smallestCell(t.Nodes[id].cell, lo, hi)
	t.setCell(id, c)
	if c.level == maxDepth {
		return
	}
	t.Nodes[id].Particles = nil

	var quads [4][]int
	for _, p := range parts {
		q := quadrant(t.pts[p], c.level)
		quads[q] = append(quads[q], p)
	}
	for q, qp := range quads {
		if len(qp) == 0 {
			continue
		}
		child := t.newNode(c.child(q), qp)
		t.Nodes[id].Children = append(t.Nodes[id].Children, child)
		if len(qp) > t.opts.LeafCapacity {
			t.split(child)
		}
	}
}

func (t *Tree) shrinkLeaves(id int) {
	n := &t.Nodes[id]
	if n.IsLeaf() {
		if len(n.Particles) > 0 {
			lo, hi := t.extent(n.Particles)
			t.setCell(id, t.smallestCell(n.cell, lo, hi))
		}
		return
	}
	for _, ch := range n.Children {
		t.shrinkLeaves(ch)
	}
}
