package multigraph

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

var (
	// ErrUnknownVertex is returned by [Graph.AddEdge] when an endpoint index
	// does not refer to a vertex of the graph.
	ErrUnknownVertex = errors.New("unknown vertex")

	// ErrNegativeSize is returned by [Graph.Validate] when a vertex has a
	// negative width or height.
	ErrNegativeSize = errors.New("vertex size must not be negative")

	// ErrNonFinite is returned by [Graph.Validate] when a size, position or
	// edge length is NaN or infinite.
	ErrNonFinite = errors.New("value must be finite")
)

// NoOrigin marks a vertex or edge that has no counterpart in the graph it was
// derived from.
const NoOrigin = -1

// Vertex holds the per-vertex attributes the layout reads and writes.
type Vertex struct {
	ID     string  // optional label carried through for export
	Width  float64 // box width, >= 0
	Height float64 // box height, >= 0
	Pos    r2.Vec  // centre of the box

	// Orig is the index of the vertex this one was derived from in the
	// parent graph (input graph, reduced graph or finer level).
	Orig int
}

// Radius returns the half-diagonal of the vertex box.
func (v Vertex) Radius() float64 {
	return math.Hypot(v.Width/2, v.Height/2)
}

// Edge is an undirected connection between two vertex indices.
type Edge struct {
	U, V   int
	Length float64 // ideal length
	Orig   int     // index of the originating edge in the parent graph
}

// Other returns the endpoint of e that is not v.
func (e Edge) Other(v int) int {
	if e.U == v {
		return e.V
	}
	return e.U
}

// IsLoop reports whether both endpoints coincide.
func (e Edge) IsLoop() bool { return e.U == e.V }

// Incidence is one entry in an adjacency list.
type Incidence struct {
	Edge     int // index into Graph.Edges
	Neighbor int // vertex at the other end
}

// Graph is an undirected multigraph stored as two arenas. Vertex and edge
// identities are their slice indices; derived graphs refer back to their
// parent through the Orig fields.
//
// The zero value is an empty graph ready for use. Graph is not safe for
// concurrent mutation.
type Graph struct {
	Vertices []Vertex
	Edges    []Edge

	adj [][]Incidence
}

// New returns an empty graph with capacity for n vertices and m edges.
func New(n, m int) *Graph {
	return &Graph{
		Vertices: make([]Vertex, 0, n),
		Edges:    make([]Edge, 0, m),
	}
}

// NumVertices returns the number of vertices.
func (g *Graph) NumVertices() int { return len(g.Vertices) }

// NumEdges returns the number of edges.
func (g *Graph) NumEdges() int { return len(g.Edges) }

// AddVertex appends a vertex and returns its index.
func (g *Graph) AddVertex(v Vertex) int {
	g.Vertices = append(g.Vertices, v)
	g.adj = nil
	return len(g.Vertices) - 1
}

// AddEdge appends an edge between u and v with the given ideal length and
// returns its index. Loops and parallel edges are accepted.
func (g *Graph) AddEdge(u, v int, length float64) (int, error) {
	n := len(g.Vertices)
	if u < 0 || u >= n {
		return 0, fmt.Errorf("%w: %d", ErrUnknownVertex, u)
	}
	if v < 0 || v >= n {
		return 0, fmt.Errorf("%w: %d", ErrUnknownVertex, v)
	}
	g.Edges = append(g.Edges, Edge{U: u, V: v, Length: length, Orig: NoOrigin})
	g.adj = nil
	return len(g.Edges) - 1, nil
}

// Validate checks vertex sizes, positions and edge lengths for values the
// layout cannot work with. Non-positive edge lengths are accepted; the
// layout replaces them with 1.
func (g *Graph) Validate() error {
	for i, v := range g.Vertices {
		if !finite(v.Width) || !finite(v.Height) || !finite(v.Pos.X) || !finite(v.Pos.Y) {
			return fmt.Errorf("vertex %d: %w", i, ErrNonFinite)
		}
		if v.Width < 0 || v.Height < 0 {
			return fmt.Errorf("vertex %d: %w", i, ErrNegativeSize)
		}
	}
	for i, e := range g.Edges {
		if e.U < 0 || e.U >= len(g.Vertices) || e.V < 0 || e.V >= len(g.Vertices) {
			return fmt.Errorf("edge %d: %w", i, ErrUnknownVertex)
		}
		if !finite(e.Length) {
			return fmt.Errorf("edge %d: %w", i, ErrNonFinite)
		}
	}
	return nil
}

// Adjacency returns the incidence lists of all vertices. The result is
// cached until the graph is mutated through AddVertex or AddEdge and must not
// be modified by the caller.
func (g *Graph) Adjacency() [][]Incidence {
	if g.adj != nil {
		return g.adj
	}
	adj := make([][]Incidence, len(g.Vertices))
	for i, e := range g.Edges {
		adj[e.U] = append(adj[e.U], Incidence{Edge: i, Neighbor: e.V})
		if e.U != e.V {
			adj[e.V] = append(adj[e.V], Incidence{Edge: i, Neighbor: e.U})
		}
	}
	g.adj = adj
	return adj
}

// Positions returns a copy of all vertex positions in index order.
func (g *Graph) Positions() []r2.Vec {
	pos := make([]r2.Vec, len(g.Vertices))
	for i, v := range g.Vertices {
		pos[i] = v.Pos
	}
	return pos
}

// SetPositions overwrites vertex positions from pos, which must have one
// entry per vertex.
func (g *Graph) SetPositions(pos []r2.Vec) {
	for i := range g.Vertices {
		g.Vertices[i].Pos = pos[i]
	}
}

// Clone returns a deep copy of g whose Orig fields point at g.
func (g *Graph) Clone() *Graph {
	c := New(len(g.Vertices), len(g.Edges))
	for i, v := range g.Vertices {
		v.Orig = i
		c.Vertices = append(c.Vertices, v)
	}
	for i, e := range g.Edges {
		e.Orig = i
		c.Edges = append(c.Edges, e)
	}
	return c
}

// Split returns the subgraph induced by each of the disjoint vertex sets in
// parts, in one pass over the edges. Edges joining two different parts, or
// touching a vertex in no part, are dropped. Vertex and edge Orig fields
// point at g.
func (g *Graph) Split(parts [][]int) []*Graph {
	part := make([]int, len(g.Vertices))
	local := make([]int, len(g.Vertices))
	for i := range part {
		part[i] = -1
	}
	subs := make([]*Graph, len(parts))
	for p, vertices := range parts {
		subs[p] = New(len(vertices), max(len(vertices)-1, 0))
		for _, v := range vertices {
			vert := g.Vertices[v]
			vert.Orig = v
			part[v], local[v] = p, subs[p].AddVertex(vert)
		}
	}
	for i, e := range g.Edges {
		p := part[e.U]
		if p < 0 || p != part[e.V] {
			continue
		}
		subs[p].Edges = append(subs[p].Edges, Edge{U: local[e.U], V: local[e.V], Length: e.Length, Orig: i})
	}
	return subs
}

// AverageEdgeLength returns the mean ideal edge length, or fallback for an
// edgeless graph.
func (g *Graph) AverageEdgeLength(fallback float64) float64 {
	if len(g.Edges) == 0 {
		return fallback
	}
	var sum float64
	for _, e := range g.Edges {
		sum += e.Length
	}
	return sum / float64(len(g.Edges))
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
