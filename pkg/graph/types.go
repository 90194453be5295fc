package graph

import (
	"errors"
	"fmt"
	"strconv"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/fm3/pkg/multigraph"
)

// Sentinel errors for graph conversion.
var (
	// ErrMissingID is returned when a node has an empty ID.
	ErrMissingID = errors.New("node id is required")

	// ErrDuplicateID is returned when two nodes share an ID.
	ErrDuplicateID = errors.New("duplicate node id")

	// ErrUnknownNode is returned when an edge refers to an ID that no node has.
	ErrUnknownNode = errors.New("unknown node")
)

// =============================================================================
// Graph - Input Serialization
// =============================================================================

// Graph is the canonical serialization format for layout input.
// Used for CLI files, API requests and cache keys.
//
// Edges are undirected; From and To only name the endpoints. Self-loops and
// parallel edges are allowed and are reduced before layout.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// =============================================================================
// Node
// =============================================================================

// Node is a vertex with an optional box size and position.
type Node struct {
	ID     string         `json:"id"`
	Label  string         `json:"label,omitempty"` // display label (defaults to ID)
	Width  float64        `json:"width,omitempty"`
	Height float64        `json:"height,omitempty"`
	X      float64        `json:"x,omitempty"`
	Y      float64        `json:"y,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// DisplayLabel returns the label if set, otherwise the ID.
func (n *Node) DisplayLabel() string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

// =============================================================================
// Edge
// =============================================================================

// Edge connects two nodes by ID. A zero or negative Length means the unit
// edge length.
type Edge struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Length float64 `json:"length,omitempty"`
}

// =============================================================================
// Graph ↔ Multigraph Conversion
// =============================================================================

// ToMultigraph converts g to the arena representation used by the layout.
// Vertex i corresponds to g.Nodes[i] and edge j to g.Edges[j].
func ToMultigraph(g Graph) (*multigraph.Graph, error) {
	out := multigraph.New(len(g.Nodes), len(g.Edges))
	index := make(map[string]int, len(g.Nodes))

	for i, n := range g.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("node %d: %w", i, ErrMissingID)
		}
		if _, dup := index[n.ID]; dup {
			return nil, fmt.Errorf("node %s: %w", n.ID, ErrDuplicateID)
		}
		index[n.ID] = out.AddVertex(multigraph.Vertex{
			ID:     n.ID,
			Width:  n.Width,
			Height: n.Height,
			Pos:    r2.Vec{X: n.X, Y: n.Y},
			Orig:   multigraph.NoOrigin,
		})
	}

	for _, e := range g.Edges {
		u, ok := index[e.From]
		if !ok {
			return nil, fmt.Errorf("edge %s-%s: %w: %s", e.From, e.To, ErrUnknownNode, e.From)
		}
		v, ok := index[e.To]
		if !ok {
			return nil, fmt.Errorf("edge %s-%s: %w: %s", e.From, e.To, ErrUnknownNode, e.To)
		}
		if _, err := out.AddEdge(u, v, e.Length); err != nil {
			return nil, fmt.Errorf("edge %s-%s: %w", e.From, e.To, err)
		}
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// FromMultigraph converts an arena graph to its serialization format, in
// vertex and edge order. Vertices without an ID are named by their index.
func FromMultigraph(g *multigraph.Graph) Graph {
	out := Graph{
		Nodes: make([]Node, len(g.Vertices)),
		Edges: make([]Edge, len(g.Edges)),
	}
	for i, v := range g.Vertices {
		out.Nodes[i] = Node{
			ID:     vertexID(v, i),
			Width:  v.Width,
			Height: v.Height,
			X:      v.Pos.X,
			Y:      v.Pos.Y,
		}
	}
	for i, e := range g.Edges {
		out.Edges[i] = Edge{
			From:   out.Nodes[e.U].ID,
			To:     out.Nodes[e.V].ID,
			Length: e.Length,
		}
	}
	return out
}

// Apply copies the positions of l onto the nodes with matching IDs.
func (g *Graph) Apply(l Layout) error {
	index := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		index[n.ID] = i
	}
	for _, p := range l.Positions {
		i, ok := index[p.ID]
		if !ok {
			return fmt.Errorf("position %s: %w", p.ID, ErrUnknownNode)
		}
		g.Nodes[i].X = p.X
		g.Nodes[i].Y = p.Y
	}
	return nil
}

func vertexID(v multigraph.Vertex, i int) string {
	if v.ID != "" {
		return v.ID
	}
	return strconv.Itoa(i)
}
