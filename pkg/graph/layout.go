package graph

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/matzehuels/fm3/pkg/layout"
	"github.com/matzehuels/fm3/pkg/multigraph"
)

// =============================================================================
// Layout - Output Serialization
// =============================================================================

// Layout is the serialization format for a computed drawing: one position
// per node plus the bounding box and run statistics.
type Layout struct {
	RunID     string     `json:"run_id,omitempty"`
	Positions []Position `json:"positions"`
	Bounds    Bounds     `json:"bounds"`
	Stats     *Stats     `json:"stats,omitempty"`
}

// Position is the centre of one node's box.
type Position struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Bounds is the axis-aligned box spanned by all node centres.
type Bounds struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Width returns the horizontal extent.
func (b Bounds) Width() float64 { return b.MaxX - b.MinX }

// Height returns the vertical extent.
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }

// Stats summarizes a layout run.
type Stats struct {
	Vertices     int         `json:"vertices"`
	Edges        int         `json:"edges"`
	LoopsRemoved int         `json:"loops_removed"`
	EdgesMerged  int         `json:"edges_merged"`
	Components   []Component `json:"components"`
	DurationMS   float64     `json:"duration_ms"`
}

// Component summarizes one connected component.
type Component struct {
	Vertices int                 `json:"vertices"`
	Edges    int                 `json:"edges"`
	Levels   []layout.LevelStats `json:"levels,omitempty"`
}

// Iterations returns the total number of force iterations over all levels.
func (c Component) Iterations() int {
	var n int
	for _, l := range c.Levels {
		n += l.Iterations
	}
	return n
}

// FromResult builds the serialized layout of g from a finished run.
// g must be the graph res was computed for.
func FromResult(g *multigraph.Graph, res *layout.Result) Layout {
	out := Layout{
		Positions: make([]Position, len(res.Positions)),
		Bounds: Bounds{
			MinX: res.Min.X,
			MinY: res.Min.Y,
			MaxX: res.Max.X,
			MaxY: res.Max.Y,
		},
		Stats: &Stats{
			Vertices:     g.NumVertices(),
			Edges:        g.NumEdges(),
			LoopsRemoved: res.Reduction.LoopsRemoved,
			EdgesMerged:  res.Reduction.EdgesMerged,
			Components:   make([]Component, len(res.Components)),
			DurationMS:   float64(res.Duration.Microseconds()) / 1000,
		},
	}
	for i, p := range res.Positions {
		out.Positions[i] = Position{ID: vertexID(g.Vertices[i], i), X: p.X, Y: p.Y}
	}
	for i, c := range res.Components {
		out.Stats.Components[i] = Component{Vertices: c.Vertices, Edges: c.Edges, Levels: c.Levels}
	}
	return out
}

// =============================================================================
// Layout Serialization API
// =============================================================================

// MarshalLayout serializes a Layout to pretty-printed JSON bytes.
func MarshalLayout(l Layout) ([]byte, error) {
	return json.MarshalIndent(l, "", "  ")
}

// UnmarshalLayout deserializes JSON bytes into a Layout.
func UnmarshalLayout(data []byte) (Layout, error) {
	var l Layout
	if err := json.Unmarshal(data, &l); err != nil {
		return Layout{}, fmt.Errorf("unmarshal layout: %w", err)
	}
	for i, p := range l.Positions {
		if p.ID == "" {
			return Layout{}, fmt.Errorf("position %d: %w", i, ErrMissingID)
		}
	}
	return l, nil
}

// WriteLayoutFile writes a Layout to a JSON file.
func WriteLayoutFile(l Layout, path string) error {
	data, err := MarshalLayout(l)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadLayoutFile reads a Layout from a JSON file.
func ReadLayoutFile(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("read %s: %w", path, err)
	}
	return UnmarshalLayout(data)
}
