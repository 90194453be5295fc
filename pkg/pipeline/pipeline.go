// Package pipeline runs the load → layout → render sequence shared by the
// CLI and the HTTP API.
//
// Centralizing it here keeps caching, validation, run IDs and observability
// hooks identical for every entry point.
//
// # Usage
//
//	runner := pipeline.NewRunner(c, nil, logger)
//	g, err := pipeline.LoadGraph("input.json")
//	if err != nil {
//	    return err
//	}
//	opts := pipeline.Options{Layout: layout.DefaultOptions(), Formats: []string{"svg"}}
//	result, err := runner.Execute(ctx, g, opts)
//	if err != nil {
//	    return err
//	}
//	svg := result.Artifacts["svg"]
//
// Run individual stages:
//
//	l, err := runner.Layout(ctx, g, opts)
//	artifacts, err := runner.Render(ctx, g, l, opts)
package pipeline

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/fm3/pkg/cache"
	"github.com/matzehuels/fm3/pkg/errors"
	"github.com/matzehuels/fm3/pkg/graph"
	"github.com/matzehuels/fm3/pkg/layout"
	"github.com/matzehuels/fm3/pkg/render"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultScale is the default number of points per layout unit.
	DefaultScale = 1.0

	// DefaultMaxVertices bounds the graphs accepted by the HTTP API.
	DefaultMaxVertices = 100000

	// DefaultMaxEdges bounds the graphs accepted by the HTTP API.
	DefaultMaxEdges = 500000
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for one pipeline run.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Layout options
	Layout layout.Options `json:"layout"`

	// Render options. No formats means layout only.
	Formats []string `json:"formats,omitempty"`
	Scale   float64  `json:"scale,omitempty"`
	Labels  bool     `json:"labels,omitempty"`

	// Refresh ignores cached results (new results are still stored).
	Refresh bool `json:"refresh,omitempty"`

	// Limits; zero disables a check.
	MaxVertices int `json:"-"`
	MaxEdges    int `json:"-"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// RunID identifies this run in logs and API responses.
	RunID string

	// GraphHash is the content hash of the input graph.
	GraphHash string

	// Layout holds the positions; its RunID always equals RunID, also when
	// the positions come from the cache.
	Layout graph.Layout

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Vertices   int
	Edges      int
	LayoutTime time.Duration
	RenderTime time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	LayoutHit bool // Whether the layout came from cache
	RenderHit bool // Whether all artifacts came from cache
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is supported.
func ValidateFormat(format string) error {
	return errors.ValidateOneOf(errors.ErrCodeInvalidFormat, "format", format, render.Formats...)
}

// ValidateFormats checks that all formats are supported.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks user-supplied options. Unknown enum values are rejected
// here even though the layout itself would fall back to defaults.
func (o *Options) Validate() error {
	if err := o.Layout.Check(); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "invalid layout options")
	}
	return ValidateFormats(o.Formats)
}

// ValidateGraph checks the graph against the size limits.
func (o *Options) ValidateGraph(g graph.Graph) error {
	if err := errors.ValidateLimit("vertices", len(g.Nodes), o.MaxVertices); err != nil {
		return err
	}
	return errors.ValidateLimit("edges", len(g.Edges), o.MaxEdges)
}

// RenderOptions returns the render options for one format.
func (o *Options) RenderOptions(format string) render.Options {
	scale := o.Scale
	if scale <= 0 {
		scale = DefaultScale
	}
	return render.Options{Format: format, Scale: scale, Labels: o.Labels}
}

// RenderKeyOpts returns cache key options for one format.
func (o *Options) RenderKeyOpts(format string) cache.RenderKeyOpts {
	ro := o.RenderOptions(format)
	return cache.RenderKeyOpts{Format: ro.Format, Scale: ro.Scale, Labels: ro.Labels}
}
