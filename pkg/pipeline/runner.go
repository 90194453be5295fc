package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/fm3/pkg/cache"
	"github.com/matzehuels/fm3/pkg/errors"
	"github.com/matzehuels/fm3/pkg/graph"
	"github.com/matzehuels/fm3/pkg/layout"
	"github.com/matzehuels/fm3/pkg/observability"
	"github.com/matzehuels/fm3/pkg/render"
)

// Cache key types reported to observability hooks.
const (
	keyTypeLayout = "layout"
	keyTypeRender = "render"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger. Multiple
// goroutines can safely use the same Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs layout and, when formats are requested, render.
func (r *Runner) Execute(ctx context.Context, g graph.Graph, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := opts.ValidateGraph(g); err != nil {
		return nil, err
	}
	r.applyLogger(&opts)

	result := &Result{
		RunID: uuid.NewString(),
		Stats: Stats{Vertices: len(g.Nodes), Edges: len(g.Edges)},
	}
	graphHash, err := hashGraph(g)
	if err != nil {
		return nil, err
	}
	result.GraphHash = graphHash

	layoutStart := time.Now()
	l, hit, err := r.layout(ctx, g, graphHash, result.RunID, opts)
	if err != nil {
		return nil, err
	}
	result.Layout = l
	result.Stats.LayoutTime = time.Since(layoutStart)
	result.CacheInfo.LayoutHit = hit

	r.Logger.Info("computed layout",
		"run", result.RunID,
		"vertices", result.Stats.Vertices,
		"edges", result.Stats.Edges,
		"cached", hit,
		"duration", result.Stats.LayoutTime)

	if len(opts.Formats) == 0 {
		return result, nil
	}

	renderStart := time.Now()
	artifacts, hit, err := r.RenderWithCacheInfo(ctx, g, l, opts)
	if err != nil {
		return nil, err
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(renderStart)
	result.CacheInfo.RenderHit = hit

	r.Logger.Info("rendered outputs",
		"run", result.RunID,
		"formats", opts.Formats,
		"cached", hit,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// LayoutWithCacheInfo computes a layout with caching and reports whether it
// came from the cache. Time-seeded placements are never cached.
func (r *Runner) LayoutWithCacheInfo(ctx context.Context, g graph.Graph, opts Options) (graph.Layout, bool, error) {
	if err := opts.Validate(); err != nil {
		return graph.Layout{}, false, err
	}
	if err := opts.ValidateGraph(g); err != nil {
		return graph.Layout{}, false, err
	}
	r.applyLogger(&opts)

	graphHash, err := hashGraph(g)
	if err != nil {
		return graph.Layout{}, false, err
	}
	return r.layout(ctx, g, graphHash, uuid.NewString(), opts)
}

// Layout is a convenience wrapper that calls LayoutWithCacheInfo and discards the cache hit info.
func (r *Runner) Layout(ctx context.Context, g graph.Graph, opts Options) (graph.Layout, error) {
	l, _, err := r.LayoutWithCacheInfo(ctx, g, opts)
	return l, err
}

func (r *Runner) layout(ctx context.Context, g graph.Graph, graphHash, runID string, opts Options) (graph.Layout, bool, error) {
	cacheable := opts.Layout.Deterministic()
	cacheKey := r.Keyer.LayoutKey(graphHash, opts.Layout.Hash())

	if cacheable && !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			if cached, err := graph.UnmarshalLayout(data); err == nil {
				observability.Cache().OnCacheHit(ctx, keyTypeLayout)
				cached.RunID = runID
				return cached, true, nil
			}
		} else if err != nil {
			r.Logger.Warn("cache read failed", "err", err)
		}
		observability.Cache().OnCacheMiss(ctx, keyTypeLayout)
	}

	l, err := ComputeLayout(ctx, g, runID, opts)
	if err != nil {
		return graph.Layout{}, false, err
	}

	if cacheable {
		if data, err := graph.MarshalLayout(l); err == nil {
			if err := r.Cache.Set(ctx, cacheKey, data, cache.TTLLayout); err != nil {
				r.Logger.Warn("cache write failed", "err", err)
			} else {
				observability.Cache().OnCacheSet(ctx, keyTypeLayout, len(data))
			}
		}
	}
	return l, false, nil
}

// ComputeLayout runs the layout engine on g without caching.
func ComputeLayout(ctx context.Context, g graph.Graph, runID string, opts Options) (graph.Layout, error) {
	mg, err := graph.ToMultigraph(g)
	if err != nil {
		return graph.Layout{}, errors.Wrap(errors.ErrCodeInvalidGraph, err, "convert graph")
	}

	hooks := observability.Pipeline()
	hooks.OnLayoutStart(ctx, runID, mg.NumVertices(), mg.NumEdges())

	lo := opts.Layout
	if lo.Logger == nil {
		lo.Logger = opts.Logger
	}
	progress := lo.Progress
	lo.Progress = func(ev layout.Event) {
		hooks.OnLevelComplete(ctx, runID, ev.Component, ev.Level, ev.Stats.Vertices, ev.Stats.Iterations)
		if progress != nil {
			progress(ev)
		}
	}

	start := time.Now()
	res, err := layout.Run(ctx, mg, lo)
	hooks.OnLayoutComplete(ctx, runID, time.Since(start), err)
	if err != nil {
		if ctx.Err() != nil {
			return graph.Layout{}, errors.Wrap(errors.ErrCodeCancelled, err, "layout")
		}
		return graph.Layout{}, errors.Wrap(errors.ErrCodeInvalidGraph, err, "layout")
	}

	out := graph.FromResult(mg, res)
	out.RunID = runID
	return out, nil
}

// RenderWithCacheInfo renders every requested format of l and reports
// whether all of them came from the cache.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, g graph.Graph, l graph.Layout, opts Options) (map[string][]byte, bool, error) {
	if err := ValidateFormats(opts.Formats); err != nil {
		return nil, false, err
	}
	r.applyLogger(&opts)

	layoutData, err := graph.MarshalLayout(graph.Layout{Positions: l.Positions})
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeInternal, err, "serialize layout for cache key")
	}
	graphHash, err := hashGraph(g)
	if err != nil {
		return nil, false, err
	}
	layoutHash := cache.HashParts([]byte(graphHash), layoutData)

	drawn := g
	drawn.Nodes = append([]graph.Node(nil), g.Nodes...)
	if err := drawn.Apply(l); err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeInvalidInput, err, "layout does not match graph")
	}

	artifacts := make(map[string][]byte, len(opts.Formats))
	allHit := true
	for _, format := range opts.Formats {
		key := r.Keyer.RenderKey(layoutHash, opts.RenderKeyOpts(format))
		if !opts.Refresh {
			if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
				observability.Cache().OnCacheHit(ctx, keyTypeRender)
				artifacts[format] = data
				continue
			}
			observability.Cache().OnCacheMiss(ctx, keyTypeRender)
		}
		allHit = false

		data, err := renderFormat(ctx, drawn, opts.RenderOptions(format))
		if err != nil {
			return nil, false, err
		}
		artifacts[format] = data
		if err := r.Cache.Set(ctx, key, data, cache.TTLRender); err != nil {
			r.Logger.Warn("cache write failed", "err", err)
		} else {
			observability.Cache().OnCacheSet(ctx, keyTypeRender, len(data))
		}
	}
	return artifacts, allHit, nil
}

// Render is a convenience wrapper that calls RenderWithCacheInfo and discards the cache hit info.
func (r *Runner) Render(ctx context.Context, g graph.Graph, l graph.Layout, opts Options) (map[string][]byte, error) {
	artifacts, _, err := r.RenderWithCacheInfo(ctx, g, l, opts)
	return artifacts, err
}

func renderFormat(ctx context.Context, g graph.Graph, opts render.Options) ([]byte, error) {
	hooks := observability.Pipeline()
	hooks.OnRenderStart(ctx, opts.Format)
	start := time.Now()
	data, err := render.Render(ctx, g, opts)
	hooks.OnRenderComplete(ctx, opts.Format, len(data), time.Since(start), err)
	if err != nil {
		if stderrors.Is(err, render.ErrUnsupportedFormat) {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "render")
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "render %s", opts.Format)
	}
	return data, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

func hashGraph(g graph.Graph) (string, error) {
	data, err := graph.MarshalGraph(g)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidGraph, err, "serialize graph")
	}
	return cache.Hash(data), nil
}

// String summarizes the cache info for log lines.
func (c CacheInfo) String() string {
	return fmt.Sprintf("layout=%v render=%v", c.LayoutHit, c.RenderHit)
}
