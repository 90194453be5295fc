package layout

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/fm3/pkg/force"
	"github.com/matzehuels/fm3/pkg/geom"
	"github.com/matzehuels/fm3/pkg/multigraph"
	"github.com/matzehuels/fm3/pkg/multigraph/transform"
	"github.com/matzehuels/fm3/pkg/multilevel"
	"github.com/matzehuels/fm3/pkg/pack"
	"github.com/matzehuels/fm3/pkg/repulsion"
)

// =============================================================================
// Result Types
// =============================================================================

// Result is the outcome of [Run].
type Result struct {
	// Positions holds the final position of every input vertex, by index.
	Positions []r2.Vec
	// Min and Max are the corners of the bounding box of all positions.
	Min, Max r2.Vec
	// Reduction reports the loops and parallel edges removed before layout.
	Reduction transform.Result
	// Components holds one entry per connected component.
	Components []ComponentStats
	// Duration is the wall time of the run.
	Duration time.Duration
}

// ComponentStats describes the layout of one connected component.
type ComponentStats struct {
	Vertices int          `json:"vertices"`
	Edges    int          `json:"edges"`
	Levels   []LevelStats `json:"levels"` // coarsest first
	Packed   pack.Rect    `json:"-"`
}

// LevelStats describes the force simulation on one level.
type LevelStats struct {
	Level        int     `json:"level"`
	Vertices     int     `json:"vertices"`
	Edges        int     `json:"edges"`
	Iterations   int     `json:"iterations"`
	AverageForce float64 `json:"average_force"`
}

// Event is passed to Options.Progress after each level.
type Event struct {
	Component  int // index into Result.Components
	Components int // total number of components
	Level      int // level just finished; 0 is the input graph
	Depth      int // coarsest level of the component
	Stats      LevelStats
}

// =============================================================================
// Run
// =============================================================================

// Run computes a layout of g and writes the positions back into
// g.Vertices. Vertex sizes, edge lengths and, with the keep-positions
// placement, vertex positions are read from g.
//
// Run validates g and otherwise fails only when ctx is cancelled before all
// components are laid out; g is left unchanged in both cases.
func Run(ctx context.Context, g *multigraph.Graph, opts Options) (*Result, error) {
	start := time.Now()
	opts.ApplyHighLevel()
	opts.Normalize()
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}

	res := &Result{Positions: make([]r2.Vec, g.NumVertices())}
	switch g.NumVertices() {
	case 0:
		return res, nil
	case 1:
		g.Vertices[0].Pos = r2.Vec{}
		res.Components = []ComponentStats{{Vertices: 1}}
		res.Duration = time.Since(start)
		return res, nil
	}

	work := g.Clone()
	transform.PrepareLengths(work, opts.UnitEdgeLength, opts.EdgeLengthMeasurement)
	reduced, red := transform.Reduce(work)
	res.Reduction = red

	ccs := reduced.Components()
	logger.Debug("reduced graph",
		"vertices", reduced.NumVertices(),
		"edges", reduced.NumEdges(),
		"loops_removed", red.LoopsRemoved,
		"edges_merged", red.EdgesMerged,
		"components", len(ccs))

	subs := reduced.Split(ccs)
	comps := make([]pack.Component, len(ccs))
	res.Components = make([]ComponentStats, len(ccs))

	eg, egCtx := errgroup.WithContext(ctx)
	limit := opts.Parallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	eg.SetLimit(limit)
	for i, sub := range subs {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			pos, stats, err := layoutComponent(egCtx, sub, i, len(ccs), &opts, logger)
			if err != nil {
				return err
			}
			comps[i] = pack.Component{Pos: pos, Size: sizes(sub)}
			res.Components[i] = stats
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	rects := pack.Arrange(comps, opts.packOptions())
	for i, c := range comps {
		res.Components[i].Packed = rects[i]
		for j, p := range c.Pos {
			res.Positions[subs[i].Vertices[j].Orig] = p
		}
	}

	if opts.AllowedPositions != force.PositionsAll {
		bound := force.Bound(opts.AllowedPositions, reduced.AverageEdgeLength(50), len(res.Positions), opts.MaxIntPosExponent)
		force.Constrain(res.Positions, bound, geom.Fit(res.Positions))
	}

	g.SetPositions(res.Positions)
	res.Min, res.Max = geom.Extent(res.Positions)
	res.Duration = time.Since(start)
	logger.Debug("layout finished", "components", len(ccs), "duration", res.Duration)
	return res, nil
}

// layoutComponent runs the multilevel force simulation on one connected
// component and returns its level-0 positions in local coordinates. ctx is
// checked between levels and every few iterations within a level.
func layoutComponent(ctx context.Context, sub *multigraph.Graph, idx, total int, opts *Options, logger *log.Logger) ([]r2.Vec, ComponentStats, error) {
	n := sub.NumVertices()
	stats := ComponentStats{Vertices: n, Edges: sub.NumEdges()}
	if n == 1 {
		return []r2.Vec{{}}, stats, nil
	}

	seed := uint64(opts.Seed) + uint64(idx)
	rnd := rand.New(rand.NewSource(seed))

	// Stored positions only exist for the input graph, so keeping them
	// leaves nothing for coarser levels to do.
	minSize := opts.MinGraphSize
	if opts.SingleLevel || opts.InitialPlacementForces == force.PlacementKeep {
		minSize = n
	}
	h := multilevel.Build(sub, multilevel.Options{
		MinGraphSize: minSize,
		Choice:       opts.GalaxyChoice,
		RandomTries:  opts.RandomTries,
	}, rnd)
	depth := h.Depth()

	params := opts.forceParams()
	var prev []r2.Vec
	for lvl := depth; lvl >= 0; lvl-- {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		l := h.Levels[lvl]
		pos := make([]r2.Vec, l.Graph.NumVertices())
		box := seedLevel(h, lvl, prev, pos, opts, seed, rnd)

		it := force.NewIterator(l.Graph, pos, box, repulsion.New(opts.RepulsiveForces, opts.repulsionConfig()), params)
		budget := force.Budget(opts.MaxIterChange, lvl, depth, l.Graph.NumVertices(), opts.FixedIterations, opts.MaxIterFactor)
		st, err := it.Run(ctx, budget)
		if err != nil {
			return nil, stats, err
		}
		ls := LevelStats{
			Level:        lvl,
			Vertices:     l.Graph.NumVertices(),
			Edges:        l.Graph.NumEdges(),
			Iterations:   st.Iterations,
			AverageForce: st.AverageForce,
		}
		if lvl == 0 {
			post, err := it.Postprocess(ctx)
			if err != nil {
				return nil, stats, err
			}
			ls.Iterations += post.Iterations
			ls.AverageForce = post.AverageForce
		}
		stats.Levels = append(stats.Levels, ls)

		logger.Debug("level done",
			"component", idx,
			"level", lvl,
			"vertices", ls.Vertices,
			"edges", ls.Edges,
			"iterations", ls.Iterations,
			"avg_force", ls.AverageForce)
		if opts.Progress != nil {
			opts.Progress(Event{Component: idx, Components: total, Level: lvl, Depth: depth, Stats: ls})
		}
		prev = pos
	}
	return prev, stats, nil
}

// seedLevel writes the starting positions of level lvl into pos. The
// coarsest level is placed from scratch, or from the stored positions when
// they are kept; every finer level interpolates the one above.
func seedLevel(h *multilevel.Hierarchy, lvl int, prev, pos []r2.Vec, opts *Options, seed uint64, rnd *rand.Rand) geom.Box {
	g := h.Levels[lvl].Graph
	if lvl == h.Depth() {
		return force.Place(g, pos, opts.InitialPlacementForces, seed)
	}
	h.Levels[lvl].Interpolate(prev, pos, opts.InitialPlacementMult, rnd)
	return geom.Fit(pos)
}

func sizes(g *multigraph.Graph) []r2.Vec {
	out := make([]r2.Vec, g.NumVertices())
	for i, v := range g.Vertices {
		out[i] = r2.Vec{X: v.Width, Y: v.Height}
	}
	return out
}
