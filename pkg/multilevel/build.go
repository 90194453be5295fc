package multilevel

import (
	"golang.org/x/exp/rand"

	"github.com/matzehuels/fm3/pkg/multigraph"
	"github.com/matzehuels/fm3/pkg/multigraph/transform"
)

// MaxLevel is the hard cap on the index of the coarsest level.
const MaxLevel = 30

const (
	badRounds    = 5
	badEdgeRatio = 0.8
	defaultTries = 20
	minGraphSize = 2
)

// GalaxyChoice selects how suns are drawn from the candidates.
type GalaxyChoice string

const (
	// ChoiceUniform draws every candidate with equal probability.
	ChoiceUniform GalaxyChoice = "uniform_prob"
	// ChoiceLowerMass samples RandomTries candidates and keeps the one with
	// the lightest star (own mass plus neighbour masses).
	ChoiceLowerMass GalaxyChoice = "non_uniform_prob_lower_mass"
	// ChoiceHigherMass keeps the sampled candidate with the heaviest star.
	ChoiceHigherMass GalaxyChoice = "non_uniform_prob_higher_mass"
)

// Options configures [Build].
type Options struct {
	MinGraphSize int          // stop once a level has at most this many vertices
	Choice       GalaxyChoice // sun selection
	RandomTries  int          // samples per non-uniform sun draw
}

// Role is the part a vertex plays in its solar system.
type Role uint8

const (
	RoleNone Role = iota
	RoleSun
	RolePlanet
	RoleMoon
)

// Lambda places a planet or moon on the path towards a neighbouring system.
type Lambda struct {
	Coarse int     // neighbouring coarse vertex
	Ratio  float64 // fraction of the path between the two suns
}

// Level is one graph of the hierarchy. All levels but the coarsest also
// record how their vertices map onto the next coarser level.
type Level struct {
	Graph *multigraph.Graph
	Mass  []float64

	Role    []Role
	Sun     []int      // sun of each vertex, in this level
	Planet  []int      // planet a moon orbits; -1 otherwise
	Parent  []int      // coarse vertex of each vertex's system
	SunDist []float64  // path length to the sun
	Lambda  [][]Lambda // advanced interpolation weights
}

// Hierarchy holds the levels produced by [Build]. Levels[0] is the input
// graph; the last entry is the coarsest.
type Hierarchy struct {
	Levels []*Level
}

// Depth returns the index of the coarsest level.
func (h *Hierarchy) Depth() int { return len(h.Levels) - 1 }

// Build coarsens g until one of the stop conditions in the package
// documentation holds. g is referenced, not copied, as level 0.
func Build(g *multigraph.Graph, opts Options, rnd *rand.Rand) *Hierarchy {
	if opts.MinGraphSize < minGraphSize {
		opts.MinGraphSize = minGraphSize
	}
	if opts.RandomTries < 1 {
		opts.RandomTries = defaultTries
	}

	mass := make([]float64, g.NumVertices())
	for i := range mass {
		mass[i] = 1
	}
	h := &Hierarchy{Levels: []*Level{{Graph: g, Mass: mass}}}

	bad := 0
	for h.Depth() < MaxLevel && bad < badRounds {
		fine := h.Levels[h.Depth()]
		n := fine.Graph.NumVertices()
		if n <= opts.MinGraphSize {
			break
		}
		p := partition(fine, opts, rnd)
		coarse := collapse(fine, p)
		if coarse.Graph.NumVertices() >= n {
			break
		}
		if float64(coarse.Graph.NumEdges()) > badEdgeRatio*float64(fine.Graph.NumEdges()) {
			bad++
		}
		p.apply(fine)
		h.Levels = append(h.Levels, coarse)
	}
	return h
}

// =============================================================================
// Solar systems
// =============================================================================

type systems struct {
	suns   []int // suns in selection order; index = coarse vertex
	role   []Role
	sun    []int
	planet []int
	parent []int
	dist   []float64
	lambda [][]Lambda
}

func (p *systems) apply(l *Level) {
	l.Role = p.role
	l.Sun = p.sun
	l.Planet = p.planet
	l.Parent = p.parent
	l.SunDist = p.dist
	l.Lambda = p.lambda
}

// candidates is a set supporting O(1) removal and uniform sampling.
type candidates struct {
	items []int
	index []int // position in items, -1 once removed
}

func newCandidates(n int) *candidates {
	c := &candidates{items: make([]int, n), index: make([]int, n)}
	for i := range n {
		c.items[i] = i
		c.index[i] = i
	}
	return c
}

func (c *candidates) remove(v int) {
	i := c.index[v]
	if i < 0 {
		return
	}
	last := c.items[len(c.items)-1]
	c.items[i] = last
	c.index[last] = i
	c.items = c.items[:len(c.items)-1]
	c.index[v] = -1
}

func partition(l *Level, opts Options, rnd *rand.Rand) *systems {
	g := l.Graph
	n := g.NumVertices()
	adj := g.Adjacency()

	p := &systems{
		role:   make([]Role, n),
		sun:    make([]int, n),
		planet: make([]int, n),
		parent: make([]int, n),
		dist:   make([]float64, n),
		lambda: make([][]Lambda, n),
	}
	for i := range n {
		p.planet[i] = -1
	}

	cand := newCandidates(n)
	for len(cand.items) > 0 {
		s := pickSun(l, cand, opts, rnd)
		p.role[s] = RoleSun
		p.sun[s] = s
		p.parent[s] = len(p.suns)
		p.suns = append(p.suns, s)
		cand.remove(s)

		var planets []int
		for _, inc := range adj[s] {
			w := inc.Neighbor
			if p.role[w] != RoleNone {
				continue
			}
			p.role[w] = RolePlanet
			p.sun[w] = s
			p.parent[w] = p.parent[s]
			p.dist[w] = g.Edges[inc.Edge].Length
			cand.remove(w)
			planets = append(planets, w)
		}
		for _, w := range planets {
			for _, inc := range adj[w] {
				cand.remove(inc.Neighbor)
			}
		}
	}

	for v := range n {
		if p.role[v] != RoleNone {
			continue
		}
		best, bestLen := -1, 0.0
		for _, inc := range adj[v] {
			w := inc.Neighbor
			if p.role[w] != RolePlanet {
				continue
			}
			if d := g.Edges[inc.Edge].Length; best < 0 || d < bestLen {
				best, bestLen = w, d
			}
		}
		if best < 0 {
			// Unreachable: leftover vertices always neighbour a planet.
			p.role[v] = RoleSun
			p.sun[v] = v
			p.parent[v] = len(p.suns)
			p.suns = append(p.suns, v)
			continue
		}
		p.role[v] = RoleMoon
		p.planet[v] = best
		p.sun[v] = p.sun[best]
		p.parent[v] = p.parent[best]
		p.dist[v] = bestLen + p.dist[best]
	}
	return p
}

func pickSun(l *Level, cand *candidates, opts Options, rnd *rand.Rand) int {
	if opts.Choice == ChoiceUniform {
		return cand.items[rnd.Intn(len(cand.items))]
	}
	adj := l.Graph.Adjacency()
	star := func(v int) float64 {
		m := l.Mass[v]
		for _, inc := range adj[v] {
			m += l.Mass[inc.Neighbor]
		}
		return m
	}
	tries := min(opts.RandomTries, len(cand.items))
	best := cand.items[rnd.Intn(len(cand.items))]
	bestMass := star(best)
	for range tries - 1 {
		v := cand.items[rnd.Intn(len(cand.items))]
		m := star(v)
		if (opts.Choice == ChoiceLowerMass && m < bestMass) ||
			(opts.Choice == ChoiceHigherMass && m > bestMass) {
			best, bestMass = v, m
		}
	}
	return best
}

// collapse builds the coarse level for the partition p of fine and fills in
// the interpolation weights of p.
func collapse(fine *Level, p *systems) *Level {
	g := fine.Graph
	coarse := multigraph.New(len(p.suns), 0)
	mass := make([]float64, len(p.suns))
	for _, s := range p.suns {
		v := g.Vertices[s]
		coarse.AddVertex(multigraph.Vertex{
			ID:     v.ID,
			Width:  v.Width,
			Height: v.Height,
			Pos:    v.Pos,
		})
	}
	for v := range g.Vertices {
		mass[p.parent[v]] += fine.Mass[v]
	}

	for _, e := range g.Edges {
		cu, cv := p.parent[e.U], p.parent[e.V]
		if cu == cv {
			continue
		}
		total := p.dist[e.U] + e.Length + p.dist[e.V]
		// Indices come from p.parent and are always in range.
		_, _ = coarse.AddEdge(cu, cv, total)
		p.addLambda(e.U, cv, total)
		p.addLambda(e.V, cu, total)
	}

	reduced, _ := transform.Reduce(coarse)
	return &Level{Graph: reduced, Mass: mass}
}

// addLambda records the inter-system path through v for v itself and, when v
// is a moon, for the planet it orbits.
func (p *systems) addLambda(v, other int, total float64) {
	if p.role[v] == RoleSun {
		return
	}
	p.lambda[v] = append(p.lambda[v], Lambda{Coarse: other, Ratio: p.dist[v] / total})
	if pl := p.planet[v]; p.role[v] == RoleMoon && pl >= 0 {
		p.lambda[pl] = append(p.lambda[pl], Lambda{Coarse: other, Ratio: p.dist[pl] / total})
	}
}
