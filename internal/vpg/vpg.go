package vpg

import (
	"github.com/dalzilio/rudd"

	"github.com/gitrdm/mucalc-vpg-core/internal/logging"
)

// Owner is a parity-game player.
type Owner int

const (
	Even Owner = iota
	Odd
)

func (o Owner) Opponent() Owner {
	if o == Even {
		return Odd
	}
	return Even
}

// Edge is a guarded transition: the guard is the set of product
// configurations under which the edge exists (spec §3.7).
type Edge struct {
	Target int
	Guard  rudd.Node
}

// Game is a VariabilityParityGame: dense vertex indices 0..|V|-1, per-
// vertex owner/priority arrays, an outgoing adjacency list of guarded
// edges, a global configuration BDD, and the BDD manager that owns all
// its guards (spec §3.7).
type Game struct {
	Mgr    *Manager
	Owner  []Owner
	Prio   []int
	Out    [][]Edge
	Config rudd.Node
}

// NewGame allocates an empty game over n vertices, with every vertex
// initially having no outgoing edges.
func NewGame(mgr *Manager, n int, config rudd.Node) *Game {
	return &Game{
		Mgr:    mgr,
		Owner:  make([]Owner, n),
		Prio:   make([]int, n),
		Out:    make([][]Edge, n),
		Config: config,
	}
}

// AddEdge appends a guarded edge from src to dst.
func (g *Game) AddEdge(src, dst int, guard rudd.Node) {
	g.Out[src] = append(g.Out[src], Edge{Target: dst, Guard: guard})
}

// N returns the number of vertices.
func (g *Game) N() int { return len(g.Owner) }

// outDisjunction returns the disjunction of v's outgoing guards (spec
// §4.F "Totality check": ∨ₑ∈out(v) guard(e)).
func (g *Game) outDisjunction(v int) rudd.Node {
	acc := g.Mgr.False()
	for _, e := range g.Out[v] {
		acc = g.Mgr.Or(acc, e.Guard)
	}
	return acc
}

// IsTotal reports whether, for every vertex, the disjunction of outgoing
// guards covers the whole configuration (spec §4.F).
func (g *Game) IsTotal() bool {
	for v := 0; v < g.N(); v++ {
		if !g.Mgr.Equal(g.outDisjunction(v), g.Config) {
			return false
		}
	}
	return true
}

// Totalize adds two sink vertices — one won by Even, one by Odd — and, for
// every vertex v, a guarded edge to the owner-appropriate sink labeled by
// the configuration minus v's existing outgoing disjunction (spec §4.F
// "Totalized"). Priorities of the sinks are chosen higher than any
// existing priority so a starved player always loses there, and each sink
// self-loops under the full configuration so the result stays total.
func (g *Game) Totalize() {
	if g.IsTotal() {
		return
	}

	maxPrio := 0
	for _, p := range g.Prio {
		if p > maxPrio {
			maxPrio = p
		}
	}
	evenPrio := maxPrio + 1
	if evenPrio%2 != 0 {
		evenPrio++
	}
	oddPrio := evenPrio + 1

	evenSink := g.N()
	g.growBy(1)
	g.Owner[evenSink] = Even
	g.Prio[evenSink] = evenPrio // even priority: self-loop here is won by Even

	oddSink := g.N()
	g.growBy(1)
	g.Owner[oddSink] = Odd
	g.Prio[oddSink] = oddPrio // odd priority: self-loop here is won by Odd

	g.AddEdge(evenSink, evenSink, g.Config)
	g.AddEdge(oddSink, oddSink, g.Config)

	for v := 0; v < evenSink; v++ {
		missing := g.Mgr.Diff(g.Config, g.outDisjunction(v))
		if g.Mgr.IsFalse(missing) {
			continue
		}
		if g.Owner[v] == Even {
			// Even starved of a move loses; route to the sink Odd wins.
			g.AddEdge(v, oddSink, missing)
		} else {
			g.AddEdge(v, evenSink, missing)
		}
	}

	logging.S().Debugw("vpg: totalized game", "vertices_added", 2, "even_sink", evenSink, "odd_sink", oddSink)
}

func (g *Game) growBy(n int) {
	for i := 0; i < n; i++ {
		g.Owner = append(g.Owner, Even)
		g.Prio = append(g.Prio, 0)
		g.Out = append(g.Out, nil)
	}
}

// PredEdge is one entry of the predecessor structure: a source vertex and
// the guard of its edge into the target vertex the structure is indexed
// by.
type PredEdge struct {
	Source int
	Guard  rudd.Node
}

// Predecessors maps each target vertex to the list of (source, guard)
// pairs of edges reaching it (spec §4.F "built once per solve and
// consulted by the attractor").
type Predecessors [][]PredEdge

// BuildPredecessors computes g's predecessor structure.
func BuildPredecessors(g *Game) Predecessors {
	preds := make(Predecessors, g.N())
	for v := 0; v < g.N(); v++ {
		for _, e := range g.Out[v] {
			preds[e.Target] = append(preds[e.Target], PredEdge{Source: v, Guard: e.Guard})
		}
	}
	return preds
}
