package zielonka

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/gitrdm/mucalc-vpg-core/internal/vpg"
)

// Attractor computes the alpha-attractor of seed within gamma (spec §4.G
// "Attractor"): the least submap A ⊇ seed such that
//   - every α-owned vertex with an edge (under γ and the edge guard) into
//     A is itself added to A under that guard, and
//   - every ¬α-owned vertex all of whose γ-live edges lead into A is added
//     to A under the conjunction of "edge not live, or leads into A".
//
// Implemented as a work-queue fixpoint: a vertex is re-examined whenever
// one of its successors' A-value grows, with a bitset tracking worklist
// membership so a vertex is never queued twice at once — the same
// mark-bitmap idiom internal/term's GC uses for its sweep, adapted here
// to dedupe a BFS frontier instead of a trace.
func Attractor(g *vpg.Game, preds vpg.Predecessors, alpha vpg.Owner, gamma, seed *Submap) *Submap {
	return attractor(g, preds, alpha, gamma, seed, nil)
}

func attractor(g *vpg.Game, preds vpg.Predecessors, alpha vpg.Owner, gamma, seed *Submap, st *Stats) *Submap {
	n := g.N()
	a := seed.Clone()

	queued := bitset.New(uint(n))
	queue := make([]int, 0, n)
	push := func(v int) {
		if !queued.Test(uint(v)) {
			queued.Set(uint(v))
			queue = append(queue, v)
		}
	}

	for v := 0; v < n; v++ {
		if !g.Mgr.IsFalse(a.Get(v)) {
			push(v)
		}
	}

	for len(queue) > 0 {
		w := queue[0]
		queue = queue[1:]
		queued.Clear(uint(w))
		if st != nil {
			st.AttractorIterations++
		}

		for _, pe := range preds[w] {
			v := pe.Source
			var newVal bool
			if g.Owner[v] == alpha {
				candidate := g.Mgr.And(gamma.Get(v), g.Mgr.And(pe.Guard, a.Get(w)))
				grown := g.Mgr.Or(a.Get(v), candidate)
				if !g.Mgr.Equal(grown, a.Get(v)) {
					a.Set(v, grown)
					newVal = true
				}
			} else {
				acc := gamma.Get(v)
				for _, e := range g.Out[v] {
					liveUnderA := g.Mgr.Or(g.Mgr.Not(g.Mgr.And(e.Guard, gamma.Get(e.Target))), a.Get(e.Target))
					acc = g.Mgr.And(acc, liveUnderA)
				}
				grown := g.Mgr.Or(a.Get(v), acc)
				if !g.Mgr.Equal(grown, a.Get(v)) {
					a.Set(v, grown)
					newVal = true
				}
			}
			if newVal {
				push(v)
			}
		}
	}

	return a
}
