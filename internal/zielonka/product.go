package zielonka

import (
	"github.com/gitrdm/mucalc-vpg-core/internal/vpg"
	"github.com/gitrdm/mucalc-vpg-core/internal/workerpool"
)

// PlainEdge is a single concrete (unguarded) edge in a minterm's projected
// game.
type PlainEdge struct{ Target int }

// PlainGame is a VPG projected onto one concrete product: every BDD guard
// has been evaluated against a single minterm and reduced to "present" or
// "absent".
type PlainGame struct {
	Owner []vpg.Owner
	Prio  []int
	Out   [][]PlainEdge
}

func (pg *PlainGame) n() int { return len(pg.Owner) }

// Project evaluates g's edges at the given minterm, producing the plain
// (BDD-free) game that minterm induces (spec §4.G "Product variant":
// "for each minterm, the plain game it induces").
func Project(g *vpg.Game, minterm uint64) *PlainGame {
	pg := &PlainGame{
		Owner: append([]vpg.Owner(nil), g.Owner...),
		Prio:  append([]int(nil), g.Prio...),
		Out:   make([][]PlainEdge, g.N()),
	}
	node := g.Mgr.MintermNode(minterm)
	for v := 0; v < g.N(); v++ {
		for _, e := range g.Out[v] {
			if !g.Mgr.IsFalse(g.Mgr.And(e.Guard, node)) {
				pg.Out[v] = append(pg.Out[v], PlainEdge{Target: e.Target})
			}
		}
	}
	return pg
}

// PlainResult is the winning-region partition of a plain game.
type PlainResult struct {
	Win [2][]bool
}

// PlainSolve is the classical (BDD-free) recursive Zielonka algorithm over
// a concrete vertex subset, used by the product variant to cross-check (or
// replace) the submap-based solve per minterm.
func PlainSolve(pg *PlainGame, live []bool) PlainResult {
	n := pg.n()
	anyLive := false
	for _, b := range live {
		if b {
			anyLive = true
			break
		}
	}
	if !anyLive {
		return PlainResult{Win: [2][]bool{make([]bool, n), make([]bool, n)}}
	}

	m := -1
	for v := 0; v < n; v++ {
		if live[v] && pg.Prio[v] > m {
			m = pg.Prio[v]
		}
	}
	x := vpg.Even
	if m%2 != 0 {
		x = vpg.Odd
	}
	notX := x.Opponent()

	u := make([]bool, n)
	for v := 0; v < n; v++ {
		u[v] = live[v] && pg.Prio[v] == m
	}
	alpha := plainAttractor(pg, live, x, u)

	rest := make([]bool, n)
	for v := 0; v < n; v++ {
		rest[v] = live[v] && !alpha[v]
	}
	r := PlainSolve(pg, rest)

	if !anyTrue(r.Win[notX]) {
		var out PlainResult
		out.Win[x] = orBool(r.Win[x], alpha)
		out.Win[notX] = make([]bool, n)
		return out
	}

	beta := plainAttractor(pg, live, notX, r.Win[notX])
	rest2 := make([]bool, n)
	for v := 0; v < n; v++ {
		rest2[v] = live[v] && !beta[v]
	}
	r2 := PlainSolve(pg, rest2)

	var out PlainResult
	out.Win[x] = r2.Win[x]
	out.Win[notX] = orBool(r2.Win[notX], beta)
	return out
}

func plainAttractor(pg *PlainGame, live []bool, alpha vpg.Owner, seed []bool) []bool {
	n := pg.n()
	a := append([]bool(nil), seed...)
	changed := true
	for changed {
		changed = false
		for v := 0; v < n; v++ {
			if !live[v] || a[v] {
				continue
			}
			if pg.Owner[v] == alpha {
				for _, e := range pg.Out[v] {
					if live[e.Target] && a[e.Target] {
						a[v] = true
						changed = true
						break
					}
				}
			} else {
				all := len(pg.Out[v]) > 0
				for _, e := range pg.Out[v] {
					if !(live[e.Target] && a[e.Target]) {
						all = false
						break
					}
				}
				if all {
					a[v] = true
					changed = true
				}
			}
		}
	}
	return a
}

func anyTrue(bs []bool) bool {
	for _, b := range bs {
		if b {
			return true
		}
	}
	return false
}

func orBool(a, b []bool) []bool {
	out := make([]bool, len(a))
	for i := range a {
		out[i] = a[i] || b[i]
	}
	return out
}

// SolveProduct enumerates the minterms of g.Config, solves the plain game
// each one induces concurrently via internal/workerpool, and collates the
// per-minterm winning regions back into submaps (spec §4.G "Product
// variant" and the §8 "Agreement with product" cross-check property).
func SolveProduct(g *vpg.Game, pool *workerpool.Pool) Result {
	minterms := g.Mgr.Minterms(g.Config)
	n := g.N()

	tasks := make([]func() PlainResult, len(minterms))
	for i, mt := range minterms {
		mt := mt
		tasks[i] = func() PlainResult {
			pg := Project(g, mt)
			live := make([]bool, n)
			for v := range live {
				live[v] = true
			}
			return PlainSolve(pg, live)
		}
	}

	results := workerpool.RunAll(pool, tasks)

	w0 := NewSubmap(g.Mgr, n)
	w1 := NewSubmap(g.Mgr, n)
	for i, mt := range minterms {
		node := g.Mgr.MintermNode(mt)
		r := results[i]
		for v := 0; v < n; v++ {
			if r.Win[vpg.Even][v] {
				w0.Set(v, g.Mgr.Or(w0.Get(v), node))
			}
			if r.Win[vpg.Odd][v] {
				w1.Set(v, g.Mgr.Or(w1.Get(v), node))
			}
		}
	}

	return Result{Win: [2]*Submap{w0, w1}}
}
