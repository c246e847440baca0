// Package main demonstrates the term pool, rewriter and VPG solver working
// end to end against the small scenarios used throughout this module's
// tests.
package main

import (
	"bytes"
	"fmt"

	"github.com/gitrdm/mucalc-vpg-core/internal/automaton"
	"github.com/gitrdm/mucalc-vpg-core/internal/protect"
	"github.com/gitrdm/mucalc-vpg-core/internal/rewrite"
	"github.com/gitrdm/mucalc-vpg-core/internal/term"
	"github.com/gitrdm/mucalc-vpg-core/internal/vpg"
	"github.com/gitrdm/mucalc-vpg-core/internal/workerpool"
	"github.com/gitrdm/mucalc-vpg-core/internal/zielonka"
	"github.com/gitrdm/mucalc-vpg-core/pkg/aterm"
	"github.com/gitrdm/mucalc-vpg-core/pkg/pgfile"
)

func main() {
	fmt.Println("=== mucalc-vpg-core demo ===")
	fmt.Println()

	peanoAddition()
	peanoMultiplication()
	atermRoundTrip()
	fourVertexGame()
}

// peanoAddition builds plus(0,x)->x and plus(s(x),y)->s(plus(x,y)) and
// normalizes plus(s(s(0)), s(0)) to s(s(s(0))).
func peanoAddition() {
	fmt.Println("1. Peano addition via the rewrite engine:")

	pool := term.New()
	threads := protect.NewThreadPool(pool)
	h, ps, _ := threads.Register()
	defer threads.Deregister(h)

	zero, _ := pool.Symbol(h, "0", 0)
	s, _ := pool.Symbol(h, "s", 1)
	plus, _ := pool.Symbol(h, "plus", 2)

	x := automaton.Var("x")
	y := automaton.Var("y")
	rules := []*automaton.Rule{
		{
			Name: "plus-zero",
			LHS:  automaton.App(plus, automaton.App(zero), y),
			RHS:  y,
		},
		{
			Name: "plus-succ",
			LHS:  automaton.App(plus, automaton.App(s, x), y),
			RHS:  automaton.App(s, automaton.App(plus, x, y)),
		},
	}

	autom := automaton.Compile(rules)
	rw := rewrite.New(pool, autom, rewrite.WithProtection(ps))

	tZero, _ := pool.InternConstant(h, zero)
	one, _ := pool.InternSlice(h, s, []*term.SharedTerm{tZero})
	two, _ := pool.InternSlice(h, s, []*term.SharedTerm{one})

	lhs, _ := pool.InternSlice(h, plus, []*term.SharedTerm{two, one})
	root := ps.Protect(lhs)
	defer root.Drop()

	result, err := rw.Normalize(h, lhs)
	if err != nil {
		fmt.Printf("   normalize failed: %v\n", err)
		return
	}

	fmt.Printf("   plus(s(s(0)), s(0)) normalizes to depth %d (s^n(0))\n", peanoDepth(result, s))
	fmt.Printf("   %d rewrite steps over %d symbol observations\n", rw.Stats().RewriteSteps, rw.Stats().SymbolComparisons)
	fmt.Println()
}

// peanoMultiplication builds times(s(x),y)->plus(y,times(x,y)) on top of
// the addition rules; the RHS references y twice, so this rule is
// duplicating and its side is always delayed rather than fired eagerly
// (spec §4.E "RHS evaluation").
func peanoMultiplication() {
	fmt.Println("2. Peano multiplication (a duplicating rule):")

	pool := term.New()
	threads := protect.NewThreadPool(pool)
	h, ps, _ := threads.Register()
	defer threads.Deregister(h)

	zero, _ := pool.Symbol(h, "0", 0)
	s, _ := pool.Symbol(h, "s", 1)
	plus, _ := pool.Symbol(h, "plus", 2)
	times, _ := pool.Symbol(h, "times", 2)

	x := automaton.Var("x")
	y := automaton.Var("y")
	rules := []*automaton.Rule{
		{Name: "plus-zero", LHS: automaton.App(plus, automaton.App(zero), y), RHS: y},
		{Name: "plus-succ", LHS: automaton.App(plus, automaton.App(s, x), y), RHS: automaton.App(s, automaton.App(plus, x, y))},
		{Name: "times-zero", LHS: automaton.App(times, automaton.App(zero), y), RHS: automaton.App(zero)},
		{
			Name: "times-succ",
			LHS:  automaton.App(times, automaton.App(s, x), y),
			RHS:  automaton.App(plus, y, automaton.App(times, x, y)),
		},
	}
	for _, r := range rules {
		if r.IsDuplicating() {
			fmt.Printf("   rule %q duplicates a bound variable on its right-hand side\n", r.Name)
		}
	}

	autom := automaton.Compile(rules)
	rw := rewrite.New(pool, autom, rewrite.WithProtection(ps))

	tZero, _ := pool.InternConstant(h, zero)
	one, _ := pool.InternSlice(h, s, []*term.SharedTerm{tZero})
	two, _ := pool.InternSlice(h, s, []*term.SharedTerm{one})

	lhs, _ := pool.InternSlice(h, times, []*term.SharedTerm{two, two})
	root := ps.Protect(lhs)
	defer root.Drop()

	result, err := rw.Normalize(h, lhs)
	if err != nil {
		fmt.Printf("   normalize failed: %v\n", err)
		return
	}
	fmt.Printf("   times(s(s(0)), s(s(0))) normalizes to depth %d (s^n(0)), expected 4\n", peanoDepth(result, s))
	fmt.Println()
}

// peanoDepth counts how many s-applications wrap a 0 at the bottom of t.
func peanoDepth(t *term.SharedTerm, s *term.Symbol) int {
	n := 0
	for t.Arity() == 1 && t.Head() == s {
		n++
		t = t.Arg(0)
	}
	return n
}

// atermRoundTrip encodes a small shared term with the binary ATerm writer
// and decodes it back via the reader.
func atermRoundTrip() {
	fmt.Println("3. Binary ATerm round trip:")

	pool := term.New()
	h := term.NewThreadID()

	f, _ := pool.Symbol(h, "f", 2)
	g, _ := pool.Symbol(h, "g", 1)
	a, _ := pool.Symbol(h, "a", 0)

	ta, _ := pool.InternConstant(h, a)
	ga, _ := pool.InternSlice(h, g, []*term.SharedTerm{ta})
	root, _ := pool.InternSlice(h, f, []*term.SharedTerm{ga, ga})

	var buf bytes.Buffer
	w, err := aterm.NewWriter(&buf)
	if err != nil {
		fmt.Printf("   NewWriter failed: %v\n", err)
		return
	}
	if err := w.Export([]*term.SharedTerm{root}); err != nil {
		fmt.Printf("   Export failed: %v\n", err)
		return
	}
	fmt.Printf("   encoded f(g(a), g(a)) into %d bytes\n", buf.Len())

	decoded, err := aterm.Decode(&buf, pool, h)
	if err != nil {
		fmt.Printf("   Decode failed: %v\n", err)
		return
	}
	fmt.Printf("   decoded term is pointer-equal to the original: %v\n", decoded[0] == root)
	fmt.Println()
}

// fourVertexGame reproduces spec scenario 6: a 4-vertex game over features
// {p, q}, solved both via the BDD submap algorithm and via per-minterm
// product projection, then printed in both textual file formats.
func fourVertexGame() {
	fmt.Println("4. Four-vertex variability parity game:")

	mgr, err := vpg.NewManager([]string{"p", "q"})
	if err != nil {
		fmt.Printf("   NewManager failed: %v\n", err)
		return
	}
	cfg := mgr.True()
	g := vpg.NewGame(mgr, 4, cfg)

	g.Owner[0] = vpg.Even
	g.Prio[0] = 2
	g.AddEdge(0, 1, mgr.Var(mgr.FeatureIndex("p")))
	g.AddEdge(0, 2, mgr.NotVar(mgr.FeatureIndex("p")))

	g.Owner[1] = vpg.Odd
	g.Prio[1] = 1
	g.AddEdge(1, 3, mgr.Var(mgr.FeatureIndex("q")))
	g.AddEdge(1, 0, mgr.NotVar(mgr.FeatureIndex("q")))

	g.Owner[2] = vpg.Even
	g.Prio[2] = 0
	g.AddEdge(2, 2, cfg)

	g.Owner[3] = vpg.Odd
	g.Prio[3] = 1
	g.AddEdge(3, 3, cfg)

	g.Totalize()

	preds := vpg.BuildPredecessors(g)
	gamma := zielonka.FullSubmap(g.Mgr, g.N(), g.Config)
	var stats zielonka.Stats
	bddResult := zielonka.Solve(g, preds, gamma, zielonka.WithStats(&stats))
	fmt.Printf("   submap solve: %d recursions (depth %d), %d attractor iterations\n",
		stats.Recursions, stats.MaxDepth, stats.AttractorIterations)

	pool := workerpool.New(2)
	defer pool.Shutdown()
	productResult := zielonka.SolveProduct(g, pool)

	agree := true
	for v := 0; v < g.N(); v++ {
		if !mgr.Equal(bddResult.Win[vpg.Even].Get(v), productResult.Win[vpg.Even].Get(v)) {
			agree = false
		}
		if !mgr.Equal(bddResult.Win[vpg.Odd].Get(v), productResult.Win[vpg.Odd].Get(v)) {
			agree = false
		}
	}
	fmt.Printf("   submap solve and product solve agree: %v\n", agree)

	var extBuf bytes.Buffer
	if err := pgfile.WriteExtended(&extBuf, g); err != nil {
		fmt.Printf("   WriteExtended failed: %v\n", err)
		return
	}
	fmt.Println("   extended PGSolver-family encoding:")
	fmt.Print(extBuf.String())

	minterm := uint64(0) // p=false, q=false
	plain := zielonka.Project(g, minterm)
	var pgBuf bytes.Buffer
	if err := pgfile.WritePGSolver(&pgBuf, plain); err != nil {
		fmt.Printf("   WritePGSolver failed: %v\n", err)
		return
	}
	fmt.Println("   plain PGSolver projection at p=false,q=false:")
	fmt.Print(pgBuf.String())
	fmt.Println()
}
