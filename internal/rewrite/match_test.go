package rewrite

import (
	"testing"

	"github.com/gitrdm/mucalc-vpg-core/internal/automaton"
	"github.com/gitrdm/mucalc-vpg-core/internal/term"
)

func TestMatchBindsVariablesAndRejectsMismatches(t *testing.T) {
	pool := term.New()
	h := term.NewThreadID()

	zero, _ := pool.Symbol(h, "0", 0)
	s, _ := pool.Symbol(h, "s", 1)
	plus, _ := pool.Symbol(h, "plus", 2)

	pat := automaton.App(plus, automaton.App(zero), automaton.Var("x"))

	one := buildPeano(h, pool, s, zero, 1)
	tZero := buildPeano(h, pool, s, zero, 0)
	subject, _ := pool.InternSlice(h, plus, []*term.SharedTerm{tZero, one})

	bindings := make(map[string]*term.SharedTerm)
	if !Match(pat, subject, bindings) {
		t.Fatalf("expected plus(0, x) to match plus(0, s(0))")
	}
	if bindings["x"] != one {
		t.Fatalf("expected x to bind s(0), got %s", bindings["x"])
	}

	other, _ := pool.InternSlice(h, plus, []*term.SharedTerm{one, tZero})
	if Match(pat, other, make(map[string]*term.SharedTerm)) {
		t.Fatalf("plus(0, x) must not match plus(s(0), 0)")
	}
}

func TestMatchEnforcesNonLinearBindingsByPointer(t *testing.T) {
	pool := term.New()
	h := term.NewThreadID()

	zero, _ := pool.Symbol(h, "0", 0)
	s, _ := pool.Symbol(h, "s", 1)
	eq, _ := pool.Symbol(h, "eq", 2)

	pat := automaton.App(eq, automaton.Var("x"), automaton.Var("x"))

	one := buildPeano(h, pool, s, zero, 1)
	same, _ := pool.InternSlice(h, eq, []*term.SharedTerm{one, one})
	if !Match(pat, same, make(map[string]*term.SharedTerm)) {
		t.Fatalf("expected eq(x, x) to match eq(s(0), s(0))")
	}

	two := buildPeano(h, pool, s, zero, 2)
	diff, _ := pool.InternSlice(h, eq, []*term.SharedTerm{one, two})
	if Match(pat, diff, make(map[string]*term.SharedTerm)) {
		t.Fatalf("eq(x, x) must not match eq(s(0), s(s(0)))")
	}
}

func TestInstantiateReconstructsSharedTerms(t *testing.T) {
	pool := term.New()
	h := term.NewThreadID()

	zero, _ := pool.Symbol(h, "0", 0)
	s, _ := pool.Symbol(h, "s", 1)
	plus, _ := pool.Symbol(h, "plus", 2)

	one := buildPeano(h, pool, s, zero, 1)
	pat := automaton.App(plus, automaton.Var("x"), automaton.Var("x"))

	got := Instantiate(h, pool, pat, map[string]*term.SharedTerm{"x": one})
	want, _ := pool.InternSlice(h, plus, []*term.SharedTerm{one, one})
	if got != want {
		t.Fatalf("expected instantiation to intern the shared term, got %s", got)
	}
}
