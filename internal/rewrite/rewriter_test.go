package rewrite

import (
	"testing"

	"github.com/gitrdm/mucalc-vpg-core/internal/automaton"
	"github.com/gitrdm/mucalc-vpg-core/internal/term"
)

// buildPeano interns s(s(...0...)) for n applications of s.
func buildPeano(h *term.ThreadID, pool *term.Pool, s, zero *term.Symbol, n int) *term.SharedTerm {
	t, _ := pool.InternConstant(h, zero)
	for i := 0; i < n; i++ {
		t, _ = pool.InternSlice(h, s, []*term.SharedTerm{t})
	}
	return t
}

func TestRewritePlus(t *testing.T) {
	pool := term.New()
	h := term.NewThreadID()

	zero, _ := pool.Symbol(h, "0", 0)
	s, _ := pool.Symbol(h, "s", 1)
	plus, _ := pool.Symbol(h, "plus", 2)

	// plus(0, x) -> x
	r1 := &automaton.Rule{
		Name: "plus-zero",
		LHS:  automaton.App(plus, automaton.App(zero), automaton.Var("x")),
		RHS:  automaton.Var("x"),
	}
	// plus(s(x), y) -> s(plus(x, y))
	r2 := &automaton.Rule{
		Name: "plus-succ",
		LHS:  automaton.App(plus, automaton.App(s, automaton.Var("x")), automaton.Var("y")),
		RHS:  automaton.App(s, automaton.App(plus, automaton.Var("x"), automaton.Var("y"))),
	}

	autom := automaton.Compile([]*automaton.Rule{r1, r2})
	rw := New(pool, autom)

	lhs := buildPeano(h, pool, s, zero, 2)   // s(s(0))
	rhsArg := buildPeano(h, pool, s, zero, 1) // s(0)
	input, _ := pool.InternSlice(h, plus, []*term.SharedTerm{lhs, rhsArg})

	result, err := rw.Normalize(h, input)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	want := buildPeano(h, pool, s, zero, 3) // s(s(s(0)))
	if result != want {
		t.Fatalf("got %s want %s", result, want)
	}
}

func TestRewriteDuplicatingRuleDelaysUntilNormalForm(t *testing.T) {
	pool := term.New()
	h := term.NewThreadID()

	zero, _ := pool.Symbol(h, "0", 0)
	s, _ := pool.Symbol(h, "s", 1)
	plus, _ := pool.Symbol(h, "plus", 2)
	times, _ := pool.Symbol(h, "times", 2)

	r1 := &automaton.Rule{
		Name: "plus-zero",
		LHS:  automaton.App(plus, automaton.App(zero), automaton.Var("x")),
		RHS:  automaton.Var("x"),
	}
	r2 := &automaton.Rule{
		Name: "plus-succ",
		LHS:  automaton.App(plus, automaton.App(s, automaton.Var("x")), automaton.Var("y")),
		RHS:  automaton.App(s, automaton.App(plus, automaton.Var("x"), automaton.Var("y"))),
	}
	// times(s(x), y) -> plus(y, times(x, y))  — y is duplicated in the RHS.
	r3 := &automaton.Rule{
		Name: "times-succ",
		LHS:  automaton.App(times, automaton.App(s, automaton.Var("x")), automaton.Var("y")),
		RHS:  automaton.App(plus, automaton.Var("y"), automaton.App(times, automaton.Var("x"), automaton.Var("y"))),
	}
	// times(0, y) -> 0
	r4 := &automaton.Rule{
		Name: "times-zero",
		LHS:  automaton.App(times, automaton.App(zero), automaton.Var("y")),
		RHS:  automaton.App(zero),
	}

	autom := automaton.Compile([]*automaton.Rule{r1, r2, r3, r4})
	if !autom.Rules[2].IsDuplicating() {
		t.Fatalf("expected times-succ to be classified as duplicating")
	}
	if cr := CompileRule(autom.Rules[2]); !cr.Duplicating || !cr.MustDelay() {
		t.Fatalf("expected the compiled times-succ rule to be delayed")
	}
	if cr := CompileRule(autom.Rules[0]); cr.MustDelay() {
		t.Fatalf("plus-zero is linear, unconditional and non-duplicating; it must fire eagerly")
	}

	rw := New(pool, autom)

	two := buildPeano(h, pool, s, zero, 2) // s(s(0))
	one := buildPeano(h, pool, s, zero, 1) // s(0)
	input, _ := pool.InternSlice(h, times, []*term.SharedTerm{two, one})

	result, err := rw.Normalize(h, input)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	want := buildPeano(h, pool, s, zero, 2) // s(s(0))
	if result != want {
		t.Fatalf("got %s want %s", result, want)
	}
}

func TestRewriteConditionalRuleChecksConditionOnNormalForms(t *testing.T) {
	pool := term.New()
	h := term.NewThreadID()

	zero, _ := pool.Symbol(h, "0", 0)
	s, _ := pool.Symbol(h, "s", 1)
	plus, _ := pool.Symbol(h, "plus", 2)
	f, _ := pool.Symbol(h, "f", 1)
	ok, _ := pool.Symbol(h, "ok", 0)

	one := automaton.App(s, automaton.App(zero))
	rules := []*automaton.Rule{
		{Name: "plus-zero", LHS: automaton.App(plus, automaton.App(zero), automaton.Var("x")), RHS: automaton.Var("x")},
		{Name: "plus-succ", LHS: automaton.App(plus, automaton.App(s, automaton.Var("x")), automaton.Var("y")), RHS: automaton.App(s, automaton.App(plus, automaton.Var("x"), automaton.Var("y")))},
		// f(x) -> ok  if x == s(0): the condition side is only decidable
		// once x is in normal form.
		{
			Name:       "f-one",
			LHS:        automaton.App(f, automaton.Var("x")),
			RHS:        automaton.App(ok),
			Conditions: []automaton.Condition{{LHS: automaton.Var("x"), RHS: one, Equal: true}},
		},
	}

	rw := New(pool, automaton.Compile(rules))

	// f(plus(0, s(0))): the argument normalizes to s(0), so the condition
	// holds and the rule fires.
	arg, _ := pool.InternSlice(h, plus, []*term.SharedTerm{buildPeano(h, pool, s, zero, 0), buildPeano(h, pool, s, zero, 1)})
	input, _ := pool.InternSlice(h, f, []*term.SharedTerm{arg})
	result, err := rw.Normalize(h, input)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want, _ := pool.InternConstant(h, ok)
	if result != want {
		t.Fatalf("got %s want %s", result, want)
	}

	// f(s(s(0))): the condition fails and the term is already in normal
	// form, so it must come back unchanged.
	stuck, _ := pool.InternSlice(h, f, []*term.SharedTerm{buildPeano(h, pool, s, zero, 2)})
	result, err = rw.Normalize(h, stuck)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if result != stuck {
		t.Fatalf("failed condition must leave the term unchanged, got %s", result)
	}
}

func TestRewriteNonLinearRuleComparesPositionsByPointer(t *testing.T) {
	pool := term.New()
	h := term.NewThreadID()

	zero, _ := pool.Symbol(h, "0", 0)
	s, _ := pool.Symbol(h, "s", 1)
	plus, _ := pool.Symbol(h, "plus", 2)
	eq, _ := pool.Symbol(h, "eq", 2)
	tt, _ := pool.Symbol(h, "tt", 0)

	rules := []*automaton.Rule{
		{Name: "plus-zero", LHS: automaton.App(plus, automaton.App(zero), automaton.Var("x")), RHS: automaton.Var("x")},
		{Name: "plus-succ", LHS: automaton.App(plus, automaton.App(s, automaton.Var("x")), automaton.Var("y")), RHS: automaton.App(s, automaton.App(plus, automaton.Var("x"), automaton.Var("y")))},
		// eq(x, x) -> tt: non-linear, so it may only fire after both
		// arguments are normalized and pointer-equal.
		{Name: "eq-refl", LHS: automaton.App(eq, automaton.Var("x"), automaton.Var("x")), RHS: automaton.App(tt)},
	}
	autom := automaton.Compile(rules)
	if !autom.Rules[2].IsNonLinear() {
		t.Fatalf("expected eq-refl to be classified as non-linear")
	}
	rw := New(pool, autom)

	one := buildPeano(h, pool, s, zero, 1)
	sum, _ := pool.InternSlice(h, plus, []*term.SharedTerm{buildPeano(h, pool, s, zero, 0), one})

	// eq(plus(0, s(0)), s(0)) normalizes the first argument to s(0); both
	// sides then share storage and the rule fires.
	input, _ := pool.InternSlice(h, eq, []*term.SharedTerm{sum, one})
	result, err := rw.Normalize(h, input)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want, _ := pool.InternConstant(h, tt)
	if result != want {
		t.Fatalf("got %s want %s", result, want)
	}

	// eq(s(0), s(s(0))) has distinct normal forms on both sides and must
	// stay put.
	two := buildPeano(h, pool, s, zero, 2)
	stuck, _ := pool.InternSlice(h, eq, []*term.SharedTerm{one, two})
	result, err = rw.Normalize(h, stuck)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if result != stuck {
		t.Fatalf("unequal arguments must not fire eq-refl, got %s", result)
	}
}

func TestRewriteCountsWork(t *testing.T) {
	pool := term.New()
	h := term.NewThreadID()

	zero, _ := pool.Symbol(h, "0", 0)
	s, _ := pool.Symbol(h, "s", 1)
	plus, _ := pool.Symbol(h, "plus", 2)

	rules := []*automaton.Rule{
		{Name: "plus-zero", LHS: automaton.App(plus, automaton.App(zero), automaton.Var("x")), RHS: automaton.Var("x")},
		{Name: "plus-succ", LHS: automaton.App(plus, automaton.App(s, automaton.Var("x")), automaton.Var("y")), RHS: automaton.App(s, automaton.App(plus, automaton.Var("x"), automaton.Var("y")))},
	}
	rw := New(pool, automaton.Compile(rules))

	input, _ := pool.InternSlice(h, plus, []*term.SharedTerm{buildPeano(h, pool, s, zero, 2), buildPeano(h, pool, s, zero, 1)})
	if _, err := rw.Normalize(h, input); err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	st := rw.Stats()
	// plus(s(s(0)), s(0)) takes two plus-succ steps and one plus-zero step.
	if st.RewriteSteps != 3 {
		t.Fatalf("expected exactly 3 rewrite steps, got %d", st.RewriteSteps)
	}
	if st.Recursions != 1 || st.SymbolComparisons == 0 {
		t.Fatalf("unexpected counters: %+v", st)
	}
}

func TestRewritePreservesSharingOfUnchangedSubterms(t *testing.T) {
	pool := term.New()
	h := term.NewThreadID()

	a, _ := pool.Symbol(h, "a", 0)
	f, _ := pool.Symbol(h, "f", 1)
	g, _ := pool.Symbol(h, "g", 1)

	// No rules at all: normalization must be the identity and must not
	// disturb sharing.
	autom := automaton.Compile(nil)
	rw := New(pool, autom)

	ca, _ := pool.InternConstant(h, a)
	fa, _ := pool.InternSlice(h, f, []*term.SharedTerm{ca})
	gfa, _ := pool.InternSlice(h, g, []*term.SharedTerm{fa})

	result, err := rw.Normalize(h, gfa)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if result != gfa {
		t.Fatalf("expected identity normalization to preserve pointer identity")
	}
}
