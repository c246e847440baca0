package automaton

import (
	"reflect"
	"testing"

	"github.com/gitrdm/mucalc-vpg-core/internal/term"
)

// peanoRules returns the plus(0,x)->x / plus(s(x),y)->s(plus(x,y)) rule
// set used across the automaton and rewriter tests.
func peanoRules(h *term.ThreadID, pool *term.Pool) (*term.Symbol, *term.Symbol, *term.Symbol, []*Rule) {
	zero, _ := pool.Symbol(h, "0", 0)
	s, _ := pool.Symbol(h, "s", 1)
	plus, _ := pool.Symbol(h, "plus", 2)

	rules := []*Rule{
		{Name: "plus-zero", LHS: App(plus, App(zero), Var("x")), RHS: Var("x")},
		{Name: "plus-succ", LHS: App(plus, App(s, Var("x")), Var("y")), RHS: App(s, App(plus, Var("x"), Var("y")))},
	}
	return zero, s, plus, rules
}

func TestCompileDiscardsUnsupportedRules(t *testing.T) {
	pool := term.New()
	h := term.NewThreadID()
	f, _ := pool.Symbol(h, "f", 1)

	firstOrder := &Rule{Name: "id", LHS: App(f, Var("x")), RHS: Var("x")}
	bareVariable := &Rule{Name: "bare", LHS: Var("F"), RHS: Var("F")}
	higherOrder := &Rule{Name: "bad", LHS: App(f, Var("x")), RHS: Var("x")}
	higherOrder.LHS.Kind = PatternApp
	higherOrder.LHS.Head = nil // variable in head position

	a := Compile([]*Rule{firstOrder, bareVariable, higherOrder})
	if len(a.Rules) != 1 || a.Rules[0].Name != "id" {
		t.Fatalf("expected only the first-order applied rule to survive, got %d rules", len(a.Rules))
	}
}

func TestStartStateAnnouncesAllVariableRule(t *testing.T) {
	pool := term.New()
	h := term.NewThreadID()
	f, _ := pool.Symbol(h, "f", 2)

	a := Compile([]*Rule{{Name: "pair", LHS: App(f, Var("x"), Var("y")), RHS: Var("x")}})

	tr := a.Lookup(0, f)
	if tr == nil {
		t.Fatalf("expected a transition on f from the start state")
	}
	if len(tr.Announcements) != 1 {
		t.Fatalf("expected one announcement, got %d", len(tr.Announcements))
	}
	ann := tr.Announcements[0]
	if ann.RuleIndex != 0 || len(ann.Position) != 0 || ann.SymbolsSeen != 0 {
		t.Fatalf("expected rule 0 announced at the root with no symbols seen, got %+v", ann)
	}
}

func TestDeepPatternAnnouncedAfterDescent(t *testing.T) {
	pool := term.New()
	h := term.NewThreadID()
	zero, s, plus, rules := peanoRules(h, pool)

	a := Compile(rules)

	root := a.Lookup(0, plus)
	if root == nil {
		t.Fatalf("expected a transition on plus from the start state")
	}
	if len(root.Announcements) != 0 {
		t.Fatalf("neither rule is completed by observing plus alone, got %+v", root.Announcements)
	}
	if len(root.Destinations) == 0 {
		t.Fatalf("expected destinations after observing plus")
	}
	next := root.Destinations[0]
	if len(next.Pos) != 0 {
		t.Fatalf("both rules keep a stake at the root, so the first destination must not deepen, got %s", next.Pos)
	}
	if !a.States[next.State].Label.Equal(Position{1}) {
		t.Fatalf("the successor state must observe position 1 next, got %s", a.States[next.State].Label)
	}

	onZero := a.Lookup(next.State, zero)
	if onZero == nil || len(onZero.Announcements) != 1 {
		t.Fatalf("observing 0 at position 1 must announce plus-zero, got %+v", onZero)
	}
	if ann := onZero.Announcements[0]; ann.RuleIndex != 0 || len(ann.Position) != 0 || ann.SymbolsSeen != 1 {
		t.Fatalf("plus-zero must be announced at the root after one observed symbol, got %+v", ann)
	}

	onS := a.Lookup(next.State, s)
	if onS == nil || len(onS.Announcements) != 1 || onS.Announcements[0].RuleIndex != 1 {
		t.Fatalf("observing s at position 1 must announce plus-succ, got %+v", onS)
	}
}

func TestUncoveredArgumentsDescendToStartState(t *testing.T) {
	pool := term.New()
	h := term.NewThreadID()
	_, s, plus, rules := peanoRules(h, pool)

	a := Compile(rules)
	inner := a.Lookup(0, plus).Destinations[0].State

	// Observing s at position 1 completes plus-succ; the surviving fresh
	// goals under position 2 re-root at the start state, and s's own
	// argument position 1.1 gets a fresh start-state attempt too.
	onS := a.Lookup(inner, s)
	want := []Destination{{Pos: Position{1, 1}, State: 0}, {Pos: Position{2}, State: 0}}
	if !reflect.DeepEqual(onS.Destinations, want) {
		t.Fatalf("expected start-state destinations at 1.1 and 2, got %+v", onS.Destinations)
	}
}

func TestConstructionIsDeterministic(t *testing.T) {
	pool := term.New()
	h := term.NewThreadID()
	zero, s, plus, rules := peanoRules(h, pool)

	a1 := Compile(rules)
	a2 := Compile(rules)

	if len(a1.States) != len(a2.States) {
		t.Fatalf("state counts differ: %d vs %d", len(a1.States), len(a2.States))
	}
	for i := range a1.States {
		if !a1.States[i].Label.Equal(a2.States[i].Label) {
			t.Fatalf("state %d labels differ: %s vs %s", i, a1.States[i].Label, a2.States[i].Label)
		}
		for _, sym := range []*term.Symbol{zero, s, plus} {
			t1 := a1.Lookup(i, sym)
			t2 := a2.Lookup(i, sym)
			if !reflect.DeepEqual(t1.Announcements, t2.Announcements) || !reflect.DeepEqual(t1.Destinations, t2.Destinations) {
				t.Fatalf("state %d transition on %s differs between compilations", i, sym)
			}
		}
	}
}

func TestAPMANeverDeepensAndHasSingleDestinations(t *testing.T) {
	pool := term.New()
	h := term.NewThreadID()
	zero, s, plus, rules := peanoRules(h, pool)

	a := CompileAPMA(rules)
	if !a.APMA {
		t.Fatalf("expected APMA mode to be recorded")
	}

	for i := range a.States {
		for _, sym := range []*term.Symbol{zero, s, plus} {
			tr := a.Lookup(i, sym)
			if tr == nil {
				continue
			}
			if len(tr.Destinations) > 1 {
				t.Fatalf("APMA transition from state %d on %s has %d destinations", i, sym, len(tr.Destinations))
			}
			for _, d := range tr.Destinations {
				if len(d.Pos) != 0 {
					t.Fatalf("APMA transition from state %d on %s deepens to %s", i, sym, d.Pos)
				}
			}
			for _, ann := range tr.Announcements {
				if len(ann.Position) != 0 {
					t.Fatalf("APMA announcement away from the root: %+v", ann)
				}
			}
		}
	}

	inner := a.Lookup(0, plus).Destinations[0].State
	if got := a.Lookup(inner, zero).Announcements; len(got) != 1 || got[0].RuleIndex != 0 {
		t.Fatalf("APMA must still announce plus-zero after observing 0 at position 1, got %+v", got)
	}
}

func TestIdenticalGoalSetsAreMerged(t *testing.T) {
	pool := term.New()
	h := term.NewThreadID()
	_, s, plus, rules := peanoRules(h, pool)

	a := Compile(rules)

	// The fresh match attempts under position 2 reconstitute exactly the
	// start state's goal set once their common prefix is stripped, so the
	// destination at 2 must reuse state 0 rather than mint a new state.
	inner := a.Lookup(0, plus).Destinations[0].State
	for _, d := range a.Lookup(inner, s).Destinations {
		if d.State != 0 {
			t.Fatalf("expected re-rooted fresh goals to merge with the start state, got state %d at %s", d.State, d.Pos)
		}
	}
}
