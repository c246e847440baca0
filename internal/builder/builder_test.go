package builder

import (
	"testing"

	"github.com/gitrdm/mucalc-vpg-core/internal/term"
)

func TestBuilderConstructsBottomUp(t *testing.T) {
	pool := term.New()
	h := term.NewThreadID()

	a, _ := pool.Symbol(h, "a", 0)
	f, _ := pool.Symbol(h, "f", 1)
	g, _ := pool.Symbol(h, "g", 2)

	ca, _ := pool.InternConstant(h, a)

	b := New(pool, 4)

	// Build g(f(a), a): f(a) goes to slot1, then g reads slot1 and slot0
	// (the same ca binding reused, as a non-linear RHS would).
	prog2 := []Instr{
		Term(ca, 0),
		Construct(f, []Slot{0}, 1),
		Construct(g, []Slot{1, 0}, 3),
		Return(3),
	}
	result, err := b.Run(h, nil, prog2)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want, _ := pool.InternSlice(h, g, []*term.SharedTerm{
		mustConstruct(t, pool, h, f, ca),
		ca,
	})
	if result != want {
		t.Fatalf("got %v want %v", result, want)
	}
}

func mustConstruct(t *testing.T, pool *term.Pool, h *term.ThreadID, sym *term.Symbol, args ...*term.SharedTerm) *term.SharedTerm {
	t.Helper()
	r, _ := pool.InternSlice(h, sym, args)
	return r
}

func TestBuilderRewriteRequiresReducer(t *testing.T) {
	pool := term.New()
	h := term.NewThreadID()
	a, _ := pool.Symbol(h, "a", 0)
	ca, _ := pool.InternConstant(h, a)

	b := New(pool, 2)
	program := []Instr{
		Term(ca, 0),
		Rewrite(0),
		Return(0),
	}
	if _, err := b.Run(h, nil, program); err == nil {
		t.Fatalf("expected error when OpRewrite runs with no Reducer")
	}

	identity := func(h *term.ThreadID, t *term.SharedTerm) (*term.SharedTerm, error) { return t, nil }
	b.Reset()
	result, err := b.Run(h, identity, program)
	if err != nil {
		t.Fatalf("Run with reducer: %v", err)
	}
	if result != ca {
		t.Fatalf("identity reducer changed the term")
	}
}
