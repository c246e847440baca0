package rewrite

import (
	"github.com/gitrdm/mucalc-vpg-core/internal/automaton"
	"github.com/gitrdm/mucalc-vpg-core/internal/term"
)

// Match attempts to match pattern p against subterm t, returning the
// variable bindings on success. Because the pool guarantees maximal
// sharing, checking whether two occurrences of the same variable are
// consistent is pointer comparison (spec §4.E "Non-linearity").
func Match(p *automaton.Pattern, t *term.SharedTerm, bindings map[string]*term.SharedTerm) bool {
	switch p.Kind {
	case automaton.PatternVar:
		if existing, ok := bindings[p.Var]; ok {
			return existing == t
		}
		bindings[p.Var] = t
		return true
	case automaton.PatternApp:
		if t.Head() != p.Head {
			return false
		}
		if t.Arity() != len(p.Args) {
			return false
		}
		for i, a := range p.Args {
			if !Match(a, t.Arg(i), bindings) {
				return false
			}
		}
		return true
	}
	return false
}

// Instantiate rebuilds a pattern with every variable replaced by its
// binding, interning the result. Used for condition evaluation (spec
// §4.E: "Conditions are evaluated by recursive normalization of both
// sides").
func Instantiate(h *term.ThreadID, pool *term.Pool, p *automaton.Pattern, bindings map[string]*term.SharedTerm) *term.SharedTerm {
	if p.Kind == automaton.PatternVar {
		return bindings[p.Var]
	}
	args := make([]*term.SharedTerm, len(p.Args))
	for i, a := range p.Args {
		args[i] = Instantiate(h, pool, a, bindings)
	}
	t, _ := pool.InternSlice(h, p.Head, args)
	return t
}
