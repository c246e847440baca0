package rewrite

import (
	"github.com/pkg/errors"

	"github.com/gitrdm/mucalc-vpg-core/internal/automaton"
	"github.com/gitrdm/mucalc-vpg-core/internal/builder"
	"github.com/gitrdm/mucalc-vpg-core/internal/logging"
	"github.com/gitrdm/mucalc-vpg-core/internal/protect"
	"github.com/gitrdm/mucalc-vpg-core/internal/term"
)

// Stats counts the work one Rewriter has performed across Normalize calls.
type Stats struct {
	// RewriteSteps is the number of rule applications.
	RewriteSteps int
	// SymbolComparisons is the number of head-symbol observations.
	SymbolComparisons int
	// Recursions is the number of (possibly nested) Normalize invocations;
	// condition evaluation normalizes recursively.
	Recursions int
}

// Option configures a Rewriter at construction time.
type Option func(*Rewriter)

// WithProtection registers the rewriter's working containers (the live-term
// set of each normalization and the automaton's symbol table) with ps for
// the duration of every Normalize call, so a concurrent collection cannot
// sweep terms the configuration stack still refers to.
func WithProtection(ps *protect.ProtectionSet) Option {
	return func(r *Rewriter) { r.ps = ps }
}

// Rewriter normalizes terms by exploring a configuration tree over the set
// automaton (spec §4.E): each configuration pairs an automaton state with a
// subterm, hypertransitions fan out into child configurations, and rule
// matches either fire immediately or are delayed on a side stack until the
// subterms they depend on are in normal form.
type Rewriter struct {
	pool     *term.Pool
	auto     *automaton.Automaton
	compiled []*CompiledRule
	b        *builder.Builder
	ps       *protect.ProtectionSet
	stats    Stats
}

// New compiles every rule of autom and returns a Rewriter ready to
// normalize terms under them.
func New(pool *term.Pool, autom *automaton.Automaton, opts ...Option) *Rewriter {
	compiled := make([]*CompiledRule, len(autom.Rules))
	maxSlots := 1
	for i, r := range autom.Rules {
		compiled[i] = CompileRule(r)
		if compiled[i].nSlots > maxSlots {
			maxSlots = compiled[i].nSlots
		}
	}
	r := &Rewriter{
		pool:     pool,
		auto:     autom,
		compiled: compiled,
		b:        builder.New(pool, maxSlots),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Stats returns the counters accumulated so far.
func (r *Rewriter) Stats() Stats { return r.stats }

// Normalize rewrites t to normal form. The traversal is entirely
// stack-driven: no Go recursion proportional to term depth, only to
// condition nesting.
func (r *Rewriter) Normalize(h *term.ThreadID, t *term.SharedTerm) (*term.SharedTerm, error) {
	r.stats.Recursions++

	live := newLiveSet(t)
	if r.ps != nil {
		liveIdx := r.ps.RegisterContainer(live)
		defer r.ps.DeregisterContainer(liveIdx)
		autoIdx := r.ps.RegisterContainer(r.auto)
		defer r.ps.DeregisterContainer(autoIdx)
	}
	prevTracer := r.b.Tracer()
	r.b.SetTracer(live.Add)
	defer r.b.SetTracer(prevTracer)

	cs := newConfigStack(r, h, live, t)
	for cs.current >= 0 {
		leaf := cs.current

		if se, ok := cs.popSideFor(leaf); ok {
			switch se.kind {
			case sideBranch:
				cs.grow(leaf, se.branches)

			case sideDelayedRule:
				if err := r.apply(cs, leaf, se.ann); err != nil {
					return nil, err
				}

			case sideConditionCheck:
				cr := r.compiled[se.ann.RuleIndex]
				redex := atPosition(cs.terms[leaf], se.ann.Position)
				ok := equivalenceClassesHold(redex, cr.EquivClasses)
				if ok && cr.Conditional {
					holds, err := r.conditionsHold(cs.h, live, cr, redex)
					if err != nil {
						return nil, err
					}
					ok = holds
				}
				if ok {
					if err := r.apply(cs, leaf, se.ann); err != nil {
						return nil, err
					}
				}
			}
			continue
		}

		if cs.stack[leaf].explored {
			prev := cs.prevWithSide()
			if prev < 0 {
				break
			}
			cs.jumpBack(prev)
			continue
		}

		st := &r.auto.States[cs.stack[leaf].state]
		sub := atPosition(cs.terms[leaf], st.Label)
		r.stats.SymbolComparisons++

		tr := r.auto.Lookup(cs.stack[leaf].state, sub.Head())
		fired := false
		if tr != nil {
			for _, ann := range tr.Announcements {
				cr := r.compiled[ann.RuleIndex]
				switch {
				case cr.Conditional || cr.NonLinear:
					cs.side = append(cs.side, sideEntry{config: leaf, kind: sideConditionCheck, ann: ann})
				case cr.Duplicating:
					logging.S().Debugw("rewrite: delaying duplicating rule", "rule", cr.Rule.Name)
					cs.side = append(cs.side, sideEntry{config: leaf, kind: sideDelayedRule, ann: ann})
				default:
					if err := r.apply(cs, leaf, ann); err != nil {
						return nil, err
					}
					fired = true
				}
				if fired {
					break
				}
			}
		}
		if fired {
			continue
		}

		cs.stack[leaf].explored = true
		if tr != nil && len(tr.Destinations) > 0 {
			cs.grow(leaf, tr.Destinations)
		}
		// Otherwise the leaf is exhausted; the explored branch above jumps
		// back to the nearest configuration with side info next iteration.
	}

	return cs.finalTerm(), nil
}

// apply fires a matched rule: it evaluates the compiled RHS against the
// redex and prunes the configuration stack back to the configuration where
// the rule's first symbol was observed.
func (r *Rewriter) apply(cs *configStack, leaf int, ann automaton.MatchAnnouncement) error {
	cr := r.compiled[ann.RuleIndex]
	redex := atPosition(cs.terms[leaf], ann.Position)
	newSubterm, err := cr.EvaluateRHS(cs.h, r.b, redex)
	if err != nil {
		return errors.Wrapf(err, "rewrite: firing rule %s", cr.Rule.Name)
	}
	r.stats.RewriteSteps++
	cs.prune(leaf-ann.SymbolsSeen, newSubterm)
	return nil
}

// conditionsHold evaluates every side condition of cr against redex: both
// sides are instantiated, compared, and — when that alone does not settle
// the condition — recursively normalized (spec §4.E "Conditions are
// evaluated by recursive normalization of both sides").
func (r *Rewriter) conditionsHold(h *term.ThreadID, live *liveSet, cr *CompiledRule, redex *term.SharedTerm) (bool, error) {
	for i, cond := range cr.conds {
		lhs, rhs, err := cr.evaluateCondition(h, r.b, i, redex)
		if err != nil {
			return false, err
		}
		live.Add(lhs)
		live.Add(rhs)

		if cond.equal && lhs == rhs {
			continue
		}
		lhsNormal, err := r.Normalize(h, lhs)
		if err != nil {
			return false, err
		}
		live.Add(lhsNormal)
		rhsNormal, err := r.Normalize(h, rhs)
		if err != nil {
			return false, err
		}
		live.Add(rhsNormal)

		equal := lhsNormal == rhsNormal
		if equal != cond.equal {
			return false, nil
		}
	}
	return true, nil
}

// equivalenceClassesHold checks that all LHS positions bound to one
// variable carry pointer-equal subterms of the redex — exactly semantic
// equality, thanks to maximal sharing (spec §4.E "Non-linearity").
func equivalenceClassesHold(redex *term.SharedTerm, classes [][]automaton.Position) bool {
	for _, class := range classes {
		first := atPosition(redex, class[0])
		for _, pos := range class[1:] {
			if atPosition(redex, pos) != first {
				return false
			}
		}
	}
	return true
}

// substituteAt rebuilds t with the subterm at pos replaced by sub,
// re-interning along the spine. Iterative, so the walk is bounded by the
// position's length, never by term depth.
func (r *Rewriter) substituteAt(h *term.ThreadID, live *liveSet, t *term.SharedTerm, pos automaton.Position, sub *term.SharedTerm) *term.SharedTerm {
	if len(pos) == 0 {
		return sub
	}
	spine := make([]*term.SharedTerm, len(pos))
	cur := t
	for i, idx := range pos {
		spine[i] = cur
		cur = cur.Arg(idx - 1)
	}
	out := sub
	for i := len(pos) - 1; i >= 0; i-- {
		parent := spine[i]
		args := make([]*term.SharedTerm, parent.Arity())
		copy(args, parent.Args())
		args[pos[i]-1] = out
		out, _ = r.pool.InternSlice(h, parent.Head(), args)
		live.Add(out)
	}
	return out
}
