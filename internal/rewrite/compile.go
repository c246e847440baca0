// Package rewrite implements Component E: the Sabre rewriter. It drives
// the set automaton (internal/automaton) over a configuration stack to find
// rule matches, and replays each rule's pre-compiled right-hand side on the
// term builder (internal/builder) when a match fires.
package rewrite

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/gitrdm/mucalc-vpg-core/internal/automaton"
	"github.com/gitrdm/mucalc-vpg-core/internal/builder"
	"github.com/gitrdm/mucalc-vpg-core/internal/term"
)

// varRef sources one builder slot from a position of the matched left-hand
// side: at fire time the slot is loaded with the redex's subterm at pos.
type varRef struct {
	pos  automaton.Position
	slot builder.Slot
}

// compiledCondition is one side condition with both sides compiled into
// builder programs over the rule's shared variable slots.
type compiledCondition struct {
	equal      bool
	lhsProgram []builder.Instr
	lhsResult  builder.Slot
	rhsProgram []builder.Instr
	rhsResult  builder.Slot
}

// CompiledRule is a rewrite rule with its RHS (and any condition sides)
// pre-compiled into builder programs, its variables mapped to LHS
// positions, and its delay classification (non-linear / duplicating /
// conditional) precomputed once rather than per firing (spec §4.E "RHS
// evaluation").
type CompiledRule struct {
	Rule        *automaton.Rule
	NonLinear   bool
	Duplicating bool
	Conditional bool

	// EquivClasses are the LHS position classes bound to one variable,
	// kept only for variables occurring more than once; before a
	// non-linear rule fires, all positions of each class must hold
	// pointer-equal subterms.
	EquivClasses [][]automaton.Position

	vars    []varRef
	program []builder.Instr
	result  builder.Slot
	conds   []compiledCondition
	nSlots  int
}

// MustDelay reports whether this rule can never fire the moment it is
// announced: it has conditions, a non-linear LHS, or a duplicating RHS
// (spec §4.E "A rewrite rule is delayed when ...").
func (c *CompiledRule) MustDelay() bool {
	return c.NonLinear || c.Duplicating || c.Conditional
}

// CompileRule compiles rule for the rewriter. Variable slots are assigned
// in sorted name order so compilation is deterministic.
func CompileRule(rule *automaton.Rule) *CompiledRule {
	c := &CompiledRule{
		Rule:        rule,
		NonLinear:   rule.IsNonLinear(),
		Duplicating: rule.IsDuplicating(),
		Conditional: len(rule.Conditions) > 0,
	}
	for _, class := range rule.EquivalenceClasses() {
		if len(class) > 1 {
			c.EquivClasses = append(c.EquivClasses, class)
		}
	}

	byVar := rule.LHS.Variables()
	names := make([]string, 0, len(byVar))
	for name := range byVar {
		names = append(names, name)
	}
	sort.Strings(names)

	varSlot := make(map[string]builder.Slot, len(names))
	next := builder.Slot(0)
	for _, name := range names {
		varSlot[name] = next
		c.vars = append(c.vars, varRef{pos: byVar[name][0], slot: next})
		next++
	}

	c.result = compileExpr(rule.RHS, varSlot, &next, &c.program)
	for _, cond := range rule.Conditions {
		cc := compiledCondition{equal: cond.Equal}
		cc.lhsResult = compileExpr(cond.LHS, varSlot, &next, &cc.lhsProgram)
		cc.rhsResult = compileExpr(cond.RHS, varSlot, &next, &cc.rhsProgram)
		c.conds = append(c.conds, cc)
	}
	c.nSlots = int(next)
	return c
}

// compileExpr emits instructions that leave p's value in a slot, returning
// that slot. Variables resolve to their pre-assigned slot (loaded from the
// redex before the program runs); applications recurse post-order so every
// child slot exists before the Construct that consumes it.
func compileExpr(p *automaton.Pattern, varSlot map[string]builder.Slot, next *builder.Slot, program *[]builder.Instr) builder.Slot {
	if p.Kind == automaton.PatternVar {
		return varSlot[p.Var]
	}
	args := make([]builder.Slot, len(p.Args))
	for i, a := range p.Args {
		args[i] = compileExpr(a, varSlot, next, program)
	}
	result := *next
	*next++
	*program = append(*program, builder.Construct(p.Head, args, result))
	return result
}

// bindVars loads every LHS variable's slot from the corresponding position
// of the redex.
func (c *CompiledRule) bindVars(b *builder.Builder, redex *term.SharedTerm) {
	for _, vr := range c.vars {
		b.Set(vr.slot, atPosition(redex, vr.pos))
	}
}

// EvaluateRHS builds the rule's right-hand side instance for redex.
func (c *CompiledRule) EvaluateRHS(h *term.ThreadID, b *builder.Builder, redex *term.SharedTerm) (*term.SharedTerm, error) {
	b.Reset()
	c.bindVars(b, redex)
	program := append(append([]builder.Instr(nil), c.program...), builder.Return(c.result))
	t, err := b.Run(h, nil, program)
	if err != nil {
		return nil, errors.Wrapf(err, "rewrite: evaluating RHS of %s", c.Rule.Name)
	}
	return t, nil
}

// evaluateCondition builds both sides of condition i for redex.
func (c *CompiledRule) evaluateCondition(h *term.ThreadID, b *builder.Builder, i int, redex *term.SharedTerm) (lhs, rhs *term.SharedTerm, err error) {
	cc := c.conds[i]

	b.Reset()
	c.bindVars(b, redex)
	lhsProg := append(append([]builder.Instr(nil), cc.lhsProgram...), builder.Return(cc.lhsResult))
	lhs, err = b.Run(h, nil, lhsProg)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "rewrite: evaluating condition LHS of %s", c.Rule.Name)
	}

	b.Reset()
	c.bindVars(b, redex)
	rhsProg := append(append([]builder.Instr(nil), cc.rhsProgram...), builder.Return(cc.rhsResult))
	rhs, err = b.Run(h, nil, rhsProg)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "rewrite: evaluating condition RHS of %s", c.Rule.Name)
	}
	return lhs, rhs, nil
}

// atPosition walks t down a path of 1-based argument indices.
func atPosition(t *term.SharedTerm, pos automaton.Position) *term.SharedTerm {
	for _, i := range pos {
		t = t.Arg(i - 1)
	}
	return t
}
