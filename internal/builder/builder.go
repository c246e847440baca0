// Package builder implements Component C: a recursion-free, bottom-up term
// builder used by the rewriter to evaluate a rule's compiled right-hand
// side without risking a Go stack overflow on deeply nested terms.
//
// Grounded on the teacher's (gitrdm/gokanlogic) `internal/parallel.WorkerPool`
// task-queue shape (a slice-backed work list drained by an explicit loop
// rather than recursion) adapted from "queue of goroutine tasks" to "stack
// of build instructions", and on merc/crates/rec-tests' iterative-evaluator
// style referenced by original_source/_INDEX.md for the config-stack /
// term-stack split.
package builder

import (
	"github.com/pkg/errors"

	"github.com/gitrdm/mucalc-vpg-core/internal/term"
)

// Slot indexes into the builder's term stack.
type Slot int

// Op is the tag of a single build instruction (spec §4.C).
type Op int

const (
	// OpConstruct interns Symbol applied to the terms in the Args
	// slots and writes the result to Result.
	OpConstruct Op = iota
	// OpTerm writes a literal term into Result.
	OpTerm
	// OpRewrite normalizes the term currently in Result via a
	// caller-supplied reducer before later instructions consume it.
	// Reserved for rewriter-level evaluation (spec §4.C).
	OpRewrite
	// OpReturn marks the instruction that yields the builder's final
	// result; evaluation stops here.
	OpReturn
)

// Instr is one entry of the config stack.
type Instr struct {
	Op     Op
	Symbol *term.Symbol     // OpConstruct
	Args   []Slot           // OpConstruct: source slots, one per Symbol argument
	Lit    *term.SharedTerm // OpTerm
	Result Slot             // OpConstruct, OpTerm, OpRewrite
}

// Construct returns an instruction that interns sym applied to the terms
// already sitting in args (named by slot, not by stack position — a
// variable bound once can feed more than one Construct, which is exactly
// what a non-linear or duplicating RHS needs) and stores the result in
// result.
func Construct(sym *term.Symbol, args []Slot, result Slot) Instr {
	return Instr{Op: OpConstruct, Symbol: sym, Args: args, Result: result}
}

// Term returns an instruction that writes a literal term into slot.
func Term(t *term.SharedTerm, result Slot) Instr {
	return Instr{Op: OpTerm, Lit: t, Result: result}
}

// Rewrite returns an instruction that asks the evaluator's Reducer to
// normalize the term already written to slot.
func Rewrite(result Slot) Instr {
	return Instr{Op: OpRewrite, Result: result}
}

// Return terminates a program, yielding the term in slot.
func Return(result Slot) Instr {
	return Instr{Op: OpReturn, Result: result}
}

// Reducer normalizes a term to a (possibly identical) result. The rewriter
// supplies its own normalization step here for OpRewrite instructions; a
// builder used outside the rewriter (e.g. in tests) may pass a no-op.
type Reducer func(h *term.ThreadID, t *term.SharedTerm) (*term.SharedTerm, error)

// Builder is a reusable bottom-up term constructor. It owns two stacks: a
// config stack of pending instructions (here, just the remaining program
// slice plus an index) and a term stack of intermediate results, indexed by
// Slot. Both are plain slices so the whole evaluation is loop-driven —
// no Go call stack growth proportional to term depth.
type Builder struct {
	pool   *term.Pool
	slots  []*term.SharedTerm
	args   []*term.SharedTerm // unused: Run allocates a fresh argument slice per Construct
	tracer func(*term.SharedTerm)
}

// New creates a Builder bound to pool with room for n slots.
func New(pool *term.Pool, n int) *Builder {
	return &Builder{pool: pool, slots: make([]*term.SharedTerm, n)}
}

// SetTracer installs a callback invoked for every term a Construct
// instruction interns. The rewriter points it at its live-term container
// root so intermediate results survive a collection that runs mid-program.
func (b *Builder) SetTracer(f func(*term.SharedTerm)) { b.tracer = f }

// Tracer returns the currently installed tracer, or nil.
func (b *Builder) Tracer() func(*term.SharedTerm) { return b.tracer }

// Set pre-loads slot i with a value, used to seed variable bindings sourced
// from the subterm being rewritten before a program runs.
func (b *Builder) Set(i Slot, t *term.SharedTerm) {
	if int(i) >= len(b.slots) {
		grown := make([]*term.SharedTerm, int(i)+1)
		copy(grown, b.slots)
		b.slots = grown
	}
	b.slots[i] = t
}

// Run executes program to completion and returns the term named by the
// first OpReturn instruction encountered. Evaluation is a single forward
// pass over program, addressing the term stack directly by Slot rather
// than by popping — this is what lets a single bound variable feed more
// than one Construct instruction (spec §4.C / §4.E "duplicating rule")
// while the whole evaluation still stays loop-driven, with no Go call
// stack growth proportional to term depth.
func (b *Builder) Run(h *term.ThreadID, reduce Reducer, program []Instr) (*term.SharedTerm, error) {
	for _, in := range program {
		switch in.Op {
		case OpTerm:
			b.Set(in.Result, in.Lit)

		case OpConstruct:
			argsCopy := make([]*term.SharedTerm, len(in.Args))
			for i, s := range in.Args {
				argsCopy[i] = b.slots[s]
			}
			t, _ := b.pool.InternSlice(h, in.Symbol, argsCopy)
			if b.tracer != nil {
				b.tracer(t)
			}
			b.Set(in.Result, t)

		case OpRewrite:
			if reduce == nil {
				return nil, errors.Errorf("builder: OpRewrite with no Reducer installed")
			}
			cur := b.slots[in.Result]
			if cur == nil {
				return nil, errors.Errorf("builder: OpRewrite on empty slot %d", in.Result)
			}
			reduced, err := reduce(h, cur)
			if err != nil {
				return nil, errors.Wrap(err, "builder: reduce failed")
			}
			b.Set(in.Result, reduced)

		case OpReturn:
			v := b.slots[in.Result]
			if v == nil {
				return nil, errors.Errorf("builder: OpReturn on empty slot %d", in.Result)
			}
			return v, nil

		default:
			return nil, errors.Errorf("builder: unknown opcode %d", in.Op)
		}
	}
	return nil, errors.Errorf("builder: program fell off the end without an OpReturn")
}

// Reset clears all slots for reuse, avoiding a fresh allocation per rule
// firing in the rewriter's hot loop.
func (b *Builder) Reset() {
	for i := range b.slots {
		b.slots[i] = nil
	}
}
