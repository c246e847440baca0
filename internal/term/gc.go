package term

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/gitrdm/mucalc-vpg-core/internal/logging"
)

// collect runs one tracing mark-sweep pass. The caller must already hold
// the exclusive lock. Grounded on merc/crates/aterm/src/storage/
// global_aterm_pool.rs's mark-stack collector, generalized to use dense
// bitsets over the arena indices (spec §4.A "Collection").
//
// Phases: clear marks, seed the three built-in symbols (always live),
// trace every registered root source, sweep every unmarked term (running
// its head symbol's deletion hooks first) and every unmarked symbol.
// Symbol references held only by Go code outside the traced roots are not
// seen by the mark phase.
func (p *Pool) collect(h *ThreadID) {
	termCount := len(p.terms)
	symCount := len(p.symbols.slots)

	p.termMarks = bitset.New(uint(termCount))
	p.symMarks = bitset.New(uint(symCount))

	p.symMarks.Set(uint(p.intSym.id))
	p.symMarks.Set(uint(p.listSym.id))
	p.symMarks.Set(uint(p.emptySym.id))

	markTerm := func(t *SharedTerm) { p.markTermRec(t) }
	markSymbol := func(s *Symbol) {
		if s != nil {
			p.symMarks.Set(uint(s.id))
		}
	}

	for _, src := range p.roots {
		src.TraceRoots(markTerm, markSymbol)
	}

	swept := 0
	for id, t := range p.terms {
		if t == nil {
			continue
		}
		if p.termMarks.Test(uint(id)) {
			continue
		}
		for _, hook := range p.hooks[t.head.id] {
			hook(t)
		}
		key := makeKey(t.head, t.args, t.annotation)
		delete(p.table, key)
		p.terms[id] = nil
		p.freeT = append(p.freeT, uint32(id))
		swept++
	}

	symsSwept := 0
	for id, s := range p.symbols.slots {
		if s == nil {
			continue
		}
		if p.symMarks.Test(uint(id)) {
			continue
		}
		delete(p.symbols.byKey, symKey{s.name, s.arity})
		p.symbols.freeSlot(uint32(id))
		symsSwept++
	}

	logging.S().Debugw("term pool collection",
		"terms_swept", swept, "symbols_swept", symsSwept,
		"terms_live", len(p.table), "symbols_live", len(p.symbols.byKey))
}

// markTermRec marks t and every transitively reachable argument. Terms form
// a DAG (never a cycle, since every argument is canonical and older than
// its parent by construction order), so plain recursion cannot loop; very
// deep terms would want an explicit stack, which the builder layer
// (internal/builder) is responsible for avoiding by construction.
func (p *Pool) markTermRec(t *SharedTerm) {
	if t == nil || p.termMarks.Test(uint(t.id)) {
		return
	}
	p.termMarks.Set(uint(t.id))
	p.symMarks.Set(uint(t.head.id))
	for _, a := range t.args {
		p.markTermRec(a)
	}
}
