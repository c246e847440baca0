package rewrite

import (
	"sync"

	"github.com/gitrdm/mucalc-vpg-core/internal/automaton"
	"github.com/gitrdm/mucalc-vpg-core/internal/term"
)

// config is one entry of the configuration stack: an automaton state plus
// the position delta relative to the parent configuration (nil for the
// root). explored is cleared whenever the configuration's subterm is
// replaced, so it is re-observed.
type config struct {
	state    int
	delta    automaton.Position
	explored bool
}

type sideKind int

const (
	// sideBranch parks the unexplored sibling destinations of a
	// hypertransition.
	sideBranch sideKind = iota
	// sideDelayedRule parks a duplicating rule until the subterms it would
	// copy are in normal form.
	sideDelayedRule
	// sideConditionCheck parks a conditional or non-linear rule until its
	// equivalence classes and conditions can be checked on normal forms.
	sideConditionCheck
)

// sideEntry is one record of the side stack, tied to the configuration it
// was discovered at.
type sideEntry struct {
	config   int
	kind     sideKind
	branches []automaton.Destination
	ann      automaton.MatchAnnouncement
}

// configStack is the linearized configuration tree of spec §4.E: a stack of
// configurations, a parallel vector of subterms that is only guaranteed
// current at the top (oldestReliable marks how far up the reliable zone
// reaches), and the side stack of pending branches and delayed rules.
type configStack struct {
	rw   *Rewriter
	h    *term.ThreadID
	live *liveSet

	stack []config
	terms []*term.SharedTerm
	side  []sideEntry

	// current is the index of the leaf being explored, -1 once the tree is
	// exhausted.
	current int

	// oldestReliable is the shallowest index whose stored subterm is up to
	// date; everything at or below it is reliable, everything above may be
	// stale until integrated.
	oldestReliable int
}

func newConfigStack(rw *Rewriter, h *term.ThreadID, live *liveSet, t *term.SharedTerm) *configStack {
	cs := &configStack{rw: rw, h: h, live: live}
	cs.stack = append(cs.stack, config{state: 0})
	cs.terms = append(cs.terms, t)
	return cs
}

// popSideFor pops and returns the topmost side entry if it belongs to the
// given leaf.
func (cs *configStack) popSideFor(leaf int) (sideEntry, bool) {
	if n := len(cs.side); n > 0 && cs.side[n-1].config == leaf {
		se := cs.side[n-1]
		cs.side = cs.side[:n-1]
		return se, true
	}
	return sideEntry{}, false
}

// prevWithSide returns the deepest configuration that still has side info,
// or -1 when none remains.
func (cs *configStack) prevWithSide() int {
	if n := len(cs.side); n > 0 {
		return cs.side[n-1].config
	}
	return -1
}

// grow extends configuration c by a hypertransition: the first destination
// becomes the new leaf, the remaining siblings are parked on the side
// stack.
func (cs *configStack) grow(c int, dests []automaton.Destination) {
	first := dests[0]
	if len(dests) > 1 {
		cs.side = append(cs.side, sideEntry{config: c, kind: sideBranch, branches: dests[1:]})
	}
	cs.stack = append(cs.stack, config{state: first.State, delta: first.Pos})
	cs.terms = append(cs.terms, atPosition(cs.terms[c], first.Pos))
	cs.current = c + 1
}

// prune rolls the stack back to the configuration where the fired rule's
// first symbol was observed, substitutes the contractum there (at that
// state's label position), and re-opens the configuration for observation.
func (cs *configStack) prune(depth int, newSubterm *term.SharedTerm) {
	cs.current = depth
	cs.stack = cs.stack[:depth+1]
	cs.terms = cs.terms[:depth+1]
	cs.rollBackSide(depth, true)

	label := cs.rw.auto.States[cs.stack[depth].state].Label
	cs.terms[depth] = cs.rw.substituteAt(cs.h, cs.live, cs.terms[depth], label, newSubterm)
	cs.oldestReliable = depth
	cs.stack[depth].explored = false
}

// jumpBack returns to an ancestor configuration after a subtree has been
// exhausted, propagating the normalized subterms up the path being
// restored.
func (cs *configStack) jumpBack(depth int) {
	cs.integrate(depth, true)
	cs.current = depth
	cs.stack = cs.stack[:depth+1]
	cs.terms = cs.terms[:depth+1]
	cs.rollBackSide(depth, false)
}

// rollBackSide discards side info for configurations beyond end; when
// including is true, entries at end itself are discarded too.
func (cs *configStack) rollBackSide(end int, including bool) {
	for n := len(cs.side); n > 0; n = len(cs.side) {
		c := cs.side[n-1].config
		if c < end || (c == end && !including) {
			break
		}
		cs.side = cs.side[:n-1]
	}
}

// integrate makes the subterm stored at end current by re-substituting the
// reliable subterm upward along each configuration's position delta.
// Descending invalidates the entries below the new top; this is the
// matching re-population on the way back up.
func (cs *configStack) integrate(end int, storeIntermediate bool) {
	upToDate := cs.oldestReliable
	if upToDate == 0 || end >= upToDate {
		return
	}
	sub := cs.terms[upToDate]
	for upToDate > end {
		if d := cs.stack[upToDate].delta; len(d) > 0 {
			sub = cs.rw.substituteAt(cs.h, cs.live, cs.terms[upToDate-1], d, sub)
		}
		upToDate--
		if storeIntermediate {
			cs.terms[upToDate] = sub
		}
	}
	cs.oldestReliable = upToDate
	cs.terms[upToDate] = sub
}

// finalTerm integrates everything back into the root configuration and
// returns the normal form.
func (cs *configStack) finalTerm() *term.SharedTerm {
	cs.jumpBack(0)
	return cs.terms[0]
}

// liveSet is the rewriter's markable container root (spec §3.4, §9): an
// append-only record of every term the rewriter has materialized during
// one normalization, traced during GC so none of them can be swept while
// the configuration stack still refers to them. Appends race only with the
// GC's trace, so a plain mutex suffices.
type liveSet struct {
	mu    sync.Mutex
	terms []*term.SharedTerm
}

func newLiveSet(roots ...*term.SharedTerm) *liveSet {
	return &liveSet{terms: roots}
}

// Add records a term as live for the remainder of the normalization.
func (l *liveSet) Add(t *term.SharedTerm) {
	l.mu.Lock()
	l.terms = append(l.terms, t)
	l.mu.Unlock()
}

// TraceContainer implements protect.ContainerRoot.
func (l *liveSet) TraceContainer(markTerm func(*term.SharedTerm), _ func(*term.Symbol)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.terms {
		markTerm(t)
	}
}
