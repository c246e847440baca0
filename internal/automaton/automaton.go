// Package automaton implements Component D: the set automaton compiled
// from a rewrite rule set, a transducer from symbol observations to rule
// match announcements.
//
// A state carries the position it observes next and a set of match goals;
// observing a head symbol partitions the goals into completed (announced),
// discarded, reduced, and unchanged classes, and the surviving goals are
// split by greatest common prefix of their positions into one destination
// per partition. Argument positions no partition covers get fresh match
// attempts, either folded into a comparable partition or sent to the start
// state. In APMA mode the position is never deepened and every transition
// has at most a single destination, so matches are only ever found at the
// root.
package automaton

import (
	"sort"
	"strconv"
	"strings"

	"github.com/gitrdm/mucalc-vpg-core/internal/logging"
	"github.com/gitrdm/mucalc-vpg-core/internal/term"
)

// MatchAnnouncement is a rule match ready to fire: RuleIndex names the rule
// (into Automaton.Rules), Position is where its left-hand side matched
// relative to the configuration that observes the transition, and
// SymbolsSeen counts the observations consumed since the rule's first
// symbol — the rewriter prunes its configuration stack back by exactly that
// many entries when the rule fires.
type MatchAnnouncement struct {
	RuleIndex   int
	Position    Position
	SymbolsSeen int
}

// MatchObligation is an outstanding requirement of a match goal: Pattern
// must still be shown to match at Pos.
type MatchObligation struct {
	Pattern *Pattern
	Pos     Position
}

// MatchGoal is one rule being matched: the announcement to emit once every
// obligation is discharged, plus the obligations themselves.
type MatchGoal struct {
	Announcement MatchAnnouncement
	Obligations  []MatchObligation
}

// Destination is one endpoint of a (hyper)transition: descend by Pos
// relative to the current configuration and continue in State.
type Destination struct {
	Pos   Position
	State int
}

// Transition is the derivative of a state for one observed head symbol.
// Announcements are sorted by match position, shallowest first, so
// outermost-match selection is deterministic.
type Transition struct {
	Symbol        *term.Symbol
	Announcements []MatchAnnouncement
	Destinations  []Destination
}

// State is a set-automaton state: Label is the position observed next,
// relative to the configuration's subterm.
type State struct {
	Label Position
	Goals []MatchGoal
}

type transKey struct {
	state int
	sym   uint32
}

// Automaton is the compiled set automaton. State 0 is the start state.
type Automaton struct {
	Rules  []*Rule
	States []State

	// APMA reports the construction mode: true means root-only matching
	// with no position deepening (spec §3.6's second mode).
	APMA bool

	transitions map[transKey]*Transition
	symbols     []*term.Symbol
}

// Compile builds the full set automaton for rules. Rules that are not
// first-order, or whose left-hand side is a bare variable, are discarded
// with a logged warning.
func Compile(rules []*Rule) *Automaton { return compile(rules, false) }

// CompileAPMA builds the root-only adaptive pattern matching automaton:
// transitions never deepen the position and have a single destination, so
// announcements only ever concern the root of the observed term.
func CompileAPMA(rules []*Rule) *Automaton { return compile(rules, true) }

// Lookup returns the transition of state on head symbol sym, or nil when
// sym never occurs in any surviving rule — in which case no rule can begin
// or continue matching here and the caller should treat the subterm's root
// as inert.
func (a *Automaton) Lookup(state int, sym *term.Symbol) *Transition {
	return a.transitions[transKey{state: state, sym: sym.Index()}]
}

// TraceContainer marks every function symbol referenced by the compiled
// rule set, so a rewriter holding this automaton can register it as a GC
// container root (the automaton holds symbols only, never terms).
func (a *Automaton) TraceContainer(_ func(*term.SharedTerm), markSymbol func(*term.Symbol)) {
	for _, s := range a.symbols {
		markSymbol(s)
	}
}

func compile(rules []*Rule, apma bool) *Automaton {
	kept := make([]*Rule, 0, len(rules))
	for _, r := range rules {
		if !r.LHS.IsFirstOrder() || r.LHS.Kind != PatternApp {
			logging.S().Warnw("automaton: discarding unsupported rule", "rule", r.Name)
			continue
		}
		kept = append(kept, r)
	}

	a := &Automaton{
		Rules:       kept,
		APMA:        apma,
		transitions: make(map[transKey]*Transition),
	}
	a.symbols = collectSymbols(kept)

	initial := make([]MatchGoal, len(kept))
	for i, r := range kept {
		initial[i] = MatchGoal{
			Announcement: MatchAnnouncement{RuleIndex: i},
			Obligations:  []MatchObligation{{Pattern: r.LHS}},
		}
	}
	sortGoals(initial)
	a.States = []State{{Goals: initial}}

	index := map[string]int{goalsKey(initial): 0}
	queue := []int{0}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]

		for _, sym := range a.symbols {
			anns, raws := a.derive(s, sym)
			tr := &Transition{Symbol: sym, Announcements: anns}
			for _, d := range raws {
				if d.initial {
					tr.Destinations = append(tr.Destinations, Destination{Pos: d.pos, State: 0})
					continue
				}
				if len(d.goals) == 0 {
					continue
				}
				key := goalsKey(d.goals)
				idx, ok := index[key]
				if !ok {
					idx = len(a.States)
					a.States = append(a.States, newState(d.goals))
					index[key] = idx
					queue = append(queue, idx)
				}
				tr.Destinations = append(tr.Destinations, Destination{Pos: d.pos, State: idx})
			}
			a.transitions[transKey{state: s, sym: sym.Index()}] = tr
		}
	}

	logging.S().Debugw("automaton: compiled",
		"rules", len(kept), "states", len(a.States), "transitions", len(a.transitions), "apma", apma)
	return a
}

// rawDest is a destination under construction: its goal set has not yet
// been resolved to a state index.
type rawDest struct {
	pos     Position
	goals   []MatchGoal
	initial bool

	// origPos are the partition's positions before prefix stripping,
	// consulted when assigning fresh goals; gcpLen is how much was
	// stripped.
	origPos []Position
	gcpLen  int
}

// derive computes the transition of state s on sym: the completed goals'
// announcements and the destinations carrying the surviving goals.
func (a *Automaton) derive(s int, sym *term.Symbol) ([]MatchAnnouncement, []rawDest) {
	st := &a.States[s]
	label := st.Label
	arity := sym.Arity()

	var completed []MatchAnnouncement
	var carried []MatchGoal

goals:
	for _, g := range st.Goals {
		ob := g.Obligations
		if len(ob) == 1 && ob[0].Pos.Equal(label) && ob[0].Pattern.Head == sym && allVariableArgs(ob[0].Pattern) {
			completed = append(completed, g.Announcement)
			continue
		}
		atLabel := false
		for _, mo := range ob {
			if !mo.Pos.Equal(label) {
				continue
			}
			if mo.Pattern.Head != sym {
				continue goals // discarded: head symbol mismatch at the observed position
			}
			atLabel = true
		}
		if !atLabel {
			// Unchanged: the observation is at a position this goal has no
			// stake in. Symbols seen still advances once the goal has begun
			// reducing (its first obligation is no longer the whole LHS).
			ng := g
			if ng.Obligations[0].Pattern != a.Rules[ng.Announcement.RuleIndex].LHS {
				ng.Announcement.SymbolsSeen++
			}
			carried = append(carried, ng)
			continue
		}
		// Reduced: expand the obligation at the label into one obligation
		// per non-variable argument at the extended position.
		ng := MatchGoal{Announcement: g.Announcement}
		ng.Announcement.SymbolsSeen++
		for _, mo := range ob {
			if mo.Pos.Equal(label) && mo.Pattern.Head == sym {
				for i, child := range mo.Pattern.Args {
					if child.Kind != PatternVar {
						ng.Obligations = append(ng.Obligations, MatchObligation{Pattern: child, Pos: mo.Pos.Extend(i + 1)})
					}
				}
			} else {
				ng.Obligations = append(ng.Obligations, mo)
			}
		}
		sortObligations(ng.Obligations)
		carried = append(carried, ng)
	}

	sort.SliceStable(completed, func(i, j int) bool {
		if c := completed[i].Position.Compare(completed[j].Position); c != 0 {
			return c < 0
		}
		return completed[i].RuleIndex < completed[j].RuleIndex
	})

	var dests []rawDest
	if a.APMA {
		if len(carried) > 0 {
			sortGoals(carried)
			dests = append(dests, rawDest{goals: carried})
		}
	} else {
		for _, p := range partitionGoals(carried) {
			gcp := p.positions[0]
			for _, q := range p.positions[1:] {
				gcp = commonPrefix(gcp, q)
			}
			dests = append(dests, rawDest{
				pos:     gcp,
				goals:   stripPrefix(p.goals, len(gcp)),
				origPos: p.positions,
				gcpLen:  len(gcp),
			})
		}

		// Fresh match attempts at every argument position of the observed
		// symbol: fold into a comparable partition, or start over at the
		// initial state.
		for i := 1; i <= arity; i++ {
			pos := label.Extend(i)
			k := -1
		search:
			for j := range dests {
				for _, pp := range dests[j].origPos {
					if pp.Comparable(pos) {
						k = j
						break search
					}
				}
			}
			if k < 0 {
				dests = append(dests, rawDest{pos: pos, initial: true})
				continue
			}
			sub := append(Position{}, pos[dests[k].gcpLen:]...)
			for ri, r := range a.Rules {
				dests[k].goals = append(dests[k].goals, MatchGoal{
					Announcement: MatchAnnouncement{RuleIndex: ri, Position: sub},
					Obligations:  []MatchObligation{{Pattern: r.LHS, Pos: sub}},
				})
			}
		}
		for i := range dests {
			if !dests[i].initial {
				sortGoals(dests[i].goals)
			}
		}
	}

	sort.SliceStable(dests, func(i, j int) bool { return dests[i].pos.Compare(dests[j].pos) < 0 })
	return completed, dests
}

// goalPartition is a comparability class of goals: every position of every
// goal shares a root-to-leaf path with some position of another goal in the
// class.
type goalPartition struct {
	goals     []MatchGoal
	positions []Position
}

func goalPositions(g MatchGoal) []Position {
	out := make([]Position, 0, len(g.Obligations)+1)
	out = append(out, g.Announcement.Position)
	for _, mo := range g.Obligations {
		out = append(out, mo.Pos)
	}
	return out
}

func partitionGoals(goals []MatchGoal) []goalPartition {
	n := len(goals)
	if n == 0 {
		return nil
	}
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	pos := make([][]Position, n)
	for i := range goals {
		pos[i] = goalPositions(goals[i])
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if find(i) == find(j) {
				continue
			}
		pairs:
			for _, p := range pos[i] {
				for _, q := range pos[j] {
					if p.Comparable(q) {
						parent[find(j)] = find(i)
						break pairs
					}
				}
			}
		}
	}

	byRoot := make(map[int]*goalPartition)
	order := make([]int, 0, n)
	for i := range goals {
		r := find(i)
		part, ok := byRoot[r]
		if !ok {
			part = &goalPartition{}
			byRoot[r] = part
			order = append(order, r)
		}
		part.goals = append(part.goals, goals[i])
		part.positions = append(part.positions, pos[i]...)
	}
	out := make([]goalPartition, 0, len(order))
	for _, r := range order {
		out = append(out, *byRoot[r])
	}
	return out
}

// stripPrefix removes the first n indices from every position (obligations
// and announcement alike) of every goal, re-rooting the partition at its
// greatest common prefix.
func stripPrefix(goals []MatchGoal, n int) []MatchGoal {
	if n == 0 {
		return goals
	}
	out := make([]MatchGoal, len(goals))
	for i, g := range goals {
		ng := MatchGoal{Announcement: g.Announcement}
		ng.Announcement.Position = append(Position{}, g.Announcement.Position[n:]...)
		ng.Obligations = make([]MatchObligation, len(g.Obligations))
		for j, mo := range g.Obligations {
			ng.Obligations[j] = MatchObligation{Pattern: mo.Pattern, Pos: append(Position{}, mo.Pos[n:]...)}
		}
		out[i] = ng
	}
	return out
}

// newState labels a goal set with the position it observes next: the least
// obligation position of a root goal (a goal whose announcement is at the
// state's own root). After prefix stripping a root goal always exists.
func newState(goals []MatchGoal) State {
	var label Position
	found := false
	for _, g := range goals {
		if len(g.Announcement.Position) != 0 {
			continue
		}
		for _, mo := range g.Obligations {
			if !found || mo.Pos.Compare(label) < 0 {
				label = mo.Pos
				found = true
			}
		}
	}
	if !found {
		for _, g := range goals {
			for _, mo := range g.Obligations {
				if !found || mo.Pos.Compare(label) < 0 {
					label = mo.Pos
					found = true
				}
			}
		}
	}
	return State{Label: label, Goals: goals}
}

func allVariableArgs(p *Pattern) bool {
	for _, a := range p.Args {
		if a.Kind != PatternVar {
			return false
		}
	}
	return true
}

// collectSymbols gathers every function symbol occurring in the rules'
// left-hand sides, right-hand sides and conditions, ordered by symbol
// index so construction is deterministic for a fixed symbol ordering.
func collectSymbols(rules []*Rule) []*term.Symbol {
	seen := make(map[uint32]*term.Symbol)
	var walk func(p *Pattern)
	walk = func(p *Pattern) {
		if p == nil || p.Kind != PatternApp {
			return
		}
		seen[p.Head.Index()] = p.Head
		for _, a := range p.Args {
			walk(a)
		}
	}
	for _, r := range rules {
		walk(r.LHS)
		walk(r.RHS)
		for _, c := range r.Conditions {
			walk(c.LHS)
			walk(c.RHS)
		}
	}
	out := make([]*term.Symbol, 0, len(seen))
	for _, s := range seen {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index() < out[j].Index() })
	return out
}

// --- canonicalization ---

// goalsKey serializes a sorted goal set into the map key used to merge
// states with identical goals.
func goalsKey(goals []MatchGoal) string {
	var b strings.Builder
	for _, g := range goals {
		b.WriteString(goalKey(g))
		b.WriteByte('\n')
	}
	return b.String()
}

func goalKey(g MatchGoal) string {
	var b strings.Builder
	b.WriteString("r")
	b.WriteString(strconv.Itoa(g.Announcement.RuleIndex))
	b.WriteString("@")
	b.WriteString(g.Announcement.Position.String())
	b.WriteString("#")
	b.WriteString(strconv.Itoa(g.Announcement.SymbolsSeen))
	for _, mo := range g.Obligations {
		b.WriteString("|")
		b.WriteString(patternKey(mo.Pattern))
		b.WriteString("@")
		b.WriteString(mo.Pos.String())
	}
	return b.String()
}

func patternKey(p *Pattern) string {
	if p.Kind == PatternVar {
		return "v:" + p.Var
	}
	var b strings.Builder
	b.WriteString("f")
	b.WriteString(strconv.FormatUint(uint64(p.Head.Index()), 10))
	if len(p.Args) > 0 {
		b.WriteString("(")
		for i, a := range p.Args {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(patternKey(a))
		}
		b.WriteString(")")
	}
	return b.String()
}

func sortGoals(goals []MatchGoal) {
	sort.Slice(goals, func(i, j int) bool { return goalKey(goals[i]) < goalKey(goals[j]) })
}

func sortObligations(obs []MatchObligation) {
	sort.SliceStable(obs, func(i, j int) bool {
		if len(obs[i].Pos) != len(obs[j].Pos) {
			return len(obs[i].Pos) < len(obs[j].Pos)
		}
		return obs[i].Pos.Compare(obs[j].Pos) < 0
	})
}
