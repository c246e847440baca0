// Package vpg implements Component F: the Variability Parity Game
// representation, BDD-guarded edges, totality checking and totalization,
// and the predecessor structure consumed by the Zielonka solver.
//
// Grounded on `github.com/dalzilio/rudd` (retrieved via
// other_examples/manifests/dalzilio-rudd and
// other_examples/9f08b451_dalzilio-rudd__buddy.go.go), the BDD library the
// whole family-solver half of this spec is built on; its public
// constructor `rudd.New(varnum int, options ...func(*configs))` is used
// exactly as the retrieved source shows it, via the functional-options
// idiom also seen in the teacher's `NewDynamicWorkerPoolWithConfig`.
package vpg

import (
	"github.com/dalzilio/rudd"
	"github.com/pkg/errors"
)

// Manager wraps a rudd.BDD with the handful of operations the VPG and
// Zielonka layers need, so call sites never depend on rudd's node-table
// internals directly.
type Manager struct {
	bdd  *rudd.BDD
	vars []string
}

// NewManager creates a BDD manager with one boolean variable per feature
// name, in the given order (spec §3.7 "a list of BDD variables naming the
// features").
func NewManager(features []string) (*Manager, error) {
	b, err := rudd.New(len(features))
	if err != nil {
		return nil, errors.Wrap(err, "vpg: creating BDD manager")
	}
	return &Manager{bdd: b, vars: append([]string(nil), features...)}, nil
}

// Var returns the BDD variable node for the i'th feature (true iff the
// feature is selected).
func (m *Manager) Var(i int) rudd.Node { return m.bdd.Ithvar(i) }

// NotVar returns the negated BDD variable node for the i'th feature.
func (m *Manager) NotVar(i int) rudd.Node { return m.bdd.NIthvar(i) }

// FeatureIndex returns the index of a named feature, or -1 if unknown.
func (m *Manager) FeatureIndex(name string) int {
	for i, v := range m.vars {
		if v == name {
			return i
		}
	}
	return -1
}

// Features returns the ordered feature names.
func (m *Manager) Features() []string { return m.vars }

func (m *Manager) True() rudd.Node  { return m.bdd.True() }
func (m *Manager) False() rudd.Node { return m.bdd.False() }

func (m *Manager) And(a, b rudd.Node) rudd.Node { return m.bdd.And(a, b) }
func (m *Manager) Or(a, b rudd.Node) rudd.Node  { return m.bdd.Or(a, b) }
func (m *Manager) Not(a rudd.Node) rudd.Node    { return m.bdd.Not(a) }

// Diff computes a ∧ ¬b, used pervasively by the attractor and totalization
// (spec §4.F "guarded by the configuration minus the existing disjunction").
func (m *Manager) Diff(a, b rudd.Node) rudd.Node {
	return m.bdd.And(a, m.bdd.Not(b))
}

// Equal reports semantic (not pointer) BDD equality.
func (m *Manager) Equal(a, b rudd.Node) bool { return m.bdd.Equiv(a, b) == m.bdd.True() }

// IsFalse reports whether a is the constant-false BDD.
func (m *Manager) IsFalse(a rudd.Node) bool { return a == m.bdd.False() }

// Minterms enumerates the satisfying assignments of cfg as bitsets over
// the manager's feature indices, each bit set meaning "feature selected".
// Used by the Zielonka product variant (spec §4.G) to enumerate concrete
// products. A thin, BDD-implementation-agnostic approach: recursive
// restriction by feature index using And/Not, terminating at True/False.
func (m *Manager) Minterms(cfg rudd.Node) []uint64 {
	if len(m.vars) > 63 {
		panic(errors.Errorf("vpg: Minterms supports at most 63 features, got %d", len(m.vars)))
	}
	var out []uint64
	var walk func(node rudd.Node, i int, acc uint64)
	walk = func(node rudd.Node, i int, acc uint64) {
		if m.IsFalse(node) {
			return
		}
		if i == len(m.vars) {
			out = append(out, acc)
			return
		}
		pos := m.And(node, m.Var(i))
		if !m.IsFalse(pos) {
			walk(pos, i+1, acc|(uint64(1)<<uint(i)))
		}
		neg := m.And(node, m.NotVar(i))
		if !m.IsFalse(neg) {
			walk(neg, i+1, acc)
		}
	}
	walk(cfg, 0, 0)
	return out
}

// MintermNode builds the BDD for a single minterm produced by Minterms.
func (m *Manager) MintermNode(minterm uint64) rudd.Node {
	n := m.True()
	for i := range m.vars {
		if minterm&(uint64(1)<<uint(i)) != 0 {
			n = m.And(n, m.Var(i))
		} else {
			n = m.And(n, m.NotVar(i))
		}
	}
	return n
}
