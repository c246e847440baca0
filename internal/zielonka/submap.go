// Package zielonka implements Component G: the Zielonka family solver
// lifted to BDD submaps, its attractor fixpoint, left-optimized variant,
// and the product variant that cross-checks against plain per-minterm
// Zielonka solves.
//
// Grounded on spec §4.G directly — no repo in the retrieval pack solves
// parity games — with the attractor's work-queue-plus-bitmap shape
// borrowed from internal/term's GC mark bitmap idiom
// (github.com/bits-and-blooms/bitset), and the product variant's
// concurrency borrowed from internal/workerpool (itself adapted from the
// teacher's internal/parallel.WorkerPool).
package zielonka

import (
	"github.com/dalzilio/rudd"

	"github.com/gitrdm/mucalc-vpg-core/internal/vpg"
)

// Submap is a function V -> BDD: for each vertex, the set of products in
// which that vertex currently belongs to a dominion under construction
// (spec §3.8).
type Submap struct {
	mgr      *vpg.Manager
	vals     []rudd.Node
	nonEmpty int
}

// NewSubmap allocates an all-false submap over n vertices.
func NewSubmap(mgr *vpg.Manager, n int) *Submap {
	vals := make([]rudd.Node, n)
	f := mgr.False()
	for i := range vals {
		vals[i] = f
	}
	return &Submap{mgr: mgr, vals: vals}
}

// FullSubmap allocates a submap where every vertex maps to cfg, the
// starting point for a top-level solve over "every vertex, every product".
func FullSubmap(mgr *vpg.Manager, n int, cfg rudd.Node) *Submap {
	s := NewSubmap(mgr, n)
	for v := 0; v < n; v++ {
		s.Set(v, cfg)
	}
	return s
}

// N returns the number of vertices this submap is defined over.
func (s *Submap) N() int { return len(s.vals) }

// Get returns the BDD currently associated with vertex v.
func (s *Submap) Get(v int) rudd.Node { return s.vals[v] }

// Set assigns vertex v's value, maintaining the non-empty counter.
func (s *Submap) Set(v int, node rudd.Node) {
	wasEmpty := s.mgr.IsFalse(s.vals[v])
	isEmpty := s.mgr.IsFalse(node)
	s.vals[v] = node
	switch {
	case wasEmpty && !isEmpty:
		s.nonEmpty++
	case !wasEmpty && isEmpty:
		s.nonEmpty--
	}
}

// IsEmpty reports whether every vertex maps to False.
func (s *Submap) IsEmpty() bool { return s.nonEmpty == 0 }

// Clone returns an independent copy.
func (s *Submap) Clone() *Submap {
	out := NewSubmap(s.mgr, s.N())
	for v := 0; v < s.N(); v++ {
		out.Set(v, s.vals[v])
	}
	return out
}

// Or returns the pointwise disjunction of s and other.
func (s *Submap) Or(other *Submap) *Submap {
	out := NewSubmap(s.mgr, s.N())
	for v := 0; v < s.N(); v++ {
		out.Set(v, s.mgr.Or(s.Get(v), other.Get(v)))
	}
	return out
}

// And returns the pointwise conjunction of s and other.
func (s *Submap) And(other *Submap) *Submap {
	out := NewSubmap(s.mgr, s.N())
	for v := 0; v < s.N(); v++ {
		out.Set(v, s.mgr.And(s.Get(v), other.Get(v)))
	}
	return out
}

// Diff returns s with other subtracted pointwise (s ∧ ¬other).
func (s *Submap) Diff(other *Submap) *Submap {
	out := NewSubmap(s.mgr, s.N())
	for v := 0; v < s.N(); v++ {
		out.Set(v, s.mgr.Diff(s.Get(v), other.Get(v)))
	}
	return out
}

// DiffSingle subtracts a single BDD from every vertex's value.
func (s *Submap) DiffSingle(bdd rudd.Node) *Submap {
	out := NewSubmap(s.mgr, s.N())
	for v := 0; v < s.N(); v++ {
		out.Set(v, s.mgr.Diff(s.Get(v), bdd))
	}
	return out
}

// RestrictToPriority returns a submap equal to s at vertices whose
// priority equals m and False everywhere else — the μ of spec §4.G step 3.
func (s *Submap) RestrictToPriority(prio []int, m int) *Submap {
	out := NewSubmap(s.mgr, s.N())
	for v := 0; v < s.N(); v++ {
		if prio[v] == m {
			out.Set(v, s.Get(v))
		}
	}
	return out
}

// HighestPriority returns the highest priority occurring (non-falsely) in
// s, and ok=false if s is empty.
func (s *Submap) HighestPriority(prio []int) (int, bool) {
	best := -1
	found := false
	for v := 0; v < s.N(); v++ {
		if s.mgr.IsFalse(s.vals[v]) {
			continue
		}
		if !found || prio[v] > best {
			best = prio[v]
			found = true
		}
	}
	return best, found
}
