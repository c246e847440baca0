// Package protect implements Component B: per-thread protection sets that
// guard terms and symbols from garbage collection, plus the thread registry
// and sendable-root cross-thread handoff mechanism of spec.md §4.B.
//
// Grounded on the teacher's (gitrdm/gokanlogic) goroutine-safe Substitution
// (`pkg/minikanren/core.go`, a `sync.RWMutex`-guarded map indexed by
// variable id) generalized from "bindings indexed by variable id" to "roots
// indexed by protection-set slot", and on
// merc/crates/aterm/src/storage/thread_term_pool.rs's per-thread protection
// set / container-root design (via original_source/_INDEX.md).
package protect

import (
	"context"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/gitrdm/mucalc-vpg-core/internal/term"
)

// ContainerRoot is implemented by externally owned mutable structures (the
// rewriter's live-term set, the set automaton) that hold term
// or symbol references the GC must trace but that are not simple slots.
type ContainerRoot interface {
	// TraceContainer invokes markTerm/markSymbol for every reference this
	// container currently holds.
	TraceContainer(markTerm func(*term.SharedTerm), markSymbol func(*term.Symbol))
}

// ProtectionIndex is an opaque slot handle into one of a ProtectionSet's
// three parallel sub-sets.
type ProtectionIndex uint32

// TermRoot is a protected term reference bound to the protection set that
// created it. It must not be used from any other goroutine; for cross-
// thread handoff see Sendable.
type TermRoot struct {
	set *ProtectionSet
	idx ProtectionIndex
}

// Get dereferences the root to its current term.
func (r TermRoot) Get() *term.SharedTerm {
	return r.set.termSlots[r.idx]
}

// Drop releases the root's slot. The root must not be used afterward.
func (r TermRoot) Drop() {
	r.set.dropTerm(r.idx)
}

// Replace swaps the root's target in place without changing its slot
// identity, per spec §4.B "Replace" (used by the rewriter's rewrite-and-
// prune step to update a live root to its reduct).
func (r TermRoot) Replace(newTarget *term.SharedTerm) {
	r.set.replaceTerm(r.idx, newTarget)
}

// SymbolRoot is the symbol analogue of TermRoot.
type SymbolRoot struct {
	set *ProtectionSet
	idx ProtectionIndex
}

// Get dereferences the root to its current symbol.
func (r SymbolRoot) Get() *term.Symbol {
	return r.set.symSlots[r.idx]
}

// Drop releases the root's slot.
func (r SymbolRoot) Drop() {
	r.set.dropSymbol(r.idx)
}

// ProtectionSet is the per-thread (per-registered-goroutine) root set of
// spec §3.4: three parallel slotted sub-sets (term roots, symbol roots,
// container roots), each with free-list slot reuse.
type ProtectionSet struct {
	pool *term.Pool
	h    *term.ThreadID

	mu sync.Mutex // guards this set's own slot bookkeeping only

	termSlots []*term.SharedTerm
	termFree  []ProtectionIndex

	symSlots []*term.Symbol
	symFree  []ProtectionIndex

	containers     map[ProtectionIndex]ContainerRoot
	containerFree  []ProtectionIndex
	containerNextID ProtectionIndex

	rootToken uint64
}

// newProtectionSet allocates an empty set for the given thread handle and
// registers it with pool as a term.RootSource.
func newProtectionSet(pool *term.Pool, h *term.ThreadID) *ProtectionSet {
	ps := &ProtectionSet{
		pool:       pool,
		h:          h,
		containers: make(map[ProtectionIndex]ContainerRoot),
	}
	ps.rootToken = pool.RegisterRoots(h, ps)
	return ps
}

// TraceRoots implements term.RootSource: marks every slot in all three
// sub-sets. Called by the pool during collection, with the pool's exclusive
// lock held by the collecting thread (which may not be this set's owner —
// GC may run on any thread that happens to trip the countdown, per spec
// §4.A "Triggering").
func (ps *ProtectionSet) TraceRoots(markTerm func(*term.SharedTerm), markSymbol func(*term.Symbol)) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	for _, t := range ps.termSlots {
		if t != nil {
			markTerm(t)
		}
	}
	for _, s := range ps.symSlots {
		if s != nil {
			markSymbol(s)
		}
	}
	for _, c := range ps.containers {
		c.TraceContainer(markTerm, markSymbol)
	}
}

// Protect inserts ref into the set under a fresh (or reused) slot and
// returns the resulting root. O(1) amortized, per spec §4.B.
func (ps *ProtectionSet) Protect(ref *term.SharedTerm) TermRoot {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if n := len(ps.termFree); n > 0 {
		idx := ps.termFree[n-1]
		ps.termFree = ps.termFree[:n-1]
		ps.termSlots[idx] = ref
		return TermRoot{set: ps, idx: idx}
	}
	idx := ProtectionIndex(len(ps.termSlots))
	ps.termSlots = append(ps.termSlots, ref)
	return TermRoot{set: ps, idx: idx}
}

// ProtectSymbol is the symbol analogue of Protect.
func (ps *ProtectionSet) ProtectSymbol(ref *term.Symbol) SymbolRoot {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if n := len(ps.symFree); n > 0 {
		idx := ps.symFree[n-1]
		ps.symFree = ps.symFree[:n-1]
		ps.symSlots[idx] = ref
		return SymbolRoot{set: ps, idx: idx}
	}
	idx := ProtectionIndex(len(ps.symSlots))
	ps.symSlots = append(ps.symSlots, ref)
	return SymbolRoot{set: ps, idx: idx}
}

func (ps *ProtectionSet) dropTerm(idx ProtectionIndex) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.termSlots[idx] = nil
	ps.termFree = append(ps.termFree, idx)
}

func (ps *ProtectionSet) dropSymbol(idx ProtectionIndex) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.symSlots[idx] = nil
	ps.symFree = append(ps.symFree, idx)
}

func (ps *ProtectionSet) replaceTerm(idx ProtectionIndex, newTarget *term.SharedTerm) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.termSlots[idx] = newTarget
}

// RegisterContainer adds c as a markable container root and returns a
// handle used to deregister it. The container is traced on every
// subsequent collection until deregistered.
func (ps *ProtectionSet) RegisterContainer(c ContainerRoot) ProtectionIndex {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if n := len(ps.containerFree); n > 0 {
		idx := ps.containerFree[n-1]
		ps.containerFree = ps.containerFree[:n-1]
		ps.containers[idx] = c
		return idx
	}
	idx := ps.containerNextID
	ps.containerNextID++
	ps.containers[idx] = c
	return idx
}

// DeregisterContainer removes a previously registered container root.
func (ps *ProtectionSet) DeregisterContainer(idx ProtectionIndex) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	delete(ps.containers, idx)
	ps.containerFree = append(ps.containerFree, idx)
}

// Close deregisters this set from the pool's GC root list, per spec §4.B
// "On thread exit the protection set is deregistered". All roots issued
// from it become invalid; terms they protected become eligible for the
// next collection.
func (ps *ProtectionSet) Close() {
	ps.pool.DeregisterRoots(ps.h, ps.rootToken)
}

// Sendable is a protected root that has crossed a goroutine boundary. It
// retains a shared handle to its originating ProtectionSet so Drop is safe
// to call from any goroutine (spec §3.3 "Sendable root", §4.B "Thread
// boundary").
type Sendable struct {
	origin *ProtectionSet
	idx    ProtectionIndex
}

// ToSendable wraps r for cross-thread handoff. The original TermRoot must
// not be used again by the originating goroutine after this call; ownership
// of the slot transfers to the Sendable.
func ToSendable(r TermRoot) Sendable {
	return Sendable{origin: r.set, idx: r.idx}
}

// Get dereferences the sendable root. Safe to call from any goroutine: it
// only reads the slot, guarded by the origin set's own mutex.
func (s Sendable) Get() *term.SharedTerm {
	s.origin.mu.Lock()
	defer s.origin.mu.Unlock()
	return s.origin.termSlots[s.idx]
}

// Drop releases the slot via the origin set's shared handle. Safe to call
// from any goroutine, including one other than the set's owning thread.
func (s Sendable) Drop() {
	s.origin.dropTerm(s.idx)
}

// Reclaim converts a Sendable back into an ordinary TermRoot once control
// returns to the originating goroutine. Calling this from any other
// goroutine violates the thread-boundary invariant and is the caller's
// responsibility to avoid; protect cannot detect goroutine identity.
func (s Sendable) Reclaim() TermRoot {
	return TermRoot{set: s.origin, idx: s.idx}
}

// ThreadPool is the registry of all live protection sets, keyed by the
// term.ThreadID each registrant was issued. Mirrors
// merc/crates/aterm/src/storage/global_aterm_pool.rs's
// `thread_pools: Vec<Option<Arc<UnsafeCell<SharedTermProtection>>>>`.
type ThreadPool struct {
	pool *term.Pool
	sem  *semaphore.Weighted

	mu   sync.Mutex
	sets map[*term.ThreadID]*ProtectionSet
}

// NewThreadPool creates a registry bound to pool, with concurrent
// registrations bounded to runtime.NumCPU() via a weighted semaphore —
// the "thread-pool-style fan-out bounded by runtime.NumCPU()" this
// registry exists to provide (spec §4.B "Registration"). Use
// NewThreadPoolWithCapacity to pick a different bound.
func NewThreadPool(pool *term.Pool) *ThreadPool {
	return NewThreadPoolWithCapacity(pool, runtime.NumCPU())
}

// NewThreadPoolWithCapacity is NewThreadPool with an explicit maximum
// number of simultaneously registered threads.
func NewThreadPoolWithCapacity(pool *term.Pool, capacity int) *ThreadPool {
	if capacity < 1 {
		capacity = 1
	}
	return &ThreadPool{
		pool: pool,
		sem:  semaphore.NewWeighted(int64(capacity)),
		sets: make(map[*term.ThreadID]*ProtectionSet),
	}
}

// Register allocates a fresh ThreadID and its ProtectionSet, and caches
// protected roots to the pool's three built-in symbols for convenient
// access (spec §4.B "Registration"). It blocks until a registration slot
// is free; for cancellable registration use RegisterContext.
func (tp *ThreadPool) Register() (*term.ThreadID, *ProtectionSet, BuiltinSymbols) {
	h, ps, builtins, err := tp.RegisterContext(context.Background())
	if err != nil {
		// context.Background() never cancels or times out.
		panic(errors.Wrap(err, "protect: unreachable semaphore acquire failure"))
	}
	return h, ps, builtins
}

// RegisterContext is Register, bounded by ctx: if the registration slot
// count (runtime.NumCPU() by default) is exhausted and ctx is cancelled or
// its deadline expires first, it returns ctx.Err() instead of blocking
// forever.
func (tp *ThreadPool) RegisterContext(ctx context.Context) (*term.ThreadID, *ProtectionSet, BuiltinSymbols, error) {
	if err := tp.sem.Acquire(ctx, 1); err != nil {
		return nil, nil, BuiltinSymbols{}, err
	}

	h := term.NewThreadID()
	ps := newProtectionSet(tp.pool, h)

	tp.mu.Lock()
	tp.sets[h] = ps
	tp.mu.Unlock()

	builtins := BuiltinSymbols{
		Int:   ps.ProtectSymbol(tp.pool.IntSymbol()),
		List:  ps.ProtectSymbol(tp.pool.ListSymbol()),
		Empty: ps.ProtectSymbol(tp.pool.EmptySymbol()),
	}
	return h, ps, builtins, nil
}

// BuiltinSymbols caches a thread's protected handles to the pool's three
// built-in symbols, so every registered thread can use them without a
// further intern round-trip.
type BuiltinSymbols struct {
	Int   SymbolRoot
	List  SymbolRoot
	Empty SymbolRoot
}

// Deregister closes h's protection set and removes it from the registry.
// Per spec §4.B, terms it protected become eligible for GC at the next
// collection.
func (tp *ThreadPool) Deregister(h *term.ThreadID) error {
	tp.mu.Lock()
	ps, ok := tp.sets[h]
	if ok {
		delete(tp.sets, h)
	}
	tp.mu.Unlock()

	if !ok {
		return errors.Errorf("protect: Deregister called with unregistered thread handle")
	}
	ps.Close()
	tp.sem.Release(1)
	return nil
}

// Count returns the number of currently registered threads, for tests and
// diagnostics.
func (tp *ThreadPool) Count() int {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return len(tp.sets)
}
