// Package term implements the maximally-shared, garbage-collected first
// order term pool that every other layer (protection sets, the term
// builder, the set automaton, the Sabre rewriter) is built on.
//
// Grounded on the teacher's (gitrdm/gokanlogic) hash-consing-adjacent
// Term/Var/Pair representation and its recursive-lock-shaped concurrency
// discipline, generalized to the immutable, tracing-GC'd SharedTerm of
// spec.md §3.1 and merc/crates/aterm/src/storage/global_aterm_pool.rs.
package term

import (
	"math"
	"sync/atomic"

	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"

	"github.com/gitrdm/mucalc-vpg-core/internal/logging"
	"github.com/gitrdm/mucalc-vpg-core/internal/xerrors"
)

// DeletionHook is invoked, with the pool's exclusive lock held, once for
// every term about to be swept whose head symbol has a registered hook. It
// may not allocate new terms (spec §4.A).
type DeletionHook func(t *SharedTerm)

// RootSource is implemented by anything the pool must consult during
// tracing GC to find live roots: chiefly a protection set (internal/protect)
// but also any externally owned container registered as markable (spec
// §3.4's "container roots"). The pool depends only on this interface, never
// on the protect package, keeping component A ignorant of component B.
type RootSource interface {
	// TraceRoots calls markTerm for every protected term root, markSymbol
	// for every protected symbol root, and invokes every registered
	// container's own trace callback (which will itself call markTerm /
	// markSymbol for whatever it holds).
	TraceRoots(markTerm func(*SharedTerm), markSymbol func(*Symbol))
}

// Pool is the single process-wide term pool described in spec §4.A. The
// zero value is not usable; construct with New.
type Pool struct {
	lock *recursiveLock

	table map[termKey]*SharedTerm
	terms []*SharedTerm
	freeT []uint32

	symbols *symbolTable

	termMarks *bitset.BitSet
	symMarks  *bitset.BitSet

	hooks map[uint32][]DeletionHook

	roots   map[uint64]RootSource
	rootSeq uint64

	gcEnabled       int32 // atomic bool
	gcCountdownInit int64

	intSym   *Symbol
	listSym  *Symbol
	emptySym *Symbol

	produced int64 // lifetime count of terms ever interned, for stats/tests
}

// Option configures a Pool at construction time, in the style of the
// rudd BDD package's functional options (New(varnum int, options
// ...func(*configs))).
type Option func(*Pool)

// WithGCCountdown sets the number of creations a thread performs before it
// checks whether a collection is due. The teacher-adjacent default (4096)
// balances GC pause frequency against peak memory.
func WithGCCountdown(n int64) Option {
	return func(p *Pool) { p.gcCountdownInit = n }
}

// WithInitialCapacity pre-sizes the term and symbol tables.
func WithInitialCapacity(terms, symbols int) Option {
	return func(p *Pool) {
		p.table = make(map[termKey]*SharedTerm, terms)
		p.terms = make([]*SharedTerm, 0, terms)
		p.symbols = newSymbolTable(symbols)
	}
}

// New constructs a Pool with its three built-in symbols (int, list-cons,
// empty-list) already interned and permanently rooted, per spec §3.1 and
// merc/crates/aterm/src/aterm.rs.
func New(opts ...Option) *Pool {
	p := &Pool{
		lock:            newRecursiveLock(),
		table:           make(map[termKey]*SharedTerm, 1024),
		symbols:         newSymbolTable(),
		hooks:           make(map[uint32][]DeletionHook),
		roots:           make(map[uint64]RootSource),
		gcCountdownInit: 4096,
	}
	for _, o := range opts {
		o(p)
	}
	atomic.StoreInt32(&p.gcEnabled, 1)

	p.intSym, _ = p.symbols.intern("<aterm_int>", 0)
	p.listSym, _ = p.symbols.intern("<list_constructor>", 2)
	p.emptySym, _ = p.symbols.intern("<empty_list>", 0)

	logging.S().Debugw("term pool created", "gc_countdown", p.gcCountdownInit)
	return p
}

// IntSymbol, ListSymbol, EmptySymbol return the pool's built-in symbols.
func (p *Pool) IntSymbol() *Symbol   { return p.intSym }
func (p *Pool) ListSymbol() *Symbol  { return p.listSym }
func (p *Pool) EmptySymbol() *Symbol { return p.emptySym }

// Symbol interns (name, arity), returning the canonical *Symbol and whether
// this call created it.
func (p *Pool) Symbol(h *ThreadID, name string, arity int) (*Symbol, bool) {
	p.lock.RLock(h)
	if sym, ok := p.symbols.byKey[symKey{name, arity}]; ok {
		p.lock.RUnlock(h)
		return sym, false
	}
	p.lock.RUnlock(h)

	p.lock.Lock(h)
	defer p.lock.Unlock(h)
	return p.symbols.intern(name, arity)
}

// FreshSuffix returns the next unique numeric suffix for prefix, for
// fresh-variable generation by layers above the pool.
func (p *Pool) FreshSuffix(h *ThreadID, prefix string) uint64 {
	p.lock.Lock(h)
	defer p.lock.Unlock(h)
	return p.symbols.freshSuffix(prefix)
}

// RegisterDeletionHook installs hook to run, with the exclusive lock held,
// just before any term headed by sym is swept.
func (p *Pool) RegisterDeletionHook(h *ThreadID, sym *Symbol, hook DeletionHook) {
	p.lock.Lock(h)
	defer p.lock.Unlock(h)
	p.hooks[sym.id] = append(p.hooks[sym.id], hook)
}

// EnableGC / DisableGC form the global GC on/off switch (spec §4.A).
func (p *Pool) EnableGC()  { atomic.StoreInt32(&p.gcEnabled, 1) }
func (p *Pool) DisableGC() { atomic.StoreInt32(&p.gcEnabled, 0) }
func (p *Pool) gcIsEnabled() bool { return atomic.LoadInt32(&p.gcEnabled) != 0 }

// Len returns the number of live terms in the pool.
func (p *Pool) Len(h *ThreadID) int {
	p.lock.RLock(h)
	defer p.lock.RUnlock(h)
	return len(p.table)
}

// RegisterRoots adds src as a GC root source and returns a token used to
// deregister it (called by protect.Register / protect.Deregister).
func (p *Pool) RegisterRoots(h *ThreadID, src RootSource) uint64 {
	p.lock.Lock(h)
	defer p.lock.Unlock(h)
	p.rootSeq++
	id := p.rootSeq
	p.roots[id] = src
	return id
}

// DeregisterRoots removes a previously registered root source.
func (p *Pool) DeregisterRoots(h *ThreadID, token uint64) {
	p.lock.Lock(h)
	defer p.lock.Unlock(h)
	delete(p.roots, token)
}

// --- Intern operations (spec §4.A) ---

// InternConstant interns a 0-arity symbol as a term.
func (p *Pool) InternConstant(h *ThreadID, sym *Symbol) (*SharedTerm, bool) {
	if sym.arity != 0 {
		panic(errors.Errorf("term: InternConstant called with non-nullary symbol %s", sym))
	}
	return p.internSlice(h, sym, nil, 0)
}

// InternSlice interns symbol applied to args, whose length must equal the
// symbol's arity.
func (p *Pool) InternSlice(h *ThreadID, sym *Symbol, args []*SharedTerm) (*SharedTerm, bool) {
	if len(args) != sym.arity {
		panic(errors.Errorf("term: arity mismatch interning %s with %d args", sym, len(args)))
	}
	return p.internSlice(h, sym, args, 0)
}

// InternIter interns symbol applied to arguments pulled from next, which is
// called sym.Arity() times. If next returns an error, no term is created
// and the error is propagated; partial arguments gathered so far are
// discarded (they remain in the pool only if some other live term already
// shares them).
func (p *Pool) InternIter(h *ThreadID, sym *Symbol, next func(i int) (*SharedTerm, error)) (*SharedTerm, bool, error) {
	args := make([]*SharedTerm, sym.arity)
	for i := 0; i < sym.arity; i++ {
		a, err := next(i)
		if err != nil {
			return nil, false, errors.Wrap(err, "term: InternIter argument producer failed")
		}
		args[i] = a
	}
	t, inserted := p.internSlice(h, sym, args, 0)
	return t, inserted, nil
}

// InternHeadIter interns symbol applied to head followed by arguments
// pulled from tailNext for positions [1, arity). Used by the rewriter to
// build an application term without materializing the full argument slice
// up front (spec §4.A, "used by the rewriter for efficient application
// building").
func (p *Pool) InternHeadIter(h *ThreadID, sym *Symbol, head *SharedTerm, tailNext func(i int) (*SharedTerm, error)) (*SharedTerm, bool, error) {
	if sym.arity < 1 {
		panic(errors.Errorf("term: InternHeadIter called with nullary symbol %s", sym))
	}
	args := make([]*SharedTerm, sym.arity)
	args[0] = head
	for i := 1; i < sym.arity; i++ {
		a, err := tailNext(i)
		if err != nil {
			return nil, false, errors.Wrap(err, "term: InternHeadIter tail producer failed")
		}
		args[i] = a
	}
	t, inserted := p.internSlice(h, sym, args, 0)
	return t, inserted, nil
}

// InternInt interns a 64-bit integer literal.
func (p *Pool) InternInt(h *ThreadID, value int64) (*SharedTerm, bool) {
	return p.internSlice(h, p.intSym, nil, value)
}

func (p *Pool) internSlice(h *ThreadID, sym *Symbol, args []*SharedTerm, annotation int64) (*SharedTerm, bool) {
	key := makeKey(sym, args, annotation)

	p.lock.RLock(h)
	if t, ok := p.table[key]; ok {
		p.lock.RUnlock(h)
		return t, false
	}
	p.lock.RUnlock(h)

	p.lock.Lock(h)
	defer p.lock.Unlock(h)

	// Re-check under exclusive access: another thread may have inserted
	// this exact term between our shared lookup and taking the lock.
	if t, ok := p.table[key]; ok {
		return t, false
	}

	t := &SharedTerm{head: sym, args: args, annotation: annotation}
	t.id = p.allocTermSlot(t)
	p.table[key] = t
	p.produced++

	p.maybeCollect(h)
	return t, true
}

func (p *Pool) allocTermSlot(t *SharedTerm) uint32 {
	if n := len(p.freeT); n > 0 {
		id := p.freeT[n-1]
		p.freeT = p.freeT[:n-1]
		p.terms[id] = t
		return id
	}
	if len(p.terms) >= math.MaxUint32 {
		panic(&xerrors.AllocPanic{Requested: len(p.terms) + 1, Reason: "term arena exhausted its uint32 index space"})
	}
	id := uint32(len(p.terms))
	p.terms = append(p.terms, t)
	return id
}

// maybeCollect decrements h's creation countdown and triggers a collection
// once it reaches zero and no thread holds a shared slot. Must be called
// with the exclusive lock already held by h. See spec §4.A "Triggering".
func (p *Pool) maybeCollect(h *ThreadID) {
	if !p.gcIsEnabled() {
		return
	}
	if h.countdown == 0 {
		// A fresh ThreadID starts with a full countdown.
		h.countdown = p.gcCountdownInit
	}
	h.countdown--
	if h.countdown > 0 {
		return
	}
	h.countdown = p.gcCountdownInit
	if p.lock.readersActive() {
		// Another thread holds a shared slot; defer to the next countdown
		// expiry rather than stalling this thread.
		return
	}
	p.collectGuarded(h)
}

// TriggerGC forces an immediate collection, for tests and for callers that
// want deterministic GC points (scenario 2 of spec §8).
func (p *Pool) TriggerGC(h *ThreadID) {
	p.lock.Lock(h)
	defer p.lock.Unlock(h)
	p.collectGuarded(h)
}

// collectGuarded runs collect and turns any panic escaping it (e.g. from a
// deletion hook) into a PoisonedLockPanic: per spec §4.A/§7, a panic while
// the exclusive lock is held is a fatal condition, not a recoverable error.
func (p *Pool) collectGuarded(h *ThreadID) {
	defer func() {
		if r := recover(); r != nil {
			panic(&xerrors.PoisonedLockPanic{Cause: r})
		}
	}()
	p.collect(h)
}
