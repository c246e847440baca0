package term

import "fmt"

// Symbol is an interned (name, arity) pair. Symbol identity is address
// identity: two calls that intern the same (name, arity) return the same
// *Symbol. The id field is a dense, monotonic index used by the set
// automaton as a perfect hash and by the pool's mark bitmap during GC.
type Symbol struct {
	id    uint32
	name  string
	arity int
}

// Name returns the symbol's name.
func (s *Symbol) Name() string { return s.name }

// Arity returns the symbol's arity.
func (s *Symbol) Arity() int { return s.arity }

// Index returns the symbol's dense perfect-hash index.
func (s *Symbol) Index() uint32 { return s.id }

func (s *Symbol) String() string {
	return fmt.Sprintf("%s/%d", s.name, s.arity)
}

type symKey struct {
	name  string
	arity int
}

// symbolTable is the parallel interning structure for symbols, mirroring
// the term table's hash-consing but keyed on (name, arity) instead of
// (head, args, annotation).
type symbolTable struct {
	byKey      map[symKey]*Symbol
	slots      []*Symbol // dense arena indexed by id; nil means free
	free       []uint32
	prefixSeq  map[string]uint64 // fresh-variable suffix counters, keyed by prefix
}

func newSymbolTable(capacity ...int) *symbolTable {
	n := 0
	if len(capacity) > 0 {
		n = capacity[0]
	}
	return &symbolTable{
		byKey:     make(map[symKey]*Symbol, n),
		slots:     make([]*Symbol, 0, n),
		prefixSeq: make(map[string]uint64),
	}
}

// intern returns the canonical Symbol for (name, arity), allocating a new
// slot if this is the first time it has been seen.
func (t *symbolTable) intern(name string, arity int) (*Symbol, bool) {
	key := symKey{name: name, arity: arity}
	if sym, ok := t.byKey[key]; ok {
		return sym, false
	}
	sym := &Symbol{name: name, arity: arity}
	sym.id = t.allocSlot(sym)
	t.byKey[key] = sym
	return sym, true
}

func (t *symbolTable) allocSlot(sym *Symbol) uint32 {
	if n := len(t.free); n > 0 {
		id := t.free[n-1]
		t.free = t.free[:n-1]
		t.slots[id] = sym
		return id
	}
	id := uint32(len(t.slots))
	t.slots = append(t.slots, sym)
	return id
}

// freeSlot releases the slot for a symbol removed during GC. The id is not
// handed out again, so symbol indices stay monotonic. The byKey entry must
// already have been removed by the caller.
func (t *symbolTable) freeSlot(id uint32) {
	t.slots[id] = nil
}

// freshSuffix returns a monotonic, unique suffix counter for the given
// prefix. Used for fresh-variable generation by data-expression and
// rewriter layers above the pool (spec §6, "symbol-prefix allocator").
func (t *symbolTable) freshSuffix(prefix string) uint64 {
	n := t.prefixSeq[prefix]
	t.prefixSeq[prefix] = n + 1
	return n
}
