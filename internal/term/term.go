package term

import (
	"encoding/binary"
	"fmt"
	"unsafe"
)

// SharedTerm is an immutable, hash-consed cell: a head symbol, an argument
// vector, and an optional 64-bit annotation. The pool guarantees maximal
// sharing — at most one SharedTerm exists per equivalence class of (head,
// args, annotation), so equality between two references reduces to pointer
// identity. Arguments are themselves SharedTerm pointers into the same
// pool; because children are always canonical, structural equality of a
// candidate term's arguments is just pointer equality, never deep
// comparison.
type SharedTerm struct {
	id         uint32
	head       *Symbol
	args       []*SharedTerm
	annotation int64
}

// Head returns the term's head symbol.
func (t *SharedTerm) Head() *Symbol { return t.head }

// Arity returns the number of arguments.
func (t *SharedTerm) Arity() int { return len(t.args) }

// Arg returns the i'th argument (0-based).
func (t *SharedTerm) Arg(i int) *SharedTerm { return t.args[i] }

// Args returns the argument vector. Callers must not mutate the returned
// slice; it is shared by every reference to this term.
func (t *SharedTerm) Args() []*SharedTerm { return t.args }

// Annotation returns the term's 64-bit annotation. Only meaningful for int
// terms (head == pool's int symbol); arbitrary for other terms.
func (t *SharedTerm) Annotation() int64 { return t.annotation }

// IsInt reports whether this term is an integer literal.
func (t *SharedTerm) IsInt(intSym *Symbol) bool { return t.head == intSym }

// Index returns the term's dense arena index, used by callers (e.g. the set
// automaton's goal-set canonicalization) that want a cheap integer key for
// a term without hashing its pointer.
func (t *SharedTerm) Index() uint32 { return t.id }

// Equal reports whether two term references denote the same equivalence
// class. Thanks to maximal sharing this is pointer equality, but the method
// exists so callers don't need to remember that invariant.
func (t *SharedTerm) Equal(other *SharedTerm) bool { return t == other }

func (t *SharedTerm) String() string {
	if len(t.args) == 0 {
		if t.head != nil && t.head.arity == 0 && t.annotation != 0 {
			return fmt.Sprintf("%d", t.annotation)
		}
		return t.head.name
	}
	s := t.head.name + "("
	for i, a := range t.args {
		if i > 0 {
			s += ","
		}
		s += a.String()
	}
	return s + ")"
}

// termKey is the hash-consing key. args is a byte string built from the
// raw pointers of the (already-canonical) argument terms: since a child is
// always itself a canonical SharedTerm, its address is a valid stand-in for
// its full structural identity — no recursive comparison is ever needed.
type termKey struct {
	head       *Symbol
	args       string
	annotation int64
}

func argsKey(args []*SharedTerm) string {
	if len(args) == 0 {
		return ""
	}
	buf := make([]byte, 8*len(args))
	for i, a := range args {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(uintptr(unsafe.Pointer(a))))
	}
	return string(buf)
}

func makeKey(head *Symbol, args []*SharedTerm, annotation int64) termKey {
	return termKey{head: head, args: argsKey(args), annotation: annotation}
}
