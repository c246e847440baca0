// Package xerrors defines the error kinds propagated across the term pool,
// rewriter, and solver layers.
package xerrors

import "fmt"

// Kind classifies an error into one of the categories from the error
// handling design.
type Kind int

const (
	// KindParse marks a malformed rule, formula, or stream.
	KindParse Kind = iota
	// KindFormat marks a wrong magic, unknown version, invalid packet type,
	// or out-of-range index in the binary ATerm stream.
	KindFormat
	// KindIO marks a failure in an underlying stream.
	KindIO
	// KindPoisonedLock marks a fatal programmer error: a panic occurred
	// while holding the term pool's exclusive lock.
	KindPoisonedLock
	// KindAlloc marks a fatal allocation failure.
	KindAlloc
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindFormat:
		return "format"
	case KindIO:
		return "io"
	case KindPoisonedLock:
		return "poisoned-lock"
	case KindAlloc:
		return "alloc"
	default:
		return "unknown"
	}
}

// Error is a classified error carrying a Kind alongside its message.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Parse constructs a ParseError.
func Parse(format string, args ...interface{}) error {
	return &Error{Kind: KindParse, Msg: fmt.Sprintf(format, args...)}
}

// Format constructs a FormatError.
func Format(format string, args ...interface{}) error {
	return &Error{Kind: KindFormat, Msg: fmt.Sprintf(format, args...)}
}

// IO constructs an IoError.
func IO(format string, args ...interface{}) error {
	return &Error{Kind: KindIO, Msg: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, k Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == k
}

// PoisonedLockPanic is the value recovered threads re-panic with when a
// panic under the term pool's exclusive lock is observed. Recovering from
// it is not supported: the pool's internal state is no longer trustworthy.
type PoisonedLockPanic struct {
	Cause interface{}
}

func (p *PoisonedLockPanic) String() string {
	return fmt.Sprintf("poisoned-lock: %v", p.Cause)
}

// AllocPanic is the value an allocator panics with on failure to grow the
// term or symbol table.
type AllocPanic struct {
	Requested int
	Reason    string
}

func (p *AllocPanic) String() string {
	return fmt.Sprintf("alloc: failed to allocate %d entries: %s", p.Requested, p.Reason)
}
