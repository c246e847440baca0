package aterm

import (
	"io"

	"github.com/gitrdm/mucalc-vpg-core/internal/term"
	"github.com/gitrdm/mucalc-vpg-core/internal/xerrors"
)

// Writer serializes SharedTerm graphs to the binary ATerm format,
// maintaining its own symbol and term tables so that repeated subterms
// (the whole point of a maximally-shared pool) are written once and
// referenced thereafter by index. All fields are packed onto a single
// continuous bit stream (format.go's bitWriter), so nothing below the
// header is byte-aligned except by coincidence.
//
// Function symbols are referenced by a 1-based wire index: 0 is reserved
// for the end-of-stream sentinel Term packet (spec §6 "The stream
// terminates with a Term packet whose fs-index is 0"), so the reference
// width is sized against the table length plus the reserved slot.
type Writer struct {
	bw       *bitWriter
	symIndex map[*term.Symbol]uint32
	symCount int
	termIdx  map[*term.SharedTerm]uint32
	termLen  int
}

// NewWriter wraps w, writing the format header immediately.
func NewWriter(w io.Writer) (*Writer, error) {
	bw := newBitWriter(w)
	if err := writeHeader(bw); err != nil {
		return nil, xerrors.IO("aterm: writing header: %v", err)
	}
	return &Writer{
		bw:       bw,
		symIndex: make(map[*term.Symbol]uint32),
		termIdx:  make(map[*term.SharedTerm]uint32),
	}, nil
}

// Export writes roots bottom-up: each root's subterms are emitted as
// cached Term-subterm packets and the root itself as a Term-output packet
// the reader yields. The root count is written first as an IntOutput
// packet (spec §6 "iterable sections prefixed with a single IntOutput of
// length N"), the end-of-stream sentinel — a Term packet with the reserved
// fs-index 0 — is written after the final root, and the bit stream's
// trailing partial byte is zero-padded and flushed.
func (w *Writer) Export(roots []*term.SharedTerm) error {
	if err := w.writeIntOutput(int64(len(roots))); err != nil {
		return err
	}
	for _, root := range roots {
		if _, err := w.writeTerm(root, true); err != nil {
			return err
		}
	}
	if err := w.writeTag(PacketTermSubterm); err != nil {
		return xerrors.IO("aterm: writing end-of-stream tag: %v", err)
	}
	if err := w.bw.WriteBits(0, bitsFor(w.symCount+1)); err != nil {
		return xerrors.IO("aterm: writing end-of-stream sentinel: %v", err)
	}
	if err := w.bw.Flush(); err != nil {
		return xerrors.IO("aterm: flushing stream: %v", err)
	}
	return nil
}

// writeTag writes a PacketBits-wide packet-type tag.
func (w *Writer) writeTag(tag byte) error {
	return w.bw.WriteBits(uint64(tag), PacketBits)
}

// writeIndex writes idx in ⌈log2(tableLen)⌉ bits, the narrowest width that
// can still address every entry already in the table of length tableLen
// (spec §6 "index widths widening as the symbol/term sets grow").
func (w *Writer) writeIndex(tableLen int, idx uint32) error {
	return w.bw.WriteBits(uint64(idx), bitsFor(tableLen))
}

// writeSymbolRef writes a 1-based function-symbol reference, leaving 0 for
// the end-of-stream sentinel.
func (w *Writer) writeSymbolRef(id uint32) error {
	return w.bw.WriteBits(uint64(id)+1, bitsFor(w.symCount+1))
}

// isIntTerm reports whether t is an integer leaf (the pool's built-in int
// symbol plus a 64-bit annotation, spec §3.1).
func isIntTerm(t *term.SharedTerm) bool {
	return t.Arity() == 0 && t.Head().Arity() == 0 && t.Head().Name() == "<aterm_int>"
}

// writeTerm emits t's children and then t itself, or returns t's existing
// table index unchanged if it was already emitted — maximal sharing at the
// term-pool level becomes maximal de-duplication at the wire level for
// free, since SharedTerm pointer identity already is term identity. With
// output set, t's own packet is a Term-output the reader yields as a root;
// a root that was already cached is re-emitted as an output packet
// (arguments all resolve to existing indices) without growing the table,
// which the reader mirrors by interning.
func (w *Writer) writeTerm(t *term.SharedTerm, output bool) (uint32, error) {
	if idx, ok := w.termIdx[t]; ok {
		if !output {
			return idx, nil
		}
		return idx, w.emitTermPacket(t, PacketTermOutput)
	}

	if !isIntTerm(t) {
		for i := 0; i < t.Arity(); i++ {
			if _, err := w.writeTerm(t.Arg(i), false); err != nil {
				return 0, err
			}
		}
	}

	tag := PacketTermSubterm
	if output {
		tag = PacketTermOutput
	}
	if err := w.emitTermPacket(t, tag); err != nil {
		return 0, err
	}

	idx := uint32(w.termLen)
	w.termLen++
	w.termIdx[t] = idx
	return idx, nil
}

// emitTermPacket writes one Term packet: fs-index, then one term-index per
// argument — or, for the int symbol, a single var-int value in place of
// the argument section (spec §6's packet table). The head symbol is
// declared first if this is its first occurrence.
func (w *Writer) emitTermPacket(t *term.SharedTerm, tag byte) error {
	symID, err := w.symbolID(t.Head())
	if err != nil {
		return err
	}
	if err := w.writeTag(tag); err != nil {
		return xerrors.IO("aterm: writing term tag: %v", err)
	}
	if err := w.writeSymbolRef(symID); err != nil {
		return xerrors.IO("aterm: writing term symbol index: %v", err)
	}
	if isIntTerm(t) {
		if err := w.bw.WriteVarint(zigzag(t.Annotation())); err != nil {
			return xerrors.IO("aterm: writing int term value: %v", err)
		}
		return nil
	}
	for i := 0; i < t.Arity(); i++ {
		if err := w.writeIndex(w.termLen, w.termIdx[t.Arg(i)]); err != nil {
			return xerrors.IO("aterm: writing term argument: %v", err)
		}
	}
	return nil
}

// writeIntOutput writes a standalone IntOutput packet carrying one var-int
// value, used as the iterable section's length prefix.
func (w *Writer) writeIntOutput(v int64) error {
	if err := w.writeTag(PacketIntOutput); err != nil {
		return xerrors.IO("aterm: writing int-output tag: %v", err)
	}
	if err := w.bw.WriteVarint(zigzag(v)); err != nil {
		return xerrors.IO("aterm: writing int-output value: %v", err)
	}
	return nil
}

// symbolID returns sym's 0-based table id, declaring it on the wire first
// if this is its first occurrence: a FunctionSymbol packet carrying the
// var-int name length, the name bytes, and the var-int arity (spec §6's
// packet table).
func (w *Writer) symbolID(sym *term.Symbol) (uint32, error) {
	if id, ok := w.symIndex[sym]; ok {
		return id, nil
	}

	if err := w.writeTag(PacketFunctionSymbol); err != nil {
		return 0, xerrors.IO("aterm: writing function-symbol tag: %v", err)
	}
	name := sym.Name()
	if err := w.bw.WriteVarint(uint64(len(name))); err != nil {
		return 0, xerrors.IO("aterm: writing symbol name length: %v", err)
	}
	for i := 0; i < len(name); i++ {
		if err := w.bw.WriteBits(uint64(name[i]), 8); err != nil {
			return 0, xerrors.IO("aterm: writing symbol name: %v", err)
		}
	}
	if err := w.bw.WriteVarint(uint64(sym.Arity())); err != nil {
		return 0, xerrors.IO("aterm: writing symbol arity: %v", err)
	}

	id := uint32(w.symCount)
	w.symCount++
	w.symIndex[sym] = id
	return id, nil
}
