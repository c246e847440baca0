package aterm

import (
	"io"

	"github.com/gitrdm/mucalc-vpg-core/internal/term"
	"github.com/gitrdm/mucalc-vpg-core/internal/xerrors"
)

// Reader decodes the binary ATerm format produced by Writer, interning every
// term it reconstructs into pool so that decoding the same bytes twice
// yields pointer-equal terms (spec §8 "round trip": "pointer-equal terms
// yield pointer-equal decodings inside the reader's new pool"). Fields are
// read off a single continuous bit stream (format.go's bitReader),
// mirroring Writer exactly: Term-subterm packets are cached by index,
// Term-output packets are cached and yielded, and a Term packet carrying
// the reserved fs-index 0 ends the stream.
type Reader struct {
	br   *bitReader
	pool *term.Pool
	tid  *term.ThreadID

	syms  []*term.Symbol
	terms []*term.SharedTerm
	seen  map[*term.SharedTerm]bool
}

// NewReader wraps r, reading and validating the format header immediately.
// Decoded terms are interned into pool under tid.
func NewReader(r io.Reader, pool *term.Pool, tid *term.ThreadID) (*Reader, error) {
	br := newBitReader(r)
	if err := readHeader(br); err != nil {
		return nil, err
	}
	return &Reader{br: br, pool: pool, tid: tid, seen: make(map[*term.SharedTerm]bool)}, nil
}

func (rd *Reader) readTag() (byte, error) {
	v, err := rd.br.ReadBits(PacketBits)
	if err != nil {
		return 0, xerrors.IO("aterm: reading packet tag: %v", err)
	}
	return byte(v), nil
}

// readIndex reads a term-table index in ⌈log2(tableLen)⌉ bits, mirroring
// Writer.writeIndex.
func (rd *Reader) readIndex(tableLen int) (uint32, error) {
	v, err := rd.br.ReadBits(bitsFor(tableLen))
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func (rd *Reader) readFunctionSymbol() error {
	nameLen, err := rd.br.ReadVarint()
	if err != nil {
		return xerrors.IO("aterm: reading symbol name length: %v", err)
	}
	nameBuf := make([]byte, int(nameLen))
	for i := range nameBuf {
		b, err := rd.br.ReadBits(8)
		if err != nil {
			return xerrors.IO("aterm: reading symbol name: %v", err)
		}
		nameBuf[i] = byte(b)
	}
	arity, err := rd.br.ReadVarint()
	if err != nil {
		return xerrors.IO("aterm: reading symbol arity: %v", err)
	}

	sym, _ := rd.pool.Symbol(rd.tid, string(nameBuf), int(arity))
	rd.syms = append(rd.syms, sym)
	return nil
}

// readTermPacket reads a Term packet's payload — a 1-based fs-index
// followed by one term-index per argument, or a var-int value when the
// symbol is the pool's built-in int symbol — and interns the result,
// growing the term table exactly when the writer did (first occurrence
// only). An fs-index of 0 is the end-of-stream sentinel, legal only on a
// Term-subterm packet; end reports it.
func (rd *Reader) readTermPacket(tag byte) (t *term.SharedTerm, end bool, err error) {
	ref, err := rd.br.ReadBits(bitsFor(len(rd.syms) + 1))
	if err != nil {
		return nil, false, xerrors.IO("aterm: reading term symbol index: %v", err)
	}
	if ref == 0 {
		if tag != PacketTermSubterm {
			return nil, false, xerrors.Format("aterm: reserved fs-index 0 outside an end-of-stream packet")
		}
		return nil, true, nil
	}
	if int(ref) > len(rd.syms) {
		return nil, false, xerrors.Format("aterm: term references unknown symbol index %d", ref)
	}
	sym := rd.syms[ref-1]

	if sym == rd.pool.IntSymbol() {
		u, err := rd.br.ReadVarint()
		if err != nil {
			return nil, false, xerrors.IO("aterm: reading int term value: %v", err)
		}
		t, _ = rd.pool.InternInt(rd.tid, unzigzag(u))
	} else {
		args := make([]*term.SharedTerm, sym.Arity())
		for i := 0; i < sym.Arity(); i++ {
			argIdx, err := rd.readIndex(len(rd.terms))
			if err != nil {
				return nil, false, xerrors.Format("aterm: reading term argument index: %v", err)
			}
			if int(argIdx) >= len(rd.terms) {
				return nil, false, xerrors.Format("aterm: term references unknown term index %d", argIdx)
			}
			args[i] = rd.terms[argIdx]
		}
		if sym.Arity() == 0 {
			t, _ = rd.pool.InternConstant(rd.tid, sym)
		} else {
			t, _ = rd.pool.InternSlice(rd.tid, sym, args)
		}
	}

	if !rd.seen[t] {
		rd.seen[t] = true
		rd.terms = append(rd.terms, t)
	}
	return t, false, nil
}

// ReadRootCount reads the stream's leading root-count packet (always a
// standalone IntOutput, per Writer.Export), returning how many roots
// follow. Callers that want per-root streaming (see DecodeStream) call
// this once before repeatedly calling readOneRoot.
func (rd *Reader) ReadRootCount() (int, error) {
	tag, err := rd.readTag()
	if err != nil {
		return 0, err
	}
	if tag != PacketIntOutput {
		return 0, xerrors.Format("aterm: expected root-count IntOutput packet, got tag %d", tag)
	}
	u, err := rd.br.ReadVarint()
	if err != nil {
		return 0, xerrors.IO("aterm: reading root count: %v", err)
	}
	count := unzigzag(u)
	if count < 0 {
		return 0, xerrors.Format("aterm: negative root count %d", count)
	}
	return int(count), nil
}

// readOneRoot reads packets from the stream until a Term-output (or a
// standalone IntOutput) yields the next root, caching every function
// symbol and subterm packet encountered along the way. end reports the
// fs-index-0 sentinel instead of a root.
func (rd *Reader) readOneRoot() (root *term.SharedTerm, end bool, err error) {
	for {
		tag, err := rd.readTag()
		if err != nil {
			return nil, false, err
		}
		switch tag {
		case PacketFunctionSymbol:
			if err := rd.readFunctionSymbol(); err != nil {
				return nil, false, err
			}
		case PacketTermSubterm, PacketTermOutput:
			t, end, err := rd.readTermPacket(tag)
			if err != nil {
				return nil, false, err
			}
			if end {
				return nil, true, nil
			}
			if tag == PacketTermOutput {
				return t, false, nil
			}
		case PacketIntOutput:
			u, err := rd.br.ReadVarint()
			if err != nil {
				return nil, false, xerrors.IO("aterm: reading int-output value: %v", err)
			}
			t, _ := rd.pool.InternInt(rd.tid, unzigzag(u))
			return t, false, nil
		}
	}
}

// consumeTerminator reads the end-of-stream sentinel that follows the
// final root; any further root appearing instead is a format violation.
func (rd *Reader) consumeTerminator() error {
	root, end, err := rd.readOneRoot()
	if err != nil {
		return err
	}
	if !end {
		return xerrors.Format("aterm: unexpected root %s after the final root", root)
	}
	return nil
}

// Decode reads a full stream written by Writer.Export and returns the root
// terms in the order they were exported, consuming the end-of-stream
// sentinel after the last one.
func Decode(r io.Reader, pool *term.Pool, tid *term.ThreadID) ([]*term.SharedTerm, error) {
	rd, err := NewReader(r, pool, tid)
	if err != nil {
		return nil, err
	}

	count, err := rd.ReadRootCount()
	if err != nil {
		return nil, err
	}

	roots := make([]*term.SharedTerm, 0, count)
	for len(roots) < count {
		root, end, err := rd.readOneRoot()
		if err != nil {
			return nil, err
		}
		if end {
			return nil, xerrors.Format("aterm: stream ended after %d of %d roots", len(roots), count)
		}
		roots = append(roots, root)
	}
	if err := rd.consumeTerminator(); err != nil {
		return nil, err
	}
	return roots, nil
}
