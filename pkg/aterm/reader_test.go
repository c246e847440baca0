package aterm

import (
	"bytes"
	"testing"

	"github.com/gitrdm/mucalc-vpg-core/internal/term"
)

// TestRoundTripMatchesScenario3 implements spec §8 scenario 3: encode
// f(g(a),b), f(a,g(b)), g(g(a)) under rules f:2, g:1, a:0, b:0, then decode
// and check handle equality against freshly interned counterparts in the
// same pool.
func TestRoundTripMatchesScenario3(t *testing.T) {
	p := term.New()
	h := term.NewThreadID()

	f, _ := p.Symbol(h, "f", 2)
	g, _ := p.Symbol(h, "g", 1)
	a, _ := p.Symbol(h, "a", 0)
	b, _ := p.Symbol(h, "b", 0)

	ta, _ := p.InternConstant(h, a)
	tb, _ := p.InternConstant(h, b)
	ga, _ := p.InternSlice(h, g, []*term.SharedTerm{ta})
	gb, _ := p.InternSlice(h, g, []*term.SharedTerm{tb})
	fgab, _ := p.InternSlice(h, f, []*term.SharedTerm{ga, tb})
	fagb, _ := p.InternSlice(h, f, []*term.SharedTerm{ta, gb})
	ggaa, _ := p.InternSlice(h, g, []*term.SharedTerm{ga})

	roots := []*term.SharedTerm{fgab, fagb, ggaa}

	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Export(roots); err != nil {
		t.Fatalf("Export: %v", err)
	}

	got, err := Decode(&buf, p, h)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != len(roots) {
		t.Fatalf("expected %d roots, got %d", len(roots), len(got))
	}
	for i, root := range roots {
		if got[i] != root {
			t.Fatalf("root %d: decoded term is not pointer-equal to the freshly interned original (maximal sharing broken across decode)", i)
		}
	}
}

// TestRoundTripIntoFreshPool exercises decoding into a brand-new pool, the
// literal reading of spec §8's round-trip property: decode(encode(T)) = T,
// "pointer-equal terms yield pointer-equal decodings inside the reader's new
// pool".
func TestRoundTripIntoFreshPool(t *testing.T) {
	src := term.New()
	h := term.NewThreadID()

	f, _ := src.Symbol(h, "f", 2)
	a, _ := src.Symbol(h, "a", 0)
	ta, _ := src.InternConstant(h, a)
	shared, _ := src.InternSlice(h, f, []*term.SharedTerm{ta, ta})

	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Export([]*term.SharedTerm{shared, shared}); err != nil {
		t.Fatalf("Export: %v", err)
	}

	dst := term.New()
	dh := term.NewThreadID()
	got, err := Decode(&buf, dst, dh)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(got))
	}
	if got[0] != got[1] {
		t.Fatalf("expected the two occurrences of the shared root to decode pointer-equal")
	}

	fDst, _ := dst.Symbol(dh, "f", 2)
	aDst, _ := dst.Symbol(dh, "a", 0)
	taDst, _ := dst.InternConstant(dh, aDst)
	freshShared, _ := dst.InternSlice(dh, fDst, []*term.SharedTerm{taDst, taDst})
	if got[0] != freshShared {
		t.Fatalf("decoded term does not match a freshly interned equivalent in the destination pool")
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0xff, 0xff, 0x83, 0x08})
	p := term.New()
	h := term.NewThreadID()
	if _, err := Decode(&buf, p, h); err == nil {
		t.Fatalf("expected a FormatError for bad magic")
	}
}

func TestDecodeEmptyRootList(t *testing.T) {
	p := term.New()
	h := term.NewThreadID()

	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Export(nil); err != nil {
		t.Fatalf("Export: %v", err)
	}
	got, err := Decode(&buf, p, h)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected 0 roots, got %d", len(got))
	}
}

func TestRoundTripIntLiteral(t *testing.T) {
	p := term.New()
	h := term.NewThreadID()

	i42, _ := p.InternInt(h, 42)

	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Export([]*term.SharedTerm{i42}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	got, err := Decode(&buf, p, h)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != 1 || got[0] != i42 {
		t.Fatalf("expected the decoded int literal to be pointer-equal to the original")
	}
}

// TestRoundTripVarintExtremes drives the var-int encoding through values
// needing one group, several groups, and the sign fold.
func TestRoundTripVarintExtremes(t *testing.T) {
	p := term.New()
	h := term.NewThreadID()

	values := []int64{0, 1, -1, 127, 128, -300, 1 << 40, -(1 << 40), 1<<63 - 1, -1 << 63}
	roots := make([]*term.SharedTerm, len(values))
	for i, v := range values {
		roots[i], _ = p.InternInt(h, v)
	}

	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Export(roots); err != nil {
		t.Fatalf("Export: %v", err)
	}
	got, err := Decode(&buf, p, h)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for i, root := range roots {
		if got[i] != root {
			t.Fatalf("value %d: decoded int %s is not pointer-equal to the original %s", values[i], got[i], root)
		}
	}
}

// TestDecodeConsumesEndOfStreamSentinel checks that Decode reads through
// the fs-index-0 terminator packet: nothing of the stream may remain.
func TestDecodeConsumesEndOfStreamSentinel(t *testing.T) {
	p := term.New()
	h := term.NewThreadID()

	f, _ := p.Symbol(h, "f", 1)
	a, _ := p.Symbol(h, "a", 0)
	ta, _ := p.InternConstant(h, a)
	fa, _ := p.InternSlice(h, f, []*term.SharedTerm{ta})

	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Export([]*term.SharedTerm{fa}); err != nil {
		t.Fatalf("Export: %v", err)
	}

	if _, err := Decode(&buf, p, h); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected the sentinel to exhaust the stream, %d bytes left", buf.Len())
	}
}

func TestDecodeRejectsTruncatedStream(t *testing.T) {
	p := term.New()
	h := term.NewThreadID()

	f, _ := p.Symbol(h, "f", 1)
	a, _ := p.Symbol(h, "a", 0)
	ta, _ := p.InternConstant(h, a)
	fa, _ := p.InternSlice(h, f, []*term.SharedTerm{ta})

	var buf bytes.Buffer
	w, err := NewWriter(&buf)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Export([]*term.SharedTerm{fa}); err != nil {
		t.Fatalf("Export: %v", err)
	}

	truncated := bytes.NewBuffer(buf.Bytes()[:buf.Len()-1])
	if _, err := Decode(truncated, p, h); err == nil {
		t.Fatalf("expected an error decoding a stream cut before its end-of-stream sentinel")
	}
}
