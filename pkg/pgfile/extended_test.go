package pgfile

import (
	"strings"
	"testing"

	"github.com/gitrdm/mucalc-vpg-core/internal/vpg"
)

func TestExtendedRoundTrip(t *testing.T) {
	mgr, err := vpg.NewManager([]string{"p", "q"})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	cfg := mgr.True()
	g := vpg.NewGame(mgr, 4, cfg)
	g.Owner[0] = vpg.Even
	g.Prio[0] = 1
	g.Owner[1] = vpg.Odd
	g.Prio[1] = 0
	g.Owner[2] = vpg.Even
	g.Prio[2] = 0
	g.Owner[3] = vpg.Odd
	g.Prio[3] = 1
	g.AddEdge(0, 1, mgr.Var(mgr.FeatureIndex("p")))
	g.AddEdge(0, 2, mgr.NotVar(mgr.FeatureIndex("p")))
	g.AddEdge(1, 3, cfg)
	g.AddEdge(2, 3, cfg)
	g.AddEdge(3, 3, cfg)

	var buf strings.Builder
	if err := WriteExtended(&buf, g); err != nil {
		t.Fatalf("WriteExtended: %v", err)
	}

	got, err := ReadExtended(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("ReadExtended: %v\n%s", err, buf.String())
	}
	if got.N() != g.N() {
		t.Fatalf("expected %d vertices, got %d", g.N(), got.N())
	}
	if !got.Mgr.Equal(got.Config, got.Mgr.True()) {
		t.Fatalf("expected the round-tripped config to be true")
	}
	for v := 0; v < g.N(); v++ {
		if got.Owner[v] != g.Owner[v] || got.Prio[v] != g.Prio[v] {
			t.Fatalf("vertex %d: owner/priority mismatch", v)
		}
		if len(got.Out[v]) != len(g.Out[v]) {
			t.Fatalf("vertex %d: expected %d edges, got %d", v, len(g.Out[v]), len(got.Out[v]))
		}
	}

	// The guard on vertex 0's edge to vertex 1 should be equivalent (not
	// merely textually equal) to the original "p" guard, since rendering
	// goes through a minterm disjunction rather than preserving syntax.
	var gotGuardTo1 = got.Mgr.False()
	for _, e := range got.Out[0] {
		if e.Target == 1 {
			gotGuardTo1 = e.Guard
		}
	}
	if !got.Mgr.Equal(gotGuardTo1, got.Mgr.Var(got.Mgr.FeatureIndex("p"))) {
		t.Fatalf("expected round-tripped guard on edge 0->1 to be semantically 'p'")
	}
}

func TestParseGuardHandlesOperatorsAndParens(t *testing.T) {
	mgr, err := vpg.NewManager([]string{"p", "q"})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	n, err := parseGuard(mgr, "p & !q | !(p & q)")
	if err != nil {
		t.Fatalf("parseGuard: %v", err)
	}
	// p&!q | !(p&q)  ==  !p | !q  (true whenever not both p and q hold)
	expected := mgr.Or(mgr.NotVar(mgr.FeatureIndex("p")), mgr.NotVar(mgr.FeatureIndex("q")))
	if !mgr.Equal(n, expected) {
		t.Fatalf("expected parsed guard to equal !p | !q")
	}
}
