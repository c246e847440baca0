package vpg

import "testing"

func TestTotalizeMakesGameTotal(t *testing.T) {
	mgr, err := NewManager([]string{"p"})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	cfg := mgr.True()

	g := NewGame(mgr, 1, cfg)
	g.Owner[0] = Even
	g.Prio[0] = 0
	// No outgoing edges at all: this vertex is totally starved.

	if g.IsTotal() {
		t.Fatalf("expected an edgeless vertex to make the game non-total")
	}

	g.Totalize()
	if !g.IsTotal() {
		t.Fatalf("expected Totalize to produce a total game")
	}
	if g.N() != 3 {
		t.Fatalf("expected totalize to add exactly two sink vertices, got N=%d", g.N())
	}
}

func TestPredecessorsIndexByTarget(t *testing.T) {
	mgr, err := NewManager([]string{"p"})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	cfg := mgr.True()
	g := NewGame(mgr, 3, cfg)
	g.AddEdge(0, 1, mgr.Var(0))
	g.AddEdge(0, 2, mgr.NotVar(0))
	g.AddEdge(1, 2, cfg)

	preds := BuildPredecessors(g)
	if len(preds[2]) != 2 {
		t.Fatalf("expected vertex 2 to have 2 predecessors, got %d", len(preds[2]))
	}
	if len(preds[1]) != 1 || preds[1][0].Source != 0 {
		t.Fatalf("expected vertex 1's only predecessor to be vertex 0")
	}
}

func TestMintermsEnumerateFullAssignmentSpace(t *testing.T) {
	mgr, err := NewManager([]string{"p", "q"})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	minterms := mgr.Minterms(mgr.True())
	if len(minterms) != 4 {
		t.Fatalf("expected 4 minterms over 2 features, got %d", len(minterms))
	}
}
