package pgfile

import (
	"strings"
	"testing"

	"github.com/gitrdm/mucalc-vpg-core/internal/vpg"
	"github.com/gitrdm/mucalc-vpg-core/internal/zielonka"
)

func TestPGSolverRoundTrip(t *testing.T) {
	pg := &zielonka.PlainGame{
		Owner: []vpg.Owner{vpg.Even, vpg.Odd, vpg.Even},
		Prio:  []int{0, 1, 2},
		Out: [][]zielonka.PlainEdge{
			{{Target: 1}, {Target: 2}},
			{{Target: 2}},
			{{Target: 0}},
		},
	}

	var buf strings.Builder
	if err := WritePGSolver(&buf, pg); err != nil {
		t.Fatalf("WritePGSolver: %v", err)
	}

	got, err := ReadPGSolver(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("ReadPGSolver: %v", err)
	}
	if len(got.Owner) != 3 {
		t.Fatalf("expected 3 vertices, got %d", len(got.Owner))
	}
	for v := range pg.Owner {
		if got.Owner[v] != pg.Owner[v] || got.Prio[v] != pg.Prio[v] {
			t.Fatalf("vertex %d: owner/priority mismatch, got %v/%d want %v/%d",
				v, got.Owner[v], got.Prio[v], pg.Owner[v], pg.Prio[v])
		}
		if len(got.Out[v]) != len(pg.Out[v]) {
			t.Fatalf("vertex %d: expected %d successors, got %d", v, len(pg.Out[v]), len(got.Out[v]))
		}
	}
}

func TestReadPGSolverRejectsBadHeader(t *testing.T) {
	_, err := ReadPGSolver(strings.NewReader("not a header\n"))
	if err == nil {
		t.Fatalf("expected an error for a missing parity header")
	}
}

func TestReadPGSolverRejectsOutOfRangeSuccessor(t *testing.T) {
	src := "parity 0;\n0 0 0 5;\n"
	_, err := ReadPGSolver(strings.NewReader(src))
	if err == nil {
		t.Fatalf("expected an error for an out-of-range successor")
	}
}
