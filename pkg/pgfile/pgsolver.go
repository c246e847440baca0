// Package pgfile implements the two textual parity-game file formats named
// in spec §6: plain PGSolver (consumed/produced by most external parity-
// game solvers, e.g. oink/pgsolver itself) and an extended variant that
// additionally carries a BDD guard expression per edge, for the
// VariabilityParityGame of internal/vpg. Neither format has a teacher or
// pack analogue to ground a parser on; the PGSolver grammar itself is fixed
// by the well-known external tool format (spec §6), and the guard-
// expression grammar is new code written to round-trip internal/vpg's BDDs
// through plain text.
package pgfile

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/gitrdm/mucalc-vpg-core/internal/vpg"
	"github.com/gitrdm/mucalc-vpg-core/internal/xerrors"
	"github.com/gitrdm/mucalc-vpg-core/internal/zielonka"
)

// WritePGSolver emits pg in the plain PGSolver textual format:
//
//	parity <max-index>;
//	<id> <priority> <owner> <succ,succ,...>;
//
// Owner 0 is Even, 1 is Odd, matching the PGSolver convention. The
// format's optional quoted vertex name is not written.
func WritePGSolver(w io.Writer, pg *zielonka.PlainGame) error {
	bw := bufio.NewWriter(w)
	n := len(pg.Owner)
	if n == 0 {
		if _, err := fmt.Fprintf(bw, "parity 0;\n"); err != nil {
			return xerrors.IO("pgfile: writing header: %v", err)
		}
		return bw.Flush()
	}
	if _, err := fmt.Fprintf(bw, "parity %d;\n", n-1); err != nil {
		return xerrors.IO("pgfile: writing header: %v", err)
	}
	for v := 0; v < n; v++ {
		owner := 0
		if pg.Owner[v] != 0 {
			owner = 1
		}
		succ := make([]string, len(pg.Out[v]))
		for i, e := range pg.Out[v] {
			succ[i] = strconv.Itoa(e.Target)
		}
		if _, err := fmt.Fprintf(bw, "%d %d %d %s;\n", v, pg.Prio[v], owner, strings.Join(succ, ",")); err != nil {
			return xerrors.IO("pgfile: writing vertex %d: %v", v, err)
		}
	}
	return bw.Flush()
}

// ReadPGSolver parses the plain PGSolver textual format into a PlainGame.
// Vertex identifiers need not be written in order but must be dense and
// zero-based; out-of-range or duplicate identifiers are a ParseError.
func ReadPGSolver(r io.Reader) (*zielonka.PlainGame, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var maxIdx int
	headerSeen := false
	var lines []string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if !headerSeen {
			line = strings.TrimSuffix(line, ";")
			fields := strings.Fields(line)
			if len(fields) != 2 || fields[0] != "parity" {
				return nil, xerrors.Parse("pgfile: expected 'parity N;' header, got %q", line)
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, xerrors.Parse("pgfile: bad max-index %q: %v", fields[1], err)
			}
			maxIdx = n
			headerSeen = true
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, xerrors.IO("pgfile: scanning: %v", err)
	}
	if !headerSeen {
		return nil, xerrors.Parse("pgfile: missing 'parity N;' header")
	}

	n := maxIdx + 1
	pg := &zielonka.PlainGame{
		Owner: make([]vpg.Owner, n),
		Prio:  make([]int, n),
		Out:   make([][]zielonka.PlainEdge, n),
	}
	seen := make([]bool, n)

	for _, line := range lines {
		line = strings.TrimSuffix(strings.TrimSpace(line), ";")
		// Strip a trailing quoted name, if present.
		if i := strings.Index(line, "\""); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		fields := strings.FieldsFunc(line, func(r rune) bool { return r == ' ' })
		if len(fields) < 4 {
			return nil, xerrors.Parse("pgfile: malformed vertex line %q", line)
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, xerrors.Parse("pgfile: bad vertex id %q: %v", fields[0], err)
		}
		if id < 0 || id >= n {
			return nil, xerrors.Parse("pgfile: vertex id %d out of range [0,%d)", id, n)
		}
		if seen[id] {
			return nil, xerrors.Parse("pgfile: duplicate vertex id %d", id)
		}
		seen[id] = true

		prio, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, xerrors.Parse("pgfile: bad priority %q: %v", fields[1], err)
		}
		ownerN, err := strconv.Atoi(fields[2])
		if err != nil || (ownerN != 0 && ownerN != 1) {
			return nil, xerrors.Parse("pgfile: bad owner %q", fields[2])
		}

		pg.Prio[id] = prio
		pg.Owner[id] = vpg.Owner(ownerN)

		for _, s := range strings.Split(fields[3], ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			t, err := strconv.Atoi(s)
			if err != nil {
				return nil, xerrors.Parse("pgfile: bad successor %q: %v", s, err)
			}
			if t < 0 || t >= n {
				return nil, xerrors.Parse("pgfile: successor %d out of range [0,%d)", t, n)
			}
			pg.Out[id] = append(pg.Out[id], zielonka.PlainEdge{Target: t})
		}
	}
	for v := 0; v < n; v++ {
		if !seen[v] {
			return nil, errors.Errorf("pgfile: vertex %d never defined", v)
		}
	}
	return pg, nil
}
