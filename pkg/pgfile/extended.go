package pgfile

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gitrdm/mucalc-vpg-core/internal/vpg"
	"github.com/gitrdm/mucalc-vpg-core/internal/xerrors"
)

// WriteExtended emits g in the extended PGSolver-family format that carries
// a per-edge BDD guard and the game's feature list and configuration (spec
// §6 "an extended variant carrying BDD guards"):
//
//	features "p,q,r";
//	config <expr>;
//	parity <max-index>;
//	<id> <priority> <owner> <succ>:<guard>,<succ>:<guard>,...;
func WriteExtended(w io.Writer, g *vpg.Game) error {
	bw := bufio.NewWriter(w)
	features := g.Mgr.Features()
	if _, err := fmt.Fprintf(bw, "features %s;\n", quoteFeatures(features)); err != nil {
		return xerrors.IO("pgfile: writing features: %v", err)
	}
	if _, err := fmt.Fprintf(bw, "config %s;\n", renderGuard(g.Mgr, g.Config)); err != nil {
		return xerrors.IO("pgfile: writing config: %v", err)
	}
	n := g.N()
	maxIdx := 0
	if n > 0 {
		maxIdx = n - 1
	}
	if _, err := fmt.Fprintf(bw, "parity %d;\n", maxIdx); err != nil {
		return xerrors.IO("pgfile: writing header: %v", err)
	}
	for v := 0; v < n; v++ {
		owner := 0
		if g.Owner[v] != vpg.Even {
			owner = 1
		}
		parts := make([]string, len(g.Out[v]))
		for i, e := range g.Out[v] {
			parts[i] = fmt.Sprintf("%d:%s", e.Target, renderGuard(g.Mgr, e.Guard))
		}
		if _, err := fmt.Fprintf(bw, "%d %d %d %s;\n", v, g.Prio[v], owner, strings.Join(parts, ",")); err != nil {
			return xerrors.IO("pgfile: writing vertex %d: %v", v, err)
		}
	}
	return bw.Flush()
}

// ReadExtended parses the extended format into a *vpg.Game, building a fresh
// *vpg.Manager sized to the parsed feature list.
func ReadExtended(r io.Reader) (*vpg.Game, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var features []string
	var configExpr string
	var maxIdx int
	stage := 0 // 0=features, 1=config, 2=header, 3=vertices
	var lines []string

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		switch stage {
		case 0:
			if !strings.HasPrefix(line, "features ") {
				return nil, xerrors.Parse("pgfile: expected 'features \"...\";' header, got %q", line)
			}
			raw := strings.TrimSuffix(strings.TrimPrefix(line, "features "), ";")
			raw = strings.Trim(strings.TrimSpace(raw), "\"")
			if raw != "" {
				features = strings.Split(raw, ",")
			}
			stage = 1
		case 1:
			if !strings.HasPrefix(line, "config ") {
				return nil, xerrors.Parse("pgfile: expected 'config <expr>;' line, got %q", line)
			}
			configExpr = strings.TrimSuffix(strings.TrimPrefix(line, "config "), ";")
			stage = 2
		case 2:
			trimmed := strings.TrimSuffix(line, ";")
			fields := strings.Fields(trimmed)
			if len(fields) != 2 || fields[0] != "parity" {
				return nil, xerrors.Parse("pgfile: expected 'parity N;' header, got %q", line)
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, xerrors.Parse("pgfile: bad max-index %q: %v", fields[1], err)
			}
			maxIdx = n
			stage = 3
		default:
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, xerrors.IO("pgfile: scanning: %v", err)
	}
	if stage != 3 {
		return nil, xerrors.Parse("pgfile: truncated extended-format stream")
	}

	mgr, err := vpg.NewManager(features)
	if err != nil {
		return nil, err
	}
	cfg, err := parseGuard(mgr, configExpr)
	if err != nil {
		return nil, err
	}

	n := maxIdx + 1
	g := vpg.NewGame(mgr, n, cfg)
	seen := make([]bool, n)

	for _, line := range lines {
		line = strings.TrimSuffix(strings.TrimSpace(line), ";")
		fields := strings.SplitN(line, " ", 4)
		if len(fields) < 3 {
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
		g.Prio[id] = prio
		g.Owner[id] = vpg.Owner(ownerN)

		if len(fields) == 4 {
			rest := strings.TrimSpace(fields[3])
			if rest != "" {
				for _, part := range splitTopLevelComma(rest) {
					target, guardExpr, err := splitEdgeSpec(part)
					if err != nil {
						return nil, err
					}
					if target < 0 || target >= n {
						return nil, xerrors.Parse("pgfile: successor %d out of range [0,%d)", target, n)
					}
					guard, err := parseGuard(mgr, guardExpr)
					if err != nil {
						return nil, err
					}
					g.AddEdge(id, target, guard)
				}
			}
		}
	}
	for v := 0; v < n; v++ {
		if !seen[v] {
			return nil, xerrors.Parse("pgfile: vertex %d never defined", v)
		}
	}
	return g, nil
}

// splitTopLevelComma splits s on commas that are not nested inside
// parentheses, since a guard expression may itself contain disjunctions
// that renderGuard never parenthesizes but a hand-written guard could.
func splitTopLevelComma(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// splitEdgeSpec splits "target:guard" into its components.
func splitEdgeSpec(s string) (int, string, error) {
	i := strings.Index(s, ":")
	if i < 0 {
		return 0, "", xerrors.Parse("pgfile: malformed edge spec %q, expected target:guard", s)
	}
	target, err := strconv.Atoi(strings.TrimSpace(s[:i]))
	if err != nil {
		return 0, "", xerrors.Parse("pgfile: bad edge target %q: %v", s[:i], err)
	}
	return target, strings.TrimSpace(s[i+1:]), nil
}
