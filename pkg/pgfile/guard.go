package pgfile

import (
	"fmt"
	"strings"

	"github.com/dalzilio/rudd"

	"github.com/gitrdm/mucalc-vpg-core/internal/vpg"
	"github.com/gitrdm/mucalc-vpg-core/internal/xerrors"
)

// renderGuard prints guard as a disjunction of feature-literal conjunctions
// (one term per minterm the guard's BDD satisfies), e.g. "p & !q | !p & q".
// A guard equal to the manager's True is printed as "true", False as
// "false".
func renderGuard(mgr *vpg.Manager, guard rudd.Node) string {
	if mgr.Equal(guard, mgr.True()) {
		return "true"
	}
	if mgr.IsFalse(guard) {
		return "false"
	}
	minterms := mgr.Minterms(guard)
	terms := make([]string, len(minterms))
	features := mgr.Features()
	for i, mt := range minterms {
		lits := make([]string, len(features))
		for fi, name := range features {
			if mt&(uint64(1)<<uint(fi)) != 0 {
				lits[fi] = name
			} else {
				lits[fi] = "!" + name
			}
		}
		terms[i] = strings.Join(lits, " & ")
	}
	return strings.Join(terms, " | ")
}

// parseGuard parses the expression grammar produced by renderGuard (and any
// equivalent hand-written guard expression) into a BDD over mgr's features:
//
//	expr   := term ('|' term)*
//	term   := factor ('&' factor)*
//	factor := '!' factor | '(' expr ')' | ident | 'true' | 'false'
func parseGuard(mgr *vpg.Manager, s string) (rudd.Node, error) {
	p := &guardParser{mgr: mgr, toks: tokenizeGuard(s)}
	n, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, xerrors.Parse("pgfile: unexpected trailing token %q in guard %q", p.toks[p.pos], s)
	}
	return n, nil
}

func tokenizeGuard(s string) []string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '(' || r == ')' || r == '|' || r == '&' || r == '!':
			flush()
			toks = append(toks, string(r))
		case r == ' ' || r == '\t':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}

type guardParser struct {
	mgr  *vpg.Manager
	toks []string
	pos  int
}

func (p *guardParser) peek() string {
	if p.pos >= len(p.toks) {
		return ""
	}
	return p.toks[p.pos]
}

func (p *guardParser) parseExpr() (rudd.Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.peek() == "|" {
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = p.mgr.Or(left, right)
	}
	return left, nil
}

func (p *guardParser) parseTerm() (rudd.Node, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.peek() == "&" {
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = p.mgr.And(left, right)
	}
	return left, nil
}

func (p *guardParser) parseFactor() (rudd.Node, error) {
	tok := p.peek()
	switch tok {
	case "":
		return nil, xerrors.Parse("pgfile: unexpected end of guard expression")
	case "!":
		p.pos++
		inner, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return p.mgr.Not(inner), nil
	case "(":
		p.pos++
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.peek() != ")" {
			return nil, xerrors.Parse("pgfile: expected ')' in guard expression")
		}
		p.pos++
		return inner, nil
	case "true":
		p.pos++
		return p.mgr.True(), nil
	case "false":
		p.pos++
		return p.mgr.False(), nil
	default:
		p.pos++
		idx := p.mgr.FeatureIndex(tok)
		if idx < 0 {
			return nil, xerrors.Parse("pgfile: unknown feature %q in guard expression", tok)
		}
		return p.mgr.Var(idx), nil
	}
}

func quoteFeatures(features []string) string {
	return fmt.Sprintf("%q", strings.Join(features, ","))
}
