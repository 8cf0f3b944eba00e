package parser

import edcerr "github.com/standardbeagle/edcore/internal/errors"

// desugarWhitespace rewrites a rule body per spec §4.2 desugar rule 2:
// `@whitespaced R = X Y Z;` becomes `R = WS X WS Y WS Z WS;` where
// `WS = WHITESPACE*`. A non-Sequence body is treated as a one-element
// sequence, so `@whitespaced R = X;` becomes `R = WS X WS;`.
func desugarWhitespace(body Expr) Expr {
	ws := Star{Elem: RuleRef{Name: "WHITESPACE"}}
	var elems []Expr
	if seq, ok := body.(Sequence); ok {
		elems = seq.Elems
	} else {
		elems = []Expr{body}
	}
	out := make([]Expr, 0, 2*len(elems)+1)
	out = append(out, ws)
	for _, e := range elems {
		out = append(out, e, ws)
	}
	return Sequence{Elems: out}
}

// desugarGrammar applies every rule-level body rewrite (currently just
// @whitespaced) and returns a new Grammar with rewritten bodies; the input
// Grammar's Rule.Annotations are preserved unchanged for the compiler to
// read when building each rule's CaptureAttrs.
func desugarGrammar(g *Grammar) (*Grammar, error) {
	out := &Grammar{Start: g.Start}
	hasWhitespace := false
	for _, r := range g.Rules {
		if r.Name == "WHITESPACE" {
			hasWhitespace = true
		}
	}
	for _, r := range g.Rules {
		if r.has("whitespaced") {
			if !hasWhitespace {
				return nil, &edcerr.GrammarError{Kind: edcerr.GrammarUnknownRule, Rule: "WHITESPACE"}
			}
			r.Body = desugarWhitespace(r.Body)
		}
		out.Rules = append(out.Rules, r)
	}
	return out, nil
}
