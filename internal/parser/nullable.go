package parser

import edcerr "github.com/standardbeagle/edcore/internal/errors"

// checkNoEmptyLoops rejects any Star/Plus whose body can match the empty
// string: such a loop never advances the subject and would spin the VM
// forever via PartialCommit. This is a compile-time GrammarError, the same
// family as the left-recursion check in source.go, and for the same
// reason — a grammar shape the compiler can prove never terminates.
func checkNoEmptyLoops(g *Grammar) error {
	memo := make(map[string]bool)
	for _, r := range g.Rules {
		if err := walkLoops(r.Name, r.Body, g, memo, map[string]bool{}); err != nil {
			return err
		}
	}
	return nil
}

func walkLoops(ruleName string, e Expr, g *Grammar, memo map[string]bool, visiting map[string]bool) error {
	switch n := e.(type) {
	case Sequence:
		for _, c := range n.Elems {
			if err := walkLoops(ruleName, c, g, memo, visiting); err != nil {
				return err
			}
		}
	case Choice:
		for _, c := range n.Alts {
			if err := walkLoops(ruleName, c, g, memo, visiting); err != nil {
				return err
			}
		}
	case Star:
		if isNullable(n.Elem, g, memo, visiting) {
			return &edcerr.GrammarError{Kind: edcerr.GrammarBadClass, Rule: ruleName}
		}
		return walkLoops(ruleName, n.Elem, g, memo, visiting)
	case Plus:
		if isNullable(n.Elem, g, memo, visiting) {
			return &edcerr.GrammarError{Kind: edcerr.GrammarBadClass, Rule: ruleName}
		}
		return walkLoops(ruleName, n.Elem, g, memo, visiting)
	case Optional:
		return walkLoops(ruleName, n.Elem, g, memo, visiting)
	case Not:
		return walkLoops(ruleName, n.Elem, g, memo, visiting)
	case And:
		return walkLoops(ruleName, n.Elem, g, memo, visiting)
	}
	return nil
}

// isNullable conservatively reports whether e can match the empty string
// at some subject position. RuleRef recursion is memoized and a rule
// currently being resolved is treated as nullable (safe over-
// approximation — it only risks rejecting a pathological grammar, never
// accepting a non-terminating one).
func isNullable(e Expr, g *Grammar, memo map[string]bool, visiting map[string]bool) bool {
	switch n := e.(type) {
	case Literal:
		return len(n.Bytes) == 0
	case Class, AnyByte:
		return false
	case Sequence:
		for _, c := range n.Elems {
			if !isNullable(c, g, memo, visiting) {
				return false
			}
		}
		return true
	case Choice:
		for _, a := range n.Alts {
			if isNullable(a, g, memo, visiting) {
				return true
			}
		}
		return false
	case Star, Optional, Not, And:
		return true
	case Plus:
		return isNullable(n.Elem, g, memo, visiting)
	case Backref:
		return true
	case RuleRef:
		if v, ok := memo[n.Name]; ok {
			return v
		}
		if visiting[n.Name] {
			return true
		}
		r, ok := g.rule(n.Name)
		if !ok {
			return true
		}
		visiting[n.Name] = true
		result := isNullable(r.Body, g, memo, visiting)
		visiting[n.Name] = false
		memo[n.Name] = result
		return result
	default:
		return false
	}
}
