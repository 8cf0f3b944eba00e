package parser

// Expr is one node of a parsed grammar's PEG expression tree (spec §3
// "Grammar"). Concrete types below cover every case enumerated there:
// literal byte strings, classes, sequence, ordered choice, the five
// postfix/prefix repetition and lookahead operators, rule reference,
// any-byte, and backreferences. Captures have no node of their own: every
// rule invocation opens one, carrying that Rule's Annotations.
type Expr interface{ exprNode() }

// Literal matches an exact byte string.
type Literal struct{ Bytes []byte }

// Class matches a single byte against a ByteClass built from one or more
// inclusive ranges, optionally negated (folded already into the
// complement set by parseClass in source.go).
type Class struct{ Set ByteClass }

// AnyByte matches `.`: any single byte, failing only at end of subject.
type AnyByte struct{}

// Sequence matches each sub-expression in order, subject position carried
// forward; fails (with full backtrack) if any element fails.
type Sequence struct{ Elems []Expr }

// Choice tries Alts in order, committing to the first that succeeds.
type Choice struct{ Alts []Expr }

// Star matches Elem zero or more times, greedily, never itself failing.
type Star struct{ Elem Expr }

// Plus matches Elem one or more times (Elem then Star{Elem}).
type Plus struct{ Elem Expr }

// Optional matches Elem zero or one times, never itself failing.
type Optional struct{ Elem Expr }

// Not is negative lookahead `!p`: succeeds without consuming input iff p
// fails at the current position.
type Not struct{ Elem Expr }

// And is positive lookahead `&p`: succeeds without consuming input iff p
// succeeds at the current position (compiled to Choice/BackCommit/Fail).
type And struct{ Elem Expr }

// RuleRef invokes another rule by name (compiled to Call/Return).
type RuleRef struct{ Name string }

// Backref is `@backref(rule)`: at runtime, compares upcoming subject bytes
// against the most recent capture produced by the named rule.
type Backref struct{ Rule string }

func (Literal) exprNode()  {}
func (Class) exprNode()    {}
func (AnyByte) exprNode()  {}
func (Sequence) exprNode() {}
func (Choice) exprNode()   {}
func (Star) exprNode()     {}
func (Plus) exprNode()     {}
func (Optional) exprNode() {}
func (Not) exprNode()      {}
func (And) exprNode()      {}
func (RuleRef) exprNode()  {}
func (Backref) exprNode()  {}

// Annotation is a rule-level tag from spec §3: @show, @highlight[(name)],
// @completion, @static-completion, @whitespaced, @injection-language,
// @inject[(lang)]. Unknown annotation names are rejected at parse time
// with GrammarError{Kind: GrammarBadAnnotation}.
type Annotation struct {
	Name string
	Arg  string // e.g. the highlight group name or injection language; empty if bare
}

// Rule is one named grammar production: `name = expr;` plus any leading
// `@annotation` lines.
type Rule struct {
	Name        string
	Body        Expr
	Annotations []Annotation
}

// Grammar is the parsed (but not yet compiled) form of a `.peg` source
// file: an ordered list of rules, the first of which is the start rule
// unless overridden.
type Grammar struct {
	Rules []Rule
	Start string
}

func (g *Grammar) rule(name string) (Rule, bool) {
	for _, r := range g.Rules {
		if r.Name == name {
			return r, true
		}
	}
	return Rule{}, false
}

func (r Rule) annotation(name string) (Annotation, bool) {
	for _, a := range r.Annotations {
		if a.Name == name {
			return a, true
		}
	}
	return Annotation{}, false
}

func (r Rule) has(name string) bool {
	_, ok := r.annotation(name)
	return ok
}
