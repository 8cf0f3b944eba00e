package parser

import (
	"strconv"
	"unicode/utf8"

	edcerr "github.com/standardbeagle/edcore/internal/errors"
)

// ParseGrammarSource parses textual PEG grammar source (spec §6) into a
// Grammar AST. The grammar of grammars is itself a PEG; rather than
// bootstrap that through ParserVM, this is a small hand-written
// recursive-descent parser over the same surface syntax — the same
// division of labor the teacher draws between its tree-sitter bindings
// (here: this file) and the logic built on top of a parsed tree.
func ParseGrammarSource(src []byte) (*Grammar, error) {
	p := &srcParser{src: src}
	p.skipSpace()
	var g Grammar
	for p.pos < len(p.src) {
		rule, err := p.parseRule()
		if err != nil {
			return nil, err
		}
		g.Rules = append(g.Rules, rule)
		p.skipSpace()
	}
	if len(g.Rules) == 0 {
		return nil, &edcerr.GrammarError{Kind: edcerr.GrammarBadClass, Position: 0, Rule: ""}
	}
	g.Start = g.Rules[0].Name
	if err := validateRefs(&g); err != nil {
		return nil, err
	}
	return &g, nil
}

type srcParser struct {
	src []byte
	pos int
}

func (p *srcParser) errf(kind edcerr.GrammarErrorKind, rule string) error {
	return &edcerr.GrammarError{Kind: kind, Position: p.pos, Rule: rule}
}

func (p *srcParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *srcParser) at(s string) bool {
	return p.pos+len(s) <= len(p.src) && string(p.src[p.pos:p.pos+len(s)]) == s
}

func (p *srcParser) skipSpace() {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			p.pos++
		case c == '#': // line comment
			for p.pos < len(p.src) && p.src[p.pos] != '\n' {
				p.pos++
			}
		default:
			return
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '-'
}

func (p *srcParser) parseIdent() (string, bool) {
	start := p.pos
	if p.pos >= len(p.src) || !isIdentStart(p.src[p.pos]) {
		return "", false
	}
	p.pos++
	for p.pos < len(p.src) && isIdentCont(p.src[p.pos]) {
		p.pos++
	}
	return string(p.src[start:p.pos]), true
}

// parseRule parses `@annotation* name "=" choice ";"`.
func (p *srcParser) parseRule() (Rule, error) {
	var anns []Annotation
	for p.peek() == '@' {
		ann, err := p.parseAnnotation()
		if err != nil {
			return Rule{}, err
		}
		anns = append(anns, ann)
		p.skipSpace()
	}
	name, ok := p.parseIdent()
	if !ok {
		return Rule{}, p.errf(edcerr.GrammarBadClass, "")
	}
	p.skipSpace()
	if p.peek() != '=' {
		return Rule{}, p.errf(edcerr.GrammarBadClass, name)
	}
	p.pos++
	p.skipSpace()
	body, err := p.parseChoice(name)
	if err != nil {
		return Rule{}, err
	}
	p.skipSpace()
	if p.peek() != ';' {
		return Rule{}, p.errf(edcerr.GrammarBadClass, name)
	}
	p.pos++
	return Rule{Name: name, Body: body, Annotations: anns}, nil
}

var knownAnnotations = map[string]bool{
	"show": true, "highlight": true, "completion": true,
	"static-completion": true, "whitespaced": true,
	"injection-language": true, "inject": true,
}

func (p *srcParser) parseAnnotation() (Annotation, error) {
	start := p.pos
	p.pos++ // '@'
	name, ok := p.parseIdent()
	if !ok {
		return Annotation{}, p.errf(edcerr.GrammarBadAnnotation, "")
	}
	if !knownAnnotations[name] {
		return Annotation{}, &edcerr.GrammarError{Kind: edcerr.GrammarBadAnnotation, Position: start, Rule: name}
	}
	var arg string
	if p.peek() == '(' {
		p.pos++
		argStart := p.pos
		for p.pos < len(p.src) && p.src[p.pos] != ')' {
			p.pos++
		}
		if p.pos >= len(p.src) {
			return Annotation{}, p.errf(edcerr.GrammarBadAnnotation, name)
		}
		arg = string(p.src[argStart:p.pos])
		p.pos++ // ')'
	}
	return Annotation{Name: name, Arg: arg}, nil
}

// parseChoice parses `sequence ("/" sequence)*`.
func (p *srcParser) parseChoice(ruleName string) (Expr, error) {
	first, err := p.parseSequence(ruleName)
	if err != nil {
		return nil, err
	}
	alts := []Expr{first}
	for {
		p.skipSpace()
		if p.peek() != '/' {
			break
		}
		p.pos++
		p.skipSpace()
		alt, err := p.parseSequence(ruleName)
		if err != nil {
			return nil, err
		}
		alts = append(alts, alt)
	}
	if len(alts) == 1 {
		return alts[0], nil
	}
	return Choice{Alts: alts}, nil
}

func (p *srcParser) atSequenceEnd() bool {
	p.skipSpace()
	return p.pos >= len(p.src) || p.peek() == ';' || p.peek() == '/' || p.peek() == ')'
}

// parseSequence parses one or more prefix expressions until a sequence
// terminator (`;`, `/`, `)`, or end of input).
func (p *srcParser) parseSequence(ruleName string) (Expr, error) {
	var elems []Expr
	for !p.atSequenceEnd() {
		e, err := p.parsePrefix(ruleName)
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	if len(elems) == 0 {
		return nil, p.errf(edcerr.GrammarBadClass, ruleName)
	}
	if len(elems) == 1 {
		return elems[0], nil
	}
	return Sequence{Elems: elems}, nil
}

// parsePrefix parses `("!"|"&")? suffix`.
func (p *srcParser) parsePrefix(ruleName string) (Expr, error) {
	switch p.peek() {
	case '!':
		p.pos++
		p.skipSpace()
		e, err := p.parseSuffix(ruleName)
		if err != nil {
			return nil, err
		}
		return Not{Elem: e}, nil
	case '&':
		p.pos++
		p.skipSpace()
		e, err := p.parseSuffix(ruleName)
		if err != nil {
			return nil, err
		}
		return And{Elem: e}, nil
	default:
		return p.parseSuffix(ruleName)
	}
}

// parseSuffix parses `primary ("*"|"+"|"?")?`.
func (p *srcParser) parseSuffix(ruleName string) (Expr, error) {
	e, err := p.parsePrimary(ruleName)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	switch p.peek() {
	case '*':
		p.pos++
		return Star{Elem: e}, nil
	case '+':
		p.pos++
		return Plus{Elem: e}, nil
	case '?':
		p.pos++
		return Optional{Elem: e}, nil
	default:
		return e, nil
	}
}

func (p *srcParser) parsePrimary(ruleName string) (Expr, error) {
	p.skipSpace()
	switch {
	case p.peek() == '(':
		p.pos++
		p.skipSpace()
		e, err := p.parseChoice(ruleName)
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return nil, p.errf(edcerr.GrammarBadClass, ruleName)
		}
		p.pos++
		return e, nil
	case p.peek() == '"':
		return p.parseLiteral(ruleName)
	case p.peek() == '[':
		return p.parseClass(ruleName)
	case p.peek() == '.':
		p.pos++
		return AnyByte{}, nil
	case p.at("@backref"):
		p.pos += len("@backref")
		p.skipSpace()
		if p.peek() != '(' {
			return nil, p.errf(edcerr.GrammarBadAnnotation, ruleName)
		}
		p.pos++
		name, ok := p.parseIdent()
		if !ok {
			return nil, p.errf(edcerr.GrammarBadAnnotation, ruleName)
		}
		p.skipSpace()
		if p.peek() != ')' {
			return nil, p.errf(edcerr.GrammarBadAnnotation, ruleName)
		}
		p.pos++
		return Backref{Rule: name}, nil
	case isIdentStart(p.peek()):
		name, _ := p.parseIdent()
		return RuleRef{Name: name}, nil
	default:
		return nil, p.errf(edcerr.GrammarBadClass, ruleName)
	}
}

func (p *srcParser) parseLiteral(ruleName string) (Expr, error) {
	p.pos++ // opening quote
	var out []byte
	for {
		if p.pos >= len(p.src) {
			return nil, p.errf(edcerr.GrammarBadClass, ruleName)
		}
		c := p.src[p.pos]
		if c == '"' {
			p.pos++
			break
		}
		if c == '\\' {
			b, n, err := p.parseEscape(ruleName)
			if err != nil {
				return nil, err
			}
			out = append(out, b...)
			p.pos += n
			continue
		}
		out = append(out, c)
		p.pos++
	}
	return Literal{Bytes: out}, nil
}

// parseEscape decodes one backslash escape at p.src[p.pos:] (the backslash
// itself), returning the decoded bytes and the number of source bytes
// consumed (including the leading backslash). It does not advance p.pos —
// callers do that with the returned count so parseClass can reuse it for
// range endpoints without committing to a literal.
func (p *srcParser) parseEscape(ruleName string) ([]byte, int, error) {
	src := p.src[p.pos:]
	if len(src) < 2 {
		return nil, 0, p.errf(edcerr.GrammarBadClass, ruleName)
	}
	switch src[1] {
	case 'n':
		return []byte{'\n'}, 2, nil
	case 'r':
		return []byte{'\r'}, 2, nil
	case 't':
		return []byte{'\t'}, 2, nil
	case '\\':
		return []byte{'\\'}, 2, nil
	case '"':
		return []byte{'"'}, 2, nil
	case 'x':
		if len(src) < 4 {
			return nil, 0, p.errf(edcerr.GrammarBadClass, ruleName)
		}
		v, err := strconv.ParseUint(string(src[2:4]), 16, 8)
		if err != nil {
			return nil, 0, p.errf(edcerr.GrammarBadClass, ruleName)
		}
		return []byte{byte(v)}, 4, nil
	case 'u':
		rest := src[2:]
		hexLen := 0
		for hexLen < len(rest) && isHex(rest[hexLen]) {
			hexLen++
		}
		if hexLen == 0 {
			return nil, 0, p.errf(edcerr.GrammarBadClass, ruleName)
		}
		v, err := strconv.ParseUint(string(rest[:hexLen]), 16, 32)
		if err != nil || v > utf8.MaxRune {
			return nil, 0, p.errf(edcerr.GrammarBadClass, ruleName)
		}
		buf := make([]byte, utf8.UTFMax)
		n := utf8.EncodeRune(buf, rune(v))
		return buf[:n], 2 + hexLen, nil
	default:
		return nil, 0, p.errf(edcerr.GrammarBadClass, ruleName)
	}
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// classEndpoint is one literal or escaped endpoint parsed inside a class,
// retained as both its decoded byte sequence (for UTF-8-aware ranges) and
// its single-byte form when it is exactly one byte (for byte ranges).
type classEndpoint struct {
	bytes []byte
}

func (p *srcParser) parseClassEndpoint(ruleName string) (classEndpoint, error) {
	if p.peek() == '\\' {
		b, n, err := p.parseEscape(ruleName)
		if err != nil {
			return classEndpoint{}, err
		}
		p.pos += n
		return classEndpoint{bytes: b}, nil
	}
	if p.pos >= len(p.src) {
		return classEndpoint{}, p.errf(edcerr.GrammarBadClass, ruleName)
	}
	r, n := utf8.DecodeRune(p.src[p.pos:])
	if r == utf8.RuneError && n <= 1 {
		return classEndpoint{}, p.errf(edcerr.GrammarBadClass, ruleName)
	}
	endpoint := classEndpoint{bytes: append([]byte(nil), p.src[p.pos:p.pos+n]...)}
	p.pos += n
	return endpoint, nil
}

// parseClass parses `"[" "^"? (endpoint (".." endpoint)?)+ "]"`, desugaring
// ranges into a ByteClass per spec §4.2 desugar rule 1: a UTF-8-decoded
// (multi-byte) endpoint range expands to the disjunction of scalar values
// it covers re-encoded as UTF-8 byte sequences; the negation of the
// resulting set is taken over the full byte alphabet once `^` applies,
// matching the byte-oriented VM (classes always compile to a ByteClass
// over the *first* byte of a sequence — multi-byte ranges are built by
// this function as a Choice of Literal byte sequences instead).
func (p *srcParser) parseClass(ruleName string) (Expr, error) {
	p.pos++ // '['
	negate := false
	if p.peek() == '^' {
		negate = true
		p.pos++
	}
	var set ByteClass
	var multiByte []Expr
	for p.peek() != ']' {
		if p.pos >= len(p.src) {
			return nil, p.errf(edcerr.GrammarBadClass, ruleName)
		}
		lo, err := p.parseClassEndpoint(ruleName)
		if err != nil {
			return nil, err
		}
		if p.at("..") {
			p.pos += 2
			hi, err := p.parseClassEndpoint(ruleName)
			if err != nil {
				return nil, err
			}
			rangeSet, extra, err := expandRange(lo, hi)
			if err != nil {
				return nil, p.errf(edcerr.GrammarBadClass, ruleName)
			}
			set = set.Union(rangeSet)
			multiByte = append(multiByte, extra...)
			continue
		}
		if len(lo.bytes) == 1 {
			set.Set(lo.bytes[0])
		} else {
			multiByte = append(multiByte, Literal{Bytes: lo.bytes})
		}
	}
	p.pos++ // ']'

	if negate {
		if len(multiByte) != 0 {
			// Negating a class containing UTF-8 multi-byte scalar ranges
			// would require the general complement over all of [0,10FFFF]
			// minus those ranges; the VM's Set instruction only tests a
			// single byte, so that general form is out of scope. Grammars
			// needing it should name the positive class and wrap it in a
			// top-level `!` instead.
			return nil, p.errf(edcerr.GrammarBadClass, ruleName)
		}
		set = set.Negate()
	}
	if len(multiByte) == 0 {
		return Class{Set: set}, nil
	}
	alts := append([]Expr{Class{Set: set}}, multiByte...)
	return Choice{Alts: alts}, nil
}

// expandRange builds the ByteClass for a single-byte range lo..hi, or, for
// a UTF-8 scalar range whose endpoints decode to runes beyond one byte,
// returns per-codepoint Literal alternatives instead (bounded so a runaway
// ` ..ჿff` style range doesn't explode into a million literals —
// such ranges should be written using ASCII/byte endpoints or a dedicated
// rule; this mirrors the spec's single-byte-class VM instruction set,
// which has no native multi-byte range opcode).
func expandRange(lo, hi classEndpoint) (ByteClass, []Expr, error) {
	var set ByteClass
	if len(lo.bytes) == 1 && len(hi.bytes) == 1 {
		a, b := lo.bytes[0], hi.bytes[0]
		if a > b {
			a, b = b, a
		}
		for v := int(a); v <= int(b); v++ {
			set.Set(byte(v))
		}
		return set, nil, nil
	}
	loR, _ := utf8.DecodeRune(lo.bytes)
	hiR, _ := utf8.DecodeRune(hi.bytes)
	if loR == utf8.RuneError || hiR == utf8.RuneError || hiR < loR {
		return set, nil, errBadRange
	}
	const maxExpansion = 4096
	if int(hiR-loR)+1 > maxExpansion {
		return set, nil, errBadRange
	}
	var alts []Expr
	for r := loR; r <= hiR; r++ {
		buf := make([]byte, utf8.UTFMax)
		n := utf8.EncodeRune(buf, r)
		if n == 1 {
			set.Set(buf[0])
		} else {
			alts = append(alts, Literal{Bytes: buf[:n]})
		}
	}
	return set, alts, nil
}

var errBadRange = &edcerr.GrammarError{Kind: edcerr.GrammarBadClass}

// validateRefs checks every RuleRef and Backref names a rule that exists,
// and rejects direct and indirect left recursion, both GrammarError
// conditions per spec §4.2/§7.
func validateRefs(g *Grammar) error {
	names := make(map[string]bool, len(g.Rules))
	for _, r := range g.Rules {
		names[r.Name] = true
	}
	for _, r := range g.Rules {
		if err := walkRefs(r.Body, func(name string) error {
			if !names[name] {
				return &edcerr.GrammarError{Kind: edcerr.GrammarUnknownRule, Rule: name}
			}
			return nil
		}); err != nil {
			return err
		}
	}
	visiting := make(map[string]bool)
	done := make(map[string]bool)
	var check func(name string) error
	check = func(name string) error {
		if done[name] {
			return nil
		}
		if visiting[name] {
			return &edcerr.GrammarError{Kind: edcerr.GrammarLeftRecursion, Rule: name}
		}
		visiting[name] = true
		r, _ := g.rule(name)
		if err := checkLeftRecursive(r.Body, check); err != nil {
			return err
		}
		visiting[name] = false
		done[name] = true
		return nil
	}
	for _, r := range g.Rules {
		if err := check(r.Name); err != nil {
			return err
		}
	}
	return nil
}

// walkRefs visits every RuleRef/Backref name reachable from e.
func walkRefs(e Expr, visit func(string) error) error {
	switch n := e.(type) {
	case RuleRef:
		return visit(n.Name)
	case Backref:
		return visit(n.Rule)
	case Sequence:
		for _, c := range n.Elems {
			if err := walkRefs(c, visit); err != nil {
				return err
			}
		}
	case Choice:
		for _, c := range n.Alts {
			if err := walkRefs(c, visit); err != nil {
				return err
			}
		}
	case Star:
		return walkRefs(n.Elem, visit)
	case Plus:
		return walkRefs(n.Elem, visit)
	case Optional:
		return walkRefs(n.Elem, visit)
	case Not:
		return walkRefs(n.Elem, visit)
	case And:
		return walkRefs(n.Elem, visit)
	}
	return nil
}

// checkLeftRecursive follows only the positions a rule can reach without
// having consumed input yet: the first element of a Sequence, every
// alternative of a Choice, and through Star/Plus/Optional/Not/And
// wrappers, calling check on any RuleRef found there.
func checkLeftRecursive(e Expr, check func(string) error) error {
	switch n := e.(type) {
	case RuleRef:
		return check(n.Name)
	case Sequence:
		if len(n.Elems) > 0 {
			return checkLeftRecursive(n.Elems[0], check)
		}
	case Choice:
		for _, a := range n.Alts {
			if err := checkLeftRecursive(a, check); err != nil {
				return err
			}
		}
	case Star:
		return checkLeftRecursive(n.Elem, check)
	case Plus:
		return checkLeftRecursive(n.Elem, check)
	case Optional:
		return checkLeftRecursive(n.Elem, check)
	case Not:
		return checkLeftRecursive(n.Elem, check)
	case And:
		return checkLeftRecursive(n.Elem, check)
	}
	return nil
}
