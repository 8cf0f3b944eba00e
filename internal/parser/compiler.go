package parser

import edcerr "github.com/standardbeagle/edcore/internal/errors"

// Compile turns a parsed Grammar into a Program: each rule becomes a
// contiguous bytecode block (spec §4.2), compiled independently with
// locally-relative jump targets, then concatenated with a final patch
// pass that resolves OpCall targets to each callee rule's global address.
func Compile(g *Grammar) (*Program, error) {
	g, err := desugarGrammar(g)
	if err != nil {
		return nil, err
	}
	if err := checkNoEmptyLoops(g); err != nil {
		return nil, err
	}

	prog := &Program{RuleByName: make(map[string]int, len(g.Rules))}
	for i, r := range g.Rules {
		prog.RuleByName[r.Name] = i
	}

	for _, r := range g.Rules {
		attrs, err := attrsFromAnnotations(r)
		if err != nil {
			return nil, err
		}
		body, err := compileExpr(r.Body)
		if err != nil {
			return nil, err
		}

		addr := len(prog.Code)
		prog.Code = append(prog.Code, Instr{Op: OpCaptureBegin, Name: r.Name, Attrs: attrs})
		prog.Code = append(prog.Code, shiftJumps(body, addr+1)...)
		prog.Code = append(prog.Code, Instr{Op: OpCaptureEnd})
		prog.Code = append(prog.Code, Instr{Op: OpReturn})

		prog.Rules = append(prog.Rules, RuleEntry{Name: r.Name, Addr: addr, Whitespace: r.has("whitespaced")})
	}

	for idx := range prog.Code {
		if prog.Code[idx].Op != OpCall {
			continue
		}
		ruleIdx, ok := prog.RuleByName[prog.Code[idx].Name]
		if !ok {
			return nil, &edcerr.GrammarError{Kind: edcerr.GrammarUnknownRule, Rule: prog.Code[idx].Name}
		}
		prog.Code[idx].Arg = prog.Rules[ruleIdx].Addr
	}

	startIdx, ok := prog.RuleByName[g.Start]
	if !ok {
		return nil, &edcerr.GrammarError{Kind: edcerr.GrammarUnknownRule, Rule: g.Start}
	}
	prog.Entry = prog.Rules[startIdx].Addr
	prog.Code = append(prog.Code, Instr{Op: OpEnd})
	return prog, nil
}

// attrsFromAnnotations builds the CaptureAttrs a rule's CaptureBegin
// carries from its `@...` annotations (spec §3/§6). Unknown annotations
// were already rejected by the grammar-source parser; this only combines
// the recognized set.
func attrsFromAnnotations(r Rule) (*CaptureAttrs, error) {
	if len(r.Annotations) == 0 {
		return nil, nil
	}
	var a CaptureAttrs
	any := false
	for _, ann := range r.Annotations {
		switch ann.Name {
		case "show":
			a.Show, any = true, true
		case "highlight":
			a.Highlight, any = true, true
			a.HighlightTag = ann.Arg
		case "completion":
			a.Completion, any = true, true
		case "static-completion":
			a.StaticCompletion, any = true, true
		case "injection-language":
			a.InjectionLanguage, any = true, true
		case "inject":
			a.Inject, any = true, true
			a.InjectLang = ann.Arg
		case "whitespaced":
			// handled structurally by desugarGrammar, not a capture attr
		default:
			return nil, &edcerr.GrammarError{Kind: edcerr.GrammarBadAnnotation, Rule: r.Name}
		}
	}
	if !any {
		return nil, nil
	}
	return &a, nil
}

// shiftJumps returns code with every jump-target Arg (Choice, Jump,
// Commit, PartialCommit, BackCommit) increased by delta, so a
// self-contained, locally-addressed instruction block can be spliced into
// a larger one starting at a non-zero offset. OpCall's Arg is untouched —
// it is resolved once, globally, by Compile's final patch pass.
func shiftJumps(code []Instr, delta int) []Instr {
	for i := range code {
		switch code[i].Op {
		case OpChoice, OpJump, OpCommit, OpPartialCommit, OpBackCommit:
			code[i].Arg += delta
		}
	}
	return code
}

// compileExpr compiles e into a self-contained instruction block whose
// internal jump targets are addresses relative to index 0 of the
// returned slice.
func compileExpr(e Expr) ([]Instr, error) {
	switch n := e.(type) {
	case Literal:
		code := make([]Instr, len(n.Bytes))
		for i, b := range n.Bytes {
			code[i] = Instr{Op: OpChar, Byte: b}
		}
		return code, nil
	case Class:
		set := n.Set
		return []Instr{{Op: OpSet, Class: &set}}, nil
	case AnyByte:
		return []Instr{{Op: OpAny}}, nil
	case RuleRef:
		return []Instr{{Op: OpCall, Name: n.Name}}, nil
	case Backref:
		return []Instr{{Op: OpBackref, Name: n.Rule}}, nil
	case Sequence:
		return compileSequence(n.Elems)
	case Choice:
		return compileChoice(n.Alts)
	case Star:
		return compileStar(n.Elem)
	case Plus:
		head, err := compileExpr(n.Elem)
		if err != nil {
			return nil, err
		}
		tail, err := compileStar(n.Elem)
		if err != nil {
			return nil, err
		}
		return append(head, shiftJumps(tail, len(head))...), nil
	case Optional:
		return compileOptional(n.Elem)
	case Not:
		return compileNot(n.Elem)
	case And:
		return compileAnd(n.Elem)
	default:
		return nil, &edcerr.GrammarError{Kind: edcerr.GrammarBadClass}
	}
}

func compileSequence(elems []Expr) ([]Instr, error) {
	var code []Instr
	for _, e := range elems {
		part, err := compileExpr(e)
		if err != nil {
			return nil, err
		}
		code = append(code, shiftJumps(part, len(code))...)
	}
	return code, nil
}

// compileStar applies the Span peephole for the common case of a bare
// character class repeated (spec §4.2: "TestChar and Span are peephole
// optimizations for common classes"), and otherwise the general
// Choice/PartialCommit loop.
func compileStar(elem Expr) ([]Instr, error) {
	if cls, ok := elem.(Class); ok {
		set := cls.Set
		return []Instr{{Op: OpSpan, Class: &set}}, nil
	}
	body, err := compileExpr(elem)
	if err != nil {
		return nil, err
	}
	total := 1 + len(body) + 1
	code := make([]Instr, 0, total)
	code = append(code, Instr{Op: OpChoice, Arg: total})
	code = append(code, shiftJumps(body, 1)...)
	code = append(code, Instr{Op: OpPartialCommit, Arg: 1})
	return code, nil
}

func compileOptional(elem Expr) ([]Instr, error) {
	body, err := compileExpr(elem)
	if err != nil {
		return nil, err
	}
	total := 1 + len(body) + 1
	code := make([]Instr, 0, total)
	code = append(code, Instr{Op: OpChoice, Arg: total})
	code = append(code, shiftJumps(body, 1)...)
	code = append(code, Instr{Op: OpCommit, Arg: total})
	return code, nil
}

func compileNot(elem Expr) ([]Instr, error) {
	body, err := compileExpr(elem)
	if err != nil {
		return nil, err
	}
	total := 1 + len(body) + 1
	code := make([]Instr, 0, total)
	code = append(code, Instr{Op: OpChoice, Arg: total})
	code = append(code, shiftJumps(body, 1)...)
	code = append(code, Instr{Op: OpFailTwice})
	return code, nil
}

func compileAnd(elem Expr) ([]Instr, error) {
	body, err := compileExpr(elem)
	if err != nil {
		return nil, err
	}
	failAddr := 2 + len(body)
	total := failAddr + 1
	code := make([]Instr, 0, total)
	code = append(code, Instr{Op: OpChoice, Arg: failAddr})
	code = append(code, shiftJumps(body, 1)...)
	code = append(code, Instr{Op: OpBackCommit, Arg: total})
	code = append(code, Instr{Op: OpFail})
	return code, nil
}

func compileChoice(alts []Expr) ([]Instr, error) {
	if len(alts) == 0 {
		return nil, &edcerr.GrammarError{Kind: edcerr.GrammarBadClass}
	}
	if len(alts) == 1 {
		return compileExpr(alts[0])
	}
	first, err := compileExpr(alts[0])
	if err != nil {
		return nil, err
	}
	rest, err := compileChoice(alts[1:])
	if err != nil {
		return nil, err
	}
	commitAddr := 1 + len(first)
	restStart := commitAddr + 1
	total := restStart + len(rest)

	code := make([]Instr, 0, total)
	code = append(code, Instr{Op: OpChoice, Arg: restStart})
	code = append(code, shiftJumps(first, 1)...)
	code = append(code, Instr{Op: OpCommit, Arg: total})
	code = append(code, shiftJumps(rest, restStart)...)
	return code, nil
}
