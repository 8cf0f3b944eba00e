package parser

import "context"

// Language binds a compiled grammar to the name other grammars reference
// it by during injection (spec §4.2), plus the injection depth bound its
// parses use. The grammar manifest does not set MaxInjectionDepth.
type Language struct {
	Name              string
	Program           *Program
	MaxInjectionDepth int // 0 means DefaultInjectionDepth
}

// NewLanguage parses and compiles src into a named Language.
func NewLanguage(name string, src []byte) (*Language, error) {
	g, err := ParseGrammarSource(src)
	if err != nil {
		return nil, err
	}
	prog, err := Compile(g)
	if err != nil {
		return nil, err
	}
	return &Language{Name: name, Program: prog}, nil
}

// Parse runs l's Program over subject via engine, then resolves any
// `@inject` regions against resolver, returning the fully-injected
// capture tree.
func (l *Language) Parse(ctx context.Context, subject []byte, engine Engine, resolver GrammarResolver) (*CaptureNode, error) {
	if engine == nil {
		engine = Interpreter{}
	}
	root, err := engine.Run(ctx, l.Program, subject, 0)
	if err != nil {
		return nil, err
	}
	if err := ResolveInjections(ctx, root, subject, resolver, l.MaxInjectionDepth); err != nil {
		return nil, err
	}
	return root, nil
}

// LanguageSet is a simple name-keyed GrammarResolver backed by a fixed
// map, the form `internal/grammar`'s manifest loader builds at startup.
type LanguageSet map[string]*Language

func (s LanguageSet) Resolve(name string) (*Program, bool) {
	l, ok := s[name]
	if !ok {
		return nil, false
	}
	return l.Program, true
}
