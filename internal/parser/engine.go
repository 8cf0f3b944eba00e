package parser

import (
	"context"
	"fmt"
)

// Engine runs a compiled Program against a subject and returns its
// capture tree. The default Engine is the bytecode Interpreter; a JIT
// backend implements the same interface (spec §4.2: "Selection between
// interpreter and JIT is a runtime switch; both must pass the same test
// vector").
type Engine interface {
	Name() string
	Run(ctx context.Context, prog *Program, subject []byte, from int) (*CaptureNode, error)
}

// Interpreter is the stack-machine Engine implemented by vm.go.
type Interpreter struct{}

func (Interpreter) Name() string { return "interpreter" }

func (Interpreter) Run(ctx context.Context, prog *Program, subject []byte, from int) (*CaptureNode, error) {
	return Run(ctx, prog, subject, from)
}

// EngineRegistry is the seam a host can register an alternative Engine
// backend through — e.g. a native-codegen JIT — without the rest of the
// module depending on its package. This mirrors the teacher's
// CommunityParserAdapter/CommunityParserRegistry shape: a name-keyed
// registry of pluggable backends with a default fallback, rehomed from
// selecting a tree-sitter grammar binding to selecting a ParserVM
// execution strategy. No JIT backend ships in this module (spec §4.2
// marks it optional); Register exists so one can be added without
// touching vm.go.
type EngineRegistry struct {
	engines map[string]Engine
	active  string
}

// NewEngineRegistry returns a registry seeded with the interpreter,
// selected by default.
func NewEngineRegistry() *EngineRegistry {
	r := &EngineRegistry{engines: make(map[string]Engine)}
	r.Register(Interpreter{})
	r.active = "interpreter"
	return r
}

// Register adds or replaces a named backend.
func (r *EngineRegistry) Register(e Engine) {
	r.engines[e.Name()] = e
}

// Select switches the active backend by name, returning an error if it
// isn't registered.
func (r *EngineRegistry) Select(name string) error {
	if _, ok := r.engines[name]; !ok {
		return fmt.Errorf("parser: engine %q is not registered", name)
	}
	r.active = name
	return nil
}

// Active returns the currently selected Engine.
func (r *EngineRegistry) Active() Engine {
	return r.engines[r.active]
}

// Run dispatches to the active Engine.
func (r *EngineRegistry) Run(ctx context.Context, prog *Program, subject []byte, from int) (*CaptureNode, error) {
	return r.Active().Run(ctx, prog, subject, from)
}
