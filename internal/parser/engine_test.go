package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeEngine struct{ name string }

func (f fakeEngine) Name() string { return f.name }

func (f fakeEngine) Run(ctx context.Context, prog *Program, subject []byte, from int) (*CaptureNode, error) {
	return Run(ctx, prog, subject, from)
}

func TestEngineRegistryDefaultsToInterpreter(t *testing.T) {
	reg := NewEngineRegistry()
	require.Equal(t, "interpreter", reg.Active().Name())
}

func TestEngineRegistrySelectSwitchesActiveBackend(t *testing.T) {
	reg := NewEngineRegistry()
	reg.Register(fakeEngine{name: "jit"})
	require.NoError(t, reg.Select("jit"))
	require.Equal(t, "jit", reg.Active().Name())
}

func TestEngineRegistrySelectUnknownNameFails(t *testing.T) {
	reg := NewEngineRegistry()
	err := reg.Select("nope")
	require.Error(t, err)
	require.Equal(t, "interpreter", reg.Active().Name())
}

func TestEngineRegistryRunDelegatesToActiveBackend(t *testing.T) {
	prog := compileSource(t, `Digits = [0..9]+;`)
	reg := NewEngineRegistry()
	node, err := reg.Run(context.Background(), prog, []byte("42x"), 0)
	require.NoError(t, err)
	require.Equal(t, "Digits", node.Rule)
	require.Equal(t, 2, node.End)
}
