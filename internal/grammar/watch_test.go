package grammar

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherFiresOnReloadAfterGrammarFileChange(t *testing.T) {
	dir := t.TempDir()
	grammarPath := filepath.Join(dir, "go.peg")
	require.NoError(t, os.WriteFile(grammarPath, []byte(`R = "x";`), 0o644))
	manifestPath := filepath.Join(dir, "grammars.toml")
	require.NoError(t, os.WriteFile(manifestPath, []byte(`[[grammar]]
name = "go"
path = "go.peg"
`), 0o644))

	reloaded := make(chan struct{}, 1)
	w, err := NewWatcher(dir, manifestPath, 20*time.Millisecond, func() {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(grammarPath, []byte(`R = "y";`), 0o644))

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("expected OnReload to fire after grammar file write")
	}
}

func TestWatcherStopIsIdempotentSafe(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "grammars.toml")
	require.NoError(t, os.WriteFile(manifestPath, []byte(""), 0o644))

	w, err := NewWatcher(dir, manifestPath, 0, func() {})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
