package grammar

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/edcore/internal/config"
)

func writeGrammarFile(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
}

func TestDiscoverGrammarsFindsPegFilesRecursively(t *testing.T) {
	dir := t.TempDir()
	writeGrammarFile(t, dir, "go.peg", `R = "x";`)
	writeGrammarFile(t, dir, "sub/markdown.peg", `R = "x";`)
	writeGrammarFile(t, dir, "notes.txt", "ignored")

	matches, err := DiscoverGrammars(dir, "")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"go.peg", "sub/markdown.peg"}, matches)
}

func TestLoadSetCompilesEveryManifestEntry(t *testing.T) {
	dir := t.TempDir()
	writeGrammarFile(t, dir, "go.peg", `Digits = [0..9]+;`)
	writeGrammarFile(t, dir, "md.peg", `Word = [a..z]+;`)

	manifest := &config.GrammarManifest{
		Grammars: []config.GrammarEntry{
			{Name: "go", Path: "go.peg"},
			{Name: "markdown", Path: "md.peg"},
		},
	}

	set, errs := LoadSet(dir, manifest)
	require.Empty(t, errs)
	require.Len(t, set, 2)
	require.Contains(t, set, "go")
	require.Contains(t, set, "markdown")
}

func TestLoadSetReportsPerGrammarErrorsWithoutAbortingOthers(t *testing.T) {
	dir := t.TempDir()
	writeGrammarFile(t, dir, "good.peg", `Digits = [0..9]+;`)
	// left-recursive, fails to compile
	writeGrammarFile(t, dir, "bad.peg", `R = R "x";`)

	manifest := &config.GrammarManifest{
		Grammars: []config.GrammarEntry{
			{Name: "good", Path: "good.peg"},
			{Name: "bad", Path: "bad.peg"},
			{Name: "missing", Path: "missing.peg"},
		},
	}

	set, errs := LoadSet(dir, manifest)
	require.Len(t, errs, 2)
	require.Len(t, set, 1)
	require.Contains(t, set, "good")
}
