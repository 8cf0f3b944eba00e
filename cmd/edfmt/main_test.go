package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/edcore/internal/parser"
)

const testGrammar = `
Start = Kw*;

@highlight(keyword)
@completion
Kw = "if" / "else";
`

func writeTempGrammar(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.peg")
	require.NoError(t, os.WriteFile(path, []byte(testGrammar), 0o644))
	return path
}

func TestLoadLanguageCompilesGrammarFile(t *testing.T) {
	lang, err := loadLanguage(writeTempGrammar(t), "test")
	require.NoError(t, err)
	require.Equal(t, "test", lang.Name)
	require.NotNil(t, lang.Program)
}

func TestLoadLanguageMissingFileReturnsError(t *testing.T) {
	_, err := loadLanguage(filepath.Join(t.TempDir(), "missing.peg"), "test")
	require.Error(t, err)
}

func TestPrintCaptureTreeRendersRuleAndRange(t *testing.T) {
	lang, err := loadLanguage(writeTempGrammar(t), "test")
	require.NoError(t, err)
	root, err := lang.Parse(context.Background(), []byte("ifelse"), nil, nil)
	require.NoError(t, err)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	printCaptureTree(w, root, 0)
	require.NoError(t, w.Close())

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Contains(t, string(out), "Start")
}

func TestDumpBytecodeExportRoundTripsThroughJSON(t *testing.T) {
	lang, err := loadLanguage(writeTempGrammar(t), "test")
	require.NoError(t, err)

	exported := parser.ExportProgram(lang.Program)
	require.NoError(t, parser.ValidateExportedProgram(exported))

	data, err := json.Marshal(exported)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), "\"rules\""))
}
