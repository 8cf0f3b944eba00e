package highlight

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/edcore/internal/parser"
)

func parseForTest(t *testing.T, grammarSrc, subject string) (*parser.CaptureNode, []byte) {
	t.Helper()
	lang, err := parser.NewLanguage("test", []byte(grammarSrc))
	require.NoError(t, err)
	src := []byte(subject)
	root, err := lang.Parse(context.Background(), src, nil, nil)
	require.NoError(t, err)
	return root, src
}

func TestRankCompletionsOrdersByJaroWinklerSimilarity(t *testing.T) {
	grammarSrc := `Doc = Word (" " Word)*;
@completion
Word = [a..zA..Z]+;`
	root, src := parseForTest(t, grammarSrc, "print println printf")

	results := RankCompletions(root, src, "prin", 0)
	require.NotEmpty(t, results)
	require.Equal(t, "print", results[0].Text)
}

func TestRankCompletionsDeduplicatesIdenticalCandidates(t *testing.T) {
	grammarSrc := `Doc = Word (" " Word)*;
@completion
Word = [a..zA..Z]+;`
	root, src := parseForTest(t, grammarSrc, "foo foo foo")

	results := RankCompletions(root, src, "fo", 0)
	require.Len(t, results, 1)
	require.Equal(t, "foo", results[0].Text)
}

func TestRankCompletionsRespectsLimit(t *testing.T) {
	grammarSrc := `Doc = Word (" " Word)*;
@completion
Word = [a..zA..Z]+;`
	root, src := parseForTest(t, grammarSrc, "alpha beta gamma delta")

	results := RankCompletions(root, src, "a", 2)
	require.Len(t, results, 2)
}

func TestRankCompletionsIncludesStaticCompletionCaptures(t *testing.T) {
	grammarSrc := `Doc = Word;
@static-completion
Word = "keyword";`
	root, src := parseForTest(t, grammarSrc, "keyword")

	results := RankCompletions(root, src, "key", 0)
	require.Len(t, results, 1)
	require.True(t, results[0].Static)
}
