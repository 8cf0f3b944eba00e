package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	edcerr "github.com/standardbeagle/edcore/internal/errors"
)

func TestParseGrammarSourceSimpleRule(t *testing.T) {
	g, err := ParseGrammarSource([]byte(`Digits = [0..9]+;`))
	require.NoError(t, err)
	require.Len(t, g.Rules, 1)
	require.Equal(t, "Digits", g.Start)
	plus, ok := g.Rules[0].Body.(Plus)
	require.True(t, ok)
	cls, ok := plus.Elem.(Class)
	require.True(t, ok)
	require.True(t, cls.Set.Has('5'))
	require.False(t, cls.Set.Has('a'))
}

func TestParseGrammarSourceChoiceAndSequence(t *testing.T) {
	g, err := ParseGrammarSource([]byte(`R = "ab" / "a";`))
	require.NoError(t, err)
	choice, ok := g.Rules[0].Body.(Choice)
	require.True(t, ok)
	require.Len(t, choice.Alts, 2)
}

func TestParseGrammarSourceAnnotationsAndEscapes(t *testing.T) {
	g, err := ParseGrammarSource([]byte("@highlight(keyword)\nKw = \"if\" / \"\\x65lse\";"))
	require.NoError(t, err)
	ann, ok := g.Rules[0].annotation("highlight")
	require.True(t, ok)
	require.Equal(t, "keyword", ann.Arg)
	choice := g.Rules[0].Body.(Choice)
	lit := choice.Alts[1].(Literal)
	require.Equal(t, []byte("else"), lit.Bytes)
}

func TestParseGrammarSourceUnknownAnnotationRejected(t *testing.T) {
	_, err := ParseGrammarSource([]byte("@bogus\nR = \"x\";"))
	require.Error(t, err)
	var ge *edcerr.GrammarError
	require.ErrorAs(t, err, &ge)
	require.Equal(t, edcerr.GrammarBadAnnotation, ge.Kind)
}

func TestParseGrammarSourceUnknownRuleRejected(t *testing.T) {
	_, err := ParseGrammarSource([]byte(`R = Missing;`))
	require.Error(t, err)
	var ge *edcerr.GrammarError
	require.ErrorAs(t, err, &ge)
	require.Equal(t, edcerr.GrammarUnknownRule, ge.Kind)
}

func TestParseGrammarSourceDirectLeftRecursionRejected(t *testing.T) {
	_, err := ParseGrammarSource([]byte(`R = R "x";`))
	require.Error(t, err)
	var ge *edcerr.GrammarError
	require.ErrorAs(t, err, &ge)
	require.Equal(t, edcerr.GrammarLeftRecursion, ge.Kind)
}

func TestParseGrammarSourceIndirectLeftRecursionRejected(t *testing.T) {
	_, err := ParseGrammarSource([]byte(`A = B "x"; B = A "y";`))
	require.Error(t, err)
	var ge *edcerr.GrammarError
	require.ErrorAs(t, err, &ge)
	require.Equal(t, edcerr.GrammarLeftRecursion, ge.Kind)
}

func TestParseGrammarSourceNegatedClass(t *testing.T) {
	g, err := ParseGrammarSource([]byte(`R = [^\n]*;`))
	require.NoError(t, err)
	star := g.Rules[0].Body.(Star)
	cls := star.Elem.(Class)
	require.False(t, cls.Set.Has('\n'))
	require.True(t, cls.Set.Has('x'))
}

func TestParseGrammarSourceBackrefParsesAsExpected(t *testing.T) {
	g, err := ParseGrammarSource([]byte(`Quoted = Q Body @backref(Q); Q = "\"" / "'"; Body = [^\"]*;`))
	require.NoError(t, err)
	seq, ok := g.Rules[0].Body.(Sequence)
	require.True(t, ok)
	require.Len(t, seq.Elems, 3)
	backref, ok := seq.Elems[2].(Backref)
	require.True(t, ok)
	require.Equal(t, "Q", backref.Rule)
}
