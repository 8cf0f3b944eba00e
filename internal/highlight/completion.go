package highlight

import (
	"sort"

	"github.com/hbollon/go-edlib"

	"github.com/standardbeagle/edcore/internal/parser"
)

// Completion is one ranked candidate produced by RankCompletions.
type Completion struct {
	Text       string
	Rule       string
	Start      int
	End        int
	Static     bool
	Similarity float64
}

// collectCompletionCandidates walks root collecting the text of every
// capture tagged `@completion` or `@static-completion` (spec §4.2/§6).
func collectCompletionCandidates(root *parser.CaptureNode, subject []byte) []Completion {
	var out []Completion
	root.Walk(func(n *parser.CaptureNode) {
		if n.Attrs == nil || (!n.Attrs.Completion && !n.Attrs.StaticCompletion) {
			return
		}
		if n.Start < 0 || n.End > len(subject) || n.Start > n.End {
			return
		}
		out = append(out, Completion{
			Text:   string(subject[n.Start:n.End]),
			Rule:   n.Rule,
			Start:  n.Start,
			End:    n.End,
			Static: n.Attrs.StaticCompletion,
		})
	})
	return out
}

// RankCompletions collects every `@completion`/`@static-completion`
// capture under root and ranks the distinct candidates against prefix by
// Jaro-Winkler similarity (SPEC_FULL §3 DOMAIN STACK: go-edlib, "rehomed
// from symbol-search ranking to completion-capture ranking"), returning
// the top limit matches best-first. limit <= 0 returns every candidate.
func RankCompletions(root *parser.CaptureNode, subject []byte, prefix string, limit int) []Completion {
	candidates := collectCompletionCandidates(root, subject)
	seen := make(map[string]bool, len(candidates))
	var ranked []Completion
	for _, c := range candidates {
		if c.Text == "" || c.Text == prefix || seen[c.Text] {
			continue
		}
		seen[c.Text] = true
		sim, err := edlib.StringsSimilarity(prefix, c.Text, edlib.JaroWinkler)
		if err != nil {
			sim = 0
		}
		c.Similarity = float64(sim)
		ranked = append(ranked, c)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Similarity > ranked[j].Similarity
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
