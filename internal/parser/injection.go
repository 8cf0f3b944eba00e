package parser

import (
	"context"

	edcerr "github.com/standardbeagle/edcore/internal/errors"
)

// DefaultInjectionDepth bounds recursive language injection (spec §4.2:
// "implementations must bound recursion by a configurable depth"). A
// Language overrides it through its MaxInjectionDepth field; the grammar
// manifest has no setting for it.
const DefaultInjectionDepth = 8

// GrammarResolver looks up a compiled Program by the language name an
// `@injection-language` capture's text names, or an `@inject(lang)`
// annotation's literal argument.
type GrammarResolver interface {
	Resolve(language string) (*Program, bool)
}

// ResolveInjections walks root (the result of an initial Run) looking for
// `@inject`-marked regions, re-parses each with the named grammar over
// just that subject region, and splices the result in as child captures
// (spec §4.2 "Injection"). maxDepth <= 0 uses DefaultInjectionDepth.
//
// A sub-parse that itself fails is not fatal to the outer result — the
// outer structure still stands for best-effort highlighting — but
// exceeding maxDepth aborts the whole walk, since unbounded injection
// recursion is a grammar authoring bug, not a best-effort degradation.
func ResolveInjections(ctx context.Context, root *CaptureNode, subject []byte, resolver GrammarResolver, maxDepth int) error {
	if maxDepth <= 0 {
		maxDepth = DefaultInjectionDepth
	}
	if resolver == nil {
		return nil
	}
	return injectNode(ctx, root, subject, resolver, maxDepth, 0)
}

func injectNode(ctx context.Context, n *CaptureNode, subject []byte, resolver GrammarResolver, maxDepth, depth int) error {
	if n == nil {
		return nil
	}
	if n.Attrs != nil && n.Attrs.Inject {
		if depth >= maxDepth {
			return &edcerr.InjectionDepthExceededError{Depth: depth, Limit: maxDepth}
		}
		lang := n.Attrs.InjectLang
		if lang == "" {
			lang = findInjectionLanguage(n, subject)
		}
		if lang != "" {
			if prog, ok := resolver.Resolve(lang); ok && n.Start <= n.End && n.End <= len(subject) {
				region := subject[n.Start:n.End]
				child, err := Run(ctx, prog, region, 0)
				if err == nil && child != nil {
					remapOffsets(child, n.Start)
					if err := injectNode(ctx, child, subject, resolver, maxDepth, depth+1); err != nil {
						return err
					}
					n.Children = append(n.Children, child)
				}
			}
		}
	}
	for _, c := range n.Children {
		if err := injectNode(ctx, c, subject, resolver, maxDepth, depth); err != nil {
			return err
		}
	}
	return nil
}

// findInjectionLanguage returns the captured text of the first descendant
// capture tagged `@injection-language`, the dynamic form of naming the
// target grammar (spec §4.2: "a surrounding @inject... A
// @injection-language capture names a language string").
func findInjectionLanguage(n *CaptureNode, subject []byte) string {
	var lang string
	n.Walk(func(c *CaptureNode) {
		if lang != "" || c == n {
			return
		}
		if c.Attrs != nil && c.Attrs.InjectionLanguage && c.Start >= 0 && c.End <= len(subject) && c.Start <= c.End {
			lang = string(subject[c.Start:c.End])
		}
	})
	return lang
}

// remapOffsets shifts every Start/End in the tree rooted at n by delta,
// converting region-relative offsets from a sub-parse back into the
// outer subject's coordinate space.
func remapOffsets(n *CaptureNode, delta int) {
	if n == nil {
		return
	}
	n.Start += delta
	n.End += delta
	for _, c := range n.Children {
		remapOffsets(c, delta)
	}
}
