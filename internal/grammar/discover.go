// Package grammar discovers `.peg` grammar files under a directory and
// loads them into a parser.LanguageSet, with an optional fsnotify-backed
// watcher that hot-reloads a grammar when its source file or the manifest
// changes (SPEC_FULL §3: "Optional grammar-directory watcher...that
// hot-reloads .peg files and the grammars.toml manifest when a grammar
// author edits them during development").
package grammar

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/edcore/internal/config"
	"github.com/standardbeagle/edcore/internal/parser"
)

// DefaultPattern matches every `.peg` file at any depth under a grammar
// directory.
const DefaultPattern = "**/*.peg"

// DiscoverGrammars globs pattern (DefaultPattern if empty) under root and
// returns the matched file paths, relative to root. This is filesystem
// discovery only — it does not compile anything — matching the teacher's
// doublestar usage for include/exclude file-pattern matching, not the
// spec's own glob-as-grammar-surface (which Non-goals excludes; that
// surface remains compiled through ParserVM, not doublestar).
func DiscoverGrammars(root, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	fsys := os.DirFS(root)
	matches, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("grammar: globbing %q under %q: %w", pattern, root, err)
	}
	return matches, nil
}

// LoadSet discovers grammars under root per manifest's entries, compiles
// each, and returns them as a parser.LanguageSet keyed by manifest name. A
// grammar file that fails to parse/compile is reported as part of a
// MultiError-style aggregate rather than aborting the whole load, so one
// broken grammar doesn't block every other language from loading.
func LoadSet(root string, manifest *config.GrammarManifest) (parser.LanguageSet, []error) {
	set := make(parser.LanguageSet, len(manifest.Grammars))
	var errs []error
	for _, entry := range manifest.Grammars {
		path := filepath.Join(root, entry.Path)
		src, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("grammar %q: reading %s: %w", entry.Name, path, err))
			continue
		}
		lang, err := parser.NewLanguage(entry.Name, src)
		if err != nil {
			errs = append(errs, fmt.Errorf("grammar %q: compiling %s: %w", entry.Name, path, err))
			continue
		}
		set[entry.Name] = lang
	}
	return set, errs
}
