package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// GrammarManifest lists the `.peg` grammars a host makes available to
// HighlightDriver, loaded from `grammars.toml` (spec SPEC_FULL §2.3). This
// is go-toml/v2's concrete home: the teacher's go.mod declares it but no
// code path in the teacher's KDL-only config ever exercises it.
type GrammarManifest struct {
	Grammars []GrammarEntry `toml:"grammar"`
}

// GrammarEntry describes one grammar file entry in the manifest.
type GrammarEntry struct {
	Name             string   `toml:"name"`
	Path             string   `toml:"path"`
	InjectionTargets []string `toml:"injection_targets"`
	JITEnabled       bool     `toml:"jit"`
}

// LoadManifest reads and parses a grammars.toml file.
func LoadManifest(path string) (*GrammarManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read grammar manifest: %w", err)
	}
	var m GrammarManifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse grammar manifest: %w", err)
	}
	return &m, nil
}

// ByName returns the entry with the given name, if present.
func (m *GrammarManifest) ByName(name string) (GrammarEntry, bool) {
	for _, g := range m.Grammars {
		if g.Name == name {
			return g, true
		}
	}
	return GrammarEntry{}, false
}
