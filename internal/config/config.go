// Package config loads edcore's two configuration surfaces (spec SPEC_FULL
// §2.3): a per-workspace KDL file controlling buffer/runtime knobs (add-store
// bucket size, snapshot retention, search chunk size), and a TOML grammar
// manifest listing the `.peg` grammars a host makes available to
// HighlightDriver. Adapted from the teacher's internal/config package, which
// loads the same way (KDL file discovery, project-root resolution, default
// fallback) for an entirely different schema (semantic-search indexing); the
// loader shape survives, the fields it populates do not.
package config

import (
	"os"
)

// Defaults for BufferConfig, named the way the teacher names its
// DefaultMaxFileSize-style sane-default constants.
const (
	DefaultAddStoreBucketSize = 16 * 1024 // bytes; matches alloc.BucketTierConfigs' middle tier
	DefaultMaxRetainedSnaps   = 64
	DefaultSearchChunkSize    = 64 * 1024 // bytes per Boyer-Moore search chunk
)

// BufferConfig is the buffer/runtime configuration a host editor loads once
// per workspace (spec SPEC_FULL §2.3). This package loads and validates the
// values; no other package in this module reads them, so applying them is
// up to the host.
type BufferConfig struct {
	Version  int
	AddStore AddStoreConfig
	Snapshot SnapshotConfig
	Search   SearchConfig
}

// AddStoreConfig sizes new Add-store buckets (internal/piecetree's
// append-only insert log).
type AddStoreConfig struct {
	BucketSize int // bytes
}

// SnapshotConfig holds the bound on how many PieceTree snapshots a host
// keeps alive; internal/buffer does not enforce it.
type SnapshotConfig struct {
	MaxRetained int // 0 means unbounded (retain until the host explicitly drops a SnapshotID)
}

// SearchConfig holds a chunk size for buffer-wide search; the piecetree
// search does not read it.
type SearchConfig struct {
	ChunkSize int // bytes
}

// DefaultBufferConfig returns the configuration used when no `.edcore.kdl`
// is found.
func DefaultBufferConfig() *BufferConfig {
	return &BufferConfig{
		Version:  1,
		AddStore: AddStoreConfig{BucketSize: DefaultAddStoreBucketSize},
		Snapshot: SnapshotConfig{MaxRetained: DefaultMaxRetainedSnaps},
		Search:   SearchConfig{ChunkSize: DefaultSearchChunkSize},
	}
}

// Load resolves BufferConfig for a workspace rooted at path: a
// `.edcore.kdl` file under path if present, otherwise DefaultBufferConfig.
func Load(path string) (*BufferConfig, error) {
	cfg, err := LoadKDL(path)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = DefaultBufferConfig()
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
