package config

import "fmt"

// Validator validates a BufferConfig and fills a zero bucket size or chunk
// size with its default (a zero MaxRetained is kept: it means unbounded),
// mirroring the teacher's ValidateAndSetDefaults split between hard
// validation and smart defaulting.
type Validator struct{}

func NewValidator() *Validator { return &Validator{} }

// ValidateAndSetDefaults rejects negative values and fills a zero
// BucketSize or ChunkSize with its package default.
func (v *Validator) ValidateAndSetDefaults(cfg *BufferConfig) error {
	if cfg.AddStore.BucketSize < 0 {
		return fmt.Errorf("add_store.bucket_size cannot be negative, got %d", cfg.AddStore.BucketSize)
	}
	if cfg.AddStore.BucketSize == 0 {
		cfg.AddStore.BucketSize = DefaultAddStoreBucketSize
	}

	if cfg.Snapshot.MaxRetained < 0 {
		return fmt.Errorf("snapshot.max_retained cannot be negative, got %d", cfg.Snapshot.MaxRetained)
	}

	if cfg.Search.ChunkSize < 0 {
		return fmt.Errorf("search.chunk_size cannot be negative, got %d", cfg.Search.ChunkSize)
	}
	if cfg.Search.ChunkSize == 0 {
		cfg.Search.ChunkSize = DefaultSearchChunkSize
	}

	return nil
}

// ValidateConfig is a convenience wrapper around Validator.
func ValidateConfig(cfg *BufferConfig) error {
	return NewValidator().ValidateAndSetDefaults(cfg)
}
