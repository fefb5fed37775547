package embedding

import (
	"fmt"
	"time"
)

// Config holds configuration for the embedding service
type Config struct {
	// BaseURL of the primary embedding model (e.g. a local Ollama server).
	// Empty disables the primary provider and uses the offline scheme only.
	BaseURL string

	// Model is the primary model name sent with each request
	Model string

	// Dimensions is the length of every vector in a run. The primary model
	// must produce exactly this many; a reply of another length counts as a
	// primary failure. The offline fallback and the elasticsearch mapping use
	// the same value. Default: 768 (nomic-embed-text)
	Dimensions int

	// BatchSize is the number of texts embedded per chunk in EmbedBatch
	// Default: 32
	BatchSize int

	// ChunkDelay is the minimum spacing between chunks sent to the primary provider
	// Default: 100ms
	ChunkDelay time.Duration

	// Timeout for a single primary request
	// Default: 30 seconds
	Timeout time.Duration

	// CachePrefixLen is how much of the text is kept in the cache key
	// Default: 200
	CachePrefixLen int
}

// DefaultConfig returns the default embedding configuration
func DefaultConfig() Config {
	return Config{
		Model:          "nomic-embed-text",
		Dimensions:     768,
		BatchSize:      32,
		ChunkDelay:     100 * time.Millisecond,
		Timeout:        30 * time.Second,
		CachePrefixLen: 200,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.Dimensions < 8 || c.Dimensions > 4096 {
		return fmt.Errorf("dimensions must be between 8 and 4096 (got %d)", c.Dimensions)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive (got %d)", c.BatchSize)
	}
	if c.BatchSize > 256 {
		return fmt.Errorf("batch_size too large (got %d, max 256)", c.BatchSize)
	}
	if c.ChunkDelay < 0 {
		return fmt.Errorf("chunk_delay cannot be negative (got %v)", c.ChunkDelay)
	}
	if c.Timeout < 5*time.Second || c.Timeout > 5*time.Minute {
		return fmt.Errorf("timeout must be between 5s and 5m (got %v)", c.Timeout)
	}
	if c.CachePrefixLen <= 0 {
		return fmt.Errorf("cache_prefix_len must be positive (got %d)", c.CachePrefixLen)
	}
	if c.BaseURL != "" && c.Model == "" {
		return fmt.Errorf("model is required when base_url is set")
	}
	return nil
}
