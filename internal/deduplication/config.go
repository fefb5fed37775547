package deduplication

import (
	"fmt"
	"time"

	"github.com/steveyegge/intake/internal/similarity"
)

// Config tunes the vector deduplicator. Similarities are cosine values in
// [0,1]; pairs scoring between the two thresholds are reported as near
// duplicates but never clustered.
type Config struct {
	DuplicateThreshold     float64
	NearDuplicateThreshold float64

	// MaxCandidates caps matches per index lookup (1-1000)
	MaxCandidates int

	// FailOpen treats an item as unique when its check fails, recording the
	// failure; otherwise the error is returned
	FailOpen bool

	// MinTextLength skips items whose prompt plus answer is shorter
	MinTextLength int

	// RequestTimeout bounds embedding one item
	RequestTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		DuplicateThreshold:     0.90,
		NearDuplicateThreshold: 0.80,
		MaxCandidates:          50,
		FailOpen:               true,
		MinTextLength:          10,
		RequestTimeout:         30 * time.Second,
	}
}

// Thresholds returns the classification bands
func (c Config) Thresholds() similarity.Thresholds {
	return similarity.Thresholds{Duplicate: c.DuplicateThreshold, NearDuplicate: c.NearDuplicateThreshold}
}

func (c Config) Validate() error {
	for name, v := range map[string]float64{
		"duplicate_threshold":      c.DuplicateThreshold,
		"near_duplicate_threshold": c.NearDuplicateThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s outside [0,1] (got %.2f)", name, v)
		}
	}
	if err := c.Thresholds().Validate(); err != nil {
		return err
	}
	switch {
	case c.MaxCandidates < 1 || c.MaxCandidates > 1000:
		return fmt.Errorf("max_candidates outside 1-1000 (got %d)", c.MaxCandidates)
	case c.MinTextLength < 0 || c.MinTextLength > 500:
		return fmt.Errorf("min_text_length outside 0-500 (got %d)", c.MinTextLength)
	case c.RequestTimeout <= 0 || c.RequestTimeout > 5*time.Minute:
		return fmt.Errorf("request_timeout outside (0, 5m] (got %v)", c.RequestTimeout)
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("dedup duplicate>=%.2f near>=%.2f candidates=%d fail_open=%t min_len=%d timeout=%v",
		c.DuplicateThreshold, c.NearDuplicateThreshold, c.MaxCandidates, c.FailOpen,
		c.MinTextLength, c.RequestTimeout)
}
