package gates

import (
	"fmt"
	"math"

	"github.com/steveyegge/intake/internal/config"
	"github.com/steveyegge/intake/internal/deduplication"
)

// Weights are the contributions of each sub-score to the overall score.
// Structure carries no weight; it only decides whether the item is scored at all.
type Weights struct {
	Duplicate  float64
	Content    float64
	Difficulty float64
	Relevance  float64
	Media      float64
}

// DefaultWeights returns the default sub-score weights
func DefaultWeights() Weights {
	return Weights{
		Duplicate:  0.25,
		Content:    0.30,
		Difficulty: 0.15,
		Relevance:  0.20,
		Media:      0.10,
	}
}

// WeightsFromMap builds Weights from named values, keeping defaults for missing names
func WeightsFromMap(m map[string]float64) (Weights, error) {
	w := DefaultWeights()
	for name, v := range m {
		switch name {
		case "duplicate":
			w.Duplicate = v
		case "content":
			w.Content = v
		case "difficulty":
			w.Difficulty = v
		case "relevance":
			w.Relevance = v
		case "media":
			w.Media = v
		default:
			return w, fmt.Errorf("unknown weight %q", name)
		}
	}
	return w, w.Validate()
}

// Validate checks that weights are non-negative and sum to 1.0
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"duplicate": w.Duplicate, "content": w.Content, "difficulty": w.Difficulty,
		"relevance": w.Relevance, "media": w.Media,
	} {
		if v < 0 {
			return fmt.Errorf("weight %s cannot be negative (got %.2f)", name, v)
		}
	}
	sum := w.Duplicate + w.Content + w.Difficulty + w.Relevance + w.Media
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("weights must sum to 1.0 (got %.4f)", sum)
	}
	return nil
}

// StructureConfig bounds the structural checks
type StructureConfig struct {
	MinPromptLength int // Default: 20
	MaxPromptLength int // Default: 1000
	MinAnswerLength int // Default: 50
	MaxAnswerLength int // Default: 5000
}

// ContentConfig tunes the content heuristics
type ContentConfig struct {
	// AnswerFloor is the answer length below which content is penalized
	// Default: 100
	AnswerFloor int

	// CodeCheckMinLength is the answer length above which technical
	// channels are expected to contain code-like tokens
	// Default: 200
	CodeCheckMinLength int
}

// Config holds quality gate configuration
type Config struct {
	// Threshold is the minimum overall score for approval
	// Default: 70
	Threshold int

	// ReviewBuffer is the width of the needs_review band below Threshold
	// Default: 15
	ReviewBuffer int

	Weights   Weights
	Structure StructureConfig
	Content   ContentConfig

	// DuplicateBlockAbove and DuplicateWarnAbove are the similarity levels
	// that make a match blocking or a warning
	// Defaults: 0.90 and 0.80
	DuplicateBlockAbove float64
	DuplicateWarnAbove  float64

	// TechnicalChannels expect code-like tokens in long answers
	TechnicalChannels []string

	// Lexicon maps channels to relevance keywords (default lexicon when nil)
	Lexicon config.Lexicon

	// Deduplicator backs the duplicate stage (required unless Stages is set)
	Deduplicator deduplication.Deduplicator

	// URLChecker optionally verifies that video links resolve
	URLChecker URLChecker

	// Stages replaces the built-in stage sequence (for tests and custom gates)
	Stages []Stage
}

// DefaultConfig returns the default quality gate configuration without collaborators
func DefaultConfig() Config {
	return Config{
		Threshold:    70,
		ReviewBuffer: 15,
		Weights:      DefaultWeights(),
		Structure: StructureConfig{
			MinPromptLength: 20,
			MaxPromptLength: 1000,
			MinAnswerLength: 50,
			MaxAnswerLength: 5000,
		},
		Content: ContentConfig{
			AnswerFloor:        100,
			CodeCheckMinLength: 200,
		},
		DuplicateBlockAbove: 0.90,
		DuplicateWarnAbove:  0.80,
		TechnicalChannels: []string{
			"algorithms", "data-structures", "system-design", "databases",
			"frontend", "backend", "devops", "networking", "security",
		},
	}
}

// Validate checks if the configuration has valid values
func (c *Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 100 {
		return fmt.Errorf("threshold must be between 0 and 100 (got %d)", c.Threshold)
	}
	if c.ReviewBuffer < 0 || c.ReviewBuffer > c.Threshold {
		return fmt.Errorf("review_buffer must be between 0 and threshold (got %d)", c.ReviewBuffer)
	}
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	s := c.Structure
	if s.MinPromptLength < 1 || s.MaxPromptLength < s.MinPromptLength {
		return fmt.Errorf("invalid prompt length bounds [%d, %d]", s.MinPromptLength, s.MaxPromptLength)
	}
	if s.MinAnswerLength < 1 || s.MaxAnswerLength < s.MinAnswerLength {
		return fmt.Errorf("invalid answer length bounds [%d, %d]", s.MinAnswerLength, s.MaxAnswerLength)
	}
	if c.Content.AnswerFloor < 0 || c.Content.CodeCheckMinLength < 0 {
		return fmt.Errorf("content length limits cannot be negative")
	}
	if c.DuplicateWarnAbove < 0 || c.DuplicateBlockAbove > 1 || c.DuplicateWarnAbove > c.DuplicateBlockAbove {
		return fmt.Errorf("duplicate limits must satisfy 0 <= warn (%.2f) <= block (%.2f) <= 1",
			c.DuplicateWarnAbove, c.DuplicateBlockAbove)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Threshold: %d, ReviewBuffer: %d, Weights: %+v, AnswerFloor: %d, "+
			"DuplicateBlock: %.2f, DuplicateWarn: %.2f, TechnicalChannels: %d}",
		c.Threshold, c.ReviewBuffer, c.Weights, c.Content.AnswerFloor,
		c.DuplicateBlockAbove, c.DuplicateWarnAbove, len(c.TechnicalChannels),
	)
}
