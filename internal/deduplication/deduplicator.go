package deduplication

import (
	"context"
	"fmt"

	"github.com/steveyegge/intake/internal/similarity"
	"github.com/steveyegge/intake/internal/types"
)

// Deduplicator defines the interface for detecting duplicate content items
// using vector similarity.
//
// Example usage:
//
//	dedup, err := NewVectorDeduplicator(embedder, similarity.NewMemoryIndex(), DefaultConfig())
//
//	// Check one item against a corpus
//	decision, err := dedup.CheckDuplicate(ctx, item, corpus)
//	if decision.IsDuplicate {
//	    log.Printf("%s duplicates %s (%.2f)", item.ID, decision.DuplicateOf, decision.MaxSimilarity)
//	}
//
//	// Detect pairs within a batch and group them
//	result, err := dedup.DetectBatch(ctx, items)
//	clusters := Cluster(result.ItemIDs, result.Pairs)
type Deduplicator interface {
	// Index embeds items and stores them in the similarity index.
	// Items that cannot be embedded are logged and skipped.
	// Returns the number of items indexed.
	Index(ctx context.Context, items []*types.ContentItem) (int, error)

	// FindSimilar returns indexed items at or above threshold, ranked by
	// similarity. The item itself and excludeIDs are never returned.
	FindSimilar(ctx context.Context, item *types.ContentItem, threshold float64, excludeIDs []string) ([]similarity.Match, error)

	// CheckDuplicate compares item against corpus and reports its closest match.
	// A nil corpus searches the similarity index instead.
	CheckDuplicate(ctx context.Context, item *types.ContentItem, corpus []*types.ContentItem) (*DuplicateDecision, error)

	// DetectBatch compares every item of a batch against every other item.
	// The returned pairs do not depend on the order of items.
	DetectBatch(ctx context.Context, items []*types.ContentItem) (*BatchResult, error)
}

// DuplicateDecision represents the result of checking a single item for duplicates
type DuplicateDecision struct {
	// IsDuplicate is true if the closest match is at or above the duplicate threshold
	IsDuplicate bool `json:"is_duplicate"`

	// DuplicateOf is the ID of the closest match
	// Set whenever a match was found, not only for duplicates
	DuplicateOf string `json:"duplicate_of,omitempty"`

	// MaxSimilarity is the cosine similarity to the closest match (0 when none)
	MaxSimilarity float64 `json:"max_similarity"`

	// Classification is the band MaxSimilarity falls into
	Classification types.Classification `json:"classification"`

	// ComparedCount is the number of items compared against
	ComparedCount int `json:"compared_count"`

	// Error records a failure that was swallowed because FailOpen is set
	Error string `json:"error,omitempty"`
}

// Validate checks if the duplicate decision has valid values
func (d *DuplicateDecision) Validate() error {
	if d.MaxSimilarity < -1.0 || d.MaxSimilarity > 1.0 {
		return fmt.Errorf("max_similarity must be between -1.0 and 1.0 (got %.2f)", d.MaxSimilarity)
	}
	if d.IsDuplicate && d.DuplicateOf == "" {
		return fmt.Errorf("duplicate_of must be set when is_duplicate is true")
	}
	if d.IsDuplicate && d.Classification != types.ClassDuplicate {
		return fmt.Errorf("classification must be %q when is_duplicate is true (got %q)",
			types.ClassDuplicate, d.Classification)
	}
	if d.ComparedCount < 0 {
		return fmt.Errorf("compared_count cannot be negative (got %d)", d.ComparedCount)
	}
	return nil
}

// BatchResult represents the result of within-batch duplicate detection
type BatchResult struct {
	// ItemIDs are the distinct IDs that took part in detection, in input order
	ItemIDs []string `json:"item_ids"`

	// Pairs holds every duplicate and near-duplicate pair, sorted by (ItemA, ItemB)
	Pairs []types.SimilarityRecord `json:"pairs"`

	// Failed lists items that could not be embedded and were skipped
	Failed []string `json:"failed,omitempty"`

	Stats BatchStats `json:"stats"`
}

// DuplicatePairs returns only the pairs classified as duplicate
func (r *BatchResult) DuplicatePairs() []types.SimilarityRecord {
	var out []types.SimilarityRecord
	for _, p := range r.Pairs {
		if p.Classification == types.ClassDuplicate {
			out = append(out, p)
		}
	}
	return out
}

// BatchStats provides metrics about a DetectBatch call
type BatchStats struct {
	// TotalItems is the number of items submitted
	TotalItems int `json:"total_items"`

	// Embedded is the number of items that produced a vector
	Embedded int `json:"embedded"`

	// SkippedRepeats counts items whose ID was already seen in the batch
	SkippedRepeats int `json:"skipped_repeats"`

	// ComparisonsMade is the number of pairwise similarity computations
	ComparisonsMade int `json:"comparisons_made"`

	DuplicateCount     int `json:"duplicate_count"`
	NearDuplicateCount int `json:"near_duplicate_count"`

	// ProcessingTimeMs is the time taken for detection in milliseconds
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// Validate checks that the stats agree with the pairs and item lists
func (r *BatchResult) Validate() error {
	dups, near := 0, 0
	for i, p := range r.Pairs {
		if p.ItemA >= p.ItemB {
			return fmt.Errorf("pair %d is not normalized (%s, %s)", i, p.ItemA, p.ItemB)
		}
		switch p.Classification {
		case types.ClassDuplicate:
			dups++
		case types.ClassNearDuplicate:
			near++
		default:
			return fmt.Errorf("pair %d has unexpected classification %q", i, p.Classification)
		}
	}
	if r.Stats.DuplicateCount != dups {
		return fmt.Errorf("stats.duplicate_count (%d) does not match pairs (%d)", r.Stats.DuplicateCount, dups)
	}
	if r.Stats.NearDuplicateCount != near {
		return fmt.Errorf("stats.near_duplicate_count (%d) does not match pairs (%d)", r.Stats.NearDuplicateCount, near)
	}
	if r.Stats.Embedded+len(r.Failed) != len(r.ItemIDs) {
		return fmt.Errorf("embedded (%d) + failed (%d) does not match item count (%d)",
			r.Stats.Embedded, len(r.Failed), len(r.ItemIDs))
	}
	return nil
}
