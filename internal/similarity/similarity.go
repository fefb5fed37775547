// Package similarity stores item vectors and answers nearest-neighbor
// queries by cosine similarity.
package similarity

import (
	"context"
	"fmt"
	"math"

	"github.com/steveyegge/intake/internal/types"
)

// Entry is one indexed item vector
type Entry struct {
	ID      string
	Channel string
	Vector  []float32
}

// Query narrows a Search
type Query struct {
	// Threshold is the minimum cosine similarity to return
	Threshold float64
	// ExcludeIDs are never returned (e.g. the item itself)
	ExcludeIDs []string
	// Channel restricts matches to one channel when set
	Channel string
	// Limit caps the number of matches (0 = unlimited)
	Limit int
}

func (q Query) excluded(id string) bool {
	for _, x := range q.ExcludeIDs {
		if x == id {
			return true
		}
	}
	return false
}

// Match is a ranked search hit
type Match struct {
	ID      string  `json:"id"`
	Channel string  `json:"channel,omitempty"`
	Score   float64 `json:"score"`
}

// Index stores vectors and finds nearest neighbors
type Index interface {
	Add(ctx context.Context, entry Entry) error
	Search(ctx context.Context, vector []float32, q Query) ([]Match, error)
	Len() int
}

// Cosine returns the cosine similarity of a and b. Vectors of different
// length or zero norm have similarity 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Thresholds separate duplicate, near-duplicate and unique pairs
type Thresholds struct {
	// Duplicate is the minimum score classified as duplicate
	// Default: 0.90
	Duplicate float64
	// NearDuplicate is the minimum score classified as near-duplicate
	// Default: 0.80
	NearDuplicate float64
}

// DefaultThresholds returns the default classification thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{Duplicate: 0.90, NearDuplicate: 0.80}
}

// Validate checks the thresholds are ordered and within [0,1]
func (t Thresholds) Validate() error {
	if t.NearDuplicate < 0 || t.Duplicate > 1 {
		return fmt.Errorf("thresholds must be within [0,1] (got near=%.2f dup=%.2f)", t.NearDuplicate, t.Duplicate)
	}
	if t.NearDuplicate > t.Duplicate {
		return fmt.Errorf("near_duplicate threshold %.2f must not exceed duplicate threshold %.2f",
			t.NearDuplicate, t.Duplicate)
	}
	return nil
}

// Classify maps a similarity score to its band
func (t Thresholds) Classify(score float64) types.Classification {
	switch {
	case score >= t.Duplicate:
		return types.ClassDuplicate
	case score >= t.NearDuplicate:
		return types.ClassNearDuplicate
	default:
		return types.ClassUnique
	}
}
