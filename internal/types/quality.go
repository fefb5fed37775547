package types

import "time"

// Decision is the tri-state outcome of a quality gate evaluation
type Decision string

const (
	DecisionApproved    Decision = "approved"
	DecisionNeedsReview Decision = "needs_review"
	DecisionRejected    Decision = "rejected"
)

// IsValid checks if the decision value is valid
func (d Decision) IsValid() bool {
	switch d {
	case DecisionApproved, DecisionNeedsReview, DecisionRejected:
		return true
	}
	return false
}

// SubScores holds the per-stage scores (0-100) of one evaluation.
// Structure is reported but only acts as a validity switch in aggregation.
type SubScores struct {
	Structure  int `json:"structure"`
	Duplicate  int `json:"duplicate"`
	Content    int `json:"content"`
	Difficulty int `json:"difficulty"`
	Relevance  int `json:"relevance"`
	Media      int `json:"media"`
}

// QualityScoreCard is the per-item result of the quality gate
type QualityScoreCard struct {
	ItemID         string    `json:"item_id"`
	Scores         SubScores `json:"scores"`
	StructureValid bool      `json:"structure_valid"`
	MaxSimilarity  float64   `json:"max_similarity"`
	SimilarTo      string    `json:"similar_to,omitempty"`
	Issues         []string  `json:"issues,omitempty"`
	Warnings       []string  `json:"warnings,omitempty"`
	BlockingIssues []string  `json:"blocking_issues,omitempty"`
	OverallScore   int       `json:"overall_score"`
	Decision       Decision  `json:"decision"`
	EvaluatedAt    time.Time `json:"evaluated_at"`
}

// HasBlockingIssues reports whether any stage recorded a blocking issue
func (c *QualityScoreCard) HasBlockingIssues() bool {
	return len(c.BlockingIssues) > 0
}
