package gates

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/steveyegge/intake/internal/config"
	"github.com/steveyegge/intake/internal/logging"
	"github.com/steveyegge/intake/internal/metrics"
	"github.com/steveyegge/intake/internal/types"
)

// StageName identifies one quality gate stage
type StageName string

const (
	StageStructure  StageName = "structure"
	StageDuplicate  StageName = "duplicate"
	StageContent    StageName = "content"
	StageDifficulty StageName = "difficulty"
	StageRelevance  StageName = "relevance"
	StageMedia      StageName = "media"
)

// StageResult represents the outcome of one stage
type StageResult struct {
	Stage    StageName
	Score    int // 0-100
	Issues   []string
	Warnings []string
	Blocking []string

	// HardFail marks a structural violation; the overall score becomes 0
	HardFail bool

	// MaxSimilarity and SimilarTo are set by the duplicate stage
	MaxSimilarity float64
	SimilarTo     string
}

func newResult(stage StageName) *StageResult {
	return &StageResult{Stage: stage, Score: 100}
}

// deduct lowers the score by points and records the reason as an issue
func (r *StageResult) deduct(points int, issue string) {
	r.Score = clamp(r.Score - points)
	r.Issues = append(r.Issues, issue)
}

// warn lowers the score by points and records the reason as a warning
func (r *StageResult) warn(points int, warning string) {
	r.Score = clamp(r.Score - points)
	r.Warnings = append(r.Warnings, warning)
}

// EvalContext carries what a stage may look at besides the item itself
type EvalContext struct {
	// Corpus is the set of existing items the duplicate stage compares against
	Corpus []*types.ContentItem
}

// Stage is one independent, side-effect-free validator
type Stage interface {
	Name() StageName
	Run(ctx context.Context, item *types.ContentItem, ec *EvalContext) *StageResult
}

// Runner evaluates items through the six quality gate stages
type Runner struct {
	cfg    Config
	stages []Stage
}

// NewRunner creates a quality gate runner. Unless cfg.Stages overrides the
// pipeline, a Deduplicator is required for the duplicate stage.
func NewRunner(cfg *Config) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gate config: %w", err)
	}

	stages := cfg.Stages
	if stages == nil {
		if cfg.Deduplicator == nil {
			return nil, fmt.Errorf("deduplicator is required")
		}
		lexicon := cfg.Lexicon
		if lexicon == nil {
			lexicon = config.DefaultLexicon()
		}
		stages = []Stage{
			&StructureStage{cfg: cfg.Structure},
			&DuplicateStage{dedup: cfg.Deduplicator, blockAbove: cfg.DuplicateBlockAbove, warnAbove: cfg.DuplicateWarnAbove},
			&ContentStage{cfg: cfg.Content, technical: toSet(cfg.TechnicalChannels)},
			&DifficultyStage{},
			&RelevanceStage{lexicon: lexicon},
			&MediaStage{checker: cfg.URLChecker},
		}
	}

	return &Runner{cfg: *cfg, stages: stages}, nil
}

// Evaluate runs every stage in sequence and aggregates the results into a scorecard
func (r *Runner) Evaluate(ctx context.Context, item *types.ContentItem, ec *EvalContext) *types.QualityScoreCard {
	if ec == nil {
		ec = &EvalContext{}
	}
	card := &types.QualityScoreCard{
		StructureValid: true,
		EvaluatedAt:    time.Now(),
	}
	if item != nil {
		card.ItemID = item.ID
	}

	for _, stage := range r.stages {
		res := stage.Run(ctx, item, ec)
		if res == nil {
			continue
		}
		applyScore(&card.Scores, stage.Name(), res.Score)
		if res.HardFail {
			card.StructureValid = false
		}
		if stage.Name() == StageDuplicate {
			card.MaxSimilarity = res.MaxSimilarity
			card.SimilarTo = res.SimilarTo
		}
		card.Issues = append(card.Issues, prefix(stage.Name(), res.Issues)...)
		card.Warnings = append(card.Warnings, prefix(stage.Name(), res.Warnings)...)
		card.BlockingIssues = append(card.BlockingIssues, prefix(stage.Name(), res.Blocking)...)
	}

	card.OverallScore = Aggregate(card.Scores, card.StructureValid, card.HasBlockingIssues(), r.cfg.Weights)
	card.Decision = Decide(card.OverallScore, r.cfg.Threshold, r.cfg.ReviewBuffer)
	if !card.StructureValid {
		card.Decision = types.DecisionRejected
	}

	metrics.GateDecisions.WithLabelValues(string(card.Decision)).Inc()
	metrics.GateScore.Observe(float64(card.OverallScore))
	logging.Debugf("[GATE] %s scored %d (%s): %d issues, %d warnings, %d blocking",
		card.ItemID, card.OverallScore, card.Decision,
		len(card.Issues), len(card.Warnings), len(card.BlockingIssues))
	return card
}

// Aggregate combines sub-scores into the overall score.
//
// A structural violation scores 0. Any blocking issue caps the score at
// min(40, duplicate). Otherwise the weighted sum is rounded to the nearest integer.
func Aggregate(s types.SubScores, structureValid, blocking bool, w Weights) int {
	if !structureValid {
		return 0
	}
	if blocking {
		if s.Duplicate < 40 {
			return s.Duplicate
		}
		return 40
	}
	sum := w.Duplicate*float64(s.Duplicate) +
		w.Content*float64(s.Content) +
		w.Difficulty*float64(s.Difficulty) +
		w.Relevance*float64(s.Relevance) +
		w.Media*float64(s.Media)
	return clamp(int(math.Round(sum)))
}

// Decide maps an overall score to a decision. Scores within buffer points
// below threshold are routed to human review.
func Decide(score, threshold, buffer int) types.Decision {
	switch {
	case score >= threshold:
		return types.DecisionApproved
	case score >= threshold-buffer:
		return types.DecisionNeedsReview
	default:
		return types.DecisionRejected
	}
}

func applyScore(s *types.SubScores, stage StageName, score int) {
	switch stage {
	case StageStructure:
		s.Structure = score
	case StageDuplicate:
		s.Duplicate = score
	case StageContent:
		s.Content = score
	case StageDifficulty:
		s.Difficulty = score
	case StageRelevance:
		s.Relevance = score
	case StageMedia:
		s.Media = score
	}
}

func prefix(stage StageName, msgs []string) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = fmt.Sprintf("%s: %s", stage, m)
	}
	return out
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[strings.ToLower(strings.TrimSpace(v))] = true
	}
	return set
}
