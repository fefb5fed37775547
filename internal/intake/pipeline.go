// Package intake runs candidate batches through the quality gate and the
// duplicate detector, and analyzes quality samples of stored content.
package intake

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/intake/internal/deduplication"
	"github.com/steveyegge/intake/internal/gates"
	"github.com/steveyegge/intake/internal/logging"
	"github.com/steveyegge/intake/internal/storage"
	"github.com/steveyegge/intake/internal/types"
)

// Config holds pipeline configuration
type Config struct {
	// MaxItemsPerRun bounds the candidates evaluated by one EvaluateBatch call
	// Default: 500
	MaxItemsPerRun int

	// SampleConcurrency bounds parallel evaluations in AnalyzeSample
	// Default: 8
	SampleConcurrency int

	// SaveApproved stores approved candidates as active items
	SaveApproved bool
}

// DefaultConfig returns the default pipeline configuration
func DefaultConfig() Config {
	return Config{
		MaxItemsPerRun:    500,
		SampleConcurrency: 8,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.MaxItemsPerRun <= 0 {
		return fmt.Errorf("max_items_per_run must be positive (got %d)", c.MaxItemsPerRun)
	}
	if c.SampleConcurrency <= 0 {
		return fmt.Errorf("sample_concurrency must be positive (got %d)", c.SampleConcurrency)
	}
	return nil
}

// Pipeline wires the quality gate, the duplicate detector and the content store
type Pipeline struct {
	cfg   Config
	gate  *gates.Runner
	dedup deduplication.Deduplicator
	store storage.ContentStore
}

// BatchReport is the outcome of evaluating one batch of candidates
type BatchReport struct {
	Cards    []*types.QualityScoreCard `json:"cards"`
	Pairs    []types.SimilarityRecord  `json:"pairs"`
	Clusters []types.DuplicateCluster  `json:"clusters"`
	Counts   map[types.Decision]int    `json:"counts"`

	// Deferred is the number of candidates beyond MaxItemsPerRun
	Deferred int `json:"deferred,omitempty"`
	// Invalid is the number of nil candidates dropped before evaluation
	Invalid int `json:"invalid,omitempty"`
	// Saved lists approved candidates written to the store
	Saved []string `json:"saved,omitempty"`
}

// SampleReport summarizes a quality sample of stored items
type SampleReport struct {
	Size         int                       `json:"size"`
	AverageScore float64                   `json:"average_score"`
	Counts       map[types.Decision]int    `json:"counts"`
	Cards        []*types.QualityScoreCard `json:"cards"`
}

// New creates a pipeline. store may be nil, in which case the corpus holds
// only the batch itself and samples are unavailable.
func New(cfg Config, gate *gates.Runner, dedup deduplication.Deduplicator, store storage.ContentStore) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid intake config: %w", err)
	}
	if gate == nil {
		return nil, fmt.Errorf("quality gate is required")
	}
	if dedup == nil {
		return nil, fmt.Errorf("deduplicator is required")
	}
	return &Pipeline{cfg: cfg, gate: gate, dedup: dedup, store: store}, nil
}

// EvaluateBatch scores every candidate against the active stored items plus
// the candidates before it, then detects and clusters duplicates within the
// batch. Candidates are processed one at a time in input order.
func (p *Pipeline) EvaluateBatch(ctx context.Context, candidates []*types.ContentItem) (*BatchReport, error) {
	report := &BatchReport{Counts: make(map[types.Decision]int)}

	items := make([]*types.ContentItem, 0, len(candidates))
	for _, c := range candidates {
		if c == nil {
			report.Invalid++
			continue
		}
		items = append(items, c)
	}
	if len(items) > p.cfg.MaxItemsPerRun {
		report.Deferred = len(items) - p.cfg.MaxItemsPerRun
		logging.Warnf("[INTAKE] batch of %d exceeds the per-run limit, deferring %d", len(items), report.Deferred)
		items = items[:p.cfg.MaxItemsPerRun]
	}

	corpus, err := p.activeItems(ctx, 0)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		card := p.gate.Evaluate(ctx, item, &gates.EvalContext{Corpus: corpus})
		report.Cards = append(report.Cards, card)
		report.Counts[card.Decision]++
		corpus = append(corpus, item)

		if p.cfg.SaveApproved && p.store != nil && card.Decision == types.DecisionApproved {
			if err := p.store.SaveItem(ctx, item); err != nil {
				logging.Warnf("[INTAKE] failed to save approved item %s: %v", item.ID, err)
				continue
			}
			report.Saved = append(report.Saved, item.ID)
		}
	}

	result, err := p.dedup.DetectBatch(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("batch duplicate detection failed: %w", err)
	}
	report.Pairs = result.Pairs
	report.Clusters = deduplication.Cluster(result.ItemIDs, result.Pairs)

	logging.Infof("[INTAKE] evaluated %d items: %d approved, %d needs review, %d rejected, %d clusters",
		len(report.Cards), report.Counts[types.DecisionApproved], report.Counts[types.DecisionNeedsReview],
		report.Counts[types.DecisionRejected], len(report.Clusters))
	return report, nil
}

// AnalyzeSample evaluates the first n active items by id in parallel. Each
// item is compared against every other active item.
func (p *Pipeline) AnalyzeSample(ctx context.Context, n int) (*SampleReport, error) {
	if p.store == nil {
		return nil, fmt.Errorf("sample analysis requires a content store")
	}
	if n <= 0 {
		return nil, fmt.Errorf("sample size must be positive (got %d)", n)
	}

	corpus, err := p.activeItems(ctx, 0)
	if err != nil {
		return nil, err
	}
	sample := corpus
	if len(sample) > n {
		sample = sample[:n]
	}

	cards := make([]*types.QualityScoreCard, len(sample))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.SampleConcurrency)
	var mu sync.Mutex
	for i, item := range sample {
		i, item := i, item
		g.Go(func() error {
			card := p.gate.Evaluate(gctx, item, &gates.EvalContext{Corpus: corpus})
			mu.Lock()
			cards[i] = card
			mu.Unlock()
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("sample analysis interrupted: %w", err)
	}

	report := &SampleReport{Size: len(cards), Counts: make(map[types.Decision]int), Cards: cards}
	total := 0
	for _, c := range cards {
		total += c.OverallScore
		report.Counts[c.Decision]++
	}
	if len(cards) > 0 {
		report.AverageScore = float64(total) / float64(len(cards))
	}
	sort.SliceStable(report.Cards, func(i, j int) bool {
		return report.Cards[i].OverallScore < report.Cards[j].OverallScore
	})
	logging.Infof("[INTAKE] sample of %d items: average score %.1f", report.Size, report.AverageScore)
	return report, nil
}

func (p *Pipeline) activeItems(ctx context.Context, limit int) ([]*types.ContentItem, error) {
	corpus := []*types.ContentItem{}
	if p.store == nil {
		return corpus, nil
	}
	items, err := p.store.ListItems(ctx, types.ItemFilter{Status: types.StatusActive, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}
	return append(corpus, items...), nil
}
