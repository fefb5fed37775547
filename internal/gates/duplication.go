package gates

import (
	"context"
	"fmt"
	"math"

	"github.com/steveyegge/intake/internal/deduplication"
	"github.com/steveyegge/intake/internal/types"
)

// DuplicateStage scores an item by its distance from the closest corpus item
type DuplicateStage struct {
	dedup      deduplication.Deduplicator
	blockAbove float64
	warnAbove  float64
}

func (s *DuplicateStage) Name() StageName { return StageDuplicate }

func (s *DuplicateStage) Run(ctx context.Context, item *types.ContentItem, ec *EvalContext) *StageResult {
	res := newResult(StageDuplicate)
	if item == nil {
		return res
	}

	corpus := ec.Corpus
	if corpus == nil {
		corpus = []*types.ContentItem{}
	}
	decision, err := s.dedup.CheckDuplicate(ctx, item, corpus)
	if err != nil {
		res.Score = 0
		res.Blocking = append(res.Blocking, fmt.Sprintf("duplicate check failed: %v", err))
		return res
	}
	if decision.Error != "" {
		res.Warnings = append(res.Warnings, fmt.Sprintf("duplicate check skipped: %s", decision.Error))
	}

	maxSim := decision.MaxSimilarity
	if maxSim < 0 {
		maxSim = 0
	}
	res.MaxSimilarity = maxSim
	res.SimilarTo = decision.DuplicateOf
	res.Score = clamp(int(math.Round((1 - maxSim) * 100)))

	switch {
	case maxSim > s.blockAbove:
		res.Blocking = append(res.Blocking,
			fmt.Sprintf("duplicate of %s (similarity %.2f)", decision.DuplicateOf, maxSim))
	case maxSim > s.warnAbove:
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("similar to %s (similarity %.2f)", decision.DuplicateOf, maxSim))
	}
	return res
}
