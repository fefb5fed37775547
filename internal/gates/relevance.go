package gates

import (
	"context"
	"fmt"
	"strings"

	"github.com/steveyegge/intake/internal/config"
	"github.com/steveyegge/intake/internal/types"
)

// RelevanceStage scores the share of the channel's keywords found in the item
type RelevanceStage struct {
	lexicon config.Lexicon
}

func (s *RelevanceStage) Name() StageName { return StageRelevance }

func (s *RelevanceStage) Run(_ context.Context, item *types.ContentItem, _ *EvalContext) *StageResult {
	res := newResult(StageRelevance)
	if item == nil {
		return res
	}

	keywords, ok := s.lexicon.Keywords(item.Channel)
	if !ok {
		res.Score = 70
		res.Warnings = append(res.Warnings, fmt.Sprintf("no keywords configured for channel %q", item.Channel))
		return res
	}

	matched := KeywordMatch(item.Prompt+" "+item.Answer, keywords)
	switch {
	case matched < 0.10:
		res.deduct(50, fmt.Sprintf("only %.0f%% of %s keywords matched", matched*100, item.Channel))
	case matched < 0.20:
		res.warn(25, fmt.Sprintf("%.0f%% of %s keywords matched", matched*100, item.Channel))
	}
	return res
}

// KeywordMatch returns the fraction of keywords that occur in text (case-insensitive)
func KeywordMatch(text string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}
