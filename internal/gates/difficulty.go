package gates

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/steveyegge/intake/internal/types"
)

var beginnerTerms = []string{
	"basic", "simple", "introduction", "what is", "definition", "example of",
	"beginner", "first step", "overview", "fundamental",
}

var advancedTerms = []string{
	"amortized", "lock-free", "linearizab", "consensus", "sharding", "byzantine",
	"cache coherence", "memory barrier", "np-hard", "vector clock", "zero-copy",
	"backpressure", "consistent hashing", "concurrency control",
}

// DifficultyStage compares beginner and advanced vocabulary against the labeled difficulty
type DifficultyStage struct{}

func (s *DifficultyStage) Name() StageName { return StageDifficulty }

func (s *DifficultyStage) Run(_ context.Context, item *types.ContentItem, _ *EvalContext) *StageResult {
	res := newResult(StageDifficulty)
	if item == nil {
		return res
	}

	text := strings.ToLower(item.Prompt + " " + item.Answer)
	beginner := countTerms(text, beginnerTerms)
	advanced := countTerms(text, advancedTerms)
	answerLen := utf8.RuneCountInString(strings.TrimSpace(item.Answer))

	switch item.Difficulty {
	case types.DifficultyBeginner:
		if advanced >= 2 {
			res.warn(20, fmt.Sprintf("beginner item uses %d advanced terms", advanced))
		}
		if answerLen > 1500 {
			res.warn(10, fmt.Sprintf("beginner answer is long (%d characters)", answerLen))
		}
	case types.DifficultyAdvanced:
		if beginner >= 2 && advanced == 0 {
			res.warn(15, fmt.Sprintf("advanced item reads as introductory (%d beginner terms)", beginner))
		}
		if answerLen < 200 {
			res.warn(15, fmt.Sprintf("advanced answer is short (%d characters)", answerLen))
		}
	}
	return res
}

func countTerms(text string, terms []string) int {
	n := 0
	for _, term := range terms {
		if strings.Contains(text, term) {
			n++
		}
	}
	return n
}
