package gates

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/steveyegge/intake/internal/types"
)

// StructureStage checks required fields and length bounds. Any violation is a hard fail.
type StructureStage struct {
	cfg StructureConfig
}

func (s *StructureStage) Name() StageName { return StageStructure }

func (s *StructureStage) Run(_ context.Context, item *types.ContentItem, _ *EvalContext) *StageResult {
	res := newResult(StageStructure)
	fail := func(issue string) {
		res.Issues = append(res.Issues, issue)
		res.HardFail = true
		res.Score = 0
	}

	if item == nil {
		fail("item is missing")
		return res
	}
	if strings.TrimSpace(item.ID) == "" {
		fail("id is required")
	}

	prompt := strings.TrimSpace(item.Prompt)
	answer := strings.TrimSpace(item.Answer)

	if prompt == "" {
		fail("question is required")
	} else {
		n := utf8.RuneCountInString(prompt)
		if n < s.cfg.MinPromptLength || n > s.cfg.MaxPromptLength {
			fail(fmt.Sprintf("question length %d outside [%d, %d]", n, s.cfg.MinPromptLength, s.cfg.MaxPromptLength))
		}
		if !strings.HasSuffix(prompt, "?") {
			fail("question must end with '?'")
		}
	}

	if answer == "" {
		fail("answer is required")
	} else if n := utf8.RuneCountInString(answer); n < s.cfg.MinAnswerLength || n > s.cfg.MaxAnswerLength {
		fail(fmt.Sprintf("answer length %d outside [%d, %d]", n, s.cfg.MinAnswerLength, s.cfg.MaxAnswerLength))
	}

	seen := make(map[string]bool, len(item.Tags))
	for _, tag := range item.Tags {
		key := strings.ToLower(strings.TrimSpace(tag))
		if seen[key] {
			fail(fmt.Sprintf("duplicate tag %q", tag))
			break
		}
		seen[key] = true
	}

	if item.Difficulty != "" && !item.Difficulty.IsValid() {
		fail(fmt.Sprintf("unknown difficulty %q", item.Difficulty))
	}
	return res
}
