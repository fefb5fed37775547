package gates

import (
	"fmt"
	"strings"

	"github.com/steveyegge/intake/internal/types"
)

// FormatScoreCard renders a scorecard for terminal output and tracker comments
func FormatScoreCard(card *types.QualityScoreCard) string {
	if card == nil {
		return ""
	}
	var sb strings.Builder

	status := "✓ APPROVED"
	switch card.Decision {
	case types.DecisionNeedsReview:
		status = "? NEEDS REVIEW"
	case types.DecisionRejected:
		status = "✗ REJECTED"
	}
	sb.WriteString(fmt.Sprintf("**Quality Gate: %s** - %s (%d/100)\n", card.ItemID, status, card.OverallScore))

	s := card.Scores
	sb.WriteString(fmt.Sprintf("  structure: %d  duplicate: %d  content: %d  difficulty: %d  relevance: %d  media: %d\n",
		s.Structure, s.Duplicate, s.Content, s.Difficulty, s.Relevance, s.Media))
	if card.SimilarTo != "" {
		sb.WriteString(fmt.Sprintf("  closest match: %s (similarity %.2f)\n", card.SimilarTo, card.MaxSimilarity))
	}

	writeList(&sb, "Blocking", card.BlockingIssues)
	writeList(&sb, "Issues", card.Issues)
	writeList(&sb, "Warnings", card.Warnings)
	return sb.String()
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf("\n%s (%d):\n", title, len(items)))
	for _, item := range items {
		sb.WriteString(fmt.Sprintf("  - %s\n", item))
	}
}
