package gates

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/steveyegge/intake/internal/types"
)

var diagramOpeners = []string{
	"graph", "flowchart", "sequenceDiagram", "classDiagram", "stateDiagram",
	"erDiagram", "gantt", "pie", "journey", "mindmap", "timeline",
}

var videoURL = regexp.MustCompile(`^https?://` +
	`(?:(?:www\.|m\.)?youtube\.com/(?:watch\?v=|embed/|shorts/)[\w-]{6,}` +
	`|youtu\.be/[\w-]{6,}` +
	`|(?:player\.)?vimeo\.com/(?:video/)?\d+` +
	`|[\w.-]+\.[a-z]{2,}/\S*\.(?:mp4|webm|mov))` +
	`(?:[?&#]\S*)?$`)

// MediaStage validates diagram structure and video link shape
type MediaStage struct {
	checker URLChecker
}

func (s *MediaStage) Name() StageName { return StageMedia }

func (s *MediaStage) Run(ctx context.Context, item *types.ContentItem, _ *EvalContext) *StageResult {
	res := newResult(StageMedia)
	if item == nil {
		return res
	}

	if diagram := strings.TrimSpace(item.Diagram); diagram != "" {
		lines := diagramLines(diagram)
		if len(lines) < 3 {
			res.deduct(30, fmt.Sprintf("diagram has %d lines, need at least 3", len(lines)))
		}
		if len(lines) == 0 || !hasDiagramOpener(lines[0]) {
			res.deduct(30, "diagram does not start with a recognized diagram type")
		}
	}

	if link := strings.TrimSpace(item.VideoURL); link != "" {
		if !videoURL.MatchString(link) {
			res.deduct(40, fmt.Sprintf("unrecognized video url %q", link))
		} else if s.checker != nil {
			if err := s.checker.Check(ctx, link); err != nil {
				res.warn(10, fmt.Sprintf("video url did not resolve: %v", err))
			}
		}
	}
	return res
}

// diagramLines returns the non-empty lines of a diagram with any code fence removed
func diagramLines(diagram string) []string {
	var lines []string
	for _, line := range strings.Split(diagram, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func hasDiagramOpener(line string) bool {
	for _, opener := range diagramOpeners {
		if strings.HasPrefix(line, opener) {
			return true
		}
	}
	return false
}
