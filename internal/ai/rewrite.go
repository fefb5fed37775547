package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/steveyegge/intake/internal/types"
)

// ErrEmptyRewrite is returned when the model produced no usable field
var ErrEmptyRewrite = errors.New("rewrite returned no content")

const maxFieldInPrompt = 8000

const rewriteSystemPrompt = `You edit questions for an interview-preparation site.
Keep technical content accurate. Keep the channel and difficulty of the original.
Questions end with a question mark. Reply with a single JSON object and nothing else.`

// Rewrite asks the model to improve or rewrite an item in response to a
// feedback report. Only non-empty fields of the result replace item fields.
func (s *Supervisor) Rewrite(ctx context.Context, req types.RewriteRequest) (*types.RewriteResult, error) {
	if req.Item == nil {
		return nil, fmt.Errorf("item cannot be nil")
	}
	if req.Kind != types.KindImprove && req.Kind != types.KindRewrite {
		return nil, fmt.Errorf("cannot rewrite for feedback kind %q", req.Kind)
	}

	reply, err := s.complete(ctx, "rewrite-"+string(req.Kind), rewriteSystemPrompt, buildRewritePrompt(req))
	if err != nil {
		return nil, err
	}

	result, err := decodeReply[types.RewriteResult](reply)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rewrite response: %w (reply: %s)", err, clip(reply, 200))
	}
	result.Question = strings.TrimSpace(result.Question)
	result.Answer = strings.TrimSpace(result.Answer)
	result.Explanation = strings.TrimSpace(result.Explanation)
	result.Diagram = strings.TrimSpace(result.Diagram)
	if result.IsEmpty() {
		return nil, ErrEmptyRewrite
	}
	return &result, nil
}

func buildRewritePrompt(req types.RewriteRequest) string {
	item := req.Item
	var sb strings.Builder

	switch req.Kind {
	case types.KindImprove:
		sb.WriteString("A reader reported a problem with this question. ")
		sb.WriteString("Fix the reported problem and improve clarity and accuracy. Keep the question itself unchanged.\n\n")
	case types.KindRewrite:
		sb.WriteString("A reader asked for this question to be rewritten. ")
		sb.WriteString("Write a new version of the question and answer on the same topic.\n\n")
	}

	sb.WriteString(fmt.Sprintf("Channel: %s\n", item.Channel))
	if item.Difficulty != "" {
		sb.WriteString(fmt.Sprintf("Difficulty: %s\n", item.Difficulty))
	}
	sb.WriteString(fmt.Sprintf("\nQuestion:\n%s\n", clip(item.Prompt, maxFieldInPrompt)))
	sb.WriteString(fmt.Sprintf("\nAnswer:\n%s\n", clip(item.Answer, maxFieldInPrompt)))
	if item.Explanation != "" {
		sb.WriteString(fmt.Sprintf("\nExplanation:\n%s\n", clip(item.Explanation, maxFieldInPrompt)))
	}
	if item.Diagram != "" {
		sb.WriteString(fmt.Sprintf("\nDiagram (mermaid):\n%s\n", clip(item.Diagram, maxFieldInPrompt)))
	}
	if req.UserNote != "" {
		sb.WriteString(fmt.Sprintf("\nReader feedback:\n%s\n", clip(req.UserNote, 2000)))
	}

	sb.WriteString(`
Respond with JSON only, in this format:
{
  "question": "the question, ending with a question mark",
  "answer": "the answer",
  "explanation": "optional longer explanation",
  "diagram": "optional mermaid diagram"
}
Leave a field empty to keep the current value.`)
	return sb.String()
}
