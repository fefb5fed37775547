package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/steveyegge/intake/internal/labels"
	"github.com/steveyegge/intake/internal/logging"
	"github.com/steveyegge/intake/internal/storage"
	"github.com/steveyegge/intake/internal/types"
)

// Stage is a step of report processing
type Stage int

const (
	StageFetchReports Stage = iota
	StageParseReport
	StageFetchItem
	StageExecuteAction
	StagePersistAndClose
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageFetchReports:
		return "fetch_reports"
	case StageParseReport:
		return "parse_report"
	case StageFetchItem:
		return "fetch_item"
	case StageExecuteAction:
		return "execute_action"
	case StagePersistAndClose:
		return "persist_and_close"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// ErrNoRewriter is returned for improve and rewrite reports when the
// processor has no rewriting collaborator
var ErrNoRewriter = errors.New("no rewriter configured")

// reportState carries one report through the stages
type reportState struct {
	issue    types.TrackerIssue
	report   *types.FeedbackReport
	parseErr error
	stage    Stage

	item    *types.ContentItem
	updated []string

	// failedAt is the stage that set err
	failedAt Stage
	err      error
}

func (st *reportState) fail(stage Stage, err error) Stage {
	st.failedAt = stage
	st.err = err
	return StagePersistAndClose
}

// dispatch runs the current stage and returns the next one
func (p *Processor) dispatch(ctx context.Context, st *reportState) Stage {
	logging.Debugf("[FEEDBACK] %s: %s", st.issue.ID, st.stage)
	switch st.stage {
	case StageParseReport:
		return p.parseReport(st)
	case StageFetchItem:
		return p.fetchItem(ctx, st)
	case StageExecuteAction:
		return p.executeAction(ctx, st)
	case StagePersistAndClose:
		p.persistAndClose(ctx, st)
		return StageDone
	default:
		return StageDone
	}
}

func (p *Processor) parseReport(st *reportState) Stage {
	if st.parseErr != nil {
		return st.fail(StageParseReport, st.parseErr)
	}
	if err := st.report.Validate(); err != nil {
		return st.fail(StageParseReport, fmt.Errorf("%w: %v", ErrUnparseableReport, err))
	}
	return StageFetchItem
}

func (p *Processor) fetchItem(ctx context.Context, st *reportState) Stage {
	item, err := p.store.GetItem(ctx, st.report.ItemID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return st.fail(StageFetchItem, fmt.Errorf("question %s not found", st.report.ItemID))
		}
		return st.fail(StageFetchItem, fmt.Errorf("failed to load question %s: %w", st.report.ItemID, err))
	}
	st.item = item
	return StageExecuteAction
}

func (p *Processor) executeAction(ctx context.Context, st *reportState) Stage {
	switch st.report.Kind {
	case types.KindDisable:
		if err := p.store.SetItemStatus(ctx, st.item.ID, types.StatusDisabled); err != nil {
			return st.fail(StageExecuteAction, fmt.Errorf("failed to disable question: %w", err))
		}
		st.updated = []string{"status"}
		return StagePersistAndClose

	case types.KindImprove, types.KindRewrite:
		if p.rewriter == nil {
			return st.fail(StageExecuteAction, ErrNoRewriter)
		}
		result, err := p.rewriter.Rewrite(ctx, types.RewriteRequest{
			Item:     st.item.Clone(),
			Kind:     st.report.Kind,
			UserNote: st.report.Detail,
		})
		if err != nil {
			return st.fail(StageExecuteAction, fmt.Errorf("%s failed: %w", st.report.Kind, err))
		}
		if result.IsEmpty() {
			return st.fail(StageExecuteAction, fmt.Errorf("%s returned no content", st.report.Kind))
		}
		st.updated = applyResult(st.item, st.report.Kind, result)
		if len(st.updated) == 0 {
			return st.fail(StageExecuteAction, fmt.Errorf("%s returned no usable fields", st.report.Kind))
		}
		if err := st.item.Validate(); err != nil {
			return st.fail(StageExecuteAction, fmt.Errorf("rewritten question is invalid: %w", err))
		}
		return StagePersistAndClose

	default:
		return st.fail(StageExecuteAction, fmt.Errorf("unknown feedback type %q", st.report.Kind))
	}
}

// applyResult copies non-empty fields onto item and returns the names of the
// fields it changed. An improvement never touches the question.
func applyResult(item *types.ContentItem, kind types.ReportKind, r *types.RewriteResult) []string {
	var updated []string
	set := func(name string, dst *string, v string) {
		v = strings.TrimSpace(v)
		if v == "" || v == *dst {
			return
		}
		*dst = v
		updated = append(updated, name)
	}
	if kind == types.KindRewrite {
		set("question", &item.Prompt, r.Question)
	}
	set("answer", &item.Answer, r.Answer)
	set("explanation", &item.Explanation, r.Explanation)
	set("diagram", &item.Diagram, r.Diagram)
	return updated
}

// persistAndClose saves the mutated item, comments, closes the issue and
// records the outcome in the ledger. Tracker and ledger failures here are
// logged; they do not change the outcome.
func (p *Processor) persistAndClose(ctx context.Context, st *reportState) {
	if st.err == nil && st.report.Kind != types.KindDisable {
		if err := p.store.SaveItem(ctx, st.item); err != nil {
			st.fail(StagePersistAndClose, fmt.Errorf("failed to save question: %w", err))
		}
	}

	success := st.err == nil
	if err := p.tracker.PostComment(ctx, st.issue.ID, formatComment(st)); err != nil {
		logging.Warnf("[TRACKER] failed to comment on %s: %v", st.issue.ID, err)
	}
	if err := labels.TransitionState(ctx, p.tracker, st.issue.ID, labels.LabelInProgress, "", labels.TriggerReleased); err != nil {
		logging.Warnf("[TRACKER] failed to release %s: %v", st.issue.ID, err)
	}
	if err := p.tracker.CloseIssue(ctx, st.issue.ID, labels.TerminalLabels(success)); err != nil {
		logging.Warnf("[TRACKER] failed to close %s: %v", st.issue.ID, err)
	}

	if success {
		if err := p.ledger.MarkCompleted(ctx, st.issue.ID); err != nil {
			logging.Warnf("[LEDGER] failed to mark %s completed: %v", st.issue.ID, err)
		}
		logging.Infof("[FEEDBACK] %s: %s applied to %s", st.issue.ID, st.report.Kind, st.report.ItemID)
		return
	}
	if err := p.ledger.MarkFailed(ctx, st.issue.ID, st.err.Error()); err != nil {
		logging.Warnf("[LEDGER] failed to mark %s failed: %v", st.issue.ID, err)
	}
	logging.Warnf("[FEEDBACK] %s failed at %s: %v", st.issue.ID, st.failedAt, st.err)
}

func formatComment(st *reportState) string {
	var sb strings.Builder
	if st.err != nil {
		sb.WriteString("**Feedback Not Applied**\n\n")
		fmt.Fprintf(&sb, "Stage: %s\nReason: %s\n", st.failedAt, st.err)
		return sb.String()
	}

	sb.WriteString("**Feedback Applied**\n\n")
	fmt.Fprintf(&sb, "Question: %s\nAction: %s\n", st.report.ItemID, st.report.Kind)
	if st.report.Kind == types.KindDisable {
		sb.WriteString("\nThe question has been disabled and will no longer be served.\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "\nUpdated fields (%d):\n", len(st.updated))
	for _, f := range st.updated {
		fmt.Fprintf(&sb, "- %s\n", f)
	}
	return sb.String()
}
