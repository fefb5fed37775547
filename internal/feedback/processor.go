// Package feedback processes reader-filed reports against accepted content.
//
// Each report runs through a fixed sequence of stages:
//
//	parse_report -> fetch_item -> execute_action -> persist_and_close
//
// Any stage that cannot proceed jumps straight to persist_and_close, so every
// claimed report ends closed with a comment stating success or the failure
// reason. Fetching and prioritization happen once per run; reports filed while
// a run is in progress are picked up by the next run.
package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/intake/internal/labels"
	"github.com/steveyegge/intake/internal/logging"
	"github.com/steveyegge/intake/internal/metrics"
	"github.com/steveyegge/intake/internal/priorities"
	"github.com/steveyegge/intake/internal/storage"
	"github.com/steveyegge/intake/internal/tracker"
	"github.com/steveyegge/intake/internal/types"
)

// Rewriter produces improved or regenerated content for an item
type Rewriter interface {
	Rewrite(ctx context.Context, req types.RewriteRequest) (*types.RewriteResult, error)
}

// Processor runs feedback reports against the content store
type Processor struct {
	cfg      Config
	tracker  tracker.Tracker
	store    storage.ContentStore
	ledger   storage.Ledger
	rewriter Rewriter
	now      func() time.Time
}

// ReportResult is the outcome of one report
type ReportResult struct {
	IssueID string           `json:"issue_id"`
	ItemID  string           `json:"item_id,omitempty"`
	Kind    types.ReportKind `json:"kind,omitempty"`
	Success bool             `json:"success"`
	Skipped bool             `json:"skipped,omitempty"`
	Updated []string         `json:"updated,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// RunSummary describes one processor run
type RunSummary struct {
	RunID     string         `json:"run_id"`
	Fetched   int            `json:"fetched"`
	Skipped   int            `json:"skipped"`
	Processed int            `json:"processed"`
	Failed    int            `json:"failed"`
	Results   []ReportResult `json:"results"`
}

// NewProcessor creates a processor. The rewriter may be nil, in which case
// only disable reports can succeed.
func NewProcessor(cfg Config, tr tracker.Tracker, store storage.ContentStore, ledger storage.Ledger, rewriter Rewriter) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid feedback config: %w", err)
	}
	if tr == nil {
		return nil, fmt.Errorf("tracker cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("content store cannot be nil")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger cannot be nil")
	}
	return &Processor{
		cfg:      cfg,
		tracker:  tr,
		store:    store,
		ledger:   ledger,
		rewriter: rewriter,
		now:      time.Now,
	}, nil
}

// Run fetches open reports from the tracker and processes them. Only a
// failure to fetch is returned as an error; per-report failures are recorded
// in the summary.
func (p *Processor) Run(ctx context.Context) (*RunSummary, error) {
	issues, err := p.tracker.ListOpenReports(ctx, p.cfg.Label, p.cfg.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reports: %w", err)
	}
	return p.process(ctx, issues), nil
}

// ProcessBatch processes reports delivered outside the tracker. When the
// tracker can import issues they are imported first so that labels and
// closing work on them.
func (p *Processor) ProcessBatch(ctx context.Context, issues []types.TrackerIssue) (*RunSummary, error) {
	if imp, ok := p.tracker.(tracker.Importer); ok {
		if err := imp.ImportIssues(ctx, issues); err != nil {
			return nil, fmt.Errorf("failed to import reports: %w", err)
		}
	}
	return p.process(ctx, issues), nil
}

func (p *Processor) process(ctx context.Context, issues []types.TrackerIssue) *RunSummary {
	summary := &RunSummary{RunID: uuid.NewString(), Fetched: len(issues)}
	logging.Infof("[FEEDBACK] run %s: fetched %d reports", summary.RunID, len(issues))

	pending := p.filter(ctx, issues, summary)
	p.prioritize(ctx, pending)
	if p.cfg.MaxReportsPerRun > 0 && len(pending) > p.cfg.MaxReportsPerRun {
		logging.Infof("[FEEDBACK] run %s: deferring %d reports to the next run",
			summary.RunID, len(pending)-p.cfg.MaxReportsPerRun)
		pending = pending[:p.cfg.MaxReportsPerRun]
	}

	for i, st := range pending {
		if ctx.Err() != nil {
			logging.Warnf("[FEEDBACK] run %s: cancelled with %d reports left", summary.RunID, len(pending)-i)
			break
		}
		res := p.processReport(ctx, st)
		switch {
		case res.Skipped:
			summary.Skipped++
			metrics.FeedbackReports.WithLabelValues("skipped").Inc()
		case res.Success:
			summary.Processed++
			metrics.FeedbackReports.WithLabelValues("completed").Inc()
		default:
			summary.Failed++
			metrics.FeedbackReports.WithLabelValues("failed").Inc()
		}
		summary.Results = append(summary.Results, res)
	}

	logging.Infof("[FEEDBACK] run %s: processed=%d failed=%d skipped=%d",
		summary.RunID, summary.Processed, summary.Failed, summary.Skipped)
	return summary
}

// filter drops reports that carry a state label or that the ledger shows as
// completed within the cool-down or claimed by another run
func (p *Processor) filter(ctx context.Context, issues []types.TrackerIssue, summary *RunSummary) []*reportState {
	now := p.now()
	seen := make(map[string]bool, len(issues))
	var pending []*reportState
	for _, issue := range issues {
		if seen[issue.ID] || !labels.IsClaimable(issue.Labels) {
			p.skip(summary, issue.ID, "already handled")
			continue
		}
		seen[issue.ID] = true

		entry, err := p.ledger.Get(ctx, issue.ID)
		if err != nil {
			logging.Warnf("[LEDGER] failed to read entry for %s: %v", issue.ID, err)
		} else if !storage.Claimable(entry, p.cfg.Cooldown, now) {
			p.skip(summary, issue.ID, fmt.Sprintf("ledger shows %s", entry.Status))
			continue
		}

		report, parseErr := ParseReport(issue)
		pending = append(pending, &reportState{
			issue:    issue,
			report:   report,
			parseErr: parseErr,
			stage:    StageParseReport,
		})
	}
	return pending
}

func (p *Processor) skip(summary *RunSummary, issueID, reason string) {
	logging.Debugf("[FEEDBACK] skipping %s: %s", issueID, reason)
	summary.Skipped++
	summary.Results = append(summary.Results, ReportResult{IssueID: issueID, Skipped: true})
	metrics.FeedbackReports.WithLabelValues("skipped").Inc()
}

// prioritize orders reports by channel scarcity. Reports without a Channel
// field take the channel of the referenced item when it can be loaded.
func (p *Processor) prioritize(ctx context.Context, pending []*reportState) {
	counts, err := p.store.GetChannelCounts(ctx)
	if err != nil {
		logging.Warnf("[FEEDBACK] failed to load channel counts, keeping fetch order: %v", err)
		counts = map[string]int{}
	}

	reports := make([]*types.FeedbackReport, len(pending))
	byReport := make(map[*types.FeedbackReport]*reportState, len(pending))
	for i, st := range pending {
		if st.report.Channel == "" && st.report.ItemID != "" {
			if item, err := p.store.GetItem(ctx, st.report.ItemID); err == nil {
				st.report.Channel = item.Channel
			}
		}
		reports[i] = st.report
		byReport[st.report] = st
	}

	priorities.SortReports(reports, counts, p.cfg.certification())
	for i, r := range reports {
		pending[i] = byReport[r]
	}
}

// processReport claims a report and drives it through the stages
func (p *Processor) processReport(ctx context.Context, st *reportState) ReportResult {
	claimed, err := p.ledger.TryClaim(ctx, st.issue.ID, p.cfg.Cooldown)
	if err != nil {
		logging.Warnf("[LEDGER] failed to claim %s, processing anyway: %v", st.issue.ID, err)
		claimed = true
	}
	if !claimed {
		logging.Infof("[FEEDBACK] %s is claimed by another run or completed recently", st.issue.ID)
		return ReportResult{IssueID: st.issue.ID, Skipped: true}
	}
	if err := labels.TransitionState(ctx, p.tracker, st.issue.ID, "", labels.LabelInProgress, labels.TriggerClaimed); err != nil {
		logging.Warnf("[TRACKER] failed to label %s in progress: %v", st.issue.ID, err)
	}

	for st.stage != StageDone {
		st.stage = p.dispatch(ctx, st)
	}

	res := ReportResult{
		IssueID: st.issue.ID,
		ItemID:  st.report.ItemID,
		Kind:    st.report.Kind,
		Success: st.err == nil,
		Updated: st.updated,
	}
	if st.err != nil {
		res.Error = st.err.Error()
	}
	return res
}
