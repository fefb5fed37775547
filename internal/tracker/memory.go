package tracker

import (
	"context"
	"fmt"
	"sync"

	"github.com/steveyegge/intake/internal/types"
)

type memoryIssue struct {
	issue    types.TrackerIssue
	closed   bool
	comments []string
}

// MemoryTracker is an in-process Tracker. Issues are listed in insertion order.
type MemoryTracker struct {
	mu     sync.Mutex
	order  []string
	issues map[string]*memoryIssue
}

var (
	_ Tracker  = (*MemoryTracker)(nil)
	_ Importer = (*MemoryTracker)(nil)
)

// NewMemoryTracker creates a tracker holding the given open issues
func NewMemoryTracker(issues ...types.TrackerIssue) *MemoryTracker {
	t := &MemoryTracker{issues: make(map[string]*memoryIssue)}
	_ = t.ImportIssues(context.Background(), issues)
	return t
}

// ImportIssues adds issues that are not yet known; known issues are left untouched
func (t *MemoryTracker) ImportIssues(_ context.Context, issues []types.TrackerIssue) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, issue := range issues {
		if issue.ID == "" {
			return fmt.Errorf("issue id is required")
		}
		if _, ok := t.issues[issue.ID]; ok {
			continue
		}
		issue.Labels = append([]string(nil), issue.Labels...)
		t.issues[issue.ID] = &memoryIssue{issue: issue}
		t.order = append(t.order, issue.ID)
	}
	return nil
}

func (t *MemoryTracker) ListOpenReports(_ context.Context, label string, limit int) ([]types.TrackerIssue, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []types.TrackerIssue
	for _, id := range t.order {
		mi := t.issues[id]
		if mi.closed || (label != "" && !mi.issue.HasLabel(label)) {
			continue
		}
		cp := mi.issue
		cp.Labels = append([]string(nil), mi.issue.Labels...)
		out = append(out, cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (t *MemoryTracker) AddLabel(_ context.Context, issueID, label string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	mi, ok := t.issues[issueID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrIssueNotFound, issueID)
	}
	if !mi.issue.HasLabel(label) {
		mi.issue.Labels = append(mi.issue.Labels, label)
	}
	return nil
}

func (t *MemoryTracker) RemoveLabel(_ context.Context, issueID, label string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	mi, ok := t.issues[issueID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrIssueNotFound, issueID)
	}
	kept := mi.issue.Labels[:0]
	for _, l := range mi.issue.Labels {
		if l != label {
			kept = append(kept, l)
		}
	}
	mi.issue.Labels = kept
	return nil
}

func (t *MemoryTracker) PostComment(_ context.Context, issueID, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	mi, ok := t.issues[issueID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrIssueNotFound, issueID)
	}
	mi.comments = append(mi.comments, text)
	return nil
}

func (t *MemoryTracker) CloseIssue(ctx context.Context, issueID string, labels []string) error {
	for _, l := range labels {
		if err := t.AddLabel(ctx, issueID, l); err != nil {
			return err
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.issues[issueID].closed = true
	return nil
}

// Comments returns the comments posted on an issue
func (t *MemoryTracker) Comments(issueID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if mi, ok := t.issues[issueID]; ok {
		return append([]string(nil), mi.comments...)
	}
	return nil
}

// Labels returns the current labels of an issue
func (t *MemoryTracker) Labels(issueID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if mi, ok := t.issues[issueID]; ok {
		return append([]string(nil), mi.issue.Labels...)
	}
	return nil
}

// IsClosed reports whether an issue has been closed
func (t *MemoryTracker) IsClosed(issueID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	mi, ok := t.issues[issueID]
	return ok && mi.closed
}
