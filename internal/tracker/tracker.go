// Package tracker defines the issue tracker contract used by the feedback
// processor, with an in-memory tracker and a Kafka batch source.
package tracker

import (
	"context"
	"errors"

	"github.com/steveyegge/intake/internal/types"
)

// ErrIssueNotFound is returned when a tracker operation names an unknown issue
var ErrIssueNotFound = errors.New("issue not found")

// Tracker is the minimal issue tracker surface. Implementations must be safe
// for sequential use by a single processor run.
type Tracker interface {
	// ListOpenReports returns up to limit open issues carrying label, oldest first
	ListOpenReports(ctx context.Context, label string, limit int) ([]types.TrackerIssue, error)

	AddLabel(ctx context.Context, issueID, label string) error
	RemoveLabel(ctx context.Context, issueID, label string) error
	PostComment(ctx context.Context, issueID, text string) error

	// CloseIssue closes the issue and attaches labels
	CloseIssue(ctx context.Context, issueID string, labels []string) error
}

// Importer accepts issues delivered outside the tracker (cross-system sync)
// so that later label and close operations can find them
type Importer interface {
	ImportIssues(ctx context.Context, issues []types.TrackerIssue) error
}
