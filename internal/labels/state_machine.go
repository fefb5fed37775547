// Package labels provides the tracker label state machine for feedback reports.
//
// State Flow:
// - content-feedback → open report, eligible for processing
// - in-progress → claimed by a processor run
// - completed → handled successfully (closed)
// - failed → handled with an error annotation (closed)
package labels

import (
	"context"
	"fmt"

	"github.com/steveyegge/intake/internal/logging"
)

// State labels used on tracker issues
const (
	// LabelInProgress marks a report claimed by a processor run
	LabelInProgress = "in-progress"
	// LabelCompleted marks a report that was handled successfully
	LabelCompleted = "completed"
	// LabelFailed marks a report that was closed with an error
	LabelFailed = "failed"
)

// Triggers for state transitions
const (
	TriggerClaimed   = "claimed"
	TriggerProcessed = "processed"
	TriggerFailed    = "failed"
	TriggerReleased  = "released"
)

// Tracker is the subset of the issue tracker needed for label transitions
type Tracker interface {
	AddLabel(ctx context.Context, issueID, label string) error
	RemoveLabel(ctx context.Context, issueID, label string) error
}

// TransitionState moves an issue from one state label to another. It removes
// fromLabel (if set), adds toLabel, and logs the transition.
func TransitionState(ctx context.Context, tr Tracker, issueID, fromLabel, toLabel, trigger string) error {
	if fromLabel != "" {
		if err := tr.RemoveLabel(ctx, issueID, fromLabel); err != nil {
			return fmt.Errorf("failed to remove label %s: %w", fromLabel, err)
		}
	}
	if toLabel != "" {
		if err := tr.AddLabel(ctx, issueID, toLabel); err != nil {
			return fmt.Errorf("failed to add label %s: %w", toLabel, err)
		}
	}
	logging.Debugf("[TRACKER] %s: %q -> %q (trigger: %s)", issueID, fromLabel, toLabel, trigger)
	return nil
}

// IsClaimable reports whether an issue with these labels may be picked up:
// it must not be in progress or already handled
func IsClaimable(labels []string) bool {
	return GetStateLabel(labels) == ""
}

// GetStateLabel returns the state label present in labels, or "" when the
// report is still open for processing. Terminal states win over in-progress.
func GetStateLabel(labels []string) string {
	for _, state := range []string{LabelCompleted, LabelFailed, LabelInProgress} {
		if HasLabel(labels, state) {
			return state
		}
	}
	return ""
}

// HasLabel checks if labels contains label
func HasLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

// TerminalLabels returns the labels attached when closing a report
func TerminalLabels(success bool) []string {
	if success {
		return []string{LabelCompleted}
	}
	return []string{LabelFailed}
}
