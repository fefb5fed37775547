package types

import (
	"fmt"
	"time"
)

// TrackerIssue is the report shape exchanged with the issue tracker
type TrackerIssue struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels"`
}

// HasLabel reports whether the issue carries the given label
func (t *TrackerIssue) HasLabel(label string) bool {
	for _, l := range t.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// ReportKind is the action requested by a feedback report
type ReportKind string

const (
	KindImprove ReportKind = "improve"
	KindRewrite ReportKind = "rewrite"
	KindDisable ReportKind = "disable"
)

// IsValid checks if the report kind is valid
func (k ReportKind) IsValid() bool {
	switch k {
	case KindImprove, KindRewrite, KindDisable:
		return true
	}
	return false
}

// FeedbackReport is a parsed tracker issue referencing one content item
type FeedbackReport struct {
	IssueID string     `json:"issue_id"`
	ItemID  string     `json:"item_id"`
	Kind    ReportKind `json:"kind"`
	Detail  string     `json:"detail,omitempty"`
	Channel string     `json:"channel,omitempty"`
}

// Validate checks that the report can be dispatched
func (r *FeedbackReport) Validate() error {
	if r.IssueID == "" {
		return fmt.Errorf("issue_id is required")
	}
	if r.ItemID == "" {
		return fmt.Errorf("item_id is required")
	}
	if !r.Kind.IsValid() {
		return fmt.Errorf("invalid report kind: %q", r.Kind)
	}
	return nil
}

// LedgerStatus is the local processing state of a report
type LedgerStatus string

const (
	LedgerProcessing LedgerStatus = "processing"
	LedgerCompleted  LedgerStatus = "completed"
	LedgerFailed     LedgerStatus = "failed"
)

// IsValid checks if the ledger status is valid
func (s LedgerStatus) IsValid() bool {
	switch s {
	case LedgerProcessing, LedgerCompleted, LedgerFailed:
		return true
	}
	return false
}

// LedgerEntry is the idempotency record of one report
type LedgerEntry struct {
	ReportID    string       `json:"report_id"`
	Status      LedgerStatus `json:"status"`
	ProcessedAt time.Time    `json:"processed_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// CompletedWithin reports whether the entry completed inside the cool-down window
func (e *LedgerEntry) CompletedWithin(window time.Duration, now time.Time) bool {
	if e == nil || e.Status != LedgerCompleted || e.CompletedAt == nil {
		return false
	}
	return now.Sub(*e.CompletedAt) < window
}

// RewriteRequest is sent to the rewriting collaborator
type RewriteRequest struct {
	Item     *ContentItem `json:"item"`
	Kind     ReportKind   `json:"feedback_kind"`
	UserNote string       `json:"user_note,omitempty"`
}

// RewriteResult holds the fields returned by the collaborator. Empty fields
// are left unchanged on the item.
type RewriteResult struct {
	Question    string `json:"question,omitempty"`
	Answer      string `json:"answer,omitempty"`
	Explanation string `json:"explanation,omitempty"`
	Diagram     string `json:"diagram,omitempty"`
}

// IsEmpty reports whether the collaborator returned nothing usable
func (r *RewriteResult) IsEmpty() bool {
	return r == nil || (r.Question == "" && r.Answer == "" && r.Explanation == "" && r.Diagram == "")
}
