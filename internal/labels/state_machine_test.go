package labels

import (
	"context"
	"errors"
	"testing"
)

// mockTracker implements the Tracker interface for testing
type mockTracker struct {
	labels      map[string][]string
	addLabelErr error
	remLabelErr error
}

func newMockTracker() *mockTracker {
	return &mockTracker{labels: make(map[string][]string)}
}

func (m *mockTracker) AddLabel(ctx context.Context, issueID, label string) error {
	if m.addLabelErr != nil {
		return m.addLabelErr
	}
	m.labels[issueID] = append(m.labels[issueID], label)
	return nil
}

func (m *mockTracker) RemoveLabel(ctx context.Context, issueID, label string) error {
	if m.remLabelErr != nil {
		return m.remLabelErr
	}
	kept := make([]string, 0)
	for _, l := range m.labels[issueID] {
		if l != label {
			kept = append(kept, l)
		}
	}
	m.labels[issueID] = kept
	return nil
}

func TestTransitionState(t *testing.T) {
	tests := []struct {
		name       string
		initial    []string
		fromLabel  string
		toLabel    string
		addErr     error
		remErr     error
		wantErr    bool
		wantLabels []string
	}{
		{
			name:       "claim open report",
			initial:    []string{"content-feedback"},
			toLabel:    LabelInProgress,
			wantLabels: []string{"content-feedback", LabelInProgress},
		},
		{
			name:       "in-progress to completed",
			initial:    []string{"content-feedback", LabelInProgress},
			fromLabel:  LabelInProgress,
			toLabel:    LabelCompleted,
			wantLabels: []string{"content-feedback", LabelCompleted},
		},
		{
			name:       "release without new label",
			initial:    []string{LabelInProgress},
			fromLabel:  LabelInProgress,
			wantLabels: []string{},
		},
		{
			name:      "remove fails",
			initial:   []string{LabelInProgress},
			fromLabel: LabelInProgress,
			toLabel:   LabelFailed,
			remErr:    errors.New("tracker offline"),
			wantErr:   true,
		},
		{
			name:    "add fails",
			toLabel: LabelInProgress,
			addErr:  errors.New("tracker offline"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newMockTracker()
			tr.labels["1"] = append([]string(nil), tt.initial...)
			tr.addLabelErr = tt.addErr
			tr.remLabelErr = tt.remErr

			err := TransitionState(context.Background(), tr, "1", tt.fromLabel, tt.toLabel, TriggerClaimed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("TransitionState() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			got := tr.labels["1"]
			if len(got) != len(tt.wantLabels) {
				t.Fatalf("labels = %v, want %v", got, tt.wantLabels)
			}
			for i := range got {
				if got[i] != tt.wantLabels[i] {
					t.Errorf("labels = %v, want %v", got, tt.wantLabels)
				}
			}
		})
	}
}

func TestGetStateLabel(t *testing.T) {
	tests := []struct {
		labels []string
		want   string
	}{
		{nil, ""},
		{[]string{"content-feedback"}, ""},
		{[]string{"content-feedback", LabelInProgress}, LabelInProgress},
		{[]string{LabelInProgress, LabelCompleted}, LabelCompleted},
		{[]string{LabelFailed}, LabelFailed},
	}
	for _, tt := range tests {
		if got := GetStateLabel(tt.labels); got != tt.want {
			t.Errorf("GetStateLabel(%v) = %q, want %q", tt.labels, got, tt.want)
		}
		if got := IsClaimable(tt.labels); got != (tt.want == "") {
			t.Errorf("IsClaimable(%v) = %v", tt.labels, got)
		}
	}
}

func TestTerminalLabels(t *testing.T) {
	if got := TerminalLabels(true); len(got) != 1 || got[0] != LabelCompleted {
		t.Errorf("TerminalLabels(true) = %v", got)
	}
	if got := TerminalLabels(false); len(got) != 1 || got[0] != LabelFailed {
		t.Errorf("TerminalLabels(false) = %v", got)
	}
}
