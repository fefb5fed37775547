package tracker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/intake/internal/types"
)

func TestMemoryTracker(t *testing.T) {
	ctx := context.Background()
	tr := NewMemoryTracker(
		types.TrackerIssue{ID: "1", Title: "a", Labels: []string{"content-feedback"}},
		types.TrackerIssue{ID: "2", Title: "b", Labels: []string{"bug"}},
		types.TrackerIssue{ID: "3", Title: "c", Labels: []string{"content-feedback"}},
	)

	open, err := tr.ListOpenReports(ctx, "content-feedback", 10)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "1", open[0].ID)
	assert.Equal(t, "3", open[1].ID)

	limited, err := tr.ListOpenReports(ctx, "content-feedback", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, tr.AddLabel(ctx, "1", "in-progress"))
	require.NoError(t, tr.AddLabel(ctx, "1", "in-progress"))
	assert.Equal(t, []string{"content-feedback", "in-progress"}, tr.Labels("1"))

	require.NoError(t, tr.RemoveLabel(ctx, "1", "in-progress"))
	assert.Equal(t, []string{"content-feedback"}, tr.Labels("1"))

	require.NoError(t, tr.PostComment(ctx, "1", "done"))
	require.NoError(t, tr.CloseIssue(ctx, "1", []string{"completed"}))
	assert.True(t, tr.IsClosed("1"))
	assert.Equal(t, []string{"done"}, tr.Comments("1"))
	assert.Contains(t, tr.Labels("1"), "completed")

	open, err = tr.ListOpenReports(ctx, "content-feedback", 10)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "3", open[0].ID)

	assert.ErrorIs(t, tr.AddLabel(ctx, "nope", "x"), ErrIssueNotFound)
	assert.ErrorIs(t, tr.PostComment(ctx, "nope", "x"), ErrIssueNotFound)
	assert.ErrorIs(t, tr.CloseIssue(ctx, "nope", nil), ErrIssueNotFound)
}

func TestMemoryTrackerImportKeepsExisting(t *testing.T) {
	ctx := context.Background()
	tr := NewMemoryTracker(types.TrackerIssue{ID: "1", Title: "original"})
	require.NoError(t, tr.ImportIssues(ctx, []types.TrackerIssue{{ID: "1", Title: "replayed"}, {ID: "2"}}))

	open, err := tr.ListOpenReports(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "original", open[0].Title)

	assert.Error(t, tr.ImportIssues(ctx, []types.TrackerIssue{{Title: "no id"}}))
}

func TestDecodeIssue(t *testing.T) {
	issue, err := decodeIssue([]byte(`{"id": " 42 ", "title": "Fix q", "body": "Question ID: q-1", "labels": ["content-feedback"]}`))
	require.NoError(t, err)
	assert.Equal(t, "42", issue.ID)
	assert.True(t, issue.HasLabel("content-feedback"))

	_, err = decodeIssue([]byte(`{"title": "no id"}`))
	assert.Error(t, err)

	_, err = decodeIssue([]byte(`not json`))
	assert.Error(t, err)
}

func TestKafkaConfigValidate(t *testing.T) {
	assert.Error(t, KafkaConfig{}.Validate())
	assert.Error(t, KafkaConfig{Brokers: []string{"localhost:9092"}}.Validate())
	assert.Error(t, KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "reports"}.Validate())
	assert.NoError(t, KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "reports", GroupID: "intake"}.Validate())
}
