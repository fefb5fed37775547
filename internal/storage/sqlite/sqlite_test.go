package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/steveyegge/intake/internal/storage"
	"github.com/steveyegge/intake/internal/tracker"
	"github.com/steveyegge/intake/internal/types"
)

func setupTestDB(t *testing.T) *Storage {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	return store
}

func testItem(id, channel string) *types.ContentItem {
	return &types.ContentItem{
		ID:         id,
		Prompt:     "What does " + id + " test?",
		Answer:     "It tests persistence of item " + id + ".",
		Tags:       []string{"storage", channel},
		Difficulty: types.DifficultyIntermediate,
		Channel:    channel,
	}
}

func TestNewCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "intake.db")
	store, err := New(path)
	if err != nil {
		t.Fatalf("New(%s) failed: %v", path, err)
	}
	defer func() { _ = store.Close() }()

	if err := store.SaveItem(context.Background(), testItem("q1", "algorithms")); err != nil {
		t.Fatalf("SaveItem failed: %v", err)
	}
}

func TestItemRoundTrip(t *testing.T) {
	store := setupTestDB(t)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	item := testItem("q1", "algorithms")
	if err := store.SaveItem(ctx, item); err != nil {
		t.Fatalf("SaveItem failed: %v", err)
	}

	got, err := store.GetItem(ctx, "q1")
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if got.Prompt != item.Prompt || got.Answer != item.Answer {
		t.Errorf("GetItem returned %+v, want %+v", got, item)
	}
	if len(got.Tags) != 2 || got.Tags[1] != "algorithms" {
		t.Errorf("Tags = %v, want [storage algorithms]", got.Tags)
	}
	if got.Status != types.StatusActive {
		t.Errorf("Status = %q, want active", got.Status)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt was not set")
	}

	created := got.CreatedAt
	item.Answer = "A longer answer that replaces the original one."
	if err := store.SaveItem(ctx, item); err != nil {
		t.Fatalf("SaveItem (update) failed: %v", err)
	}
	got, err = store.GetItem(ctx, "q1")
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if got.Answer != item.Answer {
		t.Errorf("Answer = %q, want %q", got.Answer, item.Answer)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt changed on update: %v != %v", got.CreatedAt, created)
	}
}

func TestGetItemNotFound(t *testing.T) {
	store := setupTestDB(t)
	defer func() { _ = store.Close() }()

	_, err := store.GetItem(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetItem error = %v, want ErrNotFound", err)
	}
	err = store.SetItemStatus(context.Background(), "missing", types.StatusDisabled)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("SetItemStatus error = %v, want ErrNotFound", err)
	}
}

func TestSaveItemRejectsInvalid(t *testing.T) {
	store := setupTestDB(t)
	defer func() { _ = store.Close() }()

	if err := store.SaveItem(context.Background(), nil); err == nil {
		t.Error("expected error for nil item")
	}
	if err := store.SaveItem(context.Background(), &types.ContentItem{Channel: "x"}); err == nil {
		t.Error("expected error for item without id")
	}
}

func TestChannelCountsAndListing(t *testing.T) {
	store := setupTestDB(t)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	for _, it := range []*types.ContentItem{
		testItem("q3", "algorithms"),
		testItem("q1", "algorithms"),
		testItem("q2", "databases"),
		testItem("q4", "databases"),
	} {
		if err := store.SaveItem(ctx, it); err != nil {
			t.Fatalf("SaveItem failed: %v", err)
		}
	}
	if err := store.SetItemStatus(ctx, "q4", types.StatusDisabled); err != nil {
		t.Fatalf("SetItemStatus failed: %v", err)
	}

	counts, err := store.GetChannelCounts(ctx)
	if err != nil {
		t.Fatalf("GetChannelCounts failed: %v", err)
	}
	if counts["algorithms"] != 2 || counts["databases"] != 1 {
		t.Errorf("counts = %v, want algorithms:2 databases:1", counts)
	}

	all, err := store.ListItems(ctx, types.ItemFilter{})
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	var ids []string
	for _, it := range all {
		ids = append(ids, it.ID)
	}
	if len(ids) != 4 || ids[0] != "q1" || ids[3] != "q4" {
		t.Errorf("ListItems ids = %v, want ordered q1..q4", ids)
	}

	active, err := store.ListItems(ctx, types.ItemFilter{Channel: "databases", Status: types.StatusActive})
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(active) != 1 || active[0].ID != "q2" {
		t.Errorf("filtered ListItems = %v, want [q2]", active)
	}

	limited, err := store.ListItems(ctx, types.ItemFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limited ListItems returned %d items, want 2", len(limited))
	}
}

func TestLedgerClaimLifecycle(t *testing.T) {
	store := setupTestDB(t)
	defer func() { _ = store.Close() }()
	ctx := context.Background()
	cooldown := 24 * time.Hour

	entry, err := store.Get(ctx, "r1")
	if err != nil || entry != nil {
		t.Fatalf("Get on empty ledger = %v, %v; want nil, nil", entry, err)
	}

	ok, err := store.TryClaim(ctx, "r1", cooldown)
	if err != nil || !ok {
		t.Fatalf("first TryClaim = %v, %v; want true", ok, err)
	}
	ok, err = store.TryClaim(ctx, "r1", cooldown)
	if err != nil || ok {
		t.Fatalf("second TryClaim = %v, %v; want false while processing", ok, err)
	}

	if err := store.MarkCompleted(ctx, "r1"); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}
	entry, err = store.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Status != types.LedgerCompleted || entry.CompletedAt == nil {
		t.Errorf("entry = %+v, want completed with timestamp", entry)
	}

	ok, err = store.TryClaim(ctx, "r1", cooldown)
	if err != nil || ok {
		t.Errorf("TryClaim within cool-down = %v, %v; want false", ok, err)
	}

	// Age the completion past the cool-down
	old := toMillis(time.Now().Add(-25 * time.Hour))
	if _, err := store.db.Exec(`UPDATE ledger SET completed_at = ?, processed_at = ? WHERE report_id = 'r1'`, old, old); err != nil {
		t.Fatalf("failed to age entry: %v", err)
	}
	ok, err = store.TryClaim(ctx, "r1", cooldown)
	if err != nil || !ok {
		t.Errorf("TryClaim after cool-down = %v, %v; want true", ok, err)
	}
}

func TestLedgerFailedIsRetriable(t *testing.T) {
	store := setupTestDB(t)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	if ok, err := store.TryClaim(ctx, "r2", time.Hour); err != nil || !ok {
		t.Fatalf("TryClaim = %v, %v", ok, err)
	}
	if err := store.MarkFailed(ctx, "r2", "rewrite failed"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	entry, err := store.Get(ctx, "r2")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Status != types.LedgerFailed || entry.Error != "rewrite failed" {
		t.Errorf("entry = %+v, want failed with reason", entry)
	}
	if ok, err := store.TryClaim(ctx, "r2", time.Hour); err != nil || !ok {
		t.Errorf("TryClaim after failure = %v, %v; want true", ok, err)
	}
}

func TestLedgerStaleClaimIsTakenOver(t *testing.T) {
	store := setupTestDB(t)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	if ok, err := store.TryClaim(ctx, "r3", time.Hour); err != nil || !ok {
		t.Fatalf("TryClaim = %v, %v", ok, err)
	}
	stale := toMillis(time.Now().Add(-storage.ClaimTimeout - time.Minute))
	if _, err := store.db.Exec(`UPDATE ledger SET processed_at = ? WHERE report_id = 'r3'`, stale); err != nil {
		t.Fatalf("failed to age claim: %v", err)
	}
	if ok, err := store.TryClaim(ctx, "r3", time.Hour); err != nil || !ok {
		t.Errorf("TryClaim over stale claim = %v, %v; want true", ok, err)
	}
}

func TestLedgerPrune(t *testing.T) {
	store := setupTestDB(t)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		if err := store.MarkCompleted(ctx, id); err != nil {
			t.Fatalf("MarkCompleted failed: %v", err)
		}
	}
	if ok, err := store.TryClaim(ctx, "live", time.Hour); err != nil || !ok {
		t.Fatalf("TryClaim = %v, %v", ok, err)
	}
	old := toMillis(time.Now().Add(-48 * time.Hour))
	if _, err := store.db.Exec(`UPDATE ledger SET processed_at = ? WHERE report_id != 'e'`, old); err != nil {
		t.Fatalf("failed to age entries: %v", err)
	}

	deleted, err := store.Prune(ctx, time.Now().Add(-24*time.Hour), 2)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if deleted != 4 {
		t.Errorf("Prune deleted %d entries, want 4", deleted)
	}
	for id, want := range map[string]bool{"a": false, "e": true, "live": true} {
		entry, err := store.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if (entry != nil) != want {
			t.Errorf("entry %s present = %v, want %v", id, entry != nil, want)
		}
	}

	if _, err := store.Prune(ctx, time.Now(), 0); err == nil {
		t.Error("expected error for zero batch size")
	}
}

func TestLocalTracker(t *testing.T) {
	store := setupTestDB(t)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	issues := []types.TrackerIssue{
		{ID: "1", Title: "Fix q1", Body: "Question ID: q1", Labels: []string{"feedback"}},
		{ID: "2", Title: "Other", Body: "unrelated", Labels: []string{"bug"}},
		{ID: "3", Title: "Fix q2", Body: "Question ID: q2", Labels: []string{"feedback", "in-progress"}},
	}
	if err := store.ImportIssues(ctx, issues); err != nil {
		t.Fatalf("ImportIssues failed: %v", err)
	}
	// Re-import keeps existing state
	if err := store.ImportIssues(ctx, []types.TrackerIssue{{ID: "1", Labels: []string{"other"}}}); err != nil {
		t.Fatalf("ImportIssues failed: %v", err)
	}

	open, err := store.ListOpenReports(ctx, "feedback", 0)
	if err != nil {
		t.Fatalf("ListOpenReports failed: %v", err)
	}
	if len(open) != 2 || open[0].ID != "1" || open[1].ID != "3" {
		t.Fatalf("ListOpenReports = %v, want issues 1 and 3", open)
	}
	if open[0].HasLabel("other") {
		t.Error("re-import should not change labels")
	}
	if !open[1].HasLabel("in-progress") {
		t.Errorf("issue 3 labels = %v, want in-progress", open[1].Labels)
	}

	if err := store.AddLabel(ctx, "1", "in-progress"); err != nil {
		t.Fatalf("AddLabel failed: %v", err)
	}
	if err := store.RemoveLabel(ctx, "1", "in-progress"); err != nil {
		t.Fatalf("RemoveLabel failed: %v", err)
	}
	if err := store.PostComment(ctx, "1", "done"); err != nil {
		t.Fatalf("PostComment failed: %v", err)
	}
	if err := store.CloseIssue(ctx, "1", []string{"completed"}); err != nil {
		t.Fatalf("CloseIssue failed: %v", err)
	}

	comments, err := store.GetComments(ctx, "1")
	if err != nil {
		t.Fatalf("GetComments failed: %v", err)
	}
	if len(comments) != 1 || comments[0] != "done" {
		t.Errorf("comments = %v, want [done]", comments)
	}

	open, err = store.ListOpenReports(ctx, "feedback", 10)
	if err != nil {
		t.Fatalf("ListOpenReports failed: %v", err)
	}
	if len(open) != 1 || open[0].ID != "3" {
		t.Errorf("after close ListOpenReports = %v, want [3]", open)
	}

	if err := store.AddLabel(ctx, "missing", "x"); !errors.Is(err, tracker.ErrIssueNotFound) {
		t.Errorf("AddLabel on missing issue error = %v, want ErrIssueNotFound", err)
	}
	if err := store.CloseIssue(ctx, "missing", nil); !errors.Is(err, tracker.ErrIssueNotFound) {
		t.Errorf("CloseIssue on missing issue error = %v, want ErrIssueNotFound", err)
	}
}
