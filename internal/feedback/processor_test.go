package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/intake/internal/labels"
	"github.com/steveyegge/intake/internal/storage"
	"github.com/steveyegge/intake/internal/storage/sqlite"
	"github.com/steveyegge/intake/internal/tracker"
	"github.com/steveyegge/intake/internal/types"
)

type fakeRewriter struct {
	mu     sync.Mutex
	calls  []types.RewriteRequest
	result *types.RewriteResult
	err    error
}

func (f *fakeRewriter) Rewrite(_ context.Context, req types.RewriteRequest) (*types.RewriteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeRewriter) itemIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, c := range f.calls {
		ids = append(ids, c.Item.ID)
	}
	return ids
}

// fixedCounts overrides channel counts of a real store
type fixedCounts struct {
	storage.ContentStore
	counts map[string]int
}

func (f fixedCounts) GetChannelCounts(context.Context) (map[string]int, error) {
	return f.counts, nil
}

type fixture struct {
	db       *sqlite.Storage
	tracker  *tracker.MemoryTracker
	rewriter *fakeRewriter
	proc     *Processor
}

func newFixture(t *testing.T, wrap func(storage.ContentStore) storage.ContentStore, cfg Config, issues ...types.TrackerIssue) *fixture {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var store storage.ContentStore = db
	if wrap != nil {
		store = wrap(db)
	}
	f := &fixture{
		db:      db,
		tracker: tracker.NewMemoryTracker(issues...),
		rewriter: &fakeRewriter{result: &types.RewriteResult{
			Question: "A replacement question about heaps?",
			Answer:   "A heap keeps the smallest element at the root so extraction is O(log n).",
		}},
	}
	f.proc, err = NewProcessor(cfg, f.tracker, store, db, f.rewriter)
	require.NoError(t, err)
	return f
}

func (f *fixture) saveItem(t *testing.T, id, channel string) *types.ContentItem {
	t.Helper()
	item := &types.ContentItem{
		ID:         id,
		Prompt:     "What is the heap property?",
		Answer:     "Every parent is ordered with respect to its children.",
		Difficulty: types.DifficultyBeginner,
		Channel:    channel,
	}
	require.NoError(t, f.db.SaveItem(context.Background(), item))
	return item
}

func report(id, itemID, kind string) types.TrackerIssue {
	return types.TrackerIssue{
		ID:     id,
		Title:  "Feedback on " + itemID,
		Body:   fmt.Sprintf("Question ID: %s\nFeedback Type: %s\nDetails: the answer is too vague", itemID, kind),
		Labels: []string{"content-feedback"},
	}
}

func TestNewProcessorValidation(t *testing.T) {
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer db.Close()
	tr := tracker.NewMemoryTracker()

	_, err = NewProcessor(Config{}, tr, db, db, nil)
	assert.Error(t, err)
	_, err = NewProcessor(DefaultConfig(), nil, db, db, nil)
	assert.Error(t, err)
	_, err = NewProcessor(DefaultConfig(), tr, nil, db, nil)
	assert.Error(t, err)
	_, err = NewProcessor(DefaultConfig(), tr, db, nil, nil)
	assert.Error(t, err)
	_, err = NewProcessor(DefaultConfig(), tr, db, db, nil)
	assert.NoError(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"no label", func(c *Config) { c.Label = "" }, true},
		{"zero limit", func(c *Config) { c.Limit = 0 }, true},
		{"negative max per run", func(c *Config) { c.MaxReportsPerRun = -1 }, true},
		{"unbounded run", func(c *Config) { c.MaxReportsPerRun = 0 }, false},
		{"negative cooldown", func(c *Config) { c.Cooldown = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Equal(t, tt.wantErr, cfg.Validate() != nil)
		})
	}
}

func TestImproveKeepsQuestion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, DefaultConfig(), report("1", "q1", "improve"))
	original := f.saveItem(t, "q1", "algorithms")

	summary, err := f.proc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Fetched)
	assert.Equal(t, 1, summary.Processed)
	assert.NotEmpty(t, summary.RunID)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, []string{"answer"}, summary.Results[0].Updated)

	require.Len(t, f.rewriter.calls, 1)
	assert.Equal(t, types.KindImprove, f.rewriter.calls[0].Kind)
	assert.Equal(t, "the answer is too vague", f.rewriter.calls[0].UserNote)

	item, err := f.db.GetItem(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, original.Prompt, item.Prompt)
	assert.Equal(t, f.rewriter.result.Answer, item.Answer)

	assert.True(t, f.tracker.IsClosed("1"))
	assert.Contains(t, f.tracker.Labels("1"), labels.LabelCompleted)
	assert.NotContains(t, f.tracker.Labels("1"), labels.LabelInProgress)
	comments := f.tracker.Comments("1")
	require.Len(t, comments, 1)
	assert.Contains(t, comments[0], "Feedback Applied")

	entry, err := f.db.Get(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, types.LedgerCompleted, entry.Status)
}

func TestRewriteReplacesQuestion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, DefaultConfig(), report("1", "q1", "rewrite"))
	f.saveItem(t, "q1", "algorithms")

	summary, err := f.proc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)

	item, err := f.db.GetItem(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, f.rewriter.result.Question, item.Prompt)
	assert.Equal(t, "algorithms", item.Channel)
	assert.Equal(t, []string{"question", "answer"}, summary.Results[0].Updated)
}

func TestDisableDoesNotCallRewriter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, DefaultConfig(), report("1", "q1", "disable"))
	f.saveItem(t, "q1", "algorithms")

	summary, err := f.proc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Empty(t, f.rewriter.calls)

	item, err := f.db.GetItem(ctx, "q1")
	require.NoError(t, err)
	assert.True(t, item.IsDisabled())
	assert.Contains(t, f.tracker.Comments("1")[0], "disabled")
}

func TestFailuresCloseWithReason(t *testing.T) {
	tests := []struct {
		name        string
		issue       types.TrackerIssue
		rewriterErr error
		noRewriter  bool
		emptyResult bool
		wantInComm  string
	}{
		{
			name:       "unparseable",
			issue:      types.TrackerIssue{ID: "1", Body: "this is broken", Labels: []string{"content-feedback"}},
			wantInComm: "parse_report",
		},
		{
			name:       "missing item",
			issue:      report("1", "nope", "improve"),
			wantInComm: "question nope not found",
		},
		{
			name:        "rewriter error",
			issue:       report("1", "q1", "improve"),
			rewriterErr: errors.New("upstream unavailable"),
			wantInComm:  "upstream unavailable",
		},
		{
			name:        "empty rewrite",
			issue:       report("1", "q1", "rewrite"),
			emptyResult: true,
			wantInComm:  "returned no content",
		},
		{
			name:       "no rewriter",
			issue:      report("1", "q1", "improve"),
			noRewriter: true,
			wantInComm: ErrNoRewriter.Error(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, nil, DefaultConfig(), tt.issue)
			original := f.saveItem(t, "q1", "algorithms")
			f.rewriter.err = tt.rewriterErr
			if tt.emptyResult {
				f.rewriter.result = &types.RewriteResult{}
			}
			if tt.noRewriter {
				f.proc.rewriter = nil
			}

			summary, err := f.proc.Run(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, summary.Failed)
			assert.Equal(t, 0, summary.Processed)
			assert.NotEmpty(t, summary.Results[0].Error)

			assert.True(t, f.tracker.IsClosed("1"))
			assert.Contains(t, f.tracker.Labels("1"), labels.LabelFailed)
			comments := f.tracker.Comments("1")
			require.Len(t, comments, 1)
			assert.Contains(t, comments[0], "Feedback Not Applied")
			assert.Contains(t, comments[0], tt.wantInComm)

			entry, err := f.db.Get(ctx, "1")
			require.NoError(t, err)
			require.NotNil(t, entry)
			assert.Equal(t, types.LedgerFailed, entry.Status)

			item, err := f.db.GetItem(ctx, "q1")
			require.NoError(t, err)
			assert.Equal(t, original.Answer, item.Answer)
		})
	}
}

func TestSecondRunWithinCooldownIsSkipped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, DefaultConfig())
	f.saveItem(t, "q1", "algorithms")
	batch := []types.TrackerIssue{report("1", "q1", "improve")}

	first, err := f.proc.ProcessBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Processed)

	second, err := f.proc.ProcessBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Processed)
	assert.Equal(t, 1, second.Skipped)

	assert.Len(t, f.rewriter.calls, 1, "no duplicate mutation")
	assert.Len(t, f.tracker.Comments("1"), 1, "no duplicate close comment")
}

func TestStateLabelsAreFiltered(t *testing.T) {
	ctx := context.Background()
	busy := report("1", "q1", "improve")
	busy.Labels = append(busy.Labels, labels.LabelInProgress)
	f := newFixture(t, nil, DefaultConfig(), busy)
	f.saveItem(t, "q1", "algorithms")

	summary, err := f.proc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Empty(t, f.rewriter.calls)
	assert.False(t, f.tracker.IsClosed("1"))
}

func TestReportsProcessedByPriority(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.CertificationChannels = []string{"C"}

	counts := func(s storage.ContentStore) storage.ContentStore {
		return fixedCounts{ContentStore: s, counts: map[string]int{"A": 0, "B": 50, "C": 10}}
	}

	f := newFixture(t, counts, cfg,
		report("1", "b1", "improve"),
		report("2", "c1", "improve"),
		report("3", "a1", "improve"),
		report("4", "b2", "improve"),
	)
	for _, it := range []struct{ id, ch string }{{"a1", "A"}, {"b1", "B"}, {"b2", "B"}, {"c1", "C"}} {
		f.saveItem(t, it.id, it.ch)
	}

	summary, err := f.proc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Processed)
	assert.Equal(t, []string{"a1", "c1", "b1", "b2"}, f.rewriter.itemIDs())
}

func TestMaxReportsPerRun(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.MaxReportsPerRun = 2
	f := newFixture(t, nil, cfg,
		report("1", "q1", "disable"),
		report("2", "q2", "disable"),
		report("3", "q3", "disable"),
	)
	for _, id := range []string{"q1", "q2", "q3"} {
		f.saveItem(t, id, "algorithms")
	}

	summary, err := f.proc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.False(t, f.tracker.IsClosed("3"))

	summary, err = f.proc.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.True(t, f.tracker.IsClosed("3"))
}

func TestProcessBatchImportsIntoTracker(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, DefaultConfig())
	f.saveItem(t, "q1", "algorithms")

	summary, err := f.proc.ProcessBatch(ctx, []types.TrackerIssue{report("sync-1", "q1", "disable")})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.True(t, f.tracker.IsClosed("sync-1"))
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "parse_report", StageParseReport.String())
	assert.Equal(t, "persist_and_close", StagePersistAndClose.String())
	assert.True(t, strings.HasPrefix(Stage(42).String(), "stage("))
}

func TestDispatchTransitions(t *testing.T) {
	f := newFixture(t, nil, DefaultConfig())
	f.saveItem(t, "q1", "algorithms")
	ctx := context.Background()

	rep, err := ParseReport(report("1", "q1", "disable"))
	require.NoError(t, err)
	st := &reportState{issue: report("1", "q1", "disable"), report: rep, stage: StageParseReport}

	var visited []Stage
	for st.stage != StageDone {
		visited = append(visited, st.stage)
		st.stage = f.proc.dispatch(ctx, st)
	}
	assert.Equal(t, []Stage{StageParseReport, StageFetchItem, StageExecuteAction, StagePersistAndClose}, visited)

	st = &reportState{issue: report("2", "gone", "disable"), report: &types.FeedbackReport{IssueID: "2", ItemID: "gone", Kind: types.KindDisable}, stage: StageParseReport}
	visited = nil
	for st.stage != StageDone {
		visited = append(visited, st.stage)
		st.stage = f.proc.dispatch(ctx, st)
	}
	assert.Equal(t, []Stage{StageParseReport, StageFetchItem, StagePersistAndClose}, visited)
	assert.Equal(t, StageFetchItem, st.failedAt)
}
