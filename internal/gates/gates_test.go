package gates

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/intake/internal/config"
	"github.com/steveyegge/intake/internal/deduplication"
	"github.com/steveyegge/intake/internal/embedding"
	"github.com/steveyegge/intake/internal/similarity"
	"github.com/steveyegge/intake/internal/types"
)

const (
	validPrompt = "How is binary search fast?"
	validAnswer = "Binary search halves a sorted array each step, so it is O(log n)."
)

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	dedup, err := deduplication.NewVectorDeduplicator(
		embedding.NewHashedProvider(384), similarity.NewMemoryIndex(), deduplication.DefaultConfig())
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Deduplicator = dedup
	r, err := NewRunner(&cfg)
	require.NoError(t, err)
	return r
}

func validItem() *types.ContentItem {
	return &types.ContentItem{
		ID:      "q-1",
		Prompt:  validPrompt,
		Answer:  validAnswer,
		Channel: "algorithms",
	}
}

// fixedStage returns a canned result for exercising aggregation
type fixedStage struct {
	name     StageName
	score    int
	blocking []string
	hardFail bool
}

func (f *fixedStage) Name() StageName { return f.name }

func (f *fixedStage) Run(context.Context, *types.ContentItem, *EvalContext) *StageResult {
	return &StageResult{Stage: f.name, Score: f.score, Blocking: f.blocking, HardFail: f.hardFail}
}

func uniformStages(score int) []Stage {
	return []Stage{
		&fixedStage{name: StageStructure, score: 100},
		&fixedStage{name: StageDuplicate, score: score},
		&fixedStage{name: StageContent, score: score},
		&fixedStage{name: StageDifficulty, score: score},
		&fixedStage{name: StageRelevance, score: score},
		&fixedStage{name: StageMedia, score: score},
	}
}

type erroringDedup struct{ deduplication.Deduplicator }

func (erroringDedup) CheckDuplicate(context.Context, *types.ContentItem, []*types.ContentItem) (*deduplication.DuplicateDecision, error) {
	return nil, errors.New("index offline")
}

type failingChecker struct{}

func (failingChecker) Check(context.Context, string) error { return errors.New("status 404") }

func TestNewRunner(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		_, err := NewRunner(nil)
		assert.Error(t, err)
	})

	t.Run("missing deduplicator", func(t *testing.T) {
		cfg := DefaultConfig()
		_, err := NewRunner(&cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "deduplicator is required")
	})

	t.Run("custom stages need no deduplicator", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Stages = uniformStages(100)
		_, err := NewRunner(&cfg)
		assert.NoError(t, err)
	})

	t.Run("invalid weights", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Stages = uniformStages(100)
		cfg.Weights.Media = 0.5
		_, err := NewRunner(&cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sum to 1.0")
	})
}

func TestEvaluateApprovesCleanItem(t *testing.T) {
	r := newTestRunner(t)

	card := r.Evaluate(context.Background(), validItem(), &EvalContext{Corpus: []*types.ContentItem{}})

	assert.True(t, card.StructureValid)
	assert.Equal(t, 100, card.Scores.Duplicate)
	assert.Equal(t, 80, card.Scores.Content, "short answer deduction")
	assert.Equal(t, 100, card.Scores.Difficulty)
	assert.Equal(t, 100, card.Scores.Relevance)
	assert.Equal(t, 100, card.Scores.Media)
	assert.Equal(t, 94, card.OverallScore)
	assert.Equal(t, types.DecisionApproved, card.Decision)
	assert.Empty(t, card.BlockingIssues)
}

func TestEvaluateStructureViolationScoresZero(t *testing.T) {
	r := newTestRunner(t)

	tests := []struct {
		name   string
		mutate func(*types.ContentItem)
	}{
		{"missing question mark", func(i *types.ContentItem) { i.Prompt = "Explain how binary search works" }},
		{"prompt too short", func(i *types.ContentItem) { i.Prompt = "Binary search?" }},
		{"answer too short", func(i *types.ContentItem) { i.Answer = "It halves the range." }},
		{"duplicate tags", func(i *types.ContentItem) { i.Tags = []string{"search", "Search"} }},
		{"missing id", func(i *types.ContentItem) { i.ID = "" }},
		{"unknown difficulty", func(i *types.ContentItem) { i.Difficulty = "expert" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := validItem()
			tt.mutate(item)
			card := r.Evaluate(context.Background(), item, nil)
			assert.False(t, card.StructureValid)
			assert.Equal(t, 0, card.OverallScore)
			assert.Equal(t, types.DecisionRejected, card.Decision)
			assert.NotEmpty(t, card.Issues)
		})
	}

	t.Run("nil item", func(t *testing.T) {
		card := r.Evaluate(context.Background(), nil, nil)
		assert.Equal(t, 0, card.OverallScore)
		assert.Equal(t, types.DecisionRejected, card.Decision)
	})
}

func TestEvaluateGrayZone(t *testing.T) {
	tests := []struct {
		score int
		want  types.Decision
	}{
		{100, types.DecisionApproved},
		{70, types.DecisionApproved},
		{60, types.DecisionNeedsReview},
		{55, types.DecisionNeedsReview},
		{54, types.DecisionRejected},
		{0, types.DecisionRejected},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.Stages = uniformStages(tt.score)
		r, err := NewRunner(&cfg)
		require.NoError(t, err)

		card := r.Evaluate(context.Background(), validItem(), nil)
		assert.Equal(t, tt.score, card.OverallScore)
		assert.Equal(t, tt.want, card.Decision, "score %d", tt.score)
	}
}

func TestDecide(t *testing.T) {
	assert.Equal(t, types.DecisionApproved, Decide(70, 70, 15))
	assert.Equal(t, types.DecisionNeedsReview, Decide(60, 70, 15))
	assert.Equal(t, types.DecisionRejected, Decide(54, 70, 15))
	assert.Equal(t, types.DecisionRejected, Decide(69, 70, 0))
}

func TestAggregate(t *testing.T) {
	w := DefaultWeights()
	all := types.SubScores{Structure: 100, Duplicate: 100, Content: 100, Difficulty: 100, Relevance: 100, Media: 100}

	assert.Equal(t, 100, Aggregate(all, true, false, w))
	assert.Equal(t, 0, Aggregate(all, false, false, w))
	assert.Equal(t, 40, Aggregate(all, true, true, w), "blocking caps at 40")

	low := all
	low.Duplicate = 5
	assert.Equal(t, 5, Aggregate(low, true, true, w), "blocking caps at the duplicate score")

	mixed := types.SubScores{Duplicate: 90, Content: 85, Difficulty: 100, Relevance: 75, Media: 100}
	// 22.5 + 25.5 + 15 + 15 + 10
	assert.Equal(t, 88, Aggregate(mixed, true, false, w))
}

func TestEvaluateBlockingCapsScore(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Stages = uniformStages(100)
	cfg.Stages[2] = &fixedStage{name: StageContent, score: 100, blocking: []string{"copyright notice"}}
	r, err := NewRunner(&cfg)
	require.NoError(t, err)

	card := r.Evaluate(context.Background(), validItem(), nil)
	assert.Equal(t, 40, card.OverallScore)
	assert.Equal(t, types.DecisionRejected, card.Decision)
	assert.Equal(t, []string{"content: copyright notice"}, card.BlockingIssues)
}

func TestDuplicateStage(t *testing.T) {
	r := newTestRunner(t)
	ctx := context.Background()

	t.Run("exact copy blocks", func(t *testing.T) {
		existing := validItem()
		existing.ID = "q-0"
		card := r.Evaluate(ctx, validItem(), &EvalContext{Corpus: []*types.ContentItem{existing}})

		assert.Equal(t, 0, card.Scores.Duplicate)
		assert.Equal(t, "q-0", card.SimilarTo)
		assert.InDelta(t, 1.0, card.MaxSimilarity, 1e-6)
		require.Len(t, card.BlockingIssues, 1)
		assert.Contains(t, card.BlockingIssues[0], "duplicate of q-0")
		assert.Equal(t, 0, card.OverallScore)
		assert.Equal(t, types.DecisionRejected, card.Decision)
	})

	t.Run("unrelated corpus passes", func(t *testing.T) {
		other := &types.ContentItem{
			ID:      "q-9",
			Prompt:  "Why would a service keep a pool of database connections open?",
			Answer:  "Reusing established sessions lowers latency and protects the server from storms.",
			Channel: "databases",
		}
		card := r.Evaluate(ctx, validItem(), &EvalContext{Corpus: []*types.ContentItem{other}})
		assert.Empty(t, card.BlockingIssues)
		assert.Greater(t, card.Scores.Duplicate, 50)
	})

	t.Run("detector error is blocking", func(t *testing.T) {
		stage := &DuplicateStage{dedup: erroringDedup{}, blockAbove: 0.9, warnAbove: 0.8}
		res := stage.Run(ctx, validItem(), &EvalContext{})
		assert.Equal(t, 0, res.Score)
		require.Len(t, res.Blocking, 1)
		assert.Contains(t, res.Blocking[0], "duplicate check failed")
	})
}

func TestContentStage(t *testing.T) {
	stage := &ContentStage{cfg: DefaultConfig().Content, technical: toSet(DefaultConfig().TechnicalChannels)}
	long := strings.Repeat("The algorithm walks the structure and reports each visited position. ", 4)

	tests := []struct {
		name      string
		item      *types.ContentItem
		wantScore int
		wantIssue string
		wantWarn  string
	}{
		{
			name:      "clean long answer with code",
			item:      &types.ContentItem{Prompt: validPrompt, Answer: long + " Call search(arr, x) to start.", Channel: "algorithms"},
			wantScore: 100,
		},
		{
			name:      "placeholder",
			item:      &types.ContentItem{Prompt: validPrompt, Answer: long + " TODO: add code search(x).", Channel: "algorithms"},
			wantScore: 75,
			wantIssue: `placeholder text "todo"`,
		},
		{
			name:      "short answer",
			item:      &types.ContentItem{Prompt: validPrompt, Answer: validAnswer, Channel: "algorithms"},
			wantScore: 80,
			wantIssue: "below 100",
		},
		{
			name:      "technical answer without code",
			item:      &types.ContentItem{Prompt: validPrompt, Answer: long, Channel: "algorithms"},
			wantScore: 85,
			wantWarn:  "no code-like tokens",
		},
		{
			name:      "non technical channel skips code check",
			item:      &types.ContentItem{Prompt: validPrompt, Answer: long, Channel: "behavioral"},
			wantScore: 100,
		},
		{
			name: "generic phrasing for advanced item",
			item: &types.ContentItem{
				Prompt: validPrompt, Answer: long + " It depends on various factors, use search(x).",
				Channel: "algorithms", Difficulty: types.DifficultyAdvanced,
			},
			wantScore: 80,
			wantWarn:  "generic phrase",
		},
		{
			name: "generic phrasing allowed for beginners",
			item: &types.ContentItem{
				Prompt: validPrompt, Answer: long + " It depends on various factors, use search(x).",
				Channel: "algorithms", Difficulty: types.DifficultyBeginner,
			},
			wantScore: 100,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := stage.Run(context.Background(), tt.item, nil)
			assert.Equal(t, tt.wantScore, res.Score)
			if tt.wantIssue != "" {
				require.NotEmpty(t, res.Issues)
				assert.Contains(t, res.Issues[0], tt.wantIssue)
			}
			if tt.wantWarn != "" {
				require.NotEmpty(t, res.Warnings)
				assert.Contains(t, res.Warnings[0], tt.wantWarn)
			}
		})
	}
}

func TestCountSentinel(t *testing.T) {
	assert.Equal(t, 2, countSentinel("todo: fix. more todos later", "todo"))
	assert.Equal(t, 0, countSentinel("mastodon is a network", "todo"))
	assert.Equal(t, 1, countSentinel("lorem ipsum dolor", "lorem ipsum"))
}

func TestDifficultyStage(t *testing.T) {
	stage := &DifficultyStage{}
	ctx := context.Background()
	longAnswer := strings.Repeat("Each node keeps a pointer to the next one in the chain. ", 5)

	beginner := &types.ContentItem{
		Prompt:     "What is a lock-free queue?",
		Answer:     longAnswer + " It relies on consensus and amortized retries.",
		Difficulty: types.DifficultyBeginner,
	}
	res := stage.Run(ctx, beginner, nil)
	assert.Equal(t, 80, res.Score)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "advanced terms")

	advancedShort := &types.ContentItem{
		Prompt:     "What is a linked list?",
		Answer:     "A simple introduction: a basic chain of nodes.",
		Difficulty: types.DifficultyAdvanced,
	}
	res = stage.Run(ctx, advancedShort, nil)
	assert.Equal(t, 70, res.Score, "introductory vocabulary and short answer")

	intermediate := &types.ContentItem{Prompt: "What is a linked list?", Answer: "A simple introduction.", Difficulty: types.DifficultyIntermediate}
	assert.Equal(t, 100, stage.Run(ctx, intermediate, nil).Score)

	verbose := &types.ContentItem{Prompt: "What is a list?", Answer: strings.Repeat("a", 1600), Difficulty: types.DifficultyBeginner}
	assert.Equal(t, 90, stage.Run(ctx, verbose, nil).Score)
}

func TestRelevanceStage(t *testing.T) {
	stage := &RelevanceStage{lexicon: config.DefaultLexicon()}
	ctx := context.Background()

	res := stage.Run(ctx, validItem(), nil)
	assert.Equal(t, 100, res.Score)

	mild := validItem()
	mild.Prompt = "Why does binary matter here?"
	mild.Answer = "Because binary hash representations make things efficient for most machines in use."
	res = stage.Run(ctx, mild, nil)
	assert.Equal(t, 75, res.Score, "2 of 12 keywords")

	none := validItem()
	none.Prompt = "Why do teams write retrospectives?"
	none.Answer = "Retrospectives let people reflect on what went well and what could change next time."
	res = stage.Run(ctx, none, nil)
	assert.Equal(t, 50, res.Score)
	assert.NotEmpty(t, res.Issues)

	unknown := validItem()
	unknown.Channel = "astrology"
	res = stage.Run(ctx, unknown, nil)
	assert.Equal(t, 70, res.Score)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "astrology")
}

func TestKeywordMatch(t *testing.T) {
	assert.InDelta(t, 0.5, KeywordMatch("Binary TREE walk", []string{"binary", "tree", "graph", "hash"}), 1e-9)
	assert.Equal(t, 0.0, KeywordMatch("anything", nil))
}

func TestMediaStage(t *testing.T) {
	ctx := context.Background()
	stage := &MediaStage{}

	tests := []struct {
		name  string
		item  *types.ContentItem
		score int
	}{
		{"no media", &types.ContentItem{}, 100},
		{"valid diagram", &types.ContentItem{Diagram: "graph TD\n  A --> B\n  B --> C"}, 100},
		{"fenced diagram", &types.ContentItem{Diagram: "```mermaid\nsequenceDiagram\n  A->>B: hi\n  B->>A: ok\n```"}, 100},
		{"too few lines", &types.ContentItem{Diagram: "graph TD\n  A --> B"}, 70},
		{"unknown opener", &types.ContentItem{Diagram: "boxes\n  A --> B\n  B --> C"}, 70},
		{"broken diagram", &types.ContentItem{Diagram: "boxes"}, 40},
		{"youtube link", &types.ContentItem{VideoURL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"}, 100},
		{"short youtube link", &types.ContentItem{VideoURL: "https://youtu.be/dQw4w9WgXcQ"}, 100},
		{"vimeo link", &types.ContentItem{VideoURL: "https://vimeo.com/123456"}, 100},
		{"direct file", &types.ContentItem{VideoURL: "https://cdn.example.com/videos/bst.mp4"}, 100},
		{"bad link", &types.ContentItem{VideoURL: "not a url"}, 60},
		{"page link", &types.ContentItem{VideoURL: "https://example.com/about"}, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.score, stage.Run(ctx, tt.item, nil).Score)
		})
	}

	t.Run("unreachable link warns", func(t *testing.T) {
		checked := &MediaStage{checker: failingChecker{}}
		res := checked.Run(ctx, &types.ContentItem{VideoURL: "https://youtu.be/dQw4w9WgXcQ"}, nil)
		assert.Equal(t, 90, res.Score)
		require.Len(t, res.Warnings, 1)
		assert.Contains(t, res.Warnings[0], "did not resolve")
	})
}

func TestWeightsFromMap(t *testing.T) {
	w, err := WeightsFromMap(map[string]float64{"duplicate": 0.30, "content": 0.25})
	require.NoError(t, err)
	assert.InDelta(t, 0.30, w.Duplicate, 1e-9)

	_, err = WeightsFromMap(map[string]float64{"style": 0.1})
	assert.Error(t, err)

	_, err = WeightsFromMap(map[string]float64{"media": 0.5})
	assert.Error(t, err)

	_, err = WeightsFromMap(map[string]float64{"media": -0.1, "content": 0.5})
	assert.Error(t, err)
}

func TestFormatScoreCard(t *testing.T) {
	r := newTestRunner(t)
	existing := validItem()
	existing.ID = "q-0"
	card := r.Evaluate(context.Background(), validItem(), &EvalContext{Corpus: []*types.ContentItem{existing}})

	out := FormatScoreCard(card)
	assert.Contains(t, out, "q-1")
	assert.Contains(t, out, "✗ REJECTED")
	assert.Contains(t, out, "closest match: q-0")
	assert.Contains(t, out, "Blocking (1)")
	assert.Empty(t, FormatScoreCard(nil))
}
