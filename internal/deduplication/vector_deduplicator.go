package deduplication

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/steveyegge/intake/internal/embedding"
	"github.com/steveyegge/intake/internal/logging"
	"github.com/steveyegge/intake/internal/metrics"
	"github.com/steveyegge/intake/internal/similarity"
	"github.com/steveyegge/intake/internal/types"
)

// VectorDeduplicator implements the Deduplicator interface using embeddings
// and cosine similarity
type VectorDeduplicator struct {
	embedder embedding.Provider
	index    similarity.Index
	config   Config

	// indexed remembers what went into the index and under which model, so
	// the index can be rebuilt when the embedder switches vector spaces
	mu         sync.Mutex
	indexed    map[string]*types.ContentItem
	indexModel string
}

// Compile-time check that VectorDeduplicator implements Deduplicator
var _ Deduplicator = (*VectorDeduplicator)(nil)

// NewVectorDeduplicator creates a new vector deduplicator
//
// Parameters:
//   - embedder: produces item vectors (must be non-nil)
//   - index: stores vectors for FindSimilar and corpus-less checks (must be non-nil)
//   - config: Configuration for deduplication behavior (must be valid)
func NewVectorDeduplicator(embedder embedding.Provider, index similarity.Index, config Config) (*VectorDeduplicator, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("index cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &VectorDeduplicator{
		embedder: embedder,
		index:    index,
		config:   config,
		indexed:  make(map[string]*types.ContentItem),
	}, nil
}

// Config returns the detector configuration
func (d *VectorDeduplicator) Config() Config {
	return d.config
}

func (d *VectorDeduplicator) text(item *types.ContentItem) (string, error) {
	if item == nil {
		return "", fmt.Errorf("item cannot be nil")
	}
	text := strings.TrimSpace(item.Text())
	if len(text) < d.config.MinTextLength {
		return "", fmt.Errorf("text of %s too short for comparison (len=%d, min=%d)", item.ID, len(text), d.config.MinTextLength)
	}
	return text, nil
}

// embedTexts embeds texts with one EmbedBatch call and returns the model that
// produced them. If the embedder changes model during the call the batch is
// embedded again, so the vectors always share one space.
func (d *VectorDeduplicator) embedTexts(ctx context.Context, texts []string) ([][]float32, string, error) {
	// RequestTimeout is a per-item budget
	timeout := d.config.RequestTimeout * time.Duration(len(texts))
	for attempt := 0; attempt < 2; attempt++ {
		before := d.embedder.Model()
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		vecs, err := d.embedder.EmbedBatch(reqCtx, texts)
		cancel()
		if err != nil {
			return nil, "", err
		}
		if len(vecs) != len(texts) {
			return nil, "", fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
		}
		after := d.embedder.Model()
		if after == before {
			for i := 1; i < len(vecs); i++ {
				if len(vecs[i]) != len(vecs[0]) {
					return nil, "", fmt.Errorf("embedder returned vectors of %d and %d dims", len(vecs[0]), len(vecs[i]))
				}
			}
			return vecs, after, nil
		}
		logging.Warnf("[DEDUP] Embedder switched from %s to %s, re-embedding %d texts", before, after, len(texts))
	}
	return nil, "", fmt.Errorf("embedder model kept changing")
}

// embeddedItem pairs an item with its vector
type embeddedItem struct {
	item *types.ContentItem
	vec  []float32
}

// embedItems embeds items in one space. Items too short to compare are
// returned in failed. When the batch call fails, items are embedded one at a
// time and those that still fail are added to failed.
func (d *VectorDeduplicator) embedItems(ctx context.Context, items []*types.ContentItem) ([]embeddedItem, []string, error) {
	var (
		ok     []*types.ContentItem
		texts  []string
		failed []string
	)
	for _, item := range items {
		t, err := d.text(item)
		if err != nil {
			logging.Warnf("[DEDUP] Skipping item: %v", err)
			if item != nil {
				failed = append(failed, item.ID)
			}
			continue
		}
		ok = append(ok, item)
		texts = append(texts, t)
	}
	if len(texts) == 0 {
		return nil, failed, nil
	}

	vecs, _, err := d.embedTexts(ctx, texts)
	if err == nil {
		out := make([]embeddedItem, len(ok))
		for i := range ok {
			out[i] = embeddedItem{item: ok[i], vec: vecs[i]}
		}
		return out, failed, nil
	}
	if ctx.Err() != nil {
		return nil, nil, ctx.Err()
	}
	logging.Warnf("[DEDUP] Batch embedding of %d items failed, embedding one at a time: %v", len(texts), err)

	out := make([]embeddedItem, 0, len(ok))
	models := make([]string, 0, len(ok))
	for i, item := range ok {
		v, model, err := d.embedTexts(ctx, texts[i:i+1])
		if err != nil {
			logging.Warnf("[DEDUP] Failed to embed %s: %v", item.ID, err)
			failed = append(failed, item.ID)
			continue
		}
		out = append(out, embeddedItem{item: item, vec: v[0]})
		models = append(models, model)
	}
	// vectors made before a model switch are redone in the final space
	final := d.embedder.Model()
	for i := range out {
		if models[i] == final {
			continue
		}
		t, _ := d.text(out[i].item)
		v, model, err := d.embedTexts(ctx, []string{t})
		if err != nil || model != final {
			return nil, nil, fmt.Errorf("failed to re-embed %s after a model switch: %v", out[i].item.ID, err)
		}
		out[i].vec = v[0]
	}
	return out, failed, nil
}

// embed returns the vector of a single item and the model that produced it
func (d *VectorDeduplicator) embed(ctx context.Context, item *types.ContentItem) ([]float32, string, error) {
	t, err := d.text(item)
	if err != nil {
		return nil, "", err
	}
	vecs, model, err := d.embedTexts(ctx, []string{t})
	if err != nil {
		return nil, "", fmt.Errorf("failed to embed %s: %w", item.ID, err)
	}
	return vecs[0], model, nil
}

// Index embeds items and adds them to the similarity index
func (d *VectorDeduplicator) Index(ctx context.Context, items []*types.ContentItem) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addLocked(ctx, items)
}

func (d *VectorDeduplicator) addLocked(ctx context.Context, items []*types.ContentItem) (int, error) {
	embedded, _, err := d.embedItems(ctx, items)
	if err != nil {
		return 0, err
	}
	model := d.embedder.Model()
	if d.indexModel != "" && d.indexModel != model {
		return 0, d.rebuildLocked(ctx, append(d.indexedItemsLocked(), items...))
	}
	d.indexModel = model

	indexed := 0
	for _, e := range embedded {
		if err := d.index.Add(ctx, similarity.Entry{ID: e.item.ID, Channel: e.item.Channel, Vector: e.vec}); err != nil {
			logging.Warnf("[DEDUP] Failed to index %s: %v", e.item.ID, err)
			continue
		}
		d.indexed[e.item.ID] = e.item
		indexed++
	}
	logging.Debugf("[DEDUP] Indexed %d/%d items", indexed, len(items))
	return indexed, nil
}

func (d *VectorDeduplicator) indexedItemsLocked() []*types.ContentItem {
	items := make([]*types.ContentItem, 0, len(d.indexed))
	for _, it := range d.indexed {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

// rebuildLocked replaces every indexed vector with one from the current model
func (d *VectorDeduplicator) rebuildLocked(ctx context.Context, items []*types.ContentItem) error {
	logging.Warnf("[DEDUP] Embedder moved from %s to %s, re-indexing %d items",
		d.indexModel, d.embedder.Model(), len(d.indexed))
	d.indexModel = ""
	d.indexed = make(map[string]*types.ContentItem, len(items))
	_, err := d.addLocked(ctx, items)
	return err
}

// ensureSpace re-indexes when the index was built under another model
func (d *VectorDeduplicator) ensureSpace(ctx context.Context, model string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.indexModel == "" || d.indexModel == model {
		return nil
	}
	return d.rebuildLocked(ctx, d.indexedItemsLocked())
}

// FindSimilar searches the index for items similar to item
func (d *VectorDeduplicator) FindSimilar(ctx context.Context, item *types.ContentItem, threshold float64, excludeIDs []string) ([]similarity.Match, error) {
	vec, model, err := d.embed(ctx, item)
	if err != nil {
		return nil, err
	}
	if err := d.ensureSpace(ctx, model); err != nil {
		return nil, err
	}
	if now := d.embedder.Model(); now != model {
		if vec, _, err = d.embed(ctx, item); err != nil {
			return nil, err
		}
	}
	exclude := append([]string{item.ID}, excludeIDs...)
	return d.index.Search(ctx, vec, similarity.Query{
		Threshold:  threshold,
		ExcludeIDs: exclude,
		Limit:      d.config.MaxCandidates,
	})
}

// CheckDuplicate reports the closest match for item
func (d *VectorDeduplicator) CheckDuplicate(ctx context.Context, item *types.ContentItem, corpus []*types.ContentItem) (*DuplicateDecision, error) {
	decision, err := d.checkDuplicate(ctx, item, corpus)
	if err != nil {
		if !d.config.FailOpen {
			return nil, err
		}
		logging.Warnf("[DEDUP] Duplicate check failed: %v (treating as unique)", err)
		return &DuplicateDecision{
			Classification: types.ClassUnique,
			Error:          err.Error(),
		}, nil
	}
	return decision, nil
}

func (d *VectorDeduplicator) checkDuplicate(ctx context.Context, item *types.ContentItem, corpus []*types.ContentItem) (*DuplicateDecision, error) {
	if item == nil {
		return nil, fmt.Errorf("item cannot be nil")
	}
	thresholds := d.config.Thresholds()

	if corpus == nil {
		matches, err := d.FindSimilar(ctx, item, 0, nil)
		if err != nil {
			return nil, err
		}
		decision := &DuplicateDecision{Classification: types.ClassUnique, ComparedCount: d.index.Len()}
		if len(matches) > 0 {
			decision.DuplicateOf = matches[0].ID
			decision.MaxSimilarity = matches[0].Score
			decision.Classification = thresholds.Classify(matches[0].Score)
			decision.IsDuplicate = decision.Classification == types.ClassDuplicate
		}
		return decision, nil
	}

	decision := &DuplicateDecision{Classification: types.ClassUnique}
	if len(corpus) == 0 {
		return decision, nil
	}
	if _, err := d.text(item); err != nil {
		return nil, err
	}

	batch := []*types.ContentItem{item}
	for _, other := range corpus {
		if other != nil && other.ID != item.ID {
			batch = append(batch, other)
		}
	}
	embedded, _, err := d.embedItems(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(embedded) == 0 || embedded[0].item != item {
		if _, _, err := d.embed(ctx, item); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("failed to embed %s", item.ID)
	}
	vec := embedded[0].vec
	for _, other := range embedded[1:] {
		decision.ComparedCount++
		score := similarity.Cosine(vec, other.vec)
		if score > decision.MaxSimilarity || (score == decision.MaxSimilarity && decision.DuplicateOf != "" && other.item.ID < decision.DuplicateOf) {
			decision.MaxSimilarity = score
			decision.DuplicateOf = other.item.ID
		}
	}
	if decision.DuplicateOf != "" {
		decision.Classification = thresholds.Classify(decision.MaxSimilarity)
		decision.IsDuplicate = decision.Classification == types.ClassDuplicate
	}
	return decision, nil
}

// DetectBatch finds duplicate and near-duplicate pairs within items
func (d *VectorDeduplicator) DetectBatch(ctx context.Context, items []*types.ContentItem) (*BatchResult, error) {
	startTime := time.Now()
	thresholds := d.config.Thresholds()

	result := &BatchResult{
		ItemIDs: []string{},
		Pairs:   []types.SimilarityRecord{},
	}
	result.Stats.TotalItems = len(items)

	seen := make(map[string]bool, len(items))
	unique := make([]*types.ContentItem, 0, len(items))
	for i, item := range items {
		if item == nil {
			return nil, fmt.Errorf("item at index %d is nil", i)
		}
		if seen[item.ID] {
			result.Stats.SkippedRepeats++
			continue
		}
		seen[item.ID] = true
		result.ItemIDs = append(result.ItemIDs, item.ID)
		unique = append(unique, item)
	}

	embedded, failed, err := d.embedItems(ctx, unique)
	if err != nil {
		return nil, err
	}
	result.Failed = append(result.Failed, failed...)
	result.Stats.Embedded = len(embedded)

	for i, cur := range embedded {
		for _, prev := range embedded[:i] {
			result.Stats.ComparisonsMade++
			score := similarity.Cosine(cur.vec, prev.vec)
			class := thresholds.Classify(score)
			if class == types.ClassUnique {
				continue
			}
			result.Pairs = append(result.Pairs, types.NewSimilarityRecord(prev.item.ID, cur.item.ID, score, class))
			if class == types.ClassDuplicate {
				result.Stats.DuplicateCount++
			} else {
				result.Stats.NearDuplicateCount++
			}
			metrics.DuplicatePairs.WithLabelValues(string(class)).Inc()
		}
	}

	sort.Slice(result.Pairs, func(i, j int) bool {
		if result.Pairs[i].ItemA != result.Pairs[j].ItemA {
			return result.Pairs[i].ItemA < result.Pairs[j].ItemA
		}
		return result.Pairs[i].ItemB < result.Pairs[j].ItemB
	})
	result.Stats.ProcessingTimeMs = time.Since(startTime).Milliseconds()

	logging.Infof("[DEDUP] Batch of %d items: %d duplicate pairs, %d near-duplicate pairs, %d failed",
		len(items), result.Stats.DuplicateCount, result.Stats.NearDuplicateCount, len(result.Failed))
	return result, nil
}
