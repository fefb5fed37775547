package similarity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/steveyegge/intake/internal/logging"
)

// ElasticConfig configures the Elasticsearch-backed index
type ElasticConfig struct {
	Addresses  []string
	Username   string
	Password   string
	IndexName  string
	Dimensions int
}

// ElasticIndex keeps vectors in an Elasticsearch dense_vector field and
// searches them with approximate kNN
type ElasticIndex struct {
	client *elasticsearch.Client
	index  string
	dims   int
}

var _ Index = (*ElasticIndex)(nil)

type elasticDoc struct {
	ItemID  string    `json:"item_id"`
	Channel string    `json:"channel"`
	Vector  []float32 `json:"vector"`
}

// NewElasticIndex connects to Elasticsearch and creates the index if it is missing
func NewElasticIndex(ctx context.Context, cfg ElasticConfig) (*ElasticIndex, error) {
	if cfg.IndexName == "" {
		return nil, fmt.Errorf("elasticsearch index name is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("elasticsearch dimensions must be positive (got %d)", cfg.Dimensions)
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	idx := &ElasticIndex{client: client, index: cfg.IndexName, dims: cfg.Dimensions}
	if err := idx.ensureIndex(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (e *ElasticIndex) mapping() string {
	return fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"item_id": { "type": "keyword" },
				"channel": { "type": "keyword" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				}
			}
		}
	}`, e.dims)
}

func (e *ElasticIndex) ensureIndex(ctx context.Context) error {
	res, err := e.client.Indices.Exists([]string{e.index}, e.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index %s: %w", e.index, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("unexpected status %d checking index %s", res.StatusCode, e.index)
	}

	res, err = e.client.Indices.Create(
		e.index,
		e.client.Indices.Create.WithContext(ctx),
		e.client.Indices.Create.WithBody(strings.NewReader(e.mapping())),
	)
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", e.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch rejected index %s: %s", e.index, res.String())
	}
	logging.Infof("[INDEX] Created elasticsearch index %s (%d dims)", e.index, e.dims)
	return nil
}

// Add indexes entry, replacing any previous document with the same id
func (e *ElasticIndex) Add(ctx context.Context, entry Entry) error {
	if len(entry.Vector) != e.dims {
		return fmt.Errorf("entry %s has %d dims, index expects %d", entry.ID, len(entry.Vector), e.dims)
	}
	body, err := json.Marshal(elasticDoc{ItemID: entry.ID, Channel: entry.Channel, Vector: entry.Vector})
	if err != nil {
		return fmt.Errorf("failed to encode entry %s: %w", entry.ID, err)
	}
	req := esapi.IndexRequest{
		Index:      e.index,
		DocumentID: entry.ID,
		Body:       bytes.NewReader(body),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("failed to index entry %s: %w", entry.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch rejected entry %s: %s", entry.ID, res.String())
	}
	return nil
}

// Search runs a kNN query. Elasticsearch reports cosine hits as
// (1+cos)/2, which is mapped back to cosine before thresholding.
func (e *ElasticIndex) Search(ctx context.Context, vector []float32, q Query) ([]Match, error) {
	k := q.Limit
	if k <= 0 {
		k = 50
	}
	knn := map[string]interface{}{
		"field":          "vector",
		"query_vector":   vector,
		"k":              k + len(q.ExcludeIDs),
		"num_candidates": (k + len(q.ExcludeIDs)) * 10,
	}
	if q.Channel != "" {
		knn["filter"] = map[string]interface{}{
			"term": map[string]interface{}{"channel": q.Channel},
		}
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(map[string]interface{}{
		"knn":     knn,
		"size":    k + len(q.ExcludeIDs),
		"_source": []string{"item_id", "channel"},
	}); err != nil {
		return nil, fmt.Errorf("failed to encode knn query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.index),
		e.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch search returned %s: %s", res.Status(), string(body))
	}
	return decodeHits(res.Body, q, k)
}

func decodeHits(r io.Reader, q Query, k int) ([]Match, error) {
	var resp struct {
		Hits struct {
			Hits []struct {
				Source elasticDoc `json:"_source"`
				Score  float64    `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	matches := make([]Match, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		if q.excluded(h.Source.ItemID) {
			continue
		}
		score := 2*h.Score - 1
		if score < q.Threshold {
			continue
		}
		matches = append(matches, Match{ID: h.Source.ItemID, Channel: h.Source.Channel, Score: score})
		if len(matches) == k {
			break
		}
	}
	return matches, nil
}

// Len returns the document count, or 0 when the cluster cannot be reached
func (e *ElasticIndex) Len() int {
	res, err := e.client.Count(e.client.Count.WithIndex(e.index))
	if err != nil {
		logging.Warnf("[INDEX] Count on %s failed: %v", e.index, err)
		return 0
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0
	}
	var body struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return 0
	}
	return body.Count
}
