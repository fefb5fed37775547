package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

// HTTPProvider calls a local or remote embedding model over HTTP.
// Any transport failure, non-2xx status or malformed body is returned as an
// error so the Service can fall back.
type HTTPProvider struct {
	client *resty.Client
	model  string
	dims   int
}

var _ Provider = (*HTTPProvider)(nil)

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// embedResponse accepts both the Ollama shape ({"embedding": [...]}) and the
// OpenAI-compatible shape ({"data": [{"embedding": [...]}]})
type embedResponse struct {
	Embedding []float32 `json:"embedding"`
	Data      []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// NewHTTPProvider creates a primary provider from cfg. cfg.BaseURL must be set.
func NewHTTPProvider(cfg Config) (*HTTPProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base_url is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	return &HTTPProvider{client: client, model: cfg.Model, dims: cfg.Dimensions}, nil
}

// Model returns the configured primary model name
func (p *HTTPProvider) Model() string {
	return p.model
}

// Embed requests a single vector from the primary model
func (p *HTTPProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(embedRequest{Model: p.model, Prompt: text}).
		Post("/api/embeddings")
	if err != nil {
		return nil, fmt.Errorf("failed to call embedding api: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("embedding api returned non-2xx status: %s", resp.Status())
	}

	var parsed embedResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}

	vec := parsed.Embedding
	if len(vec) == 0 && len(parsed.Data) > 0 {
		vec = parsed.Data[0].Embedding
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("received empty embedding from api")
	}
	if p.dims > 0 && len(vec) != p.dims {
		return nil, fmt.Errorf("malformed embedding: %s returned %d dims, expected %d", p.model, len(vec), p.dims)
	}
	return Normalize(vec), nil
}

// EmbedBatch embeds texts one request at a time; chunking and pacing are the Service's job
func (p *HTTPProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := p.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}
