// Package ai rewrites content items through the Anthropic Messages API.
package ai

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"

	"github.com/steveyegge/intake/internal/logging"
)

// DefaultModel is used when Config.Model is empty
const DefaultModel = "claude-sonnet-4-5"

// Config holds supervisor configuration
type Config struct {
	APIKey    string // falls back to ANTHROPIC_API_KEY
	Model     string // default: DefaultModel
	MaxTokens int    // default: 4096
	BaseURL   string // endpoint override for proxies and tests
	Retry     RetryConfig
}

// Supervisor sends prompts to the model behind a retry loop, a breaker and
// a concurrency limit
type Supervisor struct {
	client    anthropic.Client
	model     string
	maxTokens int
	retry     RetryConfig
	breaker   *Breaker
	sem       *semaphore.Weighted
}

// NewSupervisor creates a supervisor. A zero Retry uses DefaultRetryConfig.
func NewSupervisor(cfg *Config) (*Supervisor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	key := cfg.APIKey
	if key == "" {
		key = os.Getenv("ANTHROPIC_API_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}

	s := &Supervisor{
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		retry:     cfg.Retry,
	}
	if s.model == "" {
		s.model = DefaultModel
	}
	if s.maxTokens <= 0 {
		s.maxTokens = 4096
	}
	if s.retry == (RetryConfig{}) {
		s.retry = DefaultRetryConfig()
	}
	if s.retry.BreakerThreshold > 0 {
		s.breaker = NewBreaker(s.retry.BreakerThreshold, s.retry.BreakerProbes, s.retry.BreakerCooldown)
	}
	if s.retry.MaxConcurrentCalls > 0 {
		s.sem = semaphore.NewWeighted(int64(s.retry.MaxConcurrentCalls))
	}

	// the SDK must not retry underneath withRetry
	opts := []option.RequestOption{option.WithAPIKey(key), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	s.client = anthropic.NewClient(opts...)

	logging.Debugf("[AI] supervisor ready: model=%s max_tokens=%d", s.model, s.maxTokens)
	return s, nil
}

// Ready returns ErrCircuitOpen (wrapped) while the breaker rejects calls
func (s *Supervisor) Ready(_ context.Context) error {
	if s.breaker == nil {
		return nil
	}
	if state, failures := s.breaker.State(); state == BreakerOpen {
		return fmt.Errorf("rewriter unavailable after %d failures: %w", failures, ErrCircuitOpen)
	}
	return nil
}

// complete sends one system and user prompt pair and returns the text of the reply
func (s *Supervisor) complete(ctx context.Context, op, system, prompt string) (string, error) {
	start := time.Now()
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: int64(s.maxTokens),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	var msg *anthropic.Message
	err := s.withRetry(ctx, op, func(attemptCtx context.Context) error {
		m, err := s.client.Messages.New(attemptCtx, params)
		if err != nil {
			return err
		}
		msg = m
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("model call failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	logging.Infow("[AI] model call",
		"op", op,
		"input_tokens", msg.Usage.InputTokens,
		"output_tokens", msg.Usage.OutputTokens,
		"stop_reason", msg.StopReason,
		"duration", time.Since(start))
	return sb.String(), nil
}
