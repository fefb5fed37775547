package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/steveyegge/intake/internal/logging"
	"github.com/steveyegge/intake/internal/types"
)

// KafkaConfig configures the cross-system sync topic
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string

	// MaxWait bounds how long Fetch waits for the batch to fill
	// Default: 5 seconds
	MaxWait time.Duration
}

// Validate checks if the configuration has valid values
func (c KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("at least one broker is required")
	}
	if c.Topic == "" {
		return fmt.Errorf("topic is required")
	}
	if c.GroupID == "" {
		return fmt.Errorf("group id is required")
	}
	return nil
}

// KafkaSource reads batches of reports published by another system. Offsets
// are committed only after the caller has handled the batch.
type KafkaSource struct {
	reader  *kafka.Reader
	maxWait time.Duration
	pending []kafka.Message
}

// NewKafkaSource creates a consumer-group reader for the sync topic
func NewKafkaSource(cfg KafkaConfig) (*KafkaSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid kafka config: %w", err)
	}
	maxWait := cfg.MaxWait
	if maxWait <= 0 {
		maxWait = 5 * time.Second
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	logging.Infof("[TRACKER] kafka source listening on topic %q", cfg.Topic)
	return &KafkaSource{reader: r, maxWait: maxWait}, nil
}

// Fetch returns up to max reports. It stops early when no message arrives
// within MaxWait. Malformed payloads are skipped and committed with the batch.
func (k *KafkaSource) Fetch(ctx context.Context, max int) ([]types.TrackerIssue, error) {
	var issues []types.TrackerIssue
	for len(issues) < max {
		fetchCtx, cancel := context.WithTimeout(ctx, k.maxWait)
		m, err := k.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				break
			}
			return issues, fmt.Errorf("failed to fetch message: %w", err)
		}
		k.pending = append(k.pending, m)

		issue, err := decodeIssue(m.Value)
		if err != nil {
			logging.Warnf("[TRACKER] skipping malformed report at offset %d: %v", m.Offset, err)
			continue
		}
		issues = append(issues, issue)
	}
	logging.Infof("[TRACKER] fetched %d reports from kafka", len(issues))
	return issues, nil
}

// Commit marks every fetched message as consumed
func (k *KafkaSource) Commit(ctx context.Context) error {
	if len(k.pending) == 0 {
		return nil
	}
	if err := k.reader.CommitMessages(ctx, k.pending...); err != nil {
		return fmt.Errorf("failed to commit offsets: %w", err)
	}
	k.pending = nil
	return nil
}

func (k *KafkaSource) Close() error {
	return k.reader.Close()
}

// KafkaPublisher writes reports to the sync topic
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a writer for the sync topic
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("brokers and topic are required")
	}
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}}, nil
}

// Publish writes one message per report, keyed by report id
func (p *KafkaPublisher) Publish(ctx context.Context, issues []types.TrackerIssue) error {
	msgs := make([]kafka.Message, 0, len(issues))
	for _, issue := range issues {
		value, err := json.Marshal(issue)
		if err != nil {
			return fmt.Errorf("failed to encode report %s: %w", issue.ID, err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(issue.ID), Value: value})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to publish reports: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func decodeIssue(value []byte) (types.TrackerIssue, error) {
	var issue types.TrackerIssue
	if err := json.Unmarshal(value, &issue); err != nil {
		return issue, err
	}
	issue.ID = strings.TrimSpace(issue.ID)
	if issue.ID == "" {
		return issue, fmt.Errorf("report id is required")
	}
	return issue, nil
}
