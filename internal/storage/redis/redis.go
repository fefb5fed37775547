// Package redis implements storage.Ledger on Redis. Each report is one key
// holding a JSON record; claims go through a Lua script so the check and the
// write are atomic.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/steveyegge/intake/internal/storage"
	"github.com/steveyegge/intake/internal/types"
)

// DefaultRetention is how long entries are kept when no retention is given
const DefaultRetention = 7 * 24 * time.Hour

// Config holds Redis ledger configuration
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string

	// Retention is the TTL of every ledger key. It must be at least the
	// cool-down or completed entries expire before the window ends.
	Retention time.Duration
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}
	if c.Retention < 0 {
		return fmt.Errorf("retention cannot be negative (got %v)", c.Retention)
	}
	return nil
}

// Ledger implements storage.Ledger
type Ledger struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
}

var _ storage.Ledger = (*Ledger)(nil)

// record is the stored form of a ledger entry
type record struct {
	Status      types.LedgerStatus `json:"status"`
	ProcessedAt int64              `json:"processed_at_ms"`
	CompletedAt int64              `json:"completed_at_ms,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// claimScript sets KEYS[1] to ARGV[1] unless the current record completed
// within ARGV[3] ms or holds a claim younger than ARGV[4] ms.
var claimScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if v then
  local e = cjson.decode(v)
  local now = tonumber(ARGV[2])
  if e.status == 'completed' and e.completed_at_ms and now - e.completed_at_ms < tonumber(ARGV[3]) then
    return 0
  end
  if e.status == 'processing' and now - e.processed_at_ms < tonumber(ARGV[4]) then
    return 0
  end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[5])
return 1
`)

// New connects to Redis
func New(ctx context.Context, cfg Config) (*Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewWithClient(client, cfg.KeyPrefix, cfg.Retention), nil
}

// NewWithClient wraps an existing client
func NewWithClient(client *redis.Client, prefix string, retention time.Duration) *Ledger {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Ledger{client: client, prefix: prefix, retention: retention}
}

// Close closes the client
func (l *Ledger) Close() error {
	return l.client.Close()
}

func (l *Ledger) key(reportID string) string {
	return l.prefix + reportID
}

// Get returns the entry for a report, or nil when none exists
func (l *Ledger) Get(ctx context.Context, reportID string) (*types.LedgerEntry, error) {
	rec, err := l.load(ctx, reportID)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.entry(reportID), nil
}

func (l *Ledger) load(ctx context.Context, reportID string) (*record, error) {
	data, err := l.client.Get(ctx, l.key(reportID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger entry %s: %w", reportID, err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode ledger entry %s: %w", reportID, err)
	}
	return &rec, nil
}

// TryClaim atomically marks the report as processing
func (l *Ledger) TryClaim(ctx context.Context, reportID string, cooldown time.Duration) (bool, error) {
	now := time.Now().UnixMilli()
	data, err := json.Marshal(record{Status: types.LedgerProcessing, ProcessedAt: now})
	if err != nil {
		return false, err
	}
	n, err := claimScript.Run(ctx, l.client, []string{l.key(reportID)},
		string(data), now, cooldown.Milliseconds(), storage.ClaimTimeout.Milliseconds(),
		l.retention.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to claim report %s: %w", reportID, err)
	}
	return n == 1, nil
}

// MarkCompleted records successful processing
func (l *Ledger) MarkCompleted(ctx context.Context, reportID string) error {
	return l.finish(ctx, reportID, types.LedgerCompleted, "")
}

// MarkFailed records failed processing with its reason
func (l *Ledger) MarkFailed(ctx context.Context, reportID, reason string) error {
	return l.finish(ctx, reportID, types.LedgerFailed, reason)
}

func (l *Ledger) finish(ctx context.Context, reportID string, status types.LedgerStatus, reason string) error {
	now := time.Now().UnixMilli()
	rec := record{Status: status, ProcessedAt: now, Error: reason}
	if prev, err := l.load(ctx, reportID); err == nil && prev != nil {
		rec.ProcessedAt = prev.ProcessedAt
	}
	if status == types.LedgerCompleted {
		rec.CompletedAt = now
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := l.client.Set(ctx, l.key(reportID), data, l.retention).Err(); err != nil {
		return fmt.Errorf("failed to mark report %s %s: %w", reportID, status, err)
	}
	return nil
}

func (r *record) entry(reportID string) *types.LedgerEntry {
	e := &types.LedgerEntry{
		ReportID:    reportID,
		Status:      r.Status,
		ProcessedAt: time.UnixMilli(r.ProcessedAt),
		Error:       r.Error,
	}
	if r.CompletedAt != 0 {
		t := time.UnixMilli(r.CompletedAt)
		e.CompletedAt = &t
	}
	return e
}
