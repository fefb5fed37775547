// Package storage defines the content store and idempotency ledger contracts.
// Backends live in subpackages: sqlite (content, ledger, local tracker),
// postgres (content) and redis (ledger).
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/steveyegge/intake/internal/types"
)

// ErrNotFound is returned when a referenced item does not exist
var ErrNotFound = errors.New("not found")

// ClaimTimeout is how long a processing claim blocks other claims. A claim
// older than this is treated as abandoned by a crashed run.
const ClaimTimeout = 30 * time.Minute

// ContentStore persists content items. Items are never deleted; disabling
// flips the status flag.
type ContentStore interface {
	// GetItem returns ErrNotFound (wrapped) when the item does not exist
	GetItem(ctx context.Context, id string) (*types.ContentItem, error)
	SaveItem(ctx context.Context, item *types.ContentItem) error
	SetItemStatus(ctx context.Context, id string, status types.ItemStatus) error

	// GetChannelCounts returns the number of active items per channel
	GetChannelCounts(ctx context.Context) (map[string]int, error)

	// ListItems returns items ordered by id
	ListItems(ctx context.Context, filter types.ItemFilter) ([]*types.ContentItem, error)

	Close() error
}

// Pinger is implemented by stores that can check connectivity without a query
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ledger records which feedback reports have been processed so that a report
// is mutated at most once per cool-down window.
type Ledger interface {
	// Get returns the entry for a report, or nil when none exists
	Get(ctx context.Context, reportID string) (*types.LedgerEntry, error)

	// TryClaim marks the report as processing unless it completed within
	// cooldown or another claim younger than ClaimTimeout holds it. The check
	// and the write are a single conditional update.
	TryClaim(ctx context.Context, reportID string, cooldown time.Duration) (bool, error)

	MarkCompleted(ctx context.Context, reportID string) error
	MarkFailed(ctx context.Context, reportID, reason string) error
}

// Pruner is implemented by ledgers that keep entries until explicitly pruned
type Pruner interface {
	// Prune deletes entries last touched before cutoff, batchSize rows at a
	// time, and returns the number removed
	Prune(ctx context.Context, cutoff time.Time, batchSize int) (int, error)
}

// Claimable reports whether an existing ledger entry allows a new claim at now
func Claimable(e *types.LedgerEntry, cooldown time.Duration, now time.Time) bool {
	if e == nil {
		return true
	}
	switch e.Status {
	case types.LedgerCompleted:
		return !e.CompletedWithin(cooldown, now)
	case types.LedgerProcessing:
		return now.Sub(e.ProcessedAt) >= ClaimTimeout
	default:
		return true
	}
}
