package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/steveyegge/intake/internal/logging"
	"github.com/steveyegge/intake/internal/storage"
	"github.com/steveyegge/intake/internal/types"
)

// Get returns the ledger entry for a report, or nil when none exists
func (s *Storage) Get(ctx context.Context, reportID string) (*types.LedgerEntry, error) {
	var e types.LedgerEntry
	var status string
	var processed int64
	var completed sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT report_id, status, processed_at, completed_at, error FROM ledger WHERE report_id = ?`,
		reportID).Scan(&e.ReportID, &status, &processed, &completed, &e.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger entry %s: %w", reportID, err)
	}
	e.Status = types.LedgerStatus(status)
	e.ProcessedAt = fromMillis(processed)
	if completed.Valid {
		t := fromMillis(completed.Int64)
		e.CompletedAt = &t
	}
	return &e, nil
}

// TryClaim inserts or takes over the entry in one conditional upsert. The
// update is skipped when the entry completed within cooldown or holds a
// claim younger than storage.ClaimTimeout.
func (s *Storage) TryClaim(ctx context.Context, reportID string, cooldown time.Duration) (bool, error) {
	now := time.Now()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger (report_id, status, processed_at, completed_at, error)
		VALUES (?, 'processing', ?, NULL, '')
		ON CONFLICT(report_id) DO UPDATE SET
			status = 'processing',
			processed_at = excluded.processed_at,
			completed_at = NULL,
			error = ''
		WHERE NOT (
			(ledger.status = 'completed' AND ledger.completed_at > ?)
			OR (ledger.status = 'processing' AND ledger.processed_at > ?)
		)
	`, reportID, toMillis(now), toMillis(now.Add(-cooldown)), toMillis(now.Add(-storage.ClaimTimeout)))
	if err != nil {
		return false, fmt.Errorf("failed to claim report %s: %w", reportID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return rows == 1, nil
}

// MarkCompleted records successful processing
func (s *Storage) MarkCompleted(ctx context.Context, reportID string) error {
	return s.finish(ctx, reportID, types.LedgerCompleted, "")
}

// MarkFailed records failed processing with its reason
func (s *Storage) MarkFailed(ctx context.Context, reportID, reason string) error {
	return s.finish(ctx, reportID, types.LedgerFailed, reason)
}

func (s *Storage) finish(ctx context.Context, reportID string, status types.LedgerStatus, reason string) error {
	now := toMillis(time.Now())
	var completed interface{}
	if status == types.LedgerCompleted {
		completed = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger (report_id, status, processed_at, completed_at, error)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(report_id) DO UPDATE SET
			status = excluded.status,
			completed_at = excluded.completed_at,
			error = excluded.error
	`, reportID, string(status), now, completed, reason)
	if err != nil {
		return fmt.Errorf("failed to mark report %s %s: %w", reportID, status, err)
	}
	return nil
}

// Prune deletes ledger entries processed before cutoff in batches
func (s *Storage) Prune(ctx context.Context, cutoff time.Time, batchSize int) (int, error) {
	if batchSize < 1 {
		return 0, fmt.Errorf("batch size must be at least 1")
	}

	totalDeleted := 0
	for {
		select {
		case <-ctx.Done():
			return totalDeleted, ctx.Err()
		default:
		}

		result, err := s.db.ExecContext(ctx, `
			DELETE FROM ledger
			WHERE report_id IN (
				SELECT report_id FROM ledger
				WHERE processed_at < ? AND status != 'processing'
				ORDER BY processed_at ASC
				LIMIT ?
			)
		`, toMillis(cutoff), batchSize)
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to prune ledger: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to get rows affected: %w", err)
		}
		totalDeleted += int(rows)

		if rows < int64(batchSize) {
			break
		}
	}

	if totalDeleted > 0 {
		logging.Infof("[LEDGER] pruned %d entries older than %s", totalDeleted, cutoff.Format(time.RFC3339))
	}
	return totalDeleted, nil
}
