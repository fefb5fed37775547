package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sqrl "github.com/Masterminds/squirrel"

	"github.com/steveyegge/intake/internal/tracker"
	"github.com/steveyegge/intake/internal/types"
)

const insertLabel = `INSERT OR IGNORE INTO tracker_labels (issue_id, label) VALUES (?, ?)`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func attachLabels(ctx context.Context, db execer, issueID string, labels []string) error {
	for _, l := range labels {
		if _, err := db.ExecContext(ctx, insertLabel, issueID, l); err != nil {
			return fmt.Errorf("failed to label %s with %q: %w", issueID, l, err)
		}
	}
	return nil
}

// ImportIssues adds issues to the local tracker. An issue that already exists
// is left alone so its labels and open state survive re-imports.
func (s *Storage) ImportIssues(ctx context.Context, issues []types.TrackerIssue) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, issue := range issues {
			if issue.ID == "" {
				return fmt.Errorf("issue id is required")
			}
			res, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO tracker_issues (id, title, body) VALUES (?, ?, ?)`,
				issue.ID, issue.Title, issue.Body)
			if err != nil {
				return fmt.Errorf("failed to import issue %s: %w", issue.ID, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				if err := attachLabels(ctx, tx, issue.ID, issue.Labels); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// ListOpenReports returns open issues carrying label, oldest import first
func (s *Storage) ListOpenReports(ctx context.Context, label string, limit int) ([]types.TrackerIssue, error) {
	q := sqrl.Select("i.id", "i.title", "i.body").
		From("tracker_issues i").
		Where(sqrl.Eq{"i.closed": 0}).
		OrderBy("i.seq")
	if label != "" {
		q = q.Where(sqrl.Expr(
			"EXISTS (SELECT 1 FROM tracker_labels l WHERE l.issue_id = i.id AND l.label = ?)", label))
	}
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build report query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	var issues []types.TrackerIssue
	for rows.Next() {
		var is types.TrackerIssue
		if err := rows.Scan(&is.ID, &is.Title, &is.Body); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		issues = append(issues, is)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// labels are read after the cursor closes; the pool may hold one connection
	for i := range issues {
		if issues[i].Labels, err = s.column(ctx,
			`SELECT label FROM tracker_labels WHERE issue_id = ? ORDER BY label`, issues[i].ID); err != nil {
			return nil, err
		}
	}
	return issues, nil
}

func (s *Storage) AddLabel(ctx context.Context, issueID, label string) error {
	if err := s.requireIssue(ctx, issueID); err != nil {
		return err
	}
	return attachLabels(ctx, s.db, issueID, []string{label})
}

func (s *Storage) RemoveLabel(ctx context.Context, issueID, label string) error {
	if err := s.requireIssue(ctx, issueID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM tracker_labels WHERE issue_id = ? AND label = ?`, issueID, label)
	if err != nil {
		return fmt.Errorf("failed to remove %q from %s: %w", label, issueID, err)
	}
	return nil
}

func (s *Storage) PostComment(ctx context.Context, issueID, text string) error {
	if err := s.requireIssue(ctx, issueID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tracker_comments (issue_id, body, created_at) VALUES (?, ?, ?)`,
		issueID, text, toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to comment on %s: %w", issueID, err)
	}
	return nil
}

// CloseIssue marks the issue closed and attaches labels atomically
func (s *Storage) CloseIssue(ctx context.Context, issueID string, labels []string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE tracker_issues SET closed = 1 WHERE id = ?`, issueID)
		if err != nil {
			return fmt.Errorf("failed to close %s: %w", issueID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", tracker.ErrIssueNotFound, issueID)
		}
		return attachLabels(ctx, tx, issueID, labels)
	})
}

// GetComments returns comment bodies oldest first
func (s *Storage) GetComments(ctx context.Context, issueID string) ([]string, error) {
	return s.column(ctx, `SELECT body FROM tracker_comments WHERE issue_id = ? ORDER BY id`, issueID)
}

func (s *Storage) requireIssue(ctx context.Context, issueID string) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM tracker_issues WHERE id = ?)`, issueID).Scan(&exists)
	switch {
	case err != nil:
		return fmt.Errorf("failed to look up issue %s: %w", issueID, err)
	case !exists:
		return fmt.Errorf("%w: %s", tracker.ErrIssueNotFound, issueID)
	}
	return nil
}

// column runs a single-column string query
func (s *Storage) column(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Storage) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
