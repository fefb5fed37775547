package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/steveyegge/intake/internal/storage"
	"github.com/steveyegge/intake/internal/types"
)

const itemColumns = `id, question, answer, explanation, diagram, video_url, tags,
	difficulty, channel, sub_channel, status, created_at, updated_at`

// GetItem returns an item by id
func (s *Storage) GetItem(ctx context.Context, id string) (*types.ContentItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item %s: %w", id, err)
	}
	return item, nil
}

// SaveItem inserts or replaces an item. CreatedAt is kept from the first save.
func (s *Storage) SaveItem(ctx context.Context, item *types.ContentItem) error {
	if item == nil {
		return fmt.Errorf("item cannot be nil")
	}
	if err := item.Validate(); err != nil {
		return fmt.Errorf("invalid item: %w", err)
	}
	tags, err := json.Marshal(item.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}
	status := item.Status
	if status == "" {
		status = types.StatusActive
	}
	now := time.Now()
	created := item.CreatedAt
	if created.IsZero() {
		created = now
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			question = excluded.question,
			answer = excluded.answer,
			explanation = excluded.explanation,
			diagram = excluded.diagram,
			video_url = excluded.video_url,
			tags = excluded.tags,
			difficulty = excluded.difficulty,
			channel = excluded.channel,
			sub_channel = excluded.sub_channel,
			status = excluded.status,
			updated_at = excluded.updated_at
	`, item.ID, item.Prompt, item.Answer, item.Explanation, item.Diagram, item.VideoURL, string(tags),
		string(item.Difficulty), item.Channel, item.SubChannel, string(status),
		toMillis(created), toMillis(now))
	if err != nil {
		return fmt.Errorf("failed to save item %s: %w", item.ID, err)
	}
	return nil
}

// SetItemStatus flips the status flag of an item
func (s *Storage) SetItemStatus(ctx context.Context, id string, status types.ItemStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid status: %q", status)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE items SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), toMillis(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to update item %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("item %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// GetChannelCounts returns the number of active items per channel
func (s *Storage) GetChannelCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT channel, COUNT(*) FROM items WHERE status = 'active' GROUP BY channel`)
	if err != nil {
		return nil, fmt.Errorf("failed to count items: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var channel string
		var n int
		if err := rows.Scan(&channel, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[channel] = n
	}
	return counts, rows.Err()
}

// ListItems returns items matching filter, ordered by id
func (s *Storage) ListItems(ctx context.Context, filter types.ItemFilter) ([]*types.ContentItem, error) {
	var where []string
	var args []interface{}
	if filter.Channel != "" {
		where = append(where, "channel = ?")
		args = append(args, filter.Channel)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + itemColumns + ` FROM items`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []*types.ContentItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row scanner) (*types.ContentItem, error) {
	var item types.ContentItem
	var tags, difficulty, status string
	var created, updated int64
	if err := row.Scan(&item.ID, &item.Prompt, &item.Answer, &item.Explanation, &item.Diagram,
		&item.VideoURL, &tags, &difficulty, &item.Channel, &item.SubChannel, &status,
		&created, &updated); err != nil {
		return nil, err
	}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &item.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags: %w", err)
		}
	}
	item.Difficulty = types.Difficulty(difficulty)
	item.Status = types.ItemStatus(status)
	item.CreatedAt = fromMillis(created)
	item.UpdatedAt = fromMillis(updated)
	return &item, nil
}
