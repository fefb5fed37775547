package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/steveyegge/intake/internal/storage"
	"github.com/steveyegge/intake/internal/types"
)

const tItems = "items"

var itemColumns = []string{
	"id", "question", "answer", "explanation", "diagram", "video_url", "tags",
	"difficulty", "channel", "sub_channel", "status", "created_at", "updated_at",
}

func psql() sqrl.StatementBuilderType {
	return sqrl.StatementBuilder.PlaceholderFormat(sqrl.Dollar)
}

// GetItem returns an item by id
func (s *Storage) GetItem(ctx context.Context, id string) (*types.ContentItem, error) {
	query, args, err := psql().Select(itemColumns...).From(tItems).Where(sqrl.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	item, err := scanItem(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item %s: %w", id, err)
	}
	return item, nil
}

// SaveItem inserts or updates an item
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
	if item.Tags == nil {
		tags = []byte("[]")
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

	query, args, err := psql().Insert(tItems).Columns(itemColumns...).
		Values(item.ID, item.Prompt, item.Answer, item.Explanation, item.Diagram, item.VideoURL,
			string(tags), string(item.Difficulty), item.Channel, item.SubChannel, string(status),
			created, now).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			question = EXCLUDED.question,
			answer = EXCLUDED.answer,
			explanation = EXCLUDED.explanation,
			diagram = EXCLUDED.diagram,
			video_url = EXCLUDED.video_url,
			tags = EXCLUDED.tags,
			difficulty = EXCLUDED.difficulty,
			channel = EXCLUDED.channel,
			sub_channel = EXCLUDED.sub_channel,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save item %s: %w", item.ID, err)
	}
	return nil
}

// SetItemStatus flips the status flag of an item
func (s *Storage) SetItemStatus(ctx context.Context, id string, status types.ItemStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid status: %q", status)
	}
	query, args, err := psql().Update(tItems).
		Set("status", string(status)).
		Set("updated_at", time.Now()).
		Where(sqrl.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update item %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// GetChannelCounts returns the number of active items per channel
func (s *Storage) GetChannelCounts(ctx context.Context) (map[string]int, error) {
	query, args, err := psql().Select("channel", "COUNT(*)").From(tItems).
		Where(sqrl.Eq{"status": string(types.StatusActive)}).GroupBy("channel").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, query, args...)
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
	where := sqrl.And{}
	if filter.Channel != "" {
		where = append(where, sqrl.Eq{"channel": filter.Channel})
	}
	if filter.Status != "" {
		where = append(where, sqrl.Eq{"status": string(filter.Status)})
	}
	builder := psql().Select(itemColumns...).From(tItems).Where(where).OrderBy("id")
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
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

func scanItem(row pgx.Row) (*types.ContentItem, error) {
	var item types.ContentItem
	var tags []byte
	var difficulty, status string
	if err := row.Scan(&item.ID, &item.Prompt, &item.Answer, &item.Explanation, &item.Diagram,
		&item.VideoURL, &tags, &difficulty, &item.Channel, &item.SubChannel, &status,
		&item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &item.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags: %w", err)
		}
	}
	item.Difficulty = types.Difficulty(difficulty)
	item.Status = types.ItemStatus(status)
	return &item, nil
}
