package scenes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NewScene inserts a scene awaiting rendering.
func (s *Store) NewScene(ctx context.Context, title, sceneText, audioPath, backgroundPath string) (*Item, error) {
	timestamp := formatTimestamp(time.Now())

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO scene_items (
            title, scene_text, audio_path, background_path, status,
            created_at, updated_at, progress_percent
        ) VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		title,
		sceneText,
		audioPath,
		nullableString(backgroundPath),
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert scene: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a scene item by identifier. Returns nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+itemColumns+` FROM scene_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get scene %d: %w", id, err)
	}
	return item, nil
}

// Update persists every mutable field of the item.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("update: nil item")
	}
	item.UpdatedAt = time.Now().UTC()

	var heartbeat any
	if item.LastHeartbeat != nil {
		heartbeat = formatTimestamp(*item.LastHeartbeat)
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE scene_items SET
            title = ?, scene_text = ?, audio_path = ?, background_path = ?, status = ?,
            rendered_file = ?, still_file = ?, post_uri = ?, post_cid = ?, snapshot_json = ?,
            error_message = ?, review_reason = ?, updated_at = ?,
            progress_stage = ?, progress_percent = ?, progress_message = ?, last_heartbeat = ?
        WHERE id = ?`,
		item.Title,
		item.SceneText,
		item.AudioPath,
		nullableString(item.BackgroundPath),
		item.Status,
		nullableString(item.RenderedFile),
		nullableString(item.StillFile),
		nullableString(item.PostURI),
		nullableString(item.PostCID),
		nullableString(item.SnapshotJSON),
		nullableString(item.ErrorMessage),
		nullableString(item.ReviewReason),
		formatTimestamp(item.UpdatedAt),
		nullableString(item.ProgressStage),
		item.ProgressPercent,
		nullableString(item.ProgressMessage),
		heartbeat,
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update scene %d: %w", item.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update scene %d: %w", item.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("update scene %d: not found", item.ID)
	}
	return nil
}

// List returns all items ordered by creation time.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM scene_items`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scene: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Delete removes an item.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM scene_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete scene %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete scene %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("delete scene %d: not found", id)
	}
	return nil
}

// Clear removes completed items, or every item when all is true.
func (s *Store) Clear(ctx context.Context, all bool) (int64, error) {
	query := `DELETE FROM scene_items WHERE status = ?`
	args := []any{StatusPosted}
	if all {
		query = `DELETE FROM scene_items`
		args = nil
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear scenes: %w", err)
	}
	return res.RowsAffected()
}

// Summary aggregates item counts by lifecycle state.
func (s *Store) Summary(ctx context.Context) (HealthSummary, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT status, COUNT(1) FROM scene_items GROUP BY status`)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("summarize scenes: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var (
			status Status
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return HealthSummary{}, fmt.Errorf("scan summary: %w", err)
		}
		summary.Total += count
		switch status {
		case StatusPending:
			summary.Pending += count
		case StatusPosted:
			summary.Posted += count
		case StatusReview:
			summary.Review += count
		case StatusFailed:
			summary.Failed += count
		default:
			// Rendering, rendered, and posting are all mid-pipeline.
			summary.Processing += count
		}
	}
	return summary, rows.Err()
}
