package scenes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ClaimNext atomically moves the oldest item in from-status into to-status
// and returns it. Returns nil when no item is waiting.
func (s *Store) ClaimNext(ctx context.Context, from, to Status) (*Item, error) {
	ctx = ensureContext(ctx)
	for {
		var id int64
		row := s.db.QueryRowContext(ctx,
			`SELECT id FROM scene_items WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT 1`, from)
		if err := row.Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, fmt.Errorf("claim next %s: %w", from, err)
		}

		now := formatTimestamp(time.Now())
		res, err := s.execWithRetry(
			ctx,
			`UPDATE scene_items
             SET status = ?, last_heartbeat = ?, updated_at = ?,
                 error_message = NULL, progress_percent = 0, progress_message = NULL
             WHERE id = ? AND status = ?`,
			to, now, now, id, from,
		)
		if err != nil {
			return nil, fmt.Errorf("claim scene %d: %w", id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("claim scene %d: %w", id, err)
		}
		if affected == 0 {
			// Lost the race for this item; try the next one.
			continue
		}
		return s.GetByID(ctx, id)
	}
}

// ResetStuckProcessing returns in-flight items to the start of their stage,
// used on startup after an unclean shutdown.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE scene_items
         SET status = CASE status
             WHEN ? THEN ?
             WHEN ? THEN ?
             ELSE status
         END,
             progress_stage = 'Reset from stuck processing',
             progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (?, ?)`,
		StatusRendering, StatusPending,
		StatusPosting, StatusRendered,
		formatTimestamp(time.Now()),
		StatusRendering,
		StatusPosting,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck items: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight item.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := formatTimestamp(time.Now())
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE scene_items SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now, now, id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// UpdateProgress persists progress fields without touching the lifecycle.
func (s *Store) UpdateProgress(ctx context.Context, id int64, stage, message string, percent float64) error {
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE scene_items
         SET progress_stage = ?, progress_percent = ?, progress_message = ?, updated_at = ?
         WHERE id = ?`,
		stage, percent, nullableString(message), formatTimestamp(time.Now()), id,
	); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// RetryFailed moves failed items back to pending for reprocessing. With no
// ids, every failed item is retried. Review items are excluded; clearing a
// review requires editing the scene first.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	now := formatTimestamp(time.Now())
	query := `UPDATE scene_items
        SET status = ?, error_message = NULL, review_reason = NULL,
            progress_stage = NULL, progress_percent = 0, progress_message = NULL, updated_at = ?
        WHERE status = ?`
	args := []any{StatusPending, now, StatusFailed}
	if len(ids) > 0 {
		query += ` AND id IN (` + placeholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed items: %w", err)
	}
	return res.RowsAffected()
}

// MarkStale clears the stored snapshot so the next pipeline pass re-renders
// the scene even if its inputs appear unchanged.
func (s *Store) MarkStale(ctx context.Context, id int64) error {
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE scene_items SET snapshot_json = NULL, status = ?, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusPending, formatTimestamp(time.Now()), id, StatusRendered, StatusPosted,
	); err != nil {
		return fmt.Errorf("mark stale: %w", err)
	}
	return nil
}

func placeholders(n int) string {
	out := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ", "...)
		}
		out = append(out, '?')
	}
	return string(out)
}
