package queue

import (
	"context"
	"fmt"
	"time"
)

// UpdateHeartbeat marks a running job as alive.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := formatTime(s.clock())
	if _, err := s.execWithRetry(ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		now, now, id, StatusRunning,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStale returns running jobs whose heartbeat is older than cutoff to
// the queue. The interrupted attempt is not counted against the job.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	now := formatTime(s.clock())
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs
         SET status = ?, attempts = MAX(attempts - 1, 0), next_attempt_at = ?, last_heartbeat = NULL, updated_at = ?
         WHERE status = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
		StatusQueued, now, now,
		StatusRunning, formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed jobs back to the queue with a fresh attempt
// budget. With no ids every failed job is retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	now := formatTime(s.clock())
	query := `UPDATE jobs
        SET status = ?, attempts = 0, next_attempt_at = ?, last_error = NULL, updated_at = ?
        WHERE status = ?`
	args := []any{StatusQueued, now, now, StatusFailed}
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		args = append(args, idArgs(ids)...)
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed jobs: %w", err)
	}
	return res.RowsAffected()
}

// Release hands a running job back to the queue without consuming the
// attempt, used when a worker shuts down mid-run.
func (s *Store) Release(ctx context.Context, id int64) error {
	now := formatTime(s.clock())
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs
         SET status = ?, attempts = MAX(attempts - 1, 0), next_attempt_at = ?, last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusQueued, now, now, id, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("release job %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("release job %d: %w", id, ErrNotRunning)
	}
	return nil
}
