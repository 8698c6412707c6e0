package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Enqueue submits a job. When an identical kind/key job is still waiting in
// the queue the existing row is returned instead of a duplicate.
func (s *Store) Enqueue(ctx context.Context, kind, key string, payload []byte, policy RetryPolicy) (*Job, error) {
	ctx = ensureContext(ctx)
	kind = strings.TrimSpace(kind)
	key = strings.TrimSpace(key)
	if kind == "" || key == "" {
		return nil, errors.New("enqueue: kind and key are required")
	}
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	policy = policy.normalized()
	backoff, err := encodeBackoff(policy.Backoff)
	if err != nil {
		return nil, err
	}

	var job *Job
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := scanJob(tx.QueryRowContext(ctx,
			`SELECT `+jobColumns+` FROM jobs WHERE kind = ? AND job_key = ? AND status = ? ORDER BY id LIMIT 1`,
			kind, key, StatusQueued,
		))
		switch {
		case err == nil:
			job = existing
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return err
		}

		now := formatTime(s.clock())
		job, err = scanJob(tx.QueryRowContext(ctx,
			`INSERT INTO jobs (kind, job_key, payload, status, attempts, max_attempts, backoff_ms, next_attempt_at, created_at, updated_at)
             VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?, ?)
             RETURNING `+jobColumns,
			kind, key, string(payload), StatusQueued, policy.MaxAttempts, backoff, now, now, now,
		))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue %s job: %w", kind, err)
	}
	return job, nil
}

// Claim atomically moves the oldest due job of the given kinds (all kinds
// when none are given) to running and consumes one attempt. It returns
// (nil, nil) when nothing is due.
func (s *Store) Claim(ctx context.Context, kinds ...string) (*Job, error) {
	ctx = ensureContext(ctx)
	now := formatTime(s.clock())
	args := []any{StatusRunning, now, now, StatusQueued, now}
	filter := ""
	if len(kinds) > 0 {
		filter = ` AND kind IN (` + makePlaceholders(len(kinds)) + `)`
		for _, k := range kinds {
			args = append(args, k)
		}
	}
	query := `UPDATE jobs
        SET status = ?, attempts = attempts + 1, last_heartbeat = ?, updated_at = ?
        WHERE id = (
            SELECT id FROM jobs
            WHERE status = ? AND next_attempt_at <= ?` + filter + `
            ORDER BY next_attempt_at, id
            LIMIT 1
        )
        RETURNING ` + jobColumns

	var job *Job
	err := retryOnBusy(ctx, func() error {
		var scanErr error
		job, scanErr = scanJob(s.db.QueryRowContext(ctx, query, args...))
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// Complete marks a running job as succeeded.
func (s *Store) Complete(ctx context.Context, id int64) error {
	now := formatTime(s.clock())
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, last_heartbeat = NULL, updated_at = ? WHERE id = ? AND status = ?`,
		StatusSucceeded, now, id, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("complete job %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("complete job %d: %w", id, ErrNotRunning)
	}
	return nil
}

// ErrNotRunning is returned when a transition expects a claimed job.
var ErrNotRunning = errors.New("job is not running")

// Fail records a failed attempt. Retryable failures with attempts left are
// requeued after the policy's backoff; everything else becomes failed. The
// updated job is returned.
func (s *Store) Fail(ctx context.Context, id int64, message string, retryable bool) (*Job, error) {
	ctx = ensureContext(ctx)
	var job *Job
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := scanJob(tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
		if err != nil {
			return err
		}
		if current.Status != StatusRunning {
			return ErrNotRunning
		}

		now := s.clock()
		status := StatusFailed
		next := now
		if retryable && current.AttemptsRemaining() {
			status = StatusQueued
			next = now.Add(current.Policy().Delay(current.Attempts))
		}
		job, err = scanJob(tx.QueryRowContext(ctx,
			`UPDATE jobs
             SET status = ?, next_attempt_at = ?, last_error = ?, last_heartbeat = NULL, updated_at = ?
             WHERE id = ?
             RETURNING `+jobColumns,
			status, formatTime(next), truncateError(message), formatTime(now), id,
		))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fail job %d: %w", id, err)
	}
	return job, nil
}

// GetByID fetches a job; (nil, nil) when it does not exist.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	job, err := scanJob(s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return job, nil
}

// List returns jobs ordered by id, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, st := range statuses {
			args = append(args, st)
		}
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
