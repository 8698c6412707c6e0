package queue

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const jobColumns = "id, kind, job_key, payload, status, attempts, max_attempts, backoff_ms, next_attempt_at, last_error, last_heartbeat, created_at, updated_at"

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse(timeLayout, raw); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func encodeBackoff(backoff []time.Duration) (string, error) {
	ms := make([]int64, 0, len(backoff))
	for _, d := range backoff {
		ms = append(ms, d.Milliseconds())
	}
	data, err := json.Marshal(ms)
	if err != nil {
		return "", fmt.Errorf("encode backoff: %w", err)
	}
	return string(data), nil
}

func decodeBackoff(raw string) []time.Duration {
	var ms []int64
	if err := json.Unmarshal([]byte(raw), &ms); err != nil {
		return nil
	}
	out := make([]time.Duration, 0, len(ms))
	for _, v := range ms {
		out = append(out, time.Duration(v)*time.Millisecond)
	}
	return out
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job          Job
		payload      string
		status       string
		backoffRaw   string
		nextRaw      string
		lastError    sql.NullString
		heartbeatRaw sql.NullString
		createdRaw   string
		updatedRaw   string
	)
	if err := scanner.Scan(
		&job.ID,
		&job.Kind,
		&job.Key,
		&payload,
		&status,
		&job.Attempts,
		&job.MaxAttempts,
		&backoffRaw,
		&nextRaw,
		&lastError,
		&heartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	job.Payload = []byte(payload)
	job.Status = Status(status)
	job.Backoff = decodeBackoff(backoffRaw)
	job.NextAttemptAt = parseTime(nextRaw)
	job.LastError = lastError.String
	if heartbeatRaw.Valid {
		hb := parseTime(heartbeatRaw.String)
		job.LastHeartbeat = &hb
	}
	job.CreatedAt = parseTime(createdRaw)
	job.UpdatedAt = parseTime(updatedRaw)
	return &job, nil
}

func makePlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func idArgs(ids []int64) []any {
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}

func truncateError(msg string) string {
	const limit = 4000
	if len(msg) <= limit {
		return msg
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut] + "…"
}
