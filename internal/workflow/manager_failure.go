package workflow

import (
	"context"
	"log/slog"
	"strings"

	"videoflix/internal/logging"
	"videoflix/internal/queue"
	"videoflix/internal/services"
)

// handleFailure records a failed attempt. The queue decides between a
// scheduled retry and a terminal failure; the latter is raised as an alert.
func (m *Manager) handleFailure(ctx context.Context, logger *slog.Logger, job *queue.Job, jobErr error) {
	m.setLastError(jobErr)
	details := services.Details(jobErr)
	message := strings.TrimSpace(details.Message)
	if message == "" {
		message = job.Kind + " failed without error detail"
	}

	updated, err := m.store.Fail(context.WithoutCancel(ctx), job.ID, message, services.Retryable(jobErr))
	if err != nil {
		logger.Error("failed to persist job failure",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_fail_persist_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		return
	}
	m.setLastJob(updated)

	attrs := []logging.Attr{
		logging.String("error_kind", string(details.Kind)),
		logging.String("error_code", details.Code),
		logging.String(logging.FieldErrorHint, details.Hint),
		logging.Int("attempts", updated.Attempts),
		logging.Int("max_attempts", updated.MaxAttempts),
		logging.Error(jobErr),
	}

	if updated.Status == queue.StatusQueued {
		attrs = append(attrs,
			logging.String("next_attempt_at", updated.NextAttemptAt.Format("2006-01-02T15:04:05Z07:00")),
			logging.String(logging.FieldImpact, "the job will be retried"),
		)
		logging.WarnWithContext(logger, "job attempt failed; retry scheduled", "job_retry_scheduled", attrs...)
		return
	}

	attrs = append(attrs,
		logging.String("job_key", updated.Key),
		logging.Bool("retryable", services.Retryable(jobErr)),
		logging.Alert("job_failed_permanently"),
		logging.String(logging.FieldImpact, "asset output is missing until the job is retried"),
	)
	logging.ErrorWithContext(logger, "job failed permanently", "job_failed_permanently", attrs...)
}
