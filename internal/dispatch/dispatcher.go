package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"videoflix/internal/config"
	"videoflix/internal/dbx"
	"videoflix/internal/logging"
	"videoflix/internal/queue"
	"videoflix/internal/services"
)

// Enqueuer accepts job submissions. *queue.Store satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind, key string, payload []byte, policy queue.RetryPolicy) (*queue.Job, error)
}

// Task is one job to submit once the surrounding transaction commits.
type Task struct {
	Kind    string
	Key     string
	Payload any
}

// PolicyFromConfig builds the retry policy passed with every submission.
func PolicyFromConfig(cfg *config.Config) queue.RetryPolicy {
	if cfg == nil {
		return queue.DefaultRetryPolicy()
	}
	return queue.RetryPolicy{
		MaxAttempts: cfg.Queue.MaxAttempts,
		Backoff:     cfg.Queue.Backoff(),
	}
}

// Dispatcher defers queue submissions until commit.
type Dispatcher struct {
	queue  Enqueuer
	policy queue.RetryPolicy
	logger *slog.Logger
}

// New constructs a Dispatcher submitting to q with the given policy.
func New(q Enqueuer, policy queue.RetryPolicy, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		queue:  q,
		policy: policy,
		logger: logging.NewComponentLogger(logger, "dispatch"),
	}
}

// Policy returns the retry policy attached to submissions.
func (d *Dispatcher) Policy() queue.RetryPolicy {
	return queue.RetryPolicy{
		MaxAttempts: d.policy.MaxAttempts,
		Backoff:     append([]time.Duration(nil), d.policy.Backoff...),
	}
}

// DeferUntilCommit registers task for submission after the unit of work in
// ctx commits.
func (d *Dispatcher) DeferUntilCommit(ctx context.Context, task Task) error {
	task.Kind = strings.TrimSpace(task.Kind)
	task.Key = strings.TrimSpace(task.Key)
	if task.Kind == "" || task.Key == "" {
		return services.Wrap(services.ErrValidation, "dispatch", "defer", "task kind and key are required", nil)
	}
	payload, err := json.Marshal(task.Payload)
	if err != nil {
		return services.Wrap(services.ErrValidation, "dispatch", "encode payload", task.Key, err)
	}

	unit, ok := dbx.FromContext(ctx)
	if !ok {
		return services.Wrap(services.ErrNotCommitted, "dispatch", "defer", task.Key, nil)
	}
	policy := d.Policy()
	return unit.OnCommit(func(ctx context.Context) {
		d.submit(ctx, task, payload, policy)
	})
}

// DeferTranscode schedules encoding of a newly created asset.
func (d *Dispatcher) DeferTranscode(ctx context.Context, sourcePath string) error {
	return d.DeferUntilCommit(ctx, Task{
		Kind:    queue.KindTranscode,
		Key:     TranscodeKey(sourcePath),
		Payload: TranscodePayload{SourcePath: sourcePath},
	})
}

// DeferCleanup schedules removal of a deleted asset's files.
func (d *Dispatcher) DeferCleanup(ctx context.Context, sourcePath, thumbnailPath string) error {
	return d.DeferUntilCommit(ctx, Task{
		Kind:    queue.KindCleanup,
		Key:     CleanupKey(sourcePath),
		Payload: CleanupPayload{SourcePath: sourcePath, ThumbnailPath: thumbnailPath},
	})
}

func (d *Dispatcher) submit(ctx context.Context, task Task, payload []byte, policy queue.RetryPolicy) {
	logger := logging.WithContext(ctx, d.logger)
	job, err := d.queue.Enqueue(ctx, task.Kind, task.Key, payload, policy)
	if err != nil {
		logging.ErrorWithContext(logger, "job submission failed", "dispatch_failed",
			logging.String(logging.FieldJobKind, task.Kind),
			logging.String("job_key", task.Key),
			logging.Alert("dispatch_failed"),
			logging.Error(err),
			logging.String(logging.FieldImpact, "asset files will not be processed until the job is resubmitted"),
			logging.String(logging.FieldErrorHint, "check the queue database, then re-run the operation"),
		)
		return
	}
	logger.Info("job submitted",
		logging.String(logging.FieldEventType, "job_submitted"),
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldJobKind, job.Kind),
		logging.String("job_key", job.Key),
	)
}
