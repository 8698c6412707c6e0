package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"videoflix/internal/logging"
	"videoflix/internal/queue"
	"videoflix/internal/services"
)

// Start runs preflight checks (unless disabled) and launches the workers.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.handlers) == 0 {
		m.mu.Unlock()
		return errors.New("no job handlers registered")
	}
	m.mu.Unlock()

	if m.preflight {
		if err := m.runPreflightChecks(ctx, m.logger); err != nil {
			return err
		}
	}

	kinds := m.kinds()

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(m.workers)
	for i := 0; i < m.workers; i++ {
		go m.runWorker(runCtx, i+1)
	}
	m.mu.Unlock()

	m.logger.Info("worker pool started",
		logging.String(logging.FieldEventType, "workers_started"),
		logging.Int("workers", m.workers),
		logging.Any("kinds", kinds),
	)
	return nil
}

// Stop cancels running jobs, returns them to the queue and waits for the
// workers to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("worker pool stopped", logging.String(logging.FieldEventType, "workers_stopped"))
}

// Wait blocks until every worker has exited.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) runWorker(ctx context.Context, id int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int("worker", id))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.heartbeat.ReclaimStale(ctx, logger); err != nil && ctx.Err() == nil {
			logger.Warn("reclaim stale jobs failed; stuck jobs may remain",
				logging.Error(err),
				logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
		}

		processed, err := m.ProcessNext(ctx)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			m.handleClaimError(ctx, logger, err)
		case !processed:
			m.sleep(ctx, m.pollInterval)
		}
	}
}

// ProcessNext claims one due job of a registered kind and runs it to
// completion. It reports false when nothing was due.
func (m *Manager) ProcessNext(ctx context.Context) (bool, error) {
	job, err := m.store.Claim(ctx, m.kinds()...)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	m.processJob(ctx, job)
	return true, nil
}

func (m *Manager) processJob(ctx context.Context, job *queue.Job) {
	jobCtx := services.WithJobID(ctx, job.ID)
	jobCtx = services.WithJobKind(jobCtx, job.Kind)
	jobCtx = services.WithAttempt(jobCtx, job.Attempts)
	jobCtx = services.WithRequestID(jobCtx, uuid.NewString())
	logger := logging.WithContext(jobCtx, m.logger)

	handler, ok := m.handler(job.Kind)
	if !ok {
		err := services.Wrap(services.ErrConfiguration, "workflow", "dispatch", fmt.Sprintf("no handler for kind %q", job.Kind), nil)
		m.handleFailure(jobCtx, logger, job, err)
		return
	}

	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("job_key", job.Key),
		logging.Int("max_attempts", job.MaxAttempts),
	)
	started := time.Now()

	err := m.executeWithHeartbeat(jobCtx, handler.Handle, job)

	if ctx.Err() != nil {
		m.release(jobCtx, logger, job)
		return
	}
	if err != nil {
		m.handleFailure(jobCtx, logger, job, err)
		return
	}

	if err := m.store.Complete(context.WithoutCancel(jobCtx), job.ID); err != nil {
		m.setLastError(err)
		logger.Error("failed to persist job completion",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_complete_persist_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		return
	}
	done := *job
	done.Status = queue.StatusSucceeded
	m.setLastJob(&done)
	logger.Info("job succeeded",
		logging.String(logging.FieldEventType, "job_succeeded"),
		logging.Duration("elapsed", time.Since(started)),
	)
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, run func(context.Context, *queue.Job) error, job *queue.Job) (err error) {
	execCtx, cancel := context.WithCancel(ctx)
	if m.jobTimeout > 0 {
		cancel()
		execCtx, cancel = context.WithTimeout(ctx, m.jobTimeout)
	}
	defer cancel()

	hbCtx, hbCancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &wg, job.ID)
	defer func() {
		hbCancel()
		wg.Wait()
	}()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job handler panicked: %v", p)
		}
	}()
	return run(execCtx, job)
}

func (m *Manager) release(ctx context.Context, logger *slog.Logger, job *queue.Job) {
	if err := m.store.Release(context.WithoutCancel(ctx), job.ID); err != nil {
		logger.Warn("job not released on shutdown; it will be reclaimed after the heartbeat timeout",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_release_failed"),
			logging.String(logging.FieldErrorHint, "no action needed"),
		)
		return
	}
	logger.Info("job released on shutdown", logging.String(logging.FieldEventType, "job_released"))
}

func (m *Manager) handleClaimError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logger.Error("failed to claim next job",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_fetch_failed"),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
	m.sleep(ctx, m.errorRetry)
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		d = time.Second
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
