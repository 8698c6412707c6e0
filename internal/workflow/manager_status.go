package workflow

import (
	"context"

	"videoflix/internal/logging"
	"videoflix/internal/queue"
	"videoflix/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running       bool
	Workers       int
	LastError     string
	LastJob       *queue.Job
	QueueStats    map[queue.Status]int
	HandlerHealth map[string]stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastJob := m.lastJob
	handlers := make(map[string]stage.Handler, len(m.handlers))
	for kind, h := range m.handlers {
		handlers[kind] = h
	}
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_stats_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
	}

	health := make(map[string]stage.Health, len(handlers))
	for kind, h := range handlers {
		health[kind] = h.HealthCheck(ctx)
	}

	summary := StatusSummary{Running: running, Workers: m.workers, QueueStats: stats, HandlerHealth: health}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastJob != nil {
		snapshot := *lastJob
		summary.LastJob = &snapshot
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *queue.Job) {
	m.mu.Lock()
	if job != nil {
		snapshot := *job
		m.lastJob = &snapshot
	} else {
		m.lastJob = nil
	}
	m.mu.Unlock()
}
