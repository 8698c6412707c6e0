package workflow

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"videoflix/internal/config"
	"videoflix/internal/logging"
	"videoflix/internal/queue"
	"videoflix/internal/stage"
)

// Manager coordinates queue processing using registered job handlers.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	workers      int
	pollInterval time.Duration
	errorRetry   time.Duration
	jobTimeout   time.Duration
	preflight    bool
	now          func() time.Time

	heartbeat *HeartbeatMonitor

	handlers map[string]stage.Handler

	mu      sync.RWMutex
	running bool
	cancel  func()
	wg      sync.WaitGroup
	lastErr error
	lastJob *queue.Job
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithPollInterval overrides how long an idle worker waits between claims.
func WithPollInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// WithClock sets the time source used for stale-claim cutoffs. It should
// match the clock the store was opened with.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithPreflight toggles the readiness checks run by Start.
func WithPreflight(enabled bool) ManagerOption {
	return func(m *Manager) {
		m.preflight = enabled
	}
}

// NewManager constructs a new workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		workers:      cfg.Queue.Workers,
		pollInterval: time.Duration(cfg.Queue.PollInterval) * time.Second,
		errorRetry:   time.Duration(cfg.Queue.ErrorRetryInterval) * time.Second,
		jobTimeout:   time.Duration(cfg.Queue.JobTimeout) * time.Second,
		preflight:    true,
		now:          time.Now,
		handlers:     make(map[string]stage.Handler),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.workers < 1 {
		m.workers = 1
	}
	m.heartbeat = NewHeartbeatMonitor(
		store,
		m.logger,
		time.Duration(cfg.Queue.HeartbeatInterval)*time.Second,
		time.Duration(cfg.Queue.HeartbeatTimeout)*time.Second,
		m.now,
	)
	return m
}

// Register binds a handler to a job kind. Registering a kind twice replaces
// the earlier handler.
func (m *Manager) Register(kind string, handler stage.Handler) {
	if handler == nil {
		panic(fmt.Sprintf("workflow: nil handler for kind %q", kind))
	}
	m.mu.Lock()
	m.handlers[kind] = handler
	m.mu.Unlock()
}

func (m *Manager) handler(kind string) (stage.Handler, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handlers[kind]
	return h, ok
}

// kinds returns the registered job kinds in stable order.
func (m *Manager) kinds() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.handlers))
	for kind := range m.handlers {
		out = append(out, kind)
	}
	sort.Strings(out)
	return out
}
