package workflow_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"videoflix/internal/config"
	"videoflix/internal/queue"
	"videoflix/internal/stage"
	"videoflix/internal/testsupport"
	"videoflix/internal/workflow"
)

type scriptedHandler struct {
	mu      sync.Mutex
	results []error
	calls   int
	health  stage.Health
}

func (h *scriptedHandler) Handle(context.Context, *queue.Job) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if len(h.results) == 0 {
		return nil
	}
	err := h.results[0]
	if len(h.results) > 1 {
		h.results = h.results[1:]
	}
	return err
}

func (h *scriptedHandler) HealthCheck(context.Context) stage.Health {
	if h.health.Name == "" {
		return stage.Healthy("scripted")
	}
	return h.health
}

func (h *scriptedHandler) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

// syncBuffer guards log output written from worker goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	cfg    *config.Config
	store  *queue.Store
	clock  *testsupport.Clock
	logs   *syncBuffer
	logger *slog.Logger
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	clock := testsupport.NewClock()
	logs := &syncBuffer{}
	return &harness{
		cfg:    cfg,
		store:  testsupport.MustOpenStore(t, cfg, queue.WithClock(clock.Now)),
		clock:  clock,
		logs:   logs,
		logger: slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}
}

func (h *harness) manager(opts ...workflow.ManagerOption) *workflow.Manager {
	opts = append([]workflow.ManagerOption{
		workflow.WithClock(h.clock.Now),
		workflow.WithPreflight(false),
		workflow.WithPollInterval(10 * time.Millisecond),
	}, opts...)
	return workflow.NewManager(h.cfg, h.store, h.logger, opts...)
}

func (h *harness) enqueue(t *testing.T, kind, key string, policy queue.RetryPolicy) *queue.Job {
	t.Helper()
	job, err := h.store.Enqueue(context.Background(), kind, key, []byte(`{}`), policy)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return job
}

func (h *harness) job(t *testing.T, id int64) *queue.Job {
	t.Helper()
	job, err := h.store.GetByID(context.Background(), id)
	if err != nil || job == nil {
		t.Fatalf("GetByID(%d): %v", id, err)
	}
	return job
}

func processNext(t *testing.T, m *workflow.Manager) bool {
	t.Helper()
	ok, err := m.ProcessNext(context.Background())
	if err != nil {
		t.Fatalf("ProcessNext: %v", err)
	}
	return ok
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
