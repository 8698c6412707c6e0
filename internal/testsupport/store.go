package testsupport

import (
	"sync"
	"testing"
	"time"

	"videoflix/internal/catalog"
	"videoflix/internal/config"
	"videoflix/internal/logging"
	"videoflix/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...queue.Option) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg, opts...)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// Clock is a manually advanced time source for queue scheduling tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MustOpenCatalog opens a catalog.Catalog for tests and registers cleanup.
func MustOpenCatalog(t testing.TB, cfg *config.Config, dispatcher catalog.Dispatcher, opts ...catalog.Option) *catalog.Catalog {
	t.Helper()

	cat, err := catalog.Open(cfg, dispatcher, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = cat.Close()
	})
	return cat
}
