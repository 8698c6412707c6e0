// Package dbx runs database work inside a transaction and lets callers attach
// side effects that fire only after that transaction commits.
package dbx

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"videoflix/internal/services"
)

// DBTX is the subset of *sql.DB and *sql.Tx used by repositories.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// UnitOfWork is an open transaction plus the callbacks queued against it.
type UnitOfWork struct {
	tx *sql.Tx

	mu    sync.Mutex
	hooks []func(context.Context)
	done  bool
}

// Tx returns the underlying transaction.
func (u *UnitOfWork) Tx() DBTX {
	return u.tx
}

// OnCommit queues fn to run after the transaction commits. Callbacks run in
// registration order and are dropped on rollback. Registering after the unit
// has finished returns services.ErrNotCommitted.
func (u *UnitOfWork) OnCommit(fn func(context.Context)) error {
	if u == nil {
		return services.Wrap(services.ErrNotCommitted, "dbx", "on commit", "no active unit of work", nil)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return services.Wrap(services.ErrNotCommitted, "dbx", "on commit", "unit of work already finished", nil)
	}
	if fn != nil {
		u.hooks = append(u.hooks, fn)
	}
	return nil
}

// Pending reports how many callbacks are waiting for commit.
func (u *UnitOfWork) Pending() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.hooks)
}

func (u *UnitOfWork) finish() []func(context.Context) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.done = true
	hooks := u.hooks
	u.hooks = nil
	return hooks
}

type unitKey struct{}

// FromContext returns the active unit of work carried by ctx.
func FromContext(ctx context.Context) (*UnitOfWork, bool) {
	if ctx == nil {
		return nil, false
	}
	u, ok := ctx.Value(unitKey{}).(*UnitOfWork)
	if !ok || u == nil {
		return nil, false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return nil, false
	}
	return u, true
}

// WithTx runs fn inside a transaction. The context passed to fn carries the
// unit of work so nested code can register OnCommit callbacks. fn returning
// an error or panicking rolls back and discards callbacks; otherwise the
// transaction commits and the callbacks run with a context detached from
// cancellation.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	unit := &UnitOfWork{tx: tx}

	defer func() {
		if p := recover(); p != nil {
			unit.finish()
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, unitKey{}, unit), tx); err != nil {
		unit.finish()
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		unit.finish()
		return fmt.Errorf("commit tx: %w", err)
	}

	hookCtx := context.WithoutCancel(ctx)
	for _, hook := range unit.finish() {
		hook(hookCtx)
	}
	return nil
}
