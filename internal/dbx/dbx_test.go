package dbx_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"videoflix/internal/dbx"
	"videoflix/internal/services"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "dbx.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Exec(`CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	return db
}

func countRows(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestWithTxCommitsAndRunsHooksInOrder(t *testing.T) {
	db := openDB(t)
	var order []string

	err := dbx.WithTx(context.Background(), db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		unit, ok := dbx.FromContext(ctx)
		if !ok {
			t.Fatal("expected unit of work in context")
		}
		if err := unit.OnCommit(func(context.Context) { order = append(order, "first") }); err != nil {
			return err
		}
		if err := unit.OnCommit(func(context.Context) { order = append(order, "second") }); err != nil {
			return err
		}
		if len(order) != 0 {
			t.Fatal("hooks must not run before commit")
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('ok')`)
		return err
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	if countRows(t, db) != 1 {
		t.Fatal("row not committed")
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("unexpected hook order %v", order)
	}
}

func TestWithTxRollbackDropsHooks(t *testing.T) {
	db := openDB(t)
	ran := false
	boom := errors.New("boom")

	err := dbx.WithTx(context.Background(), db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		unit, _ := dbx.FromContext(ctx)
		_ = unit.OnCommit(func(context.Context) { ran = true })
		if _, err := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('fail')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if ran {
		t.Fatal("hook ran after rollback")
	}
	if countRows(t, db) != 0 {
		t.Fatal("row survived rollback")
	}
}

func TestWithTxPanicRollsBack(t *testing.T) {
	db := openDB(t)
	ran := false

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = dbx.WithTx(context.Background(), db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			unit, _ := dbx.FromContext(ctx)
			_ = unit.OnCommit(func(context.Context) { ran = true })
			_, _ = tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('panic')`)
			panic("kaput")
		})
	}()

	if ran {
		t.Fatal("hook ran after panic")
	}
	if countRows(t, db) != 0 {
		t.Fatal("row survived panic")
	}
}

func TestFinishedUnitRejectsHooks(t *testing.T) {
	db := openDB(t)
	var captured *dbx.UnitOfWork
	var capturedCtx context.Context

	if err := dbx.WithTx(context.Background(), db, nil, func(ctx context.Context, _ dbx.DBTX) error {
		captured, _ = dbx.FromContext(ctx)
		capturedCtx = ctx
		return nil
	}); err != nil {
		t.Fatalf("WithTx: %v", err)
	}

	if err := captured.OnCommit(func(context.Context) {}); !errors.Is(err, services.ErrNotCommitted) {
		t.Fatalf("expected ErrNotCommitted, got %v", err)
	}
	if _, ok := dbx.FromContext(capturedCtx); ok {
		t.Fatal("finished unit must not be returned from context")
	}
}

func TestFromContextWithoutUnit(t *testing.T) {
	if _, ok := dbx.FromContext(context.Background()); ok {
		t.Fatal("expected no unit of work")
	}
	var unit *dbx.UnitOfWork
	if err := unit.OnCommit(func(context.Context) {}); !errors.Is(err, services.ErrNotCommitted) {
		t.Fatalf("expected ErrNotCommitted, got %v", err)
	}
}

func TestHooksSurviveCallerCancellation(t *testing.T) {
	db := openDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	var hookErr error

	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, _ dbx.DBTX) error {
		unit, _ := dbx.FromContext(ctx)
		return unit.OnCommit(func(hookCtx context.Context) { hookErr = hookCtx.Err() })
	})
	cancel()
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	if hookErr != nil {
		t.Fatalf("hook context should not be cancelled: %v", hookErr)
	}
}
