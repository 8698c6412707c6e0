package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"videoflix/internal/config"
	"videoflix/internal/logging"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Dispatcher schedules background work for asset lifecycle events. Both
// calls must happen inside dbx.WithTx.
type Dispatcher interface {
	DeferTranscode(ctx context.Context, sourcePath string) error
	DeferCleanup(ctx context.Context, sourcePath, thumbnailPath string) error
}

// Catalog persists assets in SQLite and owns their files under the media
// root.
type Catalog struct {
	db         *sql.DB
	path       string
	mediaRoot  string
	dispatcher Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

// Option customizes a Catalog.
type Option func(*Catalog)

// WithClock overrides the time source for created_at.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) {
		if now != nil {
			c.now = now
		}
	}
}

// Open connects to the catalog database at cfg.CatalogDBPath().
func Open(cfg *config.Config, dispatcher Dispatcher, logger *slog.Logger, opts ...Option) (*Catalog, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	dbPath := cfg.CatalogDBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	c := &Catalog{
		db:         db,
		path:       dbPath,
		mediaRoot:  cfg.Paths.MediaRoot,
		dispatcher: dispatcher,
		logger:     logging.NewComponentLogger(logger, "catalog"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// Path returns the database file location.
func (c *Catalog) Path() string {
	return c.path
}

// Close closes the database.
func (c *Catalog) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *Catalog) initSchema(ctx context.Context) error {
	var exists int
	if err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&exists); err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if exists > 0 {
		var version int
		if err := c.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		if version != schemaVersion {
			return fmt.Errorf("catalog %s has schema version %d, expected %d", c.path, version, schemaVersion)
		}
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

func (c *Catalog) clock() time.Time {
	return c.now().UTC()
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
