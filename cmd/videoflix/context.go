package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"videoflix/internal/assetlock"
	"videoflix/internal/catalog"
	"videoflix/internal/cleanup"
	"videoflix/internal/config"
	"videoflix/internal/dispatch"
	"videoflix/internal/encoding"
	"videoflix/internal/hls"
	"videoflix/internal/logging"
	"videoflix/internal/queue"
	"videoflix/internal/transcode"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// JSONMode reports whether --json was given.
func (c *commandContext) JSONMode() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// commandLogger logs warnings and errors to stderr so that command output on
// stdout stays parseable.
func (c *commandContext) commandLogger(cfg *config.Config) *slog.Logger {
	logger, err := logging.New(logging.Options{
		Level:       "warn",
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

func (c *commandContext) withStore(fn func(*config.Config, *queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}
	defer store.Close()
	return fn(cfg, store)
}

// withCatalog opens the catalog wired to a dispatcher that enqueues into the
// queue database once catalog transactions commit.
func (c *commandContext) withCatalog(fn func(*catalog.Catalog) error) error {
	return c.withStore(func(cfg *config.Config, store *queue.Store) error {
		logger := c.commandLogger(cfg)
		d := dispatch.New(store, dispatch.PolicyFromConfig(cfg), logger)
		cat, err := catalog.Open(cfg, d, logger)
		if err != nil {
			return fmt.Errorf("open catalog: %w", err)
		}
		defer cat.Close()
		return fn(cat)
	})
}

// pipeline builds the two job handlers sharing one variant manager and lock
// directory.
type pipeline struct {
	transcode *transcode.Job
	cleanup   *cleanup.Job
}

func newPipeline(cfg *config.Config, logger *slog.Logger) pipeline {
	enc := encoding.NewEncoder(encoding.ProfileFromConfig(cfg), logger)
	dirs := hls.NewManager(logger)
	locker := assetlock.New(cfg.LockDir(), cfg.Queue.AssetLocking)
	return pipeline{
		transcode: transcode.NewJob(cfg, enc, dirs, locker, logger),
		cleanup:   cleanup.NewJob(cfg, dirs, locker, logger),
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
