package preflight

import (
	"context"
	"fmt"
	"strings"

	"videoflix/internal/config"
)

// MinFreeBytes is the free space below which the media root check warns.
const MinFreeBytes uint64 = 5 << 30

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Advisory bool
	Detail   string
}

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckDirectoryAccess("Media root", cfg.Paths.MediaRoot),
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckFFmpeg(ctx, cfg.FFmpegBinary()),
		CheckFreeSpace("Media root free space", cfg.Paths.MediaRoot, MinFreeBytes),
	}
}

// Failed returns the blocking failures in results.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed && !r.Advisory {
			out = append(out, r)
		}
	}
	return out
}

// Err summarizes blocking failures as one error, or nil.
func Err(results []Result) error {
	failed := Failed(results)
	if len(failed) == 0 {
		return nil
	}
	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	return fmt.Errorf("preflight checks failed: %s", strings.Join(parts, "; "))
}
