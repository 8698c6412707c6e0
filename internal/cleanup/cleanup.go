// Package cleanup deletes every file belonging to an asset after its catalog
// row is gone: the source, the thumbnail and each HLS variant.
package cleanup

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"videoflix/internal/assetlock"
	"videoflix/internal/config"
	"videoflix/internal/dispatch"
	"videoflix/internal/fileutil"
	"videoflix/internal/hls"
	"videoflix/internal/logging"
	"videoflix/internal/preflight"
	"videoflix/internal/queue"
	"videoflix/internal/services"
	"videoflix/internal/stage"
)

// Report lists the paths removed and the failures encountered.
type Report struct {
	Asset   hls.Asset
	Removed []string
	Errors  []error
}

// Err joins every collected failure.
func (r Report) Err() error {
	return errors.Join(r.Errors...)
}

// Job removes an asset's files. Every step tolerates missing paths, so a
// retried or duplicated job is harmless.
type Job struct {
	resolutions []int
	mediaRoot   string
	dirs        *hls.Manager
	locker      *assetlock.Locker
	logger      *slog.Logger
}

// NewJob constructs a cleanup job. A nil locker disables asset locking.
func NewJob(cfg *config.Config, dirs *hls.Manager, locker *assetlock.Locker, logger *slog.Logger) *Job {
	return &Job{
		resolutions: append([]int(nil), cfg.Encoder.Resolutions...),
		mediaRoot:   cfg.Paths.MediaRoot,
		dirs:        dirs,
		locker:      locker,
		logger:      logging.NewComponentLogger(logger, "cleanup"),
	}
}

// Run deletes the source, the thumbnail, and every configured or discovered
// variant. It returns a joined ErrIO error when any unexpected failure
// occurred; the remaining deletions are still attempted.
func (j *Job) Run(ctx context.Context, sourcePath, thumbnailPath string) (Report, error) {
	asset := hls.AssetFromSource(sourcePath)
	report := Report{Asset: asset}
	logger := logging.WithContext(ctx, j.logger).With(logging.String(logging.FieldAsset, asset.Stem))

	release, err := j.locker.Acquire(ctx, asset)
	if err != nil {
		return report, err
	}
	defer release()

	for _, path := range []string{sourcePath, thumbnailPath} {
		removed, err := fileutil.RemoveIfExists(path)
		switch {
		case err != nil:
			wrapped := services.Wrap(services.ErrIO, "cleanup", "remove file", path, err)
			report.Errors = append(report.Errors, wrapped)
			logger.Warn("file not removed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "cleanup_file_failed"),
				logging.String(logging.FieldErrorHint, "check permissions on the media directory"),
			)
		case removed:
			report.Removed = append(report.Removed, path)
		}
	}

	heights, err := j.heights(asset)
	if err != nil {
		report.Errors = append(report.Errors, err)
	}
	for _, height := range heights {
		variant := j.dirs.Remove(asset, height)
		report.Removed = append(report.Removed, variant.Removed...)
		report.Errors = append(report.Errors, variant.Errors...)
	}

	if err := report.Err(); err != nil {
		logging.WarnWithContext(logger, "cleanup incomplete", "cleanup_incomplete",
			logging.Int("removed", len(report.Removed)),
			logging.Int("failures", len(report.Errors)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "orphaned files remain under the media root"),
			logging.String(logging.FieldErrorHint, "fix permissions; the job is retried automatically"),
		)
		return report, err
	}
	logger.Info("cleanup finished",
		logging.String(logging.FieldEventType, "cleanup_succeeded"),
		logging.Int("removed", len(report.Removed)),
	)
	return report, nil
}

// Handle runs a claimed cleanup job from the execution queue.
func (j *Job) Handle(ctx context.Context, job *queue.Job) error {
	payload, err := dispatch.DecodeCleanup(job)
	if err != nil {
		return err
	}
	_, err = j.Run(ctx, payload.SourcePath, payload.ThumbnailPath)
	return err
}

// heights merges the configured resolutions with any variant directories
// still on disk, so output from an older resolution list is removed too.
func (j *Job) heights(asset hls.Asset) ([]int, error) {
	heights := append([]int(nil), j.resolutions...)
	existing, err := j.dirs.Variants(asset)
	for _, h := range existing {
		if !slices.Contains(heights, h) {
			heights = append(heights, h)
		}
	}
	return heights, err
}

// HealthCheck reports whether the media root is writable.
func (j *Job) HealthCheck(context.Context) stage.Health {
	if j.mediaRoot == "" {
		return stage.Healthy("cleanup")
	}
	if result := preflight.CheckDirectoryAccess("cleanup", j.mediaRoot); !result.Passed {
		return stage.Unhealthy("cleanup", result.Detail)
	}
	return stage.Healthy("cleanup")
}
