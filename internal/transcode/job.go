package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"videoflix/internal/assetlock"
	"videoflix/internal/config"
	"videoflix/internal/encoding"
	"videoflix/internal/hls"
	"videoflix/internal/logging"
	"videoflix/internal/services"
)

// Encoder produces one HLS variant.
type Encoder interface {
	Encode(ctx context.Context, req encoding.Request) (encoding.Result, error)
}

// State is the lifecycle of one transcode attempt.
type State string

const (
	StatePending         State = "pending"
	StateRunning         State = "running"
	StateSucceeded       State = "succeeded"
	StatePartiallyFailed State = "partially_failed"
	StateFailed          State = "failed"
)

// VariantResult records the outcome for one resolution.
type VariantResult struct {
	Height   int
	Err      error
	ExitCode int
	Segments int
	Duration time.Duration
}

// OK reports whether the variant was published.
func (v VariantResult) OK() bool {
	return v.Err == nil
}

// Result summarizes an attempt.
type Result struct {
	Asset    hls.Asset
	State    State
	Variants []VariantResult
}

// FailedHeights lists the resolutions that were not published.
func (r Result) FailedHeights() []int {
	var out []int
	for _, v := range r.Variants {
		if !v.OK() {
			out = append(out, v.Height)
		}
	}
	return out
}

// Job encodes every configured resolution of a source, isolating failures
// per resolution.
type Job struct {
	resolutions []int
	binary      string
	encoder     Encoder
	dirs        *hls.Manager
	locker      *assetlock.Locker
	logger      *slog.Logger
}

// NewJob constructs a transcode job. A nil locker disables asset locking.
func NewJob(cfg *config.Config, encoder Encoder, dirs *hls.Manager, locker *assetlock.Locker, logger *slog.Logger) *Job {
	return &Job{
		resolutions: append([]int(nil), cfg.Encoder.Resolutions...),
		binary:      cfg.FFmpegBinary(),
		encoder:     encoder,
		dirs:        dirs,
		locker:      locker,
		logger:      logging.NewComponentLogger(logger, "transcode"),
	}
}

// Run executes one attempt. It returns an error only when no resolution
// could be produced, so the queue retries whole failures but not partial
// ones.
func (j *Job) Run(ctx context.Context, sourcePath string) (Result, error) {
	asset := hls.AssetFromSource(sourcePath)
	result := Result{Asset: asset, State: StatePending}
	logger := logging.WithContext(ctx, j.logger).With(logging.String(logging.FieldAsset, asset.Stem))

	if info, err := os.Stat(sourcePath); err != nil || info.IsDir() {
		if err == nil {
			err = errors.New("source is a directory")
		}
		result.State = StateFailed
		return result, services.Wrap(services.ErrIO, "transcode", "stat source", sourcePath, err)
	}

	release, err := j.locker.Acquire(ctx, asset)
	if err != nil {
		result.State = StateFailed
		return result, err
	}
	defer release()

	result.State = StateRunning
	logger.Info("transcode started", logging.String("resolutions", joinHeights(j.resolutions)))

	for _, height := range j.resolutions {
		variant := j.encodeVariant(ctx, logger, asset, height)
		result.Variants = append(result.Variants, variant)
		if ctx.Err() != nil {
			break
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		result.State = StateFailed
		return result, services.Wrap(services.ErrTransient, "transcode", "run", asset.Stem+" interrupted", ctxErr)
	}

	published := 0
	var errs []error
	for _, v := range result.Variants {
		if v.OK() {
			published++
			continue
		}
		errs = append(errs, fmt.Errorf("%dp: %w", v.Height, v.Err))
	}

	switch {
	case published == len(j.resolutions):
		result.State = StateSucceeded
		logger.Info("transcode succeeded",
			logging.String(logging.FieldEventType, "transcode_succeeded"),
			logging.Int("variants", published),
		)
		return result, nil
	case published > 0:
		result.State = StatePartiallyFailed
		logging.WarnWithContext(logger, "transcode partially failed", "transcode_partial",
			logging.String("failed_resolutions", joinHeights(result.FailedHeights())),
			logging.Int("variants", published),
			logging.Error(errors.Join(errs...)),
			logging.String(logging.FieldImpact, "some resolutions are unavailable for playback"),
			logging.String(logging.FieldErrorHint, "re-run videoflix transcode for the asset after fixing the cause"),
		)
		return result, nil
	default:
		result.State = StateFailed
		return result, fmt.Errorf("transcode %s: no resolution produced: %w", asset.Stem, errors.Join(errs...))
	}
}

func (j *Job) encodeVariant(ctx context.Context, logger *slog.Logger, asset hls.Asset, height int) VariantResult {
	variant := VariantResult{Height: height}
	started := time.Now()
	logger = logger.With(logging.Int(logging.FieldHeight, height))

	fail := func(err error) VariantResult {
		variant.Err = err
		variant.Duration = time.Since(started)
		var encErr *encoding.EncodeFailedError
		if errors.As(err, &encErr) {
			variant.ExitCode = encErr.ExitCode
		}
		if resetErr := j.dirs.Reset(asset, height); resetErr != nil {
			logger.Warn("staging directory not discarded", logging.Error(resetErr))
		}
		details := services.Details(err)
		logger.Warn("variant failed",
			logging.String(logging.FieldEventType, "variant_failed"),
			logging.String("error_kind", string(details.Kind)),
			logging.String(logging.FieldErrorHint, details.Hint),
			logging.Error(err),
		)
		return variant
	}

	if err := j.dirs.Reset(asset, height); err != nil {
		return fail(err)
	}
	staging, err := j.dirs.Ensure(asset, height)
	if err != nil {
		return fail(err)
	}
	res, err := j.encoder.Encode(ctx, encoding.Request{
		Source:    asset.SourcePath(),
		Height:    height,
		OutputDir: staging,
	})
	if err != nil {
		return fail(err)
	}
	if err := j.dirs.Publish(asset, height); err != nil {
		return fail(err)
	}

	variant.Segments = res.Segments
	variant.Duration = time.Since(started)
	logger.Info("variant published",
		logging.String(logging.FieldEventType, "variant_published"),
		logging.Int("segments", res.Segments),
		logging.Duration("elapsed", variant.Duration),
	)
	return variant
}

func joinHeights(heights []int) string {
	parts := make([]string, 0, len(heights))
	for _, h := range heights {
		parts = append(parts, strconv.Itoa(h)+"p")
	}
	return strings.Join(parts, ",")
}
