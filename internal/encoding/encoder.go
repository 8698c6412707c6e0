package encoding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"videoflix/internal/config"
	"videoflix/internal/hls"
	"videoflix/internal/logging"
	"videoflix/internal/services"
)

// CommandRunner executes an external program, streaming its stderr into the
// supplied writer. Errors carrying an ExitCode() method report the exit status.
type CommandRunner func(ctx context.Context, stderr io.Writer, name string, args ...string) error

// Profile is the fixed HLS encoding profile.
type Profile struct {
	Binary         string
	CRF            int
	Preset         string
	AudioBitrate   string
	SegmentSeconds int
}

// ProfileFromConfig reads the encoder section.
func ProfileFromConfig(cfg *config.Config) Profile {
	return Profile{
		Binary:         cfg.FFmpegBinary(),
		CRF:            cfg.Encoder.CRF,
		Preset:         cfg.Encoder.Preset,
		AudioBitrate:   cfg.Encoder.AudioBitrate,
		SegmentSeconds: cfg.Encoder.SegmentSeconds,
	}
}

// Request describes one resolution to encode.
type Request struct {
	Source    string
	Height    int
	OutputDir string
}

// Result reports a successful encode.
type Result struct {
	Height   int
	Manifest string
	Segments int
	Duration time.Duration
}

// Encoder invokes ffmpeg to produce one HLS variant per call.
type Encoder struct {
	profile Profile
	logger  *slog.Logger
	run     CommandRunner
}

// NewEncoder constructs an Encoder for the given profile.
func NewEncoder(profile Profile, logger *slog.Logger) *Encoder {
	if profile.Binary == "" {
		profile.Binary = "ffmpeg"
	}
	return &Encoder{
		profile: profile,
		logger:  logging.NewComponentLogger(logger, "encoder"),
		run:     defaultCommandRunner,
	}
}

// WithCommandRunner allows injecting a custom command runner for tests.
func (e *Encoder) WithCommandRunner(r CommandRunner) {
	if e != nil && r != nil {
		e.run = r
	}
}

// Args builds the ffmpeg argument list for a request.
func (e *Encoder) Args(req Request) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", req.Source,
		"-vf", fmt.Sprintf("scale=-2:%d", req.Height),
		"-c:v", "libx264",
		"-crf", strconv.Itoa(e.profile.CRF),
		"-preset", e.profile.Preset,
		"-c:a", "aac",
		"-b:a", e.profile.AudioBitrate,
		"-f", "hls",
		"-hls_time", strconv.Itoa(e.profile.SegmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", filepath.Join(req.OutputDir, hls.SegmentPattern),
		filepath.Join(req.OutputDir, hls.Manifest),
	}
}

// Encode runs ffmpeg for one resolution. A non-zero exit, or a zero exit that
// leaves no manifest behind, yields an *EncodeFailedError.
func (e *Encoder) Encode(ctx context.Context, req Request) (Result, error) {
	result := Result{Height: req.Height}
	if req.Height <= 0 {
		return result, services.Wrap(services.ErrValidation, "encoder", "encode", fmt.Sprintf("invalid height %d", req.Height), nil)
	}
	info, err := os.Stat(req.Source)
	if err != nil {
		return result, services.Wrap(services.ErrIO, "encoder", "stat source", req.Source, err)
	}
	if info.IsDir() {
		return result, services.Wrap(services.ErrIO, "encoder", "stat source", req.Source+" is a directory", nil)
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return result, services.Wrap(services.ErrIO, "encoder", "create output", req.OutputDir, err)
	}

	logger := logging.WithContext(ctx, e.logger).With(logging.Int(logging.FieldHeight, req.Height))
	args := e.Args(req)
	logger.Debug("ffmpeg starting", logging.String("binary", e.profile.Binary), logging.Any("args", args))

	stderr := newTailBuffer(stderrTailBytes)
	started := time.Now()
	runErr := e.run(ctx, stderr, e.profile.Binary, args...)
	result.Duration = time.Since(started)

	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, services.Wrap(services.ErrTransient, "encoder", "encode", "ffmpeg interrupted", ctxErr)
		}
		failure := &EncodeFailedError{Height: req.Height, ExitCode: exitCode(runErr), Stderr: stderr.String(), Err: runErr}
		logger.Debug("ffmpeg failed", logging.Int("exit_code", failure.ExitCode), logging.String("stderr", failure.Stderr))
		return result, failure
	}

	manifest := filepath.Join(req.OutputDir, hls.Manifest)
	if _, err := os.Stat(manifest); err != nil {
		return result, &EncodeFailedError{Height: req.Height, ExitCode: 0, Stderr: stderr.String(), Err: fmt.Errorf("manifest missing: %w", err)}
	}
	segments, err := doublestar.Glob(os.DirFS(req.OutputDir), "segment_*.ts")
	if err != nil {
		logger.Debug("segment listing failed", logging.Error(err))
	}
	result.Manifest = manifest
	result.Segments = len(segments)

	logger.Debug("ffmpeg finished",
		logging.Int("segments", result.Segments),
		logging.Duration("elapsed", result.Duration),
	)
	return result, nil
}

func exitCode(err error) int {
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return -1
}

func defaultCommandRunner(ctx context.Context, stderr io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = stderr
	return cmd.Run()
}
