package config

import (
	"errors"
	"fmt"
	"regexp"
)

var x264Presets = map[string]struct{}{
	"ultrafast": {},
	"superfast": {},
	"veryfast":  {},
	"faster":    {},
	"fast":      {},
	"medium":    {},
	"slow":      {},
	"slower":    {},
	"veryslow":  {},
	"placebo":   {},
}

var audioBitratePattern = regexp.MustCompile(`^[1-9][0-9]*k$`)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEncoder(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.MediaRoot == "" {
		return errors.New("paths.media_root must be set")
	}
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateEncoder() error {
	if len(c.Encoder.Resolutions) == 0 {
		return errors.New("encoder.resolutions must list at least one height")
	}
	seen := make(map[int]struct{}, len(c.Encoder.Resolutions))
	for _, h := range c.Encoder.Resolutions {
		if h < minResolutionHeight || h > maxResolutionHeight {
			return fmt.Errorf("encoder.resolutions: height %d outside %d-%d", h, minResolutionHeight, maxResolutionHeight)
		}
		if h%2 != 0 {
			return fmt.Errorf("encoder.resolutions: height %d must be even for libx264", h)
		}
		if _, dup := seen[h]; dup {
			return fmt.Errorf("encoder.resolutions: height %d listed twice", h)
		}
		seen[h] = struct{}{}
	}
	if c.Encoder.CRF < 0 || c.Encoder.CRF > 51 {
		return errors.New("encoder.crf must be between 0 and 51")
	}
	if _, ok := x264Presets[c.Encoder.Preset]; !ok {
		return fmt.Errorf("encoder.preset: unsupported value %q", c.Encoder.Preset)
	}
	if !audioBitratePattern.MatchString(c.Encoder.AudioBitrate) {
		return fmt.Errorf("encoder.audio_bitrate: expected a value like 128k, got %q", c.Encoder.AudioBitrate)
	}
	if c.Encoder.SegmentSeconds < 1 || c.Encoder.SegmentSeconds > maxSegmentSeconds {
		return fmt.Errorf("encoder.segment_seconds must be between 1 and %d", maxSegmentSeconds)
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.Workers < 1 {
		return errors.New("queue.workers must be positive")
	}
	if c.Queue.PollInterval < 1 {
		return errors.New("queue.poll_interval must be positive")
	}
	if c.Queue.ErrorRetryInterval < 1 {
		return errors.New("queue.error_retry_interval must be positive")
	}
	if c.Queue.MaxAttempts < 1 {
		return errors.New("queue.max_attempts must be at least 1")
	}
	for _, s := range c.Queue.BackoffSeconds {
		if s < 0 {
			return errors.New("queue.backoff_seconds must not contain negative values")
		}
	}
	if c.Queue.HeartbeatInterval < 0 || c.Queue.HeartbeatTimeout < 0 {
		return errors.New("queue heartbeat settings must not be negative")
	}
	if c.Queue.HeartbeatTimeout > 0 && c.Queue.HeartbeatInterval == 0 {
		return errors.New("queue.heartbeat_interval must be positive when queue.heartbeat_timeout is set")
	}
	if c.Queue.HeartbeatTimeout > 0 && c.Queue.HeartbeatInterval > 0 && c.Queue.HeartbeatTimeout <= c.Queue.HeartbeatInterval {
		return errors.New("queue.heartbeat_timeout must be greater than queue.heartbeat_interval")
	}
	if c.Queue.JobTimeout < 0 {
		return errors.New("queue.job_timeout must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
