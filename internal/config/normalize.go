package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEncoder()
	c.normalizeQueue()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv(mediaRootEnv); ok && strings.TrimSpace(value) != "" {
		c.Paths.MediaRoot = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.MediaRoot) == "" {
		c.Paths.MediaRoot = defaultMediaRoot
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}

	var err error
	if c.Paths.MediaRoot, err = expandPath(c.Paths.MediaRoot); err != nil {
		return fmt.Errorf("paths.media_root: %w", err)
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeEncoder() {
	c.Encoder.FFmpegBinary = strings.TrimSpace(c.Encoder.FFmpegBinary)
	if c.Encoder.FFmpegBinary == "" {
		c.Encoder.FFmpegBinary = defaultFFmpegBinary
	}
	c.Encoder.Preset = strings.ToLower(strings.TrimSpace(c.Encoder.Preset))
	if c.Encoder.Preset == "" {
		c.Encoder.Preset = defaultPreset
	}
	c.Encoder.AudioBitrate = strings.ToLower(strings.TrimSpace(c.Encoder.AudioBitrate))
	if c.Encoder.AudioBitrate == "" {
		c.Encoder.AudioBitrate = defaultAudioBitrate
	}
	if len(c.Encoder.Resolutions) == 0 {
		c.Encoder.Resolutions = append([]int(nil), defaultResolutions...)
	}
	if c.Encoder.SegmentSeconds == 0 {
		c.Encoder.SegmentSeconds = defaultSegmentSeconds
	}
}

func (c *Config) normalizeQueue() {
	if c.Queue.Workers == 0 {
		c.Queue.Workers = defaultWorkers
	}
	if c.Queue.PollInterval == 0 {
		c.Queue.PollInterval = defaultPollInterval
	}
	if c.Queue.ErrorRetryInterval == 0 {
		c.Queue.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Queue.MaxAttempts == 0 {
		c.Queue.MaxAttempts = defaultMaxAttempts
	}
	if c.Queue.BackoffSeconds == nil {
		c.Queue.BackoffSeconds = append([]int(nil), defaultBackoffSeconds...)
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
