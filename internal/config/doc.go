// Package config loads, normalizes, and validates videoflix configuration data.
//
// It supplies repository defaults (including the fixed HLS encoding profile
// and the 3-attempt 10s/30s/60s retry schedule), expands user paths (including
// tilde shortcuts), reads TOML files, and honours the VIDEOFLIX_MEDIA_ROOT
// environment override.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
