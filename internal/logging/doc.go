// Package logging assembles structured slog loggers and formatting helpers used
// across videoflix workers and the CLI.
//
// It owns the console and JSON handlers, tees worker output into a JSON log
// file under the configured log directory, and exposes context-aware helpers
// so job code automatically tags log lines with job IDs, job kinds, attempt
// numbers, and correlation IDs. A no-op logger is provided for tests and
// wiring code that cannot fail.
package logging
