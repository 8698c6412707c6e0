// Package services defines shared utilities consumed by the background jobs
// and their collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp queue job IDs, job kinds, attempt numbers and
//     correlation identifiers for logging.
//   - Structured error markers (encode failed, I/O failure, not committed) plus
//     the Wrap helper, so the execution queue can decide between retrying and
//     failing permanently.
//
// Use these helpers when wiring new job logic so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
