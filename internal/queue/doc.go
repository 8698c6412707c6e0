// Package queue persists background jobs in SQLite and exposes helpers for
// driving their lifecycle.
//
// Jobs move queued -> running -> succeeded | failed. Claims are a single
// UPDATE ... RETURNING so several worker processes can share one database.
// Each job carries the RetryPolicy it was submitted with; Fail consumes it to
// schedule the next attempt or mark the job permanently failed. Heartbeats let
// ReclaimStale return jobs abandoned by a crashed worker without charging an
// attempt.
//
// The database holds in-flight work rather than a long-term archive. Schema
// changes bump the version in schema.go; operators delete the database to
// adopt a new schema.
package queue
