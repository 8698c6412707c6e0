// Package dispatch submits transcode and cleanup jobs to the execution queue
// only after the catalog transaction that requested them commits.
//
// Callers must be running inside dbx.WithTx; a request made elsewhere fails
// with services.ErrNotCommitted and nothing is enqueued. A rolled back
// transaction enqueues nothing. Submission errors after commit are logged
// with an alert and not retried here.
package dispatch
