// Package workflow runs the worker pool that drains the execution queue.
//
// The Manager starts a fixed number of workers. Each worker reclaims jobs
// whose heartbeat expired, claims the next due job, and hands it to the
// handler registered for its kind while a heartbeat loop keeps the claim
// alive. Handler errors go back to the queue, which retries them per the
// job's policy; a job that runs out of attempts is logged with
// alert=job_failed_permanently. On shutdown the running jobs are released
// back to the queue without consuming an attempt.
package workflow
