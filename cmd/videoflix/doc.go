// Command videoflix is the operator CLI for the video catalog: it registers
// and deletes assets, inspects and repairs the job queue, runs the worker
// pool and performs one-shot transcode or cleanup runs outside the queue.
package main
