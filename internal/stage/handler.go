// Package stage defines the contract between the worker pool and the job
// handlers it dispatches to.
package stage

import (
	"context"

	"videoflix/internal/queue"
)

// Handler describes what the worker pool needs from each job kind.
type Handler interface {
	Handle(context.Context, *queue.Job) error
	HealthCheck(context.Context) Health
}

// Func adapts a plain function into an always-healthy Handler.
func Func(name string, fn func(context.Context, *queue.Job) error) Handler {
	return funcHandler{name: name, fn: fn}
}

type funcHandler struct {
	name string
	fn   func(context.Context, *queue.Job) error
}

func (h funcHandler) Handle(ctx context.Context, job *queue.Job) error {
	return h.fn(ctx, job)
}

func (h funcHandler) HealthCheck(context.Context) Health {
	return Healthy(h.name)
}
