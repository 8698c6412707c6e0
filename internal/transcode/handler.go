package transcode

import (
	"context"

	"videoflix/internal/deps"
	"videoflix/internal/dispatch"
	"videoflix/internal/queue"
	"videoflix/internal/stage"
)

// Handle runs a claimed transcode job from the execution queue.
func (j *Job) Handle(ctx context.Context, job *queue.Job) error {
	payload, err := dispatch.DecodeTranscode(job)
	if err != nil {
		return err
	}
	_, err = j.Run(ctx, payload.SourcePath)
	return err
}

// HealthCheck reports whether ffmpeg can be executed.
func (j *Job) HealthCheck(ctx context.Context) stage.Health {
	if j.binary == "" {
		return stage.Healthy("transcode")
	}
	status := deps.FFmpegVersion(ctx, j.binary)
	if !status.Available {
		return stage.Unhealthy("transcode", status.Detail)
	}
	return stage.Healthy("transcode")
}
