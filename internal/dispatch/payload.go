package dispatch

import (
	"encoding/json"
	"fmt"
	"strings"

	"videoflix/internal/queue"
	"videoflix/internal/services"
)

// TranscodePayload is the queued body of a transcode job.
type TranscodePayload struct {
	SourcePath string `json:"source_path"`
}

// CleanupPayload is the queued body of a cleanup job.
type CleanupPayload struct {
	SourcePath    string `json:"source_path"`
	ThumbnailPath string `json:"thumbnail_path,omitempty"`
}

// TranscodeKey is the queue identity of an asset's transcode job.
func TranscodeKey(sourcePath string) string {
	return queue.KindTranscode + ":" + sourcePath
}

// CleanupKey is the queue identity of an asset's cleanup job.
func CleanupKey(sourcePath string) string {
	return queue.KindCleanup + ":" + sourcePath
}

// DecodeTranscode reads a transcode job body.
func DecodeTranscode(job *queue.Job) (TranscodePayload, error) {
	var p TranscodePayload
	if err := decode(job, queue.KindTranscode, &p); err != nil {
		return p, err
	}
	if strings.TrimSpace(p.SourcePath) == "" {
		return p, services.Wrap(services.ErrValidation, "dispatch", "decode payload", "transcode payload missing source_path", nil)
	}
	return p, nil
}

// DecodeCleanup reads a cleanup job body.
func DecodeCleanup(job *queue.Job) (CleanupPayload, error) {
	var p CleanupPayload
	if err := decode(job, queue.KindCleanup, &p); err != nil {
		return p, err
	}
	if strings.TrimSpace(p.SourcePath) == "" {
		return p, services.Wrap(services.ErrValidation, "dispatch", "decode payload", "cleanup payload missing source_path", nil)
	}
	return p, nil
}

func decode(job *queue.Job, kind string, dst any) error {
	if job == nil {
		return services.Wrap(services.ErrValidation, "dispatch", "decode payload", "nil job", nil)
	}
	if job.Kind != kind {
		return services.Wrap(services.ErrValidation, "dispatch", "decode payload", fmt.Sprintf("job %d is %s, want %s", job.ID, job.Kind, kind), nil)
	}
	if err := json.Unmarshal(job.Payload, dst); err != nil {
		return services.Wrap(services.ErrValidation, "dispatch", "decode payload", fmt.Sprintf("job %d", job.ID), err)
	}
	return nil
}
