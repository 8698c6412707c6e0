package workflow

import (
	"context"
	"log/slog"

	"videoflix/internal/logging"
	"videoflix/internal/preflight"
)

// runPreflightChecks validates readiness before the workers start. Advisory
// problems are logged as warnings; blocking ones abort Start.
func (m *Manager) runPreflightChecks(ctx context.Context, logger *slog.Logger) error {
	results := preflight.RunAll(ctx, m.cfg)
	for _, r := range results {
		switch {
		case r.Passed:
			logger.Info("preflight check passed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
		case r.Advisory:
			logging.WarnWithContext(logger, "preflight check warning", "preflight_warning",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldImpact, "encodes may fail if the disk fills up"),
				logging.String(logging.FieldErrorHint, "free space under the media root"),
			)
		default:
			logger.Error("preflight check failed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldEventType, "preflight_failed"),
				logging.String(logging.FieldErrorHint, "fix the reported issue and restart the worker"),
			)
		}
	}
	return preflight.Err(results)
}
