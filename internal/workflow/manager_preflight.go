package workflow

import (
	"context"

	"vodpipe/internal/logging"
	"vodpipe/internal/preflight"
)

// Preflight runs the readiness checks, logs each result and keeps the last
// failure as the manager error so Status surfaces it.
func (m *Manager) Preflight(ctx context.Context) []preflight.Result {
	results := preflight.RunAll(ctx, m.cfg)
	results = append(results, preflight.CheckQueue(ctx, m.store))

	for _, r := range results {
		if r.Passed {
			m.logger.Info("preflight check passed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
			continue
		}
		m.logger.Error("preflight check failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldErrorHint, "fix the reported issue; stages will fail until it is resolved"),
		)
	}
	if err := preflight.Failures(results); err != nil {
		m.setLastError(err)
	}
	return results
}
