package preflight

import (
	"context"

	"vodpipe/internal/backend"
	"vodpipe/internal/config"
)

// CheckBackendFromConfig builds a backend client from cfg and pings it.
func CheckBackendFromConfig(ctx context.Context, cfg *config.Config) Result {
	const name = "Backend"

	if cfg == nil || cfg.Backend.BaseURL == "" {
		return Result{Name: name, Detail: "Missing base URL"}
	}
	result := CheckBackend(ctx, name, backend.NewFromConfig(cfg, nil))
	if result.Passed {
		result.Detail = cfg.Backend.BaseURL + " reachable"
	}
	return result
}

// CheckEventsFromConfig evaluates the event socket from config and connectivity.
func CheckEventsFromConfig(ctx context.Context, cfg *config.Config) Result {
	if cfg == nil {
		return Result{Name: "Event socket", Detail: "Unknown"}
	}
	if !cfg.Events.Enabled {
		return Result{Name: "Event socket", Passed: true, Detail: "Disabled"}
	}
	return CheckEventsEndpoint(ctx, cfg.Events.URL)
}
