package preflight

import (
	"context"
	"fmt"
	"strings"

	"vodpipe/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// The events check only runs when the socket subscription is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckBackendFromConfig(ctx, cfg),
	}
	if cfg.Events.Enabled {
		results = append(results, CheckEventsFromConfig(ctx, cfg))
	}
	return results
}

// Failures joins the failed results into one error, or returns nil.
func Failures(results []Result) error {
	var failed []string
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("preflight checks failed: %s", strings.Join(failed, "; "))
}
