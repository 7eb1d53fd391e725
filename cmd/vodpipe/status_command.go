package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"vodpipe/internal/api"
	"vodpipe/internal/apiclient"
	"vodpipe/internal/config"
	"vodpipe/internal/preflight"
	"vodpipe/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status, or local preflight results when the daemon is down",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			switch {
			case err == nil:
			case apiclient.IsUnavailable(err):
				status, err = localStatus(cmd, cfg)
				if err != nil {
					return err
				}
			default:
				return err
			}

			if asJSON {
				return writeJSON(cmd, status)
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, strings.Join(statusLines(status, shouldColorize(out)), "\n")+"\n")
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the status as JSON")
	return cmd
}

func localStatus(cmd *cobra.Command, cfg *config.Config) (api.DaemonStatus, error) {
	status := api.DaemonStatus{
		QueueDBPath:  cfg.QueueDBPath(),
		LockFilePath: cfg.LockPath(),
		LogPath:      cfg.DaemonLogPath(),
	}
	results := preflight.RunAll(cmd.Context(), cfg)
	store, err := queue.Open(cfg)
	if err != nil {
		results = append(results, preflight.Result{Name: "Queue database", Detail: err.Error()})
	} else {
		defer store.Close()
		results = append(results, preflight.CheckQueue(cmd.Context(), store))
		service := api.NewQueueService(store)
		if stats, err := service.Stats(cmd.Context()); err == nil {
			status.Workflow.QueueStats = stats
		}
	}
	status.Preflight = api.FromPreflight(results)
	return status, nil
}

func statusLines(status api.DaemonStatus, colorize bool) []string {
	lines := renderSectionHeader("Daemon", colorize)
	if status.Running {
		lines = append(lines, renderStatusLine("vodpipe", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
		workflow := renderStatusLine("Workflow", statusOK, "Running", colorize)
		if !status.Workflow.Running {
			workflow = renderStatusLine("Workflow", statusWarn, "Stopped", colorize)
		}
		lines = append(lines, workflow)
		lines = append(lines, eventsLine(status.Events, colorize))
		if status.Workflow.LastError != "" {
			lines = append(lines, renderStatusLine("Last error", statusError, status.Workflow.LastError, colorize))
		}
	} else {
		lines = append(lines, renderStatusLine("vodpipe", statusError, "Not running", colorize))
	}
	lines = append(lines, renderStatusLine("Queue DB", statusInfo, status.QueueDBPath, colorize))
	lines = append(lines, renderStatusLine("Log", statusInfo, status.LogPath, colorize))

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Preflight", colorize)...)
	for _, check := range status.Preflight {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}

	if rows := buildQueueStatusRows(status.Workflow.QueueStats); len(rows) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Queue", colorize)...)
		for _, row := range rows {
			lines = append(lines, renderStatusLine(row[0], statusInfo, row[1], colorize))
		}
	}
	return lines
}

func eventsLine(events api.EventsStatus, colorize bool) string {
	switch {
	case !events.Enabled:
		return renderStatusLine("Backend events", statusInfo, "Disabled", colorize)
	case events.Connected:
		return renderStatusLine("Backend events", statusOK, fmt.Sprintf("Connected (%d received)", events.Received), colorize)
	default:
		return renderStatusLine("Backend events", statusWarn, "Disconnected, retrying", colorize)
	}
}

// buildQueueStatusRows lists non-zero statuses in pipeline order, unknown
// statuses last.
func buildQueueStatusRows(stats map[string]int) [][]string {
	order := make(map[string]int)
	for i, status := range queue.AllStatuses() {
		order[string(status)] = i
	}
	keys := make([]string, 0, len(stats))
	for key, count := range stats {
		if count > 0 {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		oi, iok := order[keys[i]]
		oj, jok := order[keys[j]]
		switch {
		case iok && jok:
			return oi < oj
		case iok != jok:
			return iok
		default:
			return keys[i] < keys[j]
		}
	})
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{key, fmt.Sprintf("%d", stats[key])})
	}
	return rows
}
