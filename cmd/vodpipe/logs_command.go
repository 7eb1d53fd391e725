package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vodpipe/internal/api"
	"vodpipe/internal/apiclient"
	"vodpipe/internal/logging"
	"vodpipe/internal/logs"
)

const fileFollowWait = 5 * time.Second

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var itemID int64
	var limit int
	var component string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Tail daemon logs through the daemon API, or from the log file when it is down",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			query := apiclient.LogQuery{Limit: limit, Tail: true, ItemID: itemID, Component: component}
			for {
				resp, err := client.Logs(cmd.Context(), query)
				if err != nil {
					if apiclient.IsUnavailable(err) {
						path := ctx.config.DaemonLogPath()
						fmt.Fprintf(cmd.ErrOrStderr(), "daemon is not running; reading %s\n", path)
						return tailLogFile(cmd, path, limit, follow, itemID, component)
					}
					if cmd.Context().Err() != nil {
						return nil
					}
					return err
				}
				for _, evt := range resp.Events {
					fmt.Fprintln(out, formatLogEvent(evt))
				}
				if !follow {
					return nil
				}
				query = apiclient.LogQuery{Since: resp.Next, Follow: true, ItemID: itemID, Component: component}
			}
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new log lines")
	cmd.Flags().Int64Var(&itemID, "item", 0, "Only show lines for this queue item")
	cmd.Flags().IntVarP(&limit, "lines", "n", 100, "Number of recent lines to print first")
	cmd.Flags().StringVar(&component, "component", "", "Only show lines from this component")
	return cmd
}

func formatLogEvent(evt api.LogEvent) string {
	var b strings.Builder
	b.WriteString(evt.Timestamp.Local().Format("2006-01-02 15:04:05"))
	b.WriteByte(' ')
	fmt.Fprintf(&b, "%-5s", strings.ToUpper(evt.Level))
	if evt.Component != "" {
		fmt.Fprintf(&b, " [%s]", evt.Component)
	}
	if evt.ItemID > 0 {
		fmt.Fprintf(&b, " item=%d", evt.ItemID)
	}
	if evt.Stage != "" {
		fmt.Fprintf(&b, " stage=%s", evt.Stage)
	}
	b.WriteByte(' ')
	b.WriteString(evt.Message)
	keys := make([]string, 0, len(evt.Fields))
	for key := range evt.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%s", key, evt.Fields[key])
	}
	return b.String()
}

func tailLogFile(cmd *cobra.Command, path string, limit int, follow bool, itemID int64, component string) error {
	out := cmd.OutOrStdout()
	opts := logs.TailOptions{Offset: -1, Limit: limit}
	for {
		result, err := logs.Tail(cmd.Context(), path, opts)
		if err != nil {
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		}
		for _, line := range result.Lines {
			printLogFileLine(out, line, itemID, component)
		}
		if !follow {
			return nil
		}
		opts = logs.TailOptions{Offset: result.Offset, Follow: true, Wait: fileFollowWait}
	}
}

// printLogFileLine prints JSON lines through the same filters and format as
// API events. Console lines carry no structure and are dropped when filtering.
func printLogFileLine(out io.Writer, line string, itemID int64, component string) {
	evt, ok := logs.ParseLine(line)
	if !ok {
		if itemID == 0 && strings.TrimSpace(component) == "" {
			fmt.Fprintln(out, line)
		}
		return
	}
	matched := api.FromLogEvents(logging.FilterEvents([]logging.LogEvent{evt}, itemID, component))
	if len(matched) == 1 {
		fmt.Fprintln(out, formatLogEvent(matched[0]))
	}
}
