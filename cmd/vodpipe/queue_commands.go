package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"vodpipe/internal/api"
	"vodpipe/internal/queue"
	"vodpipe/internal/queueaccess"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and maintain the VOD queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd, func(access queueaccess.Access) error {
				items, err := access.List(cmd.Context(), statuses)
				if err != nil {
					return err
				}
				items = api.SortQueueItemsNewestFirst(items)
				if asJSON {
					if items == nil {
						items = []api.QueueItem{}
					}
					return writeJSON(cmd, items)
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]column{num("ID"), col("VOD"), col("Mode"), col("Status"), num("Clips"), col("Progress")},
					buildQueueListRows(items),
					shouldColorize(out),
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by queue status (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print items as JSON")
	return cmd
}

func buildQueueListRows(items []api.QueueItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		clips := "-"
		if total, polished := api.ClipCounts(item); total > 0 {
			clips = fmt.Sprintf("%d/%d", polished, total)
		}
		progress := api.ProgressLabel(item)
		if item.Status == string(queue.StatusFailed) && item.ErrorMessage != "" {
			progress = item.ErrorMessage
		}
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			api.DisplayVOD(item),
			item.Mode,
			item.Status,
			clips,
			progress,
		})
	}
	return rows
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Retry failed items (all failed items when no id is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withQueue(cmd, func(access queueaccess.Access) error {
				result, err := access.Retry(cmd.Context(), ids)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(result.Items) == 0 {
					fmt.Fprintln(out, "No failed items to retry")
					return nil
				}
				for _, entry := range result.Items {
					switch entry.Outcome {
					case api.RetryItemNotFound:
						fmt.Fprintf(out, "Item %d not found\n", entry.ID)
					case api.RetryItemNotFailed:
						fmt.Fprintf(out, "Item %d is not failed\n", entry.ID)
					default:
						fmt.Fprintf(out, "Item %d reset to %s\n", entry.ID, entry.NewStatus)
					}
				}
				fmt.Fprintf(out, "Retried %d item(s)\n", result.UpdatedCount)
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id...>",
		Short: "Remove items from the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withQueue(cmd, func(access queueaccess.Access) error {
				result, err := access.Remove(cmd.Context(), ids)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, entry := range result.Items {
					if entry.Outcome == api.RemoveItemNotFound {
						fmt.Fprintf(out, "Item %d not found\n", entry.ID)
					}
				}
				fmt.Fprintf(out, "Removed %d item(s)\n", result.RemovedCount)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var completed bool
	var failed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every item, or only completed or failed ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			if completed && failed {
				return errors.New("specify only one of --completed or --failed")
			}
			return ctx.withStore(func(store *queue.Store) error {
				var (
					removed int64
					err     error
					scope   = "queue"
				)
				switch {
				case completed:
					scope = "completed"
					removed, err = store.ClearCompleted(cmd.Context())
				case failed:
					scope = "failed"
					removed, err = store.ClearFailed(cmd.Context())
				default:
					removed, err = store.Clear(cmd.Context())
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d %s item(s)\n", removed, scope)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&completed, "completed", false, "Only remove completed items")
	cmd.Flags().BoolVar(&failed, "failed", false, "Only remove failed items")
	return cmd
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item id %q", arg)
	}
	return id, nil
}
