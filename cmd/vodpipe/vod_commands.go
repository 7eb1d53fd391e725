package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"vodpipe/internal/pipeline"
	"vodpipe/internal/queue"
	"vodpipe/internal/queueaccess"
)

func newVODCommand(ctx *commandContext) *cobra.Command {
	vodCmd := &cobra.Command{
		Use:   "vod",
		Short: "Create and edit VOD jobs",
	}

	vodCmd.AddCommand(newVODAddCommand(ctx))
	vodCmd.AddCommand(newVODURLCommand(ctx))
	vodCmd.AddCommand(newVODShowCommand(ctx))
	vodCmd.AddCommand(newVODIndexCommand(ctx))

	return vodCmd
}

func newVODAddCommand(ctx *commandContext) *cobra.Command {
	var manual bool
	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Queue a VOD; manual jobs wait for `vodpipe stage run`",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := string(queue.ModeAuto)
			if manual {
				mode = string(queue.ModeManual)
			}
			return ctx.withQueue(cmd, func(access queueaccess.Access) error {
				item, err := access.Add(cmd.Context(), args[0], mode)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued item %d (%s, %s)\n", item.ID, item.Mode, item.Status)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&manual, "manual", false, "Create a manual job that the workflow manager leaves alone")
	return cmd
}

func newVODURLCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "url <id> <url>",
		Short: "Point an item at a new VOD URL, clearing derived state",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withItem(cmd, id, func(runner *pipeline.Runner, item *queue.Item) error {
				if err := runner.SetVODURL(cmd.Context(), item, args[1]); err != nil {
					return err
				}
				vodID := pipeline.ResolvedVODID(item)
				if vodID == "" {
					vodID = "unresolved"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Item %d now points at %s (VOD %s)\n", item.ID, item.VODURL, vodID)
				return nil
			})
		},
	}
}

func newVODIndexCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "index <id> <index>",
		Short: "Set the segment index used for polish and upload naming",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withItem(cmd, id, func(runner *pipeline.Runner, item *queue.Item) error {
				if err := runner.SetSegmentIndex(cmd.Context(), item, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Item %d segment index set to %s\n", item.ID, item.SegmentIndex)
				return nil
			})
		},
	}
}

func newVODShowCommand(ctx *commandContext) *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an item with every stage's status and output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return ctx.withItem(cmd, id, func(runner *pipeline.Runner, item *queue.Item) error {
				snap, err := runner.Snapshot(cmd.Context(), item)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				renderSnapshot(out, snap, full, shouldColorize(out))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "Print complete stage outputs")
	return cmd
}

func renderSnapshot(out io.Writer, snap pipeline.Snapshot, full, colorize bool) {
	item := snap.Item
	for _, line := range renderSectionHeader(fmt.Sprintf("Item %d", item.ID), colorize) {
		fmt.Fprintln(out, line)
	}
	fields := [][2]string{
		{"URL", item.VODURL},
		{"VOD ID", snap.VODID},
		{"Mode", string(item.Mode)},
		{"Status", string(item.Status)},
		{"Segment index", item.SegmentIndex},
		{"Selected segment", item.SelectedSegmentID},
		{"Polished path", item.PolishedPath},
	}
	if item.Status == queue.StatusFailed {
		fields = append(fields, [2]string{"Error", item.ErrorMessage})
	}
	for _, f := range fields {
		value := f[1]
		if strings.TrimSpace(value) == "" {
			value = "-"
		}
		fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, f[0]+":", value)
	}
	fmt.Fprintln(out)

	rows := make([][]string, 0, len(snap.Stages))
	for _, view := range snap.Stages {
		output := view.Run.Output
		if !full {
			output = firstLine(output)
		}
		rows = append(rows, []string{
			view.Label,
			string(view.Lane),
			stageBadge(view.Run.Status, colorize),
			fmt.Sprintf("%d", view.Run.Attempts),
			output,
		})
	}
	fmt.Fprint(out, renderTable(
		[]column{col("Stage"), col("Lane"), col("Status"), num("Runs"), col("Output")},
		rows,
		colorize,
	))

	if len(snap.Clips) > 0 {
		polished := 0
		for _, clip := range snap.Clips {
			if clip.Polished() {
				polished++
			}
		}
		fmt.Fprintf(out, "%d cached clip(s), %d polished\n", len(snap.Clips), polished)
	}
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i] + " …"
	}
	return text
}
