package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"vodpipe/internal/backend"
	"vodpipe/internal/pipeline"
	"vodpipe/internal/queue"
)

func newClipsCommand(ctx *commandContext) *cobra.Command {
	clipsCmd := &cobra.Command{
		Use:   "clips",
		Short: "Load and select approved clips for one item",
	}

	clipsCmd.AddCommand(newClipsListCommand(ctx))
	clipsCmd.AddCommand(newClipsSelectCommand(ctx))

	return clipsCmd
}

func newClipsListCommand(ctx *commandContext) *cobra.Command {
	var itemID int64
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Fetch the item's approved clips from the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withItem(cmd, itemID, func(runner *pipeline.Runner, item *queue.Item) error {
				result, err := runner.LoadClips(cmd.Context(), item)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, result.Clips)
				}
				out := cmd.OutOrStdout()
				if len(result.Clips) == 0 {
					fmt.Fprintln(out, "No approved clips yet")
					return nil
				}
				colorize := shouldColorize(out)
				fmt.Fprint(out, renderTable(
					[]column{col(""), col("Segment"), col("Label"), col("Range"), num("Score"), col("Polished")},
					buildClipRows(result.Clips, result.Selected, colorize),
					colorize,
				))
				if result.Unchanged {
					fmt.Fprintln(out, "Clip list unchanged since the last load")
				}
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&itemID, "item", 0, "Queue item id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print clips as JSON")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}

func buildClipRows(clips []backend.Clip, selected string, colorize bool) [][]string {
	rows := make([][]string, 0, len(clips))
	for _, clip := range clips {
		marker := ""
		if clip.SegmentID == selected {
			marker = paint("*", ansiGreen, colorize)
		}
		score := "-"
		if clip.FinalScore != nil {
			score = fmt.Sprintf("%.2f", *clip.FinalScore)
		}
		rows = append(rows, []string{
			marker,
			clip.SegmentID,
			clip.Label,
			formatClipRange(clip.StartMS, clip.EndMS),
			score,
			yesNo(clip.Polished()),
		})
	}
	return rows
}

func formatClipRange(startMS, endMS int64) string {
	start := time.Duration(startMS) * time.Millisecond
	end := time.Duration(endMS) * time.Millisecond
	return fmt.Sprintf("%s-%s", formatOffset(start), formatOffset(end))
}

func formatOffset(d time.Duration) string {
	total := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

func newClipsSelectCommand(ctx *commandContext) *cobra.Command {
	var itemID int64
	var polished bool

	cmd := &cobra.Command{
		Use:   "select <segment_id>",
		Short: "Select the clip to polish, or with --polished the rendition to upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withItem(cmd, itemID, func(runner *pipeline.Runner, item *queue.Item) error {
				out := cmd.OutOrStdout()
				if polished {
					if err := runner.SelectPolished(cmd.Context(), item, args[0]); err != nil {
						return err
					}
					fmt.Fprintf(out, "Item %d will upload %s\n", item.ID, item.PolishedPath)
					return nil
				}
				if err := runner.SelectSegment(cmd.Context(), item, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(out, "Item %d selected %s (segment index %s)\n", item.ID, item.SelectedSegmentID, item.SegmentIndex)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&itemID, "item", 0, "Queue item id")
	cmd.Flags().BoolVar(&polished, "polished", false, "Select among polished clips for upload")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}
