package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vodpipe/internal/api"
	"vodpipe/internal/pipeline"
	"vodpipe/internal/queue"
)

func newStageCommand(ctx *commandContext) *cobra.Command {
	stageCmd := &cobra.Command{
		Use:   "stage",
		Short: "Run and inspect pipeline stages for one item",
	}

	stageCmd.AddCommand(newStageRunCommand(ctx))
	stageCmd.AddCommand(newStageListCommand(ctx))

	return stageCmd
}

func newStageRunCommand(ctx *commandContext) *cobra.Command {
	var itemID int64
	var force bool

	cmd := &cobra.Command{
		Use:   "run <stage>",
		Short: "Run one stage in this process and record the outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stageKey, err := pipeline.ParseStage(args[0])
			if err != nil {
				return err
			}
			return ctx.withItem(cmd, itemID, func(runner *pipeline.Runner, item *queue.Item) error {
				if err := pipeline.CheckManualRun(item); err != nil {
					return err
				}
				run, err := runner.Run(cmd.Context(), item, stageKey, pipeline.WithForce(force))
				if err != nil {
					return fmt.Errorf("%s: %w", pipeline.Label(stageKey), err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s %s\n", pipeline.Label(stageKey), stageBadge(run.Status, shouldColorize(out)))
				if run.Output != "" {
					fmt.Fprintln(out, run.Output)
				}
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&itemID, "item", 0, "Queue item id")
	cmd.Flags().BoolVar(&force, "force", false, "Re-polish clips that already have a polished rendition")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}

func newStageListCommand(ctx *commandContext) *cobra.Command {
	var itemID int64
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stage statuses for one item",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				item, err := loadItem(cmd.Context(), store, itemID)
				if err != nil {
					return err
				}
				runs, err := store.StageRuns(cmd.Context(), item.ID)
				if err != nil {
					return err
				}
				views := api.FromStageRuns(runs)
				if asJSON {
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(runs))
				for i, run := range runs {
					finished := "-"
					if views[i].FinishedAt != "" {
						finished = views[i].FinishedAt
					}
					rows = append(rows, []string{
						views[i].Label,
						views[i].Lane,
						stageBadge(run.Status, colorize),
						fmt.Sprintf("%d", run.Attempts),
						finished,
					})
				}
				fmt.Fprint(out, renderTable(
					[]column{col("Stage"), col("Lane"), col("Status"), num("Runs"), col("Finished")},
					rows,
					colorize,
				))
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&itemID, "item", 0, "Queue item id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print stage runs as JSON")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}
