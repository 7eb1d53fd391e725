package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStreamCommand(ctx *commandContext) *cobra.Command {
	streamCmd := &cobra.Command{
		Use:   "stream",
		Short: "Control live-stream capture on the media server",
	}

	streamCmd.AddCommand(newStreamStartCommand(ctx))
	streamCmd.AddCommand(newStreamStopCommand(ctx))
	streamCmd.AddCommand(newStreamClipCommand(ctx))
	streamCmd.AddCommand(newStreamFramesCommand(ctx))

	return streamCmd
}

func newStreamStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start <url>",
		Short: "Start capturing a live channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.backendClient(cmd)
			if err != nil {
				return err
			}
			resp, err := client.StartStream(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if resp.Fallback {
				fmt.Fprintf(out, "Stream offline; capturing latest VOD %s\n", resp.VODURL)
				return nil
			}
			msg := resp.Message
			if msg == "" {
				msg = "Stream capture started"
			}
			fmt.Fprintln(out, msg)
			return nil
		},
	}
}

func newStreamStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop live capture",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.backendClient(cmd)
			if err != nil {
				return err
			}
			if err := client.StopStream(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Stream capture stopped")
			return nil
		},
	}
}

func newStreamClipCommand(ctx *commandContext) *cobra.Command {
	var duration int
	cmd := &cobra.Command{
		Use:   "clip",
		Short: "Cut the last --duration seconds of the live capture",
		RunE: func(cmd *cobra.Command, args []string) error {
			if duration <= 0 {
				return fmt.Errorf("--duration must be positive")
			}
			client, err := ctx.backendClient(cmd)
			if err != nil {
				return err
			}
			resp, err := client.ManualClip(cmd.Context(), duration)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if loc := resp.Location(); loc != "" {
				fmt.Fprintf(out, "Clip saved: %s\n", loc)
			} else {
				fmt.Fprintln(out, "Clip requested")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&duration, "duration", 30, "Clip length in seconds")
	return cmd
}

func newStreamFramesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "frames",
		Short: "Extract frames from the live capture",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.backendClient(cmd)
			if err != nil {
				return err
			}
			if err := client.ExtractLiveFrames(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Frame extraction started")
			return nil
		},
	}
}
