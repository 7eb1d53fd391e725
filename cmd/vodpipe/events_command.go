package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vodpipe/internal/api"
	"vodpipe/internal/apiclient"
	"vodpipe/internal/events"
	"vodpipe/internal/queue"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print backend socket events",
		Long: "Without --follow, print the most recent events the daemon persisted. " +
			"With --follow, connect to the backend socket directly and print events as they arrive.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if follow {
				return followSocketEvents(cmd, ctx)
			}
			return printRecentEvents(cmd, ctx, limit)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream events from the backend socket until interrupted")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Number of persisted events to print")
	return cmd
}

func printRecentEvents(cmd *cobra.Command, ctx *commandContext, limit int) error {
	client, err := ctx.apiClient()
	if err != nil {
		return err
	}
	recent, err := client.Events(cmd.Context(), limit)
	if apiclient.IsUnavailable(err) {
		err = ctx.withStore(func(store *queue.Store) error {
			stored, storeErr := store.RecentEvents(cmd.Context(), limit)
			recent = api.FromBackendEvents(stored)
			return storeErr
		})
	}
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(recent) == 0 {
		fmt.Fprintln(out, "No backend events recorded")
		return nil
	}
	for _, evt := range recent {
		printEvent(out, api.ParseQueueTime(evt.ReceivedAt), events.Event{Name: evt.Name, Payload: []byte(evt.Payload)})
	}
	return nil
}

func followSocketEvents(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	hub := events.NewHub(cfg.Events.BufferSize)
	defer hub.Close()
	ch := make(chan events.Event, max(cfg.Events.BufferSize, 1))
	if err := hub.Subscribe("cli", ch); err != nil {
		return err
	}
	listener, err := events.NewListenerFromConfig(cfg, hub, ctx.cliLogger(cmd))
	if err != nil {
		return err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = listener.Run(runCtx)
	}()

	out := cmd.OutOrStdout()
	for {
		select {
		case <-runCtx.Done():
			<-done
			if cmd.Context().Err() != nil {
				return context.Canceled
			}
			return nil
		case evt := <-ch:
			printEvent(out, evt.ReceivedAt, evt)
		}
	}
}

func printEvent(out io.Writer, when time.Time, evt events.Event) {
	stamp := "--:--:--"
	if !when.IsZero() {
		stamp = when.Local().Format("15:04:05")
	}
	fmt.Fprintf(out, "%s %s\n", stamp, evt.Summary())
}
