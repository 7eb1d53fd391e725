package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vodpipe/internal/daemonrun"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the vodpipe daemon in the foreground",
		Long:  "Run the workflow manager, backend event listener and HTTP API until interrupted with SIGINT or SIGTERM.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel: logLevel,
				Ready: func(addr string) {
					if addr != "" {
						fmt.Fprintf(cmd.ErrOrStderr(), "vodpipe daemon listening on %s\n", addr)
					}
				},
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	return cmd
}
