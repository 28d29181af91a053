package main

import (
	"github.com/spf13/cobra"

	"sitekeeper/internal/daemon"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemon.Run(cmd.Context(), cfg, daemon.RunOptions{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in logs")
	return cmd
}
