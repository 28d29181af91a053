package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sitekeeper/internal/logging"
	"sitekeeper/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var match string
	var siteID int64
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := logging.FilePath(cfg)
			if path == "" {
				return fmt.Errorf("file logging is disabled (paths.log_dir is empty)")
			}
			if siteID > 0 && match == "" {
				match = siteFilter(cfg.Logging.Format, siteID)
			}

			out := cmd.OutOrStdout()
			q := logs.Query{Offset: -1, Limit: lines, Match: match}
			for {
				page, err := logs.Read(cmd.Context(), path, q)
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}
				for _, line := range page.Lines {
					fmt.Fprintln(out, line)
				}
				if !follow {
					return nil
				}
				q = logs.Query{Offset: page.Offset, Match: match, Wait: 5 * time.Second}
			}
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().StringVar(&match, "match", "", "Only show lines containing this text")
	cmd.Flags().Int64Var(&siteID, "site", 0, "Only show lines for this site id")
	return cmd
}

func siteFilter(format string, siteID int64) string {
	if format == "json" {
		return fmt.Sprintf("\"%s\":%d", logging.FieldSiteID, siteID)
	}
	return fmt.Sprintf("%s=%d", logging.FieldSiteID, siteID)
}
