package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sitekeeper/internal/daemon"
	"sitekeeper/internal/preflight"
)

type statusReport struct {
	Checks []preflight.Result    `json:"checks"`
	Sites  []preflight.SiteProbe `json:"sites"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON, offline bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check local readiness and connector reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withComponents(cmd, func(c *daemon.Components) error {
				report := statusReport{Checks: preflight.RunAll(cmd.Context(), c.Config)}
				list, err := c.Sites.List(cmd.Context())
				if err != nil {
					return err
				}
				for _, site := range list {
					if offline {
						continue
					}
					report.Sites = append(report.Sites, preflight.CheckSite(cmd.Context(), c.Client, site))
				}
				if asJSON {
					return writeJSON(cmd, report)
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				printLines(out, renderSectionHeader("system", colorize)...)
				for _, check := range report.Checks {
					kind := statusOK
					if !check.Passed {
						kind = statusWarn
					}
					fmt.Fprintln(out, renderStatusLine(check.Name, kind, check.Detail, colorize))
				}
				fmt.Fprintln(out)
				printLines(out, renderSectionHeader(fmt.Sprintf("sites (%d)", len(list)), colorize)...)
				if offline {
					fmt.Fprintln(out, renderStatusLine("Connectors", statusInfo, "skipped (--offline)", colorize))
				}
				for _, probe := range report.Sites {
					kind := statusOK
					switch {
					case !probe.Connected:
						kind = statusWarn
					case !probe.Reachable:
						kind = statusError
					}
					fmt.Fprintln(out, renderStatusLine(probe.Name, kind, probe.Detail, colorize))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip connector reachability probes")
	return cmd
}
