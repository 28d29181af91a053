package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sitekeeper/internal/daemon"
)

func newRedirectsCommand(ctx *commandContext) *cobra.Command {
	redirectsCmd := &cobra.Command{
		Use:   "redirects",
		Short: "Inspect or clear old-URL redirects left by conversions",
	}
	redirectsCmd.AddCommand(newRedirectsListCommand(ctx))
	redirectsCmd.AddCommand(newRedirectsClearCommand(ctx))
	return redirectsCmd
}

func newRedirectsListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list <site-id>",
		Short: "List redirects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSiteID(args[0])
			if err != nil {
				return err
			}
			return ctx.withComponents(cmd, func(c *daemon.Components) error {
				listing, err := c.Redirects.List(cmd.Context(), id)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, listing)
				}
				out := cmd.OutOrStdout()
				if listing.Count == 0 {
					fmt.Fprintln(out, "No redirects")
					return nil
				}
				rows := make([][]string, 0, listing.Count)
				for _, from := range listing.Sources() {
					rows = append(rows, []string{from, listing.Redirects[from]})
				}
				fmt.Fprintln(out, renderTable([]string{"From", "To"}, rows, nil))
				fmt.Fprintf(out, "%d redirect(s)\n", listing.Count)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newRedirectsClearCommand(ctx *commandContext) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear <site-id>",
		Short: "Drop all redirects (converted images are not reverted)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSiteID(args[0])
			if err != nil {
				return err
			}
			if !yes {
				return fmt.Errorf("clearing redirects breaks links to the original image URLs; rerun with --yes to confirm")
			}
			return ctx.withComponents(cmd, func(c *daemon.Components) error {
				ack, err := c.Redirects.Clear(cmd.Context(), id)
				if err != nil {
					return err
				}
				return writeRawJSON(cmd, ack)
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm clearing")
	return cmd
}
