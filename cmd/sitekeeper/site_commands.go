package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sitekeeper/internal/api"
	"sitekeeper/internal/daemon"
	"sitekeeper/internal/sites"
)

func newSiteCommand(ctx *commandContext) *cobra.Command {
	siteCmd := &cobra.Command{
		Use:   "site",
		Short: "Register sites and manage connector credentials",
	}
	siteCmd.AddCommand(newSiteAddCommand(ctx))
	siteCmd.AddCommand(newSiteListCommand(ctx))
	siteCmd.AddCommand(newSiteShowCommand(ctx))
	siteCmd.AddCommand(newSiteConnectCommand(ctx))
	siteCmd.AddCommand(newSiteDisconnectCommand(ctx))
	siteCmd.AddCommand(newSiteVersionsCommand(ctx))
	siteCmd.AddCommand(newSiteRemoveCommand(ctx))
	return siteCmd
}

func newSiteAddCommand(ctx *commandContext) *cobra.Command {
	var name string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "add <base-url>",
		Short: "Register a site and issue connector credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withComponents(cmd, func(c *daemon.Components) error {
				site, creds, err := c.Sites.Register(cmd.Context(), name, args[0])
				if err != nil {
					return err
				}
				return printCredentials(cmd, site, creds, asJSON)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name (defaults to the host)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newSiteListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered sites",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withComponents(cmd, func(c *daemon.Components) error {
				list, err := c.Sites.List(cmd.Context())
				if err != nil {
					return err
				}
				views := make([]api.SiteView, 0, len(list))
				for _, site := range list {
					views = append(views, api.FromSite(site))
				}
				if asJSON {
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(views) == 0 {
					fmt.Fprintln(out, "No sites registered")
					return nil
				}
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					rows = append(rows, []string{
						fmt.Sprintf("%d", v.ID),
						v.Name,
						v.BaseURL,
						yesNo(v.Connected),
						dashIfEmpty(v.PluginVersion),
						dashIfEmpty(v.AgentVersion),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Name", "Base URL", "Connected", "Plugin", "Agent"},
					rows,
					[]columnAlignment{alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newSiteShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <site-id>",
		Short: "Show one site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSiteID(args[0])
			if err != nil {
				return err
			}
			return ctx.withComponents(cmd, func(c *daemon.Components) error {
				site, err := c.Sites.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printSite(cmd, site, asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newSiteConnectCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "connect <site-id>",
		Short: "Issue fresh connector credentials (previous ones stop working)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSiteID(args[0])
			if err != nil {
				return err
			}
			return ctx.withComponents(cmd, func(c *daemon.Components) error {
				site, creds, err := c.Sites.Connect(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printCredentials(cmd, site, creds, asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newSiteDisconnectCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "disconnect <site-id>",
		Short: "Forget connector credentials for a site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSiteID(args[0])
			if err != nil {
				return err
			}
			return ctx.withComponents(cmd, func(c *daemon.Components) error {
				site, err := c.Sites.Disconnect(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printSite(cmd, site, asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newSiteVersionsCommand(ctx *commandContext) *cobra.Command {
	var plugin, agentVersion string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "set-versions <site-id>",
		Short: "Record the connector plugin and agent versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSiteID(args[0])
			if err != nil {
				return err
			}
			return ctx.withComponents(cmd, func(c *daemon.Components) error {
				site, err := c.Sites.RecordVersions(cmd.Context(), id, plugin, agentVersion)
				if err != nil {
					return err
				}
				return printSite(cmd, site, asJSON)
			})
		},
	}
	cmd.Flags().StringVar(&plugin, "plugin", "", "Plugin version")
	cmd.Flags().StringVar(&agentVersion, "agent", "", "Agent version")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newSiteRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <site-id>",
		Short: "Delete a site and its settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSiteID(args[0])
			if err != nil {
				return err
			}
			return ctx.withComponents(cmd, func(c *daemon.Components) error {
				if err := c.Sites.Remove(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed site %d\n", id)
				return nil
			})
		},
	}
}

func printSite(cmd *cobra.Command, site *sites.Site, asJSON bool) error {
	view := api.FromSite(site)
	if asJSON {
		return writeJSON(cmd, view)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Site %d: %s\n", view.ID, view.Name)
	fmt.Fprintf(out, "  Base URL:   %s\n", view.BaseURL)
	fmt.Fprintf(out, "  Connected:  %s\n", yesNo(view.Connected))
	fmt.Fprintf(out, "  Plugin:     %s\n", dashIfEmpty(view.PluginVersion))
	fmt.Fprintf(out, "  Agent:      %s\n", dashIfEmpty(view.AgentVersion))
	fmt.Fprintf(out, "  Updated:    %s\n", view.UpdatedAt)
	return nil
}

func printCredentials(cmd *cobra.Command, site *sites.Site, creds sites.Credentials, asJSON bool) error {
	if asJSON {
		return writeJSON(cmd, api.SiteCredentialsResponse{Site: api.FromSite(site), Credentials: creds})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Site %d (%s) connected\n", site.ID, site.Name)
	fmt.Fprintf(out, "  Key:    %s\n", creds.Key)
	fmt.Fprintf(out, "  Secret: %s\n", creds.Secret)
	fmt.Fprintln(out, "Paste both into the connector plugin settings. The secret is not shown again.")
	return nil
}

func dashIfEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
