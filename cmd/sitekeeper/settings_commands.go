package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"sitekeeper/internal/daemon"
	"sitekeeper/internal/services"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "View and change per-site tool settings",
	}
	settingsCmd.AddCommand(newSettingsShowCommand(ctx))
	settingsCmd.AddCommand(newSettingsSetCommand(ctx))
	return settingsCmd
}

func newSettingsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <site-id>",
		Short: "Print the site's tool settings as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSiteID(args[0])
			if err != nil {
				return err
			}
			return ctx.withComponents(cmd, func(c *daemon.Components) error {
				current, err := c.Settings.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				return writeJSON(cmd, current)
			})
		},
	}
}

func newSettingsSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <site-id> <key>=<value>...",
		Short: "Merge settings; values are parsed as booleans when possible",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSiteID(args[0])
			if err != nil {
				return err
			}
			patch := map[string]any{}
			for _, pair := range args[1:] {
				key, value, ok := strings.Cut(pair, "=")
				key = strings.TrimSpace(key)
				if !ok || key == "" {
					return services.Wrap(services.ErrInvalidRequest, "cli", "settings set", fmt.Sprintf("%q is not key=value", pair), nil)
				}
				if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
					patch[key] = b
				} else {
					patch[key] = value
				}
			}
			return ctx.withComponents(cmd, func(c *daemon.Components) error {
				merged, err := c.Settings.Update(cmd.Context(), id, patch)
				if err != nil {
					return err
				}
				return writeJSON(cmd, merged)
			})
		},
	}
}
