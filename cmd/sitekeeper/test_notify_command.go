package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sitekeeper/internal/daemon"
	"sitekeeper/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withComponents(cmd, func(c *daemon.Components) error {
				out := cmd.OutOrStdout()
				if strings.TrimSpace(c.Config.Notifications.NtfyTopic) == "" {
					fmt.Fprintln(out, "Notifications disabled (notifications.ntfy_topic is empty)")
					return nil
				}
				if err := c.Notifier.Publish(cmd.Context(), notifications.EventTest, nil); err != nil {
					return err
				}
				fmt.Fprintln(out, "Test notification sent")
				return nil
			})
		},
	}
}
