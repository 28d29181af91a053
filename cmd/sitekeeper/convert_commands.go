package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"sitekeeper/internal/conversion"
	"sitekeeper/internal/daemon"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	convertCmd := &cobra.Command{
		Use:   "convert",
		Short: "Queue, monitor, and revert WebP conversions",
	}
	convertCmd.AddCommand(newConvertEnqueueCommand(ctx))
	convertCmd.AddCommand(newConvertStatusCommand(ctx))
	convertCmd.AddCommand(newConvertWaitCommand(ctx))
	convertCmd.AddCommand(newConvertRevertCommand(ctx))
	return convertCmd
}

func newConvertEnqueueCommand(ctx *commandContext) *cobra.Command {
	var keepBackups, flushCache, replaceURLs bool
	cmd := &cobra.Command{
		Use:   "enqueue <site-id> <media-id>...",
		Short: "Queue images for WebP conversion",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSiteID(args[0])
			if err != nil {
				return err
			}
			opts := conversion.Options{
				KeepBackups: &keepBackups,
				FlushCache:  &flushCache,
				ReplaceURLs: &replaceURLs,
			}
			return ctx.withComponents(cmd, func(c *daemon.Components) error {
				ack, err := c.Coordinator.Enqueue(cmd.Context(), id, args[1:], opts)
				if err != nil {
					return err
				}
				return writeRawJSON(cmd, ack)
			})
		},
	}
	cmd.Flags().BoolVar(&keepBackups, "keep-backups", true, "Keep the original files on the site")
	cmd.Flags().BoolVar(&flushCache, "flush-cache", true, "Flush page caches after conversion")
	cmd.Flags().BoolVar(&replaceURLs, "replace-urls", true, "Rewrite content URLs to the WebP files")
	return cmd
}

func newConvertStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status <site-id>",
		Short: "Show the connector's conversion queue counters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSiteID(args[0])
			if err != nil {
				return err
			}
			return ctx.withComponents(cmd, func(c *daemon.Components) error {
				status, err := c.Coordinator.Status(cmd.Context(), id)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, status)
				}
				printQueueStatus(cmd.OutOrStdout(), status)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newConvertWaitCommand(ctx *commandContext) *cobra.Command {
	var asJSON, quiet bool
	cmd := &cobra.Command{
		Use:   "wait <site-id>",
		Short: "Poll until the conversion queue is idle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSiteID(args[0])
			if err != nil {
				return err
			}
			return ctx.withComponents(cmd, func(c *daemon.Components) error {
				waitCtx := cmd.Context()
				if timeout := c.Config.Polling.Timeout(); timeout > 0 {
					var cancel context.CancelFunc
					waitCtx, cancel = context.WithTimeout(waitCtx, timeout)
					defer cancel()
				}
				out := cmd.OutOrStdout()
				opts := conversion.WaitOptions{
					InitialInterval: c.Config.Polling.InitialInterval(),
					MaxInterval:     c.Config.Polling.MaxInterval(),
				}
				if !asJSON && !quiet {
					opts.OnStatus = func(s conversion.Status) {
						fmt.Fprintf(out, "%d/%d done (%d failed, %d pending)\n", s.Completed+s.Failed, s.Total, s.Failed, s.Pending)
					}
				}
				final, err := c.Coordinator.Wait(waitCtx, id, opts)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, final)
				}
				printQueueStatus(out, final)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the final status as JSON")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress lines")
	return cmd
}

func newConvertRevertCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "revert <site-id> <media-id>",
		Short: "Restore one image to its original format",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSiteID(args[0])
			if err != nil {
				return err
			}
			return ctx.withComponents(cmd, func(c *daemon.Components) error {
				result, err := c.Coordinator.Revert(cmd.Context(), id, args[1])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, result)
				}
				kind := statusOK
				if !result.Success {
					kind = statusError
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderStatusLine("Revert "+args[1], kind, result.Message, shouldColorize(out)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func printQueueStatus(out io.Writer, s conversion.Status) {
	colorize := shouldColorize(out)
	printLines(out, renderSectionHeader("conversion queue", colorize)...)
	kind := statusOK
	state := "Idle"
	if s.IsProcessing {
		kind = statusInfo
		state = "Processing"
	}
	fmt.Fprintln(out, renderStatusLine("State", kind, state, colorize))
	fmt.Fprintln(out, renderTable(
		[]string{"Pending", "Completed", "Failed", "Total"},
		[][]string{{fmt.Sprint(s.Pending), fmt.Sprint(s.Completed), fmt.Sprint(s.Failed), fmt.Sprint(s.Total)}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight},
	))
}
