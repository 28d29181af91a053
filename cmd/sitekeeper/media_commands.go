package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sitekeeper/internal/daemon"
	"sitekeeper/internal/media"
)

func newMediaCommand(ctx *commandContext) *cobra.Command {
	mediaCmd := &cobra.Command{
		Use:   "media",
		Short: "Inspect a site's media library",
	}
	mediaCmd.AddCommand(newMediaStatsCommand(ctx))
	mediaCmd.AddCommand(newMediaListCommand(ctx))
	mediaCmd.AddCommand(newMediaNonWebPCommand(ctx))
	mediaCmd.AddCommand(newMediaOptimizeCommand(ctx))
	return mediaCmd
}

func newMediaStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats <site-id>",
		Short: "Show image counts by format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSiteID(args[0])
			if err != nil {
				return err
			}
			return ctx.withComponents(cmd, func(c *daemon.Components) error {
				stats, err := c.Media.Stats(cmd.Context(), id)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, stats)
				}
				out := cmd.OutOrStdout()
				printLines(out, renderSectionHeader("media stats", shouldColorize(out))...)
				fmt.Fprintln(out, renderTable(
					[]string{"Total", "WebP", "Non-WebP"},
					[][]string{{fmt.Sprint(stats.Total), fmt.Sprint(stats.WebP), fmt.Sprint(stats.NonWebP)}},
					[]columnAlignment{alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newMediaListCommand(ctx *commandContext) *cobra.Command {
	var perPage int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list <site-id>",
		Short: "List images in the media library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSiteID(args[0])
			if err != nil {
				return err
			}
			return ctx.withComponents(cmd, func(c *daemon.Components) error {
				items, err := c.Media.List(cmd.Context(), id, perPage)
				if err != nil {
					return err
				}
				return printItems(cmd, items, asJSON)
			})
		},
	}
	cmd.Flags().IntVar(&perPage, "per-page", 0, "Number of images to fetch (0 uses the configured default)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newMediaNonWebPCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "non-webp <site-id>",
		Short: "List images not yet converted to WebP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSiteID(args[0])
			if err != nil {
				return err
			}
			return ctx.withComponents(cmd, func(c *daemon.Components) error {
				items, err := c.Media.NonWebP(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printItems(cmd, items, asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newMediaOptimizeCommand(ctx *commandContext) *cobra.Command {
	var opts media.OptimizeOptions
	cmd := &cobra.Command{
		Use:   "optimize <site-id> <media-id>",
		Short: "Generate an SEO filename and alt text for one image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSiteID(args[0])
			if err != nil {
				return err
			}
			return ctx.withComponents(cmd, func(c *daemon.Components) error {
				ack, err := c.Media.AIOptimize(cmd.Context(), id, args[1], opts)
				if err != nil {
					return err
				}
				return writeRawJSON(cmd, ack)
			})
		},
	}
	cmd.Flags().BoolVar(&opts.ApplyFilename, "apply-filename", false, "Rename the file on the site")
	cmd.Flags().BoolVar(&opts.ApplyAltText, "apply-alt", false, "Write the generated alt text on the site")
	cmd.Flags().StringVar(&opts.PageContext, "context", "", "Page text describing where the image is used")
	cmd.Flags().StringVar(&opts.Language, "lang", media.DefaultLanguage, "BCP 47 language tag for generated text")
	return cmd
}

func printItems(cmd *cobra.Command, items []media.Item, asJSON bool) error {
	if asJSON {
		return writeJSON(cmd, items)
	}
	out := cmd.OutOrStdout()
	if len(items) == 0 {
		fmt.Fprintln(out, "No images")
		return nil
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{item.ID, item.Title, item.MimeType, dashIfEmpty(item.Alt), item.URL})
	}
	fmt.Fprintln(out, renderTable([]string{"ID", "Title", "Type", "Alt", "URL"}, rows, []columnAlignment{alignRight}))
	return nil
}
