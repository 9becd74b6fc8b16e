package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"narrativ/internal/retention"
)

func newStoriesCommand(ctx *commandContext) *cobra.Command {
	storiesCmd := &cobra.Command{
		Use:   "stories",
		Short: "Inspect rendered story folders in the local output directory",
	}

	var jsonOutput bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List rendered story folders, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			stories, err := retention.ListStories(cfg.Paths.OutputDir)
			if err != nil {
				return fmt.Errorf("list stories: %w", err)
			}
			if jsonOutput {
				if stories == nil {
					stories = []retention.Story{}
				}
				return writeJSON(cmd, stories)
			}
			if len(stories) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No stories in %s\n", cfg.Paths.OutputDir)
				return nil
			}
			rows := make([][]string, 0, len(stories))
			for _, st := range stories {
				rows = append(rows, []string{
					st.Name,
					fmt.Sprintf("%d", st.Images),
					formatBytes(st.Size),
					st.ModTime.Local().Format("2006-01-02 15:04"),
				})
			}
			printTable(cmd.OutOrStdout(), []string{"Folder", "Images", "Size", "Modified"}, rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft})
			return nil
		},
	}
	list.Flags().BoolVar(&jsonOutput, "json", false, "Print stories as JSON")

	var olderThan time.Duration
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete story folders older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			maxAge := olderThan
			if maxAge == 0 {
				maxAge = cfg.OutputRetention()
			}
			if maxAge <= 0 {
				return errors.New("set --older-than or images.retention_days")
			}
			result := retention.Prune(cmd.Context(), cfg.Paths.OutputDir, maxAge, ctx.log())
			for _, removed := range result.Removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", removed)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d story folder(s)\n", len(result.Removed))
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d folder(s) could not be removed; first: %s: %w",
					len(result.Errors), result.Errors[0].Path, result.Errors[0].Error)
			}
			return nil
		},
	}
	prune.Flags().DurationVar(&olderThan, "older-than", 0, "Age cutoff such as 720h (defaults to images.retention_days)")

	storiesCmd.AddCommand(list, prune)
	return storiesCmd
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
