package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"narrativ/internal/studio"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the narrativd log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *studio.Client) error {
				out := cmd.OutOrStdout()
				resp, err := client.Logs(cmd.Context(), studio.LogQuery{Offset: -1, Lines: lines})
				if err != nil {
					return err
				}
				for _, line := range resp.Lines {
					fmt.Fprintln(out, line)
				}
				if !follow {
					return nil
				}

				offset := resp.Offset
				for {
					resp, err := client.Logs(cmd.Context(), studio.LogQuery{Offset: offset, Follow: true})
					if err != nil {
						if errors.Is(cmd.Context().Err(), context.Canceled) {
							return nil
						}
						return err
					}
					for _, line := range resp.Lines {
						fmt.Fprintln(out, line)
					}
					offset = resp.Offset
				}
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	return cmd
}
