package main

import (
	"github.com/spf13/cobra"

	"narrativ/internal/style"
)

func newRegenerateCommand(ctx *commandContext) *cobra.Command {
	var styleID, provider, hfQuality, brandID string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "regenerate <research-id>",
		Short: "Render images again from a saved research board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := ctx.newSession(cmd.Context(), sessionOptions{
				ImageProvider: provider,
				HFQualityMode: hfQuality,
				BrandID:       brandID,
			})
			if err != nil {
				return err
			}
			defer sess.Close()

			var selected *style.Style
			if styleID != "" {
				st, err := resolveStyle(cmd.Context(), sess.client, styleID)
				if err != nil {
					return err
				}
				selected = &st
			}

			stop := sess.watch(cmd.ErrOrStderr())
			result, err := sess.orch.Regenerate(cmd.Context(), args[0], selected)
			stop()
			if err != nil {
				return err
			}
			return printResult(cmd, cmd.OutOrStdout(), result, jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&styleID, "style", "s", "", "Render with this style instead of the board's")
	cmd.Flags().StringVar(&provider, "provider", "", "Image provider (gemini-flash, gemini-pro, fal, huggingface)")
	cmd.Flags().StringVar(&hfQuality, "hf-quality", "", "Hugging Face quality mode (fast or quality)")
	cmd.Flags().StringVar(&brandID, "brand", "", "Brand id recorded on the image board")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the resulting boards as JSON")
	return cmd
}
