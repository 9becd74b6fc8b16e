package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"narrativ/internal/boards"
	"narrativ/internal/services"
	"narrativ/internal/storyplan"
	"narrativ/internal/studio"
)

func newBoardsAddSlidesCommand(ctx *commandContext) *cobra.Command {
	var count int
	var llm string
	cmd := &cobra.Command{
		Use:   "add-slides <research-id>",
		Short: "Plan more slides for a saved research board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			req := boards.MoreSlides{
				Count:       count,
				LLMProvider: firstNonEmpty(llm, cfg.LLM.Provider),
				OllamaModel: cfg.LLM.OllamaModel,
			}
			return withCacheClient(cmd.Context(), ctx, func(cache *boards.Cache, client *studio.Client) error {
				board, added, err := cache.AddResearchSlides(cmd.Context(), client, args[0], req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %d slides to %s (%d total)\n", added, board.ID, len(board.Slides))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of slides to add")
	cmd.Flags().StringVar(&llm, "llm", "", "LLM provider (gemini or ollama)")
	return cmd
}

func newBoardsEditSlideCommand(ctx *commandContext) *cobra.Command {
	var title, keyFact, visual string
	cmd := &cobra.Command{
		Use:   "edit-slide <research-id> <slide-number>",
		Short: "Change the title, key fact, or visual of one slide",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := slideNumberArg(args[1], "edit-slide")
			if err != nil {
				return err
			}
			var edit storyplan.SlideEdit
			if cmd.Flags().Changed("title") {
				edit.Title = &title
			}
			if cmd.Flags().Changed("key-fact") {
				edit.KeyFact = &keyFact
			}
			if cmd.Flags().Changed("visual") {
				edit.VisualDescription = &visual
			}
			if edit.IsZero() {
				return services.Wrap(services.ErrValidation, "boards", "edit-slide", "set at least one of --title, --key-fact, --visual", nil)
			}
			return withCache(cmd.Context(), ctx, func(cache *boards.Cache) error {
				board, err := cache.EditResearchSlide(cmd.Context(), args[0], n, edit)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated slide %d of %s\n", n, board.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New slide title")
	cmd.Flags().StringVar(&keyFact, "key-fact", "", "New key fact")
	cmd.Flags().StringVar(&visual, "visual", "", "New visual description")
	return cmd
}

func newBoardsRemoveSlideCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rm-slide <research-id> <slide-number>",
		Short: "Remove one slide from a research board and renumber the rest",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := slideNumberArg(args[1], "rm-slide")
			if err != nil {
				return err
			}
			return withCache(cmd.Context(), ctx, func(cache *boards.Cache) error {
				board, err := cache.DeleteResearchSlide(cmd.Context(), args[0], n)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed slide %d from %s (%d left)\n", n, board.ID, len(board.Slides))
				return nil
			})
		},
	}
}

func slideNumberArg(value, op string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "boards", op, "slide number must be a number", err)
	}
	return n, nil
}
