package main

import (
	"strings"

	"github.com/spf13/cobra"

	"narrativ/internal/storyplan"
	"narrativ/internal/studio"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var topic, textFile, styleID, size, llm string
	var slides int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Research a topic and print the slide plan without saving it",
		RunE: func(cmd *cobra.Command, args []string) error {
			imageSize, err := storyplan.ParseImageSize(size)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			llmProvider := firstNonEmpty(llm, cfg.LLM.Provider)
			return ctx.withClient(func(client *studio.Client) error {
				selected, err := resolveStyle(cmd.Context(), client, styleID)
				if err != nil {
					return err
				}
				var plan storyplan.Plan
				if textFile != "" {
					text, err := readTextInput(textFile, cmd.InOrStdin())
					if err != nil {
						return err
					}
					plan, err = client.PlanFromText(cmd.Context(), studio.TextPlanRequest{
						Text:        text,
						Topic:       strings.TrimSpace(topic),
						NumSlides:   slides,
						Style:       selected,
						ImageSize:   imageSize,
						LLMProvider: llmProvider,
						OllamaModel: cfg.LLM.OllamaModel,
					})
					if err != nil {
						return err
					}
				} else {
					plan, err = client.PlanStory(cmd.Context(), studio.PlanRequest{
						Topic:       topic,
						NumSlides:   slides,
						Style:       selected,
						ImageSize:   imageSize,
						LLMProvider: llmProvider,
						OllamaModel: cfg.LLM.OllamaModel,
					})
					if err != nil {
						return err
					}
				}
				if jsonOutput {
					return writeJSON(cmd, plan)
				}
				printPlan(cmd.OutOrStdout(), plan, nil)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&topic, "topic", "t", "", "Topic to research")
	cmd.Flags().StringVar(&textFile, "text-file", "", "Plan from pasted text in this file (- for stdin)")
	cmd.Flags().IntVarP(&slides, "slides", "n", defaultSlideCount, "Number of slides (1-10)")
	cmd.Flags().StringVarP(&styleID, "style", "s", "", "Style id")
	cmd.Flags().StringVar(&size, "size", string(storyplan.SizeStory), "Image size: story or square")
	cmd.Flags().StringVar(&llm, "llm", "", "LLM provider (gemini or ollama)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the plan as JSON")
	return cmd
}
