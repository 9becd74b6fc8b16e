package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"narrativ/internal/orchestrator"
	"narrativ/internal/storyplan"
)

type createFlags struct {
	topic        string
	textFile     string
	slides       int
	styleID      string
	size         string
	selection    string
	more         int
	provider     string
	llm          string
	hfQuality    string
	brandID      string
	researchOnly bool
	jsonOutput   bool
}

func newCreateCommand(ctx *commandContext) *cobra.Command {
	var flags createFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Research a topic (or pasted text) and render it as story slides",
		Example: `  narrativ create --topic "Octopus intelligence" --slides 6 --style photorealistic
  narrativ create --text-file notes.md --select 1,3-4 --provider fal
  narrativ create --topic "Roman roads" --research-only`,
		RunE: func(cmd *cobra.Command, args []string) error {
			selection, err := parseSelection(flags.selection)
			if err != nil {
				return err
			}
			size, err := storyplan.ParseImageSize(flags.size)
			if err != nil {
				return err
			}
			in := orchestrator.Input{
				Mode:      orchestrator.ModeTopic,
				Topic:     strings.TrimSpace(flags.topic),
				NumSlides: flags.slides,
				ImageSize: size,
			}
			if flags.textFile != "" {
				text, err := readTextInput(flags.textFile, cmd.InOrStdin())
				if err != nil {
					return err
				}
				in.Mode = orchestrator.ModeText
				in.Text = text
			}

			sess, err := ctx.newSession(cmd.Context(), sessionOptions{
				LLMProvider:   flags.llm,
				ImageProvider: flags.provider,
				HFQualityMode: flags.hfQuality,
				BrandID:       flags.brandID,
			})
			if err != nil {
				return err
			}
			defer sess.Close()

			in.Style, err = resolveStyle(cmd.Context(), sess.client, flags.styleID)
			if err != nil {
				return err
			}
			return runCreate(cmd, sess, in, selection, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.topic, "topic", "t", "", "Topic to research")
	cmd.Flags().StringVar(&flags.textFile, "text-file", "", "Plan from pasted text in this file (- for stdin)")
	cmd.Flags().IntVarP(&flags.slides, "slides", "n", defaultSlideCount, "Number of slides (1-10)")
	cmd.Flags().StringVarP(&flags.styleID, "style", "s", "", "Style id (see `narrativ styles list`)")
	cmd.Flags().StringVar(&flags.size, "size", string(storyplan.SizeStory), "Image size: story or square")
	cmd.Flags().StringVar(&flags.selection, "select", "", "Slides to render, e.g. 1,3-4 (default all)")
	cmd.Flags().IntVar(&flags.more, "more", 0, "Ask for this many extra slides before rendering")
	cmd.Flags().StringVar(&flags.provider, "provider", "", "Image provider (gemini-flash, gemini-pro, fal, huggingface)")
	cmd.Flags().StringVar(&flags.llm, "llm", "", "LLM provider (gemini or ollama)")
	cmd.Flags().StringVar(&flags.hfQuality, "hf-quality", "", "Hugging Face quality mode (fast or quality)")
	cmd.Flags().StringVar(&flags.brandID, "brand", "", "Brand id recorded on the image board")
	cmd.Flags().BoolVar(&flags.researchOnly, "research-only", false, "Save the research board without rendering images")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Print the resulting boards as JSON")
	cmd.MarkFlagsMutuallyExclusive("research-only", "select")

	return cmd
}

func runCreate(cmd *cobra.Command, sess *session, in orchestrator.Input, selection []int, flags createFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	stop := sess.watch(cmd.ErrOrStderr())
	defer stop()

	if err := sess.orch.Submit(ctx, in); err != nil {
		return err
	}
	if flags.more > 0 {
		added, err := sess.orch.MoreSlides(ctx, flags.more)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Added %d slide(s)\n", added)
	}
	if len(selection) > 0 {
		if err := sess.orch.SelectOnly(selection...); err != nil {
			return err
		}
	}

	if review, ok := sess.orch.State().(orchestrator.Reviewing); ok && !flags.jsonOutput {
		printPlan(out, review.Review.Plan(), review.Review.IsSelected)
	}

	if flags.researchOnly {
		board, err := sess.orch.SaveResearchOnly(ctx)
		stop()
		if err != nil {
			return err
		}
		if flags.jsonOutput {
			return writeJSON(cmd, board)
		}
		fmt.Fprintf(out, "Research saved as %s\n", board.ID)
		return nil
	}

	result, err := sess.orch.Confirm(ctx)
	stop()
	if err != nil {
		if result != nil && result.Research != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Research saved as %s\n", result.Research.ID)
		}
		return err
	}
	return printResult(cmd, out, result, flags.jsonOutput)
}

func printResult(cmd *cobra.Command, out io.Writer, result *orchestrator.Result, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(cmd, result)
	}
	if result.Research != nil {
		fmt.Fprintf(out, "Research board: %s\n", result.Research.ID)
	}
	if result.Images == nil {
		return nil
	}
	fmt.Fprintf(out, "Image board:    %s\n", result.Images.ID)
	rows := make([][]string, 0, len(result.Images.Images))
	for i, url := range result.Images.Images {
		title := ""
		number := ""
		if i < len(result.Images.Slides) {
			title = truncate(result.Images.Slides[i].Title, 40)
			number = fmt.Sprint(result.Images.Slides[i].SlideNumber)
		}
		rows = append(rows, []string{number, title, url})
	}
	printTable(out, []string{"#", "Title", "Image"}, rows, []columnAlignment{alignRight})
	return nil
}
