package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"narrativ/internal/api"
	"narrativ/internal/notifications"
	"narrativ/internal/preflight"
	"narrativ/internal/studio"
	"narrativ/internal/style"
)

func newProvidersCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Show which LLM and image providers the daemon can use",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *studio.Client) error {
				status, err := client.CheckProviders(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, status)
				}
				out := cmd.OutOrStdout()
				printTable(out, []string{"Capability", "Provider", "Available", "Detail"}, providerRows(status, colorEnabled(out)), nil)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print provider status as JSON")
	return cmd
}

func providerRows(status api.ProviderStatus, color bool) [][]string {
	row := func(capability, provider string, a api.Availability) []string {
		return []string{capability, provider, availabilityLabel(a.Available, color), a.Message}
	}
	return [][]string{
		row("llm", "gemini", status.LLM.Gemini),
		row("llm", "ollama", status.LLM.Ollama),
		row("vision", "gemini", status.Vision.Gemini),
		row("vision", "ollama", status.Vision.Ollama),
		row("image", "gemini", status.Image.Gemini),
		row("image", "fal", status.Image.Fal),
		row("image", "huggingface", status.Image.HuggingFace),
	}
}

func newStylesCommand(ctx *commandContext) *cobra.Command {
	stylesCmd := &cobra.Command{
		Use:   "styles",
		Short: "List and save visual styles",
	}

	var jsonOutput bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List predefined and custom styles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *studio.Client) error {
				styles, err := client.Styles(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.StylesResponse{Styles: styles})
				}
				rows := make([][]string, 0, len(styles))
				for _, st := range styles {
					rows = append(rows, []string{st.ID, st.Name, yesNo(st.Custom), truncate(st.ArtStyle, 50)})
				}
				printTable(cmd.OutOrStdout(), []string{"ID", "Name", "Custom", "Art style"}, rows, nil)
				return nil
			})
		},
	}
	list.Flags().BoolVar(&jsonOutput, "json", false, "Print styles as JSON")
	stylesCmd.AddCommand(list)
	stylesCmd.AddCommand(newStylesAddCommand(ctx))
	stylesCmd.AddCommand(newStylesExtractCommand(ctx))
	stylesCmd.AddCommand(newStylesRemoveCommand(ctx))
	return stylesCmd
}

func newStylesAddCommand(ctx *commandContext) *cobra.Command {
	var st style.Style
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Save a custom style on the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *studio.Client) error {
				saved, err := client.SaveStyle(cmd.Context(), st)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved style %s (%s)\n", saved.Name, saved.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&st.Name, "name", "", "Style name")
	cmd.Flags().StringVar(&st.ArtStyle, "art-style", "", "Art style")
	cmd.Flags().StringVar(&st.ColorPalette, "palette", "", "Colour palette")
	cmd.Flags().StringVar(&st.Lighting, "lighting", "", "Lighting")
	cmd.Flags().StringVar(&st.Texture, "texture", "", "Texture")
	cmd.Flags().StringVar(&st.TypographyStyle, "typography", "", "Typography style")
	cmd.Flags().StringVar(&st.BackgroundStyle, "background", "", "Background style")
	return cmd
}

func newStylesExtractCommand(ctx *commandContext) *cobra.Command {
	var name, llm string
	var save, jsonOutput bool
	cmd := &cobra.Command{
		Use:   "extract <image>",
		Short: "Derive a style from a reference image with the daemon's vision model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			return ctx.withClient(func(client *studio.Client) error {
				extracted, err := client.ExtractStyle(cmd.Context(), studio.ExtractStyleRequest{
					Name:        name,
					Filename:    args[0],
					Image:       data,
					LLMProvider: firstNonEmpty(llm, cfg.LLM.Provider),
					OllamaModel: cfg.LLM.OllamaModel,
				})
				if err != nil {
					return err
				}
				if save {
					if extracted, err = client.SaveStyle(cmd.Context(), extracted); err != nil {
						return err
					}
				}
				if jsonOutput {
					return writeJSON(cmd, api.StyleResponse{Style: extracted})
				}
				out := cmd.OutOrStdout()
				if save {
					fmt.Fprintf(out, "Saved style %s (%s)\n", extracted.Name, extracted.ID)
				}
				fmt.Fprintln(out, extracted.Description())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Name for the extracted style")
	cmd.Flags().StringVar(&llm, "llm", "", "Vision provider (gemini or ollama)")
	cmd.Flags().BoolVar(&save, "save", false, "Save the extracted style as a custom style")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the style as JSON")
	return cmd
}

func newStylesRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <style-id>",
		Short: "Delete a custom style",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *studio.Client) error {
				if err := client.DeleteStyle(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted style %s\n", args[0])
				return nil
			})
		},
	}
}

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that narrativd is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *studio.Client) error {
				if err := client.Health(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "narrativd healthy at %s\n", client.BaseURL())
				return nil
			})
		},
	}
}

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check local directories, provider credentials, and daemon reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			_ = cfg.EnsureDirectories()
			results := preflight.RunAll(cmd.Context(), cfg)

			daemon := preflight.Result{Name: "Daemon", Passed: true, Detail: cfg.Client.BackendURL}
			if client, err := ctx.client(); err != nil {
				daemon = preflight.Result{Name: "Daemon", Detail: err.Error()}
			} else if err := client.Health(cmd.Context()); err != nil {
				daemon = preflight.Result{Name: "Daemon", Detail: "not reachable at " + client.BaseURL()}
			}
			results = append(results, daemon)

			out := cmd.OutOrStdout()
			color := colorEnabled(out)
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{r.Name, passLabel(r.Passed, color), r.Detail})
			}
			printTable(out, []string{"Check", "Status", "Detail"}, rows, nil)
			if !preflight.AllPassed(results) {
				return errors.New("one or more checks failed")
			}
			return nil
		},
	}
}

func newNotifyTestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "notify-test",
		Short: "Send a test notification to the configured ntfy topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if cfg.Notifications.NtfyTopic == "" {
				return errors.New("notifications.ntfy_topic is not set")
			}
			if err := notifications.NewService(cfg).TestNotification(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test notification sent to %s\n", cfg.Notifications.NtfyTopic)
			return nil
		},
	}
}

func passLabel(passed, color bool) string {
	if passed {
		return colorize("ok", true, color)
	}
	return colorize("FAIL", false, color)
}
