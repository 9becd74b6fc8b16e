package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"narrativ/internal/api"
	"narrativ/internal/boards"
	"narrativ/internal/boardstore"
	"narrativ/internal/events"
	"narrativ/internal/fileutil"
	"narrativ/internal/services"
	"narrativ/internal/studio"
)

func newBoardsCommand(ctx *commandContext) *cobra.Command {
	boardsCmd := &cobra.Command{
		Use:   "boards",
		Short: "Inspect and manage saved research and image boards",
	}

	boardsCmd.AddCommand(newBoardsResearchCommand(ctx))
	boardsCmd.AddCommand(newBoardsImagesCommand(ctx))
	boardsCmd.AddCommand(newBoardsRemoveCommand(ctx))
	boardsCmd.AddCommand(newBoardsRemoveImageCommand(ctx))
	boardsCmd.AddCommand(newBoardsAddSlidesCommand(ctx))
	boardsCmd.AddCommand(newBoardsEditSlideCommand(ctx))
	boardsCmd.AddCommand(newBoardsRemoveSlideCommand(ctx))
	boardsCmd.AddCommand(newBoardsExportCommand(ctx))
	boardsCmd.AddCommand(newBoardsImportCommand(ctx))

	return boardsCmd
}

func newBoardsResearchCommand(ctx *commandContext) *cobra.Command {
	researchCmd := &cobra.Command{
		Use:   "research",
		Short: "Research boards",
	}
	var jsonOutput bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List research boards, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *studio.Client) error {
				list, err := client.ListResearch(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.ResearchBoardsResponse{Boards: list})
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No research boards")
					return nil
				}
				rows := make([][]string, 0, len(list))
				for _, b := range list {
					rows = append(rows, []string{
						b.ID,
						truncate(b.Topic, 40),
						strconv.Itoa(len(b.Slides)),
						b.StyleName,
						b.ImageSize,
						formatBoardTime(b.CreatedAt),
					})
				}
				printTable(cmd.OutOrStdout(), []string{"ID", "Topic", "Slides", "Style", "Size", "Created"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight})
				return nil
			})
		},
	}
	list.Flags().BoolVar(&jsonOutput, "json", false, "Print boards as JSON")
	researchCmd.AddCommand(list)
	return researchCmd
}

func newBoardsImagesCommand(ctx *commandContext) *cobra.Command {
	imagesCmd := &cobra.Command{
		Use:   "images",
		Short: "Image boards",
	}
	var jsonOutput bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List image boards, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *studio.Client) error {
				list, err := client.ListImages(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.ImageBoardsResponse{Boards: list})
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No image boards")
					return nil
				}
				rows := make([][]string, 0, len(list))
				for _, b := range list {
					rows = append(rows, []string{
						b.ID,
						truncate(b.Topic, 40),
						strconv.Itoa(len(b.Images)),
						b.Provider,
						b.ImageSize,
						formatBoardTime(b.CreatedAt),
					})
				}
				printTable(cmd.OutOrStdout(), []string{"ID", "Topic", "Images", "Provider", "Size", "Created"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight})
				return nil
			})
		},
	}
	list.Flags().BoolVar(&jsonOutput, "json", false, "Print boards as JSON")
	imagesCmd.AddCommand(list)
	return imagesCmd
}

func formatBoardTime(value string) string {
	t := api.ParseTime(value)
	if t.IsZero() {
		return value
	}
	return t.Local().Format("2006-01-02 15:04")
}

func newBoardsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <research|images> <id>",
		Short: "Delete a board",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := api.ParseBoardType(args[0])
			if !ok {
				return services.Wrap(services.ErrValidation, "boards", "rm", "board type must be 'research' or 'images'", nil)
			}
			id := args[1]
			return ctx.withClient(func(client *studio.Client) error {
				var err error
				if kind == api.BoardResearch {
					err = client.DeleteResearch(cmd.Context(), id)
				} else {
					err = client.DeleteImages(cmd.Context(), id)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s board %s\n", kind, id)
				return nil
			})
		},
	}
}

func newBoardsRemoveImageCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rm-image <image-board-id> <index>",
		Short: "Remove one image from an image board (the board is deleted with its last image)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return services.Wrap(services.ErrValidation, "boards", "rm-image", "index must be a number", err)
			}
			return withCache(cmd.Context(), ctx, func(cache *boards.Cache) error {
				if err := cache.DeleteImage(cmd.Context(), args[0], index); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed image %d from %s\n", index, args[0])
				return nil
			})
		},
	}
}

func newBoardsExportCommand(ctx *commandContext) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export <research-id>",
		Short: "Write a research board as markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd.Context(), ctx, func(cache *boards.Cache) error {
				board, ok := cache.FindResearch(args[0])
				if !ok {
					return services.Wrap(services.ErrNotFound, "boards", "export", "research board "+args[0]+" not found", nil)
				}
				content, err := boardstore.ExportResearchMarkdown(board)
				if err != nil {
					return err
				}
				if outPath == "" {
					_, err := cmd.OutOrStdout().Write(content)
					return err
				}
				target := outPath
				if info, err := os.Stat(target); err == nil && info.IsDir() {
					target = filepath.Join(target, boardstore.MarkdownFilename(board))
				}
				if err := fileutil.WriteFileAtomic(target, content, 0o644); err != nil {
					return fmt.Errorf("write markdown: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", target)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file or directory (default stdout)")
	return cmd
}

func newBoardsImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.md>",
		Short: "Create a research board from a markdown file",
		Long:  "Create a research board from a markdown file. A file whose frontmatter id matches an existing board replaces it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read markdown: %w", err)
			}
			board, err := boardstore.ParseResearchMarkdown(content, filepath.Base(args[0]))
			if err != nil {
				return err
			}
			return withCache(cmd.Context(), ctx, func(cache *boards.Cache) error {
				verb := "Imported"
				if _, ok := cache.FindResearch(board.ID); ok && board.ID != "" {
					board, err = cache.UpdateResearch(cmd.Context(), board)
					verb = "Updated"
				} else {
					board, err = cache.SaveResearch(cmd.Context(), board)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s research board %s (%d slides)\n", verb, board.ID, len(board.Slides))
				return nil
			})
		},
	}
}

// withCache runs fn against a refreshed board cache. Sync failures the cache
// reports as notices are returned as errors.
func withCache(ctx context.Context, cc *commandContext, fn func(*boards.Cache) error) error {
	return withCacheClient(ctx, cc, func(cache *boards.Cache, _ *studio.Client) error {
		return fn(cache)
	})
}

// withCacheClient is withCache for callers that also need the daemon client.
func withCacheClient(ctx context.Context, cc *commandContext, fn func(*boards.Cache, *studio.Client) error) error {
	return cc.withClient(func(client *studio.Client) error {
		bus := events.NewBus(16)
		defer bus.Close()
		notices, unsubscribe := bus.Subscribe(events.TopicNotice)
		defer unsubscribe()

		cache := boards.New(client, boards.WithBus(bus), boards.WithLogger(cc.log()))
		if err := cache.Refresh(ctx); err != nil {
			return err
		}
		if err := fn(cache, client); err != nil {
			return err
		}
		return syncError(notices)
	})
}

func syncError(notices <-chan events.Event) error {
	for {
		select {
		case evt, ok := <-notices:
			if !ok {
				return nil
			}
			if n, isNotice := evt.Payload.(events.Notice); isNotice && n.Level != events.NoticeInfo {
				return services.Wrap(services.ErrPersistence, "boards", "sync", n.Message, nil)
			}
		default:
			return nil
		}
	}
}
