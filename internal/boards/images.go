package boards

import (
	"context"
	"fmt"

	"narrativ/internal/api"
	"narrativ/internal/logging"
	"narrativ/internal/services"
)

// AddImages stores a new image board, or merges it into the existing board
// whose topic matches. A merge appends images and slides in submission order,
// keeps the existing id, and is sent to the daemon as an update.
func (c *Cache) AddImages(ctx context.Context, board api.ImageBoard) (api.ImageBoard, error) {
	if len(board.Images) == 0 {
		return api.ImageBoard{}, services.Wrap(services.ErrValidation, "boards", "add images", "image board has no images", nil)
	}
	board = board.Clone()

	c.mu.Lock()
	idx := -1
	for i, b := range c.images {
		if api.SameTopic(b.Topic, board.Topic) {
			idx = i
			break
		}
	}
	if idx < 0 {
		if board.ID == "" {
			board.ID = c.nextID()
		}
		if board.CreatedAt == "" {
			board.CreatedAt = api.FormatTime(c.now())
		}
		c.images = capBoards(append([]api.ImageBoard{board}, c.images...))
		c.mu.Unlock()
		c.changed(api.BoardImages, board.ID)

		if _, err := c.transport.CreateImages(ctx, board); err != nil {
			c.persistFailed(ctx, "create", api.BoardImages, board.ID, err)
		}
		return board.Clone(), nil
	}

	merged := c.images[idx].Clone()
	if merged.StyleName != board.StyleName || merged.Provider != board.Provider {
		c.logger.Debug("merging image board with different settings",
			logging.String(logging.FieldBoardID, merged.ID),
			logging.String("existing_style", merged.StyleName),
			logging.String("incoming_style", board.StyleName),
			logging.String("existing_provider", merged.Provider),
			logging.String("incoming_provider", board.Provider),
		)
	}
	merged.Images = append(merged.Images, board.Images...)
	merged.Slides = append(merged.Slides, board.Slides...)
	merged.UpdatedAt = api.FormatTime(c.now())
	c.images[idx] = merged
	c.mu.Unlock()
	c.changed(api.BoardImages, merged.ID)

	if _, err := c.transport.UpdateImages(ctx, merged); err != nil {
		c.persistFailed(ctx, "update", api.BoardImages, merged.ID, err)
	}
	return merged.Clone(), nil
}

// DeleteImage removes the image at index (0-based) and its slide. Removing
// the last image deletes the whole board.
func (c *Cache) DeleteImage(ctx context.Context, boardID string, index int) error {
	c.mu.Lock()
	idx := -1
	for i, b := range c.images {
		if b.ID == boardID {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return services.Wrap(services.ErrNotFound, "boards", "delete image", fmt.Sprintf("board %s not found", boardID), nil)
	}
	board := c.images[idx].Clone()
	if index < 0 || index >= len(board.Images) {
		c.mu.Unlock()
		return services.Wrap(services.ErrValidation, "boards", "delete image",
			fmt.Sprintf("image index %d out of range (board has %d)", index, len(board.Images)), nil)
	}
	board.Images = append(board.Images[:index], board.Images[index+1:]...)
	if index < len(board.Slides) {
		board.Slides = append(board.Slides[:index], board.Slides[index+1:]...)
	}

	if len(board.Images) == 0 {
		c.images = append(c.images[:idx], c.images[idx+1:]...)
		c.mu.Unlock()
		c.changed(api.BoardImages, boardID)
		if err := c.transport.DeleteImages(ctx, boardID); err != nil {
			c.persistFailed(ctx, "delete", api.BoardImages, boardID, err)
		}
		return nil
	}

	board.UpdatedAt = api.FormatTime(c.now())
	c.images[idx] = board
	c.mu.Unlock()
	c.changed(api.BoardImages, boardID)
	if _, err := c.transport.UpdateImages(ctx, board); err != nil {
		c.persistFailed(ctx, "update", api.BoardImages, boardID, err)
	}
	return nil
}

// DeleteImages removes an image board.
func (c *Cache) DeleteImages(ctx context.Context, id string) error {
	c.mu.Lock()
	c.images = removeImages(c.images, id)
	c.mu.Unlock()
	c.changed(api.BoardImages, id)

	if err := c.transport.DeleteImages(ctx, id); err != nil {
		c.persistFailed(ctx, "delete", api.BoardImages, id, err)
	}
	return nil
}

func capBoards[T any](boards []T) []T {
	if len(boards) > maxBoards {
		boards = boards[:maxBoards]
	}
	return boards
}

func removeResearch(boards []api.ResearchBoard, id string) []api.ResearchBoard {
	out := boards[:0]
	for _, b := range boards {
		if b.ID != id {
			out = append(out, b)
		}
	}
	return out
}

func removeImages(boards []api.ImageBoard, id string) []api.ImageBoard {
	out := boards[:0]
	for _, b := range boards {
		if b.ID != id {
			out = append(out, b)
		}
	}
	return out
}
