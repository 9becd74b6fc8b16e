package boards

import (
	"context"
	"fmt"

	"narrativ/internal/api"
	"narrativ/internal/services"
	"narrativ/internal/storyplan"
	"narrativ/internal/studio"
)

// SlidePlanner plans slides that continue an existing slide list.
type SlidePlanner interface {
	AddSlides(ctx context.Context, req studio.AddSlidesRequest) (studio.AddSlidesResult, error)
}

// MoreSlides asks for Count additional slides, planned by the named LLM.
type MoreSlides struct {
	Count       int
	LLMProvider string
	OllamaModel string
}

// AddResearchSlides plans more slides for a saved research board and appends
// as many as fit under the cap. It returns the updated board and the number
// of slides added.
func (c *Cache) AddResearchSlides(ctx context.Context, planner SlidePlanner, id string, req MoreSlides) (api.ResearchBoard, int, error) {
	board, ok := c.FindResearch(id)
	if !ok {
		return api.ResearchBoard{}, 0, services.Wrap(services.ErrNotFound, "boards", "add slides", fmt.Sprintf("board %s not found", id), nil)
	}
	if req.Count < 1 {
		return api.ResearchBoard{}, 0, services.Wrap(services.ErrValidation, "boards", "add slides", "slide count must be positive", nil)
	}
	room := storyplan.MaxSlides - len(board.Slides)
	if room <= 0 {
		return api.ResearchBoard{}, 0, services.Wrap(services.ErrValidation, "boards", "add slides", fmt.Sprintf("maximum %d slides reached", storyplan.MaxSlides), nil)
	}
	result, err := planner.AddSlides(ctx, studio.AddSlidesRequest{
		Topic:           board.Topic,
		Existing:        board.Slides,
		AdditionalCount: min(req.Count, room),
		Style:           board.Aesthetic,
		LLMProvider:     req.LLMProvider,
		OllamaModel:     req.OllamaModel,
	})
	if err != nil {
		return api.ResearchBoard{}, 0, err
	}

	added := 0
	updated, err := c.mutateResearch(ctx, "add slides", id, func(b *api.ResearchBoard) error {
		fresh := result.Slides
		if space := storyplan.MaxSlides - len(b.Slides); len(fresh) > space {
			fresh = fresh[:max(space, 0)]
		}
		if len(fresh) == 0 {
			return services.Wrap(services.ErrPlanning, "boards", "add slides", "no new slides were planned", nil)
		}
		b.Slides = append(b.Slides, fresh...)
		b.Sources = storyplan.MergeSources(b.Sources, result.Sources)
		added = len(fresh)
		return nil
	})
	if err != nil {
		return api.ResearchBoard{}, 0, err
	}
	return updated, added, nil
}

// EditResearchSlide replaces fields of slide n (1-based) on a saved board.
func (c *Cache) EditResearchSlide(ctx context.Context, id string, n int, edit storyplan.SlideEdit) (api.ResearchBoard, error) {
	return c.mutateResearch(ctx, "edit slide", id, func(b *api.ResearchBoard) error {
		if err := checkSlide(b, n); err != nil {
			return err
		}
		edit.Apply(&b.Slides[n-1])
		return nil
	})
}

// DeleteResearchSlide removes slide n (1-based) and renumbers the rest. The
// last slide cannot be removed; delete the board instead.
func (c *Cache) DeleteResearchSlide(ctx context.Context, id string, n int) (api.ResearchBoard, error) {
	return c.mutateResearch(ctx, "delete slide", id, func(b *api.ResearchBoard) error {
		if err := checkSlide(b, n); err != nil {
			return err
		}
		if len(b.Slides) <= storyplan.MinSlides {
			return services.Wrap(services.ErrValidation, "boards", "delete slide", "a research board needs at least one slide", nil)
		}
		b.Slides = append(b.Slides[:n-1], b.Slides[n:]...)
		return nil
	})
}

// mutateResearch applies fn to a copy of the board, renumbers and bounds its
// slides, then stores it locally and sends it to the daemon. A rejected
// mutation leaves the cache untouched.
func (c *Cache) mutateResearch(ctx context.Context, op, id string, fn func(*api.ResearchBoard) error) (api.ResearchBoard, error) {
	c.mu.Lock()
	idx := -1
	for i, b := range c.research {
		if b.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return api.ResearchBoard{}, services.Wrap(services.ErrNotFound, "boards", op, fmt.Sprintf("board %s not found", id), nil)
	}
	board := c.research[idx].Clone()
	if err := fn(&board); err != nil {
		c.mu.Unlock()
		return api.ResearchBoard{}, err
	}
	slides, err := storyplan.NormalizeSlides(board.Slides)
	if err != nil {
		c.mu.Unlock()
		return api.ResearchBoard{}, err
	}
	board.ID = id
	board.Slides = slides
	board.UpdatedAt = api.FormatTime(c.now())
	c.research[idx] = board
	c.mu.Unlock()
	c.changed(api.BoardResearch, id)

	if _, err := c.transport.UpdateResearch(ctx, board); err != nil {
		c.persistFailed(ctx, "update", api.BoardResearch, id, err)
	}
	return board.Clone(), nil
}

func checkSlide(b *api.ResearchBoard, n int) error {
	if n < 1 || n > len(b.Slides) {
		return services.Wrap(services.ErrValidation, "boards", "slide", fmt.Sprintf("slide %d out of range 1..%d", n, len(b.Slides)), nil)
	}
	return nil
}
