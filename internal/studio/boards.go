package studio

import (
	"context"
	"net/http"
	"net/url"

	"narrativ/internal/api"
	"narrativ/internal/services"
)

func boardPath(kind api.BoardType, id string) string {
	if id == "" {
		return "/boards/" + string(kind)
	}
	return "/boards/" + string(kind) + "/" + url.PathEscape(id)
}

func persistErr(op string, err error) error {
	return services.Wrap(services.ErrPersistence, "boards", op, "board request failed", err)
}

// ListResearch returns the daemon's research boards, newest first.
func (c *Client) ListResearch(ctx context.Context) ([]api.ResearchBoard, error) {
	var resp api.ResearchBoardsResponse
	if err := c.do(ctx, http.MethodGet, boardPath(api.BoardResearch, ""), nil, &resp); err != nil {
		return nil, persistErr("list research", err)
	}
	return resp.Boards, nil
}

// CreateResearch stores a new research board.
func (c *Client) CreateResearch(ctx context.Context, board api.ResearchBoard) (api.ResearchBoard, error) {
	var resp api.ResearchBoardResponse
	if err := c.do(ctx, http.MethodPost, boardPath(api.BoardResearch, ""), board, &resp); err != nil {
		return api.ResearchBoard{}, persistErr("create research", err)
	}
	return resp.Board, nil
}

// UpdateResearch replaces a research board.
func (c *Client) UpdateResearch(ctx context.Context, board api.ResearchBoard) (api.ResearchBoard, error) {
	var resp api.ResearchBoardResponse
	if err := c.do(ctx, http.MethodPut, boardPath(api.BoardResearch, board.ID), board, &resp); err != nil {
		return api.ResearchBoard{}, persistErr("update research", err)
	}
	return resp.Board, nil
}

// DeleteResearch removes a research board.
func (c *Client) DeleteResearch(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, boardPath(api.BoardResearch, id), nil, nil); err != nil {
		return persistErr("delete research", err)
	}
	return nil
}

// ListImages returns the daemon's image boards, newest first.
func (c *Client) ListImages(ctx context.Context) ([]api.ImageBoard, error) {
	var resp api.ImageBoardsResponse
	if err := c.do(ctx, http.MethodGet, boardPath(api.BoardImages, ""), nil, &resp); err != nil {
		return nil, persistErr("list images", err)
	}
	return resp.Boards, nil
}

// CreateImages stores a new image board.
func (c *Client) CreateImages(ctx context.Context, board api.ImageBoard) (api.ImageBoard, error) {
	var resp api.ImageBoardResponse
	if err := c.do(ctx, http.MethodPost, boardPath(api.BoardImages, ""), board, &resp); err != nil {
		return api.ImageBoard{}, persistErr("create images", err)
	}
	return resp.Board, nil
}

// UpdateImages replaces an image board.
func (c *Client) UpdateImages(ctx context.Context, board api.ImageBoard) (api.ImageBoard, error) {
	var resp api.ImageBoardResponse
	if err := c.do(ctx, http.MethodPut, boardPath(api.BoardImages, board.ID), board, &resp); err != nil {
		return api.ImageBoard{}, persistErr("update images", err)
	}
	return resp.Board, nil
}

// DeleteImages removes an image board.
func (c *Client) DeleteImages(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, boardPath(api.BoardImages, id), nil, nil); err != nil {
		return persistErr("delete images", err)
	}
	return nil
}
