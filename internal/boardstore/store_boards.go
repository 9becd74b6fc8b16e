package boardstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"narrativ/internal/api"
	"narrativ/internal/logging"
	"narrativ/internal/services"
	"narrativ/internal/storyplan"
)

const (
	researchTable = "research_boards"
	imagesTable   = "image_boards"
)

type row struct {
	id        string
	topic     string
	createdAt string
	updatedAt string
	body      any
}

// ListResearch returns research boards newest first.
func (s *Store) ListResearch(ctx context.Context) ([]api.ResearchBoard, error) {
	return listBoards[api.ResearchBoard](ctx, s, researchTable)
}

// ListImages returns image boards newest first.
func (s *Store) ListImages(ctx context.Context) ([]api.ImageBoard, error) {
	return listBoards[api.ImageBoard](ctx, s, imagesTable)
}

// GetResearch returns the research board with id, or nil when absent.
func (s *Store) GetResearch(ctx context.Context, id string) (*api.ResearchBoard, error) {
	return getBoard[api.ResearchBoard](ctx, s, researchTable, id)
}

// GetImages returns the image board with id, or nil when absent.
func (s *Store) GetImages(ctx context.Context, id string) (*api.ImageBoard, error) {
	return getBoard[api.ImageBoard](ctx, s, imagesTable, id)
}

// SaveResearch inserts or replaces a research board. The id is required.
func (s *Store) SaveResearch(ctx context.Context, board api.ResearchBoard) (api.ResearchBoard, error) {
	if strings.TrimSpace(board.ID) == "" {
		return api.ResearchBoard{}, services.Wrap(services.ErrValidation, "boards", "save research", "board id is required", nil)
	}
	slides, err := storyplan.NormalizeSlides(board.Slides)
	if err != nil {
		return api.ResearchBoard{}, err
	}
	board.Slides = slides
	if board.CreatedAt == "" {
		board.CreatedAt = api.FormatTime(s.now())
	}
	if err := s.upsert(ctx, researchTable, row{board.ID, board.Topic, board.CreatedAt, board.UpdatedAt, board}); err != nil {
		return api.ResearchBoard{}, err
	}
	s.mirrorResearch(board)
	return board, nil
}

// SaveImages inserts or replaces an image board. The id is required.
func (s *Store) SaveImages(ctx context.Context, board api.ImageBoard) (api.ImageBoard, error) {
	if strings.TrimSpace(board.ID) == "" {
		return api.ImageBoard{}, services.Wrap(services.ErrValidation, "boards", "save images", "board id is required", nil)
	}
	if board.CreatedAt == "" {
		board.CreatedAt = api.FormatTime(s.now())
	}
	if err := s.upsert(ctx, imagesTable, row{board.ID, board.Topic, board.CreatedAt, board.UpdatedAt, board}); err != nil {
		return api.ImageBoard{}, err
	}
	return board, nil
}

// UpdateResearch replaces an existing research board. Slides are bounded to
// 1..10 and renumbered densely.
func (s *Store) UpdateResearch(ctx context.Context, id string, board api.ResearchBoard) (api.ResearchBoard, error) {
	slides, err := storyplan.NormalizeSlides(board.Slides)
	if err != nil {
		return api.ResearchBoard{}, err
	}
	board.ID = id
	board.Slides = slides
	if board.UpdatedAt == "" {
		board.UpdatedAt = api.FormatTime(s.now())
	}
	if err := s.update(ctx, researchTable, row{board.ID, board.Topic, board.CreatedAt, board.UpdatedAt, board}); err != nil {
		return api.ResearchBoard{}, err
	}
	s.mirrorResearch(board)
	return board, nil
}

// UpdateImages replaces an existing image board.
func (s *Store) UpdateImages(ctx context.Context, id string, board api.ImageBoard) (api.ImageBoard, error) {
	board.ID = id
	if board.UpdatedAt == "" {
		board.UpdatedAt = api.FormatTime(s.now())
	}
	if err := s.update(ctx, imagesTable, row{board.ID, board.Topic, board.CreatedAt, board.UpdatedAt, board}); err != nil {
		return api.ImageBoard{}, err
	}
	return board, nil
}

// DeleteResearch removes a research board and its markdown mirror.
func (s *Store) DeleteResearch(ctx context.Context, id string) error {
	existing, err := s.GetResearch(ctx, id)
	if err != nil {
		return err
	}
	if err := s.delete(ctx, researchTable, id); err != nil {
		return err
	}
	if existing != nil {
		s.removeMirror(*existing)
	}
	return nil
}

// DeleteImages removes an image board.
func (s *Store) DeleteImages(ctx context.Context, id string) error {
	return s.delete(ctx, imagesTable, id)
}

func (s *Store) upsert(ctx context.Context, table string, r row) error {
	body, err := json.Marshal(r.body)
	if err != nil {
		return fmt.Errorf("marshal board: %w", err)
	}
	updated := r.updatedAt
	if updated == "" {
		updated = r.createdAt
	}
	_, err = s.execWithRetry(ctx,
		`INSERT INTO `+table+` (id, topic, topic_key, body_json, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            topic = excluded.topic,
            topic_key = excluded.topic_key,
            body_json = excluded.body_json,
            updated_at = excluded.updated_at`,
		r.id, r.topic, api.NormalizeTopic(r.topic), string(body), r.createdAt, updated,
	)
	if err != nil {
		return fmt.Errorf("save %s: %w", table, err)
	}
	_, err = s.execWithRetry(ctx,
		`DELETE FROM `+table+` WHERE seq NOT IN (SELECT seq FROM `+table+` ORDER BY seq DESC LIMIT ?)`,
		MaxBoardsPerType,
	)
	if err != nil {
		return fmt.Errorf("prune %s: %w", table, err)
	}
	return nil
}

func (s *Store) update(ctx context.Context, table string, r row) error {
	body, err := json.Marshal(r.body)
	if err != nil {
		return fmt.Errorf("marshal board: %w", err)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE `+table+` SET topic = ?, topic_key = ?, body_json = ?, updated_at = ? WHERE id = ?`,
		r.topic, api.NormalizeTopic(r.topic), string(body), r.updatedAt, r.id,
	)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return services.Wrap(services.ErrNotFound, "boards", "update", fmt.Sprintf("board %s not found", r.id), nil)
	}
	return nil
}

func (s *Store) delete(ctx context.Context, table, id string) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return services.Wrap(services.ErrNotFound, "boards", "delete", fmt.Sprintf("board %s not found", id), nil)
	}
	return nil
}

func listBoards[T any](ctx context.Context, s *Store, table string) ([]T, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT body_json FROM `+table+` ORDER BY seq DESC LIMIT ?`, MaxBoardsPerType)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		board, err := scanBoard[T](rows)
		if err != nil {
			return nil, err
		}
		out = append(out, board)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}

func getBoard[T any](ctx context.Context, s *Store, table, id string) (*T, error) {
	ctx = ensureContext(ctx)
	r := s.db.QueryRowContext(ctx, `SELECT body_json FROM `+table+` WHERE id = ?`, id)
	board, err := scanBoard[T](r)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &board, nil
}

func scanBoard[T any](scanner interface{ Scan(dest ...any) error }) (T, error) {
	var (
		zero T
		raw  string
	)
	if err := scanner.Scan(&raw); err != nil {
		return zero, err
	}
	var board T
	if err := json.Unmarshal([]byte(raw), &board); err != nil {
		return zero, fmt.Errorf("decode board: %w", err)
	}
	return board, nil
}

func (s *Store) mirrorResearch(board api.ResearchBoard) {
	if s.researchDir == "" {
		return
	}
	if err := WriteResearchMarkdown(s.researchDir, board); err != nil {
		logging.WarnWithContext(s.logger, "research markdown mirror failed", "research_mirror_failed",
			logging.String(logging.FieldBoardID, board.ID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "board saved in database only"),
			logging.String(logging.FieldErrorHint, "check paths.research_dir permissions"),
		)
	}
}

func (s *Store) removeMirror(board api.ResearchBoard) {
	if s.researchDir == "" {
		return
	}
	if err := RemoveResearchMarkdown(s.researchDir, board); err != nil {
		s.logger.Debug("remove research markdown failed", logging.String(logging.FieldBoardID, board.ID), logging.Error(err))
	}
}
