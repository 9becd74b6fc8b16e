package boardstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"narrativ/internal/api"
	"narrativ/internal/services"
	"narrativ/internal/style"
)

// ListStyles returns custom styles oldest first.
func (s *Store) ListStyles(ctx context.Context) ([]style.Style, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT body_json FROM custom_styles ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list styles: %w", err)
	}
	defer rows.Close()

	out := make([]style.Style, 0)
	for rows.Next() {
		st, err := scanBoard[style.Style](rows)
		if err != nil {
			return nil, err
		}
		st.Custom = true
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate styles: %w", err)
	}
	return out, nil
}

// SaveStyle validates and stores a custom style, assigning an id when missing.
func (s *Store) SaveStyle(ctx context.Context, st style.Style) (style.Style, error) {
	if err := st.Validate(); err != nil {
		return style.Style{}, err
	}
	if strings.TrimSpace(st.ID) == "" {
		st.ID = "custom_" + strconv.FormatInt(s.now().UnixMilli(), 10)
	}
	st.Custom = true
	body, err := json.Marshal(st)
	if err != nil {
		return style.Style{}, fmt.Errorf("marshal style: %w", err)
	}
	_, err = s.execWithRetry(ctx,
		`INSERT INTO custom_styles (id, name, body_json, created_at) VALUES (?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET name = excluded.name, body_json = excluded.body_json`,
		st.ID, st.Name, string(body), api.FormatTime(s.now()),
	)
	if err != nil {
		return style.Style{}, fmt.Errorf("save style: %w", err)
	}
	return st, nil
}

// DeleteStyle removes a custom style. Predefined styles are not stored and
// report ErrNotFound like any unknown id.
func (s *Store) DeleteStyle(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM custom_styles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete style: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return services.Wrap(services.ErrNotFound, "styles", "delete", fmt.Sprintf("style %s not found", id), nil)
	}
	return nil
}
