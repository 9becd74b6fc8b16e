package daemon

import (
	"net/http"
	"strings"

	"narrativ/internal/api"
	"narrativ/internal/services"
	"narrativ/internal/style"
)

var errBoardType = services.Wrap(services.ErrValidation, "boards", "type", "board_type must be 'research' or 'images'", nil)

func (s *apiServer) boardType(r *http.Request) (api.BoardType, bool) {
	return api.ParseBoardType(r.PathValue("type"))
}

func (s *apiServer) handleListBoards(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.boardType(r)
	if !ok {
		s.writeError(w, r, errBoardType)
		return
	}
	switch kind {
	case api.BoardResearch:
		boards, err := s.h.Store.ListResearch(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.ResearchBoardsResponse{Boards: boards})
	case api.BoardImages:
		boards, err := s.h.Store.ListImages(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.ImageBoardsResponse{Boards: boards})
	}
}

func (s *apiServer) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	s.saveBoard(w, r, "")
}

func (s *apiServer) handleUpdateBoard(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "boards", "update", "board id is required", nil))
		return
	}
	s.saveBoard(w, r, id)
}

// saveBoard creates a board when id is empty and replaces board id otherwise.
func (s *apiServer) saveBoard(w http.ResponseWriter, r *http.Request, id string) {
	kind, ok := s.boardType(r)
	if !ok {
		s.writeError(w, r, errBoardType)
		return
	}
	ctx := r.Context()
	switch kind {
	case api.BoardResearch:
		var board api.ResearchBoard
		if err := s.decode(w, r, &board); err != nil {
			s.writeError(w, r, err)
			return
		}
		var (
			saved api.ResearchBoard
			err   error
		)
		if id == "" {
			saved, err = s.h.Store.SaveResearch(ctx, board)
		} else {
			saved, err = s.h.Store.UpdateResearch(ctx, id, board)
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.ResearchBoardResponse{Board: saved})
	case api.BoardImages:
		var board api.ImageBoard
		if err := s.decode(w, r, &board); err != nil {
			s.writeError(w, r, err)
			return
		}
		var (
			saved api.ImageBoard
			err   error
		)
		if id == "" {
			saved, err = s.h.Store.SaveImages(ctx, board)
		} else {
			saved, err = s.h.Store.UpdateImages(ctx, id, board)
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.ImageBoardResponse{Board: saved})
	}
}

func (s *apiServer) handleDeleteBoard(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.boardType(r)
	if !ok {
		s.writeError(w, r, errBoardType)
		return
	}
	id := r.PathValue("id")
	var err error
	if kind == api.BoardResearch {
		err = s.h.Store.DeleteResearch(r.Context(), id)
	} else {
		err = s.h.Store.DeleteImages(r.Context(), id)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "deleted": id})
}

func (s *apiServer) handleListStyles(w http.ResponseWriter, r *http.Request) {
	styles, err := s.h.Styles.All(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.StylesResponse{Styles: styles})
}

func (s *apiServer) handleSaveStyle(w http.ResponseWriter, r *http.Request) {
	var st style.Style
	if err := s.decode(w, r, &st); err != nil {
		s.writeError(w, r, err)
		return
	}
	saved, err := s.h.Store.SaveStyle(r.Context(), st)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.StyleResponse{Style: saved})
}
