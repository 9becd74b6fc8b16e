package daemon

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"narrativ/internal/api"
	"narrativ/internal/logs"
	"narrativ/internal/services"
)

const (
	defaultLogLines = 100
	maxLogLines     = 5000
	logFollowWait   = 25 * time.Second
)

// handleLogs serves the daemon log file. Without an offset it returns the
// last lines; with follow it long-polls until new lines arrive.
func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := logs.TailOptions{Offset: -1, Limit: defaultLogLines}

	if raw := strings.TrimSpace(query.Get("lines")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, r, services.Wrap(services.ErrValidation, "logs", "parse", "lines must be a non-negative integer", err))
			return
		}
		opts.Limit = min(n, maxLogLines)
	}
	if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
		offset, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeError(w, r, services.Wrap(services.ErrValidation, "logs", "parse", "offset must be an integer", err))
			return
		}
		opts.Offset = offset
	}
	if follow, _ := strconv.ParseBool(query.Get("follow")); follow {
		opts.Follow = true
		opts.Wait = logFollowWait
	}

	result, err := logs.Tail(r.Context(), s.h.LogPath, opts)
	if err != nil && r.Context().Err() == nil {
		s.writeError(w, r, services.Wrap(services.ErrExternalTool, "logs", "tail", "read daemon log", err))
		return
	}
	lines := result.Lines
	if lines == nil {
		lines = []string{}
	}
	s.writeJSON(w, http.StatusOK, api.LogTailResponse{Lines: lines, Offset: result.Offset})
}
