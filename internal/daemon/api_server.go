package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"narrativ/internal/api"
	"narrativ/internal/imagegen"
	"narrativ/internal/logging"
	"narrativ/internal/research"
	"narrativ/internal/services"
	"narrativ/internal/storyplan"
	"narrativ/internal/style"
)

const maxRequestBody = 4 << 20

// Planner produces slide plans.
type Planner interface {
	PlanStory(ctx context.Context, req api.PlanStoryRequest) (storyplan.Plan, error)
	PlanFromText(ctx context.Context, req api.PlanFromTextRequest) (storyplan.Plan, error)
	AddSlides(ctx context.Context, req api.AddSlidesRequest) (api.AddSlidesResponse, error)
}

// ImageGenerator renders a plan into a story folder.
type ImageGenerator interface {
	GenerateStory(ctx context.Context, plan storyplan.Plan, opts imagegen.GenerateOptions) (imagegen.Story, error)
	OutputDir() string
}

// BoardStore persists boards and custom styles.
type BoardStore interface {
	ListResearch(ctx context.Context) ([]api.ResearchBoard, error)
	ListImages(ctx context.Context) ([]api.ImageBoard, error)
	SaveResearch(ctx context.Context, board api.ResearchBoard) (api.ResearchBoard, error)
	SaveImages(ctx context.Context, board api.ImageBoard) (api.ImageBoard, error)
	UpdateResearch(ctx context.Context, id string, board api.ResearchBoard) (api.ResearchBoard, error)
	UpdateImages(ctx context.Context, id string, board api.ImageBoard) (api.ImageBoard, error)
	DeleteResearch(ctx context.Context, id string) error
	DeleteImages(ctx context.Context, id string) error
	ListStyles(ctx context.Context) ([]style.Style, error)
	SaveStyle(ctx context.Context, st style.Style) (style.Style, error)
	DeleteStyle(ctx context.Context, id string) error
}

// StyleExtractor derives a style from a reference image.
type StyleExtractor interface {
	Extract(ctx context.Context, req research.ExtractStyleRequest) (style.Style, error)
}

// ProviderStatusFunc reports backend availability for /check_providers.
type ProviderStatusFunc func(ctx context.Context) api.ProviderStatus

// Handlers bundles the collaborators the API delegates to.
type Handlers struct {
	Planner         Planner
	Images          ImageGenerator
	Store           BoardStore
	Styles          *style.Catalog
	Extractor       StyleExtractor
	ProviderStatus  ProviderStatusFunc
	DefaultProvider string
	PublicBaseURL   string
	Token           string
	LogPath         string
}

type apiServer struct {
	bind   string
	logger *slog.Logger
	h      Handlers

	listener net.Listener
	server   *http.Server
}

func newAPIServer(bind string, h Handlers, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(bind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		h:      h,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// routes builds the handler tree. Planning and generation can take minutes,
// so the server sets no write timeout.
func (s *apiServer) routes() http.Handler {
	open := http.NewServeMux()
	open.HandleFunc("GET /{$}", s.handleHealth)
	open.HandleFunc("GET /health", s.handleHealth)

	guarded := http.NewServeMux()
	guarded.HandleFunc("POST /plan_story", s.handlePlanStory)
	guarded.HandleFunc("POST /plan_from_text", s.handlePlanFromText)
	guarded.HandleFunc("POST /add_slides", s.handleAddSlides)
	guarded.HandleFunc("POST /generate_from_plan", s.handleGenerate)
	guarded.HandleFunc("GET /check_providers", s.handleCheckProviders)
	guarded.HandleFunc("GET /boards/{type}", s.handleListBoards)
	guarded.HandleFunc("POST /boards/{type}", s.handleCreateBoard)
	guarded.HandleFunc("PUT /boards/{type}/{id}", s.handleUpdateBoard)
	guarded.HandleFunc("DELETE /boards/{type}/{id}", s.handleDeleteBoard)
	guarded.HandleFunc("GET /styles", s.handleListStyles)
	guarded.HandleFunc("POST /styles", s.handleSaveStyle)
	guarded.HandleFunc("DELETE /styles/{style_id}", s.handleDeleteStyle)
	guarded.HandleFunc("POST /extract_style", s.handleExtractStyle)
	guarded.HandleFunc("GET /images/{folder}/{file}", s.handleImage)
	guarded.HandleFunc("GET /logs", s.handleLogs)

	open.Handle("/", authMiddleware(s.h.Token, guarded))
	return requestMiddleware(s.logger, open)
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// addr returns the bound address, useful when binding to port 0.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.HealthResponse{Status: "ok"})
}

func (s *apiServer) handleCheckProviders(w http.ResponseWriter, r *http.Request) {
	if s.h.ProviderStatus == nil {
		s.writeJSON(w, http.StatusOK, api.ProviderStatus{})
		return
	}
	s.writeJSON(w, http.StatusOK, s.h.ProviderStatus(r.Context()))
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, target any) error {
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return services.Wrap(services.ErrValidation, "api", "decode", "request body is required", nil)
		}
		return services.Wrap(services.ErrValidation, "api", "decode", "invalid request body", err)
	}
	return nil
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := services.HTTPStatus(err)
	logger := logging.WithContext(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logger, "api request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.String("error_kind", services.Kind(err)),
			logging.Error(err),
		)
	} else {
		logger.Debug("api request rejected",
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Error(err),
		)
	}
	s.writeJSON(w, status, api.ErrorResponse{Error: err.Error()})
}
