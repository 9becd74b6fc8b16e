// Package daemonrun assembles the narrativd runtime from configuration.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"narrativ/internal/api"
	"narrativ/internal/boardstore"
	"narrativ/internal/config"
	"narrativ/internal/daemon"
	"narrativ/internal/imagegen"
	"narrativ/internal/logging"
	"narrativ/internal/notifications"
	"narrativ/internal/preflight"
	"narrativ/internal/research"
	"narrativ/internal/retention"
	"narrativ/internal/services/llm"
	"narrativ/internal/style"
)

// Run starts narrativd and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := boardstore.Open(cfg, boardstore.WithLogger(logger))
	if err != nil {
		logger.Error("open board store", logging.Error(err))
		return err
	}
	defer store.Close()

	handlers, err := buildHandlers(ctx, cfg, store, logger)
	if err != nil {
		return err
	}
	logProviderSnapshot(ctx, logger, cfg)

	d, err := daemon.New(cfg, handlers, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	pruned := make(chan struct{})
	go func() {
		defer close(pruned)
		retention.Run(ctx, cfg.Paths.OutputDir, cfg.OutputRetention(), time.Hour,
			logging.NewComponentLogger(logger, "retention"))
	}()

	<-ctx.Done()
	logger.Info("narrativd shutting down")
	<-pruned
	return nil
}

func buildHandlers(ctx context.Context, cfg *config.Config, store *boardstore.Store, logger *slog.Logger) (daemon.Handlers, error) {
	router, err := buildRouter(ctx, cfg, logger)
	if err != nil {
		return daemon.Handlers{}, err
	}
	catalog := style.NewCatalog(store)

	plannerOpts := []research.Option{
		research.WithStyles(catalog),
		research.WithCacheTTL(cfg.ResearchCacheTTL()),
		research.WithLogger(logger),
	}
	if searcher := buildSearcher(cfg); searcher != nil {
		plannerOpts = append(plannerOpts, research.WithSearch(searcher))
	}
	planner := research.NewPlanner(router, plannerOpts...)

	generator, err := buildGenerator(ctx, cfg, router, logger)
	if err != nil {
		return daemon.Handlers{}, err
	}

	return daemon.Handlers{
		Planner:   planner,
		Images:    withNotifications(generator, notifications.NewService(cfg), logger),
		Store:     store,
		Styles:    catalog,
		Extractor: research.NewStyleExtractor(router, logger),
		ProviderStatus: func(ctx context.Context) api.ProviderStatus {
			return preflight.ProviderStatus(ctx, cfg)
		},
	}, nil
}

// buildSearcher prefers Tavily and falls back to keyless DuckDuckGo.
func buildSearcher(cfg *config.Config) research.Searcher {
	if tavily := research.NewTavilyClient(cfg.Search.TavilyAPIKey, cfg.Search.TavilyBaseURL, nil); tavily != nil {
		return tavily
	}
	if cfg.Search.DuckDuckGo {
		return research.NewDuckDuckGoClient(cfg.Search.DuckDuckGoURL, nil)
	}
	return nil
}

// buildRouter puts the configured LLM provider first so it is the default.
func buildRouter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*llm.Router, error) {
	gemini, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{
		APIKey:         cfg.LLM.GeminiAPIKey,
		Model:          cfg.LLM.GeminiModel,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	if err != nil {
		return nil, err
	}
	ollama := llm.NewOllamaClient(llm.OllamaConfig{
		BaseURL:        cfg.LLM.OllamaURL,
		Model:          cfg.LLM.OllamaModel,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	if cfg.LLM.Provider == llm.ProviderOllama {
		return llm.NewRouter(logger, ollama, gemini), nil
	}
	return llm.NewRouter(logger, gemini, ollama), nil
}

func buildGenerator(ctx context.Context, cfg *config.Config, router *llm.Router, logger *slog.Logger) (*imagegen.Generator, error) {
	imagen, err := imagegen.NewImagenProviders(ctx, cfg.Images.GoogleAPIKey, "", nil)
	if err != nil {
		return nil, err
	}
	providers := make([]imagegen.Provider, 0, len(imagen)+2)
	for _, p := range imagen {
		providers = append(providers, p)
	}
	providers = append(providers,
		imagegen.NewFalProvider(cfg.Images.FalAPIKey, "", nil),
		imagegen.NewHuggingFaceProvider(cfg.Images.HFAPIKey, "", nil),
	)
	return imagegen.NewGenerator(cfg.Paths.OutputDir, providers,
		imagegen.WithLogger(logger),
		imagegen.WithConsistency(imagegen.NewLLMConsistency(router, cfg.LLM.Provider)),
		imagegen.WithOptions(imagegen.Options{
			MaxWorkers:        cfg.Images.MaxWorkers,
			RequestsPerSecond: cfg.Images.RequestsPerSecond,
			MaxRetries:        cfg.Images.MaxRetries,
			PerImageTimeout:   time.Duration(cfg.Images.TimeoutSeconds) * time.Second,
		}),
	), nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logProviderSnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	status := preflight.ProviderStatus(ctx, cfg)
	logger.Info("provider snapshot",
		logging.String(logging.FieldEventType, "provider_snapshot"),
		logging.String("llm_default", cfg.LLM.Provider),
		logging.Bool("gemini_available", status.LLM.Gemini.Available),
		logging.Bool("ollama_available", status.LLM.Ollama.Available),
		logging.String("image_default", cfg.Images.Provider),
		logging.Bool("imagen_available", status.Image.Gemini.Available),
		logging.Bool("fal_available", status.Image.Fal.Available),
		logging.Bool("huggingface_available", status.Image.HuggingFace.Available),
		logging.Bool("tavily_key_present", cfg.Search.TavilyAPIKey != ""),
		logging.Bool("duckduckgo_enabled", cfg.Search.DuckDuckGo),
	)
}
