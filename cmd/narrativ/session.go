package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"narrativ/internal/boards"
	"narrativ/internal/config"
	"narrativ/internal/events"
	"narrativ/internal/logging"
	"narrativ/internal/orchestrator"
	"narrativ/internal/providers"
	"narrativ/internal/studio"
)

// sessionOptions override the configured providers for one run.
type sessionOptions struct {
	LLMProvider   string
	ImageProvider string
	HFQualityMode string
	BrandID       string
}

// session wires one orchestrator to the daemon for the lifetime of a command.
type session struct {
	cfg     *config.Config
	client  *studio.Client
	bus     *events.Bus
	boards  *boards.Cache
	checker *providers.Checker
	orch    *orchestrator.Orchestrator

	cancel  context.CancelFunc
	watcher *providers.KeyWatcher
	wg      sync.WaitGroup
}

func (c *commandContext) newSession(ctx context.Context, opts sessionOptions) (*session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	client, err := c.client()
	if err != nil {
		return nil, err
	}
	logger := c.log()
	bus := events.NewBus(64)

	cache := boards.New(client, boards.WithBus(bus), boards.WithLogger(logger))
	if err := cache.Refresh(ctx); err != nil {
		bus.Close()
		return nil, wrapDialError(err, client.BaseURL())
	}
	checker := providers.NewChecker(client,
		providers.WithBus(bus),
		providers.WithLogger(logger),
		providers.WithInterval(cfg.ProviderPollInterval()),
	)
	if err := checker.Poll(ctx); err != nil {
		bus.Close()
		return nil, wrapDialError(err, client.BaseURL())
	}

	llmProvider := firstNonEmpty(opts.LLMProvider, cfg.LLM.Provider)
	imageProvider := firstNonEmpty(opts.ImageProvider, cfg.Images.Provider)
	orch := orchestrator.New(
		orchestrator.Deps{
			Planner:   client,
			Generator: client,
			Boards:    cache,
			Providers: checker,
			Bus:       bus,
			Logger:    logger,
		},
		orchestrator.Options{
			ProgressInterval: cfg.ProgressTick(),
			LLMProvider:      llmProvider,
			PinLLM:           opts.LLMProvider != "",
			OllamaModel:      cfg.LLM.OllamaModel,
			ImageProvider:    imageProvider,
			BrandID:          opts.BrandID,
			HFQualityMode:    opts.HFQualityMode,
		},
	)
	s := &session{cfg: cfg, client: client, bus: bus, boards: cache, checker: checker, orch: orch}
	s.startBackground(ctx, c, logger)
	return s, nil
}

// startBackground keeps provider status current while the command runs and
// re-polls when the config file holding the API keys changes.
func (s *session) startBackground(ctx context.Context, c *commandContext, logger *slog.Logger) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	if c.configExists {
		watcher := providers.NewKeyWatcher(c.configPath, s.bus, logger)
		if err := watcher.Start(runCtx); err != nil {
			logger.Debug("key watcher unavailable", logging.Error(err))
		} else {
			s.watcher = watcher
		}
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.checker.Run(runCtx)
	}()
}

func (s *session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.watcher != nil {
		s.watcher.Stop()
	}
	s.wg.Wait()
	s.bus.Close()
}

// watch prints phase changes, progress ticks, and notices to w until the
// returned function is called.
func (s *session) watch(w io.Writer) (stop func()) {
	ch, unsubscribe := s.bus.Subscribe(events.TopicPhaseChanged, events.TopicProgressTick, events.TopicNotice)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for evt := range ch {
			if line := describeEvent(evt); line != "" {
				fmt.Fprintln(w, line)
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			wg.Wait()
		})
	}
}

func describeEvent(evt events.Event) string {
	switch payload := evt.Payload.(type) {
	case orchestrator.Researching:
		return "Researching..."
	case orchestrator.GeneratingImages:
		return fmt.Sprintf("Generating %d image(s)...", payload.Expected)
	case orchestrator.Failed:
		return fmt.Sprintf("Failed (%s): %s", payload.Kind, payload.Message)
	case events.Progress:
		return fmt.Sprintf("  slide %d of %d", payload.Current, payload.Expected)
	case events.Notice:
		return fmt.Sprintf("[%s] %s", payload.Level, payload.Message)
	default:
		return ""
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
