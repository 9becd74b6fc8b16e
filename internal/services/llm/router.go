package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"narrativ/internal/logging"
	"narrativ/internal/services"
)

// Result is generated text along with the backend that produced it.
type Result struct {
	Text     string
	Provider string
	Model    string
}

// Router selects a backend per request and falls back when the requested one
// is unavailable.
type Router struct {
	backends []Backend
	logger   *slog.Logger
}

// NewRouter builds a router over the given backends. The first backend is the
// default when a request names no provider.
func NewRouter(logger *slog.Logger, backends ...Backend) *Router {
	kept := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b != nil {
			kept = append(kept, b)
		}
	}
	return &Router{backends: kept, logger: logging.NewComponentLogger(logger, "llm")}
}

// Available lists the providers that can serve requests right now.
func (r *Router) Available(ctx context.Context) []string {
	names := make([]string, 0, len(r.backends))
	for _, b := range r.backends {
		if b.Available(ctx) {
			names = append(names, b.Name())
		}
	}
	return names
}

// IsAvailable reports whether the named provider can serve requests.
func (r *Router) IsAvailable(ctx context.Context, provider string) bool {
	b := r.lookup(provider)
	return b != nil && b.Available(ctx)
}

// Generate runs prompt on provider, or on the first other available backend.
func (r *Router) Generate(ctx context.Context, provider string, prompt Prompt) (Result, error) {
	backend, err := r.selectBackend(ctx, provider)
	if err != nil {
		return Result{}, err
	}
	logger := logging.WithContext(ctx, r.logger)
	logger.Debug("llm request",
		logging.String(logging.FieldProvider, backend.Name()),
		logging.String("model", backend.Model(ctx)),
		logging.Bool("json", prompt.JSON),
	)
	text, err := backend.Generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, services.ErrValidation) || errors.Is(err, services.ErrConfiguration) {
			return Result{}, err
		}
		return Result{}, services.Wrap(services.ErrPlanning, "llm", "generate", fmt.Sprintf("%s request failed", backend.Name()), err)
	}
	return Result{Text: text, Provider: backend.Name(), Model: backend.Model(ctx)}, nil
}

func (r *Router) selectBackend(ctx context.Context, provider string) (Backend, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if len(r.backends) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "llm", "select provider", "no backends configured", nil)
	}
	if provider == "" {
		provider = r.backends[0].Name()
	}
	requested := r.lookup(provider)
	if requested == nil {
		return nil, services.Wrap(services.ErrValidation, "llm", "select provider", fmt.Sprintf("unknown provider %q", provider), nil)
	}
	if requested.Available(ctx) {
		return requested, nil
	}
	for _, b := range r.backends {
		if b == requested || !b.Available(ctx) {
			continue
		}
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "llm provider unavailable; falling back",
			"llm_provider_fallback",
			logging.String("requested", provider),
			logging.String(logging.FieldProvider, b.Name()),
			logging.String(logging.FieldErrorHint, unavailableHint(provider)),
			logging.String(logging.FieldImpact, "planning uses a different model"),
		)
		return b, nil
	}
	return nil, services.Wrap(services.ErrConfiguration, "llm", "select provider", noProviderMessage(provider), nil)
}

func (r *Router) lookup(provider string) Backend {
	for _, b := range r.backends {
		if b.Name() == provider {
			return b
		}
	}
	return nil
}

func unavailableHint(provider string) string {
	if provider == ProviderOllama {
		return "start Ollama"
	}
	return "set GOOGLE_API_KEY"
}

func noProviderMessage(provider string) string {
	if provider == ProviderOllama {
		return "No LLM provider available. Start Ollama or add Google API key."
	}
	return "No LLM provider available. Add Google API key or start Ollama."
}
