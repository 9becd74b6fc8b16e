// Package providers tracks which LLM and image backends the daemon reports
// as usable and answers capability questions for the workflow.
package providers

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"narrativ/internal/api"
	"narrativ/internal/clock"
	"narrativ/internal/events"
	"narrativ/internal/logging"
)

// Status is the per-provider availability snapshot.
type Status = api.ProviderStatus

// StatusSource fetches the current provider status.
type StatusSource interface {
	CheckProviders(ctx context.Context) (api.ProviderStatus, error)
}

// Capability names what a provider is needed for.
type Capability string

const (
	Planning   Capability = "planning"
	Generation Capability = "generation"
)

// ReasonUnknown is reported until the first poll succeeds.
const ReasonUnknown = "provider status unknown"

const defaultInterval = 30 * time.Second

// Checker polls a StatusSource and caches the latest result.
type Checker struct {
	source    StatusSource
	bus       *events.Bus
	logger    *slog.Logger
	interval  time.Duration
	newTicker clock.TickerFactory

	mu     sync.RWMutex
	latest Status
	known  bool
}

// Option customizes a Checker.
type Option func(*Checker)

// WithInterval sets the polling period.
func WithInterval(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithTicker overrides how the polling ticker is created.
func WithTicker(factory clock.TickerFactory) Option {
	return func(c *Checker) {
		if factory != nil {
			c.newTicker = factory
		}
	}
}

// WithBus publishes changes and listens for key changes on bus.
func WithBus(bus *events.Bus) Option {
	return func(c *Checker) { c.bus = bus }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		c.logger = logging.NewComponentLogger(logger, "providers")
	}
}

// NewChecker returns a checker that has not polled yet.
func NewChecker(source StatusSource, opts ...Option) *Checker {
	c := &Checker{
		source:    source,
		logger:    logging.NewNop(),
		interval:  defaultInterval,
		newTicker: clock.NewTicker,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run polls immediately, then on every tick and every API key change, until
// ctx is done.
func (c *Checker) Run(ctx context.Context) {
	var keys <-chan events.Event
	if c.bus != nil {
		ch, unsubscribe := c.bus.Subscribe(events.TopicAPIKeysChanged)
		defer unsubscribe()
		keys = ch
	}
	ticker := c.newTicker(c.interval)
	defer ticker.Stop()

	_ = c.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			_ = c.Poll(ctx)
		case _, ok := <-keys:
			if !ok {
				keys = nil
				continue
			}
			c.logger.Debug("api keys changed; polling providers")
			_ = c.Poll(ctx)
		}
	}
}

// Poll fetches the status once. A failure keeps the previous status.
func (c *Checker) Poll(ctx context.Context) error {
	status, err := c.source.CheckProviders(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		logging.WarnWithContext(c.logger, "provider status check failed", "provider_check_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "keeping last known provider status"),
			logging.String(logging.FieldErrorHint, "check that narrativd is running"),
		)
		return err
	}
	c.mu.Lock()
	changed := !c.known || !reflect.DeepEqual(c.latest, status)
	c.latest = status
	c.known = true
	c.mu.Unlock()
	if changed {
		c.logger.Debug("provider status changed",
			logging.Bool("gemini_llm", status.LLM.Gemini.Available),
			logging.Bool("ollama_llm", status.LLM.Ollama.Available),
			logging.Bool("fal", status.Image.Fal.Available),
			logging.Bool("gemini_image", status.Image.Gemini.Available),
			logging.Bool("huggingface", status.Image.HuggingFace.Available),
		)
		c.bus.Publish(events.Event{Topic: events.TopicProvidersChanged, Payload: status})
	}
	return nil
}

// Latest returns the last status and whether any poll has succeeded.
func (c *Checker) Latest() (Status, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest, c.known
}

// CanPlan reports whether llmProvider is usable for planning. An empty
// provider asks whether any LLM is, matching the daemon's fallback.
func (c *Checker) CanPlan(llmProvider string) bool {
	return c.Reason(Planning, llmProvider) == ""
}

// CanGenerate reports whether imageProvider is usable for image generation.
func (c *Checker) CanGenerate(imageProvider string) bool {
	return c.Reason(Generation, imageProvider) == ""
}

// Reason explains why provider cannot serve capability, or returns "" when it can.
func (c *Checker) Reason(capability Capability, provider string) string {
	status, known := c.Latest()
	if !known {
		return ReasonUnknown
	}
	if capability == Planning && provider == "" {
		return anyLLMReason(status)
	}
	avail, label, ok := lookup(status, capability, provider)
	if !ok {
		return fmt.Sprintf("unknown %s provider %q", capability, provider)
	}
	if avail.Available {
		return ""
	}
	if avail.Message != "" {
		return fmt.Sprintf("%s is unavailable: %s", label, avail.Message)
	}
	return fmt.Sprintf("%s is unavailable; add its API key or start the service", label)
}

func anyLLMReason(status Status) string {
	if status.LLM.Gemini.Available || status.LLM.Ollama.Available {
		return ""
	}
	return "no LLM is available; set a Gemini API key or start Ollama"
}

func lookup(status Status, capability Capability, provider string) (api.Availability, string, bool) {
	switch capability {
	case Planning:
		switch provider {
		case "gemini":
			return status.LLM.Gemini, "Gemini", true
		case "ollama":
			return status.LLM.Ollama, "Ollama", true
		}
	case Generation:
		switch provider {
		case "", "gemini-flash", "gemini-pro", "gemini":
			return status.Image.Gemini, "Gemini Imagen", true
		case "fal":
			return status.Image.Fal, "fal.ai", true
		case "huggingface":
			return status.Image.HuggingFace, "Hugging Face", true
		}
	}
	return api.Availability{}, "", false
}
