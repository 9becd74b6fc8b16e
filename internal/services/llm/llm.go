package llm

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Provider names accepted by the router.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

const (
	DefaultGeminiModel = "gemini-2.0-flash"
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "qwen2.5:latest"

	defaultHTTPTimeout  = 120 * time.Second
	availabilityTimeout = 2 * time.Second
)

// Prompt is a single text generation request.
type Prompt struct {
	System string
	User   string
	// JSON asks the backend for a JSON-only response.
	JSON bool
	// Images are sent alongside User for vision models.
	Images []Image
}

// Image is inline image data for a vision prompt.
type Image struct {
	MIMEType string
	Data     []byte
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// Backend is a Generator the router can select by name.
type Backend interface {
	Generator
	Name() string
	Model(ctx context.Context) string
	Available(ctx context.Context) bool
}

type modelOverrideKey struct{}

// WithOllamaModel returns a context that asks the Ollama backend to use model
// for requests made with it. A blank model leaves ctx unchanged.
func WithOllamaModel(ctx context.Context, model string) context.Context {
	if model = strings.TrimSpace(model); model == "" {
		return ctx
	}
	return context.WithValue(ctx, modelOverrideKey{}, model)
}

func ollamaModelFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	model, _ := ctx.Value(modelOverrideKey{}).(string)
	return model
}

type settings struct {
	httpClient *http.Client
	retry      retryPolicy
}

// Option customizes a backend client.
type Option func(*settings)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *settings) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the default retry count (defaults to 3).
func WithRetryMaxAttempts(attempts int) Option {
	return func(s *settings) {
		s.retry.maxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(s *settings) {
		s.retry.baseDelay = baseDelay
		s.retry.maxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(s *settings) {
		s.retry.sleeper = sleeper
	}
}

func newSettings(timeoutSeconds int, opts []Option) settings {
	timeout := defaultHTTPTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	s := settings{
		httpClient: &http.Client{Timeout: timeout},
		retry:      defaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.httpClient == nil {
		s.httpClient = &http.Client{Timeout: timeout}
	}
	return s
}
