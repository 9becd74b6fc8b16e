package testsupport

import (
	"path/filepath"
	"testing"

	"narrativ/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Provider credentials are left empty unless an option sets them.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.ResearchDir = filepath.Join(base, "research")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Images.PublicBaseURL = "http://127.0.0.1:8000"
	cfgVal.Search.DuckDuckGo = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithGeminiKey sets the Gemini key used for both planning and images.
func WithGeminiKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.GeminiAPIKey = key
		b.cfg.Images.GoogleAPIKey = key
	}
}

// WithFalKey sets the fal.ai key on the test config.
func WithFalKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Images.FalAPIKey = key
	}
}

// WithOllama points the LLM section at an Ollama-compatible server.
func WithOllama(url, model string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.OllamaURL = url
		b.cfg.LLM.OllamaModel = model
	}
}

// WithoutResearchMirror disables markdown mirroring of research boards.
func WithoutResearchMirror() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.ResearchDir = ""
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
