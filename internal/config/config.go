package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration for the daemon.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	OutputDir   string `toml:"output_dir"`
	ResearchDir string `toml:"research_dir"`
	LogDir      string `toml:"log_dir"`
	APIBind     string `toml:"api_bind"`
	APIToken    string `toml:"api_token"`
}

// Client contains settings the CLI uses to reach the daemon.
type Client struct {
	BackendURL     string `toml:"backend_url"`
	Token          string `toml:"token"`
	RequestTimeout int    `toml:"request_timeout"`
	HealthTimeout  int    `toml:"health_timeout"`
}

// LLM contains text generation settings used by the planner.
type LLM struct {
	Provider       string `toml:"provider"`
	GeminiAPIKey   string `toml:"gemini_api_key"`
	GeminiModel    string `toml:"gemini_model"`
	OllamaURL      string `toml:"ollama_url"`
	OllamaModel    string `toml:"ollama_model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Images contains image provider credentials and generation pacing.
type Images struct {
	Provider          string  `toml:"provider"`
	GoogleAPIKey      string  `toml:"google_api_key"`
	FalAPIKey         string  `toml:"fal_api_key"`
	HFAPIKey          string  `toml:"hf_api_key"`
	MaxWorkers        int     `toml:"max_workers"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	MaxRetries        int     `toml:"max_retries"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	PublicBaseURL     string  `toml:"public_base_url"`
	RetentionDays     int     `toml:"retention_days"`
}

// Search contains web research settings.
type Search struct {
	TavilyAPIKey  string `toml:"tavily_api_key"`
	TavilyBaseURL string `toml:"tavily_base_url"`
	// DuckDuckGo enables keyless HTML search when no Tavily key is set.
	DuckDuckGo    bool   `toml:"duckduckgo"`
	DuckDuckGoURL string `toml:"duckduckgo_url"`
	CacheTTLHours int    `toml:"cache_ttl_hours"`
}

// Workflow contains client-side timing for the generation workflow.
type Workflow struct {
	ProviderPollInterval int `toml:"provider_poll_interval"`
	ProgressTickSeconds  int `toml:"progress_tick_seconds"`
}

// Notifications configures ntfy push messages sent by the daemon.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Narrativ.
//
// Configuration sections by subsystem:
//   - Paths: daemon directories and API bind address
//   - Client: how the CLI reaches the daemon
//   - LLM: planner text generation (Gemini or Ollama)
//   - Images: image providers and generation pacing
//   - Search: Tavily research and cache lifetime
//   - Workflow: provider polling and progress animation intervals
//   - Notifications: optional ntfy topic for render results
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Client        Client        `toml:"client"`
	LLM           LLM           `toml:"llm"`
	Images        Images        `toml:"images"`
	Search        Search        `toml:"search"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/narrativ/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("narrativ.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.ResearchDir) != "" {
		if err := os.MkdirAll(c.Paths.ResearchDir, 0o755); err != nil {
			return fmt.Errorf("create research directory %q: %w", c.Paths.ResearchDir, err)
		}
	}
	return nil
}

// DatabasePath returns the board store location inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "boards.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "narrativd.lock")
}

// PIDPath returns the file narrativd records its process id in.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "narrativd.pid")
}

// DaemonLogPath returns the log file narrativd appends to.
func (c *Config) DaemonLogPath() string {
	return filepath.Join(c.Paths.LogDir, "narrativd.log")
}

// OutputRetention returns how long rendered story folders are kept. Zero
// keeps them forever.
func (c *Config) OutputRetention() time.Duration {
	return time.Duration(c.Images.RetentionDays) * 24 * time.Hour
}

// NotificationTimeout returns the ntfy request deadline.
func (c *Config) NotificationTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeout) * time.Second
}

// ProviderPollInterval returns the availability polling period.
func (c *Config) ProviderPollInterval() time.Duration {
	return time.Duration(c.Workflow.ProviderPollInterval) * time.Second
}

// ProgressTick returns the cosmetic per-slide progress interval.
func (c *Config) ProgressTick() time.Duration {
	return time.Duration(c.Workflow.ProgressTickSeconds) * time.Second
}

// RequestTimeout returns the CLI's per-request timeout for planning and generation.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Client.RequestTimeout) * time.Second
}

// HealthTimeout returns the short timeout used for readiness checks.
func (c *Config) HealthTimeout() time.Duration {
	return time.Duration(c.Client.HealthTimeout) * time.Second
}

// ResearchCacheTTL returns how long gathered research stays cached.
func (c *Config) ResearchCacheTTL() time.Duration {
	return time.Duration(c.Search.CacheTTLHours) * time.Hour
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
