package config

import (
	"fmt"
	"net"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeClient()
	c.normalizeLLM()
	c.normalizeImages()
	c.normalizeSearch()
	c.normalizeWorkflow()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.ResearchDir, err = expandPath(strings.TrimSpace(c.Paths.ResearchDir)); err != nil {
		return fmt.Errorf("paths.research_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	if port, ok := os.LookupEnv("NARRATIV_PORT"); ok && strings.TrimSpace(port) != "" && c.Paths.APIBind == defaultAPIBind {
		c.Paths.APIBind = net.JoinHostPort("127.0.0.1", strings.TrimSpace(port))
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeClient() {
	c.Client.BackendURL = strings.TrimRight(strings.TrimSpace(c.Client.BackendURL), "/")
	if c.Client.BackendURL == "" || c.Client.BackendURL == "http://"+defaultAPIBind {
		c.Client.BackendURL = "http://" + c.Paths.APIBind
	}
	c.Client.Token = strings.TrimSpace(c.Client.Token)
	if c.Client.Token == "" {
		c.Client.Token = c.Paths.APIToken
	}
	if c.Client.RequestTimeout <= 0 {
		c.Client.RequestTimeout = defaultRequestTimeout
	}
	if c.Client.HealthTimeout <= 0 {
		c.Client.HealthTimeout = defaultHealthTimeout
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Provider == "" {
		c.LLM.Provider = defaultLLMProvider
	}
	c.LLM.GeminiAPIKey = strings.TrimSpace(c.LLM.GeminiAPIKey)
	if c.LLM.GeminiAPIKey == "" {
		if value, ok := os.LookupEnv("GOOGLE_API_KEY"); ok {
			c.LLM.GeminiAPIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("GEMINI_API_KEY"); ok {
			c.LLM.GeminiAPIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.GeminiModel = strings.TrimSpace(c.LLM.GeminiModel)
	if c.LLM.GeminiModel == "" {
		c.LLM.GeminiModel = defaultGeminiModel
	}
	c.LLM.OllamaURL = strings.TrimRight(strings.TrimSpace(c.LLM.OllamaURL), "/")
	if value, ok := os.LookupEnv("OLLAMA_URL"); ok && strings.TrimSpace(value) != "" && (c.LLM.OllamaURL == "" || c.LLM.OllamaURL == defaultOllamaURL) {
		c.LLM.OllamaURL = strings.TrimRight(strings.TrimSpace(value), "/")
	}
	if c.LLM.OllamaURL == "" {
		c.LLM.OllamaURL = defaultOllamaURL
	}
	c.LLM.OllamaModel = strings.TrimSpace(c.LLM.OllamaModel)
	if value, ok := os.LookupEnv("OLLAMA_MODEL"); ok && strings.TrimSpace(value) != "" && (c.LLM.OllamaModel == "" || c.LLM.OllamaModel == defaultOllamaModel) {
		c.LLM.OllamaModel = strings.TrimSpace(value)
	}
	if c.LLM.OllamaModel == "" {
		c.LLM.OllamaModel = defaultOllamaModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeImages() {
	c.Images.Provider = strings.ToLower(strings.TrimSpace(c.Images.Provider))
	if c.Images.Provider == "" {
		c.Images.Provider = defaultImageProvider
	}
	c.Images.GoogleAPIKey = strings.TrimSpace(c.Images.GoogleAPIKey)
	if c.Images.GoogleAPIKey == "" {
		c.Images.GoogleAPIKey = c.LLM.GeminiAPIKey
	}
	c.Images.FalAPIKey = strings.TrimSpace(c.Images.FalAPIKey)
	if c.Images.FalAPIKey == "" {
		if value, ok := os.LookupEnv("FAL_API_KEY"); ok {
			c.Images.FalAPIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("FAL_KEY"); ok {
			c.Images.FalAPIKey = strings.TrimSpace(value)
		}
	}
	c.Images.HFAPIKey = strings.TrimSpace(c.Images.HFAPIKey)
	if c.Images.HFAPIKey == "" {
		if value, ok := os.LookupEnv("HF_API_KEY"); ok {
			c.Images.HFAPIKey = strings.TrimSpace(value)
		}
	}
	if c.Images.MaxWorkers <= 0 {
		c.Images.MaxWorkers = defaultImageMaxWorkers
	}
	if c.Images.RequestsPerSecond <= 0 {
		c.Images.RequestsPerSecond = defaultImageRequestsPerSec
	}
	if c.Images.MaxRetries <= 0 {
		c.Images.MaxRetries = defaultImageMaxRetries
	}
	if c.Images.TimeoutSeconds <= 0 {
		c.Images.TimeoutSeconds = defaultImageTimeoutSeconds
	}
	if c.Images.RetentionDays < 0 {
		c.Images.RetentionDays = 0
	}
	c.Images.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Images.PublicBaseURL), "/")
	if c.Images.PublicBaseURL == "" {
		port := "8000"
		if _, p, err := net.SplitHostPort(c.Paths.APIBind); err == nil && p != "" {
			port = p
		}
		c.Images.PublicBaseURL = "http://localhost:" + port
	}
}

func (c *Config) normalizeSearch() {
	c.Search.TavilyAPIKey = strings.TrimSpace(c.Search.TavilyAPIKey)
	if c.Search.TavilyAPIKey == "" {
		if value, ok := os.LookupEnv("TAVILY_API_KEY"); ok {
			c.Search.TavilyAPIKey = strings.TrimSpace(value)
		}
	}
	c.Search.TavilyBaseURL = strings.TrimRight(strings.TrimSpace(c.Search.TavilyBaseURL), "/")
	if c.Search.TavilyBaseURL == "" {
		c.Search.TavilyBaseURL = defaultTavilyBaseURL
	}
	c.Search.DuckDuckGoURL = strings.TrimRight(strings.TrimSpace(c.Search.DuckDuckGoURL), "/")
	if c.Search.DuckDuckGoURL == "" {
		c.Search.DuckDuckGoURL = defaultDuckDuckGoURL
	}
	if c.Search.CacheTTLHours <= 0 {
		c.Search.CacheTTLHours = defaultSearchCacheTTLHours
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.ProviderPollInterval <= 0 {
		c.Workflow.ProviderPollInterval = defaultProviderPollSeconds
	}
	if c.Workflow.ProgressTickSeconds <= 0 {
		c.Workflow.ProgressTickSeconds = defaultProgressTickSeconds
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
