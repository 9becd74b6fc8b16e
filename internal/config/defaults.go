package config

const (
	defaultDataDir             = "~/.local/share/narrativ"
	defaultOutputDir           = "~/.local/share/narrativ/output"
	defaultLogDir              = "~/.local/share/narrativ/logs"
	defaultAPIBind             = "127.0.0.1:8000"
	defaultRequestTimeout      = 300
	defaultHealthTimeout       = 3
	defaultLLMProvider         = "gemini"
	defaultGeminiModel         = "gemini-2.0-flash"
	defaultOllamaURL           = "http://localhost:11434"
	defaultOllamaModel         = "qwen2.5:latest"
	defaultLLMTimeoutSeconds   = 120
	defaultImageProvider       = "gemini-flash"
	defaultImageMaxWorkers     = 3
	defaultImageRequestsPerSec = 2
	defaultImageMaxRetries     = 3
	defaultImageTimeoutSeconds = 180
	defaultSearchCacheTTLHours = 24
	defaultTavilyBaseURL       = "https://api.tavily.com"
	defaultDuckDuckGoURL       = "https://html.duckduckgo.com"
	defaultProviderPollSeconds = 30
	defaultProgressTickSeconds = 12
	defaultNtfyTimeoutSeconds  = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// LLMProviders lists the accepted values for llm.provider.
var LLMProviders = []string{"gemini", "ollama"}

// ImageProviders lists the accepted values for images.provider.
var ImageProviders = []string{"gemini-flash", "gemini-pro", "fal", "huggingface"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Client: Client{
			BackendURL:     "http://" + defaultAPIBind,
			RequestTimeout: defaultRequestTimeout,
			HealthTimeout:  defaultHealthTimeout,
		},
		LLM: LLM{
			Provider:       defaultLLMProvider,
			GeminiModel:    defaultGeminiModel,
			OllamaURL:      defaultOllamaURL,
			OllamaModel:    defaultOllamaModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Images: Images{
			Provider:          defaultImageProvider,
			MaxWorkers:        defaultImageMaxWorkers,
			RequestsPerSecond: defaultImageRequestsPerSec,
			MaxRetries:        defaultImageMaxRetries,
			TimeoutSeconds:    defaultImageTimeoutSeconds,
		},
		Search: Search{
			TavilyBaseURL: defaultTavilyBaseURL,
			DuckDuckGo:    true,
			DuckDuckGoURL: defaultDuckDuckGoURL,
			CacheTTLHours: defaultSearchCacheTTLHours,
		},
		Workflow: Workflow{
			ProviderPollInterval: defaultProviderPollSeconds,
			ProgressTickSeconds:  defaultProgressTickSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
