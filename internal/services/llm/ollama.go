package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"narrativ/internal/services"
)

// OllamaConfig captures the settings required to reach a local Ollama server.
type OllamaConfig struct {
	BaseURL string
	// Model is the chat model. Blank selects the first installed text model.
	Model          string
	TimeoutSeconds int
}

// OllamaClient generates text through Ollama's OpenAI-compatible API.
type OllamaClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
	client     openai.Client
	retry      retryPolicy

	mu       sync.Mutex
	detected string
}

// NewOllamaClient constructs an Ollama backend.
func NewOllamaClient(cfg OllamaConfig, opts ...Option) *OllamaClient {
	s := newSettings(cfg.TimeoutSeconds, opts)
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultOllamaURL
	}
	return &OllamaClient{
		baseURL:    base,
		model:      strings.TrimSpace(cfg.Model),
		httpClient: s.httpClient,
		retry:      s.retry,
		client: openai.NewClient(
			option.WithBaseURL(base+"/v1/"),
			option.WithAPIKey("ollama"),
			option.WithHTTPClient(s.httpClient),
			option.WithMaxRetries(0),
		),
	}
}

// Name reports the provider name.
func (c *OllamaClient) Name() string { return ProviderOllama }

// Model reports the model a request made with ctx would use.
func (c *OllamaClient) Model(ctx context.Context) string {
	if override := ollamaModelFromContext(ctx); override != "" {
		return override
	}
	if c.model != "" {
		return c.model
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detected != "" {
		return c.detected
	}
	return DefaultOllamaModel
}

// Available reports whether the server answers /api/tags within two seconds.
func (c *OllamaClient) Available(ctx context.Context) bool {
	_, err := c.Models(ctx)
	return err == nil
}

// Models lists the installed model names.
func (c *OllamaClient) Models(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, availabilityTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("ollama tags: new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama tags: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama tags: http %d", resp.StatusCode)
	}
	var payload struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("ollama tags: decode: %w", err)
	}
	names := make([]string, 0, len(payload.Models))
	for _, m := range payload.Models {
		if name := strings.TrimSpace(m.Name); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// Generate sends the prompt to Ollama and returns the response text.
func (c *OllamaClient) Generate(ctx context.Context, prompt Prompt) (string, error) {
	user := strings.TrimSpace(prompt.User)
	if user == "" {
		return "", services.Wrap(services.ErrValidation, "llm", "ollama generate", "user prompt required", nil)
	}
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system := strings.TrimSpace(prompt.System); system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, userMessage(user, prompt.Images))
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.resolveModel(ctx)),
		Messages: messages,
	}
	if prompt.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}
	return c.retry.run(ctx, "ollama generate", func(ctx context.Context) (string, error) {
		resp, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", &emptyContentError{Op: "ollama generate"}
		}
		choice := resp.Choices[0]
		if strings.TrimSpace(choice.Message.Content) == "" {
			return "", &emptyContentError{
				Op:           "ollama generate",
				FinishReason: choice.FinishReason,
				Refusal:      choice.Message.Refusal,
			}
		}
		return choice.Message.Content, nil
	})
}

// userMessage sends images as base64 data URLs, which Ollama's vision models accept.
func userMessage(text string, images []Image) openai.ChatCompletionMessageParamUnion {
	if len(images) == 0 {
		return openai.UserMessage(text)
	}
	parts := []openai.ChatCompletionContentPartUnionParam{openai.TextContentPart(text)}
	for _, img := range images {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data),
		}))
	}
	return openai.UserMessage(parts)
}

// resolveModel returns the per-request or configured model, else the first
// installed model that is not an embedding model.
func (c *OllamaClient) resolveModel(ctx context.Context) string {
	if override := ollamaModelFromContext(ctx); override != "" {
		return override
	}
	if c.model != "" {
		return c.model
	}
	c.mu.Lock()
	detected := c.detected
	c.mu.Unlock()
	if detected != "" {
		return detected
	}
	names, err := c.Models(ctx)
	if err != nil {
		return DefaultOllamaModel
	}
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), "embed") {
			continue
		}
		c.mu.Lock()
		c.detected = name
		c.mu.Unlock()
		return name
	}
	return DefaultOllamaModel
}
