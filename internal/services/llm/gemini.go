package llm

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"narrativ/internal/services"
)

// GeminiConfig captures the settings required to call the Gemini API.
type GeminiConfig struct {
	APIKey         string
	Model          string
	BaseURL        string
	TimeoutSeconds int
}

// GeminiClient generates text with the Gemini API.
type GeminiClient struct {
	model  string
	client *genai.Client
	retry  retryPolicy
}

// NewGeminiClient constructs a Gemini backend. A blank API key yields a client
// that reports itself unavailable.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig, opts ...Option) (*GeminiClient, error) {
	s := newSettings(cfg.TimeoutSeconds, opts)
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultGeminiModel
	}
	c := &GeminiClient{model: model, retry: s.retry}
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return c, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      key,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  s.httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: strings.TrimSpace(cfg.BaseURL)},
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "llm", "gemini client", "create client", err)
	}
	c.client = client
	return c, nil
}

// Name reports the provider name.
func (c *GeminiClient) Name() string { return ProviderGemini }

// Model reports the configured model.
func (c *GeminiClient) Model(context.Context) string { return c.model }

// Available reports whether an API key was configured.
func (c *GeminiClient) Available(context.Context) bool {
	return c != nil && c.client != nil
}

// Generate sends the prompt to Gemini and returns the response text.
func (c *GeminiClient) Generate(ctx context.Context, prompt Prompt) (string, error) {
	if !c.Available(ctx) {
		return "", services.Wrap(services.ErrConfiguration, "llm", "gemini generate", "Gemini client not available. Set GOOGLE_API_KEY.", nil)
	}
	user := strings.TrimSpace(prompt.User)
	if user == "" {
		return "", services.Wrap(services.ErrValidation, "llm", "gemini generate", "user prompt required", nil)
	}
	config := &genai.GenerateContentConfig{}
	if system := strings.TrimSpace(prompt.System); system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if prompt.JSON {
		config.ResponseMIMEType = "application/json"
	}
	contents := genai.Text(user)
	if len(prompt.Images) > 0 {
		parts := []*genai.Part{genai.NewPartFromText(user)}
		for _, img := range prompt.Images {
			parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
		}
		contents = []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	}
	return c.retry.run(ctx, "gemini generate", func(ctx context.Context) (string, error) {
		resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
		if err != nil {
			return "", err
		}
		text := strings.TrimSpace(resp.Text())
		if text == "" {
			empty := &emptyContentError{Op: "gemini generate"}
			if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
				empty.FinishReason = string(resp.Candidates[0].FinishReason)
			}
			if resp.PromptFeedback != nil {
				empty.Refusal = string(resp.PromptFeedback.BlockReason)
			}
			return "", empty
		}
		return text, nil
	})
}
