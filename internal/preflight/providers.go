package preflight

import (
	"context"
	"strings"

	"narrativ/internal/api"
	"narrativ/internal/config"
	"narrativ/internal/services/llm"
)

// Guidance shown for unavailable providers.
const (
	hintGoogleKey   = "Set GOOGLE_API_KEY"
	hintFalKey      = "Set FAL_API_KEY"
	hintHFKey       = "Set HF_API_KEY"
	hintStartOllama = "Start Ollama at "
)

// ProviderStatus reports which LLM, vision, and image backends are usable.
func ProviderStatus(ctx context.Context, cfg *config.Config) api.ProviderStatus {
	if cfg == nil {
		return api.ProviderStatus{}
	}
	gemini := keyAvailability(cfg.LLM.GeminiAPIKey, hintGoogleKey)

	ollamaClient := llm.NewOllamaClient(llm.OllamaConfig{
		BaseURL:        cfg.LLM.OllamaURL,
		Model:          cfg.LLM.OllamaModel,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	ollama := api.Availability{Available: true}
	if !ollamaClient.Available(ctx) {
		ollama = api.Availability{Message: hintStartOllama + cfg.LLM.OllamaURL}
	}

	llmStatus := api.LLMStatus{Gemini: gemini, Ollama: ollama}
	return api.ProviderStatus{
		LLM:    llmStatus,
		Vision: llmStatus,
		Image: api.ImageStatus{
			Fal:         keyAvailability(cfg.Images.FalAPIKey, hintFalKey),
			Gemini:      keyAvailability(cfg.Images.GoogleAPIKey, hintGoogleKey),
			HuggingFace: keyAvailability(cfg.Images.HFAPIKey, hintHFKey),
		},
	}
}

func keyAvailability(key, hint string) api.Availability {
	if strings.TrimSpace(key) == "" {
		return api.Availability{Message: hint}
	}
	return api.Availability{Available: true}
}
