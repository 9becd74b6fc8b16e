// Package llm generates planner text with Gemini or a local Ollama server.
//
// The research planner is the only caller. It sends a system and user prompt
// and expects either free text (captions, hashtags) or a JSON payload (slide
// lists, fact lists).
//
// # Backends
//
// GeminiClient calls the Gemini API through google.golang.org/genai.
// OllamaClient calls Ollama's OpenAI-compatible /v1 endpoint through
// github.com/openai/openai-go and checks /api/tags for readiness.
//
// # Routing
//
// Router.Generate tries the requested provider first. When that provider is
// unavailable (no API key, or Ollama unreachable) it falls back to the other
// one and reports which provider and model produced the text. When neither is
// available the error is tagged services.ErrConfiguration.
//
// # Retry Behaviour
//
// Both backends retry on HTTP 408/429/5xx errors, empty completions, and
// network timeouts with exponential backoff (base 1s, max 10s, up to 3
// attempts by default). Context cancellation aborts retries immediately.
// Exhausted retries are tagged services.ErrTransient; the router adds
// services.ErrPlanning on top.
//
// # JSON Payloads
//
// Models often wrap JSON in code fences or leave trailing commas. CleanJSON
// and DecodeJSON tolerate both.
package llm
