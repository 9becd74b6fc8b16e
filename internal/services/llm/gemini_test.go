package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"narrativ/internal/services"
)

func TestGeminiWithoutKeyIsUnavailable(t *testing.T) {
	client, err := NewGeminiClient(context.Background(), GeminiConfig{})
	if err != nil {
		t.Fatalf("NewGeminiClient: %v", err)
	}
	if client.Available(context.Background()) {
		t.Fatal("expected client without key to be unavailable")
	}
	if client.Model(context.Background()) != DefaultGeminiModel {
		t.Fatalf("model = %q, want %q", client.Model(context.Background()), DefaultGeminiModel)
	}
	_, err = client.Generate(context.Background(), Prompt{User: "hi"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestGeminiGenerate(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{
				map[string]any{
					"content": map[string]any{
						"role":  "model",
						"parts": []any{map[string]any{"text": " #tea #history "}},
					},
					"finishReason": "STOP",
				},
			},
		})
	}))
	defer server.Close()

	client, err := NewGeminiClient(context.Background(), GeminiConfig{APIKey: "test", BaseURL: server.URL + "/"})
	if err != nil {
		t.Fatalf("NewGeminiClient: %v", err)
	}
	text, err := client.Generate(context.Background(), Prompt{System: "write hashtags", User: "tea", JSON: true})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "#tea #history" {
		t.Fatalf("text = %q", text)
	}
	if !strings.HasSuffix(gotPath, "models/gemini-2.0-flash:generateContent") {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if _, ok := gotBody["systemInstruction"]; !ok {
		t.Fatalf("expected systemInstruction in request: %v", gotBody)
	}
	gen, _ := gotBody["generationConfig"].(map[string]any)
	if gen["responseMimeType"] != "application/json" {
		t.Fatalf("expected JSON mime type, got %v", gen)
	}
}
