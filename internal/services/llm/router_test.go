package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"narrativ/internal/logging"
	"narrativ/internal/services"
)

type fakeBackend struct {
	name      string
	model     string
	available bool
	text      string
	err       error
	calls     int
}

func (f *fakeBackend) Name() string                   { return f.name }
func (f *fakeBackend) Model(context.Context) string   { return f.model }
func (f *fakeBackend) Available(context.Context) bool { return f.available }

func (f *fakeBackend) Generate(context.Context, Prompt) (string, error) {
	f.calls++
	return f.text, f.err
}

func TestRouterUsesRequestedProvider(t *testing.T) {
	gemini := &fakeBackend{name: ProviderGemini, model: "gemini-2.0-flash", available: true, text: "from gemini"}
	ollama := &fakeBackend{name: ProviderOllama, model: "qwen2.5:latest", available: true, text: "from ollama"}
	router := NewRouter(logging.NewNop(), gemini, ollama)

	res, err := router.Generate(context.Background(), "ollama", Prompt{User: "hi"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text != "from ollama" || res.Provider != ProviderOllama || res.Model != "qwen2.5:latest" {
		t.Fatalf("unexpected result %+v", res)
	}
	if gemini.calls != 0 {
		t.Fatalf("gemini called %d times", gemini.calls)
	}
}

func TestRouterDefaultsToFirstBackend(t *testing.T) {
	gemini := &fakeBackend{name: ProviderGemini, model: "g", available: true, text: "g"}
	ollama := &fakeBackend{name: ProviderOllama, model: "o", available: true, text: "o"}
	router := NewRouter(nil, gemini, ollama)

	res, err := router.Generate(context.Background(), "", Prompt{User: "hi"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Provider != ProviderGemini {
		t.Fatalf("provider = %q, want gemini", res.Provider)
	}
}

func TestRouterFallsBack(t *testing.T) {
	tests := []struct {
		name      string
		requested string
		gemini    bool
		ollama    bool
		want      string
	}{
		{name: "gemini missing key", requested: "gemini", gemini: false, ollama: true, want: ProviderOllama},
		{name: "ollama not running", requested: "ollama", gemini: true, ollama: false, want: ProviderGemini},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gemini := &fakeBackend{name: ProviderGemini, model: "g", available: tc.gemini, text: "g"}
			ollama := &fakeBackend{name: ProviderOllama, model: "o", available: tc.ollama, text: "o"}
			router := NewRouter(logging.NewNop(), gemini, ollama)

			res, err := router.Generate(context.Background(), tc.requested, Prompt{User: "hi"})
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if res.Provider != tc.want {
				t.Fatalf("provider = %q, want %q", res.Provider, tc.want)
			}
		})
	}
}

func TestRouterNoProviderAvailable(t *testing.T) {
	gemini := &fakeBackend{name: ProviderGemini}
	ollama := &fakeBackend{name: ProviderOllama}
	router := NewRouter(logging.NewNop(), gemini, ollama)

	_, err := router.Generate(context.Background(), "gemini", Prompt{User: "hi"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if !strings.Contains(err.Error(), "No LLM provider available. Add Google API key or start Ollama.") {
		t.Fatalf("unexpected message: %v", err)
	}

	_, err = router.Generate(context.Background(), "ollama", Prompt{User: "hi"})
	if !strings.Contains(err.Error(), "Start Ollama or add Google API key.") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestRouterUnknownProvider(t *testing.T) {
	router := NewRouter(logging.NewNop(), &fakeBackend{name: ProviderGemini, available: true})
	_, err := router.Generate(context.Background(), "openrouter", Prompt{User: "hi"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRouterWrapsBackendFailureAsPlanning(t *testing.T) {
	gemini := &fakeBackend{name: ProviderGemini, available: true, err: errors.New("boom")}
	router := NewRouter(logging.NewNop(), gemini)
	_, err := router.Generate(context.Background(), "gemini", Prompt{User: "hi"})
	if !errors.Is(err, services.ErrPlanning) {
		t.Fatalf("expected ErrPlanning, got %v", err)
	}
	if services.HTTPStatus(err) != 502 {
		t.Fatalf("status = %d, want 502", services.HTTPStatus(err))
	}
}

func TestRouterAvailable(t *testing.T) {
	router := NewRouter(logging.NewNop(),
		&fakeBackend{name: ProviderGemini, available: false},
		&fakeBackend{name: ProviderOllama, available: true},
	)
	got := router.Available(context.Background())
	if len(got) != 1 || got[0] != ProviderOllama {
		t.Fatalf("Available = %v", got)
	}
	if router.IsAvailable(context.Background(), "gemini") {
		t.Fatal("gemini should be unavailable")
	}
	if router.IsAvailable(context.Background(), "fal") {
		t.Fatal("unknown provider should be unavailable")
	}
}
