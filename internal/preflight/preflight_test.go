package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"narrativ/internal/api"
	"narrativ/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func ollamaServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"models":[{"name":"qwen2.5:latest"}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProviderStatusReportsGuidance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.LLM.GeminiAPIKey = ""
	cfg.Images.GoogleAPIKey = ""
	cfg.Images.FalAPIKey = "fal-key"
	cfg.Images.HFAPIKey = ""
	cfg.LLM.OllamaURL = ollamaServer(t, http.StatusServiceUnavailable).URL

	got := ProviderStatus(context.Background(), cfg)
	want := api.ProviderStatus{
		LLM: api.LLMStatus{
			Gemini: api.Availability{Message: "Set GOOGLE_API_KEY"},
			Ollama: api.Availability{Message: "Start Ollama at " + cfg.LLM.OllamaURL},
		},
		Image: api.ImageStatus{
			Fal:         api.Availability{Available: true},
			Gemini:      api.Availability{Message: "Set GOOGLE_API_KEY"},
			HuggingFace: api.Availability{Message: "Set HF_API_KEY"},
		},
	}
	want.Vision = want.LLM
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("status mismatch (-want +got):\n%s", diff)
	}
}

func TestProviderStatusDetectsOllama(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.LLM.OllamaURL = ollamaServer(t, http.StatusOK).URL

	got := ProviderStatus(context.Background(), cfg)
	if !got.LLM.Ollama.Available || !got.Vision.Ollama.Available {
		t.Fatalf("expected ollama available, got %+v", got.LLM.Ollama)
	}
}

func TestRunAll(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	cfg.LLM.GeminiAPIKey = "key"
	cfg.Images.GoogleAPIKey = "key"
	cfg.Images.Provider = "gemini-flash"
	cfg.LLM.OllamaURL = ollamaServer(t, http.StatusServiceUnavailable).URL

	results := RunAll(context.Background(), cfg)
	if !AllPassed(results) {
		t.Fatalf("expected all checks to pass, got %+v", results)
	}

	cfg.LLM.GeminiAPIKey = ""
	results = RunAll(context.Background(), cfg)
	if AllPassed(results) {
		t.Fatal("expected LLM check to fail without any provider")
	}
	for _, r := range results {
		if r.Name == "LLM provider" && !strings.Contains(r.Detail, "Set GOOGLE_API_KEY") {
			t.Fatalf("expected guidance in detail, got %q", r.Detail)
		}
	}
}

func TestCheckImageProviderUnknown(t *testing.T) {
	if CheckImageProvider("dalle", api.ProviderStatus{}).Passed {
		t.Fatal("unknown provider should fail")
	}
}
