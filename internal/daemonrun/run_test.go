package daemonrun

import (
	"testing"

	"narrativ/internal/research"
	"narrativ/internal/testsupport"
)

func TestBuildSearcher(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if got := buildSearcher(cfg); got != nil {
		t.Fatalf("expected no searcher, got %T", got)
	}

	cfg.Search.DuckDuckGo = true
	if _, ok := buildSearcher(cfg).(*research.DuckDuckGoClient); !ok {
		t.Fatalf("expected duckduckgo fallback, got %T", buildSearcher(cfg))
	}

	cfg.Search.TavilyAPIKey = "tvly-key"
	if _, ok := buildSearcher(cfg).(*research.TavilyClient); !ok {
		t.Fatalf("expected tavily, got %T", buildSearcher(cfg))
	}
}
