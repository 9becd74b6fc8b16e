package preflight

import (
	"context"

	"narrativ/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Paths.ResearchDir != "" {
		results = append(results, CheckDirectoryAccess("Research directory", cfg.Paths.ResearchDir))
	}

	status := ProviderStatus(ctx, cfg)
	results = append(results, CheckLLMConfigured(status))
	results = append(results, CheckImageProvider(cfg.Images.Provider, status))
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
