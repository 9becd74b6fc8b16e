package preflight

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"narrativ/internal/api"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckLLMConfigured passes when at least one text backend can plan stories.
func CheckLLMConfigured(status api.ProviderStatus) Result {
	const name = "LLM provider"
	var ready []string
	if status.LLM.Gemini.Available {
		ready = append(ready, "gemini")
	}
	if status.LLM.Ollama.Available {
		ready = append(ready, "ollama")
	}
	if len(ready) == 0 {
		return Result{Name: name, Detail: "none available (" + status.LLM.Gemini.Message + "; " + status.LLM.Ollama.Message + ")"}
	}
	return Result{Name: name, Passed: true, Detail: strings.Join(ready, ", ")}
}

// CheckImageProvider verifies the configured default image provider is usable.
func CheckImageProvider(provider string, status api.ProviderStatus) Result {
	name := "Image provider (" + provider + ")"
	var avail api.Availability
	switch provider {
	case "gemini-flash", "gemini-pro":
		avail = status.Image.Gemini
	case "fal":
		avail = status.Image.Fal
	case "huggingface":
		avail = status.Image.HuggingFace
	default:
		return Result{Name: name, Detail: "unknown provider"}
	}
	if !avail.Available {
		return Result{Name: name, Detail: avail.Message}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
}
