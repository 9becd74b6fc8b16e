package imagegen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"narrativ/internal/storyplan"
)

// Provider names.
const (
	ProviderGeminiFlash = "gemini-flash"
	ProviderGeminiPro   = "gemini-pro"
	ProviderFal         = "fal"
	ProviderHuggingFace = "huggingface"
)

// Request is a single image render.
type Request struct {
	Prompt string
	Size   storyplan.ImageSize
	// Seed keeps a story visually consistent on providers that accept one.
	Seed *int64
	// QualityMode selects the HuggingFace model ("fast" or "quality").
	QualityMode string
}

// Provider renders one image per request and returns PNG (or JPEG) bytes.
type Provider interface {
	Name() string
	Available() bool
	Generate(ctx context.Context, req Request) ([]byte, error)
}

// StatusError is a non-2xx response from an HTTP provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Provider, e.StatusCode, strings.TrimSpace(e.Body))
}

var errNoImage = errors.New("no image returned")

// IsRateLimited reports whether err looks like a quota or rate-limit failure.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED") {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "quota", "rate limit", "rate-limit", "ratelimit", "resource_exhausted"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// ImagenProvider renders with Google Imagen through the Gemini API.
type ImagenProvider struct {
	name   string
	model  string
	client *genai.Client
}

// Imagen model ids per provider name.
const (
	ImagenFastModel    = "imagen-3.0-fast-generate-001"
	ImagenQualityModel = "imagen-3.0-generate-002"
)

// NewImagenProviders returns the gemini-flash and gemini-pro providers sharing
// one client. Both report unavailable when apiKey is blank.
func NewImagenProviders(ctx context.Context, apiKey, baseURL string, httpClient *http.Client) ([]*ImagenProvider, error) {
	var client *genai.Client
	if key := strings.TrimSpace(apiKey); key != "" {
		var err error
		client, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:      key,
			Backend:     genai.BackendGeminiAPI,
			HTTPClient:  httpClient,
			HTTPOptions: genai.HTTPOptions{BaseURL: strings.TrimSpace(baseURL)},
		})
		if err != nil {
			return nil, fmt.Errorf("imagen client: %w", err)
		}
	}
	return []*ImagenProvider{
		{name: ProviderGeminiFlash, model: ImagenFastModel, client: client},
		{name: ProviderGeminiPro, model: ImagenQualityModel, client: client},
	}, nil
}

func (p *ImagenProvider) Name() string    { return p.name }
func (p *ImagenProvider) Available() bool { return p.client != nil }

// Generate renders one image.
func (p *ImagenProvider) Generate(ctx context.Context, req Request) ([]byte, error) {
	if p.client == nil {
		return nil, fmt.Errorf("%s: client not configured", p.name)
	}
	resp, err := p.client.Models.GenerateImages(ctx, p.model, req.Prompt, &genai.GenerateImagesConfig{
		NumberOfImages:    1,
		AspectRatio:       req.Size.AspectRatio(),
		OutputMIMEType:    "image/png",
		SafetyFilterLevel: genai.SafetyFilterLevelBlockOnlyHigh,
		PersonGeneration:  genai.PersonGenerationAllowAdult,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.name, err)
	}
	if resp == nil || len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, fmt.Errorf("%s: %w", p.name, errNoImage)
	}
	img := resp.GeneratedImages[0]
	if len(img.Image.ImageBytes) == 0 {
		if img.RAIFilteredReason != "" {
			return nil, fmt.Errorf("%s: filtered: %s", p.name, img.RAIFilteredReason)
		}
		return nil, fmt.Errorf("%s: %w", p.name, errNoImage)
	}
	return img.Image.ImageBytes, nil
}
