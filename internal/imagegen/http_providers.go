package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"narrativ/internal/storyplan"
)

const (
	defaultFalURL       = "https://fal.run"
	falModel            = "fal-ai/nano-banana-pro"
	defaultHFURL        = "https://router.huggingface.co/hf-inference/models"
	hfFastModel         = "black-forest-labs/FLUX.1-schnell"
	hfQualityModel      = "stabilityai/stable-diffusion-xl-base-1.0"
	maxProviderErrBody  = 2 << 10
	maxImageBytes       = 32 << 20
	hfQualityModeHigher = "quality"
)

// Dimensions returns the pixel size used by providers that take explicit sizes.
func Dimensions(size storyplan.ImageSize) (int, int) {
	if size == storyplan.SizeSquare {
		return 1024, 1024
	}
	return 768, 1365
}

func aspectPrefix(size storyplan.ImageSize) string {
	if size == storyplan.SizeSquare {
		return "[ASPECT: Square 1:1] "
	}
	return "[ASPECT: Vertical Portrait 9:16] "
}

// FalProvider renders with fal.ai.
type FalProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewFalProvider returns a fal.ai provider. baseURL may be blank.
func NewFalProvider(apiKey, baseURL string, httpClient *http.Client) *FalProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultFalURL
	}
	return &FalProvider{apiKey: strings.TrimSpace(apiKey), baseURL: baseURL, httpClient: httpClient}
}

func (p *FalProvider) Name() string    { return ProviderFal }
func (p *FalProvider) Available() bool { return p.apiKey != "" }

type falImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type falRequest struct {
	Prompt    string       `json:"prompt"`
	ImageSize falImageSize `json:"image_size"`
	NumImages int          `json:"num_images"`
	Seed      *int64       `json:"seed,omitempty"`
}

type falResponse struct {
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
}

// Generate submits a synchronous render and downloads the first image.
func (p *FalProvider) Generate(ctx context.Context, req Request) ([]byte, error) {
	width, height := Dimensions(req.Size)
	body, err := json.Marshal(falRequest{
		Prompt:    aspectPrefix(req.Size) + req.Prompt,
		ImageSize: falImageSize{Width: width, Height: height},
		NumImages: 1,
		Seed:      req.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("fal: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/"+falModel, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("fal: new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Key "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	respBody, err := p.do(httpReq)
	if err != nil {
		return nil, err
	}
	var decoded falResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("fal: decode response: %w", err)
	}
	if len(decoded.Images) == 0 || strings.TrimSpace(decoded.Images[0].URL) == "" {
		return nil, fmt.Errorf("fal: %w", errNoImage)
	}
	download, err := http.NewRequestWithContext(ctx, http.MethodGet, decoded.Images[0].URL, nil)
	if err != nil {
		return nil, fmt.Errorf("fal: download request: %w", err)
	}
	return p.do(download)
}

func (p *FalProvider) do(req *http.Request) ([]byte, error) {
	return doHTTP(p.httpClient, ProviderFal, req)
}

// HuggingFaceProvider renders with the HF inference API.
type HuggingFaceProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewHuggingFaceProvider returns an HF provider. baseURL may be blank.
func NewHuggingFaceProvider(apiKey, baseURL string, httpClient *http.Client) *HuggingFaceProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultHFURL
	}
	return &HuggingFaceProvider{apiKey: strings.TrimSpace(apiKey), baseURL: baseURL, httpClient: httpClient}
}

func (p *HuggingFaceProvider) Name() string    { return ProviderHuggingFace }
func (p *HuggingFaceProvider) Available() bool { return p.apiKey != "" }

// HFModel returns the model for a quality mode; anything but "quality" is fast.
func HFModel(mode string) string {
	if strings.EqualFold(strings.TrimSpace(mode), hfQualityModeHigher) {
		return hfQualityModel
	}
	return hfFastModel
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Seed   *int64 `json:"seed,omitempty"`
}

// Generate renders one image; the API answers with raw image bytes.
func (p *HuggingFaceProvider) Generate(ctx context.Context, req Request) ([]byte, error) {
	width, height := Dimensions(req.Size)
	body, err := json.Marshal(hfRequest{
		Inputs:     aspectPrefix(req.Size) + req.Prompt,
		Parameters: hfParameters{Width: width, Height: height, Seed: req.Seed},
	})
	if err != nil {
		return nil, fmt.Errorf("huggingface: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/"+HFModel(req.QualityMode), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("huggingface: new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "image/png")
	return doHTTP(p.httpClient, ProviderHuggingFace, httpReq)
}

func doHTTP(client *http.Client, provider string, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", provider, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxProviderErrBody))
		return nil, &StatusError{Provider: provider, StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", provider, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w", provider, errNoImage)
	}
	return data, nil
}
