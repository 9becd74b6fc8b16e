package studio

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"

	"narrativ/internal/api"
	"narrativ/internal/services"
	"narrativ/internal/style"
)

// CheckProviders reports which LLM and image backends the daemon can use.
func (c *Client) CheckProviders(ctx context.Context) (api.ProviderStatus, error) {
	var resp api.ProviderStatus
	if err := c.do(ctx, http.MethodGet, "/check_providers", nil, &resp); err != nil {
		return api.ProviderStatus{}, services.Wrap(services.ErrExternalTool, "providers", "check", "provider status request failed", err)
	}
	return resp, nil
}

// Health pings the daemon with a short deadline.
func (c *Client) Health(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()
	var resp api.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		if ctx.Err() != nil {
			return services.Wrap(services.ErrTimeout, "health", "ping", "daemon did not answer in time", err)
		}
		return services.Wrap(services.ErrExternalTool, "health", "ping", "daemon unreachable", err)
	}
	return nil
}

// Styles lists predefined and custom styles known to the daemon.
func (c *Client) Styles(ctx context.Context) ([]style.Style, error) {
	var resp api.StylesResponse
	if err := c.do(ctx, http.MethodGet, "/styles", nil, &resp); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "styles", "list", "styles request failed", err)
	}
	return resp.Styles, nil
}

// ListStyles satisfies style.CustomSource by returning only custom styles.
func (c *Client) ListStyles(ctx context.Context) ([]style.Style, error) {
	all, err := c.Styles(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]style.Style, 0, len(all))
	for _, st := range all {
		if st.Custom {
			out = append(out, st)
		}
	}
	return out, nil
}

// SaveStyle stores a custom style on the daemon.
func (c *Client) SaveStyle(ctx context.Context, st style.Style) (style.Style, error) {
	if err := st.Validate(); err != nil {
		return style.Style{}, err
	}
	var resp api.StyleResponse
	if err := c.do(ctx, http.MethodPost, "/styles", st, &resp); err != nil {
		return style.Style{}, services.Wrap(services.ErrPersistence, "styles", "save", "style request failed", err)
	}
	return resp.Style, nil
}

// DeleteStyle removes a custom style from the daemon.
func (c *Client) DeleteStyle(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/styles/"+url.PathEscape(id), nil, nil); err != nil {
		return services.Wrap(services.ErrPersistence, "styles", "delete", "style request failed", err)
	}
	return nil
}

// ExtractStyleRequest uploads a reference image for style extraction.
type ExtractStyleRequest struct {
	Name        string
	Filename    string
	Image       []byte
	LLMProvider string
	OllamaModel string
}

// ExtractStyle asks the daemon's vision model to describe the image's style.
// The returned style is not saved.
func (c *Client) ExtractStyle(ctx context.Context, req ExtractStyleRequest) (style.Style, error) {
	if len(req.Image) == 0 {
		return style.Style{}, services.Wrap(services.ErrValidation, "styles", "extract", "image is empty", nil)
	}
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	fields := [][2]string{{"name", req.Name}, {"llm_provider", req.LLMProvider}, {"ollama_model", req.OllamaModel}}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := form.WriteField(f[0], f[1]); err != nil {
			return style.Style{}, fmt.Errorf("encode form: %w", err)
		}
	}
	part, err := form.CreateFormFile("file", filepath.Base(req.Filename))
	if err != nil {
		return style.Style{}, fmt.Errorf("encode form: %w", err)
	}
	if _, err := part.Write(req.Image); err != nil {
		return style.Style{}, fmt.Errorf("encode form: %w", err)
	}
	if err := form.Close(); err != nil {
		return style.Style{}, fmt.Errorf("encode form: %w", err)
	}
	var resp api.StyleResponse
	if err := c.send(ctx, http.MethodPost, "/extract_style", &body, form.FormDataContentType(), &resp); err != nil {
		return style.Style{}, services.Wrap(services.ErrExternalTool, "styles", "extract", "style extraction failed", err)
	}
	return resp.Style, nil
}

// LogQuery selects a window of the daemon log. A negative Offset asks for the
// last Lines lines.
type LogQuery struct {
	Offset int64
	Lines  int
	Follow bool
}

// Logs reads the daemon log. With Follow set the daemon holds the request
// open until new lines are written or its wait elapses.
func (c *Client) Logs(ctx context.Context, q LogQuery) (api.LogTailResponse, error) {
	values := url.Values{}
	values.Set("offset", strconv.FormatInt(q.Offset, 10))
	if q.Lines > 0 {
		values.Set("lines", strconv.Itoa(q.Lines))
	}
	if q.Follow {
		values.Set("follow", "true")
	}
	var resp api.LogTailResponse
	if err := c.do(ctx, http.MethodGet, "/logs?"+values.Encode(), nil, &resp); err != nil {
		return api.LogTailResponse{}, services.Wrap(services.ErrExternalTool, "logs", "tail", "log request failed", err)
	}
	return resp, nil
}
