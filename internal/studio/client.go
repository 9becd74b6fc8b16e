package studio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"narrativ/internal/api"
	"narrativ/internal/logging"
	"narrativ/internal/services"
)

const (
	defaultTimeout       = 180 * time.Second
	defaultHealthTimeout = 3 * time.Second
	maxErrorBody         = 4 << 10
	userAgent            = "narrativ-cli/0.1"
)

// Config captures how the client reaches the daemon.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client talks to the daemon over HTTP.
type Client struct {
	baseURL       *url.URL
	token         string
	httpClient    *http.Client
	healthTimeout time.Duration
	logger        *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithHealthTimeout overrides the /health deadline (defaults to 3s).
func WithHealthTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.healthTimeout = timeout
		}
	}
}

// WithLogger attaches a logger for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "studio-client")
	}
}

// New constructs a client for the daemon at cfg.BaseURL.
func New(cfg Config, opts ...Option) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, services.Wrap(services.ErrConfiguration, "studio", "new client", "backend url is required", nil)
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, services.Wrap(services.ErrConfiguration, "studio", "new client", fmt.Sprintf("invalid backend url %q", raw), err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &Client{
		baseURL:       base,
		token:         strings.TrimSpace(cfg.Token),
		httpClient:    &http.Client{Timeout: timeout},
		healthTimeout: defaultHealthTimeout,
		logger:        logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// BaseURL returns the daemon address the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// StatusError is a non-2xx daemon response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// StatusCode extracts the HTTP status from err, or 0 when none is present.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + path
}

// do sends one request and decodes a JSON response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var reader io.Reader
	contentType := ""
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
		contentType = "application/json"
	}
	return c.send(ctx, method, path, reader, contentType, out)
}

// send issues one request with a pre-encoded body and decodes a JSON reply into out.
func (c *Client) send(ctx context.Context, method, path string, reader io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	requestID, ok := services.RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("daemon request failed",
			logging.String("method", method),
			logging.String("path", path),
			logging.String(logging.FieldCorrelationID, requestID),
			logging.Error(err),
		)
		return err
	}
	defer resp.Body.Close()
	c.logger.Debug("daemon request",
		logging.String("method", method),
		logging.String("path", path),
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldCorrelationID, requestID),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readStatusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func readStatusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(raw))
	var payload api.ErrorResponse
	if err := json.Unmarshal(raw, &payload); err == nil && strings.TrimSpace(payload.Error) != "" {
		msg = strings.TrimSpace(payload.Error)
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: msg}
}
