package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"narrativ/internal/config"
)

const userAgent = "narrativd/0.1"

// Service defines the notification surface used by the daemon.
type Service interface {
	NotifyStoryRendered(ctx context.Context, topic string, rendered, requested int, provider string) error
	NotifyRenderFailed(ctx context.Context, topic string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := cfg.NotificationTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyStoryRendered(ctx context.Context, topic string, rendered, requested int, provider string) error {
	topic = strings.TrimSpace(topic)
	data := payload{
		title:   "Narrativ - Story Ready",
		message: fmt.Sprintf("🖼️ %s: %d of %d slides rendered", topic, rendered, requested),
		tags:    []string{"narrativ", "render", "completed"},
	}
	if provider = strings.TrimSpace(provider); provider != "" {
		data.message += " with " + provider
	}
	switch {
	case rendered == 0:
		data.title = "Narrativ - No Images"
		data.tags = []string{"narrativ", "render", "empty"}
		data.priority = "high"
	case rendered < requested:
		data.title = "Narrativ - Story Partially Rendered"
		data.tags = []string{"narrativ", "render", "partial"}
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRenderFailed(ctx context.Context, topic string, err error) error {
	var builder strings.Builder
	builder.WriteString("❌ Render failed")
	if topic = strings.TrimSpace(topic); topic != "" {
		builder.WriteString(" for ")
		builder.WriteString(topic)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Narrativ - Error",
		message:  builder.String(),
		tags:     []string{"narrativ", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Narrativ - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"narrativ", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyStoryRendered(context.Context, string, int, int, string) error { return nil }
func (noopService) NotifyRenderFailed(context.Context, string, error) error             { return nil }
func (noopService) TestNotification(context.Context) error                              { return nil }
