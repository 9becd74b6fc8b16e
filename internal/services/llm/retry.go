package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"google.golang.org/genai"

	"narrativ/internal/services"
)

const (
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryAttempts  = 3
)

type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	sleeper     func(time.Duration)
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		maxAttempts: defaultRetryAttempts,
		baseDelay:   defaultRetryBaseDelay,
		maxDelay:    defaultRetryMaxDelay,
	}
}

type emptyContentError struct {
	Op           string
	FinishReason string
	Refusal      string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("%s: empty content (finish_reason=%q, refusal=%q)", e.Op, e.FinishReason, e.Refusal)
}

// run calls fn until it succeeds, returns a non-retryable error, or the
// attempts run out.
func (p retryPolicy) run(ctx context.Context, op string, fn func(context.Context) (string, error)) (string, error) {
	attempts := p.attempts()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		content, err := fn(ctx)
		if err == nil {
			if strings.TrimSpace(content) != "" {
				return strings.TrimSpace(content), nil
			}
			err = &emptyContentError{Op: op}
		}

		delay, retry := p.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			if attempt > 1 {
				return "", services.Wrap(services.ErrTransient, "llm", op, fmt.Sprintf("failed after %d attempts", attempt), err)
			}
			return "", err
		}
		if err := p.sleep(ctx, delay); err != nil {
			return "", err
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = errors.New("unknown retry failure")
	}
	return "", services.Wrap(services.ErrTransient, "llm", op, fmt.Sprintf("failed after %d attempts", attempts), lastErr)
}

func (p retryPolicy) attempts() int {
	if p.maxAttempts <= 0 {
		return 1
	}
	return p.maxAttempts
}

func (p retryPolicy) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil || ctx == nil {
		return 0, false
	}
	if ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var empty *emptyContentError
	if errors.As(err, &empty) {
		return p.backoffDelay(attempt), true
	}

	if status, retryAfter, ok := statusFromError(err); ok {
		switch {
		case status == http.StatusRequestTimeout,
			status == http.StatusTooManyRequests,
			status >= http.StatusInternalServerError:
			if retryAfter > 0 {
				return p.capDelay(retryAfter), true
			}
			return p.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return p.backoffDelay(attempt), true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return p.backoffDelay(attempt), true
	}

	return 0, false
}

// statusFromError extracts the HTTP status carried by SDK errors.
func statusFromError(err error) (int, time.Duration, bool) {
	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) {
		var retryAfter time.Duration
		if openaiErr.Response != nil {
			retryAfter, _ = parseRetryAfter(openaiErr.Response.Header.Get("Retry-After"))
		}
		return openaiErr.StatusCode, retryAfter, true
	}
	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return genaiErr.Code, 0, true
	}
	return 0, 0, false
}

func (p retryPolicy) backoffDelay(attempt int) time.Duration {
	base := defaultRetryBaseDelay
	maxDelay := defaultRetryMaxDelay
	if p.baseDelay >= 0 {
		base = p.baseDelay
	}
	if p.maxDelay > 0 {
		maxDelay = p.maxDelay
	}
	if base <= 0 {
		return 0
	}

	retryCount := attempt
	if retryCount <= 0 {
		retryCount = 1
	}

	// attempt 1 -> base, attempt 2 -> base*2, attempt 3 -> base*4, ...
	delay := base
	for i := 1; i < retryCount; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	return p.capDelay(delay)
}

func (p retryPolicy) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	maxDelay := defaultRetryMaxDelay
	if p.maxDelay > 0 {
		maxDelay = p.maxDelay
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (p retryPolicy) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if p.sleeper != nil {
		p.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
