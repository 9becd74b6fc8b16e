package providers_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"narrativ/internal/api"
	"narrativ/internal/clock"
	"narrativ/internal/events"
	"narrativ/internal/providers"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSource struct {
	mu     sync.Mutex
	status api.ProviderStatus
	err    error
	polls  int
	polled chan struct{}
}

func newFakeSource(status api.ProviderStatus) *fakeSource {
	return &fakeSource{status: status, polled: make(chan struct{}, 16)}
}

func (f *fakeSource) CheckProviders(context.Context) (api.ProviderStatus, error) {
	f.mu.Lock()
	f.polls++
	status, err := f.status, f.err
	f.mu.Unlock()
	select {
	case f.polled <- struct{}{}:
	default:
	}
	return status, err
}

func (f *fakeSource) set(status api.ProviderStatus, err error) {
	f.mu.Lock()
	f.status, f.err = status, err
	f.mu.Unlock()
}

func (f *fakeSource) waitPoll(t *testing.T) {
	t.Helper()
	select {
	case <-f.polled:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for poll")
	}
}

func geminiOnly() api.ProviderStatus {
	var s api.ProviderStatus
	s.LLM.Gemini = api.Availability{Available: true}
	s.Image.Gemini = api.Availability{Available: true}
	s.Image.Fal = api.Availability{Message: "FAL_API_KEY not set"}
	return s
}

func TestUnknownBeforeFirstPoll(t *testing.T) {
	checker := providers.NewChecker(newFakeSource(geminiOnly()))
	if checker.CanPlan("gemini") || checker.CanGenerate("fal") {
		t.Fatal("expected capabilities false before polling")
	}
	if got := checker.Reason(providers.Planning, "gemini"); got != providers.ReasonUnknown {
		t.Fatalf("unexpected reason %q", got)
	}
	if _, known := checker.Latest(); known {
		t.Fatal("expected unknown status")
	}
}

func TestCapabilitiesAfterPoll(t *testing.T) {
	checker := providers.NewChecker(newFakeSource(geminiOnly()))
	if err := checker.Poll(context.Background()); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if !checker.CanPlan("gemini") || checker.CanPlan("ollama") {
		t.Fatal("unexpected planning capabilities")
	}
	if !checker.CanGenerate("gemini-pro") || checker.CanGenerate("fal") {
		t.Fatal("unexpected generation capabilities")
	}
	if reason := checker.Reason(providers.Generation, "fal"); !strings.Contains(reason, "FAL_API_KEY") {
		t.Fatalf("expected reason to carry status message, got %q", reason)
	}
	if reason := checker.Reason(providers.Generation, "midjourney"); !strings.Contains(reason, "unknown") {
		t.Fatalf("expected unknown provider reason, got %q", reason)
	}
}

func TestPlanningWithoutProviderAcceptsAnyLLM(t *testing.T) {
	ollamaOnly := api.ProviderStatus{}
	ollamaOnly.LLM.Ollama = api.Availability{Available: true}
	ollamaOnly.LLM.Gemini = api.Availability{Message: "GOOGLE_API_KEY not set"}
	source := newFakeSource(ollamaOnly)
	checker := providers.NewChecker(source)
	ctx := context.Background()
	if err := checker.Poll(ctx); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if !checker.CanPlan("") {
		t.Fatal("expected planning allowed while any LLM is up")
	}
	if checker.CanPlan("gemini") {
		t.Fatal("expected a named provider to be checked on its own")
	}

	source.set(api.ProviderStatus{}, nil)
	if err := checker.Poll(ctx); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if reason := checker.Reason(providers.Planning, ""); !strings.Contains(reason, "no LLM") {
		t.Fatalf("unexpected reason %q", reason)
	}
}

func TestFailedPollKeepsPreviousStatus(t *testing.T) {
	source := newFakeSource(geminiOnly())
	checker := providers.NewChecker(source)
	ctx := context.Background()
	if err := checker.Poll(ctx); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	source.set(api.ProviderStatus{}, errors.New("daemon down"))
	if err := checker.Poll(ctx); err == nil {
		t.Fatal("expected poll error")
	}
	if !checker.CanPlan("gemini") {
		t.Fatal("expected previous status to be kept")
	}
}

func TestRunPollsOnTickAndKeyChange(t *testing.T) {
	source := newFakeSource(geminiOnly())
	bus := events.NewBus(8)
	defer bus.Close()
	changes, unsubscribe := bus.Subscribe(events.TopicProvidersChanged)
	defer unsubscribe()

	manual := clock.NewManual()
	checker := providers.NewChecker(source,
		providers.WithBus(bus),
		providers.WithTicker(manual.Factory()),
		providers.WithInterval(30*time.Second),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		checker.Run(ctx)
	}()

	if period := <-manual.Created(); period != 30*time.Second {
		t.Fatalf("expected 30s poll interval, got %v", period)
	}
	source.waitPoll(t)
	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("expected providers.changed after first poll")
	}

	updated := geminiOnly()
	updated.Image.Fal = api.Availability{Available: true}
	source.set(updated, nil)
	manual.Tick()
	source.waitPoll(t)
	select {
	case evt := <-changes:
		if status, ok := evt.Payload.(api.ProviderStatus); !ok || !status.Image.Fal.Available {
			t.Fatalf("unexpected payload %#v", evt.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected providers.changed after tick")
	}

	bus.Publish(events.Event{Topic: events.TopicAPIKeysChanged})
	source.waitPoll(t)

	cancel()
	<-done
	if manual.Active() != 0 {
		t.Fatal("expected ticker stopped after Run returns")
	}
}

func TestKeyWatcherPublishesDebouncedChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[llm]\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	bus := events.NewBus(8)
	defer bus.Close()
	keys, unsubscribe := bus.Subscribe(events.TopicAPIKeysChanged)
	defer unsubscribe()

	watcher := providers.NewKeyWatcher(path, bus, nil)
	watcher.SetDebounce(50 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer watcher.Stop()

	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(other, []byte("x"), 0o644); err != nil {
		t.Fatalf("write other: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("[llm]\ngemini_api_key = \"k\"\n"), 0o644); err != nil {
			t.Fatalf("rewrite config: %v", err)
		}
	}

	select {
	case <-keys:
	case <-time.After(2 * time.Second):
		t.Fatal("expected apikeys.changed event")
	}
	select {
	case <-keys:
		t.Fatal("expected rapid writes to collapse into one event")
	case <-time.After(200 * time.Millisecond):
	}
}
