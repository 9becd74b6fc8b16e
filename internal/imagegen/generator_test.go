package imagegen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"narrativ/internal/services"
	"narrativ/internal/storyplan"
	"narrativ/internal/style"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeProvider struct {
	name      string
	available bool
	mu        sync.Mutex
	calls     map[int]int
	fail      map[int][]error
	requests  []Request
}

func newFakeProvider(name string) *fakeProvider {
	return &fakeProvider{name: name, available: true, calls: map[int]int{}, fail: map[int][]error{}}
}

func (f *fakeProvider) Name() string    { return f.name }
func (f *fakeProvider) Available() bool { return f.available }

func (f *fakeProvider) Generate(_ context.Context, req Request) ([]byte, error) {
	slide := slideFromPrompt(req.Prompt)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	attempt := f.calls[slide]
	f.calls[slide]++
	if errs := f.fail[slide]; attempt < len(errs) && errs[attempt] != nil {
		return nil, errs[attempt]
	}
	return []byte(fmt.Sprintf("png-%d", slide)), nil
}

func slideFromPrompt(prompt string) int {
	var n, total int
	for _, line := range strings.Split(prompt, "\n") {
		if _, err := fmt.Sscanf(line, "SLIDE: %d of %d", &n, &total); err == nil {
			return n
		}
	}
	return 0
}

func testPlan(numbers ...int) storyplan.Plan {
	plan := storyplan.Plan{
		Topic:     "Deep Sea Creatures",
		Aesthetic: style.Style{ID: "cinematic", Name: "Cinematic", ArtStyle: "cinematic film still"},
		ImageSize: storyplan.SizeStory,
	}
	for _, n := range numbers {
		plan.Slides = append(plan.Slides, storyplan.Slide{
			SlideNumber:       n,
			Title:             fmt.Sprintf("Fact %d", n),
			KeyFact:           fmt.Sprintf("Key fact %d", n),
			VisualDescription: "glowing jellyfish",
		})
	}
	return plan
}

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func newTestGenerator(t *testing.T, providers ...Provider) (*Generator, *[]time.Duration) {
	t.Helper()
	var mu sync.Mutex
	sleeps := []time.Duration{}
	g := NewGenerator(t.TempDir(), providers,
		WithClock(func() time.Time { return fixedNow }),
		WithOptions(Options{RequestsPerSecond: 1000}),
		WithSleeper(func(_ context.Context, d time.Duration) error {
			mu.Lock()
			sleeps = append(sleeps, d)
			mu.Unlock()
			return nil
		}),
		WithSeed(func() int64 { return 42 }),
	)
	g.jitter = func() float64 { return 0.5 }
	return g, &sleeps
}

func TestFolderName(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"Deep Sea Creatures", "Deep Sea Creatures_20250314_092653"},
		{"What's up? / Docs", "What_s up_ _ Docs_20250314_092653"},
		{"A very long topic name that keeps going", "A very long topic na_20250314_092653"},
		{"  padded  ", "padded_20250314_092653"},
		{"", "story_20250314_092653"},
	}
	for _, tc := range tests {
		if got := FolderName(tc.topic, fixedNow); got != tc.want {
			t.Errorf("FolderName(%q) = %q, want %q", tc.topic, got, tc.want)
		}
	}
}

func TestGenerateStoryWritesFilesInSlideOrder(t *testing.T) {
	provider := newFakeProvider(ProviderGeminiFlash)
	g, _ := newTestGenerator(t, provider)

	story, err := g.GenerateStory(context.Background(), testPlan(1, 2, 3, 4), GenerateOptions{})
	if err != nil {
		t.Fatalf("GenerateStory: %v", err)
	}
	want := Story{
		Folder:       "Deep Sea Creatures_20250314_092653",
		Files:        []string{"slide1.png", "slide2.png", "slide3.png", "slide4.png"},
		SlideNumbers: []int{1, 2, 3, 4},
	}
	if diff := cmp.Diff(want, story); diff != "" {
		t.Fatalf("story mismatch (-want +got):\n%s", diff)
	}
	data, err := os.ReadFile(filepath.Join(g.OutputDir(), story.Folder, "slide3.png"))
	if err != nil {
		t.Fatalf("read slide: %v", err)
	}
	if string(data) != "png-3" {
		t.Fatalf("slide3 contents = %q", data)
	}
	for _, req := range provider.requests {
		if req.Seed != nil {
			t.Fatalf("imagen requests should not carry a seed")
		}
	}
}

func TestGenerateStorySkipsFailedSlides(t *testing.T) {
	provider := newFakeProvider(ProviderGeminiFlash)
	provider.fail[2] = []error{errors.New("content filtered")}
	g, sleeps := newTestGenerator(t, provider)

	story, err := g.GenerateStory(context.Background(), testPlan(1, 2, 3), GenerateOptions{})
	if err != nil {
		t.Fatalf("GenerateStory: %v", err)
	}
	if diff := cmp.Diff([]int{1, 3}, story.SlideNumbers); diff != "" {
		t.Fatalf("slide numbers (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"slide1.png", "slide3.png"}, story.Files); diff != "" {
		t.Fatalf("files (-want +got):\n%s", diff)
	}
	if provider.calls[2] != 1 {
		t.Fatalf("non rate-limit failure retried %d times", provider.calls[2])
	}
	if len(*sleeps) != 0 {
		t.Fatalf("unexpected backoff sleeps: %v", *sleeps)
	}
}

func TestGenerateStoryRetriesRateLimits(t *testing.T) {
	provider := newFakeProvider(ProviderGeminiFlash)
	provider.fail[1] = []error{
		&StatusError{Provider: "fake", StatusCode: 429, Body: "slow down"},
		errors.New("Quota exceeded for project"),
	}
	g, sleeps := newTestGenerator(t, provider)

	story, err := g.GenerateStory(context.Background(), testPlan(1), GenerateOptions{})
	if err != nil {
		t.Fatalf("GenerateStory: %v", err)
	}
	if diff := cmp.Diff([]int{1}, story.SlideNumbers); diff != "" {
		t.Fatalf("slide numbers (-want +got):\n%s", diff)
	}
	if provider.calls[1] != 3 {
		t.Fatalf("expected 3 attempts, got %d", provider.calls[1])
	}
	want := []time.Duration{1500 * time.Millisecond, 2500 * time.Millisecond}
	if diff := cmp.Diff(want, *sleeps); diff != "" {
		t.Fatalf("backoff (-want +got):\n%s", diff)
	}
}

func TestGenerateStoryGivesUpAfterMaxRetries(t *testing.T) {
	provider := newFakeProvider(ProviderGeminiFlash)
	limited := &StatusError{Provider: "fake", StatusCode: 429}
	provider.fail[1] = []error{limited, limited, limited, limited}
	g, _ := newTestGenerator(t, provider)

	story, err := g.GenerateStory(context.Background(), testPlan(1), GenerateOptions{})
	if err != nil {
		t.Fatalf("GenerateStory: %v", err)
	}
	if len(story.Files) != 0 || story.Folder == "" {
		t.Fatalf("expected empty story with folder, got %+v", story)
	}
	if provider.calls[1] != defaultMaxRetries {
		t.Fatalf("attempts = %d, want %d", provider.calls[1], defaultMaxRetries)
	}
}

func TestGenerateStorySeedsFal(t *testing.T) {
	provider := newFakeProvider(ProviderFal)
	g, _ := newTestGenerator(t, provider)

	if _, err := g.GenerateStory(context.Background(), testPlan(1, 2), GenerateOptions{Provider: ProviderFal}); err != nil {
		t.Fatalf("GenerateStory: %v", err)
	}
	for _, req := range provider.requests {
		if req.Seed == nil || *req.Seed != 42 {
			t.Fatalf("expected shared seed 42, got %v", req.Seed)
		}
	}
}

func TestGenerateStoryRejectsInvalidRequests(t *testing.T) {
	offline := newFakeProvider(ProviderFal)
	offline.available = false
	g, _ := newTestGenerator(t, newFakeProvider(ProviderGeminiFlash), offline)

	tests := []struct {
		name string
		opts GenerateOptions
		plan storyplan.Plan
	}{
		{"unknown", GenerateOptions{Provider: "dalle"}, testPlan(1)},
		{"unconfigured", GenerateOptions{Provider: ProviderFal}, testPlan(1)},
		{"empty plan", GenerateOptions{}, testPlan()},
		{"duplicate slide numbers", GenerateOptions{}, testPlan(1, 2, 2)},
		{"missing slide number", GenerateOptions{}, testPlan(0, 1)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := g.GenerateStory(context.Background(), tc.plan, tc.opts)
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestGenerateStoryHonoursCancellation(t *testing.T) {
	provider := newFakeProvider(ProviderGeminiFlash)
	g, _ := newTestGenerator(t, provider)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.GenerateStory(ctx, testPlan(1, 2), GenerateOptions{})
	if !errors.Is(err, services.ErrGeneration) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled generation error, got %v", err)
	}
}

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{&StatusError{StatusCode: 429}, true},
		{&StatusError{StatusCode: 500, Body: "boom"}, false},
		{errors.New("RESOURCE_EXHAUSTED: quota"), true},
		{errors.New("rate limit reached"), true},
		{errors.New("prompt blocked by safety filter"), false},
	}
	for _, tc := range tests {
		if got := IsRateLimited(tc.err); got != tc.want {
			t.Errorf("IsRateLimited(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
