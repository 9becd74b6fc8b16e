package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"narrativ/internal/api"
	"narrativ/internal/boardstore"
	"narrativ/internal/config"
	"narrativ/internal/daemon"
	"narrativ/internal/imagegen"
	"narrativ/internal/logging"
	"narrativ/internal/research"
	"narrativ/internal/storyplan"
	"narrativ/internal/style"
	"narrativ/internal/testsupport"
)

type plannerStub struct {
	mu    sync.Mutex
	calls int
}

func (p *plannerStub) PlanStory(_ context.Context, req api.PlanStoryRequest) (storyplan.Plan, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return stubPlan(req.Topic, req.NumSlides), nil
}

func (p *plannerStub) PlanFromText(_ context.Context, req api.PlanFromTextRequest) (storyplan.Plan, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	topic := req.Topic
	if topic == "" {
		topic = storyplan.DefaultTextTopic
	}
	return stubPlan(topic, req.NumSlides), nil
}

func (p *plannerStub) AddSlides(_ context.Context, req api.AddSlidesRequest) (api.AddSlidesResponse, error) {
	plan := stubPlan(req.Topic, len(req.ExistingSlides)+req.AdditionalCount)
	return api.AddSlidesResponse{Slides: plan.Slides[len(req.ExistingSlides):]}, nil
}

func stubPlan(topic string, n int) storyplan.Plan {
	plan := storyplan.Plan{
		Topic:     topic,
		Aesthetic: style.Predefined()[0],
		StyleName: style.Predefined()[0].Name,
		Caption:   "A short caption",
		Hashtags:  []string{"#facts"},
		ImageSize: storyplan.SizeStory,
	}
	for i := 1; i <= n; i++ {
		plan.Slides = append(plan.Slides, storyplan.Slide{
			SlideNumber:       i,
			Title:             fmt.Sprintf("Slide %d", i),
			KeyFact:           fmt.Sprintf("Fact %d about %s", i, topic),
			VisualDescription: "a wide shot",
		})
	}
	return plan
}

// extractorStub describes every image the same way and records what it saw.
type extractorStub struct {
	mu   sync.Mutex
	reqs []research.ExtractStyleRequest
}

func (e *extractorStub) Extract(_ context.Context, req research.ExtractStyleRequest) (style.Style, error) {
	e.mu.Lock()
	e.reqs = append(e.reqs, req)
	e.mu.Unlock()
	st := style.Predefined()[0]
	st.ID = "extracted_1"
	st.Name = req.Name
	st.Custom = true
	return st, nil
}

// renderStub reports one file per slide it was asked to render.
type renderStub struct {
	dir string

	mu        sync.Mutex
	rendered  [][]int
	providers []string
}

func (r *renderStub) GenerateStory(_ context.Context, plan storyplan.Plan, opts imagegen.GenerateOptions) (imagegen.Story, error) {
	story := imagegen.Story{Folder: "story_test"}
	for _, s := range plan.Slides {
		story.Files = append(story.Files, fmt.Sprintf("slide%d.png", s.SlideNumber))
		story.SlideNumbers = append(story.SlideNumbers, s.SlideNumber)
	}
	r.mu.Lock()
	r.rendered = append(r.rendered, story.SlideNumbers)
	r.providers = append(r.providers, opts.Provider)
	r.mu.Unlock()
	return story, nil
}

func (r *renderStub) OutputDir() string { return r.dir }

func (r *renderStub) calls() [][]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]int(nil), r.rendered...)
}

type cliTestEnv struct {
	cfg        *config.Config
	store      *boardstore.Store
	planner    *plannerStub
	renderer   *renderStub
	extractor  *extractorStub
	daemon     *daemon.Daemon
	configPath string
	baseURL    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t, testsupport.WithoutResearchMirror())
	store := testsupport.MustOpenStore(t, cfg)
	planner := &plannerStub{}
	renderer := &renderStub{dir: cfg.Paths.OutputDir}
	extractor := &extractorStub{}

	d, err := daemon.New(cfg, daemon.Handlers{
		Planner:   planner,
		Images:    renderer,
		Store:     store,
		Styles:    style.NewCatalog(store),
		Extractor: extractor,
		ProviderStatus: func(context.Context) api.ProviderStatus {
			ok := api.Availability{Available: true}
			return api.ProviderStatus{
				LLM:    api.LLMStatus{Gemini: ok, Ollama: api.Availability{Message: "Start Ollama at http://localhost:11434"}},
				Vision: api.LLMStatus{Gemini: ok},
				Image:  api.ImageStatus{Gemini: ok, Fal: ok, HuggingFace: api.Availability{Message: "Set HF_API_KEY"}},
			}
		},
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		_ = d.Close()
	})

	baseURL := "http://" + d.Status().APIAddress
	configPath := filepath.Join(testsupport.BaseDir(cfg), "narrativ.toml")
	writeTestConfig(t, configPath, cfg, baseURL)

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		planner:    planner,
		renderer:   renderer,
		extractor:  extractor,
		daemon:     d,
		configPath: configPath,
		baseURL:    baseURL,
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, args, e.configPath)
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config, baseURL string) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\noutput_dir = %q\nlog_dir = %q\n\n[client]\nbackend_url = %q\n\n[workflow]\nprogress_tick_seconds = 1\n",
		cfg.Paths.DataDir,
		cfg.Paths.OutputDir,
		cfg.Paths.LogDir,
		baseURL,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
