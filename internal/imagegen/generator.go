package imagegen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"narrativ/internal/fileutil"
	"narrativ/internal/logging"
	"narrativ/internal/services"
	"narrativ/internal/storyplan"
)

const (
	defaultMaxWorkers        = 3
	defaultRequestsPerSecond = 2.0
	defaultMaxRetries        = 3
	maxFolderTopic           = 20
	folderTimeLayout         = "20060102_150405"
	maxSeed                  = math.MaxInt32
)

// Options tunes a generator.
type Options struct {
	MaxWorkers        int
	RequestsPerSecond float64
	MaxRetries        int
	// PerImageTimeout bounds one provider call; zero disables the bound.
	PerImageTimeout time.Duration
}

// GenerateOptions selects the provider for one story.
type GenerateOptions struct {
	Provider      string
	HFQualityMode string
	BrandID       string
}

// Story is the outcome of one generation run.
type Story struct {
	Folder       string
	Files        []string
	SlideNumbers []int
}

// Generator renders stories with a fixed set of providers.
type Generator struct {
	outputDir string
	providers map[string]Provider
	opts      Options
	logger    *slog.Logger
	now       func() time.Time
	sleep     func(context.Context, time.Duration) error
	seed      func() int64
	jitter    func() float64
	analyzer  ConsistencyAnalyzer
}

// Option customizes a Generator.
type Option func(*Generator)

// WithOptions overrides worker, pacing, and retry settings. Zero fields keep defaults.
func WithOptions(o Options) Option {
	return func(g *Generator) {
		if o.MaxWorkers > 0 {
			g.opts.MaxWorkers = o.MaxWorkers
		}
		if o.RequestsPerSecond > 0 {
			g.opts.RequestsPerSecond = o.RequestsPerSecond
		}
		if o.MaxRetries > 0 {
			g.opts.MaxRetries = o.MaxRetries
		}
		if o.PerImageTimeout > 0 {
			g.opts.PerImageTimeout = o.PerImageTimeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) { g.logger = logging.NewComponentLogger(logger, "imagegen") }
}

// WithClock overrides the time source used for folder names.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithSleeper overrides the retry sleep.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(g *Generator) {
		if sleep != nil {
			g.sleep = sleep
		}
	}
}

// WithConsistency runs analyzer once per multi-slide story and feeds its
// result into every slide prompt.
func WithConsistency(analyzer ConsistencyAnalyzer) Option {
	return func(g *Generator) { g.analyzer = analyzer }
}

// WithSeed overrides the per-story seed source.
func WithSeed(seed func() int64) Option {
	return func(g *Generator) {
		if seed != nil {
			g.seed = seed
		}
	}
}

// NewGenerator returns a generator writing under outputDir.
func NewGenerator(outputDir string, providers []Provider, opts ...Option) *Generator {
	g := &Generator{
		outputDir: outputDir,
		providers: make(map[string]Provider, len(providers)),
		opts: Options{
			MaxWorkers:        defaultMaxWorkers,
			RequestsPerSecond: defaultRequestsPerSecond,
			MaxRetries:        defaultMaxRetries,
		},
		logger: logging.NewComponentLogger(nil, "imagegen"),
		now:    time.Now,
		sleep:  sleepContext,
		seed:   func() int64 { return rand.Int64N(maxSeed) + 1 },
		jitter: rand.Float64,
	}
	for _, p := range providers {
		if p != nil {
			g.providers[p.Name()] = p
		}
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// OutputDir returns the root directory story folders are created in.
func (g *Generator) OutputDir() string { return g.outputDir }

// Providers lists configured provider names and whether each is usable.
func (g *Generator) Providers() map[string]bool {
	out := make(map[string]bool, len(g.providers))
	for name, p := range g.providers {
		out[name] = p.Available()
	}
	return out
}

// FolderName builds "<safe topic>_<YYYYmmdd_HHMMSS>" for a story.
func FolderName(topic string, now time.Time) string {
	var b strings.Builder
	for _, r := range topic {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == ' ', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	safe := []rune(b.String())
	if len(safe) > maxFolderTopic {
		safe = safe[:maxFolderTopic]
	}
	trimmed := strings.TrimSpace(string(safe))
	if trimmed == "" {
		trimmed = "story"
	}
	return trimmed + "_" + now.Format(folderTimeLayout)
}

type rendered struct {
	slide int
	file  string
}

// GenerateStory renders every slide of plan. Individual slide failures are
// logged and skipped; an empty Story with a nil error means nothing rendered.
func (g *Generator) GenerateStory(ctx context.Context, plan storyplan.Plan, opts GenerateOptions) (Story, error) {
	name := strings.TrimSpace(opts.Provider)
	if name == "" {
		name = ProviderGeminiFlash
	}
	provider, ok := g.providers[name]
	if !ok {
		return Story{}, services.Wrap(services.ErrValidation, "generate", "provider", fmt.Sprintf("unknown image provider %q", name), nil)
	}
	if !provider.Available() {
		return Story{}, services.Wrap(services.ErrValidation, "generate", "provider", fmt.Sprintf("image provider %q is not configured", name), nil)
	}
	if len(plan.Slides) == 0 {
		return Story{}, services.Wrap(services.ErrValidation, "generate", "slides", "plan has no slides", nil)
	}
	if err := storyplan.CheckNumbers(plan.Slides); err != nil {
		return Story{}, err
	}

	folder := FolderName(plan.Topic, g.now())
	dir := filepath.Join(g.outputDir, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Story{}, services.Wrap(services.ErrGeneration, "generate", "mkdir", "create story folder", err)
	}

	logger := logging.WithContext(ctx, g.logger).With(
		logging.String(logging.FieldTopic, plan.Topic),
		logging.String(logging.FieldProvider, name),
	)
	size := plan.ImageSize
	if size == "" {
		size = storyplan.SizeStory
	}
	var seed *int64
	if name == ProviderFal || name == ProviderHuggingFace {
		v := g.seed()
		seed = &v
	}
	total := len(plan.Slides)
	consistency := g.analyzeConsistency(ctx, logger, plan)
	limiter := rate.NewLimiter(rate.Limit(g.opts.RequestsPerSecond), 1)
	results := make([]*rendered, total)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.opts.MaxWorkers)
	for i, slide := range plan.Slides {
		eg.Go(func() error {
			req := Request{
				Prompt:      BuildPrompt(slide, plan.Topic, total, plan.Aesthetic, size, consistency),
				Size:        size,
				Seed:        seed,
				QualityMode: opts.HFQualityMode,
			}
			data, err := g.renderWithRetry(egCtx, limiter, provider, req)
			if err != nil {
				if egCtx.Err() != nil {
					return egCtx.Err()
				}
				logging.WarnWithContext(logger, "slide render failed",
					"slide_render_failed",
					logging.Int(logging.FieldSlideNumber, slide.SlideNumber),
					logging.Error(err),
					logging.String(logging.FieldImpact, "slide omitted from story"),
				)
				return nil
			}
			file := fmt.Sprintf("slide%d.png", slide.SlideNumber)
			if err := fileutil.WriteFileAtomic(filepath.Join(dir, file), data, 0o644); err != nil {
				logging.WarnWithContext(logger, "slide write failed",
					"slide_write_failed",
					logging.Int(logging.FieldSlideNumber, slide.SlideNumber),
					logging.Error(err),
				)
				return nil
			}
			results[i] = &rendered{slide: slide.SlideNumber, file: file}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Story{}, services.Wrap(services.ErrGeneration, "generate", "render", "story generation interrupted", err)
	}

	story := Story{Folder: folder}
	ordered := make([]rendered, 0, total)
	for _, r := range results {
		if r != nil {
			ordered = append(ordered, *r)
		}
	}
	sort.SliceStable(ordered, func(a, b int) bool { return ordered[a].slide < ordered[b].slide })
	for _, r := range ordered {
		story.Files = append(story.Files, r.file)
		story.SlideNumbers = append(story.SlideNumbers, r.slide)
	}
	logger.Info("story rendered",
		logging.String(logging.FieldEventType, "story_rendered"),
		logging.String("folder", folder),
		logging.Int("rendered", len(story.Files)),
		logging.Int("requested", total),
		logging.String("brand_id", opts.BrandID),
	)
	return story, nil
}

// analyzeConsistency returns nil for single-slide stories and when the
// analysis fails; slides then render without the shared descriptions.
func (g *Generator) analyzeConsistency(ctx context.Context, logger *slog.Logger, plan storyplan.Plan) *Consistency {
	if g.analyzer == nil || len(plan.Slides) < 2 {
		return nil
	}
	found, err := g.analyzer.Analyze(ctx, plan)
	if err != nil {
		logging.WarnWithContext(logger, "consistency analysis failed",
			"consistency_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "slides rendered without shared character descriptions"),
		)
		return nil
	}
	logger.Debug("consistency analysis", logging.String("summary", found.Summary()))
	if found.IsZero() {
		return nil
	}
	return &found
}

func (g *Generator) renderWithRetry(ctx context.Context, limiter *rate.Limiter, provider Provider, req Request) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < g.opts.MaxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
		data, err := g.renderOnce(ctx, provider, req)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !IsRateLimited(err) || attempt == g.opts.MaxRetries-1 {
			break
		}
		delay := time.Duration((math.Pow(2, float64(attempt)) + g.jitter()) * float64(time.Second))
		if err := g.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (g *Generator) renderOnce(ctx context.Context, provider Provider, req Request) ([]byte, error) {
	if g.opts.PerImageTimeout <= 0 {
		return provider.Generate(ctx, req)
	}
	callCtx, cancel := context.WithTimeout(ctx, g.opts.PerImageTimeout)
	defer cancel()
	data, err := provider.Generate(callCtx, req)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, fmt.Errorf("%s: timed out after %s: %w", provider.Name(), g.opts.PerImageTimeout, err)
	}
	return data, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
