package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"narrativ/internal/api"
	"narrativ/internal/logging"
	"narrativ/internal/services"
	"narrativ/internal/services/llm"
	"narrativ/internal/storyplan"
	"narrativ/internal/style"
)

const (
	defaultCacheTTL  = 24 * time.Hour
	fallbackStyleID  = "cinematic"
	fallbackCaption  = "Swipe through to discover fascinating facts about %s."
	cacheCleanupRate = 30 * time.Minute
)

var fallbackHashtags = []string{"DidYouKnow", "Facts", "Learn"}

// TextGenerator routes prompts to an LLM provider. *llm.Router satisfies it.
type TextGenerator interface {
	Generate(ctx context.Context, provider string, prompt llm.Prompt) (llm.Result, error)
}

// Planner produces story plans.
type Planner struct {
	llm    TextGenerator
	search Searcher
	cache  *cache.Cache
	styles *style.Catalog
	clock  func() time.Time
	logger *slog.Logger
}

// Option customizes a Planner.
type Option func(*Planner)

// WithSearch enables web research.
func WithSearch(s Searcher) Option {
	return func(p *Planner) {
		p.search = s
	}
}

// WithCacheTTL overrides how long gathered research is reused.
func WithCacheTTL(ttl time.Duration) Option {
	return func(p *Planner) {
		if ttl > 0 {
			p.cache = cache.New(ttl, cacheCleanupRate)
		}
	}
}

// WithStyles resolves requested aesthetics against catalog.
func WithStyles(catalog *style.Catalog) Option {
	return func(p *Planner) {
		if catalog != nil {
			p.styles = catalog
		}
	}
}

// WithClock overrides the clock used for search query years.
func WithClock(now func() time.Time) Option {
	return func(p *Planner) {
		if now != nil {
			p.clock = now
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Planner) {
		p.logger = logging.NewComponentLogger(logger, "research")
	}
}

// NewPlanner builds a planner around gen.
func NewPlanner(gen TextGenerator, opts ...Option) *Planner {
	p := &Planner{
		llm:    gen,
		cache:  cache.New(defaultCacheTTL, cacheCleanupRate),
		styles: style.NewCatalog(nil),
		clock:  time.Now,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PlanStory researches a topic and plans its slides.
func (p *Planner) PlanStory(ctx context.Context, req api.PlanStoryRequest) (storyplan.Plan, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return storyplan.Plan{}, services.Wrap(services.ErrValidation, "plan", "plan story", "Topic is required", nil)
	}
	if err := storyplan.ValidateCount(req.NumSlides); err != nil {
		return storyplan.Plan{}, err
	}
	size, err := storyplan.ParseImageSize(req.ImageSize)
	if err != nil {
		return storyplan.Plan{}, err
	}
	ctx = llm.WithOllamaModel(services.WithStage(services.WithTopic(ctx, topic), "plan"), req.OllamaModel)

	aesthetic, styleName := p.resolveAesthetic(ctx, req.LLMProvider, topic, req.Aesthetic)
	findings := p.Gather(ctx, topic)
	slides, result, err := p.planSlides(ctx, req.LLMProvider, topicSlidesPrompt(topic, req.NumSlides, findings, aesthetic.Description()), req.NumSlides)
	if err != nil {
		return storyplan.Plan{}, err
	}
	caption, hashtags := p.caption(ctx, req.LLMProvider, topic, slides)

	return storyplan.Plan{
		Topic:     topic,
		Aesthetic: aesthetic,
		StyleName: styleName,
		Slides:    slides,
		Caption:   caption,
		Hashtags:  hashtags,
		Sources:   findings.Sources,
		ImageSize: size,
		Provider:  result.Provider,
		Model:     result.Model,
	}, nil
}

// PlanFromText plans slides from pasted text without web research.
func (p *Planner) PlanFromText(ctx context.Context, req api.PlanFromTextRequest) (storyplan.Plan, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return storyplan.Plan{}, services.Wrap(services.ErrValidation, "plan", "plan from text", "Text content is required", nil)
	}
	if err := storyplan.ValidateCount(req.NumSlides); err != nil {
		return storyplan.Plan{}, err
	}
	size, err := storyplan.ParseImageSize(req.ImageSize)
	if err != nil {
		return storyplan.Plan{}, err
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		topic = storyplan.DefaultTextTopic
	}
	ctx = llm.WithOllamaModel(services.WithStage(services.WithTopic(ctx, topic), "plan"), req.OllamaModel)

	aesthetic, styleName := p.resolveAesthetic(ctx, req.LLMProvider, topic, req.Aesthetic)
	slides, result, err := p.planSlides(ctx, req.LLMProvider, textSlidesPrompt(text, req.NumSlides, aesthetic.Description()), req.NumSlides)
	if err != nil {
		return storyplan.Plan{}, err
	}
	caption, hashtags := p.caption(ctx, req.LLMProvider, topic, slides)

	return storyplan.Plan{
		Topic:     topic,
		Aesthetic: aesthetic,
		StyleName: styleName,
		Slides:    slides,
		Caption:   caption,
		Hashtags:  hashtags,
		ImageSize: size,
		Provider:  result.Provider,
		Model:     result.Model,
	}, nil
}

// AddSlides plans up to AdditionalCount slides after the existing ones.
func (p *Planner) AddSlides(ctx context.Context, req api.AddSlidesRequest) (api.AddSlidesResponse, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return api.AddSlidesResponse{}, services.Wrap(services.ErrValidation, "plan", "add slides", "Topic is required", nil)
	}
	existing := len(req.ExistingSlides)
	if existing >= storyplan.MaxSlides {
		return api.AddSlidesResponse{}, services.Wrap(services.ErrValidation, "plan", "add slides", fmt.Sprintf("Maximum %d slides reached", storyplan.MaxSlides), nil)
	}
	count := min(req.AdditionalCount, storyplan.MaxSlides-existing)
	if count <= 0 {
		return api.AddSlidesResponse{}, services.Wrap(services.ErrValidation, "plan", "add slides", "No slides to add", nil)
	}
	ctx = llm.WithOllamaModel(services.WithStage(services.WithTopic(ctx, topic), "add_slides"), req.OllamaModel)

	findings := p.Gather(ctx, topic)
	slides, _, err := p.planSlides(ctx, req.LLMProvider, moreSlidesPrompt(topic, req.ExistingSlides, count, findings), count)
	if err != nil {
		return api.AddSlidesResponse{}, err
	}
	for i := range slides {
		slides[i].SlideNumber = existing + i + 1
	}
	return api.AddSlidesResponse{Slides: slides, NewSources: findings.Sources}, nil
}

// planSlides asks for count slides and normalizes the reply.
func (p *Planner) planSlides(ctx context.Context, provider, prompt string, count int) ([]storyplan.Slide, llm.Result, error) {
	result, err := p.llm.Generate(ctx, provider, llm.Prompt{System: slideSystemPrompt, User: prompt, JSON: true})
	if err != nil {
		return nil, llm.Result{}, err
	}
	slides, err := decodeSlides(result.Text)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, p.logger), "slide plan undecodable",
			"plan_decode_failed",
			logging.String(logging.FieldProvider, result.Provider),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "retry or switch the LLM provider"),
			logging.String(logging.FieldImpact, "no plan produced"),
		)
		return nil, result, services.Wrap(services.ErrPlanning, "plan", "decode slides", "model returned an invalid slide list", err)
	}
	if len(slides) > count {
		slides = slides[:count]
	}
	return storyplan.Renumber(slides), result, nil
}

func decodeSlides(raw string) ([]storyplan.Slide, error) {
	var slides []storyplan.Slide
	if err := llm.DecodeJSON(raw, &slides); err != nil {
		// Some models wrap the array in an object.
		var wrapped struct {
			Slides []storyplan.Slide `json:"slides"`
		}
		if wrapErr := llm.DecodeJSON(raw, &wrapped); wrapErr != nil {
			return nil, err
		}
		slides = wrapped.Slides
	}
	kept := slides[:0]
	for _, s := range slides {
		s.Title = strings.TrimSpace(s.Title)
		s.KeyFact = strings.TrimSpace(s.KeyFact)
		s.VisualDescription = strings.TrimSpace(s.VisualDescription)
		s.Mood = strings.TrimSpace(s.Mood)
		if s.Title == "" && s.KeyFact == "" {
			continue
		}
		kept = append(kept, s)
	}
	if len(kept) == 0 {
		return nil, errors.New("no slides in response")
	}
	return kept, nil
}

// caption falls back to a generic caption when the call fails.
func (p *Planner) caption(ctx context.Context, provider, topic string, slides []storyplan.Slide) (string, []string) {
	fallback := func(err error) (string, []string) {
		logging.WarnWithContext(logging.WithContext(ctx, p.logger), "caption generation failed",
			"caption_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "plan uses a generic caption"),
		)
		return fmt.Sprintf(fallbackCaption, topic), append([]string(nil), fallbackHashtags...)
	}
	result, err := p.llm.Generate(ctx, provider, llm.Prompt{System: captionSystemPrompt, User: captionPrompt(topic, slides), JSON: true})
	if err != nil {
		return fallback(err)
	}
	var parsed struct {
		Caption  string   `json:"caption"`
		Hashtags []string `json:"hashtags"`
	}
	if err := llm.DecodeJSON(result.Text, &parsed); err != nil {
		return fallback(err)
	}
	hashtags := make([]string, 0, len(parsed.Hashtags))
	for _, tag := range parsed.Hashtags {
		if tag = strings.TrimPrefix(strings.TrimSpace(tag), "#"); tag != "" {
			hashtags = append(hashtags, tag)
		}
	}
	return strings.TrimSpace(parsed.Caption), hashtags
}

// resolveAesthetic returns the catalog style named by requested, or asks the
// LLM to design one from the hint.
func (p *Planner) resolveAesthetic(ctx context.Context, provider, topic, requested string) (style.Style, string) {
	if s, ok, err := p.styles.Lookup(ctx, requested); err == nil && ok {
		return s, s.Name
	}
	result, err := p.llm.Generate(ctx, provider, llm.Prompt{System: aestheticSystemPrompt, User: aestheticPrompt(topic, requested), JSON: true})
	if err == nil {
		var designed style.Style
		if err = llm.DecodeJSON(result.Text, &designed); err == nil && !designed.IsZero() {
			return designed, strings.TrimSpace(requested)
		}
	}
	p.logger.Debug("aesthetic fallback", logging.String(logging.FieldTopic, topic), logging.Error(err))
	s, _, _ := p.styles.Lookup(ctx, fallbackStyleID)
	return s, s.Name
}
