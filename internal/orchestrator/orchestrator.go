// Package orchestrator drives one story from submission through research,
// review, and image generation.
//
// The workflow is a tagged state machine:
//
//	Idle -> Researching -> Reviewing -> GeneratingImages -> Idle
//
// Reviewing also returns to Idle when research is saved without images, and
// Idle can jump straight to GeneratingImages to regenerate a saved research
// board. Every failure is published as a Failed state before the machine
// returns to Idle. State changes, progress ticks, and notices go out on the
// events bus.
//
// Research is always persisted before images are requested, so a failed or
// empty generation never loses the plan.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"narrativ/internal/api"
	"narrativ/internal/clock"
	"narrativ/internal/events"
	"narrativ/internal/logging"
	"narrativ/internal/providers"
	"narrativ/internal/services"
	"narrativ/internal/storyplan"
	"narrativ/internal/studio"
	"narrativ/internal/style"
)

var (
	// ErrInvalidTransition is returned when an operation is not allowed in the current state.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrCanceled is returned by Submit when Cancel discarded its result.
	ErrCanceled = errors.New("research canceled")
)

// Planner produces and extends plans.
type Planner interface {
	PlanStory(ctx context.Context, req studio.PlanRequest) (storyplan.Plan, error)
	PlanFromText(ctx context.Context, req studio.TextPlanRequest) (storyplan.Plan, error)
	AddSlides(ctx context.Context, req studio.AddSlidesRequest) (studio.AddSlidesResult, error)
}

// Generator renders images for a plan.
type Generator interface {
	Generate(ctx context.Context, req studio.GenerateRequest) (studio.Generated, error)
}

// Boards persists research and image boards.
type Boards interface {
	SaveResearch(ctx context.Context, board api.ResearchBoard) (api.ResearchBoard, error)
	AddImages(ctx context.Context, board api.ImageBoard) (api.ImageBoard, error)
	FindResearch(id string) (api.ResearchBoard, bool)
}

// Gate answers whether a provider is currently usable.
type Gate interface {
	CanPlan(llmProvider string) bool
	CanGenerate(imageProvider string) bool
	Reason(capability providers.Capability, provider string) string
}

// Deps are the collaborators the orchestrator calls.
type Deps struct {
	Planner   Planner
	Generator Generator
	Boards    Boards
	Providers Gate
	Bus       *events.Bus
	Clock     func() time.Time
	Tickers   clock.TickerFactory
	Logger    *slog.Logger
}

// Options are the user's workflow settings.
type Options struct {
	ProgressInterval time.Duration
	LLMProvider      string
	// PinLLM gates planning on LLMProvider alone. Otherwise any available LLM
	// will do, since the daemon falls back from an unavailable one.
	PinLLM        bool
	OllamaModel   string
	ImageProvider string
	BrandID       string
	HFQualityMode string
}

const defaultProgressInterval = 12 * time.Second

// Orchestrator owns the workflow state. All methods are safe for concurrent use.
type Orchestrator struct {
	deps Deps
	opts Options

	mu         sync.Mutex
	state      State
	last       *Result
	epoch      uint64
	cancelPlan context.CancelFunc
	extending  bool
}

// New returns an orchestrator in Idle.
func New(deps Deps, opts Options) *Orchestrator {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Tickers == nil {
		deps.Tickers = clock.NewTicker
	}
	deps.Logger = logging.NewComponentLogger(deps.Logger, "orchestrator")
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = defaultProgressInterval
	}
	return &Orchestrator{deps: deps, opts: opts, state: Idle{}}
}

// State returns a copy of the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return snapshot(o.state)
}

func (o *Orchestrator) setStateLocked(s State) {
	o.state = s
	o.deps.Logger.Debug("phase changed", logging.String(logging.FieldStage, s.Phase()))
	o.deps.Bus.Publish(events.Event{Topic: events.TopicPhaseChanged, Payload: snapshot(s)})
}

// failLocked publishes Failed for err and settles in Idle.
func (o *Orchestrator) failLocked(ctx context.Context, op string, err error) {
	kind := services.Kind(err)
	logging.WarnWithContext(logging.WithContext(ctx, o.deps.Logger), op+" failed", op+"_failed",
		logging.String("kind", kind),
		logging.Error(err),
		logging.String(logging.FieldImpact, "workflow returned to idle"),
		logging.String(logging.FieldErrorHint, hintFor(kind)),
	)
	o.setStateLocked(Failed{Message: err.Error(), Kind: kind})
	o.setStateLocked(Idle{Last: o.last})
}

func hintFor(kind string) string {
	switch kind {
	case "planning":
		return "check the LLM provider key or try another provider"
	case "generation":
		return "check the image provider key or try another provider"
	case "timeout":
		return "the daemon is slow to respond; try fewer slides"
	default:
		return "check narrativd logs for details"
	}
}

func (o *Orchestrator) notice(level events.NoticeLevel, kind, message string) {
	o.deps.Bus.Publish(events.Event{
		Topic:   events.TopicNotice,
		Payload: events.Notice{Level: level, Kind: kind, Message: message},
	})
}

func invalid(op string, s State) error {
	return fmt.Errorf("%w: %s not allowed while %s", ErrInvalidTransition, op, s.Phase())
}

func (o *Orchestrator) gatePlan() error {
	var llm string
	if o.opts.PinLLM {
		llm = o.opts.LLMProvider
	}
	if o.deps.Providers == nil || o.deps.Providers.CanPlan(llm) {
		return nil
	}
	return services.Wrap(services.ErrValidation, "submit", "provider", o.deps.Providers.Reason(providers.Planning, llm), nil)
}

func (o *Orchestrator) gateGenerate() error {
	if o.deps.Providers == nil || o.deps.Providers.CanGenerate(o.opts.ImageProvider) {
		return nil
	}
	return services.Wrap(services.ErrValidation, "generate", "provider", o.deps.Providers.Reason(providers.Generation, o.opts.ImageProvider), nil)
}

// Submit researches the input and moves to Reviewing. Validation failures
// leave the state unchanged and make no network call.
func (o *Orchestrator) Submit(ctx context.Context, in Input) error {
	if err := in.validate(); err != nil {
		return err
	}
	o.mu.Lock()
	if _, ok := o.state.(Idle); !ok {
		err := invalid("submit", o.state)
		o.mu.Unlock()
		return err
	}
	if err := o.gatePlan(); err != nil {
		o.mu.Unlock()
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.epoch++
	epoch := o.epoch
	o.cancelPlan = cancel
	o.setStateLocked(Researching{Request: in})
	o.mu.Unlock()

	topic := in.Topic
	if in.Mode == ModeText && topic == "" {
		topic = storyplan.DefaultTextTopic
	}
	runCtx = services.WithTopic(services.WithStage(runCtx, "researching"), topic)
	plan, err := o.plan(runCtx, in)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.epoch != epoch {
		o.deps.Logger.Debug("discarding canceled research", logging.String(logging.FieldTopic, topic))
		return ErrCanceled
	}
	o.cancelPlan = nil
	if err != nil {
		o.failLocked(runCtx, "planning", err)
		return err
	}
	o.deps.Logger.Info("plan ready",
		logging.String(logging.FieldTopic, plan.Topic),
		logging.Int("slides", len(plan.Slides)),
	)
	o.setStateLocked(Reviewing{Review: storyplan.NewReview(plan), Mode: ModeSelectable})
	return nil
}

func (o *Orchestrator) plan(ctx context.Context, in Input) (storyplan.Plan, error) {
	if in.Mode == ModeText {
		return o.deps.Planner.PlanFromText(ctx, studio.TextPlanRequest{
			Text:        in.Text,
			Topic:       in.Topic,
			NumSlides:   in.NumSlides,
			Style:       in.Style,
			ImageSize:   in.ImageSize,
			LLMProvider: o.opts.LLMProvider,
			OllamaModel: o.opts.OllamaModel,
		})
	}
	return o.deps.Planner.PlanStory(ctx, studio.PlanRequest{
		Topic:       in.Topic,
		NumSlides:   in.NumSlides,
		Style:       in.Style,
		ImageSize:   in.ImageSize,
		LLMProvider: o.opts.LLMProvider,
		OllamaModel: o.opts.OllamaModel,
	})
}

// Cancel abandons an in-flight research request and returns to Idle.
func (o *Orchestrator) Cancel() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.state.(Researching); !ok {
		return invalid("cancel", o.state)
	}
	o.epoch++
	if o.cancelPlan != nil {
		o.cancelPlan()
		o.cancelPlan = nil
	}
	o.setStateLocked(Idle{Last: o.last})
	return nil
}

// withReview applies fn to the live review and republishes the state.
func (o *Orchestrator) withReview(op string, fn func(r *Reviewing) error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	rv, ok := o.state.(Reviewing)
	if !ok {
		return invalid(op, o.state)
	}
	if err := fn(&rv); err != nil {
		return err
	}
	o.setStateLocked(rv)
	return nil
}

// Toggle flips the selection of slide n.
func (o *Orchestrator) Toggle(n int) error {
	return o.withReview("toggle", func(r *Reviewing) error { return r.Review.Toggle(n) })
}

// SelectOnly selects exactly the given slides.
func (o *Orchestrator) SelectOnly(numbers ...int) error {
	return o.withReview("select", func(r *Reviewing) error { return r.Review.SelectOnly(numbers...) })
}

// SelectAll selects every slide.
func (o *Orchestrator) SelectAll() error {
	return o.withReview("select all", func(r *Reviewing) error {
		r.Review.SelectAll()
		return nil
	})
}

// Edit replaces fields of slide n.
func (o *Orchestrator) Edit(n int, edit storyplan.SlideEdit) error {
	return o.withReview("edit", func(r *Reviewing) error { return r.Review.Edit(n, edit) })
}

// AddSlide appends a slide written by the user.
func (o *Orchestrator) AddSlide(slide storyplan.Slide) error {
	return o.withReview("add slide", func(r *Reviewing) error { return r.Review.Add(slide) })
}

// DeleteSlide removes slide n.
func (o *Orchestrator) DeleteSlide(n int) error {
	return o.withReview("delete slide", func(r *Reviewing) error { return r.Review.Delete(n) })
}

// EnterStyleReview switches the review to style selection.
func (o *Orchestrator) EnterStyleReview() error {
	return o.withReview("style review", func(r *Reviewing) error {
		r.Mode = ModeStyleReview
		return nil
	})
}

// SetStyle applies a style to the plan and returns to slide selection.
func (o *Orchestrator) SetStyle(st style.Style) error {
	return o.withReview("set style", func(r *Reviewing) error {
		r.Review.SetStyle(st)
		r.Mode = ModeSelectable
		return nil
	})
}

// MoreSlides asks the planner for count more slides and appends what fits
// under the cap. It returns how many were added.
func (o *Orchestrator) MoreSlides(ctx context.Context, count int) (int, error) {
	o.mu.Lock()
	rv, ok := o.state.(Reviewing)
	if !ok {
		err := invalid("more slides", o.state)
		o.mu.Unlock()
		return 0, err
	}
	if o.extending {
		o.mu.Unlock()
		return 0, fmt.Errorf("%w: more slides already requested", ErrInvalidTransition)
	}
	remaining := storyplan.MaxSlides - rv.Review.Len()
	if remaining <= 0 {
		o.mu.Unlock()
		return 0, services.Wrap(services.ErrValidation, "reviewing", "more slides", fmt.Sprintf("Maximum %d slides allowed", storyplan.MaxSlides), nil)
	}
	if count < 1 {
		o.mu.Unlock()
		return 0, services.Wrap(services.ErrValidation, "reviewing", "more slides", "count must be positive", nil)
	}
	if err := o.gatePlan(); err != nil {
		o.mu.Unlock()
		return 0, err
	}
	plan := rv.Review.Plan()
	review := rv.Review
	o.extending = true
	o.mu.Unlock()

	result, err := o.deps.Planner.AddSlides(ctx, studio.AddSlidesRequest{
		Topic:           plan.Topic,
		Existing:        plan.Slides,
		AdditionalCount: min(count, remaining),
		Style:           plan.Aesthetic,
		LLMProvider:     o.opts.LLMProvider,
		OllamaModel:     o.opts.OllamaModel,
	})

	o.mu.Lock()
	defer o.mu.Unlock()
	o.extending = false
	if err != nil {
		o.notice(events.NoticeError, services.Kind(err), "Could not add slides: "+err.Error())
		return 0, err
	}
	current, ok := o.state.(Reviewing)
	if !ok || current.Review != review {
		return 0, invalid("more slides", o.state)
	}
	added := current.Review.Append(result.Slides, result.Sources)
	o.setStateLocked(current)
	return added, nil
}

// SaveResearchOnly persists the full plan as a research board and returns to Idle.
func (o *Orchestrator) SaveResearchOnly(ctx context.Context) (api.ResearchBoard, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	rv, ok := o.state.(Reviewing)
	if !ok {
		return api.ResearchBoard{}, invalid("save research", o.state)
	}
	board, err := o.deps.Boards.SaveResearch(ctx, api.ResearchFromPlan(rv.Review.Plan()))
	if err != nil {
		return api.ResearchBoard{}, err
	}
	o.last = &Result{Research: &board}
	o.notice(events.NoticeInfo, "research_saved", "Research saved")
	o.setStateLocked(Idle{Last: o.last})
	return board, nil
}
