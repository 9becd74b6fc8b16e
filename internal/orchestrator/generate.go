package orchestrator

import (
	"context"
	"sync"

	"narrativ/internal/api"
	"narrativ/internal/events"
	"narrativ/internal/logging"
	"narrativ/internal/services"
	"narrativ/internal/storyplan"
	"narrativ/internal/studio"
	"narrativ/internal/style"
)

// Confirm persists the full plan as research, then generates images for the
// selected slides. An empty selection is rejected and the review stays open.
func (o *Orchestrator) Confirm(ctx context.Context) (*Result, error) {
	o.mu.Lock()
	rv, ok := o.state.(Reviewing)
	if !ok {
		err := invalid("confirm", o.state)
		o.mu.Unlock()
		return nil, err
	}
	selected, err := rv.Review.Selected()
	if err != nil {
		o.mu.Unlock()
		return nil, err
	}
	if err := o.gateGenerate(); err != nil {
		o.mu.Unlock()
		return nil, err
	}
	numbers := rv.Review.SelectedNumbers()

	research, err := o.deps.Boards.SaveResearch(ctx, api.ResearchFromPlan(rv.Review.Plan()))
	if err != nil {
		o.mu.Unlock()
		return nil, err
	}
	o.last = &Result{Research: &research}
	epoch := o.beginGenerationLocked(selected, numbers, research.ID)
	o.mu.Unlock()

	return o.runGeneration(ctx, epoch, research, selected)
}

// Regenerate renders images from a saved research board without persisting
// it again. A nil style keeps the board's stored aesthetic.
func (o *Orchestrator) Regenerate(ctx context.Context, researchID string, selected *style.Style) (*Result, error) {
	o.mu.Lock()
	if _, ok := o.state.(Idle); !ok {
		err := invalid("regenerate", o.state)
		o.mu.Unlock()
		return nil, err
	}
	research, ok := o.deps.Boards.FindResearch(researchID)
	if !ok {
		o.mu.Unlock()
		return nil, services.Wrap(services.ErrNotFound, "generate", "regenerate", "research board "+researchID+" not found", nil)
	}
	plan := research.Plan()
	if len(plan.Slides) == 0 {
		o.mu.Unlock()
		return nil, services.Wrap(services.ErrValidation, "generate", "regenerate", "research board has no slides", nil)
	}
	if selected != nil && !selected.IsZero() {
		plan.Aesthetic = *selected
		plan.StyleName = selected.Name
	}
	if err := o.gateGenerate(); err != nil {
		o.mu.Unlock()
		return nil, err
	}
	numbers := make([]int, len(plan.Slides))
	for i, s := range plan.Slides {
		numbers[i] = s.SlideNumber
	}
	o.last = &Result{Research: &research}
	epoch := o.beginGenerationLocked(plan, numbers, research.ID)
	o.mu.Unlock()

	return o.runGeneration(ctx, epoch, research, plan)
}

func (o *Orchestrator) beginGenerationLocked(plan storyplan.Plan, numbers []int, researchID string) uint64 {
	o.epoch++
	o.setStateLocked(GeneratingImages{
		Plan:       plan,
		Selected:   numbers,
		Expected:   len(plan.Slides),
		Cursor:     1,
		ResearchID: researchID,
	})
	return o.epoch
}

func (o *Orchestrator) runGeneration(ctx context.Context, epoch uint64, research api.ResearchBoard, plan storyplan.Plan) (*Result, error) {
	ctx = services.WithTopic(services.WithStage(ctx, "generating_images"), plan.Topic)
	stop := o.startProgress(epoch)
	generated, err := o.deps.Generator.Generate(ctx, studio.GenerateRequest{
		Plan:          plan,
		Provider:      o.opts.ImageProvider,
		BrandID:       o.opts.BrandID,
		HFQualityMode: o.opts.HFQualityMode,
	})
	stop()

	if err != nil {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.failLocked(ctx, "generation", err)
		return o.last, err
	}

	if len(generated.Images) == 0 {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.last = &Result{Research: &research, Soft: true}
		logging.WarnWithContext(logging.WithContext(ctx, o.deps.Logger), "generation returned no images", "generation_empty",
			logging.String(logging.FieldBoardID, research.ID),
			logging.String(logging.FieldProvider, o.opts.ImageProvider),
			logging.String(logging.FieldImpact, "research saved without images"),
			logging.String(logging.FieldErrorHint, "retry or switch image provider"),
		)
		o.notice(events.NoticeWarn, "empty_result", "Research saved. No images were generated, try again.")
		o.setStateLocked(Idle{Last: o.last})
		return o.last, services.Wrap(services.ErrEmptyResult, "generation", "generate", "provider returned no images", nil)
	}

	board := api.ImageBoard{
		Topic:     plan.Topic,
		Images:    generated.Images,
		Slides:    generated.Slides(plan),
		Caption:   plan.Caption,
		Hashtags:  plan.Hashtags,
		Aesthetic: plan.Aesthetic,
		StyleName: plan.StyleName,
		ImageSize: string(plan.ImageSize),
		Provider:  o.opts.ImageProvider,
		BrandID:   o.opts.BrandID,
	}
	saved, err := o.deps.Boards.AddImages(ctx, board)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.failLocked(ctx, "image board", err)
		return o.last, err
	}
	o.last = &Result{Research: &research, Images: &saved}
	o.deps.Logger.Info("images generated",
		logging.String(logging.FieldTopic, plan.Topic),
		logging.String(logging.FieldBoardID, saved.ID),
		logging.Int("images", len(generated.Images)),
		logging.Int("requested", len(plan.Slides)),
	)
	o.setStateLocked(Idle{Last: o.last})
	return o.last, nil
}

// startProgress advances the cosmetic cursor on each tick until stop is called.
func (o *Orchestrator) startProgress(epoch uint64) (stop func()) {
	ticker := o.deps.Tickers(o.opts.ProgressInterval)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			case <-ticker.C():
				o.advanceCursor(epoch)
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
			wg.Wait()
		})
	}
}

func (o *Orchestrator) advanceCursor(epoch uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	gen, ok := o.state.(GeneratingImages)
	if !ok || o.epoch != epoch {
		return
	}
	if gen.Cursor < gen.Expected {
		gen.Cursor++
	}
	o.state = gen
	o.deps.Bus.Publish(events.Event{
		Topic:   events.TopicProgressTick,
		Payload: events.Progress{Current: gen.Cursor, Expected: gen.Expected},
	})
}
