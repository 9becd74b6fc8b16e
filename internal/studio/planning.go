package studio

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"narrativ/internal/api"
	"narrativ/internal/services"
	"narrativ/internal/storyplan"
	"narrativ/internal/style"
)

// PlanRequest asks the daemon to research a topic.
type PlanRequest struct {
	Topic       string
	NumSlides   int
	Style       style.Style
	ImageSize   storyplan.ImageSize
	LLMProvider string
	OllamaModel string
}

// TextPlanRequest asks the daemon to plan slides from pasted text.
type TextPlanRequest struct {
	Text        string
	Topic       string
	NumSlides   int
	Style       style.Style
	ImageSize   storyplan.ImageSize
	LLMProvider string
	OllamaModel string
}

// AddSlidesRequest asks the daemon for more slides on an existing topic.
type AddSlidesRequest struct {
	Topic           string
	Existing        []storyplan.Slide
	AdditionalCount int
	Style           style.Style
	LLMProvider     string
	OllamaModel     string
}

// AddSlidesResult holds slides numbered after the existing ones.
type AddSlidesResult struct {
	Slides  []storyplan.Slide
	Sources []storyplan.Source
}

// PlanStory researches a topic and returns a plan. The selected style, when
// set, replaces whatever aesthetic the daemon returned.
func (c *Client) PlanStory(ctx context.Context, req PlanRequest) (storyplan.Plan, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return storyplan.Plan{}, services.Wrap(services.ErrValidation, "planning", "plan story", "Topic is required", nil)
	}
	if err := storyplan.ValidateCount(req.NumSlides); err != nil {
		return storyplan.Plan{}, err
	}
	size, err := storyplan.ParseImageSize(string(req.ImageSize))
	if err != nil {
		return storyplan.Plan{}, err
	}
	body := api.PlanStoryRequest{
		Topic:     topic,
		NumSlides: req.NumSlides,
		Aesthetic: req.Style.ID,
		ImageSize: string(size),
		ProviderFields: api.ProviderFields{
			LLMProvider: req.LLMProvider,
			OllamaModel: req.OllamaModel,
		},
	}
	var resp api.PlanResponse
	if err := c.do(ctx, http.MethodPost, "/plan_story", body, &resp); err != nil {
		return storyplan.Plan{}, services.Wrap(services.ErrPlanning, "planning", "plan story", "plan request failed", err)
	}
	return finishPlan(resp.Plan, topic, req.Style, size)
}

// PlanFromText builds a plan from pasted text. The topic defaults to
// storyplan.DefaultTextTopic.
func (c *Client) PlanFromText(ctx context.Context, req TextPlanRequest) (storyplan.Plan, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return storyplan.Plan{}, services.Wrap(services.ErrValidation, "planning", "plan from text", "Text is required", nil)
	}
	if err := storyplan.ValidateCount(req.NumSlides); err != nil {
		return storyplan.Plan{}, err
	}
	size, err := storyplan.ParseImageSize(string(req.ImageSize))
	if err != nil {
		return storyplan.Plan{}, err
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		topic = storyplan.DefaultTextTopic
	}
	body := api.PlanFromTextRequest{
		Text:      text,
		NumSlides: req.NumSlides,
		Aesthetic: req.Style.ID,
		Topic:     topic,
		ImageSize: string(size),
		ProviderFields: api.ProviderFields{
			LLMProvider: req.LLMProvider,
			OllamaModel: req.OllamaModel,
		},
	}
	var resp api.PlanResponse
	if err := c.do(ctx, http.MethodPost, "/plan_from_text", body, &resp); err != nil {
		return storyplan.Plan{}, services.Wrap(services.ErrPlanning, "planning", "plan from text", "plan request failed", err)
	}
	return finishPlan(resp.Plan, topic, req.Style, size)
}

// AddSlides requests more slides for a plan under review.
func (c *Client) AddSlides(ctx context.Context, req AddSlidesRequest) (AddSlidesResult, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return AddSlidesResult{}, services.Wrap(services.ErrValidation, "planning", "add slides", "Topic is required", nil)
	}
	if req.AdditionalCount < 1 {
		return AddSlidesResult{}, services.Wrap(services.ErrValidation, "planning", "add slides", "additional_count must be positive", nil)
	}
	if len(req.Existing) >= storyplan.MaxSlides {
		return AddSlidesResult{}, services.Wrap(services.ErrValidation, "planning", "add slides", fmt.Sprintf("Maximum %d slides allowed", storyplan.MaxSlides), nil)
	}
	body := api.AddSlidesRequest{
		Topic:           strings.TrimSpace(req.Topic),
		ExistingSlides:  req.Existing,
		AdditionalCount: req.AdditionalCount,
		Aesthetic:       req.Style.ID,
		ProviderFields: api.ProviderFields{
			LLMProvider: req.LLMProvider,
			OllamaModel: req.OllamaModel,
		},
	}
	var resp api.AddSlidesResponse
	if err := c.do(ctx, http.MethodPost, "/add_slides", body, &resp); err != nil {
		return AddSlidesResult{}, services.Wrap(services.ErrPlanning, "planning", "add slides", "add slides request failed", err)
	}
	return AddSlidesResult{Slides: resp.Slides, Sources: resp.NewSources}, nil
}

func finishPlan(plan storyplan.Plan, topic string, selected style.Style, size storyplan.ImageSize) (storyplan.Plan, error) {
	if len(plan.Slides) == 0 {
		return storyplan.Plan{}, services.Wrap(services.ErrPlanning, "planning", "decode plan", "plan contained no slides", nil)
	}
	if strings.TrimSpace(plan.Topic) == "" {
		plan.Topic = topic
	}
	if !selected.IsZero() {
		plan.Aesthetic = selected
		plan.StyleName = selected.Name
	}
	plan.ImageSize = size
	if len(plan.Slides) > storyplan.MaxSlides {
		plan.Slides = plan.Slides[:storyplan.MaxSlides]
	}
	storyplan.Renumber(plan.Slides)
	return plan, nil
}
