package api

import (
	"time"

	"narrativ/internal/storyplan"
	"narrativ/internal/style"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// FormatTime renders a timestamp the way board payloads carry it.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// ParseTime parses a board timestamp, returning the zero time when empty or malformed.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(dateTimeFormat, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}

// BoardType names a board collection in the /boards/{type} routes.
type BoardType string

const (
	BoardResearch BoardType = "research"
	BoardImages   BoardType = "images"
)

// ParseBoardType validates a collection name.
func ParseBoardType(value string) (BoardType, bool) {
	switch BoardType(value) {
	case BoardResearch:
		return BoardResearch, true
	case BoardImages:
		return BoardImages, true
	default:
		return "", false
	}
}

// ResearchBoard is the persisted snapshot of a plan at confirmation time.
type ResearchBoard struct {
	ID        string             `json:"id"`
	Topic     string             `json:"topic"`
	Aesthetic style.Style        `json:"aesthetic"`
	StyleName string             `json:"style_name,omitempty"`
	Slides    []storyplan.Slide  `json:"slides"`
	Sources   []storyplan.Source `json:"sources,omitempty"`
	Caption   string             `json:"caption,omitempty"`
	Hashtags  []string           `json:"hashtags,omitempty"`
	ImageSize string             `json:"image_size"`
	Provider  string             `json:"provider,omitempty"`
	Model     string             `json:"model,omitempty"`
	CreatedAt string             `json:"createdAt"`
	UpdatedAt string             `json:"updatedAt,omitempty"`
}

// ResearchFromPlan snapshots every slide of the plan.
func ResearchFromPlan(p storyplan.Plan) ResearchBoard {
	c := p.Clone()
	return ResearchBoard{
		Topic:     c.Topic,
		Aesthetic: c.Aesthetic,
		StyleName: c.StyleName,
		Slides:    c.Slides,
		Sources:   c.Sources,
		Caption:   c.Caption,
		Hashtags:  c.Hashtags,
		ImageSize: string(c.ImageSize),
		Provider:  c.Provider,
		Model:     c.Model,
	}
}

// Plan rebuilds a plan from the board.
func (b ResearchBoard) Plan() storyplan.Plan {
	size, err := storyplan.ParseImageSize(b.ImageSize)
	if err != nil {
		size = storyplan.SizeStory
	}
	return storyplan.Plan{
		Topic:     b.Topic,
		Aesthetic: b.Aesthetic,
		StyleName: b.StyleName,
		Slides:    append([]storyplan.Slide(nil), b.Slides...),
		Caption:   b.Caption,
		Hashtags:  append([]string(nil), b.Hashtags...),
		Sources:   append([]storyplan.Source(nil), b.Sources...),
		ImageSize: size,
		Provider:  b.Provider,
		Model:     b.Model,
	}
}

// ImageBoard is the persisted record of generated images and the slides used for them.
type ImageBoard struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Images    []string          `json:"images"`
	Slides    []storyplan.Slide `json:"slides"`
	Caption   string            `json:"caption,omitempty"`
	Hashtags  []string          `json:"hashtags,omitempty"`
	Aesthetic style.Style       `json:"aesthetic"`
	StyleName string            `json:"style_name,omitempty"`
	ImageSize string            `json:"image_size"`
	Provider  string            `json:"provider,omitempty"`
	BrandID   string            `json:"brand_id,omitempty"`
	CreatedAt string            `json:"createdAt"`
	UpdatedAt string            `json:"updatedAt,omitempty"`
}

// Clone returns a deep copy of the board.
func (b ImageBoard) Clone() ImageBoard {
	out := b
	out.Images = append([]string(nil), b.Images...)
	out.Slides = append([]storyplan.Slide(nil), b.Slides...)
	out.Hashtags = append([]string(nil), b.Hashtags...)
	return out
}

// Clone returns a deep copy of the board.
func (b ResearchBoard) Clone() ResearchBoard {
	out := b
	out.Slides = append([]storyplan.Slide(nil), b.Slides...)
	out.Sources = append([]storyplan.Source(nil), b.Sources...)
	out.Hashtags = append([]string(nil), b.Hashtags...)
	return out
}

// ProviderFields are the optional LLM selectors shared by planning requests.
type ProviderFields struct {
	LLMProvider string `json:"llm_provider,omitempty"`
	OllamaModel string `json:"ollama_model,omitempty"`
}

// PlanStoryRequest is the body of POST /plan_story.
type PlanStoryRequest struct {
	Topic     string `json:"topic"`
	NumSlides int    `json:"num_slides"`
	Aesthetic string `json:"aesthetic,omitempty"`
	ImageSize string `json:"image_size,omitempty"`
	ProviderFields
}

// PlanFromTextRequest is the body of POST /plan_from_text.
type PlanFromTextRequest struct {
	Text      string `json:"text"`
	NumSlides int    `json:"num_slides"`
	Aesthetic string `json:"aesthetic,omitempty"`
	Topic     string `json:"topic,omitempty"`
	ImageSize string `json:"image_size,omitempty"`
	ProviderFields
}

// PlanResponse wraps a produced plan.
type PlanResponse struct {
	Plan storyplan.Plan `json:"plan"`
}

// AddSlidesRequest is the body of POST /add_slides.
type AddSlidesRequest struct {
	Topic           string            `json:"topic"`
	ExistingSlides  []storyplan.Slide `json:"existing_slides"`
	AdditionalCount int               `json:"additional_count"`
	Aesthetic       string            `json:"aesthetic,omitempty"`
	ProviderFields
}

// AddSlidesResponse carries slides numbered after the existing ones.
type AddSlidesResponse struct {
	Slides     []storyplan.Slide  `json:"slides"`
	NewSources []storyplan.Source `json:"new_sources,omitempty"`
}

// GenerateRequest is the body of POST /generate_from_plan.
type GenerateRequest struct {
	Plan          storyplan.Plan `json:"plan"`
	Provider      string         `json:"provider,omitempty"`
	BrandID       string         `json:"brand_id,omitempty"`
	HFQualityMode string         `json:"hf_quality_mode,omitempty"`
}

// GenerateResponse lists image URIs aligned with the request's slides.
// SlideNumbers names the slide behind each image when some slides were skipped.
type GenerateResponse struct {
	Images       []string `json:"images"`
	SlideNumbers []int    `json:"slide_numbers,omitempty"`
}

// ResearchBoardsResponse is the body of GET /boards/research.
type ResearchBoardsResponse struct {
	Boards []ResearchBoard `json:"boards"`
}

// ImageBoardsResponse is the body of GET /boards/images.
type ImageBoardsResponse struct {
	Boards []ImageBoard `json:"boards"`
}

// ResearchBoardResponse wraps a single saved research board.
type ResearchBoardResponse struct {
	Board ResearchBoard `json:"board"`
}

// ImageBoardResponse wraps a single saved image board.
type ImageBoardResponse struct {
	Board ImageBoard `json:"board"`
}

// Availability describes whether one backend is usable.
type Availability struct {
	Available bool   `json:"available"`
	Message   string `json:"message,omitempty"`
}

// LLMStatus covers text and vision backends.
type LLMStatus struct {
	Gemini Availability `json:"gemini"`
	Ollama Availability `json:"ollama"`
}

// ImageStatus covers image generation backends.
type ImageStatus struct {
	Fal         Availability `json:"fal"`
	Gemini      Availability `json:"gemini"`
	HuggingFace Availability `json:"huggingface"`
}

// ProviderStatus is the body of GET /check_providers.
type ProviderStatus struct {
	LLM    LLMStatus   `json:"llm"`
	Vision LLMStatus   `json:"vision"`
	Image  ImageStatus `json:"image"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// LogTailResponse is the body of GET /logs. Offset is passed back on the next
// request to continue from where this one stopped.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// StylesResponse is the body of GET /styles.
type StylesResponse struct {
	Styles []style.Style `json:"styles"`
}

// StyleResponse wraps a saved custom style.
type StyleResponse struct {
	Style style.Style `json:"style"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}
