// Package storyplan models slide plans and the in-memory review state the
// user edits before images are generated.
package storyplan

import (
	"fmt"
	"strings"

	"narrativ/internal/services"
	"narrativ/internal/style"
)

const (
	// MinSlides is the smallest plan the workflow accepts.
	MinSlides = 1
	// MaxSlides caps every plan and research board.
	MaxSlides = 10
	// DefaultTextTopic labels plans produced from pasted text without a topic.
	DefaultTextTopic = "Custom Content"
)

// ImageSize selects the output frame.
type ImageSize string

const (
	SizeStory  ImageSize = "story"
	SizeSquare ImageSize = "square"
)

// ParseImageSize validates a size string; empty means story.
func ParseImageSize(value string) (ImageSize, error) {
	switch ImageSize(strings.ToLower(strings.TrimSpace(value))) {
	case "", SizeStory:
		return SizeStory, nil
	case SizeSquare:
		return SizeSquare, nil
	default:
		return "", services.Wrap(services.ErrValidation, "plan", "image_size", fmt.Sprintf("unsupported image size %q", value), nil)
	}
}

// AspectRatio returns the provider aspect ratio for the size.
func (s ImageSize) AspectRatio() string {
	if s == SizeSquare {
		return "1:1"
	}
	return "9:16"
}

// Slide is one frame of a story.
type Slide struct {
	SlideNumber       int    `json:"slide_number"`
	Title             string `json:"title"`
	KeyFact           string `json:"key_fact"`
	VisualDescription string `json:"visual_description"`
	Mood              string `json:"mood,omitempty"`
}

// Source is a research citation.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Plan is an unpersisted proposal of slides, aesthetic, and caption.
type Plan struct {
	Topic     string      `json:"topic"`
	Aesthetic style.Style `json:"aesthetic"`
	StyleName string      `json:"style_name,omitempty"`
	Slides    []Slide     `json:"slides"`
	Caption   string      `json:"caption,omitempty"`
	Hashtags  []string    `json:"hashtags,omitempty"`
	Sources   []Source    `json:"sources,omitempty"`
	ImageSize ImageSize   `json:"image_size"`
	Provider  string      `json:"provider,omitempty"`
	Model     string      `json:"model,omitempty"`
}

// Clone returns a deep copy of the plan.
func (p Plan) Clone() Plan {
	out := p
	out.Slides = append([]Slide(nil), p.Slides...)
	out.Hashtags = append([]string(nil), p.Hashtags...)
	out.Sources = append([]Source(nil), p.Sources...)
	return out
}

// Validate checks topic presence, the slide bound, and dense numbering.
func (p Plan) Validate() error {
	if strings.TrimSpace(p.Topic) == "" {
		return services.Wrap(services.ErrValidation, "plan", "validate", "topic is required", nil)
	}
	if err := ValidateCount(len(p.Slides)); err != nil {
		return err
	}
	for i, s := range p.Slides {
		if s.SlideNumber != i+1 {
			return services.Wrap(services.ErrValidation, "plan", "validate", fmt.Sprintf("slide %d numbered %d", i+1, s.SlideNumber), nil)
		}
	}
	return nil
}

// ValidateCount enforces the 1..10 slide bound.
func ValidateCount(n int) error {
	if n < MinSlides || n > MaxSlides {
		return services.Wrap(services.ErrValidation, "plan", "slide_count", fmt.Sprintf("slides must be between %d and %d, got %d", MinSlides, MaxSlides, n), nil)
	}
	return nil
}

// Renumber rewrites slide numbers to 1..len in place and returns the slice.
func Renumber(slides []Slide) []Slide {
	for i := range slides {
		slides[i].SlideNumber = i + 1
	}
	return slides
}

// NormalizeSlides enforces the 1..10 bound and returns a copy numbered 1..N.
func NormalizeSlides(slides []Slide) ([]Slide, error) {
	if err := ValidateCount(len(slides)); err != nil {
		return nil, err
	}
	return Renumber(append([]Slide(nil), slides...)), nil
}

// CheckNumbers rejects slide numbers that are not positive or appear twice.
// Rendered files are named after slide numbers, so both would collide.
func CheckNumbers(slides []Slide) error {
	seen := make(map[int]struct{}, len(slides))
	for i, s := range slides {
		if s.SlideNumber < 1 {
			return services.Wrap(services.ErrValidation, "plan", "slide_number", fmt.Sprintf("slide %d has no slide_number", i+1), nil)
		}
		if _, dup := seen[s.SlideNumber]; dup {
			return services.Wrap(services.ErrValidation, "plan", "slide_number", fmt.Sprintf("slide_number %d appears more than once", s.SlideNumber), nil)
		}
		seen[s.SlideNumber] = struct{}{}
	}
	return nil
}
