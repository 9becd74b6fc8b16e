package orchestrator

import (
	"strings"

	"narrativ/internal/services"
	"narrativ/internal/storyplan"
	"narrativ/internal/style"
)

// InputMode selects topic research or pasted text.
type InputMode string

const (
	ModeTopic InputMode = "topic"
	ModeText  InputMode = "text"
)

// Input is one submission from the user.
type Input struct {
	Mode      InputMode
	Topic     string
	Text      string
	NumSlides int
	Style     style.Style
	ImageSize storyplan.ImageSize
}

func (in Input) validate() error {
	switch in.Mode {
	case ModeTopic, "":
		if strings.TrimSpace(in.Topic) == "" {
			return services.Wrap(services.ErrValidation, "submit", "validate", "Topic is required", nil)
		}
	case ModeText:
		if strings.TrimSpace(in.Text) == "" {
			return services.Wrap(services.ErrValidation, "submit", "validate", "Text is required", nil)
		}
	default:
		return services.Wrap(services.ErrValidation, "submit", "validate", "unknown input mode "+string(in.Mode), nil)
	}
	if err := storyplan.ValidateCount(in.NumSlides); err != nil {
		return err
	}
	_, err := storyplan.ParseImageSize(string(in.ImageSize))
	return err
}
