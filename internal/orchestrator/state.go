package orchestrator

import (
	"narrativ/internal/api"
	"narrativ/internal/storyplan"
)

// State is one phase of the generation workflow. The concrete types are
// Idle, Researching, Reviewing, GeneratingImages, and Failed.
type State interface {
	isState()
	// Phase returns a stable name for logs and renderers.
	Phase() string
}

// Result is what the last completed workflow left behind.
type Result struct {
	Research *api.ResearchBoard
	Images   *api.ImageBoard
	// Soft marks a generation that returned no images.
	Soft bool
}

// Idle waits for input.
type Idle struct {
	Last *Result
}

// Researching waits on the planner.
type Researching struct {
	Request Input
}

// ReviewMode selects how the review is being edited.
type ReviewMode string

const (
	ModeSelectable  ReviewMode = "selectable"
	ModeStyleReview ReviewMode = "style-review"
)

// Reviewing holds the editable plan. Review is a copy; mutate it through the
// Orchestrator.
type Reviewing struct {
	Review *storyplan.Review
	Mode   ReviewMode
}

// GeneratingImages waits on the image generator. Cursor is cosmetic and only
// advances on the progress ticker.
type GeneratingImages struct {
	Plan       storyplan.Plan
	Selected   []int
	Expected   int
	Cursor     int
	ResearchID string
}

// Failed is published when an operation fails; the machine then returns to Idle.
type Failed struct {
	Message string
	Kind    string
}

func (Idle) isState()             {}
func (Researching) isState()      {}
func (Reviewing) isState()        {}
func (GeneratingImages) isState() {}
func (Failed) isState()           {}

func (Idle) Phase() string             { return "idle" }
func (Researching) Phase() string      { return "researching" }
func (Reviewing) Phase() string        { return "reviewing" }
func (GeneratingImages) Phase() string { return "generating_images" }
func (Failed) Phase() string           { return "failed" }

// snapshot returns a copy safe to hand outside the lock.
func snapshot(s State) State {
	switch v := s.(type) {
	case Reviewing:
		return Reviewing{Review: v.Review.Clone(), Mode: v.Mode}
	case GeneratingImages:
		v.Plan = v.Plan.Clone()
		v.Selected = append([]int(nil), v.Selected...)
		return v
	default:
		return s
	}
}
