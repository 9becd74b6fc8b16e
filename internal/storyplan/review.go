package storyplan

import (
	"fmt"
	"strings"

	"narrativ/internal/services"
	"narrativ/internal/style"
)

// SlideEdit carries optional field replacements; nil fields are left alone.
type SlideEdit struct {
	Title             *string
	KeyFact           *string
	VisualDescription *string
}

// Apply writes the non-nil fields onto s.
func (e SlideEdit) Apply(s *Slide) {
	if e.Title != nil {
		s.Title = *e.Title
	}
	if e.KeyFact != nil {
		s.KeyFact = *e.KeyFact
	}
	if e.VisualDescription != nil {
		s.VisualDescription = *e.VisualDescription
	}
}

// IsZero reports whether the edit changes nothing.
func (e SlideEdit) IsZero() bool {
	return e.Title == nil && e.KeyFact == nil && e.VisualDescription == nil
}

// Review is the mutable editing copy of a plan plus the slide selection used
// for image generation. Slide numbers stay dense 1..N after every operation.
type Review struct {
	plan     Plan
	selected []bool
}

// NewReview starts a review with every slide selected.
func NewReview(plan Plan) *Review {
	p := plan.Clone()
	Renumber(p.Slides)
	sel := make([]bool, len(p.Slides))
	for i := range sel {
		sel[i] = true
	}
	return &Review{plan: p, selected: sel}
}

// Clone returns an independent copy of the review, selection included.
func (r *Review) Clone() *Review {
	return &Review{plan: r.plan.Clone(), selected: append([]bool(nil), r.selected...)}
}

// Plan returns a deep copy of the full, unfiltered plan.
func (r *Review) Plan() Plan {
	return r.plan.Clone()
}

// Len returns the number of slides.
func (r *Review) Len() int {
	return len(r.plan.Slides)
}

// IsSelected reports whether slide n is selected.
func (r *Review) IsSelected(n int) bool {
	if n < 1 || n > len(r.selected) {
		return false
	}
	return r.selected[n-1]
}

// SelectedNumbers lists the selected slide numbers in order.
func (r *Review) SelectedNumbers() []int {
	out := make([]int, 0, len(r.selected))
	for i, ok := range r.selected {
		if ok {
			out = append(out, i+1)
		}
	}
	return out
}

// Selected returns the plan filtered to the selected slides.
func (r *Review) Selected() (Plan, error) {
	p := r.plan.Clone()
	p.Slides = p.Slides[:0]
	for i, s := range r.plan.Slides {
		if r.selected[i] {
			p.Slides = append(p.Slides, s)
		}
	}
	if len(p.Slides) == 0 {
		return Plan{}, services.Wrap(services.ErrValidation, "reviewing", "select", "select at least one slide", nil)
	}
	return p, nil
}

// Toggle flips the selection of slide n.
func (r *Review) Toggle(n int) error {
	if err := r.check(n); err != nil {
		return err
	}
	r.selected[n-1] = !r.selected[n-1]
	return nil
}

// SelectOnly selects exactly the given slide numbers.
func (r *Review) SelectOnly(numbers ...int) error {
	for _, n := range numbers {
		if err := r.check(n); err != nil {
			return err
		}
	}
	for i := range r.selected {
		r.selected[i] = false
	}
	for _, n := range numbers {
		r.selected[n-1] = true
	}
	return nil
}

// SelectAll selects every slide.
func (r *Review) SelectAll() {
	for i := range r.selected {
		r.selected[i] = true
	}
}

// Edit replaces fields of slide n.
func (r *Review) Edit(n int, edit SlideEdit) error {
	if err := r.check(n); err != nil {
		return err
	}
	edit.Apply(&r.plan.Slides[n-1])
	return nil
}

// Add appends a selected slide at the end.
func (r *Review) Add(slide Slide) error {
	if len(r.plan.Slides) >= MaxSlides {
		return services.Wrap(services.ErrValidation, "reviewing", "add_slide", fmt.Sprintf("maximum %d slides reached", MaxSlides), nil)
	}
	slide.SlideNumber = len(r.plan.Slides) + 1
	r.plan.Slides = append(r.plan.Slides, slide)
	r.selected = append(r.selected, true)
	return nil
}

// Append adds planner-produced slides up to the cap and reports how many fit.
func (r *Review) Append(slides []Slide, sources []Source) int {
	added := 0
	for _, s := range slides {
		if len(r.plan.Slides) >= MaxSlides {
			break
		}
		if err := r.Add(s); err != nil {
			break
		}
		added++
	}
	r.plan.Sources = MergeSources(r.plan.Sources, sources)
	return added
}

// Delete removes slide n and renumbers the remainder.
func (r *Review) Delete(n int) error {
	if err := r.check(n); err != nil {
		return err
	}
	if len(r.plan.Slides) <= MinSlides {
		return services.Wrap(services.ErrValidation, "reviewing", "delete_slide", "a plan needs at least one slide", nil)
	}
	idx := n - 1
	r.plan.Slides = append(r.plan.Slides[:idx], r.plan.Slides[idx+1:]...)
	r.selected = append(r.selected[:idx], r.selected[idx+1:]...)
	Renumber(r.plan.Slides)
	return nil
}

// SetStyle overwrites the plan aesthetic.
func (r *Review) SetStyle(s style.Style) {
	r.plan.Aesthetic = s
	r.plan.StyleName = s.Name
}

// Topic returns the plan topic.
func (r *Review) Topic() string {
	return r.plan.Topic
}

func (r *Review) check(n int) error {
	if n < 1 || n > len(r.plan.Slides) {
		return services.Wrap(services.ErrValidation, "reviewing", "slide", fmt.Sprintf("slide %d out of range 1..%d", n, len(r.plan.Slides)), nil)
	}
	return nil
}

// MergeSources appends extra sources whose URL is not already present.
func MergeSources(existing, extra []Source) []Source {
	seen := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		seen[strings.TrimSpace(s.URL)] = struct{}{}
	}
	for _, s := range extra {
		key := strings.TrimSpace(s.URL)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		existing = append(existing, s)
	}
	return existing
}
