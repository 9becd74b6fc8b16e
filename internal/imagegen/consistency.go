package imagegen

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"narrativ/internal/services"
	"narrativ/internal/services/llm"
	"narrativ/internal/storyplan"
)

const maxSummaryVisual = 150

// Recurring is a character or object that shows up on more than one slide.
type Recurring struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Slides      []int  `json:"appears_in_slides"`
}

// Environment holds the setting details every slide should share.
type Environment struct {
	PrimarySetting string `json:"primary_setting"`
	Lighting       string `json:"lighting_consistency"`
	ColorGrading   string `json:"color_grading"`
}

// Consistency describes the visual elements that must look the same across
// a story's slides.
type Consistency struct {
	Characters  []Recurring `json:"characters"`
	Objects     []Recurring `json:"objects"`
	Environment Environment `json:"environment"`
}

// IsZero reports whether nothing recurring was found.
func (c Consistency) IsZero() bool {
	return len(c.Characters) == 0 && len(c.Objects) == 0 &&
		c.Environment.PrimarySetting == "" && c.Environment.Lighting == "" && c.Environment.ColorGrading == ""
}

// Summary is a one-line description for logs.
func (c Consistency) Summary() string {
	var parts []string
	if names := recurringNames(c.Characters); names != "" {
		parts = append(parts, "characters: "+names)
	}
	if names := recurringNames(c.Objects); names != "" {
		parts = append(parts, "objects: "+names)
	}
	if c.Environment.PrimarySetting != "" {
		parts = append(parts, "setting: "+truncateRunes(c.Environment.PrimarySetting, 50))
	}
	if len(parts) == 0 {
		return "no recurring elements"
	}
	return strings.Join(parts, " | ")
}

func recurringNames(items []Recurring) string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	return strings.Join(names, ", ")
}

// section renders the <VISUAL_CONSISTENCY> block for one slide, or "" when
// nothing applies to it.
func (c *Consistency) section(slideNumber int) string {
	if c == nil {
		return ""
	}
	var lines []string
	for _, ch := range c.Characters {
		if slices.Contains(ch.Slides, slideNumber) {
			lines = append(lines, fmt.Sprintf("CHARACTER - %s: %s", ch.Name, ch.Description))
		}
	}
	for _, obj := range c.Objects {
		if slices.Contains(obj.Slides, slideNumber) {
			lines = append(lines, fmt.Sprintf("RECURRING ELEMENT - %s: %s", obj.Name, obj.Description))
		}
	}
	if c.Environment.PrimarySetting != "" {
		lines = append(lines, "SETTING: "+c.Environment.PrimarySetting)
	}
	if c.Environment.Lighting != "" {
		lines = append(lines, "LIGHTING: "+c.Environment.Lighting)
	}
	if c.Environment.ColorGrading != "" {
		lines = append(lines, "COLOR GRADING: "+c.Environment.ColorGrading)
	}
	if len(lines) == 0 {
		return ""
	}
	return "<VISUAL_CONSISTENCY>\nMaintain these consistent elements:\n" + strings.Join(lines, "\n") + "\n</VISUAL_CONSISTENCY>\n\n"
}

// ConsistencyAnalyzer finds recurring visual elements in a plan before its
// slides are rendered.
type ConsistencyAnalyzer interface {
	Analyze(ctx context.Context, plan storyplan.Plan) (Consistency, error)
}

// TextGenerator routes prompts to an LLM provider. *llm.Router satisfies it.
type TextGenerator interface {
	Generate(ctx context.Context, provider string, prompt llm.Prompt) (llm.Result, error)
}

// LLMConsistency asks an LLM to act as production designer for a story.
type LLMConsistency struct {
	llm      TextGenerator
	provider string
}

// NewLLMConsistency returns an analyzer using provider, or the router's
// default when provider is empty.
func NewLLMConsistency(gen TextGenerator, provider string) *LLMConsistency {
	return &LLMConsistency{llm: gen, provider: provider}
}

// Analyze makes one LLM call for the whole plan.
func (a *LLMConsistency) Analyze(ctx context.Context, plan storyplan.Plan) (Consistency, error) {
	result, err := a.llm.Generate(ctx, a.provider, llm.Prompt{User: consistencyPrompt(plan), JSON: true})
	if err != nil {
		return Consistency{}, err
	}
	var out Consistency
	if err := llm.DecodeJSON(result.Text, &out); err != nil {
		return Consistency{}, services.Wrap(services.ErrPlanning, "generate", "consistency", "decode consistency analysis", err)
	}
	return out, nil
}

func consistencyPrompt(plan storyplan.Plan) string {
	var summaries strings.Builder
	for _, s := range plan.Slides {
		fmt.Fprintf(&summaries, "Slide %d: %s - %s\n", s.SlideNumber, s.Title, truncateRunes(s.VisualDescription, maxSummaryVisual))
	}
	return fmt.Sprintf(`<ROLE>
You are a film production designer keeping visual continuity across scenes.
</ROLE>

<TASK>
Identify the recurring visual elements of this %d-slide story that must stay consistent.

TOPIC: %s
ART STYLE: %s

SLIDES:
%s</TASK>

<ANALYSIS_GUIDE>
1. CHARACTERS: people, animals or mascots appearing in several slides
2. OBJECTS: logos, products, vehicles or buildings that recur
3. ENVIRONMENT: setting, time of day and weather shared across slides
</ANALYSIS_GUIDE>

<OUTPUT_FORMAT>
{
  "characters": [{"name": "The Scientist", "description": "exact age range, hair, clothing, distinguishing marks", "appears_in_slides": [1, 3]}],
  "objects": [{"name": "The Ship", "description": "exact color, material, size, condition", "appears_in_slides": [2, 4]}],
  "environment": {"primary_setting": "", "lighting_consistency": "", "color_grading": ""}
}
Only include elements that appear in two or more slides. Use empty arrays when nothing recurs.
</OUTPUT_FORMAT>

Return ONLY valid JSON.`, len(plan.Slides), plan.Topic, orDefault(plan.Aesthetic.ArtStyle, "cinematic"), summaries.String())
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
