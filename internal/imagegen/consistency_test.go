package imagegen

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"narrativ/internal/services"
	"narrativ/internal/services/llm"
	"narrativ/internal/storyplan"
	"narrativ/internal/style"
)

type analyzerStub struct {
	mu     sync.Mutex
	calls  int
	result Consistency
	err    error
}

func (a *analyzerStub) Analyze(context.Context, storyplan.Plan) (Consistency, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return a.result, a.err
}

func diver() Consistency {
	return Consistency{
		Characters: []Recurring{{Name: "The Diver", Description: "woman in her 40s, yellow wetsuit, short grey hair", Slides: []int{1, 3}}},
		Objects:    []Recurring{{Name: "The Submersible", Description: "orange titanium sphere", Slides: []int{2}}},
		Environment: Environment{
			PrimarySetting: "midnight zone of the Pacific",
			Lighting:       "bioluminescent glow from below",
		},
	}
}

func TestBuildPromptConsistencySection(t *testing.T) {
	c := diver()
	plan := testPlan(1, 2)
	first := BuildPrompt(plan.Slides[0], plan.Topic, 2, plan.Aesthetic, storyplan.SizeStory, &c)
	second := BuildPrompt(plan.Slides[1], plan.Topic, 2, plan.Aesthetic, storyplan.SizeStory, &c)

	for _, want := range []string{"<VISUAL_CONSISTENCY>", "CHARACTER - The Diver: woman in her 40s", "SETTING: midnight zone", "LIGHTING: bioluminescent"} {
		if !strings.Contains(first, want) {
			t.Errorf("slide 1 prompt missing %q", want)
		}
	}
	if strings.Contains(first, "The Submersible") {
		t.Error("slide 1 prompt should not carry an object from slide 2")
	}
	if !strings.Contains(second, "RECURRING ELEMENT - The Submersible") || strings.Contains(second, "The Diver") {
		t.Errorf("slide 2 prompt has the wrong recurring elements:\n%s", second)
	}
	if strings.Index(first, "<VISUAL_CONSISTENCY>") > strings.Index(first, "<SCENE_DIRECTION>") {
		t.Error("consistency section should precede the scene direction")
	}

	bare := BuildPrompt(plan.Slides[0], plan.Topic, 2, plan.Aesthetic, storyplan.SizeStory, nil)
	if strings.Contains(bare, "<VISUAL_CONSISTENCY>") {
		t.Error("nil consistency should omit the section")
	}
}

func TestStyleEnforcement(t *testing.T) {
	tests := []struct {
		art  string
		want string
	}{
		{"Studio anime illustration", "Anime/Manga"},
		{"Retro POP ART poster", "Pop Art / Comic Book"},
		{"neon-drenched city", "Cyberpunk Neon"},
		{"clean flat vector", "Minimalist / Clean"},
		{"cinematic film still", ""},
	}
	for _, tc := range tests {
		got := styleEnforcement(tc.art)
		if tc.want == "" {
			if got != "" {
				t.Errorf("styleEnforcement(%q) = %q, want none", tc.art, got)
			}
			continue
		}
		if !strings.HasPrefix(got, "<STYLE_DIRECTIVE>") || !strings.Contains(got, tc.want) {
			t.Errorf("styleEnforcement(%q) = %q, want directive %q", tc.art, got, tc.want)
		}
	}

	slide := storyplan.Slide{SlideNumber: 1, Title: "Koi", KeyFact: "Koi live long", VisualDescription: "koi pond"}
	prompt := BuildPrompt(slide, "Koi", 1, style.Style{ArtStyle: "anime"}, storyplan.SizeStory, nil)
	if !strings.Contains(prompt, "<STYLE_DIRECTIVE>\nART STYLE: Anime/Manga") {
		t.Fatalf("prompt missing style directive:\n%s", prompt)
	}
}

func TestGenerateStoryAnalyzesConsistencyOnce(t *testing.T) {
	provider := newFakeProvider(ProviderGeminiFlash)
	g, _ := newTestGenerator(t, provider)
	analyzer := &analyzerStub{result: diver()}
	WithConsistency(analyzer)(g)

	story, err := g.GenerateStory(context.Background(), testPlan(1, 2, 3), GenerateOptions{})
	if err != nil {
		t.Fatalf("GenerateStory: %v", err)
	}
	if len(story.Files) != 3 {
		t.Fatalf("expected 3 files, got %v", story.Files)
	}
	if analyzer.calls != 1 {
		t.Fatalf("analyzer calls = %d, want 1", analyzer.calls)
	}
	for _, req := range provider.requests {
		if !strings.Contains(req.Prompt, "<VISUAL_CONSISTENCY>") {
			t.Fatalf("slide %d prompt missing consistency section", slideFromPrompt(req.Prompt))
		}
	}

	if _, err := g.GenerateStory(context.Background(), testPlan(1), GenerateOptions{}); err != nil {
		t.Fatalf("GenerateStory single slide: %v", err)
	}
	if analyzer.calls != 1 {
		t.Fatalf("single-slide story should skip analysis, calls = %d", analyzer.calls)
	}
}

func TestGenerateStoryConsistencyFailureIsNonFatal(t *testing.T) {
	provider := newFakeProvider(ProviderGeminiFlash)
	g, _ := newTestGenerator(t, provider)
	WithConsistency(&analyzerStub{err: errors.New("llm offline")})(g)

	story, err := g.GenerateStory(context.Background(), testPlan(1, 2), GenerateOptions{})
	if err != nil {
		t.Fatalf("GenerateStory: %v", err)
	}
	if diff := cmp.Diff([]int{1, 2}, story.SlideNumbers); diff != "" {
		t.Fatalf("slides (-want +got):\n%s", diff)
	}
	for _, req := range provider.requests {
		if strings.Contains(req.Prompt, "<VISUAL_CONSISTENCY>") {
			t.Fatal("failed analysis should leave prompts without the section")
		}
	}
}

type textGenStub struct {
	text     string
	err      error
	provider string
	prompt   llm.Prompt
}

func (s *textGenStub) Generate(_ context.Context, provider string, prompt llm.Prompt) (llm.Result, error) {
	s.provider, s.prompt = provider, prompt
	return llm.Result{Text: s.text}, s.err
}

func TestLLMConsistencyAnalyze(t *testing.T) {
	gen := &textGenStub{text: "```json\n" + `{"characters": [{"name": "The Diver", "description": "yellow wetsuit", "appears_in_slides": [1, 2]}],
"objects": [], "environment": {"primary_setting": "reef", "lighting_consistency": "", "color_grading": "teal",}}` + "\n```"}
	got, err := NewLLMConsistency(gen, "gemini").Analyze(context.Background(), testPlan(1, 2))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	want := Consistency{
		Characters:  []Recurring{{Name: "The Diver", Description: "yellow wetsuit", Slides: []int{1, 2}}},
		Objects:     []Recurring{},
		Environment: Environment{PrimarySetting: "reef", ColorGrading: "teal"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("consistency (-want +got):\n%s", diff)
	}
	if gen.provider != "gemini" || !gen.prompt.JSON || !strings.Contains(gen.prompt.User, "Slide 2: Fact 2 - glowing jellyfish") {
		t.Fatalf("unexpected request provider=%q prompt=%+v", gen.provider, gen.prompt)
	}

	gen.text = "no json here"
	if _, err := NewLLMConsistency(gen, "").Analyze(context.Background(), testPlan(1, 2)); !errors.Is(err, services.ErrPlanning) {
		t.Fatalf("expected planning error for bad JSON, got %v", err)
	}
}
