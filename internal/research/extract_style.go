package research

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"narrativ/internal/logging"
	"narrativ/internal/services"
	"narrativ/internal/services/llm"
	"narrativ/internal/style"
)

const defaultExtractedName = "Custom Style"

const extractStylePrompt = `Analyze this image and extract its visual style for AI image generation.

Return one JSON object with exactly these fields:
- art_style: overall artistic style, e.g. "watercolor illustration"
- color_palette: 3-4 dominant colors with hex codes, e.g. "deep blue #1a237e, warm gold #ffd54f"
- lighting: lighting style and mood
- texture: surface qualities, e.g. "film grain, soft focus edges"
- typography_style: a text style that would match the image
- background_style: background treatment, e.g. "soft blur bokeh"

Return ONLY valid JSON, no markdown.`

// extractedFallback fills any field the model left out.
var extractedFallback = style.Style{
	ArtStyle:        "custom extracted style",
	ColorPalette:    "extracted colors from reference image",
	Lighting:        "lighting style from reference",
	Texture:         "texture qualities from reference",
	TypographyStyle: "complementary typography",
	BackgroundStyle: "background style from reference",
}

// ExtractStyleRequest carries a reference image to derive a style from.
type ExtractStyleRequest struct {
	Name        string
	Image       llm.Image
	LLMProvider string
	OllamaModel string
}

// StyleExtractor derives a custom style from a reference image with a vision model.
type StyleExtractor struct {
	llm    TextGenerator
	clock  func() time.Time
	logger *slog.Logger
}

// NewStyleExtractor returns an extractor using gen for vision requests.
func NewStyleExtractor(gen TextGenerator, logger *slog.Logger) *StyleExtractor {
	return &StyleExtractor{llm: gen, clock: time.Now, logger: logging.NewComponentLogger(logger, "style-extractor")}
}

// Extract asks the model to describe the image's style. A reply that is not
// JSON yields the generic extracted style; a failed model call is an error.
func (e *StyleExtractor) Extract(ctx context.Context, req ExtractStyleRequest) (style.Style, error) {
	if len(req.Image.Data) == 0 {
		return style.Style{}, services.Wrap(services.ErrValidation, "styles", "extract", "image is empty", nil)
	}
	ctx = llm.WithOllamaModel(ctx, req.OllamaModel)
	result, err := e.llm.Generate(ctx, req.LLMProvider, llm.Prompt{
		User:   extractStylePrompt,
		JSON:   true,
		Images: []llm.Image{req.Image},
	})
	if err != nil {
		return style.Style{}, err
	}

	var extracted style.Style
	if err := llm.DecodeJSON(result.Text, &extracted); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, e.logger), "style reply was not JSON", "style_extract_unparsed",
			logging.String(logging.FieldProvider, result.Provider),
			logging.Error(err),
			logging.String(logging.FieldImpact, "generic extracted style returned"),
		)
		extracted = style.Style{}
	}
	extracted = fillStyle(extracted, extractedFallback)
	extracted.ID = "extracted_" + strconv.FormatInt(e.clock().UnixMilli(), 10)
	extracted.Name = strings.TrimSpace(req.Name)
	if extracted.Name == "" {
		extracted.Name = defaultExtractedName
	}
	extracted.Custom = true
	if err := extracted.Validate(); err != nil {
		return style.Style{}, err
	}
	return extracted, nil
}

func fillStyle(s, fallback style.Style) style.Style {
	fill := func(v *string, def string) {
		if strings.TrimSpace(*v) == "" {
			*v = def
		}
	}
	fill(&s.ArtStyle, fallback.ArtStyle)
	fill(&s.ColorPalette, fallback.ColorPalette)
	fill(&s.Lighting, fallback.Lighting)
	fill(&s.Texture, fallback.Texture)
	fill(&s.TypographyStyle, fallback.TypographyStyle)
	fill(&s.BackgroundStyle, fallback.BackgroundStyle)
	return s
}
