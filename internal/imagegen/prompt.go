package imagegen

import (
	"fmt"
	"strings"

	"narrativ/internal/storyplan"
	"narrativ/internal/style"
)

const qualityConstraints = `<AVOID_IN_IMAGE>
- Blurry, misspelled, or distorted text
- Extra fingers or deformed hands
- Watermarks, signatures, or logos
- Pixelation or compression noise
- Floating or disconnected elements
- Gibberish characters
- Stretched or squished content
- Busy backgrounds that compete with the subject
</AVOID_IN_IMAGE>`

type textStyle struct {
	keywords []string
	label    string
	title    string
	fact     string
}

// textStyles is checked in order; the first keyword hit in the art style wins.
var textStyles = []textStyle{
	{[]string{"anime", "manga", "japanese", "ghibli"}, "Anime/Manga", "bold manga-style impact text at a dynamic angle with speed lines", "clean white text in a rounded stylized text box"},
	{[]string{"comic", "pop art", "marvel", "warhol", "lichtenstein"}, "Comic Book/Pop Art", "BOLD ALL-CAPS comic lettering with thick black outline over halftone dots", "caption box or speech bubble in bold sans-serif"},
	{[]string{"cyberpunk", "neon", "futuristic", "holographic"}, "Cyberpunk/Neon", "glowing neon tube text in cyan or magenta", "digital HUD-style readout with faint scan lines"},
	{[]string{"vintage", "retro", "antique", "nostalgia"}, "Vintage/Retro", "classic serif headline on aged paper texture", "typewriter or old newspaper type"},
	{[]string{"minimal", "clean", "corporate", "premium"}, "Minimal/Corporate", "ultra-clean sans-serif with generous whitespace", "thin, precisely kerned body type"},
	{[]string{"watercolor", "painting", "brush", "editorial"}, "Artistic/Editorial", "hand-lettered brush script", "elegant serif that suits the painterly look"},
	{[]string{"cinematic", "film", "photo", "dramatic", "realistic"}, "Cinematic", "bold movie-poster typography with strong contrast", "clean white text over a subtle bottom gradient"},
	{[]string{"fantasy", "magical", "ethereal", "mystical"}, "Fantasy", "ornate lettering with a soft magical glow", "elegant text on a translucent scroll"},
	{[]string{"cosmic", "space", "galaxy", "nebula"}, "Cosmic", "glowing stellar text with particle effects", "clean futuristic type with starlight glow"},
	{[]string{"3d", "pixar", "animated", "cartoon"}, "3D/Animated", "bold extruded 3D letters with glossy finish", "rounded friendly type"},
}

func textInstructions(aesthetic style.Style) string {
	art := strings.ToLower(aesthetic.ArtStyle)
	typography := strings.TrimSpace(aesthetic.TypographyStyle)
	for _, ts := range textStyles {
		for _, kw := range ts.keywords {
			if strings.Contains(art, kw) {
				out := fmt.Sprintf("TEXT STYLE (%s):\n- Title: %s\n- Fact: %s", ts.label, ts.title, ts.fact)
				if typography != "" {
					out += "\nTypography Direction: " + typography
				}
				return out
			}
		}
	}
	if typography != "" {
		return fmt.Sprintf("TEXT STYLE (Custom):\n- Title: %s, prominent at the top\n- Fact: complementary clean text at the bottom with good contrast", typography)
	}
	return "TEXT STYLE (Professional):\n- Title: bold clean sans-serif with a subtle drop shadow\n- Fact: clear white text on a semi-transparent dark bar"
}

type styleDirective struct {
	keywords []string
	body     string
}

// styleDirectives keep non-photorealistic styles from drifting into photos.
var styleDirectives = []styleDirective{
	{[]string{"anime", "manga", "japanese"}, `ART STYLE: Anime/Manga Illustration
- Render in Japanese anime art style with cel-shading
- Use anime facial features and proportions
- Apply flat colors with clean cel-shaded shadows
- Style reference: Studio Ghibli, Makoto Shinkai
IMPORTANT: Keep the SAME subject described below, rendered in anime style`},
	{[]string{"comic", "pop art", "marvel"}, `ART STYLE: Pop Art / Comic Book
- Render in bold comic book pop art style
- Use thick black outlines, halftone dots and flat primary colors
- Style reference: Marvel Comics, Roy Lichtenstein, Andy Warhol
IMPORTANT: Keep the SAME subject described below, rendered in comic style`},
	{[]string{"cyberpunk", "neon"}, `ART STYLE: Cyberpunk Neon
- Apply strong neon lighting in cyan, magenta and pink
- Dark atmospheric background with neon accents
- Style reference: Blade Runner 2049
IMPORTANT: Keep the SAME subject described below, with cyberpunk lighting`},
	{[]string{"minimal", "clean"}, `ART STYLE: Minimalist / Clean
- Maximum white space and simplicity
- Clean geometric shapes and a professional finish
- Style reference: Swiss typography`},
}

// styleEnforcement returns the <STYLE_DIRECTIVE> block for artStyle, or "".
func styleEnforcement(artStyle string) string {
	art := strings.ToLower(artStyle)
	for _, d := range styleDirectives {
		for _, kw := range d.keywords {
			if strings.Contains(art, kw) {
				return "<STYLE_DIRECTIVE>\n" + d.body + "\n</STYLE_DIRECTIVE>\n"
			}
		}
	}
	return ""
}

func orDefault(value, fallback string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return fallback
}

// BuildPrompt renders the image brief for one slide. A nil consistency omits
// the <VISUAL_CONSISTENCY> section.
func BuildPrompt(slide storyplan.Slide, topic string, total int, aesthetic style.Style, size storyplan.ImageSize, consistency *Consistency) string {
	format := "VERTICAL 9:16 PORTRAIT FORMAT FOR INSTAGRAM/WHATSAPP STORIES"
	if size == storyplan.SizeSquare {
		format = "SQUARE 1:1 FORMAT FOR INSTAGRAM POSTS"
	}
	artStyle := orDefault(aesthetic.ArtStyle, "cinematic illustration")

	var b strings.Builder
	b.WriteString("<IMAGE_GENERATION_BRIEF>\n")
	b.WriteString(styleEnforcement(artStyle))
	fmt.Fprintf(&b, "TOPIC: %s\nFORMAT: %s\nSLIDE: %d of %d\n\n", topic, format, slide.SlideNumber, total)
	b.WriteString(consistency.section(slide.SlideNumber))
	fmt.Fprintf(&b, "<SCENE_DIRECTION>\nSubject: %s\nScene: %s\n", topic, slide.VisualDescription)
	if mood := strings.TrimSpace(slide.Mood); mood != "" {
		fmt.Fprintf(&b, "Mood: %s\n", mood)
	}
	b.WriteString("</SCENE_DIRECTION>\n\n")
	fmt.Fprintf(&b, "<VISUAL_STYLE_SYSTEM>\nArt Direction: %s\nColor Palette: %s\nLighting Design: %s\nTexture: %s\nBackground: %s\n</VISUAL_STYLE_SYSTEM>\n\n",
		artStyle,
		orDefault(aesthetic.ColorPalette, "vibrant, eye-catching colors"),
		orDefault(aesthetic.Lighting, "dramatic, professional lighting"),
		orDefault(aesthetic.Texture, "refined surface quality"),
		orDefault(aesthetic.BackgroundStyle, "complementary atmosphere"),
	)
	fmt.Fprintf(&b, "<INTEGRATED_TEXT_ELEMENTS>\nHEADLINE (top 15%% of frame):\n%q\n\nKEY FACT (bottom 20%% of frame):\n%q\n\n%s\n</INTEGRATED_TEXT_ELEMENTS>\n\n",
		slide.Title, slide.KeyFact, textInstructions(aesthetic))
	b.WriteString("<COMPOSITION_RULES>\nKeep the main subject on a rule-of-thirds point. Reserve the top and bottom zones for text on a clean, contrasting background.\n</COMPOSITION_RULES>\n\n")
	b.WriteString(qualityConstraints)
	b.WriteString("\n</IMAGE_GENERATION_BRIEF>\n\nGenerate this image now. English text only.")
	return b.String()
}
