package style

var predefined = []Style{
	{
		ID:              "pop_art",
		Name:            "Pop Art / Comic",
		ArtStyle:        "bold pop art comic book illustration with strong outlines and dynamic composition",
		ColorPalette:    "primary red #FF0000, bright yellow #FFFF00, bold blue #0000FF, jet black #000000",
		Lighting:        "flat bold lighting with strong black outlines, no gradients",
		Texture:         "halftone dots, Ben-Day dots, bold outlines, flat color fills",
		TypographyStyle: "BOLD ALL-CAPS comic book lettering with thick black outline",
		BackgroundStyle: "bright solid colors or classic halftone dot patterns",
	},
	{
		ID:              "cinematic",
		Name:            "Cinematic",
		ArtStyle:        "cinematic film photography with dramatic movie poster composition",
		ColorPalette:    "rich blacks #1a1a1a, warm highlights #f5d6a8, deep shadows #2d2d2d, accent gold #d4af37",
		Lighting:        "dramatic chiaroscuro lighting with strong contrast and rim lights",
		Texture:         "film grain, smooth gradients, soft focus backgrounds",
		TypographyStyle: "bold sans-serif movie poster text in white with drop shadow",
		BackgroundStyle: "depth-of-field blur with cinematic bokeh highlights",
	},
	{
		ID:              "minimalist",
		Name:            "Minimalist",
		ArtStyle:        "ultra-clean minimalist design with maximum white space and clarity",
		ColorPalette:    "pure white #FFFFFF, charcoal black #36454F, accent blue #4169E1, soft gray #D3D3D3",
		Lighting:        "soft even lighting with minimal shadows, clean and bright",
		Texture:         "smooth flat surfaces, subtle gradients, no noise",
		TypographyStyle: "clean modern sans-serif in black, perfectly legible",
		BackgroundStyle: "solid white or very subtle gradient, maximum contrast for text",
	},
	{
		ID:              "anime",
		Name:            "Anime / Manga",
		ArtStyle:        "vibrant Japanese anime manga illustration with dynamic energy",
		ColorPalette:    "sakura pink #FFB7C5, ocean blue #0077BE, sunset orange #FF7F50, grass green #7CFC00",
		Lighting:        "cel-shaded lighting with dramatic highlights and speed effects",
		Texture:         "smooth anime cel shading, speed lines, action effects",
		TypographyStyle: "bold manga-style impact text with dynamic angles and effects",
		BackgroundStyle: "detailed anime backgrounds with dramatic skies and effects",
	},
	{
		ID:              "cyberpunk",
		Name:            "Cyberpunk / Neon",
		ArtStyle:        "neon-lit cyberpunk digital art with glowing futuristic elements",
		ColorPalette:    "electric cyan #00FFFF, hot magenta #FF00FF, deep purple #4B0082, neon pink #FF1493",
		Lighting:        "neon glow with harsh shadows, holographic reflections, light bloom",
		Texture:         "chrome surfaces, rain-slicked streets, digital glitch effects",
		TypographyStyle: "glowing neon tube text in cyan or pink with bright glow effect",
		BackgroundStyle: "dark urban cityscape with neon signs and rain reflections",
	},
}

// Predefined returns a copy of the curated style catalog in display order.
func Predefined() []Style {
	out := make([]Style, len(predefined))
	copy(out, predefined)
	return out
}

func predefinedByID(id string) (Style, bool) {
	for _, s := range predefined {
		if s.ID == id {
			return s, true
		}
	}
	return Style{}, false
}
