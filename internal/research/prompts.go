package research

import (
	"fmt"
	"strings"

	"narrativ/internal/storyplan"
)

const maxPastedText = 8000

const slideSystemPrompt = `You are a researcher and visual storyteller who builds short vertical story series for Instagram and WhatsApp.
Return a JSON array only. No markdown, no explanation.
Each element has: slide_number, title (at most 5 words, never a year), key_fact (one specific, verifiable fact of 15-25 words with real numbers or dates), visual_description (a detailed scene for an image model), mood (one or two words).`

const captionSystemPrompt = `You write captions for story series that people actually finish.
Open with the most surprising number or claim, connect it to the reader in one or two sentences, and end with a clear instruction to swipe through.
Return JSON only: {"caption": "...", "hashtags": ["NicheTag", "CommunityTag", "BroadTag"]}. Hashtags are CamelCase without the # symbol. English only.`

const aestheticSystemPrompt = `You are an art director designing one coherent visual system for a story series.
Pick the closest of: pop art comic, cinematic movie poster, clean minimalist, anime manga, cyberpunk neon.
Return JSON only with the keys art_style, color_palette, lighting, typography_style, texture, background_style. Include hex codes in color_palette.`

func topicSlidesPrompt(topic string, count int, findings Findings, aesthetic string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %q\n", topic)
	if content := findings.Content(); content != "" {
		b.WriteString("\nVERIFIED RESEARCH DATA:\n")
		b.WriteString(content)
		b.WriteString("\n\nBase every slide on the research above. Prefer the most recent figures for current events; for historical topics also mention the current status.\n")
	}
	if aesthetic != "" {
		fmt.Fprintf(&b, "\nVisual style for every scene: %s\n", aesthetic)
	}
	fmt.Fprintf(&b, "\nCreate exactly %d slides numbered 1-%d.\n", count, count)
	b.WriteString("Slide 1 opens with a striking fact. Middle slides go deeper with history and data. The final slide covers impact or significance.\n")
	return b.String()
}

func textSlidesPrompt(text string, count int, aesthetic string) string {
	if runes := []rune(text); len(runes) > maxPastedText {
		text = string(runes[:maxPastedText])
	}
	var b strings.Builder
	b.WriteString("Turn the following text into a story series. Use only facts found in the text.\n\n")
	b.WriteString("===== TEXT =====\n")
	b.WriteString(text)
	b.WriteString("\n================\n")
	if aesthetic != "" {
		fmt.Fprintf(&b, "\nVisual style for every scene: %s\n", aesthetic)
	}
	fmt.Fprintf(&b, "\nExtract the %d most important points and create exactly %d slides numbered 1-%d.\n", count, count, count)
	return b.String()
}

func moreSlidesPrompt(topic string, existing []storyplan.Slide, count int, findings Findings) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %q\n\nThe series already has these slides:\n", topic)
	for _, s := range existing {
		fmt.Fprintf(&b, "%d. %s: %s\n", s.SlideNumber, s.Title, s.KeyFact)
	}
	if content := findings.Content(); content != "" {
		b.WriteString("\nVERIFIED RESEARCH DATA:\n")
		b.WriteString(content)
		b.WriteString("\n")
	}
	first := len(existing) + 1
	fmt.Fprintf(&b, "\nCreate exactly %d new slides numbered %d-%d that continue the story without repeating any fact above.\n",
		count, first, first+count-1)
	return b.String()
}

func captionPrompt(topic string, slides []storyplan.Slide) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Story series about %q with %d slides:\n", topic, len(slides))
	for _, s := range slides {
		fmt.Fprintf(&b, "- %s: %s\n", s.Title, s.KeyFact)
	}
	b.WriteString("\nWrite one 2-4 sentence caption and exactly 3 hashtags.")
	return b.String()
}

func aestheticPrompt(topic, hint string) string {
	prompt := fmt.Sprintf("Design the visual system for a story series about %q.", topic)
	if hint = strings.TrimSpace(hint); hint != "" {
		prompt += fmt.Sprintf("\nThe user wants a %q style.", hint)
	}
	return prompt
}
