package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DecodeJSON decodes JSON from an LLM response, handling common formatting quirks.
func DecodeJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}

	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}

	cleaned := CleanJSON(trimmed)
	if cleaned == "" || cleaned == trimmed {
		return fmt.Errorf("%w (payload snippet: %s)", directErr, summarizePayloadSnippet(trimmed))
	}

	cleanedErr := json.Unmarshal([]byte(cleaned), target)
	if cleanedErr == nil {
		return nil
	}
	return fmt.Errorf("%w (cleaned payload snippet: %s)", cleanedErr, summarizePayloadSnippet(cleaned))
}

// CleanJSON strips code fences, extracts the outermost array or object, and
// removes trailing commas.
func CleanJSON(raw string) string {
	trimmed := strings.TrimSpace(stripCodeFenceBlock(raw))
	if trimmed == "" {
		return ""
	}
	return removeTrailingCommas(extractOutermost(trimmed))
}

func extractOutermost(content string) string {
	start := strings.Index(content, "{")
	closing := "}"
	if arr := strings.Index(content, "["); arr >= 0 && (start < 0 || arr < start) {
		start, closing = arr, "]"
	}
	if start < 0 {
		return content
	}
	end := strings.LastIndex(content, closing)
	if end <= start {
		return content
	}
	return strings.TrimSpace(content[start : end+1])
}

func removeTrailingCommas(content string) string {
	var b strings.Builder
	b.Grow(len(content))
	inString := false
	escaped := false
	for i := 0; i < len(content); i++ {
		ch := content[i]
		if inString {
			b.WriteByte(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		if ch == '"' {
			inString = true
			b.WriteByte(ch)
			continue
		}
		if ch == ',' {
			j := i + 1
			for j < len(content) && strings.IndexByte(" \t\r\n", content[j]) >= 0 {
				j++
			}
			if j < len(content) && (content[j] == '}' || content[j] == ']') {
				continue
			}
		}
		b.WriteByte(ch)
	}
	return b.String()
}

func stripCodeFenceBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "```")
	if start < 0 {
		return trimmed
	}
	body := trimmed[start+3:]
	body = strings.TrimLeft(body, " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
		body = strings.TrimLeft(body, " \t\r\n")
	}
	if idx := strings.Index(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func summarizePayloadSnippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	clean := strings.Join(strings.Fields(trimmed), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
