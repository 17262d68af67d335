package extraction

import (
	"strings"
)

// extractJSONObject locates the first top-level JSON object in raw model
// output and returns its substring. Models occasionally wrap the payload in
// Markdown fences or surrounding prose despite instructions, so the text is
// cleaned first and then scanned with a string-aware brace matcher.
func extractJSONObject(raw string) (string, bool) {
	s := cleanModelOutput(raw)

	start := strings.Index(s, "{")
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}

// cleanModelOutput strips Markdown code fences if the model ignored the
// raw-JSON instruction. Unfenced output is left untouched: backticks in
// surrounding prose or inside JSON string values must not truncate the
// payload.
func cleanModelOutput(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if !strings.HasPrefix(s, "```") {
		return s
	}

	// Drop the first line (``` or ```json).
	idx := strings.Index(s, "\n")
	if idx == -1 {
		// Single-line weirdness; just return as-is.
		return s
	}
	s = strings.TrimSpace(s[idx+1:])

	// Remove the closing fence. Only after an opening fence was dropped:
	// otherwise a ``` inside the payload would cut it short.
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	return strings.TrimSpace(s)
}
