package phase

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON pulls the first JSON object or array out of a model response,
// tolerating markdown fences and surrounding prose.
func ExtractJSON(text string) (string, error) {
	if fenced := extractFenced(text); fenced != "" {
		text = fenced
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", fmt.Errorf("no JSON found in model response")
	}

	open := text[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
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
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				candidate := text[start : i+1]
				if !json.Valid([]byte(candidate)) {
					return "", fmt.Errorf("extracted text is not valid JSON")
				}
				return candidate, nil
			}
		}
	}

	return "", fmt.Errorf("unterminated JSON in model response")
}

// ExtractCode strips a markdown fence from generated code, returning the
// text unchanged when no fence is present.
func ExtractCode(text string) string {
	if fenced := extractFenced(text); fenced != "" {
		return fenced
	}
	return strings.TrimSpace(text)
}

func extractFenced(text string) string {
	start := strings.Index(text, "```")
	if start < 0 {
		return ""
	}
	rest := text[start+3:]
	if newline := strings.IndexByte(rest, '\n'); newline >= 0 {
		if isLanguageTag(strings.TrimSpace(rest[:newline])) {
			rest = rest[newline+1:]
		}
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

// isLanguageTag reports whether a fence's first line is an info string like
// "json" or "python". Anything else is content that happens to start on the
// fence line and must be kept.
func isLanguageTag(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '+' || r == '#':
		default:
			return false
		}
	}
	return true
}
