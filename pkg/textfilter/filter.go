package textfilter

import (
	"strings"
)

// ExtractJSON pulls the JSON document out of raw model output. Structured
// output modes are supposed to return bare JSON, but models still wrap
// replies in markdown fences or lead with prose often enough that parsing
// the raw text directly fails turns that are otherwise fine.
func ExtractJSON(text string) []byte {
	s := strings.TrimSpace(text)

	// Strip a markdown code fence, with or without a language tag.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	// Trim prose around the outermost object.
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}

	return []byte(s)
}

// CleanDisplay strips control characters the terminal should never see
// from generated scene text. Newlines and tabs pass through.
func CleanDisplay(text string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, text)
}
