package utils

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	// anything outside letters, digits, whitespace and common contact punctuation
	disallowedChars = regexp.MustCompile(`[^\p{L}\p{N}\s\-+@().,/:#№%&*'"!?$€₾₽_]`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	firstInteger    = regexp.MustCompile(`\d+`)
)

// Sanitize strips unexpected symbols, collapses whitespace and cuts the text
// to maxLen runes
func Sanitize(text string, maxLen int) string {
	cleaned := strings.TrimSpace(text)
	cleaned = disallowedChars.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(whitespaceRun.ReplaceAllString(cleaned, " "))

	if maxLen > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxLen {
			cleaned = strings.TrimSpace(string(runes[:maxLen]))
		}
	}
	return cleaned
}

// NormalizePhrase lower-cases and trims surrounding punctuation
func NormalizePhrase(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	return strings.TrimFunc(text, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
}

// IsPhrase reports whether the whole text is one of the phrases. Phrases made
// only of punctuation ("-") are compared verbatim.
func IsPhrase(text string, phrases []string) bool {
	raw := strings.ToLower(strings.TrimSpace(text))
	if raw == "" {
		return false
	}
	normalized := NormalizePhrase(raw)
	for _, p := range phrases {
		want := NormalizePhrase(p)
		if want == "" {
			want = strings.ToLower(strings.TrimSpace(p))
			if raw == want {
				return true
			}
			continue
		}
		if normalized == want {
			return true
		}
	}
	return false
}

// ContainsPhrase reports whether any phrase occurs in the text
func ContainsPhrase(text string, phrases []string) bool {
	normalized := NormalizePhrase(text)
	if normalized == "" {
		return false
	}
	for _, p := range phrases {
		if p = NormalizePhrase(p); p != "" && strings.Contains(normalized, p) {
			return true
		}
	}
	return false
}

// FirstInt returns the first run of digits in the text
func FirstInt(text string) (int, bool) {
	match := firstInteger.FindString(text)
	if match == "" {
		return 0, false
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Truncate cuts s to maxLen runes, marking the cut with an ellipsis
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if maxLen <= 0 || len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
