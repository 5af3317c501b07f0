package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	codeFence     = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
	unquotedKey   = regexp.MustCompile(`([{,]\s*)([A-Za-z_]\w*)(\s*:)`)
	controlChars  = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F]`)
)

var errEmptyOutput = errors.New("empty model output")

// DecodeObject decodes the JSON object a model answered with. The object may
// sit in a code fence or in prose, and may carry // comments, trailing commas
// or bare keys.
func DecodeObject(raw string, target any) error {
	text := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
	if text == "" {
		return errEmptyOutput
	}

	body := text
	if m := codeFence.FindStringSubmatch(text); m != nil {
		body = m[1]
	}

	for _, candidate := range []string{
		body,
		outerObject(body),
		repairObject(outerObject(stripLineComments(body))),
	} {
		if candidate == "" {
			continue
		}
		if err := json.Unmarshal([]byte(candidate), target); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no JSON object in model output: %s", Truncate(text, 100))
}

// outerObject returns the first balanced {...} in s, "" when there is none
func outerObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString, escape := false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		switch {
		case escape:
			escape = false
		case inString && ch == '\\':
			escape = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			if depth--; depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func repairObject(s string) string {
	if s == "" {
		return ""
	}
	s = trailingComma.ReplaceAllString(s, "$1")
	s = unquotedKey.ReplaceAllString(s, `$1"$2"$3`)
	return controlChars.ReplaceAllString(s, "")
}

// stripLineComments drops // comments that sit outside string literals
func stripLineComments(s string) string {
	var b strings.Builder
	inString, escape := false, false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case escape:
			escape = false
		case inString && ch == '\\':
			escape = true
		case ch == '"':
			inString = !inString
		case !inString && ch == '/' && i+1 < len(s) && s[i+1] == '/':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				b.WriteByte('\n')
			}
			continue
		}
		b.WriteByte(ch)
	}
	return b.String()
}
