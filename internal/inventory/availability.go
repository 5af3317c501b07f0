package inventory

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"leadmatch/internal/config"
)

var slashPair = regexp.MustCompile(`(\p{L}+)\s*/\s*(\p{L}+)`)

// AvailabilityFilter hides rows that look sold, booked or privately reserved
type AvailabilityFilter struct {
	sold     []string
	interest []string
	allow    map[string]bool
}

// NewAvailabilityFilter builds a filter from keyword configuration.
// Uppercase tokens on the allow-list never count as a booking signature.
func NewAvailabilityFilter(kw config.AvailabilityKeywords) *AvailabilityFilter {
	allow := make(map[string]bool, len(kw.Uppercase))
	for _, t := range kw.Uppercase {
		if t = strings.TrimSpace(t); t != "" {
			allow[strings.ToUpper(t)] = true
		}
	}
	return &AvailabilityFilter{
		sold:     lowerAll(kw.Sold),
		interest: lowerAll(kw.Interest),
		allow:    allow,
	}
}

// IsAvailable checks every cell of a row for sold keywords and booking signatures
func (f *AvailabilityFilter) IsAvailable(row []string) bool {
	for _, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		if f.hasSoldKeyword(cell) || f.hasBookingSignature(cell) {
			return false
		}
	}
	return true
}

// Filter returns a copy of t without unavailable rows and how many were removed
func (f *AvailabilityFilter) Filter(t *Table) (*Table, int) {
	if t == nil {
		return &Table{}, 0
	}

	out := &Table{Columns: t.Columns, Rows: make([][]string, 0, len(t.Rows))}
	for _, row := range t.Rows {
		if f.IsAvailable(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out, len(t.Rows) - len(out.Rows)
}

func (f *AvailabilityFilter) hasSoldKeyword(cell string) bool {
	lower := strings.ToLower(cell)
	for _, kw := range f.sold {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	for _, kw := range f.interest {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// hasBookingSignature spots the conventions agents use to mark a unit as held:
// a name in capitals ("MARIA"), a name with a code ("AB 022"), or two names
// joined by a slash ("anna/nino").
func (f *AvailabilityFilter) hasBookingSignature(cell string) bool {
	tokens := strings.FieldsFunc(cell, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for i, tok := range tokens {
		if !isUpperWord(tok) || f.allow[tok] {
			continue
		}
		if utf8.RuneCountInString(tok) >= 3 {
			return true
		}
		if utf8.RuneCountInString(tok) >= 2 && i+1 < len(tokens) && isNumber(tokens[i+1]) {
			return true
		}
	}

	for _, m := range slashPair.FindAllStringSubmatch(cell, -1) {
		if !f.allow[strings.ToUpper(m[1])] || !f.allow[strings.ToUpper(m[2])] {
			return true
		}
	}
	return false
}

// isUpperWord reports whether tok is made only of uppercase letters
func isUpperWord(tok string) bool {
	if tok == "" {
		return false
	}
	for _, r := range tok {
		if !unicode.IsLetter(r) || !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

func isNumber(tok string) bool {
	if tok == "" {
		return false
	}
	for _, r := range tok {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
