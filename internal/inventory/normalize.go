package inventory

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"leadmatch/internal/config"
)

var (
	firstDecimal = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	firstInteger = regexp.MustCompile(`\d+`)
)

// wholeNumber matches "150000", "150 000" and "150,000" but not "150000 2"
const wholeNumber = `\d{1,3}(?:[ ,.\x{00A0}]\d{3})+|\d+`

const decimalNumber = `\d+(?:[.,]\d+)?`

// Range is a closed numeric interval; Max may be +Inf
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies in [Min, Max]
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Widen grows the range by pct on both sides
func (r Range) Widen(pct float64) Range {
	out := Range{Min: r.Min * (1 - pct), Max: r.Max}
	if !math.IsInf(r.Max, 1) {
		out.Max = r.Max * (1 + pct)
	}
	return out
}

// Bounded reports whether Max is finite
func (r Range) Bounded() bool {
	return !math.IsInf(r.Max, 1)
}

// NormalizeAmount turns a price cell into a number. Only digits, '.' and ','
// survive; ',' is a decimal point.
func NormalizeAmount(text string) (float64, bool) {
	var b strings.Builder
	for _, r := range text {
		switch {
		case r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		case r == ',':
			b.WriteRune('.')
		}
	}
	s := b.String()
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// NormalizeSize returns the first decimal number in text
func NormalizeSize(text string) (float64, bool) {
	m := firstDecimal.FindString(text)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// FormatAmount renders a value so that NormalizeAmount reads it back unchanged
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Normalizer parses room counts and budget/size ranges using configured markers
type Normalizer struct {
	studio []string

	budgetUpTo *regexp.Regexp
	budgetFrom *regexp.Regexp
	sizeAtMost *regexp.Regexp
	sizeLeast  *regexp.Regexp
	thousands  *regexp.Regexp

	budgetSpan *regexp.Regexp
	sizeSpan   *regexp.Regexp
	budgetBare *regexp.Regexp
}

// NewNormalizer compiles marker patterns from keyword configuration
func NewNormalizer(kw config.RangeKeywords) *Normalizer {
	return &Normalizer{
		studio:     lowerAll(kw.Studio),
		budgetUpTo: markerPattern(kw.UpTo, wholeNumber),
		budgetFrom: markerPattern(kw.From, wholeNumber),
		sizeAtMost: markerPattern(kw.AtMost, decimalNumber),
		sizeLeast:  markerPattern(kw.AtLeast, decimalNumber),
		thousands:  suffixPattern(kw.Thousands),
		budgetSpan: regexp.MustCompile(`(` + wholeNumber + `)\s*[-–—]\s*(` + wholeNumber + `)`),
		sizeSpan:   regexp.MustCompile(`(` + decimalNumber + `)\s*[-–—]\s*(` + decimalNumber + `)`),
		budgetBare: regexp.MustCompile(wholeNumber),
	}
}

// RoomCount returns 0 for a studio, else the first integer in text
func (n *Normalizer) RoomCount(text string) (int, bool) {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return 0, false
	}
	for _, marker := range n.studio {
		if strings.Contains(t, marker) {
			return 0, true
		}
	}
	m := firstInteger.FindString(t)
	if m == "" {
		return 0, false
	}
	v, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return v, true
}

// BudgetRange parses "A-B", "до X", "от X", "от X до Y" or a bare number.
// A bare number gets 10% headroom above it.
func (n *Normalizer) BudgetRange(text string) (Range, bool) {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return Range{}, false
	}
	scale := n.scaler(t)

	if m := n.budgetSpan.FindStringSubmatch(t); m != nil {
		lo, ok1 := parseWhole(m[1])
		hi, ok2 := parseWhole(m[2])
		if ok1 && ok2 {
			return ordered(scale(lo), scale(hi)), true
		}
	}

	from, hasFrom := firstGroup(n.budgetFrom, t, parseWhole)
	upTo, hasUpTo := firstGroup(n.budgetUpTo, t, parseWhole)
	switch {
	case hasFrom && hasUpTo:
		return ordered(scale(from), scale(upTo)), true
	case hasUpTo:
		return Range{Min: 0, Max: scale(upTo)}, true
	case hasFrom:
		return Range{Min: scale(from), Max: math.Inf(1)}, true
	}

	if m := n.budgetBare.FindString(t); m != "" {
		if v, ok := parseWhole(m); ok {
			return Range{Min: 0, Max: scale(v) * 11 / 10}, true
		}
	}
	return Range{}, false
}

// SizeRange parses the same shapes as BudgetRange plus at-least/at-most
// markers. A bare number becomes a ±20% window.
func (n *Normalizer) SizeRange(text string) (Range, bool) {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return Range{}, false
	}

	if m := n.sizeSpan.FindStringSubmatch(t); m != nil {
		lo, ok1 := NormalizeSize(m[1])
		hi, ok2 := NormalizeSize(m[2])
		if ok1 && ok2 {
			return ordered(lo, hi), true
		}
	}

	least, hasLeast := firstGroup(n.sizeLeast, t, NormalizeSize)
	most, hasMost := firstGroup(n.sizeAtMost, t, NormalizeSize)
	switch {
	case hasLeast && hasMost:
		return ordered(least, most), true
	case hasMost:
		return Range{Min: 0, Max: most}, true
	case hasLeast:
		return Range{Min: least, Max: math.Inf(1)}, true
	}

	if v, ok := NormalizeSize(t); ok {
		return Range{Min: v * 8 / 10, Max: v * 12 / 10}, true
	}
	return Range{}, false
}

// scaler multiplies small values by 1000 when a thousands marker follows a number
func (n *Normalizer) scaler(t string) func(float64) float64 {
	if n.thousands == nil || !n.thousands.MatchString(t) {
		return func(v float64) float64 { return v }
	}
	return func(v float64) float64 {
		if v < 1000 {
			return v * 1000
		}
		return v
	}
}

func parseWhole(s string) (float64, bool) {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func firstGroup(re *regexp.Regexp, t string, parse func(string) (float64, bool)) (float64, bool) {
	if re == nil {
		return 0, false
	}
	m := re.FindStringSubmatch(t)
	if m == nil {
		return 0, false
	}
	return parse(m[1])
}

func ordered(a, b float64) Range {
	if a > b {
		a, b = b, a
	}
	return Range{Min: a, Max: b}
}

// markerPattern matches a marker at a word start followed by a number
func markerPattern(markers []string, number string) *regexp.Regexp {
	alt := alternation(markers)
	if alt == "" {
		return nil
	}
	return regexp.MustCompile(`(?:^|[^\p{L}])(?:` + alt + `)\s*(` + number + `)`)
}

// suffixPattern matches a marker directly after a number ("150k", "150 тыс")
func suffixPattern(markers []string) *regexp.Regexp {
	alt := alternation(markers)
	if alt == "" {
		return nil
	}
	return regexp.MustCompile(`\d\s*(?:` + alt + `)`)
}

func alternation(markers []string) string {
	quoted := make([]string, 0, len(markers))
	for _, m := range lowerAll(markers) {
		quoted = append(quoted, regexp.QuoteMeta(m))
	}
	// longest first so "up to" wins over a shorter prefix
	sort.SliceStable(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
	return strings.Join(quoted, "|")
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
