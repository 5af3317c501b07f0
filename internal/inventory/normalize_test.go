package inventory

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadmatch/internal/config"
)

func newTestNormalizer() *Normalizer {
	return NewNormalizer(config.DefaultKeywords().Ranges)
}

func TestNormalizeAmount(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   float64
		wantOK bool
	}{
		{"plain", "150000", 150000, true},
		{"spaces and currency", "$ 150 000", 150000, true},
		{"comma decimal", "85,5", 85.5, true},
		{"dot decimal", "1.25", 1.25, true},
		{"empty", "", 0, false},
		{"no digits", "по запросу", 0, false},
		{"two decimal points", "1.000.000", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeAmount(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestNormalizeAmount_IdempotentOnOwnOutput(t *testing.T) {
	inputs := []string{"150000", "$ 99 500", "85,5", "0.75", "1 250 000 GEL", "12"}
	for _, in := range inputs {
		first, ok := NormalizeAmount(in)
		require.True(t, ok, in)

		second, ok := NormalizeAmount(FormatAmount(first))
		require.True(t, ok, in)
		assert.Equal(t, first, second, in)
	}
}

func TestNormalizeSize(t *testing.T) {
	v, ok := NormalizeSize("около 65,5 м²")
	require.True(t, ok)
	assert.InDelta(t, 65.5, v, 1e-9)

	v, ok = NormalizeSize("48 sqm, 2 balconies")
	require.True(t, ok)
	assert.InDelta(t, 48.0, v, 1e-9)

	_, ok = NormalizeSize("большая")
	assert.False(t, ok)
}

func TestNormalizer_RoomCount(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		input  string
		want   int
		wantOK bool
	}{
		{"студия", 0, true},
		{"Studio with balcony", 0, true},
		{"2 спальни", 2, true},
		{"3-комнатная", 3, true},
		{"", 0, false},
		{"побольше", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := n.RoomCount(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizer_BudgetRange(t *testing.T) {
	n := newTestNormalizer()
	inf := math.Inf(1)

	tests := []struct {
		name   string
		input  string
		want   Range
		wantOK bool
	}{
		{"explicit range", "100000-150000", Range{100000, 150000}, true},
		{"range with spaces", "100 000 - 150 000 $", Range{100000, 150000}, true},
		{"up to", "до 150000", Range{0, 150000}, true},
		{"up to english", "up to 90000 usd", Range{0, 90000}, true},
		{"from", "от 200000", Range{200000, inf}, true},
		{"from and up to", "от 80000 до 120000", Range{80000, 120000}, true},
		{"bare number headroom", "180000", Range{0, 198000}, true},
		{"thousands marker", "100-200 тысяч", Range{100000, 200000}, true},
		{"k suffix", "до 150k", Range{0, 150000}, true},
		{"empty", "", Range{}, false},
		{"no numbers", "не знаю", Range{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := n.BudgetRange(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizer_SizeRange(t *testing.T) {
	n := newTestNormalizer()
	inf := math.Inf(1)

	tests := []struct {
		name   string
		input  string
		want   Range
		wantOK bool
	}{
		{"explicit range", "50-70 м²", Range{50, 70}, true},
		{"minimum", "минимум 60 метров", Range{60, inf}, true},
		{"at least", "at least 45 sqm", Range{45, inf}, true},
		{"maximum", "не более 80", Range{0, 80}, true},
		{"up to", "до 55", Range{0, 55}, true},
		{"bare number window", "50", Range{40, 60}, true},
		{"empty", "  ", Range{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := n.SizeRange(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRange_Widen(t *testing.T) {
	r := Range{Min: 50, Max: 70}.Widen(0.1)
	assert.InDelta(t, 45.0, r.Min, 1e-9)
	assert.InDelta(t, 77.0, r.Max, 1e-9)

	open := Range{Min: 60, Max: math.Inf(1)}.Widen(0.1)
	assert.False(t, open.Bounded())
	assert.InDelta(t, 54.0, open.Min, 1e-9)
}
