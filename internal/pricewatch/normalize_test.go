package pricewatch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizePrice(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want int64
	}{
		{"empty", "", 0},
		{"not a number", "N/A", 0},
		{"labeled with kopecks", "Цена 49,90", 49},
		{"dot fraction", "129.99", 129},
		{"plain integer", "85", 85},
		{"surrounding whitespace", "  74 \n", 74},
		{"currency suffix", "119 ₽", 119},
		{"label only", "Цена", 0},
		{"fraction cut before comma", "55.10,20", 55},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, NormalizePrice(tc.in))
		})
	}
}

func TestNormalizePriceStrictFlagsFallback(t *testing.T) {
	t.Parallel()

	cost, ok := NormalizePriceStrict("N/A")
	require.Zero(t, cost)
	require.False(t, ok)

	cost, ok = NormalizePriceStrict("0")
	require.Zero(t, cost)
	require.True(t, ok)
}
