package pricewatch

import (
	"strconv"
	"strings"
)

// priceLabel is the currency label prefix some shops render before the value.
const priceLabel = "Цена"

// NormalizePrice converts locale-formatted price text to an integer price.
// The fractional part after the first '.' or ',' is discarded. Empty or
// unparsable input yields 0; use NormalizePriceStrict when the caller needs
// to distinguish that fallback.
func NormalizePrice(text string) int64 {
	cost, _ := NormalizePriceStrict(text)
	return cost
}

// NormalizePriceStrict is NormalizePrice plus an ok flag that is false when
// the input did not contain a parsable integer.
func NormalizePriceStrict(text string) (int64, bool) {
	s := strings.TrimSpace(text)
	s = strings.TrimSpace(strings.TrimPrefix(s, priceLabel))
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)

	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	cost, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return cost, true
}
