package pricewatch

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPageURLSubstitutesPlaceholder(t *testing.T) {
	t.Parallel()

	p := SiteProfile{URLTemplate: "https://example.com/catalog/drinks?page={page}"}
	require.Equal(t, "https://example.com/catalog/drinks?page=3", p.PageURL(3))
}

func TestFallbackDefaultsToZero(t *testing.T) {
	t.Parallel()

	require.Equal(t, FallbackZero, SiteProfile{}.Fallback())
	require.Equal(t, FallbackSkip, SiteProfile{PriceFallback: FallbackSkip}.Fallback())
}

func TestNewFetchErrorClassifiesExpiredCredentials(t *testing.T) {
	t.Parallel()

	base := fmt.Errorf("forbidden")

	err := NewFetchError("https://example.com", 403, base)
	require.ErrorIs(t, err, ErrCredentialsExpired)
	require.Equal(t, 403, err.StatusCode)

	err = NewFetchError("https://example.com", 500, base)
	require.False(t, errors.Is(err, ErrCredentialsExpired))
}

func TestLastStatusCode(t *testing.T) {
	t.Parallel()

	require.Zero(t, RunReport{}.LastStatusCode())
	require.Equal(t, 503, RunReport{StatusCodes: []int{200, 503}}.LastStatusCode())
}
