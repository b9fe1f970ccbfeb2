package pricewatch

import (
	"errors"
	"fmt"
)

// ErrCredentialsExpired marks a fetch rejected because the profile's
// replayed session material is no longer accepted by the site.
var ErrCredentialsExpired = errors.New("credentials likely expired")

// FetchError wraps a failed page retrieval with the status code observed,
// if any.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NewFetchError classifies a failed retrieval. Authentication-style
// rejections become ErrCredentialsExpired so callers can tell a stale
// session from a generic failure.
func NewFetchError(url string, status int, err error) *FetchError {
	if status == 401 || status == 403 || status == 419 {
		err = fmt.Errorf("%w: %w", ErrCredentialsExpired, err)
	}
	return &FetchError{URL: url, StatusCode: status, Err: err}
}
