package crawler

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMalformedPage is returned when a fetched page cannot be parsed.
	// Only that page is abandoned.
	ErrMalformedPage = errors.New("malformed page")

	// ErrDisallowed is returned when robots.txt forbids a URL.
	ErrDisallowed = errors.New("disallowed by robots.txt")

	// ErrBodyTooLarge is returned when a response body exceeds the fetcher's
	// size limit. The truncated page is not parsed.
	ErrBodyTooLarge = errors.New("response body too large")
)

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d (%s) for %s",
		e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// Temporary reports whether the status is worth retrying:
// 429 Too Many Requests and any 5xx.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}
