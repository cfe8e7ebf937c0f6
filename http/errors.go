package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// RateLimitError indicates the server throttled the request (429 or 503).
type RateLimitError struct {
	StatusCode int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (status %d): retry after %v", e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited (status %d)", e.StatusCode)
}

// HTTPError is a non-2xx response.
type HTTPError struct {
	StatusCode int
	URL        string
	// Body holds at most the first 4 KiB of the response.
	Body []byte
}

func (e *HTTPError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("http error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("http error: status %d for %s", e.StatusCode, e.URL)
}

// ErrRequestFailed wraps transport-level failures (DNS, refused, reset, timeout).
var ErrRequestFailed = errors.New("http request failed")

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}
