package nicotools

import (
	"errors"

	httpclient "nicotools/http"
	"nicotools/internal/retry"
	"nicotools/mylist"
	"nicotools/nico"
)

// Exported error types from sub-packages:
//
// From nico package:
//   - nico.ErrBadArgument: Invalid user input, nothing was sent
//   - nico.ErrDeadContent: Content deleted or private
//   - nico.ErrAccessLocked: Temporary per-account lock
//   - nico.ErrLoginFailed: Credentials rejected or no stored session
//   - nico.BatchError: Some items of a download run did not complete
//
// From mylist package:
//   - mylist.ErrSameList: Copy or move onto the source list
//   - mylist.ErrNoItems: Selection matched nothing
//   - mylist.ErrDeclined: Confirmation refused
//   - mylist.NotFoundError, mylist.AmbiguousError: List lookup failures
//   - mylist.AbortError: Mutation batch stopped early

// Type aliases for convenient error handling.
type (
	// BatchError lists the failed and skipped items of a download run.
	BatchError = nico.BatchError
	// AbortError names the code that stopped a mylist batch and the items it left.
	AbortError = mylist.AbortError
	// NotFoundError means no mylist matched.
	NotFoundError = mylist.NotFoundError
	// AmbiguousError means several mylists share the requested name.
	AmbiguousError = mylist.AmbiguousError
	// APIError is an error object returned by the mylist API.
	APIError = mylist.APIError
)

// Sentinel errors exported from sub-packages.
var (
	ErrBadArgument       = nico.ErrBadArgument
	ErrDeadContent       = nico.ErrDeadContent
	ErrAccessLocked      = nico.ErrAccessLocked
	ErrLoginFailed       = nico.ErrLoginFailed
	ErrTokenNotFound     = nico.ErrTokenNotFound
	ErrMalformedResponse = nico.ErrMalformedResponse
	ErrSkipped           = nico.ErrSkipped
	ErrDestination       = nico.ErrDestination

	// Mylist errors
	ErrSameList = mylist.ErrSameList
	ErrNoItems  = mylist.ErrNoItems
	ErrDeclined = mylist.ErrDeclined
)

// IsRetryable reports whether err is a transient failure worth trying again
// later: an access lock, throttling, a 5xx response or a network error.
func IsRetryable(err error) bool {
	if errors.Is(err, nico.ErrAccessLocked) {
		return true
	}
	var httpErr *httpclient.HTTPError
	var rl *httpclient.RateLimitError
	if !errors.Is(err, httpclient.ErrRequestFailed) && !errors.As(err, &httpErr) && !errors.As(err, &rl) {
		return false
	}
	return retry.IsRetryable(err) && httpclient.IsTransientHTTPError(err)
}
