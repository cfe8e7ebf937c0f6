package nico

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrBadArgument marks invalid user input. Nothing has been sent.
	ErrBadArgument = errors.New("bad argument")

	// ErrDeadContent is a descriptor reporting deleted or private content.
	ErrDeadContent = errors.New("content deleted or private")

	// ErrAccessLocked is the site's temporary per-account lock on session
	// parameter requests.
	ErrAccessLocked = errors.New("access locked")

	ErrLoginFailed   = errors.New("login failed")
	ErrTokenNotFound = errors.New("mylist token not found")

	// ErrMalformedResponse is a response missing fields the tool relies on.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrSkipped marks an item that was given up on without failing the run,
	// such as a thumbnail missing at every size.
	ErrSkipped = errors.New("skipped")

	// ErrDestination means the output directory could not be prepared.
	ErrDestination = errors.New("destination unusable")
)

// BatchError summarises a run in which some items did not complete.
type BatchError struct {
	Kind    string
	Skipped []string
	Failed  map[string]error
}

func (e *BatchError) Error() string {
	var parts []string
	if len(e.Failed) > 0 {
		ids := make([]string, 0, len(e.Failed))
		for id := range e.Failed {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		parts = append(parts, fmt.Sprintf("%d failed (%s)", len(ids), strings.Join(ids, ", ")))
	}
	if len(e.Skipped) > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped (%s)", len(e.Skipped), strings.Join(e.Skipped, ", ")))
	}
	return fmt.Sprintf("%s: %s", e.Kind, strings.Join(parts, "; "))
}
