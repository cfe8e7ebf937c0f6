package mylist

import (
	"errors"
	"fmt"
	"strings"

	"nicotools/nico"
)

// Code is an error code returned by the mylist API.
type Code string

const (
	CodeExist        Code = "EXIST"
	CodeNonExist     Code = "NONEXIST"
	CodeParamError   Code = "PARAMERROR"
	CodeInternal     Code = "INTERNAL"
	CodeMaintenance  Code = "MAINTENANCE"
	CodeMaxError     Code = "MAXERROR"
	CodeNoAuth       Code = "NOAUTH"
	CodeInvalidToken Code = "INVALIDTOKEN"
	CodeExpireToken  Code = "EXPIRETOKEN"
)

// Continues reports whether a batch may go on to the next item after this
// code. Unknown codes stop the batch.
func (c Code) Continues() bool {
	switch c {
	case CodeExist, CodeNonExist, CodeParamError:
		return true
	}
	return false
}

// Op names a mylist operation in reports and errors.
type Op string

const (
	OpAdd    Op = "add"
	OpCopy   Op = "copy"
	OpMove   Op = "move"
	OpDelete Op = "delete"
	OpCreate Op = "create"
	OpPurge  Op = "purge"
)

var (
	// ErrSameList rejects a copy or move whose source and destination match.
	ErrSameList = fmt.Errorf("%w: source and destination are the same list", nico.ErrBadArgument)

	// ErrNoItems means a selection matched nothing in the list.
	ErrNoItems = errors.New("no matching items in the list")

	// ErrDeclined means the user answered no to a confirmation.
	ErrDeclined = errors.New("cancelled by user")
)

// NotFoundError is a mylist name or ID with no match.
type NotFoundError struct {
	Target string
	ByID   bool
}

func (e *NotFoundError) Error() string {
	if e.ByID {
		return fmt.Sprintf("no mylist with ID %s", e.Target)
	}
	return fmt.Sprintf("no mylist named %q", e.Target)
}

// AmbiguousError is a name shared by several mylists.
type AmbiguousError struct {
	Name       string
	Candidates []Descriptor
}

func (e *AmbiguousError) Error() string {
	ids := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		ids[i] = fmt.Sprint(c.ID)
	}
	return fmt.Sprintf("%d mylists are named %q (IDs %s); select one with its ID",
		len(e.Candidates), e.Name, strings.Join(ids, ", "))
}

// APIError is a failure status from the mylist API.
type APIError struct {
	Code        Code
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("mylist API error %s", e.Code)
	}
	return fmt.Sprintf("mylist API error %s: %s", e.Code, e.Description)
}

// AbortError stops a batch. Remaining holds the item that failed followed by
// every item never attempted, in request order.
type AbortError struct {
	Op        Op
	Code      Code
	Remaining []string
	Err       error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("%s aborted: %v; not processed: %s", e.Op, e.Err, strings.Join(e.Remaining, " "))
}

func (e *AbortError) Unwrap() error { return e.Err }
