package cozy

import (
	"context"
	"errors"
	"fmt"

	"cozy/internal/db"
	"cozy/internal/domain/places"
	"cozy/internal/domain/ratings"
	"cozy/internal/domain/users"
)

type Kind int

const (
	KindInternal Kind = iota
	KindInvalidArgument
	KindConflict
	KindNotFound
	KindUnauthorized
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindConflict:
		return "Conflict"
	case KindNotFound:
		return "NotFound"
	case KindUnauthorized:
		return "Unauthorized"
	case KindUnavailable:
		return "Unavailable"
	default:
		return "Internal"
	}
}

// Reasons attached to Conflict errors so clients can tell them apart.
const (
	ReasonValidationError = "ValidationError"
	ReasonDuplicateReport = "DuplicateReport"
)

// Error is the error type returned by Service. Message is safe to show to
// clients; Err carries the underlying cause for logs.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func InvalidArgument(msg string) *Error {
	return &Error{Kind: KindInvalidArgument, Message: msg}
}

func Conflict(reason, msg string) *Error {
	return &Error{Kind: KindConflict, Reason: reason, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func Unavailable(err error) *Error {
	return &Error{Kind: KindUnavailable, Message: "the service is temporarily unavailable", Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "the server encountered a problem", Err: err}
}

// KindOf returns the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// fromStore translates repository errors into the service taxonomy.
func fromStore(err error) error {
	if err == nil {
		return nil
	}

	var e *Error
	switch {
	case errors.As(err, &e):
		return e
	case errors.Is(err, places.ErrNotFound):
		return NotFound("place not found")
	case errors.Is(err, ratings.ErrNotFound):
		return NotFound("rating not found")
	case errors.Is(err, users.ErrNotFound):
		return NotFound("user not found")
	case errors.Is(err, ratings.ErrDuplicate):
		return Conflict(ReasonValidationError, "you have already rated this place")
	case errors.Is(err, places.ErrAlreadyReported):
		return Conflict(ReasonDuplicateReport, "you have already reported this place")
	case errors.Is(err, users.ErrDuplicateEmail):
		return Conflict(ReasonValidationError, users.ErrDuplicateEmail.Error())
	case errors.Is(err, users.ErrDuplicateUsername):
		return Conflict(ReasonValidationError, users.ErrDuplicateUsername.Error())
	case isTransient(err):
		return Unavailable(err)
	default:
		return Internal(err)
	}
}

func isTransient(err error) bool {
	return errors.Is(err, db.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded)
}
