// Package apperrors defines the error kinds surfaced to API clients and
// their HTTP status mapping.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the stable machine-readable error category.
type Kind string

const (
	KindInvalidRating        Kind = "invalid_rating"
	KindInvalidTarget        Kind = "invalid_target"
	KindDuplicateRatingToday Kind = "duplicate_rating_today"
	KindNotFound             Kind = "not_found"
	KindForbidden            Kind = "forbidden"
	KindNoOp                 Kind = "no_op"
	KindInvalidParameters    Kind = "invalid_parameters"
	KindUnauthorized         Kind = "unauthorized"
	KindPersistence          Kind = "persistence_error"
)

// Store sentinels. Repositories return these; the service translates them.
var (
	ErrNoRecord          = errors.New("record not found")
	ErrDuplicateDailyKey = errors.New("duplicate daily rating key")
)

// Error is a structured error with a kind, a display message and an
// optional internal cause that is never sent to clients.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the status code for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidRating, KindInvalidTarget, KindDuplicateRatingToday, KindNoOp:
		return http.StatusUnprocessableEntity
	case KindInvalidParameters:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse is the JSON body sent to clients.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  Kind   `json:"kind"`
}

func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{Error: e.Message, Kind: e.Kind}
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func InvalidRating() *Error {
	return New(KindInvalidRating, "Invalid rating value. Must be -1, 0, or 1")
}

func InvalidTarget(message string) *Error {
	return New(KindInvalidTarget, message)
}

func DuplicateRatingToday() *Error {
	return New(KindDuplicateRatingToday, "You can only rate a user once per day")
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

func NoOp() *Error {
	return New(KindNoOp, "No valid parameters provided for update")
}

func InvalidParameters(message string) *Error {
	return New(KindInvalidParameters, message)
}

func Unauthorized() *Error {
	return New(KindUnauthorized, "unauthorized")
}

// Persistence wraps a store failure behind a generic message.
func Persistence(cause error) *Error {
	return &Error{Kind: KindPersistence, Message: "internal server error", Cause: cause}
}

// AsStructured converts any error into an *Error, wrapping unknown errors
// as persistence errors.
func AsStructured(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Persistence(err)
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
