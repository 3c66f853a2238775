package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an Error so callers can switch on it instead of parsing messages.
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindUnauthorized    Kind = "unauthorized"
	KindUnauthenticated Kind = "unauthenticated"
	KindValidation      Kind = "validation"
	KindInvalidState    Kind = "invalid_state"
	KindConflict        Kind = "conflict"
	KindInternal        Kind = "internal"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code, so clones compare equal to their sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, kind Kind, status int, message string) *Error {
	return &Error{Code: code, Kind: kind, Status: status, Message: message}
}

// Wrap attaches context to an existing error, inheriting code, kind and status from base.
func Wrap(err error, base *Error, message string) *Error {
	if base == nil {
		base = ErrInternal
	}
	if message == "" {
		message = base.Message
	}
	return &Error{Code: base.Code, Kind: base.Kind, Status: base.Status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials    = New("INVALID_CREDENTIALS", KindUnauthenticated, http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount       = New("ACCOUNT_INACTIVE", KindUnauthorized, http.StatusForbidden, "account is inactive")
	ErrNotFound              = New("NOT_FOUND", KindNotFound, http.StatusNotFound, "resource not found")
	ErrForbidden             = New("FORBIDDEN", KindUnauthorized, http.StatusForbidden, "forbidden")
	ErrUnauthorized          = New("UNAUTHORIZED", KindUnauthenticated, http.StatusUnauthorized, "unauthorized")
	ErrConflict              = New("CONFLICT", KindConflict, http.StatusConflict, "conflict")
	ErrDuplicateRequest      = New("DUPLICATE_REQUEST", KindConflict, http.StatusConflict, "a pending request already exists")
	ErrIncomingRequestExists = New("INCOMING_REQUEST_EXISTS", KindConflict, http.StatusConflict, "this user has already sent you a request; respond to it instead")
	ErrCapacityExceeded      = New("CAPACITY_EXCEEDED", KindConflict, http.StatusConflict, "supervisor capacity exceeded")
	ErrDuplicateApplication  = New("DUPLICATE_APPLICATION", KindConflict, http.StatusConflict, "an active application to this supervisor already exists")
	ErrConcurrentUpdate      = New("CONCURRENT_UPDATE", KindConflict, http.StatusConflict, "the record was modified concurrently, please retry")
	ErrInvalidState          = New("INVALID_STATE", KindInvalidState, http.StatusUnprocessableEntity, "operation not allowed in the current state")
	ErrValidation            = New("VALIDATION_ERROR", KindValidation, http.StatusBadRequest, "validation failed")
	ErrInternal              = New("INTERNAL_ERROR", KindInternal, http.StatusInternalServerError, "internal server error")
	ErrCacheMiss             = New("CACHE_MISS", KindNotFound, http.StatusNotFound, "cache miss")
	ErrTooManyRequests       = New("TOO_MANY_REQUESTS", KindConflict, http.StatusTooManyRequests, "too many requests")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal, ErrInternal.Message)
}

// KindOf reports the kind of err; unknown errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return FromError(err).Kind
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
