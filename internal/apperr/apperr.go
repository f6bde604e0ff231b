package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind groups errors by how the caller should react.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindDuplicate    Kind = "duplicate"
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindConflict     Kind = "conflict"
	KindUnauthorized Kind = "unauthorized"
	KindUnavailable  Kind = "unavailable"
	KindInternal     Kind = "internal"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so a wrapped instance compares
// equal to its sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// Status maps the kind to an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindDuplicate, KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable is true when the same call may succeed later.
func (e *Error) Retryable() bool { return e.Kind == KindUnavailable }

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap returns a copy of the sentinel carrying cause.
func Wrap(sentinel *Error, cause error) *Error {
	return &Error{Kind: sentinel.Kind, Code: sentinel.Code, Message: sentinel.Message, Err: cause}
}

// Unavailable marks a backend failure, keeping the cause for logs.
func Unavailable(cause error) *Error {
	return Wrap(ErrBackendUnavailable, cause)
}

// As extracts an *Error. Anything else becomes an internal error.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindInternal, Code: "internal", Message: "internal error", Err: err}
}

var (
	ErrValidation       = New(KindValidation, "invalid_input", "invalid input")
	ErrLocationRequired = New(KindValidation, "location_required", "a location must be selected before saving the profile")
	ErrSelfRequest      = New(KindValidation, "self_request", "cannot send a request to yourself")
	ErrEmptyMessage     = New(KindValidation, "empty_message", "message text is empty")

	ErrDuplicateRequest = New(KindDuplicate, "duplicate_request", "a request for this pair already exists")
	ErrAccountExists    = New(KindDuplicate, "account_exists", "an account with this email already exists")

	ErrAccountExistsDifferentCredential = New(KindConflict, "account_exists_with_different_credential",
		"an account already exists with the same email but a different sign-in method")
	ErrInvalidTransition = New(KindConflict, "invalid_transition", "request is no longer pending")

	ErrRequestNotFound = New(KindNotFound, "request_not_found", "request not found")
	ErrProfileNotFound = New(KindNotFound, "profile_not_found", "profile not found")
	ErrChatNotFound    = New(KindNotFound, "chat_not_found", "chat not found")

	ErrNotParticipant = New(KindForbidden, "not_participant", "user is not a participant")

	ErrInvalidCredentials = New(KindUnauthorized, "invalid_credentials", "invalid email or password")
	ErrUnauthenticated    = New(KindUnauthorized, "unauthenticated", "authentication required")

	ErrBackendUnavailable = New(KindUnavailable, "backend_unavailable", "backend unavailable")
)
