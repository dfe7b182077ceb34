// Package apperr defines the error taxonomy shared by the services and the
// HTTP layer. Each Kind maps to one HTTP status.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindInvalidCredentials
	KindInvalidToken
	KindUnknownUser
	KindInactiveUser
	KindForbidden
	KindInvalidReference
	KindNotFound
	KindDuplicateProfile
	KindDuplicateEmail
)

var kindNames = map[Kind]string{
	KindInternal:           "internal",
	KindValidation:         "validation",
	KindInvalidCredentials: "invalid_credentials",
	KindInvalidToken:       "invalid_token",
	KindUnknownUser:        "unknown_user",
	KindInactiveUser:       "inactive_user",
	KindForbidden:          "forbidden",
	KindInvalidReference:   "invalid_reference",
	KindNotFound:           "not_found",
	KindDuplicateProfile:   "duplicate_profile",
	KindDuplicateEmail:     "duplicate_email",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindInactiveUser, KindInvalidReference,
		KindDuplicateProfile, KindDuplicateEmail:
		return http.StatusBadRequest
	case KindInvalidCredentials, KindInvalidToken, KindUnknownUser:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified, request-scoped failure with a short detail meant for
// the client. Cause is never rendered.
type Error struct {
	Kind   Kind
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same kind, so errors.Is(err, apperr.ErrNotFound)
// holds regardless of detail.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Detail == "" || t.Detail == e.Detail)
}

// Sentinels for errors.Is comparisons.
var (
	ErrInternal           = &Error{Kind: KindInternal}
	ErrValidation         = &Error{Kind: KindValidation}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrInvalidToken       = &Error{Kind: KindInvalidToken}
	ErrUnknownUser        = &Error{Kind: KindUnknownUser}
	ErrInactiveUser       = &Error{Kind: KindInactiveUser}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrInvalidReference   = &Error{Kind: KindInvalidReference}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrDuplicateProfile   = &Error{Kind: KindDuplicateProfile}
	ErrDuplicateEmail     = &Error{Kind: KindDuplicateEmail}
)

func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func Wrap(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Cause: cause}
}

func Validation(detail string) *Error       { return New(KindValidation, detail) }
func Forbidden(detail string) *Error        { return New(KindForbidden, detail) }
func NotFound(detail string) *Error         { return New(KindNotFound, detail) }
func InvalidReference(detail string) *Error { return New(KindInvalidReference, detail) }
func DuplicateProfile(detail string) *Error { return New(KindDuplicateProfile, detail) }

// Internal wraps an unexpected failure. The client only sees a generic detail.
func Internal(cause error) *Error {
	return Wrap(KindInternal, "Internal server error", cause)
}

// As extracts an *Error from err. Unclassified errors come back as Internal.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// KindOf reports the kind of err, KindInternal when unclassified or nil.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	return As(err).Kind
}
