package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure for callers. Only KindTransient is retryable.
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindForbidden       Kind = "forbidden"
	KindAlreadyExists   Kind = "already_exists"
	KindAlreadyMember   Kind = "already_member"
	KindConflict        Kind = "conflict"
	KindUnauthenticated Kind = "unauthenticated"
	KindTransient       Kind = "transient_storage_error"
	KindValidation      Kind = "validation_error"
	KindRateLimited     Kind = "rate_limited"
	KindInternal        Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
	Detail  string
	cause   error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

var (
	ErrNotFound        = New(KindNotFound, "not found")
	ErrRoomNotFound    = New(KindNotFound, "room not found")
	ErrMessageNotFound = New(KindNotFound, "message not found")
	ErrMemberNotFound  = New(KindNotFound, "member not found")
	ErrFileNotFound    = New(KindNotFound, "file not found")

	ErrForbidden           = New(KindForbidden, "forbidden")
	ErrNotMember           = New(KindForbidden, "not a member of this room")
	ErrNotSender           = New(KindForbidden, "only the sender can edit this message")
	ErrRoleNotAllowed      = New(KindForbidden, "your role is not allowed in this room")
	ErrFileSharingDisabled = New(KindForbidden, "file sharing is disabled in this room")

	ErrAlreadyExists = New(KindAlreadyExists, "already exists")
	ErrAlreadyMember = New(KindAlreadyMember, "already a member of this room")

	ErrConflict       = New(KindConflict, "conflict")
	ErrRoomFull       = New(KindConflict, "room is full")
	ErrAlreadyDeleted = New(KindConflict, "message already deleted")
	ErrRoomInactive   = New(KindConflict, "room is not active")

	ErrUnauthorized = New(KindUnauthenticated, "unauthorized")
	ErrInvalidToken = New(KindUnauthenticated, "invalid token")
	ErrTokenExpired = New(KindUnauthenticated, "token expired")

	ErrTransientStorage = New(KindTransient, "storage temporarily unavailable")
	ErrValidation       = New(KindValidation, "invalid input")
	ErrRateLimited      = New(KindRateLimited, "rate limit exceeded")
	ErrInternalServer   = New(KindInternal, "internal server error")
)

// WithDetail returns a copy of base carrying a human-readable detail.
// errors.Is(result, base) stays true.
func WithDetail(base *Error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    base.Kind,
		Message: base.Message,
		Detail:  fmt.Sprintf(format, args...),
		cause:   base,
	}
}

// Transient wraps a storage failure so it is reported as retryable.
func Transient(cause error) *Error {
	return &Error{
		Kind:    KindTransient,
		Message: ErrTransientStorage.Message,
		Detail:  cause.Error(),
		cause:   errors.Join(ErrTransientStorage, cause),
	}
}

func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	return KindInternal
}

func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}

// Detail is the human-readable part shown to clients.
func Detail(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Detail != "" {
			return e.Detail
		}
		return e.Message
	}
	return ErrInternalServer.Message
}

type APIError struct {
	Kind   Kind   `json:"error"`
	Detail string `json:"detail"`
}

func NewAPIError(err error) *APIError {
	return &APIError{Kind: KindOf(err), Detail: Detail(err)}
}

func HTTPStatusFromError(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindAlreadyExists, KindAlreadyMember, KindConflict:
		return http.StatusConflict
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindTransient:
		return http.StatusServiceUnavailable
	case KindValidation:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
