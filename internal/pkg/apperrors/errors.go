package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so transports can map it without inspecting messages.
type Kind string

const (
	KindValidation           Kind = "VALIDATION_ERROR"
	KindNotFound             Kind = "NOT_FOUND"
	KindPermission           Kind = "PERMISSION_DENIED"
	KindUnauthenticated      Kind = "UNAUTHENTICATED"
	KindInvalidState         Kind = "INVALID_STATE"
	KindInsufficientFunds    Kind = "INSUFFICIENT_FUNDS"
	KindAlreadyPaid          Kind = "ALREADY_PAID"
	KindNoPendingInstallment Kind = "NO_PENDING_INSTALLMENT"
	KindConflict             Kind = "CONFLICT"
	KindInfrastructure       Kind = "INFRASTRUCTURE_ERROR"
)

// Error is the typed failure returned by every service operation.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode returns the machine readable code sent to clients.
func (e *Error) ErrorCode() string {
	return string(e.Kind)
}

// Is matches any *Error of the same kind, so errors.Is(err, apperrors.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}

// Sentinels for errors.Is checks.
var (
	ErrValidation           = &Error{Kind: KindValidation}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrPermission           = &Error{Kind: KindPermission}
	ErrUnauthenticated      = &Error{Kind: KindUnauthenticated}
	ErrInvalidState         = &Error{Kind: KindInvalidState}
	ErrInsufficientFunds    = &Error{Kind: KindInsufficientFunds}
	ErrAlreadyPaid          = &Error{Kind: KindAlreadyPaid}
	ErrNoPendingInstallment = &Error{Kind: KindNoPendingInstallment}
	ErrConflict             = &Error{Kind: KindConflict}
	ErrInfrastructure       = &Error{Kind: KindInfrastructure}
)

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return newf(KindValidation, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

func Permission(format string, args ...any) *Error {
	return newf(KindPermission, format, args...)
}

func Unauthenticated(format string, args ...any) *Error {
	return newf(KindUnauthenticated, format, args...)
}

func InvalidState(format string, args ...any) *Error {
	return newf(KindInvalidState, format, args...)
}

func InsufficientFunds(format string, args ...any) *Error {
	return newf(KindInsufficientFunds, format, args...)
}

func AlreadyPaid(format string, args ...any) *Error {
	return newf(KindAlreadyPaid, format, args...)
}

func NoPendingInstallment(format string, args ...any) *Error {
	return newf(KindNoPendingInstallment, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newf(KindConflict, format, args...)
}

// Infrastructure wraps a storage or transport failure. It is never a domain error.
func Infrastructure(err error, format string, args ...any) *Error {
	e := newf(KindInfrastructure, format, args...)
	e.Err = err
	return e
}

// KindOf reports the kind of err, or KindInfrastructure for untyped errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInfrastructure
}

// Wrap keeps typed errors as they are and marks everything else as infrastructure.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	return Infrastructure(err, format, args...)
}
