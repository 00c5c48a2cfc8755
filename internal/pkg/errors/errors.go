package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies an AppError by the rule family that produced it.
type Kind string

const (
	KindNotFound             Kind = "not_found"
	KindConflict             Kind = "conflict"
	KindCompatibilityWarning Kind = "compatibility_warning"
	KindConfirmationRequired Kind = "confirmation_required"
	KindInvalidState         Kind = "invalid_state"
	KindSequenceViolation    Kind = "sequence_violation"
	KindInvalidInput         Kind = "invalid_input"
	KindInternal             Kind = "internal"
)

// Overridable reports whether the caller may retry the same request with an
// explicit acknowledgment.
func (k Kind) Overridable() bool {
	return k == KindCompatibilityWarning || k == KindConfirmationRequired
}

type AppError struct {
	Kind       Kind                   `json:"kind"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	StatusCode int                    `json:"-"`
	cause      error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// Is matches on Code so sentinel values work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Kind:       kindForStatus(statusCode),
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Details:    make(map[string]interface{}),
	}
}

// WithDetails returns a copy carrying the given details; sentinels stay untouched.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// WithDetail returns a copy with one extra detail key.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	cp := *e
	cp.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// Wrap returns a copy of e that records cause for logging.
func (e *AppError) Wrap(cause error) *AppError {
	cp := *e
	cp.cause = cause
	return &cp
}

func newKind(kind Kind, status int, code, format string, args ...interface{}) *AppError {
	return &AppError{
		Kind:       kind,
		Code:       code,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: status,
		Details:    make(map[string]interface{}),
	}
}

func NotFound(code, format string, args ...interface{}) *AppError {
	return newKind(KindNotFound, http.StatusNotFound, code, format, args...)
}

func Conflict(code, format string, args ...interface{}) *AppError {
	return newKind(KindConflict, http.StatusConflict, code, format, args...)
}

func CompatibilityWarning(code, format string, args ...interface{}) *AppError {
	return newKind(KindCompatibilityWarning, http.StatusPreconditionRequired, code, format, args...)
}

func ConfirmationRequired(code, format string, args ...interface{}) *AppError {
	return newKind(KindConfirmationRequired, http.StatusPreconditionRequired, code, format, args...)
}

func InvalidState(code, format string, args ...interface{}) *AppError {
	return newKind(KindInvalidState, http.StatusUnprocessableEntity, code, format, args...)
}

func SequenceViolation(code, format string, args ...interface{}) *AppError {
	return newKind(KindSequenceViolation, http.StatusUnprocessableEntity, code, format, args...)
}

func InvalidInput(code, format string, args ...interface{}) *AppError {
	return newKind(KindInvalidInput, http.StatusBadRequest, code, format, args...)
}

// As extracts the AppError from err, if any.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the Kind of err, KindInternal for foreign errors and "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// CodeOf returns the Code of err or "" when it is not an AppError.
func CodeOf(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return ""
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusBadRequest:
		return KindInvalidInput
	case http.StatusUnprocessableEntity:
		return KindInvalidState
	default:
		return KindInternal
	}
}
