// Package apperr holds the error taxonomy shared by services and the HTTP shell.
package apperr

import (
	"errors"
	"fmt"

	"github.com/hazemshokry/train-tracking-app/internal/models"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicate           = errors.New("duplicate report")
	ErrRateLimited         = errors.New("rate limited")
	ErrValidationFailed    = errors.New("validation failed")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrForbidden           = errors.New("forbidden")
	ErrInternal            = errors.New("internal error")
)

// Error is a classified failure. Kind is one of the sentinels above.
type Error struct {
	Kind    error
	Message string
	// Summary is set for critical validation failures so callers can still
	// explain why the report was discounted.
	Summary *models.ValidationSummary
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// NotFound reports a missing entity.
func NotFound(what string, id any) *Error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf("%s %v not found", what, id)}
}

// Invalid reports a malformed request.
func Invalid(format string, args ...any) *Error {
	return &Error{Kind: ErrInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// Forbidden reports a caller without the required rights.
func Forbidden(msg string) *Error {
	return &Error{Kind: ErrForbidden, Message: msg}
}

// Conflict reports a lost lock; callers should retry the whole operation.
func Conflict(key string, err error) *Error {
	return &Error{Kind: ErrConcurrencyConflict, Message: "could not lock " + key, Err: err}
}

// Internal wraps an infrastructure failure.
func Internal(op string, err error) *Error {
	return &Error{Kind: ErrInternal, Message: op, Err: err}
}

// Critical builds the error for a report rejected by a critical validator.
func Critical(summary *models.ValidationSummary) *Error {
	kind := ErrValidationFailed
	switch summary.CriticalType {
	case models.ValidatorRateLimit:
		kind = ErrRateLimited
	case models.ValidatorDuplicate:
		kind = ErrDuplicate
	}
	msg := kind.Error()
	if o := summary.Outcome(summary.CriticalType); o != nil {
		if reason, ok := o.Details["reason"].(string); ok && reason != "" {
			msg = reason
		}
	}
	return &Error{Kind: kind, Message: msg, Summary: summary}
}

// SummaryOf extracts the validation summary carried by err, if any.
func SummaryOf(err error) *models.ValidationSummary {
	var e *Error
	if errors.As(err, &e) {
		return e.Summary
	}
	return nil
}
