package services

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrSettlementFailure = errors.New("settlement failed")
)

var kinds = []error{
	ErrValidation,
	ErrInvalidTransition,
	ErrUnauthorized,
	ErrNotFound,
	ErrConflict,
	ErrSettlementFailure,
}

// Error is a workflow failure of a known Kind. errors.Is matches it against
// its Kind and against the wrapped cause.
type Error struct {
	Kind    error
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind error, op string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// opError prefixes unexpected errors with op and passes typed ones through.
func opError(op string, err error) error {
	var werr *Error
	if errors.As(err, &werr) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

// KindOf returns the sentinel kind carried by err, or nil for unexpected errors.
func KindOf(err error) error {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// IsRetryable reports whether the caller may re-fetch and try again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}
