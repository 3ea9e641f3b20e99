package domain

import (
	"errors"
	"fmt"
)

// Kind is the closed sum type of error categories from spec.md §7. Callers
// should switch exhaustively over Kind rather than relying on sentinel
// error identity.
type Kind string

const (
	KindConfigInvalid     Kind = "config_invalid"
	KindTransient         Kind = "transient"
	KindPermanent         Kind = "permanent"
	KindStoreUnreachable  Kind = "store_unreachable"
	KindDeadlineExceeded  Kind = "deadline_exceeded"
	KindUnsupportedFormat Kind = "unsupported_format"
	KindInvariant         Kind = "invariant"
)

// AppError wraps a Kind and an optional cause, following the pack's
// pkg/errors.AppError shape.
type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// Wrap builds a new AppError.
func Wrap(kind Kind, message string, err error) error {
	return &AppError{Kind: kind, Message: message, Err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, returning ok=false if err is not (or
// does not wrap) an *AppError.
func KindOf(err error) (Kind, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind, true
	}
	return "", false
}
