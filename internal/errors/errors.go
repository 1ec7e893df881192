// Package errors defines the error taxonomy of the scoring pipeline.
// Request-level failures carry a Kind so callers can tell "fix the request"
// apart from "fix the deployment".
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline error.
type Kind string

const (
	KindParse            Kind = "PARSE_ERROR"
	KindPreprocessing    Kind = "PREPROCESSING_ERROR"
	KindModelUnavailable Kind = "MODEL_UNAVAILABLE"
)

// Error is the structured error type returned by the feature builder and the
// scoring service.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Cause   error
}

// Sentinels for errors.Is matching on kind.
var (
	ErrParse            = &Error{Kind: KindParse}
	ErrPreprocessing    = &Error{Kind: KindPreprocessing}
	ErrModelUnavailable = &Error{Kind: KindModelUnavailable}
)

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// Parse reports a malformed required field (timestamps).
func Parse(field, message string, cause error) *Error {
	return &Error{Kind: KindParse, Field: field, Message: message, Cause: cause}
}

// Preprocessing reports an unseen category or a feature shape problem.
func Preprocessing(field, message string) *Error {
	return &Error{Kind: KindPreprocessing, Field: field, Message: message}
}

// Unavailable reports that the model or registry could not be loaded.
func Unavailable(message string, cause error) *Error {
	return &Error{Kind: KindModelUnavailable, Message: message, Cause: cause}
}

// KindOf extracts the Kind from an error chain. Returns "" for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
