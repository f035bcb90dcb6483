package services

import (
	"errors"
	"fmt"
)

// Reason identifies why a visitor message was rejected.
type Reason string

const (
	ReasonMissing           Reason = "missing"
	ReasonEmpty             Reason = "empty"
	ReasonTooShort          Reason = "too_short"
	ReasonTooLong           Reason = "too_long"
	ReasonContentNotAllowed Reason = "content_not_allowed"
)

type ValidationError struct {
	Reason  Reason
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

type RateLimitError struct{ Message string }

func (e *RateLimitError) Error() string { return e.Message }

// CompletionErrorKind classifies completion API failures.
type CompletionErrorKind string

const (
	CompletionTransport CompletionErrorKind = "transport"
	CompletionStatus    CompletionErrorKind = "status"
	CompletionMalformed CompletionErrorKind = "malformed"
	CompletionTimeout   CompletionErrorKind = "timeout"
)

type CompletionError struct {
	Kind       CompletionErrorKind
	StatusCode int
	Err        error
}

func (e *CompletionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("completion %s error (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("completion %s error: %v", e.Kind, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

var (
	ErrInvalidTemperature = errors.New("temperature must be between 0.0 and 1.0")
	ErrUnknownModel       = errors.New("unknown model")
)
