// Package apperr defines the error taxonomy shared by every stage of an analysis.
//
// Information Hiding:
// - Kind classification hidden behind KindOf
// - Retry decisions derived from Kind, not from error text

package apperr

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind is a machine-readable failure category.
type Kind string

const (
	KindTransientNetwork      Kind = "transient_network"
	KindRateLimited           Kind = "rate_limited"
	KindNotFound              Kind = "not_found"
	KindAuthenticationFailed  Kind = "authentication_failed"
	KindInvalidUpstreamOutput Kind = "invalid_upstream_output"
	KindConfigurationInvalid  Kind = "configuration_invalid"
	KindModelCallFailed       Kind = "model_call_failed"
	KindCanceled              Kind = "canceled"
	KindInternal              Kind = "internal"
)

// Error is a classified error carrying the operation that produced it.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
	Context map[string]any
}

// New creates a classified error.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap classifies an existing error. Wrapping nil returns nil.
func Wrap(err error, kind Kind, op, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Message: message, Cause: err}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	} else if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext attaches a diagnostic key/value and returns the same error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// KindOf returns the Kind of the first classified error in err's chain.
// Unclassified errors report KindInternal; context cancellation reports KindCanceled.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether another attempt could succeed.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransientNetwork
}

// RateLimitError reports an exhausted hosting API quota.
type RateLimitError struct {
	Reset time.Time
}

func (e *RateLimitError) Error() string {
	if e.Reset.IsZero() {
		return "rate limit exceeded"
	}
	return fmt.Sprintf("rate limit exceeded, resets at %s", e.Reset.Format(time.RFC3339))
}

// RateLimited builds a KindRateLimited error for op.
func RateLimited(op string, reset time.Time) *Error {
	e := Wrap(&RateLimitError{Reset: reset}, KindRateLimited, op, "")
	if !reset.IsZero() {
		e.WithContext("reset", reset.Format(time.RFC3339))
	}
	return e
}
