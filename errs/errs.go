// Package errs defines the wire error taxonomy and the structured error
// type components use to carry it. Errors preserve causal chains via Cause
// so errors.Is/As keeps working across retries and saga compensation.
package errs

import (
	"errors"
	"fmt"
)

// Kind enumerates the wire error taxonomy.
type Kind string

const (
	ToolNotFound         Kind = "ToolNotFound"
	ToolExecutionFailed  Kind = "ToolExecutionFailed"
	InvalidParameters    Kind = "InvalidParameters"
	ResourceExhausted    Kind = "ResourceExhausted"
	NetworkError         Kind = "NetworkError"
	TimeoutError         Kind = "TimeoutError"
	PermissionDenied     Kind = "PermissionDenied"
	DependencyFailed     Kind = "DependencyFailed"
	UserCancelled        Kind = "UserCancelled"
	SystemError          Kind = "SystemError"
	SandboxViolation     Kind = "SandboxViolation"
)

// retryableKinds lists the kinds classified as retryable transient
// errors. All others are non-retryable and surface immediately.
var retryableKinds = map[Kind]bool{
	NetworkError:      true,
	ResourceExhausted: true,
	TimeoutError:      true,
}

// Error is the structured error type propagated through steps, sagas, and
// the wire error format. StepID is optional context set by the saga
// manager when an error is attributed to a specific ActionStep.
type Error struct {
	// KindOf classifies the failure.
	KindOf Kind
	// Message is the human-readable summary.
	Message string
	// StepID optionally identifies the ActionStep this error belongs to.
	StepID string
	// Details carries arbitrary structured context (e.g. breaker hints).
	Details map[string]any
	// Cause links to the underlying error, preserved for errors.Is/As.
	Cause error
}

// New constructs a structured Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{KindOf: kind, Message: message}
}

// Wrap constructs a structured Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &Error{KindOf: kind, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.KindOf, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.KindOf, e.Message)
}

// Unwrap supports errors.Is/As over the causal chain.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Retryable reports whether this error's kind is classified as a retryable
// transient error. Breaker-open conditions are represented as
// ResourceExhausted with Details["circuit_breaker"]="open" and are
// retryable only insofar as the breaker itself decides when to probe
// again; callers should consult the breaker rather than blindly retrying.
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	return retryableKinds[e.KindOf]
}

// WithStep returns a copy of e annotated with the owning step id.
func (e *Error) WithStep(stepID string) *Error {
	cp := *e
	cp.StepID = stepID
	return &cp
}

// WithDetail returns a copy of e with an additional detail key/value.
func (e *Error) WithDetail(key string, value any) *Error {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// As extracts a *Error from an arbitrary error chain, synthesizing a
// SystemError wrapper for errors that were never classified.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{KindOf: SystemError, Message: err.Error(), Cause: err}
}

// BreakerOpen constructs the standard "breaker tripped" error: surfaced as
// ResourceExhausted with a circuit_breaker=open hint, never counted as a
// tool failure for telemetry purposes.
func BreakerOpen(component string) *Error {
	return New(ResourceExhausted, component+": circuit breaker open").
		WithDetail("circuit_breaker", "open")
}
