// Package errs defines the error taxonomy shared by every pipeline
// component: a fixed set of error kinds, not a fixed set of error types,
// so that wrapping with fmt.Errorf never loses the kind a caller needs to
// decide retry/fatal policy.
package errs

import (
	"errors"
	"fmt"
)

// Kind is one of the fixed error kinds the indexing pipeline can surface.
type Kind string

// The error taxonomy. Every pipeline error carries exactly one of these.
const (
	// KindConfig covers missing or invalid effective configuration.
	KindConfig Kind = "config"
	// KindTransport covers Git or graph-database network failures.
	KindTransport Kind = "transport"
	// KindAuth covers rejected credentials.
	KindAuth Kind = "auth"
	// KindContainer covers image/run/timeout/copy failures in the parser driver.
	KindContainer Kind = "container"
	// KindParse covers parser output that is not valid JSON or violates the accepted shape.
	KindParse Kind = "parse"
	// KindSchema covers a normalized relationship outside the accepted type pairs.
	KindSchema Kind = "schema"
	// KindState covers an illegal job/task state transition.
	KindState Kind = "state"
	// KindTimeout covers wall-clock budget exceeded.
	KindTimeout Kind = "timeout"
	// KindValidation covers a failed task precondition.
	KindValidation Kind = "validation"
)

// Error is the single wrapped error type every pipeline component returns.
// Callers use errors.As to recover the Kind without a type switch per
// error, and Retryable to decide whether a retry loop should spin again.
type Error struct {
	Kind    Kind
	Op      string // the operation that failed, e.g. "gitclient.Clone"
	Code    string // stable machine-readable code, e.g. "GIT_AUTH_REJECTED"
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Unwrap exposes the wrapped error for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether a task's retry loop should attempt this error
// again. Only transport, container, and timeout kinds are retryable by
// default; everything else is fatal on first occurrence.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTransport, KindContainer, KindTimeout:
		return true
	case KindConfig, KindAuth, KindParse, KindSchema, KindState, KindValidation:
		return false
	default:
		return false
	}
}

// New constructs a pipeline Error.
func New(kind Kind, op, code, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Code: code, Message: message, Err: cause}
}

// Wrap is a convenience for New with fmt.Sprintf-style formatting of message.
func Wrap(kind Kind, op, code string, cause error, format string, args ...any) *Error {
	return New(kind, op, code, fmt.Sprintf(format, args...), cause)
}

// KindOf returns the Kind carried by err, if any, and whether one was found.
func KindOf(err error) (Kind, bool) {
	var pe *Error

	if errors.As(err, &pe) {
		return pe.Kind, true
	}

	return "", false
}

// Retryable reports whether err is a *Error marked retryable. Errors that
// are not *Error (e.g. raw stdlib errors from code that hasn't been
// converted yet) are treated as non-retryable.
func Retryable(err error) bool {
	var pe *Error

	if errors.As(err, &pe) {
		return pe.Retryable()
	}

	return false
}
