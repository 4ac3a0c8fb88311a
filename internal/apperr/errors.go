// Package apperr defines the error taxonomy shared by every component in
// this repository. Components never return raw errors across their public
// boundary; they wrap failures in an *Error carrying a Kind so the HTTP and
// tool layers can map it to a structured response uniformly, the same way
// the teacher's internal/http/handlers/errors.go maps sentinel errors to
// ErrCode* constants.
package apperr

import "fmt"

// Kind identifies the category of a failure. These are the nine kinds
// described by the error handling design: configuration, transport,
// upstream, timeout, validation, conflict, policy, not-found, internal.
type Kind string

const (
	KindConfiguration Kind = "configuration_error"
	KindTransport     Kind = "transport_error"
	KindUpstream      Kind = "upstream_error"
	KindTimeout       Kind = "timeout_error"
	KindValidation    Kind = "validation_error"
	KindConflict      Kind = "conflict_error"
	KindPolicy        Kind = "policy_error"
	KindNotFound      Kind = "not_found_error"
	KindInternal      Kind = "internal_error"
)

// Error is the structured failure type returned by every component.
type Error struct {
	Kind       Kind
	Message    string
	Component  string // which component raised it (e.g. "sdgateway", "queue")
	Remediation string // optional, set for ConflictError
	Retryable  bool
	Cause      error
}

func (e *Error) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("%s: %s: %s", e.Component, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func new_(k Kind, component, msg string) *Error {
	return &Error{Kind: k, Component: component, Message: msg}
}

func Configuration(component, msg string) *Error { return new_(KindConfiguration, component, msg) }

func Transport(component, msg string, cause error) *Error {
	e := new_(KindTransport, component, msg)
	e.Cause = cause
	return e
}

func Upstream(component, msg string) *Error { return new_(KindUpstream, component, msg) }

func Timeout(component, msg string) *Error {
	e := new_(KindTimeout, component, msg)
	return e
}

func Validation(component, msg string) *Error { return new_(KindValidation, component, msg) }

func Conflict(component, msg, remediation string) *Error {
	e := new_(KindConflict, component, msg)
	e.Remediation = remediation
	return e
}

func Policy(component, msg string) *Error { return new_(KindPolicy, component, msg) }

func NotFound(component, msg string) *Error { return new_(KindNotFound, component, msg) }

func Internal(component, msg string, cause error) *Error {
	e := new_(KindInternal, component, msg)
	e.Cause = cause
	return e
}

// Is reports whether err is an *Error of the given kind. It checks err
// itself with a type assertion; an *Error wrapped inside another error is
// not unwrapped and reports false.
func Is(err error, k Kind) bool {
	ae, ok := err.(*Error)
	if !ok {
		return false
	}
	return ae.Kind == k
}
