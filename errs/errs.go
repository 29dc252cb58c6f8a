// Package errs provides structured error types and helpers shared across the
// reuse library.
package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Code identifies an error category surfaced by the library.
type Code string

const (
	// CodeConfiguration indicates a misconfigured component, such as a pool
	// asked to produce an instance with no factory installed.
	CodeConfiguration Code = "configuration"
	// CodeInvalidArgument indicates invalid input provided by the caller.
	CodeInvalidArgument Code = "invalid_argument"
	// CodeInvalidState indicates the operation would corrupt component state,
	// such as releasing an instance that is already idle in the pool.
	CodeInvalidState Code = "invalid_state"
	// CodeNotFound indicates a missing resource.
	CodeNotFound Code = "not_found"
	// CodeUnavailable indicates the component is shut down or shutting down.
	CodeUnavailable Code = "unavailable"
)

// E captures structured error information produced across the library.
type E struct {
	Component string
	Op        string
	Code      Code
	Message   string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the component and error code.
func New(component string, code Code, opts ...Option) *E {
	e := &E{
		Component: strings.TrimSpace(component),
		Code:      code,
		Op:        "",
		Message:   "",
		cause:     nil,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithOp records the operation that produced the error.
func WithOp(op string) Option {
	trimmed := strings.TrimSpace(op)
	return func(e *E) {
		e.Op = trimmed
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	component := strings.TrimSpace(e.Component)
	if component == "" {
		component = "unknown"
	}
	parts = append(parts, "component="+component)

	if e.Op != "" {
		parts = append(parts, "op="+e.Op)
	}

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)

	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// Is reports whether target carries the same error code.
func (e *E) Is(target error) bool {
	var other *E
	if !errors.As(target, &other) {
		return false
	}
	return e != nil && other != nil && e.Code == other.Code
}

// CodeOf extracts the error code from err, returning an empty code when err
// does not carry an envelope.
func CodeOf(err error) Code {
	var e *E
	if errors.As(err, &e) && e != nil {
		return e.Code
	}
	return ""
}
