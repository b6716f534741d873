// Package svcerr defines the coded errors surfaced by the dispatcher, the trace ID
// scheme, and the trace log reconstruction.
package svcerr

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	CodeServiceNotFound      = "SERVICE_NOT_FOUND"
	CodeInvalidConfiguration = "INVALID_CONFIGURATION"
	CodeInvalidLength        = "INVALID_LENGTH"
	CodeInvalidLogLineFormat = "INVALID_LOG_LINE_FORMAT"
	CodeHandlerPanic         = "HANDLER_PANIC"
)

// Sentinels for errors.Is. Only the Code is compared.
var (
	ErrServiceNotFound      = &Error{Code: CodeServiceNotFound}
	ErrInvalidConfiguration = &Error{Code: CodeInvalidConfiguration}
	ErrInvalidLength        = &Error{Code: CodeInvalidLength}
	ErrInvalidLogLineFormat = &Error{Code: CodeInvalidLogLineFormat}
	ErrHandlerPanic         = &Error{Code: CodeHandlerPanic}
)

// Error is a structured error carrying a stable code.
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Is reports whether target carries the same code. An INVALID_LENGTH error is also an
// INVALID_CONFIGURATION error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code == e.Code {
		return true
	}
	return t.Code == CodeInvalidConfiguration && e.Code == CodeInvalidLength
}

// New creates a new Error.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// ServiceNotFound reports a call to an unregistered service name.
func ServiceNotFound(name string) *Error {
	return &Error{
		Code:    CodeServiceNotFound,
		Message: fmt.Sprintf("service %q is not registered", name),
		Details: map[string]string{"service": name},
	}
}

// InvalidConfiguration reports bad constructor or option input.
func InvalidConfiguration(format string, args ...interface{}) *Error {
	return &Error{Code: CodeInvalidConfiguration, Message: fmt.Sprintf(format, args...)}
}

// InvalidLength reports request ID length bounds that cannot be satisfied.
func InvalidLength(minLength, maxLength, lower, upper int) *Error {
	return &Error{
		Code:    CodeInvalidLength,
		Message: fmt.Sprintf("length bounds [%d, %d] must satisfy %d <= min <= max <= %d", minLength, maxLength, lower, upper),
		Details: map[string]int{"min": minLength, "max": maxLength},
	}
}

// InvalidLogLine reports a trace log line that cannot be decomposed into its fields.
func InvalidLogLine(line string) *Error {
	return &Error{
		Code:    CodeInvalidLogLineFormat,
		Message: fmt.Sprintf("invalid log line format: %q", line),
		Details: map[string]string{"line": line},
	}
}

// FromPanic converts a recovered panic value into an error. Error values are returned
// as they are so their message survives.
func FromPanic(v interface{}) error {
	if err, ok := v.(error); ok {
		return err
	}
	return &Error{Code: CodeHandlerPanic, Message: fmt.Sprint(v)}
}

// HasCode reports whether err, or anything it wraps, is an *Error with the given code.
func HasCode(err error, code string) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}
