// Package errors provides structured error handling for hvol
package errors

import (
	"errors"
	"fmt"
	"runtime"

	"go.uber.org/multierr"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal errors that indicate a broken invariant
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents invalid arguments supplied by the caller
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeNotFound represents a lookup that completed without a match
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeRegistration represents malformed connector class descriptors
	ErrorTypeRegistration ErrorType = "registration"
	// ErrorTypeLookup represents failures while iterating registered handles
	ErrorTypeLookup ErrorType = "lookup"
	// ErrorTypeAllocation represents failures creating handles, containers or objects
	ErrorTypeAllocation ErrorType = "allocation"
	// ErrorTypeDispatch represents a failure reported by a connector callback
	ErrorTypeDispatch ErrorType = "dispatch"
	// ErrorTypeProtocol represents misuse of the connector protocol
	ErrorTypeProtocol ErrorType = "protocol"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeFile represents file operation errors
	ErrorTypeFile ErrorType = "file"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// Dispatch wraps a callback failure. The callback error stays reachable through
// errors.Is and errors.As.
func Dispatch(err error, connector, op string) error {
	if err == nil {
		return nil
	}
	return Wrap(err, ErrorTypeDispatch, fmt.Sprintf("%s callback %s failed", connector, op)).
		WithDetail("connector", connector).
		WithDetail("operation", op)
}

// Cleanup combines a primary error with an error raised while tearing down after it.
// The primary error always comes first so IsType and errors.As report it.
func Cleanup(primary, cleanup error) error {
	return multierr.Append(primary, cleanup)
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// HasType reports whether err or any error it wraps is of the given type.
// Use it to look past a dispatch error at the callback failure inside.
func HasType(err error, errType ErrorType) bool {
	var e *Error
	for errors.As(err, &e) {
		if e.Type == errType {
			return true
		}
		err = e.Cause
	}
	return false
}

// IsNotFound reports whether err is a lookup that found nothing
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
