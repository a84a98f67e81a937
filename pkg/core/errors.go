// Package core holds the status enumeration and error taxonomy shared by the
// resolver, the handlers and the server runtime.
package core

import (
	"errors"
	"fmt"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Status   WDStatus               // Status reported at the HTTP boundary
	Code     string                 // Machine-readable code: no_such_element, root_unavailable, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an ExecutionError with the same code, so a
// copy made by WithCause or WithMessage still matches its sentinel.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	c := e.clone()
	c.Cause = cause
	return c
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	c := e.clone()
	c.Message = msg
	return c
}

// WithMessagef is WithMessage with fmt formatting.
func (e *ExecutionError) WithMessagef(format string, args ...interface{}) *ExecutionError {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	c := e.clone()
	c.Details = merged
	return c
}

func (e *ExecutionError) clone() *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Status:   e.Status,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// Predefined errors
var (
	// Client errors
	ErrInvalidArgument = &ExecutionError{
		Category: ErrCategoryClient,
		Status:   StatusInvalidArgument,
		Code:     "invalid_argument",
		Message:  "invalid argument",
	}
	ErrInvalidSelector = &ExecutionError{
		Category: ErrCategoryClient,
		Status:   StatusInvalidSelector,
		Code:     "invalid_selector",
		Message:  "selector not supported",
	}
	ErrUnknownCommand = &ExecutionError{
		Category: ErrCategoryClient,
		Status:   StatusUnknownCommand,
		Code:     "unknown_command",
		Message:  "unknown command",
	}
	ErrNoSuchSession = &ExecutionError{
		Category: ErrCategoryClient,
		Status:   StatusNoSuchDriver,
		Code:     "no_such_session",
		Message:  "no such session",
	}

	// Not-found outcomes
	ErrNoSuchElement = &ExecutionError{
		Category: ErrCategoryNotFound,
		Status:   StatusNoSuchElement,
		Code:     "no_such_element",
		Message:  "Element Not found",
	}

	// Transient platform errors, escalated after retries
	ErrRootUnavailable = &ExecutionError{
		Category: ErrCategoryTransient,
		Status:   StatusUnknownError,
		Code:     "root_unavailable",
		Message:  "unable to get root in active window: null root node returned by the platform",
	}

	// Platform defects
	ErrHandleConstruction = &ExecutionError{
		Category: ErrCategoryPlatform,
		Status:   StatusUnknownError,
		Code:     "handle_construction_failed",
		Message:  "error while creating element handle",
	}

	// Lifecycle errors
	ErrInvalidPort = &ExecutionError{
		Category: ErrCategoryLifecycle,
		Status:   StatusUnknownError,
		Code:     "invalid_port",
		Message:  "invalid port",
	}
	ErrListenerBind = &ExecutionError{
		Category: ErrCategoryLifecycle,
		Status:   StatusUnknownError,
		Code:     "listener_bind_failed",
		Message:  "failed to bind listener",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, status WDStatus, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Status:   status,
		Code:     code,
		Message:  message,
	}
}

// StatusFor maps any error to the status reported at the HTTP boundary.
// nil maps to StatusSuccess and errors outside the taxonomy to StatusUnknownError.
func StatusFor(err error) WDStatus {
	if err == nil {
		return StatusSuccess
	}
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Status
	}
	return StatusUnknownError
}

// CategoryOf returns the category of err, or ErrCategoryNone for errors
// outside the taxonomy.
func CategoryOf(err error) ErrorCategory {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Category
	}
	return ErrCategoryNone
}
