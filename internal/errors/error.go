package errors

import (
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryContract  Category = "contract"
	CategoryRender    Category = "render"
	CategoryCommit    Category = "commit"
	CategoryScheduler Category = "scheduler"
	CategoryConfig    Category = "config"
	CategoryCLI       Category = "cli"
)

// FiberError is a structured error with a registered code, a suggestion
// and the component path that was being worked on when it was raised.
type FiberError struct {
	// Code is a unique error identifier (e.g., "F001").
	Code string

	// Category is the error type (contract, render, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Subject describes the value or fiber that triggered the error.
	Subject string

	// ComponentStack lists the components from the failing fiber up to
	// the root, innermost first.
	ComponentStack []string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *FiberError) Error() string {
	msg := e.Message
	if e.Subject != "" {
		msg += " (" + e.Subject + ")"
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *FiberError) Unwrap() error {
	return e.Wrapped
}

// WithSubject records what triggered the error.
func (e *FiberError) WithSubject(format string, args ...any) *FiberError {
	e.Subject = fmt.Sprintf(format, args...)
	return e
}

// WithComponentStack attaches the component path.
func (e *FiberError) WithComponentStack(stack []string) *FiberError {
	e.ComponentStack = stack
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *FiberError) WithSuggestion(s string) *FiberError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *FiberError) WithDetail(d string) *FiberError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *FiberError) Wrap(err error) *FiberError {
	e.Wrapped = err
	return e
}

// New creates a FiberError from a registered error code.
func New(code string) *FiberError {
	template, ok := registry[code]
	if !ok {
		return &FiberError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &FiberError{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Detail:     template.Detail,
		Suggestion: template.Suggestion,
	}
}

// Newf creates a new FiberError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *FiberError {
	return &FiberError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Violation returns a coded contract-violation error describing subject.
// Callers panic with the result; the reconciler never routes these to
// error boundaries.
func Violation(code string, format string, args ...any) *FiberError {
	return New(code).WithSubject(format, args...)
}

// FromError wraps a standard error in a FiberError.
func FromError(err error, code string) *FiberError {
	if err == nil {
		return nil
	}
	if fe, ok := err.(*FiberError); ok {
		return fe
	}
	return New(code).Wrap(err)
}

// IsContract reports whether v is a contract violation raised by this
// package.
func IsContract(v any) bool {
	fe, ok := v.(*FiberError)
	return ok && fe.Category == CategoryContract
}
