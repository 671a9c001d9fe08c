// Package errors provides a lightweight structured error type (ClassifiedError)
// for category-based classification of failures in the service, the worker and the CLI.
package errors

import (
	stdErrors "errors"
	"fmt"
)

// ErrorCategory represents the category of an error for classification
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// External system integration errors
	CategoryQueue ErrorCategory = "queue"
	CategoryStore ErrorCategory = "store"

	// Build and processing errors
	CategoryBuild      ErrorCategory = "build"
	CategoryFileSystem ErrorCategory = "filesystem"

	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// ClassifiedError is a structured error with category, retryability, and context
type ClassifiedError struct {
	Category  ErrorCategory `json:"category"`
	Severity  ErrorSeverity `json:"severity"`
	Message   string        `json:"message"`
	Cause     error         `json:"cause,omitempty"`
	Retryable bool          `json:"retryable"`
	Context   ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for ClassifiedError
type ContextFields map[string]any

// Error implements the error interface
func (e *ClassifiedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *ClassifiedError) WithContext(key string, value any) *ClassifiedError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new ClassifiedError
func New(category ErrorCategory, severity ErrorSeverity, message string) *ClassifiedError {
	return &ClassifiedError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new ClassifiedError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *ClassifiedError {
	return &ClassifiedError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// WrapRetryable creates a new retryable ClassifiedError that wraps an existing error
func WrapRetryable(err error, category ErrorCategory, severity ErrorSeverity, message string) *ClassifiedError {
	return &ClassifiedError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Cause:     err,
		Retryable: true,
	}
}

// As finds the first ClassifiedError in err's chain.
func As(err error) (*ClassifiedError, bool) {
	var ce *ClassifiedError
	if stdErrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsCategory checks if any error in the chain belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	for err != nil {
		ce, ok := As(err)
		if !ok {
			return false
		}
		if ce.Category == category {
			return true
		}
		err = ce.Cause
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if ce, ok := As(err); ok {
		return ce.Retryable
	}
	return false
}

// IsInfrastructure reports whether err originates from the persistence layer.
// Such errors mean the environment is broken, not the build being processed.
func IsInfrastructure(err error) bool {
	return IsCategory(err, CategoryStore)
}

// GetCategory extracts the category from an error, or returns CategoryInternal if not classified
func GetCategory(err error) ErrorCategory {
	if ce, ok := As(err); ok {
		return ce.Category
	}
	return CategoryInternal
}
