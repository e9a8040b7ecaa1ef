package errors

import (
	"errors"
	"fmt"
)

// AppError is the structured error type for fusionsearch.
// It carries enough context for logging while keeping Message safe to show callers.
type AppError struct {
	// Code is the unique error code (e.g., "ERR_401_INVALID_PARAMETER").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Source, Validation, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error. It is logged, never shown to callers.
	Cause error

	// Retryable indicates if the caller may retry the request.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches errors by code so errors.Is works against the sentinels below.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *AppError) WithSuggestion(suggestion string) *AppError {
	e.Suggestion = suggestion
	return e
}

// New creates a new AppError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an AppError from an existing error.
// The error's message becomes the AppError message.
func Wrap(code string, err error) *AppError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinels for errors.Is comparisons. They match any AppError with the same code.
var (
	ErrInvalidParameter      = &AppError{Code: ErrCodeInvalidParameter}
	ErrAdapterTimeout        = &AppError{Code: ErrCodeAdapterTimeout}
	ErrAdapterError          = &AppError{Code: ErrCodeAdapterError}
	ErrAllSourcesUnavailable = &AppError{Code: ErrCodeAllSourcesUnavailable}
	ErrCacheUnavailable      = &AppError{Code: ErrCodeCacheUnavailable}
)

// ErrNilDependency is wrapped when a constructor receives a nil collaborator.
var ErrNilDependency = errors.New("nil dependency")

// InvalidParameter creates a validation error naming the offending field.
func InvalidParameter(field, message string) *AppError {
	return New(ErrCodeInvalidParameter, message, nil).WithDetail("field", field)
}

// AdapterTimeout reports a source adapter that missed its deadline.
func AdapterTimeout(source string, cause error) *AppError {
	return New(ErrCodeAdapterTimeout, source+" source timed out", cause).WithDetail("source", source)
}

// AdapterError reports a source adapter failure. The cause is kept for logs only.
func AdapterError(source string, cause error) *AppError {
	return New(ErrCodeAdapterError, source+" source failed", cause).WithDetail("source", source)
}

// AllSourcesUnavailable reports that no required source answered.
func AllSourcesUnavailable(cause error) *AppError {
	return New(ErrCodeAllSourcesUnavailable, "search is temporarily unavailable", cause).
		WithSuggestion("Retry the request in a moment")
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *AppError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *AppError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable reports whether err (or an error it wraps) is a retryable AppError.
func IsRetryable(err error) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	return false
}

// GetCode extracts the error code from an AppError anywhere in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// GetCategory extracts the category from an AppError.
func GetCategory(err error) Category {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Category
	}
	return ""
}
