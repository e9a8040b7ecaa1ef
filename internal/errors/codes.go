// Package errors provides structured error handling for fusionsearch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage errors (catalog, index, cache)
//   - 3XX: Source adapter errors
//   - 4XX: Request validation errors
//   - 5XX: Internal and availability errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates catalog, index and cache errors.
	CategoryStorage Category = "STORAGE"
	// CategorySource indicates a failing or slow source adapter.
	CategorySource Category = "SOURCE"
	// CategoryValidation indicates request validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Storage errors (200-299)
	ErrCodeCatalogNotFound = "ERR_201_CATALOG_NOT_FOUND"
	ErrCodeCatalogInvalid  = "ERR_202_CATALOG_INVALID"
	ErrCodeIndexFailed     = "ERR_203_INDEX_FAILED"

	// Source errors (300-399)
	ErrCodeAdapterTimeout   = "ERR_302_ADAPTER_TIMEOUT"
	ErrCodeAdapterError     = "ERR_303_ADAPTER_ERROR"
	ErrCodeCacheUnavailable = "ERR_304_CACHE_UNAVAILABLE"

	// Validation errors (400-499)
	ErrCodeInvalidParameter = "ERR_401_INVALID_PARAMETER"

	// Internal errors (500-599)
	ErrCodeInternal              = "ERR_501_INTERNAL"
	ErrCodeAllSourcesUnavailable = "ERR_503_ALL_SOURCES_UNAVAILABLE"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategorySource
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCatalogInvalid:
		return SeverityFatal
	case ErrCodeAdapterTimeout, ErrCodeAdapterError, ErrCodeCacheUnavailable:
		// absorbed into a degraded response
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeAdapterTimeout, ErrCodeAdapterError, ErrCodeCacheUnavailable, ErrCodeAllSourcesUnavailable:
		return true
	default:
		return false
	}
}
