// Package errors provides structured error handling for launchdex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Plugin manifest and file errors
//   - 4XX: Validation errors
//   - 5XX: Index and search errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and manifest I/O errors.
	CategoryIO Category = "IO"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates index, search and internal errors.
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

	// Manifest errors (200-299)
	ErrCodeManifestNotFound = "ERR_201_MANIFEST_NOT_FOUND"
	ErrCodeManifestInvalid  = "ERR_202_MANIFEST_INVALID"

	// Validation errors (400-499)
	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidQuery = "ERR_403_INVALID_QUERY"

	// Index and search errors (500-599)
	ErrCodeInternal            = "ERR_501_INTERNAL"
	ErrCodeSearchFailed        = "ERR_503_SEARCH_FAILED"
	ErrCodeIndexFailed         = "ERR_505_INDEX_FAILED"
	ErrCodeConsistencyViolated = "ERR_506_CONSISTENCY_VIOLATION"
	ErrCodeIndexClosed         = "ERR_507_INDEX_CLOSED"
	ErrCodeIndexPoisoned       = "ERR_508_INDEX_POISONED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Numeric portion, e.g. "505" from "ERR_505_INDEX_FAILED"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeConsistencyViolated, ErrCodeIndexPoisoned:
		return SeverityFatal
	case ErrCodeInvalidQuery:
		return SeverityWarning
	default:
		return SeverityError
	}
}
