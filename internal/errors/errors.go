// Package errors provides structured error types for empbench.
// Every error carries a category, a code, the failing operation and a
// message naming the offending input.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by the boundary that raised them.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategorySchema     ErrorCategory = "SCHEMA"
	ErrCategoryStore      ErrorCategory = "STORE"
	ErrCategoryConfig     ErrorCategory = "CONFIG"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInvalidDate      = "INVALID_DATE"
	CodeInvalidGender    = "INVALID_GENDER"
	CodeEmptyName        = "EMPTY_NAME"
	CodeInvalidColumn    = "INVALID_COLUMN"
	CodeInvalidIndexName = "INVALID_INDEX_NAME"

	// Schema codes
	CodeSchemaCreateFailed = "SCHEMA_CREATE_FAILED"
	CodeInvalidMapping     = "INVALID_MAPPING"

	// Store codes
	CodeConnectFailed = "CONNECT_FAILED"
	CodeInsertFailed  = "INSERT_FAILED"
	CodeQueryFailed   = "QUERY_FAILED"
	CodeIndexFailed   = "INDEX_FAILED"
	CodeCommitFailed  = "COMMIT_FAILED"

	// Config codes
	CodeInvalidConfig = "INVALID_CONFIG"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// Error is the structured error type used throughout the system.
type Error struct {
	Category  ErrorCategory
	Code      string
	Op        string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *Error) Error() string {
	prefix := fmt.Sprintf("[%s:%s]", e.Category, e.Code)
	if e.Op != "" {
		prefix += " " + e.Op + ":"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new Error.
func New(category ErrorCategory, code, op, message string) *Error {
	return &Error{
		Category:  category,
		Code:      code,
		Op:        op,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(category ErrorCategory, code, op, message string, cause error) *Error {
	e := New(category, code, op, message)
	e.Cause = cause
	return e
}

// WithDetails returns a copy of the error with additional details.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is flagged retryable.
// Nothing in empbench retries; the flag is informational for callers.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not an *Error.
func GetCategory(err error) ErrorCategory {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not an *Error.
func GetCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool { return GetCategory(err) == ErrCategoryValidation }

// IsSchema reports whether err is a SchemaError.
func IsSchema(err error) bool { return GetCategory(err) == ErrCategorySchema }

// IsStore reports whether err is a StoreError.
func IsStore(err error) bool { return GetCategory(err) == ErrCategoryStore }

// A lost connection may succeed on a later attempt; everything else is
// deterministic for the same input.
func isRetryable(category ErrorCategory, code string) bool {
	return category == ErrCategoryStore && code == CodeConnectFailed
}

// Convenience constructors for the taxonomy.

func NewValidationError(code, op, message string, cause error) *Error {
	return Wrap(ErrCategoryValidation, code, op, message, cause)
}

func NewSchemaError(code, op, message string, cause error) *Error {
	return Wrap(ErrCategorySchema, code, op, message, cause)
}

func NewStoreError(code, op, message string, cause error) *Error {
	return Wrap(ErrCategoryStore, code, op, message, cause)
}

func NewConfigError(message string, cause error) *Error {
	return Wrap(ErrCategoryConfig, CodeInvalidConfig, "config", message, cause)
}

func NewInternalError(op, message string, cause error) *Error {
	return Wrap(ErrCategoryInternal, CodeUnexpected, op, message, cause)
}
