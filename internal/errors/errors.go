package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

/**
 * Custom error types for the UI locator
 *
 * Parse failures are returned to callers. Collaborator failures are caught by the
 * locate cascade and turned into "no results from this step".
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Vision response errors
	ErrorParseFailed ErrorCode = "PARSE_FAILED"

	// External collaborator errors (vision model, OCR engine, capture)
	ErrorCollaboratorFailed ErrorCode = "COLLABORATOR_FAILED"

	// Never surfaced: boxes are clamped instead
	ErrorOutOfBounds ErrorCode = "OUT_OF_BOUNDS"
)

// LocatorError represents a structured locator error
type LocatorError struct {
	Code      ErrorCode
	Message   string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *LocatorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LocatorError) Unwrap() error {
	return e.Cause
}

// Factory functions for common errors

// NewParseError reports a vision reply that stayed invalid after every repair step.
// The excerpt is truncated so logs stay readable.
func NewParseError(raw string, cause error) *LocatorError {
	excerpt := raw
	if len(excerpt) > 200 {
		excerpt = excerpt[:200]
	}
	return &LocatorError{
		Code:      ErrorParseFailed,
		Message:   "vision response is not valid JSON after repair",
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"excerpt": excerpt,
			"length":  len(raw),
		},
		Cause: cause,
	}
}

func NewCollaboratorError(collaborator string, cause error) *LocatorError {
	return &LocatorError{
		Code:      ErrorCollaboratorFailed,
		Message:   fmt.Sprintf("%s call failed", collaborator),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"collaborator": collaborator,
		},
		Cause: cause,
	}
}

// IsParseError reports whether err (or anything it wraps) is a parse failure.
func IsParseError(err error) bool {
	return hasCode(err, ErrorParseFailed)
}

// IsCollaboratorError reports whether err (or anything it wraps) is a collaborator failure.
func IsCollaboratorError(err error) bool {
	return hasCode(err, ErrorCollaboratorFailed)
}

func hasCode(err error, code ErrorCode) bool {
	var le *LocatorError
	if stderrors.As(err, &le) {
		return le.Code == code
	}
	return false
}

// ToMap converts error to map for history storage and task results
func (e *LocatorError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
