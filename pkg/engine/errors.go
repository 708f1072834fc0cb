package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an error for handling and reporting.
type ErrorClass string

const (
	// ErrorClassValidation indicates malformed or inconsistent input.
	// Examples: empty plans, unknown fields, invalid tool parameters.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassNotFound indicates a referenced entity does not exist.
	// Examples: unregistered tools, unknown assets, missing services.
	ErrorClassNotFound ErrorClass = "not_found"

	// ErrorClassAmbiguous indicates an identifier matched more than one entity.
	// The caller must disambiguate with a more specific identifier.
	ErrorClassAmbiguous ErrorClass = "ambiguous"

	// ErrorClassUnavailable indicates a downstream dependency cannot serve requests.
	// Examples: open circuit breakers, unreachable services.
	ErrorClassUnavailable ErrorClass = "unavailable"

	// ErrorClassDecryption indicates credential material could not be decrypted.
	ErrorClassDecryption ErrorClass = "decryption"

	// ErrorClassCatalog indicates a tool catalog load or parse failure.
	ErrorClassCatalog ErrorClass = "catalog"

	// ErrorClassPolicy indicates a plan was rejected by admission policy.
	ErrorClassPolicy ErrorClass = "policy"

	// ErrorClassInternal indicates an unexpected runtime failure.
	ErrorClassInternal ErrorClass = "internal"
)

// RuntimeError represents a classified error with context.
type RuntimeError struct {
	// Class is the error classification for handling logic.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Resource is the entity that caused the error, if applicable.
	Resource string `json:"resource,omitempty"`

	// Operation is the operation being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := e.Message
	if e.Resource != "" && e.Operation != "" {
		msg = fmt.Sprintf("%s (resource=%s, operation=%s)", e.Message, e.Resource, e.Operation)
	} else if e.Resource != "" {
		msg = fmt.Sprintf("%s (resource=%s)", e.Message, e.Resource)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", e.Class, msg, e.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", e.Class, msg)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *RuntimeError) Is(target error) bool {
	t, ok := target.(*RuntimeError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, err error) *RuntimeError {
	return &RuntimeError{
		Class:   ErrorClassValidation,
		Message: message,
		Code:    ErrCodeValidation,
		Err:     err,
	}
}

// NewNotFoundError creates a new not-found error.
func NewNotFoundError(message string, err error) *RuntimeError {
	return &RuntimeError{
		Class:   ErrorClassNotFound,
		Message: message,
		Code:    ErrCodeNotFound,
		Err:     err,
	}
}

// NewAmbiguousError creates a new ambiguous-match error.
func NewAmbiguousError(message string, err error) *RuntimeError {
	return &RuntimeError{
		Class:   ErrorClassAmbiguous,
		Message: message,
		Code:    ErrCodeAmbiguousMatch,
		Err:     err,
	}
}

// NewUnavailableError creates a new dependency-unavailable error.
func NewUnavailableError(message string, err error) *RuntimeError {
	return &RuntimeError{
		Class:   ErrorClassUnavailable,
		Message: message,
		Code:    ErrCodeServiceUnavailable,
		Err:     err,
	}
}

// NewDecryptionError creates a new decryption error.
func NewDecryptionError(message string, err error) *RuntimeError {
	return &RuntimeError{
		Class:   ErrorClassDecryption,
		Message: message,
		Code:    ErrCodeDecryptionFailed,
		Err:     err,
	}
}

// NewCatalogError creates a new catalog load error.
func NewCatalogError(message string, err error) *RuntimeError {
	return &RuntimeError{
		Class:   ErrorClassCatalog,
		Message: message,
		Code:    ErrCodeCatalogLoad,
		Err:     err,
	}
}

// NewPolicyError creates a new policy rejection error.
func NewPolicyError(message string, err error) *RuntimeError {
	return &RuntimeError{
		Class:   ErrorClassPolicy,
		Message: message,
		Code:    ErrCodePolicyDenied,
		Err:     err,
	}
}

// NewInternalError creates a new internal error.
func NewInternalError(message string, err error) *RuntimeError {
	return &RuntimeError{
		Class:   ErrorClassInternal,
		Message: message,
		Code:    ErrCodeInternal,
		Err:     err,
	}
}

// WithResource adds resource context to an error.
func (e *RuntimeError) WithResource(resource string) *RuntimeError {
	e.Resource = resource
	return e
}

// WithOperation adds operation context to an error.
func (e *RuntimeError) WithOperation(operation string) *RuntimeError {
	e.Operation = operation
	return e
}

// WithCode replaces the error code.
func (e *RuntimeError) WithCode(code string) *RuntimeError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *RuntimeError) WithDetail(key string, value interface{}) *RuntimeError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsNotFound returns true if the error is classified as not-found.
func IsNotFound(err error) bool {
	var e *RuntimeError
	if errors.As(err, &e) {
		return e.Class == ErrorClassNotFound
	}
	return false
}

// IsAmbiguous returns true if the error is classified as ambiguous.
func IsAmbiguous(err error) bool {
	var e *RuntimeError
	if errors.As(err, &e) {
		return e.Class == ErrorClassAmbiguous
	}
	return false
}

// IsUnavailable returns true if the error is classified as unavailable.
func IsUnavailable(err error) bool {
	var e *RuntimeError
	if errors.As(err, &e) {
		return e.Class == ErrorClassUnavailable
	}
	return false
}

// IsValidation returns true if the error is classified as a validation error.
func IsValidation(err error) bool {
	var e *RuntimeError
	if errors.As(err, &e) {
		return e.Class == ErrorClassValidation
	}
	return false
}

// IsPolicyDenied returns true if the error is a policy rejection.
func IsPolicyDenied(err error) bool {
	var e *RuntimeError
	if errors.As(err, &e) {
		return e.Class == ErrorClassPolicy
	}
	return false
}

// ClassOf returns the error class of err, or ErrorClassInternal for
// unclassified errors.
func ClassOf(err error) ErrorClass {
	var e *RuntimeError
	if errors.As(err, &e) {
		return e.Class
	}
	return ErrorClassInternal
}

// Common error codes.
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeAmbiguousMatch     = "AMBIGUOUS_MATCH"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeCircuitOpen        = "CIRCUIT_OPEN"
	ErrCodeDecryptionFailed   = "DECRYPTION_FAILED"
	ErrCodeCatalogLoad        = "CATALOG_LOAD_ERROR"
	ErrCodePolicyDenied       = "POLICY_DENIED"
	ErrCodeDuplicateResult    = "DUPLICATE_STEP_RESULT"
	ErrCodeToolNotRoutable    = "TOOL_NOT_ROUTABLE"
	ErrCodeTimeout            = "TIMEOUT"
	ErrCodeInternal           = "INTERNAL_ERROR"
)
