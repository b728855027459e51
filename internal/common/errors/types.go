package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeValidation represents request validation errors
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeConfig represents configuration errors
	ErrTypeConfig ErrorType = "config"
	// ErrTypeAuth represents authentication errors (bad webhook signatures)
	ErrTypeAuth ErrorType = "authentication"
	// ErrTypeNotFound represents resource not found errors
	ErrTypeNotFound ErrorType = "not_found"
	// ErrTypeConflict represents a concurrent registration holding the event lock
	ErrTypeConflict ErrorType = "conflict"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
	// ErrTypeTimeout represents timeout errors
	ErrTypeTimeout ErrorType = "timeout"
	// ErrTypeRateLimit represents rate limit errors
	ErrTypeRateLimit ErrorType = "rate_limit"

	// ErrTypeInvalidAnchorDate means the issue body carries no parseable date line
	ErrTypeInvalidAnchorDate ErrorType = "invalid_anchor_date"
	// ErrTypeUnknownTask means a task name has no resolvable downstream endpoint
	ErrTypeUnknownTask ErrorType = "unknown_task"
	// ErrTypeRegistryUnavailable represents transient trigger/permission store failures
	ErrTypeRegistryUnavailable ErrorType = "registry_unavailable"
	// ErrTypeRegistryRejected means the store answered but refused some entries
	ErrTypeRegistryRejected ErrorType = "registry_rejected"
	// ErrTypePermissionConflict means a grant already exists. Ledgers map it to success.
	ErrTypePermissionConflict ErrorType = "permission_conflict"
	// ErrTypePartialFanout means one or more offsets failed to register
	ErrTypePartialFanout ErrorType = "partial_fanout_failure"
)

// CodeCircuitOpen marks registry errors produced by an open circuit breaker.
const CodeCircuitOpen = "circuit_open"

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		contextParts := make([]string, 0, len(keys))
		for _, k := range keys {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeValidation,
		Message: msg,
	}
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeConfig,
		Message: msg,
	}
}

// AuthError creates a new authentication error
func AuthError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeAuth,
		Message: msg,
	}
}

// NotFoundError creates a new not found error
func NotFoundError(resource string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Cause:   cause,
	}
}

// ConflictError creates a new conflict error
func ConflictError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeConflict,
		Message: msg,
		Cause:   cause,
	}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// TimeoutError creates a new timeout error
func TimeoutError(operation string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeTimeout,
		Message: fmt.Sprintf("timeout during %s", operation),
		Cause:   cause,
	}
}

// RateLimitError creates a new rate limit error
func RateLimitError(resource string) *AppError {
	return &AppError{
		Type:    ErrTypeRateLimit,
		Message: fmt.Sprintf("rate limit exceeded for %s", resource),
	}
}

// InvalidAnchorDate creates the fatal "no usable date" registration error
func InvalidAnchorDate(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeInvalidAnchorDate,
		Message: msg,
	}
}

// UnknownTask creates an error for a task name without a downstream endpoint
func UnknownTask(task string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeUnknownTask,
		Message: fmt.Sprintf("task %q has no downstream endpoint", task),
		Cause:   cause,
		Context: map[string]interface{}{"task": task},
	}
}

// RegistryUnavailable creates a transient registry error for the named operation
func RegistryUnavailable(operation string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeRegistryUnavailable,
		Message: fmt.Sprintf("registry unavailable during %s", operation),
		Cause:   cause,
	}
}

// RegistryRejected creates an error for entries the registry refused to apply
func RegistryRejected(operation string, entries []string) *AppError {
	return &AppError{
		Type:    ErrTypeRegistryRejected,
		Message: fmt.Sprintf("%s rejected %d entries: %s", operation, len(entries), strings.Join(entries, ", ")),
	}
}

// PermissionConflict creates the "grant already exists" error
func PermissionConflict(statementID string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypePermissionConflict,
		Message: fmt.Sprintf("permission %s already exists", statementID),
		Cause:   cause,
	}
}

// PartialFanoutFailure creates the multi-status registration error
func PartialFanoutFailure(failed, total int) *AppError {
	return &AppError{
		Type:    ErrTypePartialFanout,
		Message: fmt.Sprintf("%d of %d offsets failed to register", failed, total),
	}
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}

	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}

	return appErr.Type == errType
}

// GetType returns the error type if it's an AppError, otherwise returns ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return ErrTypeInternal
	}

	return appErr.Type
}

// IsTransient reports whether err is worth retrying locally.
// Semantic failures (unknown task, rejected entries, validation) never are.
func IsTransient(err error) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}

	switch appErr.Type {
	case ErrTypeRegistryUnavailable:
		return appErr.Code != CodeCircuitOpen
	case ErrTypeTimeout, ErrTypeRateLimit:
		return true
	default:
		return false
	}
}
