// Package errors provides structured application errors with typed categories.
package errors

import (
	"fmt"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeConnection represents connection-related errors
	ErrTypeConnection ErrorType = "connection"
	// ErrTypeValidation represents validation errors
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeConfig represents configuration errors
	ErrTypeConfig ErrorType = "config"
	// ErrTypeAuth represents authentication errors
	ErrTypeAuth ErrorType = "authentication"
	// ErrTypeNotFound represents resource not found errors
	ErrTypeNotFound ErrorType = "not_found"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"

	// ErrTypeNoAccount means no credential row exists for the user/provider.
	// The user has never linked the provider and must authorize first.
	ErrTypeNoAccount ErrorType = "no_account"
	// ErrTypeMissingToken means a credential row exists but lacks an access
	// or refresh token. Terminal until the user re-authorizes.
	ErrTypeMissingToken ErrorType = "missing_token"
	// ErrTypeRefreshFailed means the identity provider rejected or failed the
	// refresh exchange (bad refresh token, network failure, non-2xx).
	ErrTypeRefreshFailed ErrorType = "refresh_failed"
	// ErrTypeUpstream represents a failure response from the third-party
	// resource API, including a 401 that survived the single retry.
	ErrTypeUpstream ErrorType = "upstream"
)

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
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
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

// ConnectionError creates a new connection error
func ConnectionError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeConnection,
		Message: msg,
		Cause:   cause,
	}
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
func NotFoundError(resource string) *AppError {
	return &AppError{
		Type:    ErrTypeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
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

// NoAccountError creates an error for a user with no linked provider account
func NoAccountError(provider string) *AppError {
	return &AppError{
		Type:    ErrTypeNoAccount,
		Message: fmt.Sprintf("no %s account linked for user", provider),
	}
}

// MissingTokenError creates an error for a credential without usable tokens
func MissingTokenError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeMissingToken,
		Message: msg,
	}
}

// RefreshFailedError creates an error for a failed token refresh exchange.
// The HTTP status from the provider (0 for transport failures) is recorded
// in the error context for diagnostics.
func RefreshFailedError(msg string, status int, cause error) *AppError {
	e := &AppError{
		Type:    ErrTypeRefreshFailed,
		Message: msg,
		Cause:   cause,
	}
	if status > 0 {
		e.WithContext("status", status)
	}
	return e
}

// UpstreamError creates an error for a failure response from the resource API
func UpstreamError(msg string, status int) *AppError {
	return (&AppError{
		Type:    ErrTypeUpstream,
		Message: msg,
	}).WithContext("status", status)
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}

	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}

	return appErr.Type == errType
}

// GetType returns the error type if it's an AppError, otherwise returns ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	appErr, ok := err.(*AppError)
	if !ok {
		return ErrTypeInternal
	}

	return appErr.Type
}

// NeedsReauth reports whether the error means the user must re-authorize the
// provider (as opposed to a transient or upstream failure).
func NeedsReauth(err error) bool {
	switch GetType(err) {
	case ErrTypeNoAccount, ErrTypeMissingToken, ErrTypeRefreshFailed:
		return true
	}
	return false
}
