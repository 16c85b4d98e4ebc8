// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import "errors"

// ErrorType represents the semantic category of an error
type ErrorType int

const (
	ErrorTypeValidation   ErrorType = iota // Input validation errors (400 Bad Request)
	ErrorTypeNotFound                      // Resource not found errors (404 Not Found)
	ErrorTypeConflict                      // Resource conflict errors (409 Conflict)
	ErrorTypeInternal                      // Internal server errors (500 Internal Server Error)
	ErrorTypeUnavailable                   // Service unavailable errors (503 Service Unavailable)
	ErrorTypeUnauthorized                  // Authentication errors (401 Unauthorized)
)

// Sentinel errors raised by the lifecycle controller and its collaborators.
var (
	// ErrNoRecordingFound is returned when a recording.completed payload carries no eligible MP4 file.
	ErrNoRecordingFound = errors.New("no recording found")

	// ErrMissingMediaID is returned when the video host answers successfully without a media identifier.
	ErrMissingMediaID = errors.New("video host response is missing a media identifier")

	// ErrInvalidSignature is returned when a webhook signature does not verify.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrWebhookSecretNotConfigured is returned when no signing secret is available and insecure mode is off.
	ErrWebhookSecretNotConfigured = errors.New("webhook secret token not configured")

	// ErrNotificationNotAnnounced is returned when a notification was stored but its event was not published.
	ErrNotificationNotAnnounced = errors.New("notification stored but not announced")
)

// DomainError represents an error with semantic type information
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error // underlying error for wrapping
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// GetErrorType returns the semantic type of an error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ErrorTypeInternal // default fallback
}

// Error constructors for different types
func NewValidationError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeValidation, Message: message, Err: errors.Join(err...)}
}

func NewUnauthorizedError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeUnauthorized, Message: message, Err: errors.Join(err...)}
}

func NewNotFoundError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeNotFound, Message: message, Err: errors.Join(err...)}
}

func NewConflictError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeConflict, Message: message, Err: errors.Join(err...)}
}

func NewInternalError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeInternal, Message: message, Err: errors.Join(err...)}
}

func NewUnavailableError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeUnavailable, Message: message, Err: errors.Join(err...)}
}
