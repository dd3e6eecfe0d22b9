package types

import (
	"context"
	"errors"
)

// ErrorCode identifies a class of failure.
type ErrorCode string

const (
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrConfig       ErrorCode = "CONFIG_ERROR"
	ErrInternal     ErrorCode = "INTERNAL_ERROR"

	// ErrNetwork is a transport failure or 5xx answer; it is retried.
	ErrNetwork ErrorCode = "NETWORK_ERROR"
	// ErrFetchRejected is a 4xx answer for the source file; it is not retried.
	ErrFetchRejected ErrorCode = "FETCH_REJECTED"
	ErrRateLimit     ErrorCode = "RATE_LIMIT"

	ErrUnsupportedFileType   ErrorCode = "UNSUPPORTED_FILE_TYPE"
	ErrExtraction            ErrorCode = "EXTRACTION_FAILURE"
	ErrOCR                   ErrorCode = "OCR_FAILURE"
	ErrProviderAuthOrConfig  ErrorCode = "PROVIDER_AUTH_OR_CONFIG"
	ErrProviderModelNotFound ErrorCode = "PROVIDER_MODEL_NOT_FOUND"
	ErrProviderTimeout       ErrorCode = "PROVIDER_TIMEOUT"
	ErrProviderUnavailable   ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrProvider              ErrorCode = "PROVIDER_ERROR"
	// ErrMalformedModelOutput tags vision replies that needed salvage. It is
	// logged, never returned.
	ErrMalformedModelOutput ErrorCode = "MALFORMED_MODEL_OUTPUT"
)

// Category is the user-facing classification of a failure.
type Category string

const (
	CategoryTimeout          Category = "timeout"
	CategoryModelUnavailable Category = "model_unavailable"
	CategoryConfiguration    Category = "configuration"
	CategoryUnsupportedFile  Category = "unsupported_file"
	CategoryFailed           Category = "failed"
)

// AppError is the application error type.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface for AppError
func (e *AppError) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new AppError with the given code, message, and optional cause
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAppErrorWithDetails creates a new AppError with details
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// IsTimeout reports whether err was caused by an expired deadline.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrProviderTimeout
}

// CodeOf returns the code of the outermost AppError in err's chain, or
// ErrInternal when there is none.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrProviderTimeout
	}
	return ErrInternal
}

// CategoryOf classifies err for display to the end user.
func CategoryOf(err error) Category {
	if err == nil {
		return ""
	}
	if IsTimeout(err) {
		return CategoryTimeout
	}
	switch CodeOf(err) {
	case ErrProviderTimeout:
		return CategoryTimeout
	case ErrProviderModelNotFound, ErrProviderUnavailable, ErrRateLimit:
		return CategoryModelUnavailable
	case ErrProviderAuthOrConfig, ErrConfig:
		return CategoryConfiguration
	case ErrUnsupportedFileType:
		return CategoryUnsupportedFile
	default:
		return CategoryFailed
	}
}
