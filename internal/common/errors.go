package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds shared by the booking and payment flows. AppErrors built by the
// constructors below wrap one of them so callers can branch with errors.Is.
var (
	ErrConfiguration    = errors.New("configuration error")
	ErrValidation       = errors.New("validation error")
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrProvider         = errors.New("provider error")
	ErrServer           = errors.New("server error")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// ConfigurationError reports missing or invalid settings.
func ConfigurationError(message string) *AppError {
	return kindError(ErrConfiguration, "CONFIGURATION_ERROR", message, http.StatusBadRequest)
}

// ValidationError reports a malformed request.
func ValidationError(message string, details any) *AppError {
	err := kindError(ErrValidation, "VALIDATION_ERROR", message, http.StatusBadRequest)
	err.Details = details
	return err
}

// InvalidPayloadError reports an unparsable webhook body.
func InvalidPayloadError(message string) *AppError {
	return kindError(ErrInvalidPayload, "INVALID_PAYLOAD", message, http.StatusBadRequest)
}

// InvalidSignatureError reports a webhook whose signature does not verify.
func InvalidSignatureError(message string) *AppError {
	return kindError(ErrInvalidSignature, "INVALID_SIGNATURE", message, http.StatusBadRequest)
}

// ProviderError wraps a failure returned by the payment provider. The provider
// message travels in Details for diagnostics.
func ProviderError(message string, providerMessage string) *AppError {
	err := kindError(ErrProvider, "PROVIDER_ERROR", message, http.StatusInternalServerError)
	if providerMessage != "" {
		err.Details = map[string]string{"provider_message": providerMessage}
	}
	return err
}

// ServerError reports unexpected missing data from a normally reliable call.
func ServerError(message string) *AppError {
	return kindError(ErrServer, "SERVER_ERROR", message, http.StatusInternalServerError)
}

// NotFoundError reports a missing resource.
func NotFoundError(message string) *AppError {
	return kindError(ErrNotFound, "NOT_FOUND", message, http.StatusNotFound)
}

// ConflictError reports a uniqueness or state conflict.
func ConflictError(message string) *AppError {
	return kindError(ErrConflict, "CONFLICT", message, http.StatusConflict)
}

func kindError(kind error, code, message string, status int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
		Err:        fmt.Errorf("%w: %s", kind, message),
	}
}

// WriteError renders err using its AppError metadata, falling back to a
// generic 500 for anything else.
func WriteError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		code := appErr.Code
		if code == "" {
			code = "INTERNAL"
		}
		message := appErr.Message
		if message == "" {
			message = "internal error"
		}
		JSONError(w, status, code, message, appErr.Details)
		return
	}
	JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
