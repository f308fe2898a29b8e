package models

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Error codes shared by the API client, the services and the HTTP layer.
const (
	CodeNetwork      = "NETWORK_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeBackend      = "BACKEND_ERROR"
	CodeInternal     = "INTERNAL_ERROR"
)

var (
	ErrCancelled           = errors.New("query cancelled")
	ErrFileTooLarge        = errors.New("file exceeds size limit")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrStepInvalid         = errors.New("onboarding step is invalid")
	ErrWizardIncomplete    = errors.New("onboarding is not at its final step")
	ErrSubmitInFlight      = errors.New("onboarding is already being submitted")
)

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	// Status is the HTTP status reported by the backend, when there was one.
	Status int
	Err    error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
		Status:  http.StatusNotFound,
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

// NewValidationErrorFrom wraps a sentinel so callers can still errors.Is it.
func NewValidationErrorFrom(message string, err error) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
		Err:     err,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
		Status:  http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
		Status:  http.StatusForbidden,
	}
}

func NewNetworkError(err error) *AppError {
	return &AppError{
		Code:    CodeNetwork,
		Message: "No se pudo conectar con el servidor",
		Err:     err,
	}
}

// NewBackendError carries a business-rule rejection whose message is shown verbatim.
func NewBackendError(status int, message string) *AppError {
	if message == "" {
		message = http.StatusText(status)
	}
	code := CodeBackend
	switch status {
	case http.StatusForbidden:
		code = CodeForbidden
	case http.StatusNotFound:
		code = CodeNotFound
	}
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
	}
}

const internalMessage = "Internal server error"

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: internalMessage,
		Err:     err,
	}
}

// IsUnauthorized reports whether err is an authentication failure.
func IsUnauthorized(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == CodeUnauthorized
}

// HTTPStatus picks the status the browser should see for err.
func HTTPStatus(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case CodeValidation:
		return fiber.StatusBadRequest
	case CodeUnauthorized:
		return fiber.StatusUnauthorized
	case CodeForbidden:
		return fiber.StatusForbidden
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeNetwork:
		return fiber.StatusBadGateway
	case CodeBackend:
		if appErr.Status >= 400 && appErr.Status < 500 {
			return appErr.Status
		}
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// UserMessage is the text shown to the user for err.
func UserMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Code == CodeInternal && appErr.Message == internalMessage {
			return "Ocurrió un error inesperado"
		}
		return appErr.Message
	}
	return "Ocurrió un error inesperado"
}
