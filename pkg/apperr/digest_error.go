// Package apperr defines the coded application errors used across the
// digest service. Soft parse failures are nil results by convention and
// never surface as error values.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Pipeline errors
	CodePipelineValidation = "PIPELINE_VALIDATION" // bad stage graph, fatal at construction
	CodeInputShape         = "INPUT_SHAPE"         // malformed email, item skipped
	CodeRenderFallback     = "RENDER_FALLBACK"     // LLM output rejected, deterministic path used

	// External collaborators
	CodeExternalCall = "EXTERNAL_CALL"
	CodeTimeout      = "TIMEOUT"
	CodeRateLimited  = "RATE_LIMITED"

	// API layer
	CodeBadRequest    = "BAD_REQUEST"
	CodeInvalidInput  = "INVALID_INPUT"
	CodeNotFound      = "NOT_FOUND"
	CodeInternalError = "INTERNAL_ERROR"
	CodeConfigError   = "CONFIG_ERROR"
)

// AppError is a structured application error with a stable code.
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Status  int            `json:"-"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// HTTPStatus returns the HTTP status code mapped to this error.
func (e *AppError) HTTPStatus() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}

// Constructors

func New(code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

func Wrap(err error, code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: err}
}

// PipelineValidation is raised only at pipeline construction when the
// stage graph is invalid. It is the one fatal error in the taxonomy.
func PipelineValidation(message string) *AppError {
	return &AppError{
		Code:    CodePipelineValidation,
		Message: message,
		Status:  http.StatusInternalServerError,
	}
}

// InputShape marks a malformed email; the item is skipped, never fatal.
func InputShape(emailID, reason string) *AppError {
	return &AppError{
		Code:    CodeInputShape,
		Message: fmt.Sprintf("malformed email %s: %s", emailID, reason),
		Status:  http.StatusBadRequest,
		Details: map[string]any{"email_id": emailID},
	}
}

// ExternalCall marks a failed network collaborator; the stage proceeds
// with its deterministic fallback.
func ExternalCall(service string, err error) *AppError {
	return &AppError{
		Code:    CodeExternalCall,
		Message: fmt.Sprintf("external service error: %s", service),
		Status:  http.StatusBadGateway,
		Details: map[string]any{"service": service},
		Err:     err,
	}
}

// RenderFallback signals that LLM synthesis output was rejected and the
// deterministic renderer took over.
func RenderFallback(reason string) *AppError {
	return &AppError{
		Code:    CodeRenderFallback,
		Message: reason,
		Status:  http.StatusOK,
	}
}

func Timeout(operation string) *AppError {
	return &AppError{
		Code:    CodeTimeout,
		Message: fmt.Sprintf("operation timed out: %s", operation),
		Status:  http.StatusGatewayTimeout,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{Code: CodeBadRequest, Message: message, Status: http.StatusBadRequest}
}

func InvalidInput(field, reason string) *AppError {
	return &AppError{
		Code:    CodeInvalidInput,
		Message: fmt.Sprintf("invalid input for '%s': %s", field, reason),
		Status:  http.StatusBadRequest,
		Details: map[string]any{"field": field},
	}
}

func NotFound(resource string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
	}
}

func Internal(message string) *AppError {
	if message == "" {
		message = "internal server error"
	}
	return &AppError{Code: CodeInternalError, Message: message, Status: http.StatusInternalServerError}
}

func ConfigError(message string) *AppError {
	return &AppError{Code: CodeConfigError, Message: message, Status: http.StatusInternalServerError}
}

// Helpers

func IsCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeInternalError, "internal server error", http.StatusInternalServerError)
}

func GetHTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}
