// Package apierror provides the error envelope returned by every 4xx/5xx
// response. Messages are safe for clients; internal details stay in the logs.
package apierror

// Stable machine-readable codes. Clients branch on Code, never on Detail.
const (
	CodeInsufficientStock  = "InsufficientStock"
	CodeNotFound           = "NotFound"
	CodeUnauthorized       = "Unauthorized"
	CodeForbidden          = "Forbidden"
	CodeValidation         = "ValidationError"
	CodeInvalidTransition  = "InvalidTransition"
	CodeInvariantViolation = "InvariantViolation"
	CodeRateLimited        = "RateLimited"
	CodeInternal           = "Internal"
)

// APIError is the canonical error envelope.
type APIError struct {
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail"`
	// Available is set on InsufficientStock: units that could be reserved.
	Available *int64 `json:"available,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

func WithCode(code, msg string) *APIError {
	return &APIError{Code: code, Detail: msg}
}

// InsufficientStock builds the 409 body for a failed reservation.
func InsufficientStock(msg string, available int64) *APIError {
	return &APIError{Code: CodeInsufficientStock, Detail: msg, Available: &available}
}

// ValidationError wraps field-level errors.
type ValidationError struct {
	Code   string            `json:"code"`
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Code: CodeValidation, Detail: "Error de validacion", Fields: fields}
}
