package cartclient

import (
	"errors"
	"fmt"
)

// Error codes carried in the API error envelope.
const (
	CodeInsufficientStock  = "InsufficientStock"
	CodeNotFound           = "NotFound"
	CodeUnauthorized       = "Unauthorized"
	CodeValidation         = "ValidationError"
	CodeInvalidTransition  = "InvalidTransition"
	CodeInvariantViolation = "InvariantViolation"
)

var (
	ErrNotFound        = errors.New("cartclient: line item not found")
	ErrInvalidQuantity = errors.New("cartclient: quantity must be positive")
	// ErrMutationPending rejects a second mutation on a line item that
	// already has one in flight.
	ErrMutationPending = errors.New("cartclient: mutation already pending for this line item")
)

// APIError is a non-2xx response from the cart API.
type APIError struct {
	Status    int
	Code      string
	Detail    string
	Available *int64
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cart api: %d %s: %s", e.Status, e.Code, e.Detail)
}

// Is lets errors.Is(err, ErrNotFound) match a remote NotFound.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Code == CodeNotFound
}

// IsInsufficientStock reports whether err is the server refusing a
// reservation for lack of stock.
func IsInsufficientStock(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeInsufficientStock
}
