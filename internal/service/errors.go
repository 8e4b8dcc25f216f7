package service

import (
	"errors"
	"fmt"

	"storefront/internal/model"

	"github.com/google/uuid"
)

// Sentinel errors shared by every service. Handlers map them to HTTP codes
// in one place (handler.respondError).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrUnauthorized = errors.New("autenticacion requerida")
)

// InsufficientStockError is returned when a reservation asks for more units
// than are available. It is recoverable: the caller may retry with less.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente para %s: disponible %d, solicitado %d", e.ProductID, e.Available, e.Requested)
}

// ValidationError reports a rejected input value (non-positive quantity, bad status...).
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// InvalidTransitionError is returned for order status changes outside the allowed table.
type InvalidTransitionError struct {
	From model.OrderStatus
	To   model.OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("transicion de estado no permitida: %s -> %s", e.From, e.To)
}

// InvariantViolationError means a ledger precondition that callers are
// responsible for did not hold. It is an internal defect, never user-actionable.
type InvariantViolationError struct {
	Op        string
	ProductID uuid.UUID
	Detail    string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("ledger invariant violated in %s(%s): %s", e.Op, e.ProductID, e.Detail)
}

// IsInsufficientStock reports whether err carries an InsufficientStockError.
func IsInsufficientStock(err error) bool {
	var ise *InsufficientStockError
	return errors.As(err, &ise)
}

func validationErr(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}
