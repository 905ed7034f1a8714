package utils

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationError represents an error occurring during input validation.
// Nothing is partially applied when one is returned.
type ValidationError struct {
	Message string
}

// Error returns the error message string.
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new ValidationError with a specific message.
func NewValidationError(message string) error {
	return &ValidationError{
		Message: message,
	}
}

// NewValidationErrorf creates a new ValidationError with a formatted message.
func NewValidationErrorf(format string, args ...interface{}) error {
	return &ValidationError{
		Message: fmt.Sprintf(format, args...),
	}
}

// InsufficientCostBasisError is returned when a disposal requests more
// quantity than the ledger holds. The ledger is left untouched.
type InsufficientCostBasisError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
}

// Error returns the error message string.
func (e *InsufficientCostBasisError) Error() string {
	return fmt.Sprintf("insufficient cost basis: requested %s, available %s",
		e.Requested.String(), e.Available.String())
}

// NewInsufficientCostBasisError creates the error carrying both quantities.
func NewInsufficientCostBasisError(requested, available decimal.Decimal) error {
	return &InsufficientCostBasisError{
		Requested: requested,
		Available: available,
	}
}
