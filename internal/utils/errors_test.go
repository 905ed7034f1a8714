package utils

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Message: "test error message",
	}

	assert.Equal(t, "test error message", err.Error())
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("validation failed")

	assert.Error(t, err)
	assert.Equal(t, "validation failed", err.Error())

	// Check that it's the correct type
	validationErr, ok := err.(*ValidationError)
	assert.True(t, ok)
	assert.Equal(t, "validation failed", validationErr.Message)
}

func TestNewValidationErrorf(t *testing.T) {
	err := NewValidationErrorf("validation failed for field %s with value %d", "quantity", -3)

	assert.Error(t, err)
	assert.Equal(t, "validation failed for field quantity with value -3", err.Error())
}

func TestInsufficientCostBasisError(t *testing.T) {
	err := NewInsufficientCostBasisError(decimal.RequireFromString("150"), decimal.RequireFromString("100"))

	assert.Error(t, err)
	assert.Equal(t, "insufficient cost basis: requested 150, available 100", err.Error())

	var insufficientErr *InsufficientCostBasisError
	assert.True(t, errors.As(err, &insufficientErr))
	assert.True(t, insufficientErr.Requested.Equal(decimal.RequireFromString("150")))
	assert.True(t, insufficientErr.Available.Equal(decimal.RequireFromString("100")))
}
