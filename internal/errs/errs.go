// Package errs defines the error taxonomy shared by the kitchen core.
// Handlers map these kinds to HTTP and RPC codes; internal detail stays
// behind the boundary.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks missing or malformed caller input
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks an unknown order/ingredient/tenant pair
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition marks an illegal order status change
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrInsufficientStock marks an availability failure; a business
	// outcome, not a system error
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInternal marks an unexpected store or computation failure
	ErrInternal = errors.New("internal failure")
)

// Validationf wraps ErrValidation with a caller-facing message
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrValidation}, args...)...)
}

// NotFoundf wraps ErrNotFound with a caller-facing message
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrNotFound}, args...)...)
}

// InvalidTransitionf wraps ErrInvalidTransition with a caller-facing message
func InvalidTransitionf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidTransition}, args...)...)
}

// Internal wraps an unexpected error so only the generic kind crosses the
// boundary while the cause stays available for logging
func Internal(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrInternal, err)
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidTransition reports whether err is an invalid-transition error
func IsInvalidTransition(err error) bool { return errors.Is(err, ErrInvalidTransition) }

// IsInsufficientStock reports whether err is an availability failure
func IsInsufficientStock(err error) bool { return errors.Is(err, ErrInsufficientStock) }

// InsufficientStockError carries the full shortfall detail so the caller
// can act on it
type InsufficientStockError struct {
	Missing []Shortfall
}

// Shortfall describes one ingredient that cannot cover an order
type Shortfall struct {
	IngredientName string  `json:"ingredientName"`
	Required       float64 `json:"required"`
	Available      float64 `json:"available"`
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %d ingredient(s)", len(e.Missing))
}

// Unwrap ties the detailed error into the taxonomy
func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// Describe renders a shortfall the way the waiter agent expects it
func (s Shortfall) Describe() string {
	return fmt.Sprintf("%s (need %g, have %g)", s.IngredientName, s.Required, s.Available)
}
