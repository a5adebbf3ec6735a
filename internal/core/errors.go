package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced entity does not exist within the organization.
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned for malformed input and illegal state transitions.
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientStock is returned when a reservation or outgoing movement exceeds available stock.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrOverpayment is returned when a payment would push the paid sum past the document total.
	ErrOverpayment = errors.New("payment exceeds invoice total")
)

// invalid formats a message and tags it with ErrValidation.
func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrValidation)
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}
