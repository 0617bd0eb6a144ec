package service

import (
	"errors"
	"fmt"
)

// Checkout error taxonomy. Everything validation-shaped is detected before
// any write; storage and upstream failures always leave zero partial state.
var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrProductUnavailable   = errors.New("product unavailable")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrSignatureInvalid     = errors.New("invalid webhook signature")
	ErrDuplicateExternalRef = errors.New("duplicate external payment reference")
	ErrInvalidStatusValue   = errors.New("invalid status value")
	ErrInvalidState         = errors.New("invalid state")
	ErrUpstreamChannel      = errors.New("payment channel unavailable")
	ErrStorage              = errors.New("storage failure")
)

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStorage, err)
}
