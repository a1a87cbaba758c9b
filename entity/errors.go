package entity

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrVersionConflict = errors.New("version conflict")
	ErrValidation      = errors.New("validation error")

	ErrInvalidTransition = errors.New("invalid booking status transition")
	ErrPaymentNotSettled = errors.New("payment not settled")
	ErrBookingNotPayable = errors.New("booking does not accept payments")
	ErrRefundRequired    = errors.New("payment is completed, refund it before cancelling")

	ErrDuplicatePayment       = errors.New("payment already exists for booking")
	ErrPaymentAlreadySettled  = errors.New("payment already settled")
	ErrPaymentAlreadyRefunded = fmt.Errorf("%w: payment already refunded", ErrPaymentAlreadySettled)
	ErrPaymentNotRefundable   = errors.New("only completed payments can be refunded")

	ErrLockNotAcquired = errors.New("could not acquire booking lock")
	ErrLockLost        = errors.New("booking lock lost")
)

type TransitionError struct {
	From BookingStatus
	To   BookingStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid booking status transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

var businessErrors = []error{
	ErrNotFound,
	ErrAlreadyExists,
	ErrValidation,
	ErrInvalidTransition,
	ErrPaymentNotSettled,
	ErrBookingNotPayable,
	ErrRefundRequired,
	ErrDuplicatePayment,
	ErrPaymentAlreadySettled,
	ErrPaymentNotRefundable,
}

// IsBusinessError reports errors that retrying would not change.
func IsBusinessError(err error) bool {
	for _, businessErr := range businessErrors {
		if errors.Is(err, businessErr) {
			return true
		}
	}
	return false
}
