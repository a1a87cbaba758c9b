package lifecycle

import (
	"fmt"
	"time"

	"travels/entity"
)

// StateMachine is the only component allowed to change Booking.Status.
type StateMachine struct {
	now func() time.Time
}

func NewStateMachine(now func() time.Time) StateMachine {
	if now == nil {
		now = time.Now
	}
	return StateMachine{now: now}
}

// Start puts a freshly created booking at pending_payment with its first history entry.
func (m StateMachine) Start(booking entity.Booking, note string) entity.Booking {
	booking = booking.Clone()
	booking.Status = entity.BookingStatusPendingPayment
	booking.StatusHistory = []entity.StatusHistoryEntry{{
		Status: entity.BookingStatusPendingPayment,
		At:     m.now().UTC(),
		Note:   note,
	}}
	return booking
}

// Transition returns a copy of booking moved to target. booking itself is left untouched.
func (m StateMachine) Transition(booking entity.Booking, target entity.BookingStatus, note string) (entity.Booking, error) {
	if !target.IsValid() {
		return entity.Booking{}, entity.NewValidationError("status", fmt.Sprintf("unknown booking status %q", target))
	}
	if !booking.Status.CanTransitionTo(target) {
		return entity.Booking{}, &entity.TransitionError{From: booking.Status, To: target}
	}
	if target == entity.BookingStatusCompleted && booking.PaymentStatus != entity.PaymentStatusCompleted {
		return entity.Booking{}, fmt.Errorf(
			"booking %s cannot be completed with payment status %s: %w",
			booking.ID,
			booking.PaymentStatus,
			entity.ErrPaymentNotSettled,
		)
	}

	now := m.now().UTC()

	next := booking.Clone()
	next.Status = target
	next.StatusHistory = append(next.StatusHistory, entity.StatusHistoryEntry{
		Status: target,
		At:     now,
		Note:   note,
	})
	next.UpdatedAt = now

	return next, nil
}
