package payments

import (
	"context"
	"fmt"
	"sync"

	"travels/entity"
)

// MemoryRepository mirrors PostgresRepository, including the one active
// payment per booking rule.
type MemoryRepository struct {
	mu       sync.RWMutex
	payments map[string]entity.Payment
	// booking id -> payment ids, oldest first
	byBooking map[string][]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		payments:  make(map[string]entity.Payment),
		byBooking: make(map[string][]string),
	}
}

func (r *MemoryRepository) Create(_ context.Context, payment entity.Payment) (entity.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.payments[payment.ID]; ok {
		return entity.Payment{}, fmt.Errorf("booking %s: %w", payment.BookingID, entity.ErrDuplicatePayment)
	}
	for _, id := range r.byBooking[payment.BookingID] {
		if r.payments[id].Status != entity.PaymentStatusFailed {
			return entity.Payment{}, fmt.Errorf("booking %s: %w", payment.BookingID, entity.ErrDuplicatePayment)
		}
	}

	payment.Version = 1
	r.payments[payment.ID] = payment
	r.byBooking[payment.BookingID] = append(r.byBooking[payment.BookingID], payment.ID)

	return payment, nil
}

func (r *MemoryRepository) Get(_ context.Context, paymentID string) (entity.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	payment, ok := r.payments[paymentID]
	if !ok {
		return entity.Payment{}, fmt.Errorf("payment %s: %w", paymentID, entity.ErrNotFound)
	}

	return payment, nil
}

func (r *MemoryRepository) GetByBookingID(_ context.Context, bookingID string) (entity.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byBooking[bookingID]
	if len(ids) == 0 {
		return entity.Payment{}, fmt.Errorf("payment for booking %s: %w", bookingID, entity.ErrNotFound)
	}

	for i := len(ids) - 1; i >= 0; i-- {
		if p := r.payments[ids[i]]; p.Status != entity.PaymentStatusFailed {
			return p, nil
		}
	}

	return r.payments[ids[len(ids)-1]], nil
}

func (r *MemoryRepository) Update(_ context.Context, payment entity.Payment) (entity.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.payments[payment.ID]
	if !ok {
		return entity.Payment{}, fmt.Errorf("payment %s: %w", payment.ID, entity.ErrNotFound)
	}
	if stored.Version != payment.Version {
		return entity.Payment{}, fmt.Errorf("payment %s at version %d: %w", payment.ID, payment.Version, entity.ErrVersionConflict)
	}

	payment.Version++
	r.payments[payment.ID] = payment

	return payment, nil
}
