package mocks

import (
	"context"
	"sync"

	"travels/entity"
)

type BookingRepository interface {
	Create(ctx context.Context, booking entity.Booking) (entity.Booking, error)
	Get(ctx context.Context, bookingID string) (entity.Booking, error)
	FindByUserID(ctx context.Context, userID string) ([]entity.Booking, error)
	Update(ctx context.Context, booking entity.Booking) (entity.Booking, error)
}

// FaultyBookingRepository wraps a repository and lets tests break updates.
type FaultyBookingRepository struct {
	BookingRepository

	mu sync.Mutex
	// FailUpdates makes the next n updates fail with UpdateErr without writing.
	failUpdates int
	updateErr   error
	// conflictUpdates makes the next n updates lose a race against another writer.
	conflictUpdates int
	Updates         int
}

func NewFaultyBookingRepository(repo BookingRepository) *FaultyBookingRepository {
	return &FaultyBookingRepository{BookingRepository: repo}
}

func (r *FaultyBookingRepository) FailNextUpdates(n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failUpdates = n
	r.updateErr = err
}

func (r *FaultyBookingRepository) ConflictNextUpdates(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conflictUpdates = n
}

func (r *FaultyBookingRepository) Update(ctx context.Context, booking entity.Booking) (entity.Booking, error) {
	r.mu.Lock()
	if r.failUpdates > 0 {
		r.failUpdates--
		r.mu.Unlock()
		return entity.Booking{}, r.updateErr
	}
	conflict := r.conflictUpdates > 0
	if conflict {
		r.conflictUpdates--
	}
	r.Updates++
	r.mu.Unlock()

	if conflict {
		// another writer touches the booking first and bumps its version
		current, err := r.BookingRepository.Get(ctx, booking.ID)
		if err != nil {
			return entity.Booking{}, err
		}
		if _, err := r.BookingRepository.Update(ctx, current); err != nil {
			return entity.Booking{}, err
		}
	}

	return r.BookingRepository.Update(ctx, booking)
}

type PaymentRepository interface {
	Create(ctx context.Context, payment entity.Payment) (entity.Payment, error)
	Get(ctx context.Context, paymentID string) (entity.Payment, error)
	GetByBookingID(ctx context.Context, bookingID string) (entity.Payment, error)
	Update(ctx context.Context, payment entity.Payment) (entity.Payment, error)
}

// FaultyPaymentRepository makes the next n payment updates lose a race.
type FaultyPaymentRepository struct {
	PaymentRepository

	mu              sync.Mutex
	conflictUpdates int
}

func NewFaultyPaymentRepository(repo PaymentRepository) *FaultyPaymentRepository {
	return &FaultyPaymentRepository{PaymentRepository: repo}
}

func (r *FaultyPaymentRepository) ConflictNextUpdates(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conflictUpdates = n
}

func (r *FaultyPaymentRepository) Update(ctx context.Context, payment entity.Payment) (entity.Payment, error) {
	r.mu.Lock()
	conflict := r.conflictUpdates > 0
	if conflict {
		r.conflictUpdates--
	}
	r.mu.Unlock()

	if conflict {
		current, err := r.PaymentRepository.Get(ctx, payment.ID)
		if err != nil {
			return entity.Payment{}, err
		}
		if _, err := r.PaymentRepository.Update(ctx, current); err != nil {
			return entity.Payment{}, err
		}
	}

	return r.PaymentRepository.Update(ctx, payment)
}
