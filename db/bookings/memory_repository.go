package bookings

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"travels/entity"
)

// MemoryRepository keeps bookings in process memory with the same
// version semantics as PostgresRepository.
type MemoryRepository struct {
	mu       sync.RWMutex
	bookings map[string]entity.Booking
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{bookings: make(map[string]entity.Booking)}
}

func (r *MemoryRepository) Create(_ context.Context, booking entity.Booking) (entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bookings[booking.ID]; ok {
		return entity.Booking{}, fmt.Errorf("booking %s: %w", booking.ID, entity.ErrAlreadyExists)
	}

	booking.Version = 1
	r.bookings[booking.ID] = booking.Clone()

	return booking, nil
}

func (r *MemoryRepository) Get(_ context.Context, bookingID string) (entity.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	booking, ok := r.bookings[bookingID]
	if !ok {
		return entity.Booking{}, fmt.Errorf("booking %s: %w", bookingID, entity.ErrNotFound)
	}

	return booking.Clone(), nil
}

func (r *MemoryRepository) FindByUserID(_ context.Context, userID string) ([]entity.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var bookings []entity.Booking
	for _, b := range r.bookings {
		if b.UserID == userID {
			bookings = append(bookings, b.Clone())
		}
	}
	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].CreatedAt.After(bookings[j].CreatedAt)
	})

	return bookings, nil
}

func (r *MemoryRepository) Update(_ context.Context, booking entity.Booking) (entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.bookings[booking.ID]
	if !ok {
		return entity.Booking{}, fmt.Errorf("booking %s: %w", booking.ID, entity.ErrNotFound)
	}
	if stored.Version != booking.Version {
		return entity.Booking{}, fmt.Errorf("booking %s at version %d: %w", booking.ID, booking.Version, entity.ErrVersionConflict)
	}

	booking.Version++
	r.bookings[booking.ID] = booking.Clone()

	return booking, nil
}
