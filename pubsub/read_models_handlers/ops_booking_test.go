package read_models_handlers_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travels/entity"
	"travels/pubsub/read_models_handlers"
)

type memoryRepository struct {
	mu       sync.Mutex
	bookings map[string]entity.OpsBooking
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{bookings: make(map[string]entity.OpsBooking)}
}

func (m *memoryRepository) Store(_ context.Context, booking entity.OpsBooking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bookings[booking.BookingID]; !ok {
		m.bookings[booking.BookingID] = booking
	}
	return nil
}

func (m *memoryRepository) UpdateByBookingID(
	_ context.Context,
	bookingID string,
	update func(booking entity.OpsBooking) (entity.OpsBooking, error),
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	booking, ok := m.bookings[bookingID]
	if !ok {
		return fmt.Errorf("read model for booking %s: %w", bookingID, entity.ErrNotFound)
	}

	updated, err := update(booking)
	if err != nil {
		return err
	}
	m.bookings[bookingID] = updated
	return nil
}

func (m *memoryRepository) get(t *testing.T, bookingID string) entity.OpsBooking {
	t.Helper()

	m.mu.Lock()
	defer m.mu.Unlock()

	booking, ok := m.bookings[bookingID]
	require.True(t, ok, "read model for %s not found", bookingID)
	return booking
}

func bookingCreated(bookingID string) *entity.BookingCreated_v1 {
	return &entity.BookingCreated_v1{
		Header:        entity.NewEventHeaderWithIdempotencyKey(bookingID),
		BookingID:     bookingID,
		UserID:        "user-1",
		PackageTitle:  "Ladakh Road Trip",
		Destination:   "Leh",
		DepartureDate: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		Travelers:     2,
		Price: entity.PriceBreakdown{
			AdultTotal: 200000,
			ServiceFee: 10000,
			Total:      210000,
			Currency:   "INR",
		},
	}
}

func statusChanged(bookingID string, from, to entity.BookingStatus, at time.Time) *entity.BookingStatusChanged_v1 {
	return &entity.BookingStatusChanged_v1{
		Header:    entity.NewEventHeaderWithIdempotencyKey(bookingID + ":" + string(to)),
		BookingID: bookingID,
		UserID:    "user-1",
		From:      from,
		To:        to,
		ChangedAt: at,
	}
}

func TestOpsBookingReadModel(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository()
	readModel := read_models_handlers.NewOpsBookingReadModel(repo)

	require.NoError(t, readModel.OnBookingCreated(ctx, bookingCreated("booking-1")))

	rm := repo.get(t, "booking-1")
	assert.Equal(t, entity.BookingStatusPendingPayment, rm.Status)
	assert.Equal(t, entity.LegacyStatusPending, rm.DisplayStatus)
	assert.Equal(t, "2100.00", rm.TotalAmount)
	assert.Equal(t, "INR", rm.Currency)
	assert.Len(t, rm.Timeline, 1)

	require.NoError(t, readModel.OnPaymentSettled(ctx, &entity.PaymentSettled_v1{
		Header:    entity.NewEventHeader(),
		PaymentID: "payment-1",
		BookingID: "booking-1",
		Amount:    210000,
		Currency:  "INR",
	}))

	now := time.Now().UTC()
	require.NoError(t, readModel.OnBookingStatusChanged(ctx, statusChanged(
		"booking-1", entity.BookingStatusPendingPayment, entity.BookingStatusProcessing, now,
	)))

	rm = repo.get(t, "booking-1")
	assert.Equal(t, entity.BookingStatusProcessing, rm.Status)
	assert.Equal(t, entity.LegacyStatusConfirmed, rm.DisplayStatus)
	assert.Equal(t, entity.PaymentStatusCompleted, rm.PaymentStatus)
	assert.Equal(t, "payment-1", rm.PaymentID)
	assert.Len(t, rm.Timeline, 2)

	require.NoError(t, readModel.OnPaymentRefunded(ctx, &entity.PaymentRefunded_v1{
		Header:       entity.NewEventHeaderWithIdempotencyKey("rfnd_1"),
		PaymentID:    "payment-1",
		BookingID:    "booking-1",
		RefundID:     "rfnd_1",
		RefundAmount: 210000,
		Currency:     "INR",
	}))

	rm = repo.get(t, "booking-1")
	assert.Equal(t, entity.PaymentStatusRefunded, rm.PaymentStatus)
	assert.Equal(t, "rfnd_1", rm.RefundID)
	assert.Equal(t, "2100.00", rm.RefundAmount)

	// a settlement redelivered after the refund does not undo it
	require.NoError(t, readModel.OnPaymentSettled(ctx, &entity.PaymentSettled_v1{
		Header:    entity.NewEventHeader(),
		PaymentID: "payment-1",
		BookingID: "booking-1",
	}))
	assert.Equal(t, entity.PaymentStatusRefunded, repo.get(t, "booking-1").PaymentStatus)
}

func TestOpsBookingReadModel_update_before_create(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository()
	readModel := read_models_handlers.NewOpsBookingReadModel(repo)

	err := readModel.OnBookingStatusChanged(ctx, statusChanged(
		"booking-1", entity.BookingStatusPendingPayment, entity.BookingStatusProcessing, time.Now(),
	))
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestOpsBookingReadModel_out_of_order_status_changes(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository()
	readModel := read_models_handlers.NewOpsBookingReadModel(repo)

	require.NoError(t, readModel.OnBookingCreated(ctx, bookingCreated("booking-1")))

	base := time.Now().UTC()
	processing := statusChanged("booking-1", entity.BookingStatusPendingPayment, entity.BookingStatusProcessing, base.Add(time.Second))
	verified := statusChanged("booking-1", entity.BookingStatusProcessing, entity.BookingStatusDocumentsVerified, base.Add(2*time.Second))

	require.NoError(t, readModel.OnBookingStatusChanged(ctx, verified))
	require.NoError(t, readModel.OnBookingStatusChanged(ctx, processing))
	// redelivery
	require.NoError(t, readModel.OnBookingStatusChanged(ctx, processing))

	rm := repo.get(t, "booking-1")
	assert.Equal(t, entity.BookingStatusDocumentsVerified, rm.Status)
	require.Len(t, rm.Timeline, 3)
	assert.Equal(t, entity.BookingStatusPendingPayment, rm.Timeline[0].Status)
	assert.Equal(t, entity.BookingStatusProcessing, rm.Timeline[1].Status)
	assert.Equal(t, entity.BookingStatusDocumentsVerified, rm.Timeline[2].Status)
}

func TestOpsBookingReadModel_failed_then_paid(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository()
	readModel := read_models_handlers.NewOpsBookingReadModel(repo)

	require.NoError(t, readModel.OnBookingCreated(ctx, bookingCreated("booking-1")))

	require.NoError(t, readModel.OnPaymentSettled(ctx, &entity.PaymentSettled_v1{
		Header:    entity.NewEventHeader(),
		PaymentID: "payment-2",
		BookingID: "booking-1",
	}))
	// late failure of the first attempt
	require.NoError(t, readModel.OnPaymentFailed(ctx, &entity.PaymentFailed_v1{
		Header:    entity.NewEventHeader(),
		PaymentID: "payment-1",
		BookingID: "booking-1",
	}))

	rm := repo.get(t, "booking-1")
	assert.Equal(t, entity.PaymentStatusCompleted, rm.PaymentStatus)
	assert.Equal(t, "payment-2", rm.PaymentID)
}
