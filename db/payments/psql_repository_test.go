package payments_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travels/db"
	"travels/db/payments"
	"travels/entity"
)

type repository interface {
	Create(ctx context.Context, payment entity.Payment) (entity.Payment, error)
	Get(ctx context.Context, paymentID string) (entity.Payment, error)
	GetByBookingID(ctx context.Context, bookingID string) (entity.Payment, error)
	Update(ctx context.Context, payment entity.Payment) (entity.Payment, error)
}

func TestMain(m *testing.M) {
	if os.Getenv("POSTGRES_URL") != "" {
		os.Exit(m.Run())
	}

	container, url := db.StartPostgresContainer()
	os.Setenv("POSTGRES_URL", url)

	code := m.Run()
	_ = container.Terminate(context.Background())
	os.Exit(code)
}

func TestPostgresRepository(t *testing.T) {
	testRepository(t, payments.NewPostgresRepository(db.GetDb(t)))
}

func TestMemoryRepository(t *testing.T) {
	testRepository(t, payments.NewMemoryRepository())
}

func testRepository(t *testing.T, repo repository) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		payment := newPayment(uuid.NewString())

		created, err := repo.Create(ctx, payment)
		require.NoError(t, err)
		assert.Equal(t, int64(1), created.Version)

		byID, err := repo.Get(ctx, payment.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.Amount, byID.Amount)
		assert.Equal(t, entity.PaymentStatusPending, byID.Status)

		byBooking, err := repo.GetByBookingID(ctx, payment.BookingID)
		require.NoError(t, err)
		assert.Equal(t, payment.ID, byBooking.ID)
	})

	t.Run("second payment for booking", func(t *testing.T) {
		bookingID := uuid.NewString()

		_, err := repo.Create(ctx, newPayment(bookingID))
		require.NoError(t, err)

		_, err = repo.Create(ctx, newPayment(bookingID))
		assert.ErrorIs(t, err, entity.ErrDuplicatePayment)
	})

	t.Run("concurrent creates for booking", func(t *testing.T) {
		bookingID := uuid.NewString()

		const workers = 8
		errs := make([]error, workers)

		wg := sync.WaitGroup{}
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = repo.Create(ctx, newPayment(bookingID))
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, entity.ErrDuplicatePayment)
		}
		assert.Equal(t, 1, succeeded)
	})

	t.Run("new payment after failed one", func(t *testing.T) {
		bookingID := uuid.NewString()

		failed, err := repo.Create(ctx, newPayment(bookingID))
		require.NoError(t, err)

		failed.Status = entity.PaymentStatusFailed
		_, err = repo.Update(ctx, failed)
		require.NoError(t, err)

		retried, err := repo.Create(ctx, newPayment(bookingID))
		require.NoError(t, err)

		active, err := repo.GetByBookingID(ctx, bookingID)
		require.NoError(t, err)
		assert.Equal(t, retried.ID, active.ID)
	})

	t.Run("stale update is rejected", func(t *testing.T) {
		payment, err := repo.Create(ctx, newPayment(uuid.NewString()))
		require.NoError(t, err)

		completed := payment
		completed.Status = entity.PaymentStatusCompleted
		updated, err := repo.Update(ctx, completed)
		require.NoError(t, err)
		assert.Equal(t, int64(2), updated.Version)

		failed := payment
		failed.Status = entity.PaymentStatusFailed
		_, err = repo.Update(ctx, failed)
		assert.ErrorIs(t, err, entity.ErrVersionConflict)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := repo.Get(ctx, uuid.NewString())
		assert.ErrorIs(t, err, entity.ErrNotFound)

		_, err = repo.GetByBookingID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, entity.ErrNotFound)

		payment := newPayment(uuid.NewString())
		payment.Version = 1
		_, err = repo.Update(ctx, payment)
		assert.True(t, errors.Is(err, entity.ErrNotFound))
	})
}

func newPayment(bookingID string) entity.Payment {
	now := time.Now().UTC()

	return entity.Payment{
		ID:              uuid.NewString(),
		BookingID:       bookingID,
		UserID:          uuid.NewString(),
		Amount:          105000,
		Currency:        "INR",
		GatewayProvider: "razorpay",
		Status:          entity.PaymentStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
