package bookings_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travels/db"
	"travels/db/bookings"
	"travels/entity"
)

type repository interface {
	Create(ctx context.Context, booking entity.Booking) (entity.Booking, error)
	Get(ctx context.Context, bookingID string) (entity.Booking, error)
	FindByUserID(ctx context.Context, userID string) ([]entity.Booking, error)
	Update(ctx context.Context, booking entity.Booking) (entity.Booking, error)
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
	testRepository(t, bookings.NewPostgresRepository(db.GetDb(t)))
}

func TestMemoryRepository(t *testing.T) {
	testRepository(t, bookings.NewMemoryRepository())
}

func TestPostgresRepository_nil_db(t *testing.T) {
	assert.Panics(t, func() {
		bookings.NewPostgresRepository((*sqlx.DB)(nil))
	})
}

func testRepository(t *testing.T, repo repository) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		booking := newBooking()

		created, err := repo.Create(ctx, booking)
		require.NoError(t, err)
		assert.Equal(t, int64(1), created.Version)

		fromRepo, err := repo.Get(ctx, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, booking.ID, fromRepo.ID)
		assert.Equal(t, booking.Price, fromRepo.Price)
		assert.Equal(t, booking.Travelers, fromRepo.Travelers)
		assert.Equal(t, int64(1), fromRepo.Version)
		assert.True(t, booking.DepartureDate.Equal(fromRepo.DepartureDate))
	})

	t.Run("create twice", func(t *testing.T) {
		booking := newBooking()

		_, err := repo.Create(ctx, booking)
		require.NoError(t, err)

		_, err = repo.Create(ctx, booking)
		assert.ErrorIs(t, err, entity.ErrAlreadyExists)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := repo.Get(ctx, uuid.NewString())
		assert.ErrorIs(t, err, entity.ErrNotFound)
	})

	t.Run("update bumps version", func(t *testing.T) {
		booking, err := repo.Create(ctx, newBooking())
		require.NoError(t, err)

		booking.PaymentStatus = entity.PaymentStatusCompleted
		updated, err := repo.Update(ctx, booking)
		require.NoError(t, err)
		assert.Equal(t, int64(2), updated.Version)

		fromRepo, err := repo.Get(ctx, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.PaymentStatusCompleted, fromRepo.PaymentStatus)
		assert.Equal(t, int64(2), fromRepo.Version)
	})

	t.Run("stale update is rejected", func(t *testing.T) {
		booking, err := repo.Create(ctx, newBooking())
		require.NoError(t, err)

		first := booking
		first.PaymentStatus = entity.PaymentStatusCompleted
		_, err = repo.Update(ctx, first)
		require.NoError(t, err)

		second := booking
		second.PaymentStatus = entity.PaymentStatusFailed
		_, err = repo.Update(ctx, second)
		assert.ErrorIs(t, err, entity.ErrVersionConflict)

		fromRepo, err := repo.Get(ctx, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.PaymentStatusCompleted, fromRepo.PaymentStatus)
	})

	t.Run("update missing", func(t *testing.T) {
		booking := newBooking()
		booking.Version = 1

		_, err := repo.Update(ctx, booking)
		assert.ErrorIs(t, err, entity.ErrNotFound)
	})

	t.Run("find by user", func(t *testing.T) {
		userID := uuid.NewString()
		for i := 0; i < 2; i++ {
			booking := newBooking()
			booking.UserID = userID
			_, err := repo.Create(ctx, booking)
			require.NoError(t, err)
		}

		found, err := repo.FindByUserID(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, found, 2)
	})
}

func newBooking() entity.Booking {
	now := time.Now().UTC().Truncate(time.Millisecond)

	return entity.Booking{
		ID:            uuid.NewString(),
		UserID:        uuid.NewString(),
		PackageID:     "pkg-bali-7d",
		PackageTitle:  "Bali 7 days",
		Destination:   "Bali",
		DepartureDate: now.Add(30 * 24 * time.Hour),
		ReturnDate:    now.Add(37 * 24 * time.Hour),
		Travelers: []entity.Traveler{
			{ID: uuid.NewString(), Name: "Asha", Age: 34, Type: entity.TravelerTypeAdult},
		},
		Price: entity.PriceBreakdown{
			UnitPrice:  100000,
			AdultTotal: 100000,
			ServiceFee: 5000,
			Total:      105000,
			Currency:   "INR",
		},
		Status:        entity.BookingStatusPendingPayment,
		PaymentStatus: entity.PaymentStatusPending,
		StatusHistory: []entity.StatusHistoryEntry{{Status: entity.BookingStatusPendingPayment, At: now}},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
