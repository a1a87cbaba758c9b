package bookings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"travels/db"
	"travels/entity"
)

type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) PostgresRepository {
	if db == nil {
		panic("db is nil")
	}

	return PostgresRepository{db: db}
}

type bookingRow struct {
	BookingID string `db:"booking_id"`
	Version   int64  `db:"version"`
	Payload   []byte `db:"payload"`
}

// Create stores a new booking at version 1.
func (r PostgresRepository) Create(ctx context.Context, booking entity.Booking) (entity.Booking, error) {
	booking.Version = 1

	payload, err := json.Marshal(booking)
	if err != nil {
		return entity.Booking{}, fmt.Errorf("could not marshal booking: %w", err)
	}

	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO
			bookings (booking_id, user_id, status, payment_status, version, payload, created_at, updated_at)
		VALUES
			(:booking_id, :user_id, :status, :payment_status, :version, :payload, :created_at, :updated_at)
		`, map[string]any{
		"booking_id":     booking.ID,
		"user_id":        booking.UserID,
		"status":         booking.Status,
		"payment_status": booking.PaymentStatus,
		"version":        booking.Version,
		"payload":        payload,
		"created_at":     booking.CreatedAt,
		"updated_at":     booking.UpdatedAt,
	})
	if db.IsErrorUniqueViolation(err) {
		return entity.Booking{}, fmt.Errorf("booking %s: %w", booking.ID, entity.ErrAlreadyExists)
	}
	if err != nil {
		return entity.Booking{}, fmt.Errorf("could not insert booking %s: %w", booking.ID, err)
	}

	return booking, nil
}

func (r PostgresRepository) Get(ctx context.Context, bookingID string) (entity.Booking, error) {
	var row bookingRow
	err := r.db.GetContext(ctx, &row, `
		SELECT booking_id, version, payload
		FROM bookings
		WHERE booking_id = $1
		`, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Booking{}, fmt.Errorf("booking %s: %w", bookingID, entity.ErrNotFound)
	}
	if err != nil {
		return entity.Booking{}, fmt.Errorf("could not get booking %s: %w", bookingID, err)
	}

	return row.toEntity()
}

func (r PostgresRepository) FindByUserID(ctx context.Context, userID string) ([]entity.Booking, error) {
	var rows []bookingRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT booking_id, version, payload
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC
		`, userID)
	if err != nil {
		return nil, fmt.Errorf("could not get bookings of user %s: %w", userID, err)
	}

	bookings := make([]entity.Booking, 0, len(rows))
	for _, row := range rows {
		booking, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}

	return bookings, nil
}

// Update writes booking if the stored version still equals booking.Version.
// The returned booking carries the new version.
func (r PostgresRepository) Update(ctx context.Context, booking entity.Booking) (entity.Booking, error) {
	expectedVersion := booking.Version
	booking.Version++

	payload, err := json.Marshal(booking)
	if err != nil {
		return entity.Booking{}, fmt.Errorf("could not marshal booking: %w", err)
	}

	res, err := r.db.NamedExecContext(ctx, `
		UPDATE bookings
		SET
			status = :status,
			payment_status = :payment_status,
			version = :new_version,
			payload = :payload,
			updated_at = :updated_at
		WHERE booking_id = :booking_id AND version = :expected_version
		`, map[string]any{
		"booking_id":       booking.ID,
		"status":           booking.Status,
		"payment_status":   booking.PaymentStatus,
		"new_version":      booking.Version,
		"expected_version": expectedVersion,
		"payload":          payload,
		"updated_at":       booking.UpdatedAt,
	})
	if err != nil {
		return entity.Booking{}, fmt.Errorf("could not update booking %s: %w", booking.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return entity.Booking{}, fmt.Errorf("could not get affected rows: %w", err)
	}
	if affected == 0 {
		return entity.Booking{}, r.missedUpdateError(ctx, booking.ID, expectedVersion)
	}

	return booking, nil
}

func (r PostgresRepository) missedUpdateError(ctx context.Context, bookingID string, expectedVersion int64) error {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM bookings WHERE booking_id = $1)`, bookingID)
	if err != nil {
		return fmt.Errorf("could not check if booking %s exists: %w", bookingID, err)
	}
	if !exists {
		return fmt.Errorf("booking %s: %w", bookingID, entity.ErrNotFound)
	}

	return fmt.Errorf("booking %s at version %d: %w", bookingID, expectedVersion, entity.ErrVersionConflict)
}

func (r bookingRow) toEntity() (entity.Booking, error) {
	var booking entity.Booking
	if err := json.Unmarshal(r.Payload, &booking); err != nil {
		return entity.Booking{}, fmt.Errorf("could not unmarshal booking %s: %w", r.BookingID, err)
	}
	booking.Version = r.Version

	return booking, nil
}
