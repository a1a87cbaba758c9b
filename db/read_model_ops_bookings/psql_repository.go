package read_model_ops_bookings

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

// FindAll returns every booking, optionally only those with the given display status.
func (r PostgresRepository) FindAll(ctx context.Context, displayStatus entity.LegacyStatus) ([]entity.OpsBooking, error) {
	query := `SELECT payload FROM read_model_ops_bookings`
	var args []any

	if displayStatus != "" {
		query += ` WHERE payload->>'display_status' = $1`
		args = append(args, displayStatus)
	}
	query += ` ORDER BY payload->>'booked_at' DESC`

	var bookingsData [][]byte
	err := r.db.SelectContext(ctx, &bookingsData, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not get booking read models: %w", err)
	}

	bookings := make([]entity.OpsBooking, 0, len(bookingsData))
	for _, bookingData := range bookingsData {
		var booking entity.OpsBooking
		if err = json.Unmarshal(bookingData, &booking); err != nil {
			return nil, fmt.Errorf("could not unmarshal booking read model: %w", err)
		}
		bookings = append(bookings, booking)
	}

	return bookings, nil
}

func (r PostgresRepository) Get(ctx context.Context, bookingID string) (entity.OpsBooking, error) {
	return r.getByID(ctx, r.db, bookingID)
}

// Store creates the read model. Idempotent, an existing read model is left untouched.
func (r PostgresRepository) Store(ctx context.Context, booking entity.OpsBooking) error {
	payload, err := json.Marshal(booking)
	if err != nil {
		return err
	}

	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO
		    read_model_ops_bookings (booking_id, payload)
		VALUES (:booking_id, :payload)
		ON CONFLICT (booking_id) DO NOTHING
		`, map[string]interface{}{
		"booking_id": booking.BookingID,
		"payload":    payload,
	})
	if err != nil {
		return fmt.Errorf("could not add booking read model: %w", err)
	}
	return nil
}

// UpdateByBookingID fails with entity.ErrNotFound when the read model was not created yet.
func (r PostgresRepository) UpdateByBookingID(
	ctx context.Context,
	bookingID string,
	update func(booking entity.OpsBooking) (entity.OpsBooking, error),
) error {
	return db.UpdateInTx(ctx, r.db, sql.LevelRepeatableRead, func(ctx context.Context, tx *sqlx.Tx) error {
		booking, err := r.getByID(ctx, tx, bookingID)
		if err != nil {
			return err
		}

		booking, err = update(booking)
		if err != nil {
			return err
		}

		payload, err := json.Marshal(booking)
		if err != nil {
			return err
		}

		_, err = tx.NamedExecContext(ctx, `
			UPDATE read_model_ops_bookings
			SET payload = :payload
			WHERE booking_id = :booking_id
			`, map[string]interface{}{
			"booking_id": bookingID,
			"payload":    payload,
		})
		if err != nil {
			return fmt.Errorf("could not update booking read model: %w", err)
		}

		return nil
	})
}

func (r PostgresRepository) getByID(ctx context.Context, q sqlx.QueryerContext, bookingID string) (entity.OpsBooking, error) {
	var payload []byte
	err := sqlx.GetContext(ctx, q, &payload, `
		SELECT payload
		FROM read_model_ops_bookings
		WHERE booking_id = $1
		`, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.OpsBooking{}, fmt.Errorf("read model for booking %s: %w", bookingID, entity.ErrNotFound)
	}
	if err != nil {
		return entity.OpsBooking{}, fmt.Errorf("could not get booking read model: %w", err)
	}

	var booking entity.OpsBooking
	if err = json.Unmarshal(payload, &booking); err != nil {
		return entity.OpsBooking{}, fmt.Errorf("could not unmarshal booking read model: %w", err)
	}

	return booking, nil
}
