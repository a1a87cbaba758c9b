package payments

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

type paymentRow struct {
	PaymentID string `db:"payment_id"`
	Version   int64  `db:"version"`
	Payload   []byte `db:"payload"`
}

// Create stores a new payment at version 1. It fails with ErrDuplicatePayment
// when the booking already has a payment that has not failed.
func (r PostgresRepository) Create(ctx context.Context, payment entity.Payment) (entity.Payment, error) {
	payment.Version = 1

	payload, err := json.Marshal(payment)
	if err != nil {
		return entity.Payment{}, fmt.Errorf("could not marshal payment: %w", err)
	}

	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO
			payments (payment_id, booking_id, status, version, payload, created_at, updated_at)
		VALUES
			(:payment_id, :booking_id, :status, :version, :payload, :created_at, :updated_at)
		`, map[string]any{
		"payment_id": payment.ID,
		"booking_id": payment.BookingID,
		"status":     payment.Status,
		"version":    payment.Version,
		"payload":    payload,
		"created_at": payment.CreatedAt,
		"updated_at": payment.UpdatedAt,
	})
	if db.IsErrorUniqueViolation(err) {
		return entity.Payment{}, fmt.Errorf("booking %s: %w", payment.BookingID, entity.ErrDuplicatePayment)
	}
	if err != nil {
		return entity.Payment{}, fmt.Errorf("could not insert payment %s: %w", payment.ID, err)
	}

	return payment, nil
}

func (r PostgresRepository) Get(ctx context.Context, paymentID string) (entity.Payment, error) {
	var row paymentRow
	err := r.db.GetContext(ctx, &row, `
		SELECT payment_id, version, payload
		FROM payments
		WHERE payment_id = $1
		`, paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Payment{}, fmt.Errorf("payment %s: %w", paymentID, entity.ErrNotFound)
	}
	if err != nil {
		return entity.Payment{}, fmt.Errorf("could not get payment %s: %w", paymentID, err)
	}

	return row.toEntity()
}

// GetByBookingID returns the active payment of a booking, or the latest failed one
// when every attempt failed.
func (r PostgresRepository) GetByBookingID(ctx context.Context, bookingID string) (entity.Payment, error) {
	var row paymentRow
	err := r.db.GetContext(ctx, &row, `
		SELECT payment_id, version, payload
		FROM payments
		WHERE booking_id = $1
		ORDER BY (status = 'failed') ASC, created_at DESC
		LIMIT 1
		`, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Payment{}, fmt.Errorf("payment for booking %s: %w", bookingID, entity.ErrNotFound)
	}
	if err != nil {
		return entity.Payment{}, fmt.Errorf("could not get payment for booking %s: %w", bookingID, err)
	}

	return row.toEntity()
}

func (r PostgresRepository) Update(ctx context.Context, payment entity.Payment) (entity.Payment, error) {
	expectedVersion := payment.Version
	payment.Version++

	payload, err := json.Marshal(payment)
	if err != nil {
		return entity.Payment{}, fmt.Errorf("could not marshal payment: %w", err)
	}

	res, err := r.db.NamedExecContext(ctx, `
		UPDATE payments
		SET
			status = :status,
			version = :new_version,
			payload = :payload,
			updated_at = :updated_at
		WHERE payment_id = :payment_id AND version = :expected_version
		`, map[string]any{
		"payment_id":       payment.ID,
		"status":           payment.Status,
		"new_version":      payment.Version,
		"expected_version": expectedVersion,
		"payload":          payload,
		"updated_at":       payment.UpdatedAt,
	})
	if err != nil {
		return entity.Payment{}, fmt.Errorf("could not update payment %s: %w", payment.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return entity.Payment{}, fmt.Errorf("could not get affected rows: %w", err)
	}
	if affected == 0 {
		var exists bool
		err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM payments WHERE payment_id = $1)`, payment.ID)
		if err != nil {
			return entity.Payment{}, fmt.Errorf("could not check if payment %s exists: %w", payment.ID, err)
		}
		if !exists {
			return entity.Payment{}, fmt.Errorf("payment %s: %w", payment.ID, entity.ErrNotFound)
		}
		return entity.Payment{}, fmt.Errorf("payment %s at version %d: %w", payment.ID, expectedVersion, entity.ErrVersionConflict)
	}

	return payment, nil
}

func (r paymentRow) toEntity() (entity.Payment, error) {
	var payment entity.Payment
	if err := json.Unmarshal(r.Payload, &payment); err != nil {
		return entity.Payment{}, fmt.Errorf("could not unmarshal payment %s: %w", r.PaymentID, err)
	}
	payment.Version = r.Version

	return payment, nil
}
