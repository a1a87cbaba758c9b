package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// InitializeDatabaseSchema is idempotent and safe to run on every start.
func InitializeDatabaseSchema(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bookings (
			booking_id VARCHAR(255) NOT NULL PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			status VARCHAR(32) NOT NULL,
			payment_status VARCHAR(32) NOT NULL,
			version BIGINT NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS bookings_user_id_idx ON bookings (user_id);

		CREATE TABLE IF NOT EXISTS payments (
			payment_id VARCHAR(255) NOT NULL PRIMARY KEY,
			booking_id VARCHAR(255) NOT NULL,
			status VARCHAR(32) NOT NULL,
			version BIGINT NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);

		-- a booking has at most one payment that has not failed
		CREATE UNIQUE INDEX IF NOT EXISTS payments_active_booking_id_idx
			ON payments (booking_id) WHERE status <> 'failed';

		CREATE TABLE IF NOT EXISTS read_model_ops_bookings (
			booking_id VARCHAR(255) NOT NULL PRIMARY KEY,
			payload JSONB NOT NULL
		);

		CREATE TABLE IF NOT EXISTS events (
			event_id VARCHAR(255) NOT NULL PRIMARY KEY,
			published_at TIMESTAMPTZ NOT NULL,
			event_name VARCHAR(255) NOT NULL,
			event_payload JSONB NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("could not initialize database schema: %w", err)
	}

	return nil
}
