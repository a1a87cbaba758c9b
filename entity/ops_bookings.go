package entity

import (
	"time"
)

// OpsBooking is the back-office view of a booking, built from events.
type OpsBooking struct {
	BookingID    string    `json:"booking_id"`
	UserID       string    `json:"user_id"`
	PackageTitle string    `json:"package_title"`
	Destination  string    `json:"destination"`
	Departure    time.Time `json:"departure"`
	Travelers    int       `json:"travelers"`
	BookedAt     time.Time `json:"booked_at"`

	Status        BookingStatus `json:"status"`
	DisplayStatus LegacyStatus  `json:"display_status"`
	PaymentStatus PaymentStatus `json:"payment_status"`

	TotalAmount string `json:"total_amount"`
	Currency    string `json:"currency"`

	PaymentID    string    `json:"payment_id,omitempty"`
	PaidAt       time.Time `json:"paid_at,omitempty"`
	RefundID     string    `json:"refund_id,omitempty"`
	RefundAmount string    `json:"refund_amount,omitempty"`
	RefundedAt   time.Time `json:"refunded_at,omitempty"`

	Timeline []OpsTimelineEntry `json:"timeline"`

	LastUpdate time.Time `json:"last_update"`
}

type OpsTimelineEntry struct {
	EventID string        `json:"event_id"`
	Status  BookingStatus `json:"status"`
	At      time.Time     `json:"at"`
	Note    string        `json:"note,omitempty"`
}
