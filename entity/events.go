package entity

import (
	"time"

	"github.com/google/uuid"
)

type EventHeader struct {
	ID             string    `json:"id"`
	PublishedAt    time.Time `json:"published_at"`
	IdempotencyKey string    `json:"idempotency_key"`
}

func NewEventHeader() EventHeader {
	return EventHeader{
		ID:          uuid.NewString(),
		PublishedAt: time.Now().UTC(),
	}
}

func NewEventHeaderWithIdempotencyKey(idempotencyKey string) EventHeader {
	return EventHeader{
		ID:             uuid.NewString(),
		PublishedAt:    time.Now().UTC(),
		IdempotencyKey: idempotencyKey,
	}
}

// Event is implemented by everything published on the event bus.
type Event interface {
	EventHeader() EventHeader
}

type BookingCreated_v1 struct {
	Header EventHeader `json:"header"`

	BookingID     string    `json:"booking_id"`
	UserID        string    `json:"user_id"`
	PackageID     string    `json:"package_id"`
	PackageTitle  string    `json:"package_title"`
	Destination   string    `json:"destination"`
	DepartureDate time.Time `json:"departure_date"`
	Travelers     int       `json:"travelers"`

	Price PriceBreakdown `json:"price"`
}

func (e BookingCreated_v1) EventHeader() EventHeader { return e.Header }

type BookingStatusChanged_v1 struct {
	Header EventHeader `json:"header"`

	BookingID string        `json:"booking_id"`
	UserID    string        `json:"user_id"`
	From      BookingStatus `json:"from"`
	To        BookingStatus `json:"to"`
	Note      string        `json:"note,omitempty"`
	ChangedAt time.Time     `json:"changed_at"`
}

func (e BookingStatusChanged_v1) EventHeader() EventHeader { return e.Header }

type PaymentSettled_v1 struct {
	Header EventHeader `json:"header"`

	PaymentID        string     `json:"payment_id"`
	BookingID        string     `json:"booking_id"`
	UserID           string     `json:"user_id"`
	Amount           MinorUnits `json:"amount"`
	Currency         string     `json:"currency"`
	GatewayPaymentID string     `json:"gateway_payment_id"`
}

func (e PaymentSettled_v1) EventHeader() EventHeader { return e.Header }

type PaymentFailed_v1 struct {
	Header EventHeader `json:"header"`

	PaymentID        string `json:"payment_id"`
	BookingID        string `json:"booking_id"`
	UserID           string `json:"user_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
}

func (e PaymentFailed_v1) EventHeader() EventHeader { return e.Header }

type PaymentRefunded_v1 struct {
	Header EventHeader `json:"header"`

	PaymentID        string     `json:"payment_id"`
	BookingID        string     `json:"booking_id"`
	UserID           string     `json:"user_id"`
	GatewayPaymentID string     `json:"gateway_payment_id"`
	RefundID         string     `json:"refund_id"`
	RefundAmount     MinorUnits `json:"refund_amount"`
	Currency         string     `json:"currency"`
	Reason           string     `json:"reason,omitempty"`
}

func (e PaymentRefunded_v1) EventHeader() EventHeader { return e.Header }

func NewBookingStatusChanged(booking Booking, from BookingStatus) BookingStatusChanged_v1 {
	last, _ := booking.LastHistoryEntry()
	return BookingStatusChanged_v1{
		Header:    NewEventHeaderWithIdempotencyKey(booking.ID + ":" + string(booking.Status)),
		BookingID: booking.ID,
		UserID:    booking.UserID,
		From:      from,
		To:        booking.Status,
		Note:      last.Note,
		ChangedAt: last.At,
	}
}
