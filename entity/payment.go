package entity

import (
	"fmt"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusFailed || s == PaymentStatusRefunded
}

// IsSettled reports whether the gateway has given a final answer for the charge.
func (s PaymentStatus) IsSettled() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed || s == PaymentStatusRefunded
}

type GatewayOutcome string

const (
	GatewayOutcomeSucceeded GatewayOutcome = "succeeded"
	GatewayOutcomeFailed    GatewayOutcome = "failed"
	// GatewayOutcomeUnknown is reported when the gateway call timed out.
	GatewayOutcomeUnknown GatewayOutcome = "unknown"
)

func ParseGatewayOutcome(s string) (GatewayOutcome, error) {
	switch o := GatewayOutcome(s); o {
	case GatewayOutcomeSucceeded, GatewayOutcomeFailed, GatewayOutcomeUnknown:
		return o, nil
	}
	return "", NewValidationError("outcome", fmt.Sprintf("unknown gateway outcome %q", s))
}

type Payment struct {
	ID        string     `json:"id"`
	BookingID string     `json:"booking_id"`
	UserID    string     `json:"user_id"`
	Amount    MinorUnits `json:"amount"`
	Currency  string     `json:"currency"`

	GatewayProvider  string `json:"gateway_provider,omitempty"`
	GatewayOrderID   string `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string `json:"gateway_payment_id,omitempty"`
	GatewaySignature string `json:"gateway_signature,omitempty"`

	Status PaymentStatus `json:"status"`
	Method string        `json:"method,omitempty"`

	RefundID     string     `json:"refund_id,omitempty"`
	RefundAmount MinorUnits `json:"refund_amount,omitempty"`
	RefundReason string     `json:"refund_reason,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	SettledAt  *time.Time `json:"settled_at,omitempty"`
	RefundedAt *time.Time `json:"refunded_at,omitempty"`

	Version int64 `json:"version"`
}
