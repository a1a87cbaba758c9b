package http

import (
	"time"

	"travels/entity"
)

// Amounts leave the API in major units, formatted as strings.

type PriceResponse struct {
	UnitPrice   string `json:"unit_price"`
	AdultTotal  string `json:"adult_total"`
	ChildTotal  string `json:"child_total"`
	InfantTotal string `json:"infant_total"`
	ServiceFee  string `json:"service_fee"`
	Total       string `json:"total"`
	Currency    string `json:"currency"`
}

type PaymentResponse struct {
	ID               string               `json:"id"`
	BookingID        string               `json:"booking_id"`
	Amount           string               `json:"amount"`
	Currency         string               `json:"currency"`
	Status           entity.PaymentStatus `json:"status"`
	GatewayProvider  string               `json:"gateway_provider,omitempty"`
	GatewayOrderID   string               `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string               `json:"gateway_payment_id,omitempty"`
	RefundID         string               `json:"refund_id,omitempty"`
	RefundAmount     string               `json:"refund_amount,omitempty"`
	SettledAt        *time.Time           `json:"settled_at,omitempty"`
	RefundedAt       *time.Time           `json:"refunded_at,omitempty"`
}

type BookingResponse struct {
	ID                 string                      `json:"id"`
	UserID             string                      `json:"user_id"`
	PackageID          string                      `json:"package_id"`
	PackageTitle       string                      `json:"package_title"`
	Destination        string                      `json:"destination"`
	DepartureDate      string                      `json:"departure_date"`
	ReturnDate         string                      `json:"return_date"`
	Travelers          []entity.Traveler           `json:"travelers"`
	Price              PriceResponse               `json:"price"`
	Status             entity.BookingStatus        `json:"status"`
	DisplayStatus      entity.LegacyStatus         `json:"display_status"`
	PaymentStatus      entity.PaymentStatus        `json:"payment_status"`
	AllowedTransitions []entity.BookingStatus      `json:"allowed_transitions"`
	StatusHistory      []entity.StatusHistoryEntry `json:"status_history"`
	Payment            *PaymentResponse            `json:"payment,omitempty"`
	CreatedAt          time.Time                   `json:"created_at"`
	UpdatedAt          time.Time                   `json:"updated_at"`
	Version            int64                       `json:"version"`
}

func newPriceResponse(p entity.PriceBreakdown) PriceResponse {
	return PriceResponse{
		UnitPrice:   p.UnitPrice.String(),
		AdultTotal:  p.AdultTotal.String(),
		ChildTotal:  p.ChildTotal.String(),
		InfantTotal: p.InfantTotal.String(),
		ServiceFee:  p.ServiceFee.String(),
		Total:       p.Total.String(),
		Currency:    p.Currency,
	}
}

func newPaymentResponse(p entity.Payment) PaymentResponse {
	response := PaymentResponse{
		ID:               p.ID,
		BookingID:        p.BookingID,
		Amount:           p.Amount.String(),
		Currency:         p.Currency,
		Status:           p.Status,
		GatewayProvider:  p.GatewayProvider,
		GatewayOrderID:   p.GatewayOrderID,
		GatewayPaymentID: p.GatewayPaymentID,
		RefundID:         p.RefundID,
		SettledAt:        p.SettledAt,
		RefundedAt:       p.RefundedAt,
	}
	if p.RefundID != "" {
		response.RefundAmount = p.RefundAmount.String()
	}
	return response
}

func newBookingResponse(b entity.Booking, payment *entity.Payment) BookingResponse {
	response := BookingResponse{
		ID:                 b.ID,
		UserID:             b.UserID,
		PackageID:          b.PackageID,
		PackageTitle:       b.PackageTitle,
		Destination:        b.Destination,
		DepartureDate:      b.DepartureDate.Format(dateLayout),
		ReturnDate:         b.ReturnDate.Format(dateLayout),
		Travelers:          b.Travelers,
		Price:              newPriceResponse(b.Price),
		Status:             b.Status,
		DisplayStatus:      b.Status.Legacy(),
		PaymentStatus:      b.PaymentStatus,
		AllowedTransitions: b.Status.AllowedTransitions(),
		StatusHistory:      b.StatusHistory,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
		Version:            b.Version,
	}
	if payment != nil {
		p := newPaymentResponse(*payment)
		response.Payment = &p
	}
	return response
}
