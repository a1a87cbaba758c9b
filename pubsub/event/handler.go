package event

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"travels/entity"
)

type PaymentGateway interface {
	RefundPayment(ctx context.Context, refund entity.PaymentRefunded_v1) error
}

// Handler reacts to booking and payment events with side effects outside this service.
type Handler struct {
	paymentGateway PaymentGateway
}

func NewHandler(paymentGateway PaymentGateway) Handler {
	if paymentGateway == nil {
		panic("payment gateway is nil")
	}

	return Handler{paymentGateway: paymentGateway}
}

func (h Handler) Handlers() []cqrs.EventHandler {
	return []cqrs.EventHandler{
		h.RefundPaymentHandler(),
	}
}
