package event

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/sirupsen/logrus"

	"travels/entity"
)

func (h Handler) RefundPaymentHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"RefundPaymentHandler",
		func(ctx context.Context, event *entity.PaymentRefunded_v1) error {
			log.FromContext(ctx).WithFields(logrus.Fields{
				"payment_id": event.PaymentID,
				"refund_id":  event.RefundID,
			}).Info("Refunding payment at the gateway")

			if err := h.paymentGateway.RefundPayment(ctx, *event); err != nil {
				return fmt.Errorf("failed to refund payment: %w", err)
			}

			return nil
		},
	)
}
