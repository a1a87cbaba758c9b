package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ThreeDotsLabs/go-event-driven/common/clients"
	"github.com/ThreeDotsLabs/go-event-driven/common/clients/payments"

	"travels/entity"
)

type PaymentClient struct {
	clients *clients.Clients
}

func NewPaymentClient(clients *clients.Clients) PaymentClient {
	if clients == nil {
		panic("clients are nil")
	}

	return PaymentClient{
		clients: clients,
	}
}

// RefundPayment asks the gateway to return the money. The refund id is used as the
// deduplication id, so redelivered events refund once.
func (c PaymentClient) RefundPayment(ctx context.Context, refund entity.PaymentRefunded_v1) error {
	reason := refund.Reason
	if reason == "" {
		reason = "booking refund"
	}

	resp, err := c.clients.Payments.PutRefundsWithResponse(ctx, payments.PaymentRefundRequest{
		PaymentReference: paymentReference(refund),
		Reason:           reason,
		DeduplicationId:  &refund.RefundID,
	})
	if err != nil {
		return fmt.Errorf("failed to refund payment %s: %w", refund.PaymentID, err)
	}

	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("unexpected status code while refunding payment %s: %d", refund.PaymentID, resp.StatusCode())
	}

	return nil
}

func paymentReference(refund entity.PaymentRefunded_v1) string {
	if refund.GatewayPaymentID != "" {
		return refund.GatewayPaymentID
	}
	return refund.PaymentID
}
