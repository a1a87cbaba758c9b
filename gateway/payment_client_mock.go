package gateway

import (
	"context"
	"sync"

	"travels/entity"
)

type PaymentMock struct {
	mock sync.Mutex
	// Refunds is keyed by refund id, the same way the gateway deduplicates.
	Refunds map[string]entity.PaymentRefunded_v1
	Calls   int
}

func (c *PaymentMock) RefundPayment(ctx context.Context, refund entity.PaymentRefunded_v1) error {
	c.mock.Lock()
	defer c.mock.Unlock()
	if c.Refunds == nil {
		c.Refunds = make(map[string]entity.PaymentRefunded_v1)
	}

	c.Calls++
	c.Refunds[refund.RefundID] = refund

	return nil
}

func (c *PaymentMock) RefundsFor(paymentID string) []entity.PaymentRefunded_v1 {
	c.mock.Lock()
	defer c.mock.Unlock()

	var refunds []entity.PaymentRefunded_v1
	for _, r := range c.Refunds {
		if r.PaymentID == paymentID {
			refunds = append(refunds, r)
		}
	}
	return refunds
}
