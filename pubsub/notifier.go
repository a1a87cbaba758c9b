package pubsub

import (
	"context"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/sirupsen/logrus"

	"travels/entity"
	"travels/metrics"
)

type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

var _ EventPublisher = (*cqrs.EventBus)(nil)

// Notifier publishes events on the bus. Publishing errors are logged and counted,
// the state change that produced the event stays committed.
type Notifier struct {
	bus EventPublisher
}

func NewNotifier(bus EventPublisher) Notifier {
	if bus == nil {
		panic("event bus is nil")
	}

	return Notifier{bus: bus}
}

func (n Notifier) Notify(ctx context.Context, event entity.Event) {
	eventName := cqrs.StructName(event)

	if err := n.bus.Publish(ctx, event); err != nil {
		metrics.NotificationsFailed.WithLabelValues(eventName).Inc()
		log.FromContext(ctx).WithError(err).WithFields(logrus.Fields{
			"event":           eventName,
			"event_id":        event.EventHeader().ID,
			"idempotency_key": event.EventHeader().IdempotencyKey,
		}).Error("Could not publish event")
	}
}
