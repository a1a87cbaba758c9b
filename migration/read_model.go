package migrations

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/sirupsen/logrus"

	"travels/entity"
)

type DataLake interface {
	GetEvents(ctx context.Context) ([]entity.DataLakeEvent, error)
}

type OpsBookingHandlers interface {
	OnBookingCreated(ctx context.Context, event *entity.BookingCreated_v1) error
	OnBookingStatusChanged(ctx context.Context, event *entity.BookingStatusChanged_v1) error
	OnPaymentSettled(ctx context.Context, event *entity.PaymentSettled_v1) error
	OnPaymentFailed(ctx context.Context, event *entity.PaymentFailed_v1) error
	OnPaymentRefunded(ctx context.Context, event *entity.PaymentRefunded_v1) error
}

// MigrateReadModel rebuilds the ops read model from the archived events, oldest first.
// Handlers are idempotent, so replaying over an existing read model is safe.
func MigrateReadModel(ctx context.Context, dl DataLake, rm OpsBookingHandlers, wait time.Duration) error {
	logger := log.FromContext(ctx)
	logger.Info("Migrating read model")

	deadline := time.Now().Add(wait)

	// freshly published events reach the data lake with a delay
	var events []entity.DataLakeEvent
	for {
		var err error
		events, err = dl.GetEvents(ctx)
		if err != nil {
			return fmt.Errorf("could not get events from data lake: %w", err)
		}
		if len(events) > 0 || time.Now().After(deadline) {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond * 100):
		}
	}

	if len(events) == 0 {
		logger.Info("Data lake is empty, nothing to migrate")
		return nil
	}

	logger.WithField("events_count", len(events)).Info("Has events to migrate")

	for _, event := range events {
		start := time.Now()

		if err := migrateEvent(ctx, event, rm); err != nil {
			return fmt.Errorf("could not migrate event %s (%s): %w", event.ID, event.Name, err)
		}

		logger.WithFields(logrus.Fields{
			"event_name": event.Name,
			"event_id":   event.ID,
			"duration":   time.Since(start),
		}).Debug("Event migrated")
	}

	return nil
}

func migrateEvent(ctx context.Context, event entity.DataLakeEvent, rm OpsBookingHandlers) error {
	switch event.Name {
	case "BookingCreated_v1":
		e, err := unmarshalDataLakeEvent[entity.BookingCreated_v1](event)
		if err != nil {
			return err
		}
		return rm.OnBookingCreated(ctx, e)
	case "BookingStatusChanged_v1":
		e, err := unmarshalDataLakeEvent[entity.BookingStatusChanged_v1](event)
		if err != nil {
			return err
		}
		return rm.OnBookingStatusChanged(ctx, e)
	case "PaymentSettled_v1":
		e, err := unmarshalDataLakeEvent[entity.PaymentSettled_v1](event)
		if err != nil {
			return err
		}
		return rm.OnPaymentSettled(ctx, e)
	case "PaymentFailed_v1":
		e, err := unmarshalDataLakeEvent[entity.PaymentFailed_v1](event)
		if err != nil {
			return err
		}
		return rm.OnPaymentFailed(ctx, e)
	case "PaymentRefunded_v1":
		e, err := unmarshalDataLakeEvent[entity.PaymentRefunded_v1](event)
		if err != nil {
			return err
		}
		return rm.OnPaymentRefunded(ctx, e)
	default:
		log.FromContext(ctx).WithField("event_name", event.Name).Warn("Skipping event unknown to the read model")
		return nil
	}
}

func unmarshalDataLakeEvent[T any](event entity.DataLakeEvent) (*T, error) {
	eventInstance := new(T)

	err := json.Unmarshal(event.Payload, eventInstance)
	if err != nil {
		return nil, fmt.Errorf("could not unmarshal event %s: %w", event.Name, err)
	}

	return eventInstance, nil
}
