package pubsub

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"

	"travels/entity"
	"travels/pubsub/bus"
)

type DataLake interface {
	StoreEvent(ctx context.Context, dataLakeEvent entity.DataLakeEvent) error
}

type RouterConfig struct {
	// Publisher receives the per-event fan-out and poison messages.
	Publisher message.Publisher
	// NewEventsSubscriber creates a subscriber of the shared events topic with
	// its own consumer group, so each handler sees every event.
	NewEventsSubscriber  func(handlerName string) (message.Subscriber, error)
	EventProcessorConfig cqrs.EventProcessorConfig
	EventHandlers        []cqrs.EventHandler
	DataLake             DataLake
	Retry                RetryConfig
}

func NewWatermillRouter(config RouterConfig, watermillLogger watermill.LoggerAdapter) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, watermillLogger)
	if err != nil {
		return nil, fmt.Errorf("could not create router: %w", err)
	}

	if config.Retry.MaxRetries == 0 {
		config.Retry = DefaultRetryConfig()
	}
	if err := useMiddlewares(router, config.Publisher, config.Retry, watermillLogger); err != nil {
		return nil, err
	}

	eventProcessor, err := cqrs.NewEventProcessorWithConfig(router, config.EventProcessorConfig)
	if err != nil {
		return nil, fmt.Errorf("could not create event processor: %w", err)
	}

	if err := eventProcessor.AddHandlers(config.EventHandlers...); err != nil {
		return nil, fmt.Errorf("could not add handlers to event processor: %w", err)
	}

	marshaler := config.EventProcessorConfig.Marshaler

	splitterSubscriber, err := config.NewEventsSubscriber("events_splitter")
	if err != nil {
		return nil, err
	}
	dataLakeSubscriber, err := config.NewEventsSubscriber("store_to_data_lake")
	if err != nil {
		return nil, err
	}

	router.AddNoPublisherHandler(
		"events_splitter",
		bus.EventsTopic,
		splitterSubscriber,
		func(msg *message.Message) error {
			eventName := marshaler.NameFromMessage(msg)
			if eventName == "" {
				return fmt.Errorf("could not get event name from message")
			}

			forwarded := msg.Copy()
			forwarded.SetContext(msg.Context())

			return config.Publisher.Publish(bus.EventTopic(eventName), forwarded)
		},
	)

	router.AddNoPublisherHandler(
		"store_to_data_lake",
		bus.EventsTopic,
		dataLakeSubscriber,
		func(msg *message.Message) error {
			eventName := marshaler.NameFromMessage(msg)
			if eventName == "" {
				return fmt.Errorf("could not get event name from message")
			}

			// only the header is needed, the payload is archived as is
			type Event struct {
				Header entity.EventHeader `json:"header"`
			}

			var event Event
			if err := marshaler.Unmarshal(msg, &event); err != nil {
				return fmt.Errorf("could not unmarshal event: %w", err)
			}

			return config.DataLake.StoreEvent(
				msg.Context(),
				entity.DataLakeEvent{
					ID:          event.Header.ID,
					PublishedAt: event.Header.PublishedAt,
					Name:        eventName,
					Payload:     msg.Payload,
				},
			)
		},
	)

	return router, nil
}
