package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"travels/pubsub"
)

type Message struct {
	ID      string
	Reason  string
	Topic   string
	Handler string
}

func newMessage(msg *message.Message) Message {
	return Message{
		ID:      msg.UUID,
		Reason:  msg.Metadata.Get(middleware.ReasonForPoisonedKey),
		Topic:   msg.Metadata.Get(middleware.PoisonedTopicKey),
		Handler: msg.Metadata.Get(middleware.PoisonedHandlerKey),
	}
}

// Queue walks the poison queue by consuming every message and publishing it back,
// until the first message comes around again.
type Queue struct {
	subscriber message.Subscriber
	publisher  message.Publisher
	// idle ends a walk over an empty queue
	idle time.Duration
}

func NewQueue(subscriber message.Subscriber, publisher message.Publisher, idle time.Duration) *Queue {
	return &Queue{subscriber: subscriber, publisher: publisher, idle: idle}
}

func (q *Queue) Preview(ctx context.Context) ([]Message, error) {
	var result []Message

	err := q.cycle(ctx, func(msg *message.Message) (bool, error) {
		result = append(result, newMessage(msg))
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Remove drops the message for good.
func (q *Queue) Remove(ctx context.Context, messageID string) error {
	found := false

	err := q.cycle(ctx, func(msg *message.Message) (bool, error) {
		if msg.UUID != messageID {
			return true, nil
		}
		found = true
		return false, nil
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("message %s not found", messageID)
	}

	return nil
}

// Requeue sends the message back to the topic it was poisoned on, e.g. a refund
// that failed while the payments API was down.
func (q *Queue) Requeue(ctx context.Context, messageID string) error {
	found := false

	err := q.cycle(ctx, func(msg *message.Message) (bool, error) {
		if msg.UUID != messageID {
			return true, nil
		}

		topic := msg.Metadata.Get(middleware.PoisonedTopicKey)
		if topic == "" {
			return false, fmt.Errorf("message %s has no original topic", messageID)
		}

		requeued := message.NewMessage(msg.UUID, msg.Payload)
		for k, v := range msg.Metadata {
			requeued.Metadata.Set(k, v)
		}
		delete(requeued.Metadata, middleware.ReasonForPoisonedKey)
		delete(requeued.Metadata, middleware.PoisonedTopicKey)
		delete(requeued.Metadata, middleware.PoisonedHandlerKey)
		delete(requeued.Metadata, middleware.PoisonedSubscriberKey)

		if err := q.publisher.Publish(topic, requeued); err != nil {
			return false, err
		}

		found = true
		return false, nil
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("message %s not found", messageID)
	}

	return nil
}

// cycle visits every message once. Messages for which visit returns true are
// published back to the queue. Dropping a message ends the walk.
func (q *Queue) cycle(ctx context.Context, visit func(msg *message.Message) (keep bool, err error)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	messages, err := q.subscriber.Subscribe(ctx, pubsub.PoisonQueueTopic)
	if err != nil {
		return err
	}

	firstID := ""

	for {
		var msg *message.Message
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(q.idle):
			return nil
		case m, ok := <-messages:
			if !ok {
				return nil
			}
			msg = m
		}

		if firstID == msg.UUID {
			// one full rotation, the message goes back to the end once more
			if err := q.publisher.Publish(pubsub.PoisonQueueTopic, msg.Copy()); err != nil {
				msg.Nack()
				return err
			}
			msg.Ack()
			return nil
		}
		if firstID == "" {
			firstID = msg.UUID
		}

		keep, err := visit(msg)
		if err != nil {
			msg.Nack()
			return err
		}

		if !keep {
			msg.Ack()
			return nil
		}

		if err := q.publisher.Publish(pubsub.PoisonQueueTopic, msg.Copy()); err != nil {
			msg.Nack()
			return err
		}
		msg.Ack()
	}
}
