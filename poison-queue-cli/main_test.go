package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travels/pubsub"
)

// fifoQueue delivers messages of a topic in publish order, one at a time.
type fifoQueue struct {
	mu     sync.Mutex
	topics map[string][]*message.Message
}

func newFifoQueue() *fifoQueue {
	return &fifoQueue{topics: make(map[string][]*message.Message)}
}

func (q *fifoQueue) Publish(topic string, messages ...*message.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.topics[topic] = append(q.topics[topic], messages...)
	return nil
}

func (q *fifoQueue) pop(ctx context.Context, topic string) (*message.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if ctx.Err() != nil || len(q.topics[topic]) == 0 {
		return nil, false
	}
	msg := q.topics[topic][0]
	q.topics[topic] = q.topics[topic][1:]
	return msg, true
}

func (q *fifoQueue) pushFront(topic string, msg *message.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.topics[topic] = append([]*message.Message{msg}, q.topics[topic]...)
}

func (q *fifoQueue) messages(topic string) []*message.Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	return append([]*message.Message(nil), q.topics[topic]...)
}

func (q *fifoQueue) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	out := make(chan *message.Message)

	go func() {
		defer close(out)
		for {
			msg, ok := q.pop(ctx, topic)
			if !ok {
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Millisecond):
					continue
				}
			}

			select {
			case <-ctx.Done():
				q.pushFront(topic, msg)
				return
			case out <- msg:
			}

			select {
			case <-ctx.Done():
				return
			case <-msg.Acked():
			case <-msg.Nacked():
				q.pushFront(topic, msg.Copy())
			}
		}
	}()

	return out, nil
}

func (q *fifoQueue) Close() error {
	return nil
}

func poisoned(t *testing.T, q *fifoQueue, n int) []string {
	t.Helper()

	var ids []string
	for i := 0; i < n; i++ {
		msg := message.NewMessage(watermill.NewUUID(), []byte("{}"))
		msg.Metadata.Set(middleware.ReasonForPoisonedKey, "payments API unavailable")
		msg.Metadata.Set(middleware.PoisonedTopicKey, "events.PaymentRefunded_v1")
		msg.Metadata.Set(middleware.PoisonedHandlerKey, "RefundPaymentHandler")
		require.NoError(t, q.Publish(pubsub.PoisonQueueTopic, msg))
		ids = append(ids, msg.UUID)
	}
	return ids
}

func previewIDs(t *testing.T, q *Queue) []string {
	t.Helper()

	messages, err := q.Preview(context.Background())
	require.NoError(t, err)

	for _, m := range messages {
		assert.Equal(t, "payments API unavailable", m.Reason)
		assert.Equal(t, "events.PaymentRefunded_v1", m.Topic)
	}

	return lo.Map(messages, func(m Message, _ int) string { return m.ID })
}

func TestQueue(t *testing.T) {
	fifo := newFifoQueue()
	q := NewQueue(fifo, fifo, 100*time.Millisecond)

	ids := poisoned(t, fifo, 10)
	assert.ElementsMatch(t, ids, previewIDs(t, q))

	require.NoError(t, q.Remove(context.Background(), ids[0]))
	require.NoError(t, q.Remove(context.Background(), ids[4]))
	require.NoError(t, q.Remove(context.Background(), ids[9]))

	err := q.Remove(context.Background(), "unknown")
	assert.Error(t, err)

	expected := []string{ids[1], ids[2], ids[3], ids[5], ids[6], ids[7], ids[8]}
	assert.ElementsMatch(t, expected, previewIDs(t, q))
}

func TestQueue_requeue(t *testing.T) {
	fifo := newFifoQueue()
	q := NewQueue(fifo, fifo, 100*time.Millisecond)

	ids := poisoned(t, fifo, 3)

	require.NoError(t, q.Requeue(context.Background(), ids[1]))

	assert.ElementsMatch(t, []string{ids[0], ids[2]}, previewIDs(t, q))

	requeued := fifo.messages("events.PaymentRefunded_v1")
	require.Len(t, requeued, 1)
	assert.Equal(t, ids[1], requeued[0].UUID)
	assert.Empty(t, requeued[0].Metadata.Get(middleware.ReasonForPoisonedKey))
}

func TestQueue_empty(t *testing.T) {
	fifo := newFifoQueue()
	q := NewQueue(fifo, fifo, 50*time.Millisecond)

	assert.Empty(t, previewIDs(t, q))
}
