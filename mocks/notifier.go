package mocks

import (
	"context"
	"sync"

	"travels/entity"
)

// MockNotifier records every event it is asked to publish.
type MockNotifier struct {
	mu     sync.Mutex
	events []entity.Event
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Notify(_ context.Context, event entity.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, event)
}

func (m *MockNotifier) Events() []entity.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]entity.Event(nil), m.events...)
}

func (m *MockNotifier) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = nil
}

// EventsOf returns the recorded events of type T, in publish order.
func EventsOf[T entity.Event](m *MockNotifier) []T {
	var found []T
	for _, e := range m.Events() {
		if typed, ok := e.(T); ok {
			found = append(found, typed)
		}
	}
	return found
}
