package services

import (
	"sync"
	"time"

	"github.com/revlyhq/revly-backend/utils"
)

// Event kinds published on the bus
const (
	EventStatusChanged   = "status_changed"
	EventFeedbackArrived = "feedback_arrived"
	EventSendDenied      = "send_denied"
)

// Event is an in-process notification about something a tenant's session did
type Event struct {
	Kind       string
	TenantID   string
	CustomerID string
	Detail     string
	At         time.Time
}

// EventBus fans session events out to in-process subscribers. Publishing
// never blocks; a subscriber that falls behind loses events rather than
// stalling the session.
type EventBus struct {
	mu   sync.RWMutex
	subs []chan Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers a buffered listener and returns its channel plus an
// unsubscribe function
func (b *EventBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s == ch {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber without blocking
func (b *EventBus) Publish(event Event) {
	if event.At.IsZero() {
		event.At = utils.UTCNow()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
