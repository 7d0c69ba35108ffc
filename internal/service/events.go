package service

import "sync"

// EventType defines the type of event
type EventType string

const (
	EventPopulated         EventType = "facts_populated"
	EventReset             EventType = "facts_reset"
	EventSearchPathChanged EventType = "search_path_changed"
)

// Event represents a change of store state
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`
}

// PopulatedPayload describes a completed population pass
type PopulatedPayload struct {
	Generation int `json:"generation"`
	Facts      int `json:"facts"`
	Failed     int `json:"failed"`
}

// SearchPathPayload describes a search path change
type SearchPathPayload struct {
	Kind  PathKind `json:"kind"`
	Paths []string `json:"paths"`
}

// EventBus allows publishing and subscribing to events
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan<- Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make([]chan<- Event, 0),
	}
}

// Subscribe adds a subscriber to receive events
func (eb *EventBus) Subscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers = append(eb.subscribers, ch)
}

// Unsubscribe removes a subscriber
func (eb *EventBus) Unsubscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, sub := range eb.subscribers {
		if sub == ch {
			eb.subscribers = append(eb.subscribers[:i], eb.subscribers[i+1:]...)
			return
		}
	}
}

// Publish sends an event to all subscribers without blocking
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
