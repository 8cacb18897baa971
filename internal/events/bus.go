package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventDecision       EventType = "DECISION"
	EventBarAggregated  EventType = "BAR_AGGREGATED"
	EventRiskBreach     EventType = "RISK_BREACH"
	EventBreakerTripped EventType = "BREAKER_TRIPPED"
	EventBreakerReset   EventType = "BREAKER_RESET"
	EventSessionRolled  EventType = "SESSION_ROLLED"
	EventSymbolFault    EventType = "SYMBOL_FAULT"
	EventError          EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers. Subscribers run in their own
// goroutines so a slow consumer never blocks a symbol loop.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event)
		}
	}
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishDecision publishes a fused trade decision
func (eb *EventBus) PublishDecision(symbol, signal, reasoning string, confidence, lots float64) {
	eb.Publish(Event{
		Type: EventDecision,
		Data: map[string]interface{}{
			"symbol":     symbol,
			"signal":     signal,
			"reasoning":  reasoning,
			"confidence": confidence,
			"lots":       lots,
		},
	})
}

// PublishRiskBreach publishes a risk gate rejection
func (eb *EventBus) PublishRiskBreach(symbol, reason string) {
	eb.Publish(Event{
		Type: EventRiskBreach,
		Data: map[string]interface{}{
			"symbol": symbol,
			"reason": reason,
		},
	})
}

// PublishBreakerTripped publishes a global circuit breaker trip
func (eb *EventBus) PublishBreakerTripped(reason string) {
	eb.Publish(Event{
		Type: EventBreakerTripped,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishBreakerReset publishes a circuit breaker reset
func (eb *EventBus) PublishBreakerReset(manual bool) {
	eb.Publish(Event{
		Type: EventBreakerReset,
		Data: map[string]interface{}{
			"manual": manual,
		},
	})
}

// PublishSymbolFault publishes a recovered fault in one symbol's loop
func (eb *EventBus) PublishSymbolFault(symbol string, err interface{}) {
	eb.Publish(Event{
		Type: EventSymbolFault,
		Data: map[string]interface{}{
			"symbol": symbol,
			"error":  err,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
