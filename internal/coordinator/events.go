package coordinator

import (
	"log/slog"
	"sync"
	"time"
)

// Event types
const (
	EventStateChanged    = "state_changed"
	EventAttributeReport = "attribute_report"
	EventButton          = "button"
	EventAirQuality      = "air_quality"
	EventFactoryReset    = "factory_reset"
)

// Event is published on the EventBus.
type Event struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data"`
}

// EventHandler is a callback for events.
type EventHandler func(Event)

// EventBus provides pub/sub between the coordinator and the outer surfaces
// (MQTT, web, metrics, automation).
type EventBus struct {
	mu          sync.RWMutex
	handlers    map[string]map[uint64]EventHandler
	allHandlers map[uint64]EventHandler
	nextID      uint64
	logger      *slog.Logger
}

// NewEventBus creates a new event bus.
func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{
		handlers:    make(map[string]map[uint64]EventHandler),
		allHandlers: make(map[uint64]EventHandler),
		logger:      logger,
	}
}

// On registers a handler for one event type. Returns an unsubscribe
// function.
func (eb *EventBus) On(eventType string, handler EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.handlers[eventType] == nil {
		eb.handlers[eventType] = make(map[uint64]EventHandler)
	}
	return eb.addLocked(eb.handlers[eventType], handler)
}

// OnAll registers a handler that receives every event.
func (eb *EventBus) OnAll(handler EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	return eb.addLocked(eb.allHandlers, handler)
}

func (eb *EventBus) addLocked(set map[uint64]EventHandler, handler EventHandler) func() {
	id := eb.nextID
	eb.nextID++
	set[id] = handler
	return func() {
		eb.mu.Lock()
		delete(set, id)
		eb.mu.Unlock()
	}
}

// Publish stamps and emits an event of the given type.
func (eb *EventBus) Publish(eventType string, data any) {
	eb.Emit(Event{Type: eventType, Time: time.Now(), Data: data})
}

// Emit sends an event to all matching handlers.
// Handlers are called synchronously; a panicking handler is recovered.
func (eb *EventBus) Emit(event Event) {
	eb.mu.RLock()
	handlers := make([]EventHandler, 0, len(eb.handlers[event.Type])+len(eb.allHandlers))
	for _, h := range eb.handlers[event.Type] {
		handlers = append(handlers, h)
	}
	for _, h := range eb.allHandlers {
		handlers = append(handlers, h)
	}
	eb.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					eb.logger.Error("event handler panic", "type", event.Type, "panic", r)
				}
			}()
			h(event)
		}()
	}
}
