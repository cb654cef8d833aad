// Package events is an in-process pub/sub for booking lifecycle events.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/Miketheless/workshopneu/internal/logging"

	"github.com/rs/zerolog"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingCancelled = "booking_cancelled"
	EventBookingRestored  = "booking_restored"
	EventBookingAdded     = "booking_added"
	EventFieldUpdated     = "booking_field_updated"
)

// Origins of a change.
const (
	OriginPortal = "portal"
	OriginAdmin  = "admin"
)

// BookingEventPayload is the booking snapshot handed to subscribers.
type BookingEventPayload struct {
	BookingID    string    `json:"booking_id"`
	SlotID       string    `json:"slot_id,omitempty"`
	Status       string    `json:"status,omitempty"`
	Participants int       `json:"participants,omitempty"`
	ContactEmail string    `json:"contact_email,omitempty"`
	Field        string    `json:"field,omitempty"`
	Value        string    `json:"value,omitempty"`
	EmailSent    *bool     `json:"email_sent,omitempty"`
	Origin       string    `json:"origin"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Event is one published message.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload of a booking event.
func (e *Event) Decode() (BookingEventPayload, error) {
	var p BookingEventPayload
	err := json.Unmarshal(e.Payload, &p)
	return p, err
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus delivers events synchronously to subscribers of their type.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      zerolog.Logger
}

// NewEventBus constructs an empty bus. Handler errors are logged to logger.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	l := logging.Component(logger, "events")
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: l}
}

// Subscribe registers a handler for eventType.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers handler for every booking event type.
func (b *EventBus) SubscribeAll(handler EventHandler) {
	for _, t := range []string{EventBookingCreated, EventBookingCancelled, EventBookingRestored, EventBookingAdded, EventFieldUpdated} {
		b.Subscribe(t, handler)
	}
}

// Publish runs every subscriber of the event type in registration order.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(event); err != nil {
			b.logger.Warn().Err(err).Str("event", event.Type).Msg("Event handler failed")
		}
	}
}

// PublishBooking stamps and publishes a booking event. A nil bus is a no-op.
func (b *EventBus) PublishBooking(eventType string, payload BookingEventPayload) error {
	if b == nil {
		return nil
	}
	if payload.OccurredAt.IsZero() {
		payload.OccurredAt = time.Now()
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: payload.OccurredAt})
	return nil
}
