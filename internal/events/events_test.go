package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishBooking(t *testing.T) {
	bus := NewEventBus(nil)

	var got []BookingEventPayload
	bus.Subscribe(EventBookingCreated, func(e *Event) error {
		p, err := e.Decode()
		require.NoError(t, err)
		got = append(got, p)
		return nil
	})

	require.NoError(t, bus.PublishBooking(EventBookingCreated, BookingEventPayload{BookingID: "B1", SlotID: "2026-03-14", Participants: 2, Origin: OriginPortal}))
	require.NoError(t, bus.PublishBooking(EventBookingCancelled, BookingEventPayload{BookingID: "B1"}))

	require.Len(t, got, 1)
	assert.Equal(t, "B1", got[0].BookingID)
	assert.Equal(t, 2, got[0].Participants)
	assert.False(t, got[0].OccurredAt.IsZero())
}

func TestSubscribeAllAndHandlerErrors(t *testing.T) {
	bus := NewEventBus(nil)
	var types []string
	bus.SubscribeAll(func(e *Event) error {
		types = append(types, e.Type)
		return errors.New("ignored")
	})
	var second int
	bus.Subscribe(EventFieldUpdated, func(*Event) error { second++; return nil })

	for _, typ := range []string{EventBookingCreated, EventFieldUpdated, EventBookingRestored} {
		require.NoError(t, bus.PublishBooking(typ, BookingEventPayload{BookingID: "B2"}))
	}

	assert.Equal(t, []string{EventBookingCreated, EventFieldUpdated, EventBookingRestored}, types)
	assert.Equal(t, 1, second, "a failing handler does not stop later ones")
}

func TestNilBus(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishBooking(EventBookingCreated, BookingEventPayload{}))
}
