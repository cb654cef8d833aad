package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	slots []map[string]any
	err   error
	delay time.Duration
}

func (f *fakeFetcher) FetchSlots(ctx context.Context) ([]map[string]any, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.slots, f.err
}

func testSchedule() Schedule {
	return Schedule{
		Dates:    []string{"2026-03-07", "2026-03-14", "2026-03-21"},
		Start:    "09:00",
		End:      "15:00",
		Capacity: 8,
	}
}

func TestModelLoad_Live(t *testing.T) {
	fetcher := &fakeFetcher{slots: []map[string]any{
		{"date": "2026-03-21", "capacity": float64(8), "booked": float64(1)},
		{"date": "2026-03-14", "capacity": float64(8), "booked": float64(6)},
		{"date": "14.03.2026", "capacity": float64(8), "booked": float64(7)},
		{"date": "nicht lesbar"},
	}}
	m := NewModel(fetcher, testSchedule(), time.Second, nil)

	snap := m.Load(context.Background(), today)
	assert.Equal(t, SourceLive, snap.Source)
	assert.Equal(t, ReasonNone, snap.Reason)
	assert.Equal(t, 1, snap.Skipped)
	require.Len(t, snap.Slots, 2)
	assert.Equal(t, "2026-03-14", snap.Slots[0].ID)
	assert.Equal(t, 7, snap.Slots[0].Booked)

	slot, ok := snap.Find("21.03.2026")
	require.True(t, ok)
	assert.Equal(t, 7, slot.Free())
}

func TestModelLoad_Fallback(t *testing.T) {
	tests := []struct {
		name    string
		fetcher *fakeFetcher
		reason  FallbackReason
	}{
		{name: "NetworkError", fetcher: &fakeFetcher{err: errors.New("connection refused")}, reason: ReasonNetwork},
		{name: "Timeout", fetcher: &fakeFetcher{delay: time.Second}, reason: ReasonNetwork},
		{name: "Empty", fetcher: &fakeFetcher{}, reason: ReasonEmpty},
		{name: "OnlyPast", fetcher: &fakeFetcher{slots: []map[string]any{{"date": "2026-01-10"}}}, reason: ReasonNoFuture},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModel(tt.fetcher, testSchedule(), 20*time.Millisecond, nil)
			snap := m.Load(context.Background(), today)

			assert.Equal(t, SourceFallback, snap.Source)
			assert.Equal(t, tt.reason, snap.Reason)
			require.Len(t, snap.Slots, 2, "past static dates are dropped")
			for _, s := range snap.Slots {
				assert.Equal(t, 8, s.Free())
				assert.Equal(t, "09:00", s.Start)
			}
		})
	}
}

func TestModelLoad_NoFetcher(t *testing.T) {
	m := NewModel(nil, testSchedule(), 0, nil)
	snap := m.Load(context.Background(), today)
	assert.Equal(t, SourceFallback, snap.Source)
	assert.Error(t, snap.Cause)
}
