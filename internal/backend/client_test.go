package backend

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Miketheless/workshopneu/internal/config"
	"github.com/Miketheless/workshopneu/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return NewClient(config.BackendConfig{
		BaseURL:      server.URL + "/exec",
		SlotsTimeout: time.Second,
		BookTimeout:  time.Second,
		AdminTimeout: time.Second,
	}, nil)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestFetchSlots(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/exec", r.URL.Path)
		assert.Equal(t, ActionSlots, r.URL.Query().Get("action"))
		writeJSON(w, map[string]any{"ok": true, "slots": []map[string]any{
			{"slot_id": "2026-03-14", "capacity": 8, "booked": 6},
		}})
	})

	slots, err := c.FetchSlots(context.Background())
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "2026-03-14", slots[0]["slot_id"])
}

func TestFetchSlots_Errors(t *testing.T) {
	t.Run("HTTPStatus", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusBadGateway)
		})
		_, err := c.FetchSlots(context.Background())
		assert.ErrorIs(t, err, ErrNetwork)
	})

	t.Run("Timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer server.Close()
		c := NewClient(config.BackendConfig{BaseURL: server.URL, SlotsTimeout: 50 * time.Millisecond}, nil)

		_, err := c.FetchSlots(context.Background())
		assert.ErrorIs(t, err, ErrNetwork)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("NotJSON", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>login</html>"))
		})
		_, err := c.FetchSlots(context.Background())
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("Logical", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"ok": false, "message": "Sheet fehlt"})
		})
		_, err := c.FetchSlots(context.Background())
		msg, ok := UserMessage(err)
		assert.True(t, ok)
		assert.Equal(t, "Sheet fehlt", msg)
	})
}

func TestFetchSlots_RedisCache(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdb.Close()

	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, map[string]any{"ok": true, "slots": []map[string]any{{"date": "2026-03-14"}}})
	})
	c.UseRedisCache(rdb, time.Minute)
	ctx := context.Background()

	_, err = c.FetchSlots(ctx)
	require.NoError(t, err)
	_, err = c.FetchSlots(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.True(t, s.Exists(slotsCacheKey))

	c.InvalidateSlots(ctx)
	assert.False(t, s.Exists(slotsCacheKey))
	_, err = c.FetchSlots(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestBook(t *testing.T) {
	t.Run("PostsJSON", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, ActionBook, r.URL.Query().Get("action"))
			var req models.BookingRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "2026-03-14", req.SlotID)
			assert.Len(t, req.Participants, 2)
			writeJSON(w, map[string]any{"success": true, "booking_id": "B42", "email_sent": false})
		})

		res, err := c.Book(context.Background(), models.BookingRequest{
			SlotID:            "2026-03-14",
			ParticipantsCount: 2,
			Participants:      make([]models.Participant, 2),
		})
		require.NoError(t, err)
		assert.Equal(t, "B42", res.BookingID)
		require.NotNil(t, res.EmailSent)
		assert.False(t, *res.EmailSent)
	})

	t.Run("FullyBooked", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]any{"ok": false, "message": "Termin ist ausgebucht"})
		})
		_, err := c.Book(context.Background(), models.BookingRequest{SlotID: "2026-03-14"})
		var le *LogicalError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, ActionBook, le.Action)
		assert.Equal(t, "Termin ist ausgebucht", le.Message)
	})
}

func TestAdminCalls(t *testing.T) {
	var last *http.Request
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		last = r
		q := r.URL.Query()
		if q.Get("admin_key") != "geheim" {
			writeJSON(w, map[string]any{"ok": false, "message": "Ungültiger Admin-Schlüssel"})
			return
		}
		switch q.Get("action") {
		case ActionAdminBookings:
			writeJSON(w, map[string]any{"ok": true, "bookings": []map[string]any{
				{"booking_id": "B1", "status": "CONFIRMED", "participants_count": "2", "invoice_sent": "TRUE"},
			}})
		case ActionAdminAddBooking:
			writeJSON(w, map[string]any{"ok": true, "booking_id": "B77"})
		case ActionAdminExportCSV:
			writeJSON(w, map[string]any{"success": true, "csv": "a;b\n1;2\n"})
		default:
			writeJSON(w, map[string]any{"ok": true})
		}
	})
	ctx := context.Background()

	_, err := c.AdminBookings(ctx, "falsch")
	msg, ok := UserMessage(err)
	require.True(t, ok)
	assert.Equal(t, "Ungültiger Admin-Schlüssel", msg)

	bookings, err := c.AdminBookings(ctx, "geheim")
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, models.FlexInt(2), bookings[0].ParticipantsCount)
	assert.True(t, bool(bookings[0].InvoiceSent))

	require.NoError(t, c.UpdateField(ctx, "geheim", "B1", models.FieldPaidDate, "2026-02-01"))
	q := last.URL.Query()
	assert.Equal(t, ActionAdminUpdate, q.Get("action"))
	assert.Equal(t, "B1", q.Get("booking_id"))
	assert.Equal(t, models.FieldPaidDate, q.Get("field"))
	assert.Equal(t, "2026-02-01", q.Get("value"))

	require.NoError(t, c.Cancel(ctx, "geheim", "B1"))
	assert.Equal(t, ActionAdminCancel, last.URL.Query().Get("action"))
	require.NoError(t, c.Restore(ctx, "geheim", "B1"))
	assert.Equal(t, ActionAdminRestore, last.URL.Query().Get("action"))

	id, err := c.AddBooking(ctx, "geheim", models.BookingRequest{SlotID: "2026-04-04", ParticipantsCount: 1})
	require.NoError(t, err)
	assert.Equal(t, "B77", id)
	raw, err := base64.StdEncoding.DecodeString(last.URL.Query().Get("data"))
	require.NoError(t, err)
	var sent models.BookingRequest
	require.NoError(t, json.Unmarshal(raw, &sent))
	assert.Equal(t, "2026-04-04", sent.SlotID)

	csv, err := c.ExportCSV(ctx, "geheim")
	require.NoError(t, err)
	assert.Equal(t, "a;b\n1;2\n", csv)
}

func TestEnvelopeWithoutStatusIsLogicalError(t *testing.T) {
	err := decode(ActionAdminBookings, []byte(`{"bookings":[]}`), nil)
	msg, ok := UserMessage(err)
	assert.True(t, ok)
	assert.Equal(t, "Unbekannter Fehler", msg)

	err = decode(ActionAdminBookings, []byte(`{"slots":[{"slot_id":"2026-03-14"}]}`), nil)
	assert.Error(t, err, "bare listings are only accepted for slots")
}

func TestDecode_BareSlotsListing(t *testing.T) {
	var resp struct {
		Slots []map[string]any `json:"slots"`
	}
	require.NoError(t, decode(ActionSlots, []byte(`{"slots":[{"slot_id":"2026-03-14","booked":2}]}`), &resp))
	require.Len(t, resp.Slots, 1)
	assert.Equal(t, "2026-03-14", resp.Slots[0]["slot_id"])

	require.NoError(t, decode(ActionSlots, []byte(`{"slots":[]}`), nil))

	tests := []struct {
		name string
		body string
	}{
		{"ExplicitFailure", `{"ok":false,"slots":[{"slot_id":"2026-03-14"}],"message":"Wartung"}`},
		{"SlotsNotAList", `{"slots":"2026-03-14"}`},
		{"NoSlots", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var le *LogicalError
			assert.ErrorAs(t, decode(ActionSlots, []byte(tt.body), nil), &le)
		})
	}
}

func TestFetchSlots_BareListing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"slots": []map[string]any{{"date": "2026-03-21", "capacity": 8, "booked": 1}}})
	})

	slots, err := c.FetchSlots(context.Background())
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "2026-03-21", slots[0]["date"])
}
