package admin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Miketheless/workshopneu/internal/backend"
	"github.com/Miketheless/workshopneu/internal/booking"
	"github.com/Miketheless/workshopneu/internal/events"
	"github.com/Miketheless/workshopneu/internal/export"
	"github.com/Miketheless/workshopneu/internal/models"
	"github.com/Miketheless/workshopneu/internal/table"
	"github.com/Miketheless/workshopneu/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const testKey = "geheim"

type fakeBackend struct {
	mu       sync.Mutex
	bookings []models.Booking
	calls    map[string]int

	updateErr error
	cancelErr error
	// block, when set, holds AdminBookings until it is closed or the
	// request context ends.
	block chan struct{}
	// ignoreCtx makes a blocked AdminBookings wait for block only.
	ignoreCtx bool
	csv       string
	addedID   string
}

func newFakeBackend(bookings ...models.Booking) *fakeBackend {
	return &fakeBackend{bookings: bookings, calls: map[string]int{}}
}

func (f *fakeBackend) count(action string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[action]
}

func (f *fakeBackend) record(action string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[action]++
}

func (f *fakeBackend) AdminBookings(ctx context.Context, adminKey string) ([]models.Booking, error) {
	f.record(backend.ActionAdminBookings)
	if adminKey != testKey {
		return nil, &backend.LogicalError{Action: backend.ActionAdminBookings, Message: backend.MsgUnknown}
	}
	f.mu.Lock()
	block, ignoreCtx := f.block, f.ignoreCtx
	f.mu.Unlock()
	if block != nil {
		if ignoreCtx {
			<-block
		} else {
			select {
			case <-block:
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", backend.ErrNetwork, ctx.Err())
			}
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Booking, len(f.bookings))
	copy(out, f.bookings)
	return out, nil
}

func (f *fakeBackend) UpdateField(_ context.Context, _, _, _, _ string) error {
	f.record(backend.ActionAdminUpdate)
	return f.updateErr
}

func (f *fakeBackend) Cancel(_ context.Context, _, _ string) error {
	f.record(backend.ActionAdminCancel)
	return f.cancelErr
}

func (f *fakeBackend) Restore(_ context.Context, _, _ string) error {
	f.record(backend.ActionAdminRestore)
	return nil
}

func (f *fakeBackend) AddBooking(_ context.Context, _ string, req models.BookingRequest) (string, error) {
	f.record(backend.ActionAdminAddBooking)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookings = append(f.bookings, models.Booking{
		BookingID: f.addedID, SlotID: req.SlotID, Status: models.StatusConfirmed,
		ContactEmail: req.ContactEmail, Participants: req.Participants,
	})
	return f.addedID, nil
}

func (f *fakeBackend) ExportCSV(_ context.Context, _ string) (string, error) {
	f.record(backend.ActionAdminExportCSV)
	return f.csv, nil
}

type fakeJournal struct{ records []models.EditRecord }

func (j *fakeJournal) RecordEdit(_ context.Context, rec *models.EditRecord) error {
	j.records = append(j.records, *rec)
	return nil
}

type syncCall struct {
	taskType  string
	bookingID string
	bookings  int
}

type fakeSync struct{ calls []syncCall }

func (s *fakeSync) EnqueueSync(_ context.Context, taskType, bookingID string, bookings []models.Booking) error {
	s.calls = append(s.calls, syncCall{taskType, bookingID, len(bookings)})
	return nil
}

type fakeEvents struct{ types []string }

func (e *fakeEvents) PublishBooking(eventType string, _ events.BookingEventPayload) error {
	e.types = append(e.types, eventType)
	return nil
}

func sampleBookings() []models.Booking {
	return []models.Booking{
		{BookingID: "B100", Timestamp: "2026-02-01T09:00:00Z", SlotID: "2026-03-07", Status: models.StatusConfirmed,
			ContactEmail: "a@example.at", Participants: []models.Participant{{FirstName: "Anna", LastName: "Huber"}}},
		{BookingID: "B123", Timestamp: "2026-02-03T09:00:00Z", SlotID: "2026-03-14", Status: models.StatusConfirmed,
			ContactEmail: "b@example.at", Participants: []models.Participant{{FirstName: "Bert", LastName: "Gruber"}, {FirstName: "Cleo", LastName: "Gruber"}}},
		{BookingID: "B200", Timestamp: "2026-02-02T09:00:00Z", SlotID: "2026-03-21", Status: models.StatusConfirmed,
			ContactEmail: "c@example.at", ParticipantsCount: 1},
	}
}

type harness struct {
	backend *fakeBackend
	journal *fakeJournal
	sync    *fakeSync
	events  *fakeEvents
	dash    *Dashboard
}

func newHarness(t *testing.T, login bool) *harness {
	t.Helper()
	h := &harness{
		backend: newFakeBackend(sampleBookings()...),
		journal: &fakeJournal{},
		sync:    &fakeSync{},
		events:  &fakeEvents{},
	}
	h.dash = NewDashboard(Deps{
		Backend:  h.backend,
		Journal:  h.journal,
		Sync:     h.sync,
		Events:   h.events,
		Timeout:  time.Second,
		Location: time.UTC,
	})
	if login {
		require.NoError(t, h.dash.Login(context.Background(), testKey))
	}
	return h
}

func TestLogin(t *testing.T) {
	t.Run("EmptyKey", func(t *testing.T) {
		h := newHarness(t, false)
		err := h.dash.Login(context.Background(), "   ")
		require.ErrorIs(t, err, ErrEmptyKey)
		assert.Equal(t, MsgEnterKey, LoginMessage(err))
		assert.Zero(t, h.backend.count(backend.ActionAdminBookings), "no request without a key")
	})

	t.Run("Rejected", func(t *testing.T) {
		h := newHarness(t, false)
		err := h.dash.Login(context.Background(), "falsch")
		require.Error(t, err)
		assert.Equal(t, MsgInvalidKey, LoginMessage(err))
		assert.False(t, h.dash.LoggedIn())

		_, err = h.dash.ExportCSV(context.Background())
		assert.ErrorIs(t, err, ErrNotLoggedIn)
	})

	t.Run("Accepted", func(t *testing.T) {
		h := newHarness(t, true)
		assert.True(t, h.dash.LoggedIn())
		assert.False(t, h.dash.LoadedAt().IsZero())

		rows, err := h.dash.Bookings()
		require.NoError(t, err)
		require.Len(t, rows, 3)
		// default sort is newest booking first
		assert.Equal(t, []string{"B123", "B200", "B100"}, ids(rows))
	})

	t.Run("Logout", func(t *testing.T) {
		h := newHarness(t, true)
		h.dash.Logout()
		assert.False(t, h.dash.LoggedIn())
		assert.ErrorIs(t, h.dash.Refresh(context.Background()), ErrNotLoggedIn)
		assert.Equal(t, table.Stats{}, h.dash.Stats())
	})
}

func TestLoginMessage(t *testing.T) {
	assert.Equal(t, "", LoginMessage(nil))
	assert.Equal(t, "Schlüssel abgelaufen", LoginMessage(&backend.LogicalError{Message: "Schlüssel abgelaufen"}))
	assert.Equal(t, MsgConnection, LoginMessage(fmt.Errorf("login: %w", backend.ErrNetwork)))
}

func TestEditFieldRollsBackOnBackendFailure(t *testing.T) {
	h := newHarness(t, true)
	h.backend.updateErr = &backend.LogicalError{Action: backend.ActionAdminUpdate, Message: "Schreibfehler"}

	before, ok := h.dash.Booking("B123")
	require.True(t, ok)
	require.False(t, bool(before.InvoiceSent))

	err := h.dash.EditField(context.Background(), "B123", models.FieldInvoiceSent, "true")
	require.Error(t, err)
	assert.Equal(t, "Schreibfehler", ActionMessage(err))

	after, _ := h.dash.Booking("B123")
	assert.False(t, bool(after.InvoiceSent), "checkbox must revert to its pre-click state")

	require.Len(t, h.journal.records, 1)
	assert.Equal(t, models.EditRolledBack, h.journal.records[0].Outcome)
	assert.Equal(t, "false", h.journal.records[0].OldValue)
	assert.Equal(t, "true", h.journal.records[0].NewValue)
	assert.Empty(t, h.sync.calls)
	assert.Empty(t, h.events.types)
}

func TestEditFieldRestoresDateOnNetworkFailure(t *testing.T) {
	h := newHarness(t, true)
	require.NoError(t, h.dash.EditField(context.Background(), "B100", models.FieldPaidDate, "2026-02-10"))

	h.backend.updateErr = fmt.Errorf("%w: timeout", backend.ErrNetwork)
	err := h.dash.EditField(context.Background(), "B100", models.FieldPaidDate, "2026-02-11")
	require.ErrorIs(t, err, backend.ErrNetwork)
	assert.Equal(t, MsgConnection, ActionMessage(err))

	b, _ := h.dash.Booking("B100")
	assert.Equal(t, "2026-02-10", b.PaidDate)
}

func TestEditFieldApplied(t *testing.T) {
	h := newHarness(t, true)

	require.NoError(t, h.dash.EditField(context.Background(), "B123", models.FieldInvoiceSent, "true"))

	b, _ := h.dash.Booking("B123")
	assert.True(t, bool(b.InvoiceSent))
	assert.Equal(t, 1, h.backend.count(backend.ActionAdminUpdate))
	require.Len(t, h.journal.records, 1)
	assert.Equal(t, models.EditApplied, h.journal.records[0].Outcome)
	assert.Equal(t, []string{events.EventFieldUpdated}, h.events.types)
	require.Len(t, h.sync.calls, 1)
	assert.Equal(t, syncCall{worker.TaskMirror, "B123", 3}, h.sync.calls[0])
}

func TestEditFieldRejectedLocally(t *testing.T) {
	h := newHarness(t, true)

	err := h.dash.EditField(context.Background(), "B123", "contact_email", "x@example.at")
	assert.ErrorIs(t, err, table.ErrNotEditable)

	err = h.dash.EditField(context.Background(), "B999", models.FieldAppeared, "true")
	assert.ErrorIs(t, err, ErrUnknownBooking)

	before, _ := h.dash.Booking("B123")
	err = h.dash.EditField(context.Background(), "B123", models.FieldPaidDateGmbH, "bald")
	assert.ErrorIs(t, err, table.ErrInvalidDate)
	assert.Equal(t, MsgBadDate, ActionMessage(err))
	after, _ := h.dash.Booking("B123")
	assert.Equal(t, before.PaidDateGmbH, after.PaidDateGmbH)

	assert.Zero(t, h.backend.count(backend.ActionAdminUpdate))
}

func TestCancelDisablesFlagsAndOffersRestore(t *testing.T) {
	h := newHarness(t, true)

	require.NoError(t, h.dash.Cancel(context.Background(), "B200"))

	b, _ := h.dash.Booking("B200")
	assert.Equal(t, models.StatusCancelled, b.Status)
	assert.NotEmpty(t, b.CancelledAt)

	controls := table.RowControls(b)
	assert.False(t, controls.FlagsEnabled)
	assert.Equal(t, table.ActionRestore, controls.Action)
	assert.Equal(t, "Wiederherstellen", controls.Action.Label())

	err := h.dash.EditField(context.Background(), "B200", models.FieldAppeared, "true")
	assert.ErrorIs(t, err, table.ErrRowDisabled)
	assert.Zero(t, h.backend.count(backend.ActionAdminUpdate))

	err = h.dash.Cancel(context.Background(), "B200")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 1, h.backend.count(backend.ActionAdminCancel))

	assert.Equal(t, []string{events.EventBookingCancelled}, h.events.types)
	require.Len(t, h.sync.calls, 1)
	assert.Equal(t, worker.TaskUpdateStatus, h.sync.calls[0].taskType)

	stats := h.dash.Stats()
	assert.Equal(t, 2, stats.Confirmed)
	assert.Equal(t, 1, stats.Cancelled)

	require.NoError(t, h.dash.Restore(context.Background(), "B200"))
	b, _ = h.dash.Booking("B200")
	assert.Equal(t, models.StatusConfirmed, b.Status)
	assert.Empty(t, b.CancelledAt)
	assert.True(t, table.RowControls(b).FlagsEnabled)
}

func TestCancelFailureKeepsStatus(t *testing.T) {
	h := newHarness(t, true)
	h.backend.cancelErr = &backend.LogicalError{Action: backend.ActionAdminCancel, Message: "Buchung nicht gefunden"}

	err := h.dash.Cancel(context.Background(), "B200")
	require.Error(t, err)
	b, _ := h.dash.Booking("B200")
	assert.Equal(t, models.StatusConfirmed, b.Status)
	assert.Empty(t, h.sync.calls)
}

func TestRestoreRequiresCancelled(t *testing.T) {
	h := newHarness(t, true)
	err := h.dash.Restore(context.Background(), "B100")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Zero(t, h.backend.count(backend.ActionAdminRestore))
}

func TestNavigateCancelsInFlightRefresh(t *testing.T) {
	h := newHarness(t, true)
	h.backend.mu.Lock()
	h.backend.block = make(chan struct{})
	h.backend.mu.Unlock()

	errc := make(chan error, 1)
	go func() { errc <- h.dash.Refresh(context.Background()) }()

	require.Eventually(t, func() bool { return h.backend.count(backend.ActionAdminBookings) == 2 }, time.Second, 5*time.Millisecond)
	h.dash.Navigate()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrStale)
	case <-time.After(time.Second):
		t.Fatal("refresh was not cancelled")
	}
}

func TestLateResponseAfterNavigateIsDiscarded(t *testing.T) {
	h := newHarness(t, true)
	release := make(chan struct{})
	h.backend.mu.Lock()
	h.backend.block = release
	h.backend.ignoreCtx = true
	h.backend.bookings = h.backend.bookings[:1]
	h.backend.mu.Unlock()

	errc := make(chan error, 1)
	go func() { errc <- h.dash.Refresh(context.Background()) }()

	require.Eventually(t, func() bool { return h.backend.count(backend.ActionAdminBookings) == 2 }, time.Second, 5*time.Millisecond)
	gen := h.dash.Generation()
	h.dash.Navigate()
	assert.Equal(t, gen+1, h.dash.Generation())
	close(release)

	require.ErrorIs(t, <-errc, ErrStale)
	rows, err := h.dash.Bookings()
	require.NoError(t, err)
	assert.Len(t, rows, 3, "stale response must not replace the view")
}

func TestSort(t *testing.T) {
	h := newHarness(t, true)

	spec, err := h.dash.Sort(TableBookings, "slot_id")
	require.NoError(t, err)
	assert.Equal(t, models.SortSpec{Column: "slot_id", Direction: models.Asc}, spec)
	rows, _ := h.dash.Bookings()
	assert.Equal(t, []string{"B100", "B123", "B200"}, ids(rows))

	spec, _ = h.dash.Sort(TableBookings, "slot_id")
	assert.Equal(t, models.Desc, spec.Direction)
	rows, _ = h.dash.Bookings()
	assert.Equal(t, []string{"B200", "B123", "B100"}, ids(rows))

	_, err = h.dash.Sort(TableBookings, "nope")
	assert.ErrorIs(t, err, table.ErrUnknownColumn)
	_, err = h.dash.Sort("users", "slot_id")
	assert.ErrorIs(t, err, ErrUnknownTable)

	spec, err = h.dash.Sort(TableParticipants, "full_name")
	require.NoError(t, err)
	assert.Equal(t, models.Asc, spec.Direction)
	parts, err := h.dash.Participants()
	require.NoError(t, err)
	require.Len(t, parts, 4)
	// the placeholder row of B200 has an empty name and sorts first
	assert.True(t, parts[0].Placeholder)
	assert.Equal(t, "Anna Huber", parts[1].FullName)
}

func TestRestoreView(t *testing.T) {
	h := newHarness(t, false)
	h.dash.RestoreView(models.ViewState{
		SessionID:    "s1",
		Bookings:     models.SortSpec{Column: "status", Direction: models.Desc},
		Participants: models.SortSpec{Column: "bogus", Direction: models.Desc},
	})
	v := h.dash.View()
	assert.Equal(t, "status", v.Bookings.Column)
	assert.Equal(t, models.SortSpec{Column: "booking_id", Direction: models.Asc}, v.Participants)
}

func TestAddBooking(t *testing.T) {
	h := newHarness(t, true)
	h.backend.addedID = "B300"

	t.Run("Invalid", func(t *testing.T) {
		_, err := h.dash.AddBooking(context.Background(), models.BookingRequest{SlotID: "2026-03-07"})
		var verrs booking.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Zero(t, h.backend.count(backend.ActionAdminAddBooking))
	})

	t.Run("Created", func(t *testing.T) {
		req := models.BookingRequest{
			SlotID:            "2026-03-07",
			ContactEmail:      "neu@example.at",
			ContactPhone:      "+43 660 1234567",
			ParticipantsCount: 1,
			Participants: []models.Participant{
				{FirstName: "Dora", LastName: "Maier", Street: "Ringstraße", HouseNo: "5", Zip: "1010", City: "Wien"},
			},
		}
		id, err := h.dash.AddBooking(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "B300", id)

		_, ok := h.dash.Booking("B300")
		assert.True(t, ok, "table is reloaded after adding")
		assert.Equal(t, []string{events.EventBookingAdded}, h.events.types)
		require.Len(t, h.sync.calls, 1)
		assert.Equal(t, 4, h.sync.calls[0].bookings)
	})
}

func TestExportCSVPrependsBOM(t *testing.T) {
	h := newHarness(t, true)
	h.backend.csv = "booking_id;status\nB100;CONFIRMED\n"

	data, err := h.dash.ExportCSV(context.Background())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte(export.BOM)))
	assert.Contains(t, string(data), "B100;CONFIRMED")
}

func TestExportXLSX(t *testing.T) {
	h := newHarness(t, true)

	var buf bytes.Buffer
	require.NoError(t, h.dash.ExportXLSX(&buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(export.SheetBookings)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "B123", rows[1][0])

	parts, err := f.GetRows(export.SheetParticipants)
	require.NoError(t, err)
	assert.Len(t, parts, 5)
}

func TestActionMessage(t *testing.T) {
	assert.Equal(t, "", ActionMessage(nil))
	assert.Equal(t, MsgSaveFailed, ActionMessage(errors.New("boom")))
}

func ids(rows []models.Booking) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.BookingID
	}
	return out
}
