// Package admin holds the state of one admin dashboard session and the
// operations that mutate it.
package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Miketheless/workshopneu/internal/backend"
	"github.com/Miketheless/workshopneu/internal/booking"
	"github.com/Miketheless/workshopneu/internal/domain"
	"github.com/Miketheless/workshopneu/internal/events"
	"github.com/Miketheless/workshopneu/internal/export"
	"github.com/Miketheless/workshopneu/internal/logging"
	"github.com/Miketheless/workshopneu/internal/metrics"
	"github.com/Miketheless/workshopneu/internal/models"
	"github.com/Miketheless/workshopneu/internal/table"
	"github.com/Miketheless/workshopneu/internal/worker"

	"github.com/rs/zerolog"
)

var (
	ErrEmptyKey          = errors.New("admin key is empty")
	ErrNotLoggedIn       = errors.New("not logged in")
	ErrStale             = errors.New("response belongs to a previous view")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnknownBooking    = errors.New("unknown booking")
	ErrUnknownTable      = errors.New("unknown table")
)

// Tables that can be sorted.
const (
	TableBookings     = "bookings"
	TableParticipants = "participants"
)

// User-facing messages.
const (
	MsgEnterKey   = "Bitte geben Sie den Admin-Schlüssel ein."
	MsgInvalidKey = "Ungültiger Admin-Schlüssel."
	MsgConnection = "Verbindungsfehler. Bitte versuchen Sie es später."
	MsgSaveFailed = "Änderung konnte nicht gespeichert werden."
	MsgBadDate    = "Ungültiges Datum. Bitte TT.MM.JJJJ verwenden."
	MsgNoBookings = "Keine Buchungen vorhanden."
)

const defaultTimeout = 15 * time.Second

// Deps are the collaborators of a Dashboard. Only Backend is required.
type Deps struct {
	Backend  domain.AdminBackend
	Journal  domain.EditJournal
	Sync     domain.SyncEnqueuer
	Events   domain.EventPublisher
	Timeout  time.Duration
	Location *time.Location
	Logger   *zerolog.Logger
}

// Dashboard is the explicit application state of one admin session. All
// methods are safe for concurrent use.
type Dashboard struct {
	backend  domain.AdminBackend
	journal  domain.EditJournal
	sync     domain.SyncEnqueuer
	events   domain.EventPublisher
	timeout  time.Duration
	location *time.Location
	logger   zerolog.Logger

	mu         sync.Mutex
	adminKey   string
	bookings   []models.Booking
	loadedAt   time.Time
	view       models.ViewState
	generation uint64
	genCtx     context.Context
	cancelGen  context.CancelFunc
}

func NewDashboard(deps Deps) *Dashboard {
	if deps.Timeout <= 0 {
		deps.Timeout = defaultTimeout
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	l := logging.Component(deps.Logger, "admin")
	genCtx, cancel := context.WithCancel(context.Background())
	return &Dashboard{
		backend:   deps.Backend,
		journal:   deps.Journal,
		sync:      deps.Sync,
		events:    deps.Events,
		timeout:   deps.Timeout,
		location:  deps.Location,
		logger:    l,
		view:      *models.DefaultViewState(""),
		genCtx:    genCtx,
		cancelGen: cancel,
	}
}

// Login checks key by loading the bookings with it. The key is kept only
// when the backend accepts it.
func (d *Dashboard) Login(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}

	ctx, gen, done := d.begin(ctx)
	defer done()

	bookings, err := d.backend.AdminBookings(ctx, key)
	if err != nil {
		d.logger.Warn().Err(err).Msg("Admin login rejected")
		return fmt.Errorf("login: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.generation {
		return ErrStale
	}
	d.adminKey = key
	d.setBookingsLocked(bookings)
	d.logger.Info().Int("bookings", len(bookings)).Msg("Admin logged in")
	return nil
}

// Logout forgets the key and all loaded data.
func (d *Dashboard) Logout() {
	d.Navigate()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.adminKey = ""
	d.bookings = nil
	d.loadedAt = time.Time{}
}

// LoggedIn reports whether a key has been accepted.
func (d *Dashboard) LoggedIn() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.adminKey != ""
}

// Refresh reloads the bookings. A response that arrives after Navigate is
// dropped with ErrStale.
func (d *Dashboard) Refresh(ctx context.Context) error {
	key, err := d.key()
	if err != nil {
		return err
	}

	ctx, gen, done := d.begin(ctx)
	defer done()

	bookings, err := d.backend.AdminBookings(ctx, key)
	if err != nil {
		if d.current(gen) {
			return fmt.Errorf("refresh: %w", err)
		}
		return ErrStale
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.generation {
		d.logger.Debug().Uint64("generation", gen).Msg("Discarding stale bookings response")
		return ErrStale
	}
	d.setBookingsLocked(bookings)
	return nil
}

// Navigate cancels every in-flight request and invalidates their responses.
func (d *Dashboard) Navigate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelGen()
	d.generation++
	d.genCtx, d.cancelGen = context.WithCancel(context.Background())
}

// Generation is incremented by every Navigate.
func (d *Dashboard) Generation() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generation
}

// LoadedAt is the time of the last successful load.
func (d *Dashboard) LoadedAt() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loadedAt
}

// View returns the sort state of both tables.
func (d *Dashboard) View() models.ViewState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.view
}

// RestoreView adopts a persisted sort state; unknown columns fall back to
// the defaults.
func (d *Dashboard) RestoreView(v models.ViewState) {
	def := models.DefaultViewState(v.SessionID)
	if _, ok := table.BookingColumns.Column(v.Bookings.Column); !ok {
		v.Bookings = def.Bookings
	}
	if _, ok := table.ParticipantColumns.Column(v.Participants.Column); !ok {
		v.Participants = def.Participants
	}
	d.mu.Lock()
	d.view = v
	d.mu.Unlock()
}

// Sort toggles the sort of tableName by column.
func (d *Dashboard) Sort(tableName, column string) (models.SortSpec, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch tableName {
	case TableBookings:
		if _, ok := table.BookingColumns.Column(column); !ok {
			return d.view.Bookings, fmt.Errorf("%w: %s", table.ErrUnknownColumn, column)
		}
		d.view.Bookings = table.ToggleSort(d.view.Bookings, column)
		return d.view.Bookings, nil
	case TableParticipants:
		if _, ok := table.ParticipantColumns.Column(column); !ok {
			return d.view.Participants, fmt.Errorf("%w: %s", table.ErrUnknownColumn, column)
		}
		d.view.Participants = table.ToggleSort(d.view.Participants, column)
		return d.view.Participants, nil
	default:
		return models.SortSpec{}, fmt.Errorf("%w: %s", ErrUnknownTable, tableName)
	}
}

// Bookings returns the bookings in the current sort order.
func (d *Dashboard) Bookings() ([]models.Booking, error) {
	d.mu.Lock()
	rows, spec := d.snapshotLocked(), d.view.Bookings
	d.mu.Unlock()
	return table.Sort(rows, table.BookingColumns, spec)
}

// Participants returns the flattened participant rows in the current
// sort order.
func (d *Dashboard) Participants() ([]models.ParticipantRow, error) {
	d.mu.Lock()
	rows, spec := table.ExpandParticipants(d.bookings), d.view.Participants
	d.mu.Unlock()
	return table.Sort(rows, table.ParticipantColumns, spec)
}

// Stats summarizes the loaded bookings.
func (d *Dashboard) Stats() table.Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return table.ComputeStats(d.bookings)
}

// Booking returns a copy of one loaded booking.
func (d *Dashboard) Booking(id string) (models.Booking, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.indexLocked(id)
	if i < 0 {
		return models.Booking{}, false
	}
	return d.bookings[i], true
}

// EditField changes an administrative field. The local copy is updated
// first and restored when the backend rejects the change, so the view
// never shows a value the backend did not accept.
func (d *Dashboard) EditField(ctx context.Context, bookingID, field, value string) error {
	key, err := d.key()
	if err != nil {
		return err
	}

	d.mu.Lock()
	i := d.indexLocked(bookingID)
	if i < 0 {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownBooking, bookingID)
	}
	before := d.bookings[i]
	after, err := table.ApplyFieldEdit(before, field, value)
	d.mu.Unlock()
	if err != nil {
		return err
	}
	oldValue, _ := before.Field(field)
	newValue, _ := after.Field(field)

	ctx, _, done := d.begin(ctx)
	defer done()

	err = table.OptimisticEdit(ctx,
		func() func() {
			d.replace(after)
			return func() { d.replaceIf(before, after, field) }
		},
		func(ctx context.Context) error {
			return d.backend.UpdateField(ctx, key, bookingID, field, newValue)
		},
	)

	rec := &models.EditRecord{
		BookingID:  bookingID,
		Field:      field,
		OldValue:   oldValue,
		NewValue:   newValue,
		Outcome:    models.EditApplied,
		OccurredAt: time.Now(),
	}
	if err != nil {
		rec.Outcome = models.EditRolledBack
		rec.Error = err.Error()
		metrics.IncRollback(field)
		d.logger.Warn().Err(err).Str("booking_id", bookingID).Str("field", field).Msg("Field edit rolled back")
	}
	d.journalEdit(rec)
	if err != nil {
		return fmt.Errorf("update %s: %w", field, err)
	}

	d.publish(events.EventFieldUpdated, after, func(p *events.BookingEventPayload) {
		p.Field = field
		p.Value = newValue
	})
	d.enqueue(worker.TaskMirror, bookingID)
	return nil
}

// Cancel moves a confirmed booking to CANCELLED.
func (d *Dashboard) Cancel(ctx context.Context, bookingID string) error {
	return d.transition(ctx, bookingID, table.ActionCancel)
}

// Restore moves a cancelled booking back to CONFIRMED.
func (d *Dashboard) Restore(ctx context.Context, bookingID string) error {
	return d.transition(ctx, bookingID, table.ActionRestore)
}

func (d *Dashboard) transition(ctx context.Context, bookingID string, action table.Action) error {
	key, err := d.key()
	if err != nil {
		return err
	}

	b, ok := d.Booking(bookingID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBooking, bookingID)
	}
	if table.RowControls(b).Action != action {
		return fmt.Errorf("%w: %s %s", ErrInvalidTransition, action, b.Status)
	}

	ctx, gen, done := d.begin(ctx)
	defer done()

	call, eventType := d.backend.Cancel, events.EventBookingCancelled
	if action == table.ActionRestore {
		call, eventType = d.backend.Restore, events.EventBookingRestored
	}
	if err := call(ctx, key, bookingID); err != nil {
		return fmt.Errorf("%s %s: %w", action, bookingID, err)
	}

	d.mu.Lock()
	if gen != d.generation {
		d.mu.Unlock()
		return ErrStale
	}
	i := d.indexLocked(bookingID)
	if i >= 0 {
		if action == table.ActionCancel {
			d.bookings[i].Status = models.StatusCancelled
			d.bookings[i].CancelledAt = time.Now().In(d.location).Format(time.RFC3339)
		} else {
			d.bookings[i].Status = models.StatusConfirmed
			d.bookings[i].CancelledAt = ""
		}
		b = d.bookings[i]
	}
	d.mu.Unlock()

	d.logger.Info().Str("booking_id", bookingID).Str("action", string(action)).Msg("Booking status changed")
	d.publish(eventType, b, nil)
	d.enqueue(worker.TaskUpdateStatus, bookingID)
	return nil
}

// AddBooking creates a booking on behalf of a customer and reloads the
// table. Consent is taken as given offline.
func (d *Dashboard) AddBooking(ctx context.Context, req models.BookingRequest) (string, error) {
	key, err := d.key()
	if err != nil {
		return "", err
	}

	req.AGBAccepted, req.PrivacyAccepted = true, true
	req = booking.Normalize(req)
	if err := booking.Validate(req); err != nil {
		return "", err
	}
	req.ParticipantsCount = len(req.Participants)

	callCtx, _, done := d.begin(ctx)
	id, err := d.backend.AddBooking(callCtx, key, req)
	done()
	if err != nil {
		return "", fmt.Errorf("add booking: %w", err)
	}

	d.logger.Info().Str("booking_id", id).Str("slot_id", req.SlotID).Msg("Booking added by admin")
	if err := d.Refresh(ctx); err != nil && !errors.Is(err, ErrStale) {
		d.logger.Warn().Err(err).Msg("Reload after add failed")
	}

	b, ok := d.Booking(id)
	if !ok {
		b = models.Booking{BookingID: id, SlotID: req.SlotID, Status: models.StatusConfirmed, ContactEmail: req.ContactEmail, Participants: req.Participants}
	}
	d.publish(events.EventBookingAdded, b, nil)
	d.enqueue(worker.TaskMirror, id)
	return id, nil
}

// ExportCSV returns the backend's CSV export prefixed with a UTF-8 BOM.
func (d *Dashboard) ExportCSV(ctx context.Context) ([]byte, error) {
	key, err := d.key()
	if err != nil {
		return nil, err
	}
	ctx, _, done := d.begin(ctx)
	defer done()

	text, err := d.backend.ExportCSV(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("export csv: %w", err)
	}
	return export.WithBOM(text), nil
}

// Workbook collects both tables in their current sort order.
func (d *Dashboard) Workbook() (export.Workbook, error) {
	if _, err := d.key(); err != nil {
		return export.Workbook{}, err
	}
	bookings, err := d.Bookings()
	if err != nil {
		return export.Workbook{}, err
	}
	participants, err := d.Participants()
	if err != nil {
		return export.Workbook{}, err
	}
	return export.Workbook{Bookings: bookings, Participants: participants, Location: d.location}, nil
}

// ExportXLSX writes the Workbook to w.
func (d *Dashboard) ExportXLSX(w io.Writer) error {
	wb, err := d.Workbook()
	if err != nil {
		return err
	}
	return wb.WriteXLSX(w)
}

// LoginMessage maps a Login error to the text shown on the login form.
func LoginMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyKey):
		return MsgEnterKey
	}
	if msg, ok := backend.UserMessage(err); ok && msg != backend.MsgUnknown {
		return msg
	}
	if errors.Is(err, backend.ErrNetwork) || errors.Is(err, backend.ErrDecode) {
		return MsgConnection
	}
	return MsgInvalidKey
}

// ActionMessage maps an error of an admin mutation to user text.
func ActionMessage(err error) string {
	var le *backend.LogicalError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &le):
		return le.Message
	case errors.Is(err, backend.ErrNetwork):
		return MsgConnection
	case errors.Is(err, table.ErrInvalidDate):
		return MsgBadDate
	}
	return MsgSaveFailed
}

// begin derives a request context that Navigate cancels, and returns the
// generation it belongs to.
func (d *Dashboard) begin(ctx context.Context) (context.Context, uint64, func()) {
	d.mu.Lock()
	gen, genCtx := d.generation, d.genCtx
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	stop := context.AfterFunc(genCtx, cancel)
	return ctx, gen, func() {
		stop()
		cancel()
	}
}

func (d *Dashboard) current(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return gen == d.generation
}

func (d *Dashboard) key() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.adminKey == "" {
		return "", ErrNotLoggedIn
	}
	return d.adminKey, nil
}

func (d *Dashboard) setBookingsLocked(bookings []models.Booking) {
	if bookings == nil {
		bookings = []models.Booking{}
	}
	for _, b := range bookings {
		if b.CountMismatch() {
			d.logger.Warn().Str("booking_id", b.BookingID).Int("participants", len(b.Participants)).
				Int("participants_count", int(b.ParticipantsCount)).Msg("Participant count disagrees with list")
		}
	}
	d.bookings = bookings
	d.loadedAt = time.Now()
}

func (d *Dashboard) snapshotLocked() []models.Booking {
	out := make([]models.Booking, len(d.bookings))
	copy(out, d.bookings)
	return out
}

func (d *Dashboard) indexLocked(id string) int {
	for i := range d.bookings {
		if d.bookings[i].BookingID == id {
			return i
		}
	}
	return -1
}

func (d *Dashboard) replace(b models.Booking) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i := d.indexLocked(b.BookingID); i >= 0 {
		d.bookings[i] = b
	}
}

// replaceIf restores field from before unless another change has
// already overwritten it.
func (d *Dashboard) replaceIf(before, after models.Booking, field string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.indexLocked(before.BookingID)
	if i < 0 {
		return
	}
	cur, _ := d.bookings[i].Field(field)
	want, _ := after.Field(field)
	if cur != want {
		return
	}
	old, _ := before.Field(field)
	_ = d.bookings[i].SetField(field, old)
}

func (d *Dashboard) journalEdit(rec *models.EditRecord) {
	if d.journal == nil {
		return
	}
	if err := d.journal.RecordEdit(context.Background(), rec); err != nil {
		d.logger.Error().Err(err).Str("booking_id", rec.BookingID).Msg("Failed to journal edit")
	}
}

func (d *Dashboard) publish(eventType string, b models.Booking, fill func(*events.BookingEventPayload)) {
	if d.events == nil {
		return
	}
	p := events.BookingEventPayload{
		BookingID:    b.BookingID,
		SlotID:       b.SlotID,
		Status:       string(b.Status),
		Participants: b.Count(),
		ContactEmail: b.ContactEmail,
		Origin:       events.OriginAdmin,
	}
	if fill != nil {
		fill(&p)
	}
	if err := d.events.PublishBooking(eventType, p); err != nil {
		d.logger.Error().Err(err).Str("event", eventType).Msg("Failed to publish event")
	}
}

func (d *Dashboard) enqueue(taskType, bookingID string) {
	if d.sync == nil {
		return
	}
	d.mu.Lock()
	snapshot := d.snapshotLocked()
	d.mu.Unlock()
	if err := d.sync.EnqueueSync(context.Background(), taskType, bookingID, snapshot); err != nil {
		d.logger.Error().Err(err).Str("task", taskType).Str("booking_id", bookingID).Msg("Failed to enqueue sheet sync")
	}
}
