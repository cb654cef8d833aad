package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Miketheless/workshopneu/internal/admin"
	"github.com/Miketheless/workshopneu/internal/backend"
	"github.com/Miketheless/workshopneu/internal/models"
	"github.com/Miketheless/workshopneu/internal/table"

	"github.com/gorilla/csrf"
)

const (
	msgRefreshed    = "Daten aktualisiert."
	msgSaved        = "Gespeichert."
	msgCancelled    = "Buchung %s storniert."
	msgRestored     = "Buchung %s wiederhergestellt."
	msgAdded        = "Buchung %s angelegt."
	msgNotLoggedIn  = "Bitte melden Sie sich an."
	msgExportFailed = "Export fehlgeschlagen."
)

func (s *HTTPServer) handleAdminPage(w http.ResponseWriter, r *http.Request) {
	id := s.sessions.browserID(w, r, s.cfg.SecureCookie)
	sess, ok := s.sessions.get(id)
	if !ok || !sess.dashboard.LoggedIn() {
		s.renderLogin(w, r, http.StatusOK, "")
		return
	}
	dash := sess.dashboard

	bookings, err := dash.Bookings()
	if err != nil {
		s.logger.Error().Err(err).Msg("sort bookings")
	}
	participants, err := dash.Participants()
	if err != nil {
		s.logger.Error().Err(err).Msg("sort participants")
	}
	view := dash.View()

	addCount, _ := strconv.Atoi(r.URL.Query().Get("add"))
	if addCount < 1 || addCount > models.MaxParticipants {
		addCount = 1
	}

	page := dashboardPage{
		CSRFField: csrf.TemplateField(r),
		Message:   r.URL.Query().Get("msg"),
		Stats:     dash.Stats(),
		Summary:   table.SummarizeParticipants(participants),
		AddCount:  addCount,
		EmptyText: admin.MsgNoBookings,
	}
	if at := dash.LoadedAt(); !at.IsZero() {
		page.LoadedAt = at.In(s.deps.Location).Format("02.01.2006, 15:04")
	}
	for n := 1; n <= models.MaxParticipants; n++ {
		page.AddCountOptions = append(page.AddCountOptions, n)
	}
	for i := 0; i < addCount; i++ {
		page.AddParticipants = append(page.AddParticipants, participantForm{Index: i})
	}

	for _, c := range table.BookingColumns.Columns() {
		switch {
		case models.IsCheckboxField(c.Key):
			page.FlagHeaders = append(page.FlagHeaders, c.Label)
		case models.IsDateField(c.Key):
			page.DateHeaders = append(page.DateHeaders, c.Label)
		default:
			page.BookingHeaders = append(page.BookingHeaders, headerCell{
				Table: admin.TableBookings, Key: c.Key, Label: c.Label, Icon: table.SortIcon(c.Key, view.Bookings),
			})
		}
	}
	for _, b := range bookings {
		page.Bookings = append(page.Bookings, s.bookingRow(b))
	}

	for _, c := range table.ParticipantColumns.Columns() {
		page.ParticipantHeaders = append(page.ParticipantHeaders, headerCell{
			Table: admin.TableParticipants, Key: c.Key, Label: c.Label, Icon: table.SortIcon(c.Key, view.Participants),
		})
	}
	page.Participants = table.Records(table.ParticipantColumns, participants, s.deps.Location)

	if err := s.renderer.render(w, http.StatusOK, "dashboard.html", page); err != nil {
		s.logger.Error().Err(err).Msg("render dashboard")
		http.Error(w, "Interner Fehler", http.StatusInternalServerError)
	}
}

func (s *HTTPServer) bookingRow(b models.Booking) bookingRow {
	row := bookingRow{
		ID:        b.BookingID,
		Cancelled: b.Status == models.StatusCancelled,
		Controls:  table.RowControls(b),
	}
	for _, c := range table.BookingColumns.Columns() {
		switch {
		case models.IsCheckboxField(c.Key):
			v, _ := b.Field(c.Key)
			row.Flags = append(row.Flags, flagCell{Key: c.Key, Label: c.Label, Checked: v == "true"})
		case models.IsDateField(c.Key):
			v, _ := b.Field(c.Key)
			row.Dates = append(row.Dates, dateCell{Key: c.Key, Label: c.Label, Value: isoDate(v)})
		default:
			cell := c.Cell(b, s.deps.Location)
			if cell == "" {
				cell = table.Empty
			}
			row.Cells = append(row.Cells, cell)
		}
	}
	return row
}

func (s *HTTPServer) renderLogin(w http.ResponseWriter, r *http.Request, status int, msg string) {
	page := loginPage{CSRFField: csrf.TemplateField(r), Error: msg}
	if err := s.renderer.render(w, status, "login.html", page); err != nil {
		s.logger.Error().Err(err).Msg("render login")
		http.Error(w, "Interner Fehler", http.StatusInternalServerError)
	}
}

func (s *HTTPServer) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Ungültige Anfrage.", http.StatusBadRequest)
		return
	}
	id := s.sessions.browserID(w, r, s.cfg.SecureCookie)
	sess := s.sessions.start(id)
	s.restoreView(r, sess)

	if err := sess.dashboard.Login(r.Context(), r.PostForm.Get("admin_key")); err != nil {
		s.sessions.end(id)
		status := http.StatusUnauthorized
		if errors.Is(err, backend.ErrNetwork) || errors.Is(err, backend.ErrDecode) {
			status = http.StatusBadGateway
		}
		s.renderLogin(w, r, status, admin.LoginMessage(err))
		return
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (s *HTTPServer) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	id := s.sessions.browserID(w, r, s.cfg.SecureCookie)
	s.sessions.end(id)
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (s *HTTPServer) handleAdminRefresh(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	// a newer refresh supersedes any still in flight
	sess.dashboard.Navigate()
	if err := sess.dashboard.Refresh(r.Context()); err != nil {
		s.respond(w, r, err, "")
		return
	}
	s.respond(w, r, nil, msgRefreshed)
}

func (s *HTTPServer) handleAdminSort(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	if _, err := sess.dashboard.Sort(q.Get("table"), q.Get("column")); err != nil {
		http.Error(w, "Unbekannte Spalte.", http.StatusBadRequest)
		return
	}
	s.saveView(r, sess)
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (s *HTTPServer) handleAdminField(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Ungültige Anfrage.", http.StatusBadRequest)
		return
	}
	bookingID, field := r.PostForm.Get("booking_id"), r.PostForm.Get("field")
	err := sess.dashboard.EditField(r.Context(), bookingID, field, r.PostForm.Get("value"))
	s.respond(w, r, err, msgSaved)
}

func (s *HTTPServer) handleAdminCancel(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	id := r.FormValue("booking_id")
	err := sess.dashboard.Cancel(r.Context(), id)
	s.respond(w, r, err, fmt.Sprintf(msgCancelled, id))
}

func (s *HTTPServer) handleAdminRestore(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	id := r.FormValue("booking_id")
	err := sess.dashboard.Restore(r.Context(), id)
	s.respond(w, r, err, fmt.Sprintf(msgRestored, id))
}

func (s *HTTPServer) handleAdminAdd(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Ungültige Anfrage.", http.StatusBadRequest)
		return
	}
	id, err := sess.dashboard.AddBooking(r.Context(), parseBookingForm(r.PostForm))
	s.respond(w, r, err, fmt.Sprintf(msgAdded, id))
}

func (s *HTTPServer) handleAdminExportCSV(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	data, err := sess.dashboard.ExportCSV(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("export csv")
		http.Error(w, msgExportFailed, http.StatusBadGateway)
		return
	}
	name := fmt.Sprintf("buchungen_%s.csv", s.today().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write(data)
}

func (s *HTTPServer) handleAdminExportXLSX(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := sess.dashboard.ExportXLSX(&buf); err != nil {
		s.logger.Error().Err(err).Msg("export xlsx")
		http.Error(w, msgExportFailed, http.StatusInternalServerError)
		return
	}
	name := fmt.Sprintf("buchungen_%s.xlsx", s.today().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = buf.WriteTo(w)
}

// requireSession answers for the caller when no admin is logged in.
func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (*session, bool) {
	id := s.sessions.browserID(w, r, s.cfg.SecureCookie)
	sess, ok := s.sessions.get(id)
	if ok && sess.dashboard.LoggedIn() {
		return sess, true
	}
	if wantsJSON(r) {
		writeError(w, http.StatusUnauthorized, msgNotLoggedIn)
	} else {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
	}
	return nil, false
}

// respond reports the outcome of an admin mutation either as JSON or as
// a redirect back to the dashboard carrying a message.
func (s *HTTPServer) respond(w http.ResponseWriter, r *http.Request, err error, okMsg string) {
	msg := okMsg
	status := http.StatusOK
	if err != nil {
		msg = admin.ActionMessage(err)
		status = http.StatusUnprocessableEntity
		switch {
		case errors.Is(err, admin.ErrStale):
			status = http.StatusConflict
		case errors.Is(err, backend.ErrNetwork):
			status = http.StatusBadGateway
		case errors.Is(err, admin.ErrInvalidTransition), errors.Is(err, table.ErrRowDisabled), errors.Is(err, table.ErrNotEditable):
			status = http.StatusConflict
		}
		s.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("Admin action failed")
	}
	if wantsJSON(r) {
		writeJSON(w, status, map[string]any{"ok": err == nil, "message": msg})
		return
	}
	http.Redirect(w, r, "/admin?msg="+url.QueryEscape(msg), http.StatusSeeOther)
}

func (s *HTTPServer) restoreView(r *http.Request, sess *session) {
	if s.deps.Views == nil {
		return
	}
	state, err := s.deps.Views.GetState(r.Context(), sess.id)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Load view state")
		return
	}
	if state != nil {
		sess.dashboard.RestoreView(*state)
	}
}

func (s *HTTPServer) saveView(r *http.Request, sess *session) {
	if s.deps.Views == nil {
		return
	}
	v := sess.dashboard.View()
	v.SessionID = sess.id
	if err := s.deps.Views.SetState(r.Context(), &v); err != nil {
		s.logger.Warn().Err(err).Msg("Save view state")
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
