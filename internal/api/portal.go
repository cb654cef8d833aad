package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Miketheless/workshopneu/internal/availability"
	"github.com/Miketheless/workshopneu/internal/backend"
	"github.com/Miketheless/workshopneu/internal/booking"
	"github.com/Miketheless/workshopneu/internal/models"

	"github.com/gorilla/csrf"
)

const (
	msgRateLimited = "Zu viele Buchungsversuche. Bitte versuchen Sie es später erneut."
	maxFormBytes   = 64 << 10
)

func (s *HTTPServer) today() time.Time {
	return s.deps.Now().In(s.deps.Location)
}

func (s *HTTPServer) handleBookingPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	count, _ := strconv.Atoi(q.Get("count"))
	req := models.BookingRequest{SlotID: q.Get("slot"), ParticipantsCount: count}
	s.renderBookingPage(w, r, http.StatusOK, q.Get("month"), req, nil)
}

func (s *HTTPServer) handleBookingSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Ungültige Anfrage.", http.StatusBadRequest)
		return
	}
	req := parseBookingForm(r.PostForm)

	if !s.allowBooking(r) {
		s.renderBookingPage(w, r, http.StatusTooManyRequests, "", req, errors.New(msgRateLimited))
		return
	}

	conf, err := s.submit(r, req)
	if err != nil {
		status := http.StatusBadGateway
		var verrs booking.ValidationErrors
		if _, logical := backend.UserMessage(err); logical || errors.As(err, &verrs) {
			status = http.StatusUnprocessableEntity
		}
		s.renderBookingPage(w, r, status, "", req, err)
		return
	}

	page := confirmationPage{CSRFField: csrf.TemplateField(r), Confirmation: conf}
	if err := s.renderer.render(w, http.StatusOK, "confirmation.html", page); err != nil {
		s.logger.Error().Err(err).Msg("render confirmation")
	}
}

// submit checks req against the current slot snapshot before sending it.
func (s *HTTPServer) submit(r *http.Request, req models.BookingRequest) (*booking.Confirmation, error) {
	req = booking.Normalize(req)
	if err := booking.Validate(req); err != nil {
		return nil, err
	}
	today := s.today()
	snap := s.deps.Slots.Load(r.Context(), today)
	slot, ok := snap.Find(req.SlotID)
	if !ok {
		return nil, booking.ValidationErrors{{Field: "slot_id", Message: booking.MsgNotBookable}}
	}
	if err := booking.CheckCapacity(req, slot, today); err != nil {
		return nil, err
	}
	return s.deps.Bookings.Submit(r.Context(), req)
}

func (s *HTTPServer) renderBookingPage(w http.ResponseWriter, r *http.Request, status int, month string, req models.BookingRequest, formErr error) {
	today := s.today()
	snap := s.deps.Slots.Load(r.Context(), today)
	future := snap.Future(today)

	months := availability.Months(future)
	if month != "" && !contains(months, month) {
		month = ""
	}
	page := bookingPage{
		CSRFField: csrf.TemplateField(r),
		Month:     month,
		Weekdays:  availability.Weekdays,
		Fallback:  snap.Source == availability.SourceFallback,
		Form:      req,
		Errors:    map[string]string{},
	}
	for _, m := range months {
		page.Months = append(page.Months, monthOption{Value: m, Label: availability.MonthLabel(m), Selected: m == month})
	}

	listed := future
	if month != "" {
		listed = availability.FilterMonth(future, month)
	}
	selectedID := availability.Canonical(req.SlotID)
	for _, slot := range listed {
		v := newSlotView(slot, today)
		v.Selected = slot.ID == selectedID
		page.Slots = append(page.Slots, v)
	}

	calMonth := month
	if calMonth == "" && len(months) > 0 {
		calMonth = months[0]
	}
	if d := availability.ParseDate(calMonth + "-01"); d.Valid() {
		page.Calendar = availability.Calendar(d.Year, d.Month, snap.Slots, today)
		page.CalendarLabel = availability.MonthLabel(calMonth)
	}

	if slot, ok := snap.Find(req.SlotID); ok && availability.Bookable(slot, today) {
		v := newSlotView(slot, today)
		page.Selected = &v
		page.Count = availability.MaxParticipants(slot, req.ParticipantsCount)
		for n := 1; n <= availability.MaxParticipants(slot, models.MaxParticipants); n++ {
			page.CountOptions = append(page.CountOptions, n)
		}
		for i := 0; i < page.Count; i++ {
			pf := participantForm{Index: i}
			if i < len(req.Participants) {
				pf.Participant = req.Participants[i]
			}
			page.Participants = append(page.Participants, pf)
		}
	}

	if formErr != nil {
		page.Error = booking.UserMessage(formErr)
		var verrs booking.ValidationErrors
		if errors.As(formErr, &verrs) {
			for _, fe := range verrs {
				if idx, ok := participantIndex(fe.Field); ok && idx < len(page.Participants) {
					if page.Participants[idx].Error == "" {
						page.Participants[idx].Error = fe.Message
					}
					continue
				}
				page.Errors[fe.Field] = fe.Message
			}
		}
	}

	if err := s.renderer.render(w, status, "booking.html", page); err != nil {
		s.logger.Error().Err(err).Msg("render booking page")
		http.Error(w, "Interner Fehler", http.StatusInternalServerError)
	}
}

func newSlotView(slot models.Slot, today time.Time) slotView {
	free := availability.FreeCount(slot)
	class, label := availability.Badge(free)
	v := slotView{
		ID:         slot.ID,
		DateLabel:  availability.FormatLong(slot.ID),
		Free:       free,
		BadgeClass: class,
		BadgeLabel: label,
		Bookable:   availability.Bookable(slot, today),
	}
	if slot.Start != "" && slot.End != "" {
		v.Time = fmt.Sprintf("%s–%s Uhr", slot.Start, slot.End)
	}
	return v
}

// parseBookingForm reads the booking form; participant fields are named
// p<index>_<field>.
func parseBookingForm(form url.Values) models.BookingRequest {
	count, _ := strconv.Atoi(form.Get("participants_count"))
	req := models.BookingRequest{
		SlotID:            form.Get("slot_id"),
		ContactEmail:      form.Get("contact_email"),
		ContactPhone:      form.Get("contact_phone"),
		ParticipantsCount: count,
		AGBAccepted:       form.Get("agb_accepted") == "true",
		PrivacyAccepted:   form.Get("privacy_accepted") == "true",
		VoucherCode:       form.Get("voucher_code"),
	}
	n := count
	if n > models.MaxParticipants {
		n = models.MaxParticipants
	}
	for i := 0; i < n; i++ {
		field := func(name string) string { return form.Get(fmt.Sprintf("p%d_%s", i, name)) }
		req.Participants = append(req.Participants, models.Participant{
			FirstName: field("first_name"),
			LastName:  field("last_name"),
			Street:    field("street"),
			HouseNo:   field("house_no"),
			Zip:       field("zip"),
			City:      field("city"),
			Birthdate: field("birthdate"),
		})
	}
	return req
}

// participantIndex extracts i from "participants.<i>" and
// "participants.<i>.<field>".
func participantIndex(field string) (int, bool) {
	rest, ok := strings.CutPrefix(field, "participants.")
	if !ok {
		return 0, false
	}
	if dot := strings.IndexByte(rest, '.'); dot >= 0 {
		rest = rest[:dot]
	}
	i, err := strconv.Atoi(rest)
	return i, err == nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

type apiSlot struct {
	ID         string `json:"slot_id"`
	Date       string `json:"date"`
	DateLabel  string `json:"date_label"`
	Start      string `json:"start,omitempty"`
	End        string `json:"end,omitempty"`
	Capacity   int    `json:"capacity"`
	Booked     int    `json:"booked"`
	Free       int    `json:"free"`
	Bookable   bool   `json:"bookable"`
	BadgeClass string `json:"badge_class"`
	BadgeLabel string `json:"badge_label"`
}

func (s *HTTPServer) handleAPISlots(w http.ResponseWriter, r *http.Request) {
	today := s.today()
	snap := s.deps.Slots.Load(r.Context(), today)
	future := snap.Future(today)
	months := availability.Months(future)

	listed := future
	if month := r.URL.Query().Get("month"); month != "" {
		listed = availability.FilterMonth(future, month)
	}

	slots := make([]apiSlot, 0, len(listed))
	for _, slot := range listed {
		free := availability.FreeCount(slot)
		class, label := availability.Badge(free)
		slots = append(slots, apiSlot{
			ID:         slot.ID,
			Date:       slot.Date,
			DateLabel:  availability.FormatLong(slot.ID),
			Start:      slot.Start,
			End:        slot.End,
			Capacity:   slot.Capacity,
			Booked:     slot.Booked,
			Free:       free,
			Bookable:   availability.Bookable(slot, today),
			BadgeClass: class,
			BadgeLabel: label,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"source": snap.Source,
		"reason": snap.Reason,
		"months": months,
		"slots":  slots,
	})
}

func (s *HTTPServer) handleAPIBook(w http.ResponseWriter, r *http.Request) {
	if !s.allowBooking(r) {
		writeError(w, http.StatusTooManyRequests, msgRateLimited)
		return
	}

	var req models.BookingRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	conf, err := s.submit(r, req)
	if err != nil {
		var verrs booking.ValidationErrors
		switch {
		case errors.As(err, &verrs):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"ok": false, "message": verrs.First(), "errors": verrs,
			})
		case errors.Is(err, backend.ErrNetwork):
			writeError(w, http.StatusBadGateway, booking.UserMessage(err))
		default:
			writeError(w, http.StatusUnprocessableEntity, booking.UserMessage(err))
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "booking": conf})
}
