// Package booking validates and submits course bookings.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Miketheless/workshopneu/internal/availability"
	"github.com/Miketheless/workshopneu/internal/backend"
	"github.com/Miketheless/workshopneu/internal/domain"
	"github.com/Miketheless/workshopneu/internal/events"
	"github.com/Miketheless/workshopneu/internal/logging"
	"github.com/Miketheless/workshopneu/internal/models"

	"github.com/rs/zerolog"
)

const (
	DefaultTimeout = 30 * time.Second

	AdvisoryEmailDelayed = "Die Bestätigungs-E-Mail kann sich verzögern."
	MsgBookingFailed     = "Buchung fehlgeschlagen. Bitte versuchen Sie es erneut."
	MsgConnection        = "Verbindungsfehler. Bitte versuchen Sie es später erneut."
	MsgNotBookable       = "Dieser Termin ist nicht mehr buchbar."
	msgNotEnoughSeats    = "Für diesen Termin sind nur noch %s frei."
)

// Confirmation is shown after a successful submission.
type Confirmation struct {
	BookingID    string `json:"booking_id"`
	SlotID       string `json:"slot_id"`
	DateLabel    string `json:"date_label"`
	Participants int    `json:"participants"`
	PersonLabel  string `json:"person_label"`
	ContactEmail string `json:"contact_email"`
	EmailSent    *bool  `json:"email_sent,omitempty"`
	// Advisory is a non-fatal notice; the booking itself succeeded.
	Advisory string `json:"advisory,omitempty"`
}

type Service struct {
	booker   domain.Booker
	notifier domain.Notifier
	bus      domain.EventPublisher
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewService wires a booking service. notifier and bus may be nil.
func NewService(booker domain.Booker, notifier domain.Notifier, bus domain.EventPublisher, timeout time.Duration, logger *zerolog.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	l := logging.Component(logger, "booking")
	return &Service{booker: booker, notifier: notifier, bus: bus, timeout: timeout, logger: l}
}

// Submit validates req and sends it once. Validation failures return
// ValidationErrors without contacting the backend.
func (s *Service) Submit(ctx context.Context, req models.BookingRequest) (*Confirmation, error) {
	req = Normalize(req)
	if err := Validate(req); err != nil {
		return nil, err
	}
	req.ParticipantsCount = len(req.Participants)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.booker.Book(callCtx, req)
	if err != nil {
		s.logger.Warn().Err(err).Str("slot_id", req.SlotID).Int("participants", req.ParticipantsCount).Msg("Booking failed")
		return nil, fmt.Errorf("submit booking: %w", err)
	}

	conf := &Confirmation{
		BookingID:    res.BookingID,
		SlotID:       req.SlotID,
		DateLabel:    availability.FormatLong(req.SlotID),
		Participants: req.ParticipantsCount,
		PersonLabel:  availability.PersonLabel(req.ParticipantsCount),
		ContactEmail: req.ContactEmail,
		EmailSent:    res.EmailSent,
	}
	if res.EmailSent != nil && !*res.EmailSent {
		conf.Advisory = AdvisoryEmailDelayed
	}

	payload := events.BookingEventPayload{
		BookingID:    res.BookingID,
		SlotID:       req.SlotID,
		Status:       string(models.StatusConfirmed),
		Participants: req.ParticipantsCount,
		ContactEmail: req.ContactEmail,
		EmailSent:    res.EmailSent,
		Origin:       events.OriginPortal,
	}

	if s.notifier != nil {
		if err := s.notifier.Notify(context.WithoutCancel(ctx), payload); err != nil {
			s.logger.Warn().Err(err).Str("booking_id", res.BookingID).Msg("Booking notification failed")
			conf.Advisory = AdvisoryEmailDelayed
		}
	}
	if s.bus != nil {
		if err := s.bus.PublishBooking(events.EventBookingCreated, payload); err != nil {
			s.logger.Error().Err(err).Str("booking_id", res.BookingID).Msg("Failed to publish booking event")
		}
	}

	s.logger.Info().Str("booking_id", res.BookingID).Str("slot_id", req.SlotID).Int("participants", req.ParticipantsCount).Msg("Booking confirmed")
	return conf, nil
}

// CheckCapacity rejects a request the current slot snapshot cannot hold.
func CheckCapacity(req models.BookingRequest, slot models.Slot, today time.Time) error {
	if !availability.Bookable(slot, today) {
		return ValidationErrors{{Field: "slot_id", Message: MsgNotBookable}}
	}
	n := req.ParticipantsCount
	if n <= 0 {
		n = len(req.Participants)
	}
	if free := availability.FreeCount(slot); n > free {
		_, label := availability.Badge(free)
		return ValidationErrors{{Field: "participants_count", Message: fmt.Sprintf(msgNotEnoughSeats, label)}}
	}
	return nil
}

// UserMessage maps a Submit error to the text shown on the form.
func UserMessage(err error) string {
	var verrs ValidationErrors
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verrs):
		return verrs.First()
	}
	if msg, ok := backend.UserMessage(err); ok {
		return msg
	}
	if errors.Is(err, backend.ErrNetwork) {
		return MsgConnection
	}
	return MsgBookingFailed
}
