package booking

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Miketheless/workshopneu/internal/models"
)

// FieldError is one inline validation message.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is returned when a request is rejected before any
// network call. Order follows the form from top to bottom.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

// First is the message shown above the submit button.
func (v ValidationErrors) First() string {
	if len(v) == 0 {
		return ""
	}
	return v[0].Message
}

// For returns the message attached to field, if any.
func (v ValidationErrors) For(field string) string {
	for _, e := range v {
		if e.Field == field {
			return e.Message
		}
	}
	return ""
}

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe = regexp.MustCompile(`^\+?[0-9][0-9 ()/\-]{5,}$`)
	zipRe   = regexp.MustCompile(`^[0-9]{4,5}$`)
)

const (
	MsgSlot           = "Bitte wählen Sie einen Termin."
	MsgCount          = "Ungültige Teilnehmeranzahl."
	MsgEmail          = "Bitte geben Sie die E-Mail-Adresse des Ansprechpartners ein."
	MsgEmailFormat    = "Bitte geben Sie eine gültige E-Mail-Adresse ein."
	MsgPhone          = "Bitte geben Sie die Handynummer des Ansprechpartners ein."
	MsgPhoneFormat    = "Bitte geben Sie eine gültige Handynummer ein."
	MsgConsent        = "Bitte akzeptieren Sie die AGB und Datenschutzerklärung."
	msgParticipant    = "Bitte füllen Sie alle Felder für Teilnehmer %d aus."
	msgParticipantZip = "Bitte geben Sie eine gültige PLZ für Teilnehmer %d ein."
)

// Normalize trims every text field and reconciles the participant count
// with the list: the list is authoritative once it is non-empty.
func Normalize(req models.BookingRequest) models.BookingRequest {
	req.SlotID = strings.TrimSpace(req.SlotID)
	req.ContactEmail = strings.TrimSpace(req.ContactEmail)
	req.ContactPhone = strings.TrimSpace(req.ContactPhone)
	req.VoucherCode = strings.TrimSpace(req.VoucherCode)

	participants := make([]models.Participant, len(req.Participants))
	for i, p := range req.Participants {
		participants[i] = models.Participant{
			FirstName: strings.TrimSpace(p.FirstName),
			LastName:  strings.TrimSpace(p.LastName),
			Street:    strings.TrimSpace(p.Street),
			HouseNo:   strings.TrimSpace(p.HouseNo),
			Zip:       strings.TrimSpace(p.Zip),
			City:      strings.TrimSpace(p.City),
			Birthdate: strings.TrimSpace(p.Birthdate),
			Email:     strings.TrimSpace(p.Email),
			Phone:     strings.TrimSpace(p.Phone),
		}
	}
	if req.ParticipantsCount > 0 && len(participants) > req.ParticipantsCount {
		participants = participants[:req.ParticipantsCount]
	}
	req.Participants = participants
	if req.ParticipantsCount <= 0 {
		req.ParticipantsCount = len(participants)
	}
	return req
}

// Validate checks a normalized request.
func Validate(req models.BookingRequest) error {
	var errs ValidationErrors
	add := func(field, msg string) { errs = append(errs, FieldError{Field: field, Message: msg}) }

	if req.SlotID == "" {
		add("slot_id", MsgSlot)
	}
	count := req.ParticipantsCount
	if count < 1 || count > models.MaxParticipants {
		add("participants_count", MsgCount)
	}

	switch {
	case req.ContactEmail == "":
		add("contact_email", MsgEmail)
	case !emailRe.MatchString(req.ContactEmail):
		add("contact_email", MsgEmailFormat)
	}
	switch {
	case req.ContactPhone == "":
		add("contact_phone", MsgPhone)
	case !phoneRe.MatchString(req.ContactPhone):
		add("contact_phone", MsgPhoneFormat)
	}
	if !req.AGBAccepted || !req.PrivacyAccepted {
		add("consent", MsgConsent)
	}

	if count >= 1 && count <= models.MaxParticipants {
		for i := 0; i < count; i++ {
			field := fmt.Sprintf("participants.%d", i)
			if i >= len(req.Participants) {
				add(field, fmt.Sprintf(msgParticipant, i+1))
				continue
			}
			p := req.Participants[i]
			if p.FirstName == "" || p.LastName == "" || p.Street == "" || p.HouseNo == "" || p.Zip == "" || p.City == "" {
				add(field, fmt.Sprintf(msgParticipant, i+1))
				continue
			}
			if !zipRe.MatchString(p.Zip) {
				add(field+".zip", fmt.Sprintf(msgParticipantZip, i+1))
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
