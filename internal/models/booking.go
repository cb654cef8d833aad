package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Participant is a person attached to a booking.
type Participant struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Street    string `json:"street"`
	HouseNo   string `json:"house_no"`
	Zip       string `json:"zip"`
	City      string `json:"city"`
	Birthdate string `json:"birthdate,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// FullName joins first and last name.
func (p Participant) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// FullAddress renders "Street No, Zip City".
func (p Participant) FullAddress() string {
	return strings.TrimSpace(fmt.Sprintf("%s %s, %s %s", p.Street, p.HouseNo, p.Zip, p.City))
}

// Booking is a reservation as returned by admin_bookings.
type Booking struct {
	BookingID         string        `json:"booking_id"`
	Timestamp         string        `json:"timestamp"`
	SlotID            string        `json:"slot_id"`
	Status            BookingStatus `json:"status"`
	ContactEmail      string        `json:"contact_email"`
	ContactPhone      string        `json:"contact_phone"`
	ParticipantsCount FlexInt       `json:"participants_count"`
	Participants      []Participant `json:"participants"`
	CancelledAt       string        `json:"cancelled_at,omitempty"`
	VoucherCode       string        `json:"voucher_code,omitempty"`

	InvoiceSent     FlexBool `json:"invoice_sent"`
	InvoiceSentGmbH FlexBool `json:"invoice_sent_gmbh"`
	InvoiceSentClub FlexBool `json:"invoice_sent_club"`
	Appeared        FlexBool `json:"appeared"`
	MembershipForm  FlexBool `json:"membership_form"`
	DSGVOForm       FlexBool `json:"dsgvo_form"`
	PaidDate        string   `json:"paid_date"`
	PaidDateGmbH    string   `json:"paid_date_gmbh"`
	PaidDateClub    string   `json:"paid_date_club"`
}

// Count is the participant count. The participant list wins when present.
func (b Booking) Count() int {
	if len(b.Participants) > 0 {
		return len(b.Participants)
	}
	return int(b.ParticipantsCount)
}

// CountMismatch reports a reported count that disagrees with the list.
func (b Booking) CountMismatch() bool {
	return len(b.Participants) > 0 && int(b.ParticipantsCount) != len(b.Participants)
}

// IsConfirmed reports whether the booking is active.
func (b Booking) IsConfirmed() bool {
	return b.Status == StatusConfirmed
}

// Field returns the wire value of an administrative field.
func (b *Booking) Field(field string) (string, error) {
	if p := b.flag(field); p != nil {
		return strconv.FormatBool(bool(*p)), nil
	}
	if p := b.date(field); p != nil {
		return *p, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownField, field)
}

// SetField assigns an administrative field from its wire value.
func (b *Booking) SetField(field, value string) error {
	if p := b.flag(field); p != nil {
		v, err := ParseFlag(value)
		if err != nil {
			return fmt.Errorf("field %s: %w", field, err)
		}
		*p = FlexBool(v)
		return nil
	}
	if p := b.date(field); p != nil {
		*p = strings.TrimSpace(value)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownField, field)
}

func (b *Booking) flag(field string) *FlexBool {
	switch field {
	case FieldInvoiceSent:
		return &b.InvoiceSent
	case FieldInvoiceSentGmbH:
		return &b.InvoiceSentGmbH
	case FieldInvoiceSentClub:
		return &b.InvoiceSentClub
	case FieldAppeared:
		return &b.Appeared
	case FieldMembershipForm:
		return &b.MembershipForm
	case FieldDSGVOForm:
		return &b.DSGVOForm
	}
	return nil
}

func (b *Booking) date(field string) *string {
	switch field {
	case FieldPaidDate:
		return &b.PaidDate
	case FieldPaidDateGmbH:
		return &b.PaidDateGmbH
	case FieldPaidDateClub:
		return &b.PaidDateClub
	}
	return nil
}

// BookingRequest is the submission payload sent with action=book.
type BookingRequest struct {
	SlotID            string        `json:"slot_id"`
	ContactEmail      string        `json:"contact_email"`
	ContactPhone      string        `json:"contact_phone"`
	ParticipantsCount int           `json:"participants_count"`
	Participants      []Participant `json:"participants"`
	AGBAccepted       bool          `json:"agb_accepted"`
	PrivacyAccepted   bool          `json:"privacy_accepted"`
	VoucherCode       string        `json:"voucher_code,omitempty"`
}

// BookResult is the backend answer to a successful submission.
type BookResult struct {
	BookingID string
	// EmailSent is nil when the backend did not report it.
	EmailSent *bool
}

// ParticipantRow is one line of the flattened participants table.
type ParticipantRow struct {
	BookingID     string
	BookingStatus BookingStatus
	SlotID        string
	Timestamp     string
	ContactEmail  string
	ContactPhone  string
	ParticipantNr int
	Placeholder   bool

	FirstName   string
	LastName    string
	Street      string
	HouseNo     string
	Zip         string
	City        string
	Birthdate   string
	FullName    string
	FullAddress string

	InvoiceSent     bool
	InvoiceSentGmbH bool
	InvoiceSentClub bool
	Appeared        bool
	MembershipForm  bool
	DSGVOForm       bool
	PaidDate        string
	PaidDateGmbH    string
	PaidDateClub    string
}
