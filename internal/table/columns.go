// Package table sorts, projects and edits the admin booking tables.
package table

import (
	"errors"
	"strings"

	"github.com/Miketheless/workshopneu/internal/models"
)

var (
	ErrUnknownColumn = errors.New("unknown column")
	ErrNotEditable   = errors.New("field is not editable")
	ErrRowDisabled   = errors.New("booking is cancelled")
	ErrInvalidDate   = errors.New("invalid date")
)

// Kind selects how a column's values compare.
type Kind int

const (
	KindAuto Kind = iota
	KindText
	KindDate
	KindCount
	KindFlag
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindDate:
		return "date"
	case KindCount:
		return "count"
	case KindFlag:
		return "flag"
	default:
		return "auto"
	}
}

var countColumns = map[string]bool{
	"participants_count": true,
	"participant_nr":     true,
}

// KindFor derives the comparison kind from a column name.
func KindFor(name string) Kind {
	switch {
	case strings.HasSuffix(name, "_date"), models.IsDateField(name),
		name == "timestamp", name == "cancelled_at", name == "slot_id", name == "birthdate":
		return KindDate
	case countColumns[name]:
		return KindCount
	case models.IsCheckboxField(name):
		return KindFlag
	default:
		return KindText
	}
}

// Column describes one sortable, displayable column of records R.
type Column[R any] struct {
	Key   string
	Label string
	Kind  Kind
	Value func(R) any
}

// Schema is the column metadata table consulted by the generic comparator.
type Schema[R any] struct {
	columns []Column[R]
	index   map[string]int
}

// NewSchema indexes columns; KindAuto is resolved by name.
func NewSchema[R any](cols ...Column[R]) Schema[R] {
	s := Schema[R]{columns: make([]Column[R], len(cols)), index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if c.Kind == KindAuto {
			c.Kind = KindFor(c.Key)
		}
		s.columns[i] = c
		s.index[c.Key] = i
	}
	return s
}

// Column looks up a column by key.
func (s Schema[R]) Column(key string) (Column[R], bool) {
	i, ok := s.index[key]
	if !ok {
		return Column[R]{}, false
	}
	return s.columns[i], true
}

// Columns returns the columns in display order.
func (s Schema[R]) Columns() []Column[R] {
	return s.columns
}

// BookingColumns is the schema of the bookings table.
var BookingColumns = NewSchema(
	Column[models.Booking]{Key: "booking_id", Label: "Buchungs-ID", Value: func(b models.Booking) any { return b.BookingID }},
	Column[models.Booking]{Key: "timestamp", Label: "Buchungsdatum", Value: func(b models.Booking) any { return b.Timestamp }},
	Column[models.Booking]{Key: "slot_id", Label: "Kurstermin", Value: func(b models.Booking) any { return b.SlotID }},
	Column[models.Booking]{Key: "contact_email", Label: "E-Mail", Value: func(b models.Booking) any { return b.ContactEmail }},
	Column[models.Booking]{Key: "contact_phone", Label: "Telefon", Value: func(b models.Booking) any { return b.ContactPhone }},
	Column[models.Booking]{Key: "participants_count", Label: "Teilnehmer", Value: func(b models.Booking) any { return b.Count() }},
	Column[models.Booking]{Key: "status", Label: "Status", Value: func(b models.Booking) any { return string(b.Status) }},
	Column[models.Booking]{Key: "cancelled_at", Label: "Storniert am", Value: func(b models.Booking) any { return b.CancelledAt }},
	Column[models.Booking]{Key: models.FieldInvoiceSent, Label: "Rechnung", Value: func(b models.Booking) any { return bool(b.InvoiceSent) }},
	Column[models.Booking]{Key: models.FieldInvoiceSentGmbH, Label: "Rechnung GmbH", Value: func(b models.Booking) any { return bool(b.InvoiceSentGmbH) }},
	Column[models.Booking]{Key: models.FieldInvoiceSentClub, Label: "Rechnung Club", Value: func(b models.Booking) any { return bool(b.InvoiceSentClub) }},
	Column[models.Booking]{Key: models.FieldPaidDate, Label: "Bezahlt am", Value: func(b models.Booking) any { return b.PaidDate }},
	Column[models.Booking]{Key: models.FieldPaidDateGmbH, Label: "Bezahlt GmbH", Value: func(b models.Booking) any { return b.PaidDateGmbH }},
	Column[models.Booking]{Key: models.FieldPaidDateClub, Label: "Bezahlt Club", Value: func(b models.Booking) any { return b.PaidDateClub }},
	Column[models.Booking]{Key: models.FieldAppeared, Label: "Erschienen", Value: func(b models.Booking) any { return bool(b.Appeared) }},
	Column[models.Booking]{Key: models.FieldMembershipForm, Label: "Mitgliedsantrag", Value: func(b models.Booking) any { return bool(b.MembershipForm) }},
	Column[models.Booking]{Key: models.FieldDSGVOForm, Label: "DSGVO", Value: func(b models.Booking) any { return bool(b.DSGVOForm) }},
)

// ParticipantColumns is the schema of the flattened participants table.
var ParticipantColumns = NewSchema(
	Column[models.ParticipantRow]{Key: "booking_id", Label: "Buchungs-ID", Value: func(r models.ParticipantRow) any { return r.BookingID }},
	Column[models.ParticipantRow]{Key: "slot_id", Label: "Kurstermin", Value: func(r models.ParticipantRow) any { return r.SlotID }},
	Column[models.ParticipantRow]{Key: "participant_nr", Label: "Nr.", Value: func(r models.ParticipantRow) any { return r.ParticipantNr }},
	Column[models.ParticipantRow]{Key: "full_name", Label: "Name", Value: func(r models.ParticipantRow) any { return r.FullName }},
	Column[models.ParticipantRow]{Key: "full_address", Label: "Adresse", Value: func(r models.ParticipantRow) any { return r.FullAddress }},
	Column[models.ParticipantRow]{Key: "first_name", Label: "Vorname", Value: func(r models.ParticipantRow) any { return r.FirstName }},
	Column[models.ParticipantRow]{Key: "last_name", Label: "Nachname", Value: func(r models.ParticipantRow) any { return r.LastName }},
	Column[models.ParticipantRow]{Key: "street", Label: "Straße", Value: func(r models.ParticipantRow) any { return r.Street }},
	Column[models.ParticipantRow]{Key: "house_no", Label: "Hausnr.", Value: func(r models.ParticipantRow) any { return r.HouseNo }},
	Column[models.ParticipantRow]{Key: "zip", Label: "PLZ", Value: func(r models.ParticipantRow) any { return r.Zip }},
	Column[models.ParticipantRow]{Key: "city", Label: "Ort", Value: func(r models.ParticipantRow) any { return r.City }},
	Column[models.ParticipantRow]{Key: "birthdate", Label: "Geburtsdatum", Kind: KindDate, Value: func(r models.ParticipantRow) any { return r.Birthdate }},
	Column[models.ParticipantRow]{Key: "contact_email", Label: "E-Mail", Value: func(r models.ParticipantRow) any { return r.ContactEmail }},
	Column[models.ParticipantRow]{Key: "booking_status", Label: "Status", Value: func(r models.ParticipantRow) any { return string(r.BookingStatus) }},
	Column[models.ParticipantRow]{Key: models.FieldInvoiceSent, Label: "Rechnung", Value: func(r models.ParticipantRow) any { return r.InvoiceSent }},
	Column[models.ParticipantRow]{Key: models.FieldInvoiceSentGmbH, Label: "Rechnung GmbH", Value: func(r models.ParticipantRow) any { return r.InvoiceSentGmbH }},
	Column[models.ParticipantRow]{Key: models.FieldInvoiceSentClub, Label: "Rechnung Club", Value: func(r models.ParticipantRow) any { return r.InvoiceSentClub }},
	Column[models.ParticipantRow]{Key: models.FieldPaidDate, Label: "Bezahlt am", Value: func(r models.ParticipantRow) any { return r.PaidDate }},
	Column[models.ParticipantRow]{Key: models.FieldPaidDateGmbH, Label: "Bezahlt GmbH", Value: func(r models.ParticipantRow) any { return r.PaidDateGmbH }},
	Column[models.ParticipantRow]{Key: models.FieldPaidDateClub, Label: "Bezahlt Club", Value: func(r models.ParticipantRow) any { return r.PaidDateClub }},
	Column[models.ParticipantRow]{Key: models.FieldAppeared, Label: "Erschienen", Value: func(r models.ParticipantRow) any { return r.Appeared }},
	Column[models.ParticipantRow]{Key: models.FieldMembershipForm, Label: "Mitgliedsantrag", Value: func(r models.ParticipantRow) any { return r.MembershipForm }},
	Column[models.ParticipantRow]{Key: models.FieldDSGVOForm, Label: "DSGVO", Value: func(r models.ParticipantRow) any { return r.DSGVOForm }},
)
