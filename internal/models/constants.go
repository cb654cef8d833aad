package models

// SlotStatus is the state a slot is reported in by the backend.
type SlotStatus string

const (
	SlotOpen      SlotStatus = "OPEN"
	SlotFull      SlotStatus = "FULL"
	SlotCancelled SlotStatus = "CANCELLED"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusConfirmed BookingStatus = "CONFIRMED"
	StatusCancelled BookingStatus = "CANCELLED"
)

// Administrative booking fields editable from the dashboard.
const (
	FieldInvoiceSent     = "invoice_sent"
	FieldInvoiceSentGmbH = "invoice_sent_gmbh"
	FieldInvoiceSentClub = "invoice_sent_club"
	FieldAppeared        = "appeared"
	FieldMembershipForm  = "membership_form"
	FieldDSGVOForm       = "dsgvo_form"
	FieldPaidDate        = "paid_date"
	FieldPaidDateGmbH    = "paid_date_gmbh"
	FieldPaidDateClub    = "paid_date_club"
)

const (
	// DefaultCapacity is the seat count assumed when a slot record carries none.
	DefaultCapacity = 8

	// MaxParticipants caps a single booking.
	MaxParticipants = 8

	// CourseStart and CourseEnd are the default course hours.
	CourseStart = "09:00"
	CourseEnd   = "15:00"

	// DateLayout is the canonical slot identifier layout.
	DateLayout = "2006-01-02"

	// SlotsCacheTTL is how long a slots response stays cached, in seconds
	SlotsCacheTTL = 60

	// ViewStateTTL is how long admin view state is kept, in seconds
	ViewStateTTL = 12 * 60 * 60

	// WorkerQueueSize bounds the in-memory sync queue
	WorkerQueueSize = 128

	// RateLimitRPS default requests per second per portal client
	RateLimitRPS = 5
)

// CheckboxFields lists the boolean administrative flags.
var CheckboxFields = []string{
	FieldInvoiceSent,
	FieldInvoiceSentGmbH,
	FieldInvoiceSentClub,
	FieldAppeared,
	FieldMembershipForm,
	FieldDSGVOForm,
}

// DateFields lists the editable date-valued administrative fields.
var DateFields = []string{
	FieldPaidDate,
	FieldPaidDateGmbH,
	FieldPaidDateClub,
}

// IsCheckboxField reports whether field is a boolean flag.
func IsCheckboxField(field string) bool {
	for _, f := range CheckboxFields {
		if f == field {
			return true
		}
	}
	return false
}

// IsDateField reports whether field is an editable date.
func IsDateField(field string) bool {
	for _, f := range DateFields {
		if f == field {
			return true
		}
	}
	return false
}
