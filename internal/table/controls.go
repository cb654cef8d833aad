package table

import "github.com/Miketheless/workshopneu/internal/models"

// Action is the single status action offered for a booking row.
type Action string

const (
	ActionCancel  Action = "cancel"
	ActionRestore Action = "restore"
)

// Controls is what a row renders as interactive.
type Controls struct {
	FlagsEnabled bool
	Action       Action
}

// RowControls disables flag editing on cancelled bookings and offers
// restore instead of cancel.
func RowControls(b models.Booking) Controls {
	if b.Status == models.StatusCancelled {
		return Controls{Action: ActionRestore}
	}
	return Controls{FlagsEnabled: true, Action: ActionCancel}
}

// Label is the button text.
func (a Action) Label() string {
	if a == ActionRestore {
		return "Wiederherstellen"
	}
	return "Stornieren"
}
