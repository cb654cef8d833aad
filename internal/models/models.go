package models

// SortDirection is asc or desc.
type SortDirection string

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"
)

// SortSpec is the transient sort state of one rendered table.
type SortSpec struct {
	Column    string        `json:"column"`
	Direction SortDirection `json:"direction"`
}

// ViewState is the per-session admin UI state kept between requests.
type ViewState struct {
	SessionID    string   `json:"session_id"`
	Bookings     SortSpec `json:"bookings"`
	Participants SortSpec `json:"participants"`
	Month        string   `json:"month,omitempty"`
}

// DefaultViewState mirrors the initial dashboard sort order.
func DefaultViewState(sessionID string) *ViewState {
	return &ViewState{
		SessionID:    sessionID,
		Bookings:     SortSpec{Column: "timestamp", Direction: Desc},
		Participants: SortSpec{Column: "booking_id", Direction: Asc},
	}
}
