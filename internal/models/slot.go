package models

// Slot is one bookable course date.
type Slot struct {
	ID       string     `json:"slot_id"`
	Date     string     `json:"date"`
	Start    string     `json:"start"`
	End      string     `json:"end"`
	Capacity int        `json:"capacity"`
	Booked   int        `json:"booked"`
	Status   SlotStatus `json:"status"`
}

// Free returns the remaining seats, never negative.
func (s Slot) Free() int {
	if free := s.Capacity - s.Booked; free > 0 {
		return free
	}
	return 0
}

// Month returns the YYYY-MM prefix of the slot id.
func (s Slot) Month() string {
	if len(s.ID) < 7 {
		return ""
	}
	return s.ID[:7]
}
