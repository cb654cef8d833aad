package table

import "github.com/Miketheless/workshopneu/internal/models"

// Stats summarises the bookings table for the dashboard header.
type Stats struct {
	Total        int
	Confirmed    int
	Cancelled    int
	Participants int
	Mismatches   int
}

// ComputeStats counts bookings by status. Participants sums only confirmed
// bookings.
func ComputeStats(bookings []models.Booking) Stats {
	var s Stats
	for _, b := range bookings {
		s.Total++
		if b.CountMismatch() {
			s.Mismatches++
		}
		switch b.Status {
		case models.StatusConfirmed:
			s.Confirmed++
			s.Participants += b.Count()
		case models.StatusCancelled:
			s.Cancelled++
		}
	}
	return s
}

// ParticipantSummary counts participant rows, excluding placeholders.
type ParticipantSummary struct {
	Rows      int
	Confirmed int
	Cancelled int
}

func SummarizeParticipants(rows []models.ParticipantRow) ParticipantSummary {
	s := ParticipantSummary{Rows: len(rows)}
	for _, r := range rows {
		if r.Placeholder {
			continue
		}
		if r.BookingStatus == models.StatusCancelled {
			s.Cancelled++
		} else {
			s.Confirmed++
		}
	}
	return s
}
