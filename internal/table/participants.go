package table

import "github.com/Miketheless/workshopneu/internal/models"

// ExpandParticipants flattens bookings into one row per participant.
// A booking without participants yields a single placeholder row so it
// stays visible in the participants table.
func ExpandParticipants(bookings []models.Booking) []models.ParticipantRow {
	rows := make([]models.ParticipantRow, 0, len(bookings))
	for _, b := range bookings {
		base := models.ParticipantRow{
			BookingID:       b.BookingID,
			BookingStatus:   b.Status,
			SlotID:          b.SlotID,
			Timestamp:       b.Timestamp,
			ContactEmail:    b.ContactEmail,
			ContactPhone:    b.ContactPhone,
			InvoiceSent:     bool(b.InvoiceSent),
			InvoiceSentGmbH: bool(b.InvoiceSentGmbH),
			InvoiceSentClub: bool(b.InvoiceSentClub),
			Appeared:        bool(b.Appeared),
			MembershipForm:  bool(b.MembershipForm),
			DSGVOForm:       bool(b.DSGVOForm),
			PaidDate:        b.PaidDate,
			PaidDateGmbH:    b.PaidDateGmbH,
			PaidDateClub:    b.PaidDateClub,
		}
		if len(b.Participants) == 0 {
			base.Placeholder = true
			rows = append(rows, base)
			continue
		}
		for i, p := range b.Participants {
			row := base
			row.ParticipantNr = i + 1
			row.FirstName = p.FirstName
			row.LastName = p.LastName
			row.Street = p.Street
			row.HouseNo = p.HouseNo
			row.Zip = p.Zip
			row.City = p.City
			row.Birthdate = p.Birthdate
			row.FullName = p.FullName()
			row.FullAddress = p.FullAddress()
			rows = append(rows, row)
		}
	}
	return rows
}
