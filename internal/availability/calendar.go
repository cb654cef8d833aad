package availability

import (
	"fmt"
	"time"

	"github.com/Miketheless/workshopneu/internal/models"
)

// CalendarDay is one cell of a month grid. Padding cells have Day == 0.
type CalendarDay struct {
	Day      int
	Date     string
	Slot     *models.Slot
	Bookable bool
	Past     bool
}

// Weekdays is the Monday-first header of the calendar grid.
var Weekdays = []string{"Mo", "Di", "Mi", "Do", "Fr", "Sa", "So"}

// Calendar builds a Monday-first grid of weeks for the given month and
// attaches the slot of each day, if any.
func Calendar(year int, month time.Month, slots []models.Slot, today time.Time) [][]CalendarDay {
	byDate := make(map[string]models.Slot, len(slots))
	for _, s := range slots {
		byDate[s.ID] = s
	}

	firstDay := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := int(firstDay.Weekday()) - 1
	if offset < 0 {
		offset = 6 // Sunday
	}
	days := daysIn(month, year)
	todayDate := DateOf(today)

	var weeks [][]CalendarDay
	week := make([]CalendarDay, 0, 7)
	for i := 0; i < offset; i++ {
		week = append(week, CalendarDay{})
	}
	for day := 1; day <= days; day++ {
		dateStr := fmt.Sprintf("%04d-%02d-%02d", year, int(month), day)
		cell := CalendarDay{
			Day:  day,
			Date: dateStr,
			Past: ParseDate(dateStr).Before(todayDate),
		}
		if s, ok := byDate[dateStr]; ok {
			slot := s
			cell.Slot = &slot
			cell.Bookable = Bookable(slot, today)
		}
		week = append(week, cell)
		if len(week) == 7 {
			weeks = append(weeks, week)
			week = make([]CalendarDay, 0, 7)
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, CalendarDay{})
		}
		weeks = append(weeks, week)
	}
	return weeks
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
