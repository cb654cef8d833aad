package availability

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Miketheless/workshopneu/internal/models"
)

var weekdayNames = []string{"Sonntag", "Montag", "Dienstag", "Mittwoch", "Donnerstag", "Freitag", "Samstag"}

var monthNames = []string{"Jänner", "Februar", "März", "April", "Mai", "Juni",
	"Juli", "August", "September", "Oktober", "November", "Dezember"}

// FormatLong renders "2026-02-25" as "Mittwoch, 25.02.2026".
func FormatLong(id string) string {
	d := ParseDate(id)
	if !d.Valid() {
		return id
	}
	wd := d.Time(nil).Weekday()
	return fmt.Sprintf("%s, %02d.%02d.%04d", weekdayNames[wd], d.Day, int(d.Month), d.Year)
}

// FormatShort renders "2026-02-25" as "25.02.2026".
func FormatShort(id string) string {
	d := ParseDate(id)
	if !d.Valid() {
		return id
	}
	return fmt.Sprintf("%02d.%02d.%04d", d.Day, int(d.Month), d.Year)
}

// MonthLabel renders "2026-02" as "Februar 2026".
func MonthLabel(month string) string {
	parts := strings.Split(month, "-")
	if len(parts) != 2 {
		return month
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 1 || m > 12 {
		return month
	}
	return fmt.Sprintf("%s %s", monthNames[m-1], parts[0])
}

// Months lists the distinct YYYY-MM months of slots in ascending order.
func Months(slots []models.Slot) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range slots {
		m := s.Month()
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// FilterMonth keeps slots of month; an empty month keeps everything.
func FilterMonth(slots []models.Slot, month string) []models.Slot {
	if month == "" {
		return slots
	}
	out := make([]models.Slot, 0, len(slots))
	for _, s := range slots {
		if s.Month() == month {
			out = append(out, s)
		}
	}
	return out
}

// Badge classes for the free-seat indicator.
const (
	BadgeAvailable = "available"
	BadgeFew       = "few"
	BadgeFull      = "full"
)

// Badge returns the CSS class and German label for free seats.
func Badge(free int) (class, label string) {
	switch {
	case free <= 0:
		return BadgeFull, "Ausgebucht"
	case free == 1:
		return BadgeFew, "1 Platz"
	case free <= 2:
		return BadgeFew, fmt.Sprintf("%d Plätze", free)
	default:
		return BadgeAvailable, fmt.Sprintf("%d Plätze", free)
	}
}

// PersonLabel renders "1 Person" / "N Personen".
func PersonLabel(n int) string {
	if n == 1 {
		return "1 Person"
	}
	return fmt.Sprintf("%d Personen", n)
}
