package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date is the tagged result of parsing a slot date. The zero value is invalid.
type Date struct {
	Year  int
	Month time.Month
	Day   int
	valid bool
}

// Valid reports whether parsing succeeded.
func (d Date) Valid() bool { return d.valid }

// String renders the canonical YYYY-MM-DD form, or "" when invalid.
func (d Date) String() string {
	if !d.valid {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Time returns midnight of the date in loc.
func (d Date) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// Before compares at day granularity.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d, valid: true}
}

// ParseDate accepts YYYY-MM-DD, an ISO timestamp (truncated at 'T') and
// DD.MM.YYYY, in that order. It never panics; anything else is invalid.
func ParseDate(raw string) Date {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Date{}
	}

	if d, ok := parseISODay(s); ok {
		return d
	}
	if i := strings.IndexByte(s, 'T'); i > 0 {
		if d, ok := parseISODay(s[:i]); ok {
			return d
		}
	}
	if d, ok := parseGermanDay(s); ok {
		return d
	}
	return Date{}
}

// Canonical returns the YYYY-MM-DD id for raw, or raw unchanged when it cannot be parsed.
func Canonical(raw string) string {
	if d := ParseDate(raw); d.Valid() {
		return d.String()
	}
	return raw
}

func parseISODay(s string) (Date, bool) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 || len(parts[0]) != 4 || len(parts[1]) != 2 || len(parts[2]) != 2 {
		return Date{}, false
	}
	return build(parts[0], parts[1], parts[2])
}

func parseGermanDay(s string) (Date, bool) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 || len(parts[2]) != 4 || len(parts[0]) == 0 || len(parts[0]) > 2 || len(parts[1]) == 0 || len(parts[1]) > 2 {
		return Date{}, false
	}
	return build(parts[2], parts[1], parts[0])
}

func build(ys, ms, ds string) (Date, bool) {
	y, err := strconv.Atoi(ys)
	if err != nil {
		return Date{}, false
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m < 1 || m > 12 {
		return Date{}, false
	}
	d, err := strconv.Atoi(ds)
	if err != nil || d < 1 || d > 31 {
		return Date{}, false
	}
	// reject dates that time.Date would roll over (31.02. etc)
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || int(t.Month()) != m {
		return Date{}, false
	}
	return Date{Year: y, Month: time.Month(m), Day: d, valid: true}, true
}
