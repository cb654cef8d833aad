package table

import (
	"fmt"
	"strings"
	"time"

	"github.com/Miketheless/workshopneu/internal/availability"
)

// Empty is shown for blank cells.
const Empty = "–"

// FormatDate renders a date cell as DD.MM.YYYY; unparsable input is
// returned unchanged.
func FormatDate(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return Empty
	}
	d := availability.ParseDate(raw)
	if !d.Valid() {
		return raw
	}
	return fmt.Sprintf("%02d.%02d.%04d", d.Day, int(d.Month), d.Year)
}

// FormatTimestamp renders a timestamp cell as "DD.MM.YYYY, HH:MM" in loc.
func FormatTimestamp(raw string, loc *time.Location) string {
	if strings.TrimSpace(raw) == "" {
		return Empty
	}
	ms := EpochMillis(raw)
	if ms == 0 {
		return raw
	}
	if loc == nil {
		loc = time.UTC
	}
	return time.UnixMilli(ms).In(loc).Format("02.01.2006, 15:04")
}

// FormatFlag renders a checkbox cell for exports.
func FormatFlag(v bool) string {
	if v {
		return "ja"
	}
	return "nein"
}
