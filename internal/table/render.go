package table

import (
	"strconv"
	"strings"
	"time"
)

// Cell renders the display text of column c for r. Blank cells are "".
func (c Column[R]) Cell(r R, loc *time.Location) string {
	v := c.Value(r)
	switch c.Kind {
	case KindDate:
		s := strings.TrimSpace(textOf(v))
		if s == "" {
			return ""
		}
		if c.Key == "timestamp" || c.Key == "cancelled_at" {
			return FormatTimestamp(s, loc)
		}
		return FormatDate(s)
	case KindFlag:
		return FormatFlag(flagOf(v))
	case KindCount:
		n := countOf(v)
		if n == 0 {
			return ""
		}
		return strconv.Itoa(n)
	default:
		return textOf(v)
	}
}

// Headers lists the column labels.
func (s Schema[R]) Headers() []string {
	out := make([]string, len(s.columns))
	for i, c := range s.columns {
		out[i] = c.Label
	}
	return out
}

// Record renders every column of r.
func (s Schema[R]) Record(r R, loc *time.Location) []string {
	out := make([]string, len(s.columns))
	for i, c := range s.columns {
		out[i] = c.Cell(r, loc)
	}
	return out
}

// Records renders all rows.
func Records[R any](schema Schema[R], rows []R, loc *time.Location) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = schema.Record(r, loc)
	}
	return out
}
