package table

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Miketheless/workshopneu/internal/availability"
	"github.com/Miketheless/workshopneu/internal/models"
)

// Sort returns a stably sorted copy of records. Ties keep input order in
// both directions.
func Sort[R any](records []R, schema Schema[R], spec models.SortSpec) ([]R, error) {
	col, ok := schema.Column(spec.Column)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, spec.Column)
	}

	keys := make([]sortKey, len(records))
	for i, r := range records {
		keys[i] = keyOf(col.Kind, col.Value(r))
	}

	order := make([]int, len(records))
	for i := range order {
		order[i] = i
	}
	desc := spec.Direction == models.Desc
	sort.SliceStable(order, func(i, j int) bool {
		c := keys[order[i]].compare(keys[order[j]])
		if desc {
			return c > 0
		}
		return c < 0
	})

	out := make([]R, len(records))
	for i, idx := range order {
		out[i] = records[idx]
	}
	return out, nil
}

// ToggleSort flips the direction when the same column is clicked again and
// otherwise switches to the clicked column ascending.
func ToggleSort(current models.SortSpec, clicked string) models.SortSpec {
	if clicked == current.Column {
		if current.Direction == models.Asc {
			return models.SortSpec{Column: clicked, Direction: models.Desc}
		}
		return models.SortSpec{Column: clicked, Direction: models.Asc}
	}
	return models.SortSpec{Column: clicked, Direction: models.Asc}
}

// SortIcon is the header marker for column under spec.
func SortIcon(column string, spec models.SortSpec) string {
	if column != spec.Column {
		return "⇅"
	}
	if spec.Direction == models.Desc {
		return "↓"
	}
	return "↑"
}

type sortKey struct {
	numeric bool
	n       int64
	s       string
}

func (a sortKey) compare(b sortKey) int {
	if a.numeric {
		switch {
		case a.n < b.n:
			return -1
		case a.n > b.n:
			return 1
		}
		return 0
	}
	return strings.Compare(a.s, b.s)
}

func keyOf(kind Kind, v any) sortKey {
	switch kind {
	case KindDate:
		return sortKey{numeric: true, n: EpochMillis(v)}
	case KindCount:
		return sortKey{numeric: true, n: int64(countOf(v))}
	case KindFlag:
		if flagOf(v) {
			return sortKey{numeric: true, n: 1}
		}
		return sortKey{numeric: true}
	default:
		return sortKey{s: strings.ToLower(textOf(v))}
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
}

// EpochMillis converts a date or timestamp cell to epoch milliseconds.
// Missing or unparsable values are 0.
func EpochMillis(v any) int64 {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return 0
		}
		return t.UnixMilli()
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0
		}
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UnixMilli()
			}
		}
		if d := availability.ParseDate(s); d.Valid() {
			return d.Time(time.UTC).UnixMilli()
		}
	}
	return 0
}

func countOf(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case models.FlexInt:
		return int(t)
	case float64:
		return int(t)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

func flagOf(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case models.FlexBool:
		return bool(t)
	case string:
		b, _ := models.ParseFlag(t)
		return b
	}
	return false
}

func textOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
