package availability

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Miketheless/workshopneu/internal/models"
)

// RawSlot is one slot record as the backend delivers it. Field naming varies
// between sheet versions: "date" vs "slot_id", flat vs nested under "slot".
type RawSlot map[string]any

// Normalize coerces a raw record into a Slot. It never fails: an unparsable
// date is passed through as the id and reported by Valid.
func Normalize(raw RawSlot, defaultCapacity int) models.Slot {
	flat := flatten(raw)

	id := pickDateField(flat)
	canonical := Canonical(id)

	capacity, ok := toInt(flat["capacity"])
	if !ok {
		capacity = defaultCapacity
	}
	booked, _ := toInt(flat["booked"])

	slot := models.Slot{
		ID:       canonical,
		Date:     canonical,
		Start:    toString(flat["start"]),
		End:      toString(flat["end"]),
		Capacity: clampNonNegative(capacity),
		Booked:   clampNonNegative(booked),
		Status:   models.SlotStatus(strings.ToUpper(strings.TrimSpace(toString(flat["status"])))),
	}
	if slot.Status == "" {
		slot.Status = models.SlotOpen
	}
	// start may have carried the ISO timestamp the id came from
	if strings.Contains(slot.Start, "T") {
		slot.Start = clockOf(slot.Start)
	}
	if strings.Contains(slot.End, "T") {
		slot.End = clockOf(slot.End)
	}
	return slot
}

// Valid reports whether the slot id is a canonical calendar date.
func Valid(slot models.Slot) bool {
	d := ParseDate(slot.ID)
	return d.Valid() && d.String() == slot.ID
}

// Dedupe collapses records sharing an id, keeping the first record's fields
// and the maximum booked count. Input order of first occurrences is kept.
func Dedupe(slots []models.Slot) []models.Slot {
	index := make(map[string]int, len(slots))
	out := make([]models.Slot, 0, len(slots))
	for _, s := range slots {
		if i, ok := index[s.ID]; ok {
			if s.Booked > out[i].Booked {
				out[i].Booked = s.Booked
			}
			continue
		}
		index[s.ID] = len(out)
		out = append(out, s)
	}
	return out
}

// IsFuture reports date >= today at day granularity. Invalid ids are never future.
func IsFuture(slot models.Slot, today time.Time) bool {
	d := ParseDate(slot.ID)
	if !d.Valid() {
		return false
	}
	return !d.Before(DateOf(today))
}

// FreeCount is max(0, capacity-booked).
func FreeCount(slot models.Slot) int {
	return slot.Free()
}

// Bookable reports a future, open slot with at least one free seat.
func Bookable(slot models.Slot, today time.Time) bool {
	return BookableFor(slot, today, 1)
}

// BookableFor reports whether n participants fit into the slot.
func BookableFor(slot models.Slot, today time.Time, n int) bool {
	if n < 1 {
		n = 1
	}
	if slot.Status == models.SlotFull || slot.Status == models.SlotCancelled {
		return false
	}
	return IsFuture(slot, today) && FreeCount(slot) >= n
}

// SortByDate orders slots by id then start time.
func SortByDate(slots []models.Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].ID == slots[j].ID {
			return slots[i].Start < slots[j].Start
		}
		return slots[i].ID < slots[j].ID
	})
}

// Future keeps slots on or after today.
func Future(slots []models.Slot, today time.Time) []models.Slot {
	out := make([]models.Slot, 0, len(slots))
	for _, s := range slots {
		if IsFuture(s, today) {
			out = append(out, s)
		}
	}
	return out
}

// BookableSlots keeps slots that accept at least one participant.
func BookableSlots(slots []models.Slot, today time.Time) []models.Slot {
	out := make([]models.Slot, 0, len(slots))
	for _, s := range slots {
		if Valid(s) && Bookable(s, today) {
			out = append(out, s)
		}
	}
	return out
}

// MaxParticipants clamps a requested count against the slot's free seats.
func MaxParticipants(slot models.Slot, requested int) int {
	limit := FreeCount(slot)
	if limit > models.MaxParticipants {
		limit = models.MaxParticipants
	}
	if requested > limit {
		requested = limit
	}
	if requested < 1 {
		requested = 1
	}
	return requested
}

func flatten(raw RawSlot) map[string]any {
	flat := make(map[string]any, len(raw))
	for k, v := range raw {
		flat[strings.ToLower(k)] = v
	}
	for _, key := range []string{"slot", "time"} {
		nested, ok := flat[key].(map[string]any)
		if !ok {
			continue
		}
		for k, v := range nested {
			k = strings.ToLower(k)
			if _, exists := flat[k]; !exists {
				flat[k] = v
			}
		}
	}
	return flat
}

func pickDateField(flat map[string]any) string {
	var candidates []string
	for _, key := range []string{"date", "slot_id", "id", "datetime", "start_time", "start"} {
		if v := strings.TrimSpace(toString(flat[key])); v != "" {
			candidates = append(candidates, v)
		}
	}
	for _, c := range candidates {
		if ParseDate(c).Valid() {
			return c
		}
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return ""
}

func clockOf(iso string) string {
	i := strings.IndexByte(iso, 'T')
	rest := iso[i+1:]
	if len(rest) >= 5 {
		return rest[:5]
	}
	return rest
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return int(t), true
	case int:
		return t, true
	case int64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func clampNonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
