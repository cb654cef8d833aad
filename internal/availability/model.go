package availability

import (
	"context"
	"errors"
	"time"

	"github.com/Miketheless/workshopneu/internal/logging"
	"github.com/Miketheless/workshopneu/internal/metrics"
	"github.com/Miketheless/workshopneu/internal/models"

	"github.com/rs/zerolog"
)

// SlotFetcher delivers raw slot records from the backend.
type SlotFetcher interface {
	FetchSlots(ctx context.Context) ([]map[string]any, error)
}

// Source tells where a snapshot's slots came from.
type Source string

const (
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
)

// FallbackReason explains why the static schedule was used.
type FallbackReason string

const (
	ReasonNone     FallbackReason = ""
	ReasonNetwork  FallbackReason = "network"
	ReasonEmpty    FallbackReason = "empty"
	ReasonNoFuture FallbackReason = "no_future"
)

// Snapshot is one loaded, normalized view of the slot list.
type Snapshot struct {
	Slots    []models.Slot
	Source   Source
	Reason   FallbackReason
	Cause    error
	Skipped  int
	LoadedAt time.Time
}

// Future returns slots on or after today.
func (s Snapshot) Future(today time.Time) []models.Slot {
	return Future(s.Slots, today)
}

// Bookable returns slots accepting at least one participant.
func (s Snapshot) Bookable(today time.Time) []models.Slot {
	return BookableSlots(s.Slots, today)
}

// Find returns the slot with id.
func (s Snapshot) Find(id string) (models.Slot, bool) {
	id = Canonical(id)
	for _, slot := range s.Slots {
		if slot.ID == id {
			return slot, true
		}
	}
	return models.Slot{}, false
}

// Model loads slots from the backend and degrades to the static schedule.
type Model struct {
	fetcher         SlotFetcher
	schedule        Schedule
	timeout         time.Duration
	defaultCapacity int
	logger          zerolog.Logger
}

// NewModel wires a model. timeout <= 0 defaults to 5s.
func NewModel(fetcher SlotFetcher, schedule Schedule, timeout time.Duration, logger *zerolog.Logger) *Model {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	capacity := schedule.Capacity
	if capacity <= 0 {
		capacity = models.DefaultCapacity
	}
	return &Model{
		fetcher:         fetcher,
		schedule:        schedule,
		timeout:         timeout,
		defaultCapacity: capacity,
		logger:          logging.Component(logger, "availability"),
	}
}

// Load fetches live slots under the model's deadline. Network errors,
// timeouts, an empty list or a list without future dates all yield the
// static schedule, marked as SourceFallback.
func (m *Model) Load(ctx context.Context, today time.Time) Snapshot {
	if m.fetcher == nil {
		return m.fallback(today, ReasonNetwork, errors.New("no backend configured"))
	}

	fetchCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	raw, err := m.fetcher.FetchSlots(fetchCtx)
	if err != nil {
		return m.fallback(today, ReasonNetwork, err)
	}
	if len(raw) == 0 {
		return m.fallback(today, ReasonEmpty, nil)
	}

	slots, skipped := m.Build(raw)
	if skipped > 0 {
		m.logger.Warn().Int("skipped", skipped).Msg("malformed slot records skipped")
	}
	if len(Future(slots, today)) == 0 {
		return m.fallback(today, ReasonNoFuture, nil)
	}

	metrics.IncSlotSource(string(SourceLive), "")
	return Snapshot{
		Slots:    slots,
		Source:   SourceLive,
		Skipped:  skipped,
		LoadedAt: time.Now(),
	}
}

// Build normalizes, drops malformed records, dedupes and sorts.
func (m *Model) Build(raw []map[string]any) ([]models.Slot, int) {
	normalized := make([]models.Slot, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		slot := Normalize(RawSlot(r), m.defaultCapacity)
		if !Valid(slot) {
			skipped++
			continue
		}
		normalized = append(normalized, slot)
	}
	slots := Dedupe(normalized)
	SortByDate(slots)
	return slots, skipped
}

func (m *Model) fallback(today time.Time, reason FallbackReason, cause error) Snapshot {
	ev := m.logger.Warn().Str("reason", string(reason))
	if cause != nil {
		ev = ev.Err(cause)
	}
	ev.Msg("serving static schedule")
	metrics.IncSlotSource(string(SourceFallback), string(reason))

	return Snapshot{
		Slots:    Future(m.schedule.Slots(), today),
		Source:   SourceFallback,
		Reason:   reason,
		Cause:    cause,
		LoadedAt: time.Now(),
	}
}
