package availability

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Miketheless/workshopneu/internal/config"
	"github.com/Miketheless/workshopneu/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendar_February2026(t *testing.T) {
	slots := []models.Slot{{ID: "2026-02-25", Capacity: 8, Status: models.SlotOpen}}
	now := time.Date(2026, 2, 20, 8, 0, 0, 0, time.UTC)

	weeks := Calendar(2026, time.February, slots, now)
	require.Len(t, weeks, 5)
	for _, w := range weeks {
		assert.Len(t, w, 7)
	}

	// 1 Feb 2026 is a Sunday
	assert.Equal(t, 0, weeks[0][5].Day)
	assert.Equal(t, 1, weeks[0][6].Day)
	assert.True(t, weeks[0][6].Past)

	// 25 Feb is the Wednesday of the fifth row
	cell := weeks[4][2]
	assert.Equal(t, 25, cell.Day)
	require.NotNil(t, cell.Slot)
	assert.True(t, cell.Bookable)
	assert.Equal(t, 0, weeks[4][6].Day)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "Mittwoch, 25.02.2026", FormatLong("2026-02-25"))
	assert.Equal(t, "25.02.2026", FormatShort("2026-02-25"))
	assert.Equal(t, "kaputt", FormatShort("kaputt"))
	assert.Equal(t, "Jänner 2026", MonthLabel("2026-01"))
	assert.Equal(t, "Februar 2026", MonthLabel("2026-02"))
	assert.Equal(t, "1 Person", PersonLabel(1))
	assert.Equal(t, "3 Personen", PersonLabel(3))
}

func TestBadge(t *testing.T) {
	tests := []struct {
		free  int
		class string
		label string
	}{
		{0, BadgeFull, "Ausgebucht"},
		{1, BadgeFew, "1 Platz"},
		{2, BadgeFew, "2 Plätze"},
		{5, BadgeAvailable, "5 Plätze"},
	}
	for _, tt := range tests {
		class, label := Badge(tt.free)
		assert.Equal(t, tt.class, class)
		assert.Equal(t, tt.label, label)
	}
}

func TestMonthsAndFilter(t *testing.T) {
	slots := []models.Slot{{ID: "2026-04-04"}, {ID: "2026-03-07"}, {ID: "2026-03-14"}}
	assert.Equal(t, []string{"2026-03", "2026-04"}, Months(slots))
	assert.Len(t, FilterMonth(slots, "2026-03"), 2)
	assert.Len(t, FilterMonth(slots, ""), 3)
}

func TestScheduleFromConfig(t *testing.T) {
	cfg := config.ScheduleConfig{StaticDates: []string{"2026-03-14", "2026-03-07"}, CourseStart: "09:00", CourseEnd: "15:00", DefaultCapacity: 8}
	s, err := ScheduleFromConfig(cfg)
	require.NoError(t, err)
	slots := s.Slots()
	require.Len(t, slots, 2)
	assert.Equal(t, "2026-03-07", slots[0].ID)

	path := filepath.Join(t.TempDir(), "schedule.yaml")
	require.NoError(t, os.WriteFile(path, []byte("schedule:\n  dates: [\"2026-05-01\"]\n  capacity: 10\n"), 0o644))
	cfg.File = path
	s, err = ScheduleFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-05-01"}, s.Dates)
	assert.Equal(t, 10, s.Capacity)
	assert.Equal(t, "09:00", s.Start)

	require.NoError(t, os.WriteFile(path, []byte("schedule:\n  dates: [\"01.05.2026\"]\n"), 0o644))
	_, err = ScheduleFromConfig(cfg)
	assert.Error(t, err)
}
