package availability

import (
	"fmt"
	"os"

	"github.com/Miketheless/workshopneu/internal/config"
	"github.com/Miketheless/workshopneu/internal/models"

	"gopkg.in/yaml.v2"
)

// Schedule is the statically configured course calendar served when the
// backend cannot deliver live slots.
type Schedule struct {
	Dates    []string `yaml:"dates"`
	Start    string   `yaml:"start"`
	End      string   `yaml:"end"`
	Capacity int      `yaml:"capacity"`
}

// ScheduleFromConfig builds the schedule, preferring schedule.file when set.
func ScheduleFromConfig(cfg config.ScheduleConfig) (Schedule, error) {
	s := Schedule{
		Dates:    append([]string(nil), cfg.StaticDates...),
		Start:    cfg.CourseStart,
		End:      cfg.CourseEnd,
		Capacity: cfg.DefaultCapacity,
	}
	if cfg.File == "" {
		return s, nil
	}

	fromFile, err := LoadScheduleFile(cfg.File)
	if err != nil {
		return Schedule{}, err
	}
	if len(fromFile.Dates) > 0 {
		s.Dates = fromFile.Dates
	}
	if fromFile.Start != "" {
		s.Start = fromFile.Start
	}
	if fromFile.End != "" {
		s.End = fromFile.End
	}
	if fromFile.Capacity > 0 {
		s.Capacity = fromFile.Capacity
	}
	return s, nil
}

// LoadScheduleFile reads a YAML schedule:
//
//	schedule:
//	  dates: ["2026-02-25", ...]
//	  start: "09:00"
//	  end: "15:00"
//	  capacity: 8
func LoadScheduleFile(path string) (Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schedule{}, fmt.Errorf("read schedule file: %w", err)
	}

	var wrap struct {
		Schedule Schedule `yaml:"schedule"`
	}
	if err := yaml.Unmarshal(data, &wrap); err != nil {
		return Schedule{}, fmt.Errorf("parse schedule file: %w", err)
	}
	if err := config.ValidateDates(wrap.Schedule.Dates); err != nil {
		return Schedule{}, err
	}
	return wrap.Schedule, nil
}

// Slots renders every static date as an open slot with full capacity.
func (s Schedule) Slots() []models.Slot {
	capacity := s.Capacity
	if capacity <= 0 {
		capacity = models.DefaultCapacity
	}
	out := make([]models.Slot, 0, len(s.Dates))
	for _, d := range s.Dates {
		id := Canonical(d)
		out = append(out, models.Slot{
			ID:       id,
			Date:     id,
			Start:    s.Start,
			End:      s.End,
			Capacity: capacity,
			Status:   models.SlotOpen,
		})
	}
	SortByDate(out)
	return out
}
