package schedule

import (
	"fmt"
	"math"
	"time"
)

// TimeSlot is a kickoff time with a desirability weight. Higher weights are
// more desirable.
type TimeSlot struct {
	Label  string  `json:"label" yaml:"label" koanf:"label"` // "19:00", "20:00", etc.
	Weight float64 `json:"weight" yaml:"weight" koanf:"weight"`
}

// Offset returns the slot's time of day as a duration past midnight.
func (s TimeSlot) Offset() (time.Duration, error) {
	t, err := time.Parse("15:04", s.Label)
	if err != nil {
		return 0, fmt.Errorf("time slot %q: expected HH:MM", s.Label)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// On returns the kickoff instant for the slot on the given matchday.
func (s TimeSlot) On(day time.Time) time.Time {
	off, err := s.Offset()
	if err != nil {
		return civil(day)
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, day.Location()).Add(off)
}

// SlotTable lists the time slots of a matchday, most desirable first.
type SlotTable []TimeSlot

// DefaultSlots is the evening table used when no slots are configured.
func DefaultSlots() SlotTable {
	return SlotTable{
		{Label: "19:00", Weight: 4},
		{Label: "20:00", Weight: 3},
		{Label: "18:00", Weight: 2},
		{Label: "21:00", Weight: 1},
	}
}

func (t SlotTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("at least one time slot is required")
	}
	seen := make(map[string]bool, len(t))
	for i, s := range t {
		if _, err := s.Offset(); err != nil {
			return err
		}
		if seen[s.Label] {
			return fmt.Errorf("time slot %q listed more than once", s.Label)
		}
		seen[s.Label] = true
		if math.IsNaN(s.Weight) || math.IsInf(s.Weight, 0) || s.Weight < 0 {
			return fmt.Errorf("time slot %q: weight must be a non-negative number", s.Label)
		}
		if i > 0 && s.Weight > t[i-1].Weight {
			return fmt.Errorf("time slot %q: slots must be ordered from most to least desirable", s.Label)
		}
	}
	return nil
}

// Mean returns the average weight of the table.
func (t SlotTable) Mean() float64 {
	if len(t) == 0 {
		return 0
	}
	var sum float64
	for _, s := range t {
		sum += s.Weight
	}
	return sum / float64(len(t))
}

// Labels returns the slot labels in table order.
func (t SlotTable) Labels() []string {
	out := make([]string, len(t))
	for i, s := range t {
		out[i] = s.Label
	}
	return out
}
