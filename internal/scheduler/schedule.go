package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidTimeOfDay = errors.New("invalid_time_of_day")

// TimeOfDay is a wall clock time in the scheduler location.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay reads "HH:MM".
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, raw)
	}
	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// ParseTimesOfDay parses and sorts a list of "HH:MM" entries.
func ParseTimesOfDay(raw []string) ([]TimeOfDay, error) {
	out := make([]TimeOfDay, 0, len(raw))
	for _, entry := range raw {
		t, err := ParseTimeOfDay(entry)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hour != out[j].Hour {
			return out[i].Hour < out[j].Hour
		}
		return out[i].Minute < out[j].Minute
	})
	return out, nil
}

// nextDaily returns the first slot strictly after now.
func nextDaily(now time.Time, times []TimeOfDay, loc *time.Location) time.Time {
	local := now.In(loc)
	for day := 0; day < 2; day++ {
		base := local.AddDate(0, 0, day)
		for _, t := range times {
			slot := time.Date(base.Year(), base.Month(), base.Day(), t.Hour, t.Minute, 0, 0, loc)
			if slot.After(local) {
				return slot
			}
		}
	}
	// Empty schedule.
	return local.AddDate(0, 0, 1)
}
