package conditions

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/diwise/alert-engine/pkg/types"
)

var ErrInvalidSchedule = errors.New("invalid schedule")

const minutesPerDay = 24 * 60

// InWindow reports whether t falls within the schedule. A nil schedule covers
// all time. Start and end are inclusive and an end before the start wraps past
// midnight. A schedule that cannot be interpreted is never in window.
func InWindow(s *types.Schedule, t time.Time) (bool, error) {
	if s == nil {
		return true, nil
	}

	loc := time.UTC
	if s.Timezone != "" {
		l, err := time.LoadLocation(s.Timezone)
		if err != nil {
			return false, fmt.Errorf("%w: unknown timezone %q", ErrInvalidSchedule, s.Timezone)
		}
		loc = l
	}

	local := t.In(loc)

	if len(s.DaysOfWeek) > 0 {
		today := int(local.Weekday())
		found := false
		for _, d := range s.DaysOfWeek {
			if d == today {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}

	start, err := minuteOfDay(s.StartTime, 0)
	if err != nil {
		return false, err
	}

	end, err := minuteOfDay(s.EndTime, minutesPerDay-1)
	if err != nil {
		return false, err
	}

	now := local.Hour()*60 + local.Minute()

	if start <= end {
		return now >= start && now <= end, nil
	}

	return now >= start || now <= end, nil
}

func ValidateSchedule(s *types.Schedule) error {
	if s == nil {
		return nil
	}

	for _, d := range s.DaysOfWeek {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: day of week %d is out of range", ErrInvalidSchedule, d)
		}
	}

	_, err := InWindow(s, time.Now())
	return err
}

func minuteOfDay(clock string, def int) (int, error) {
	if clock == "" {
		return def, nil
	}

	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, clock); err == nil {
			return t.Hour()*60 + t.Minute(), nil
		}
	}

	return 0, fmt.Errorf("%w: time of day %q is not HH:MM", ErrInvalidSchedule, clock)
}
