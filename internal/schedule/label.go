package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

// TimeLabel renders the time of day on a 12-hour clock, e.g. "9:05 AM".
func (s Spec) TimeLabel() string {
	h := s.Hour % 12
	if h == 0 {
		h = 12
	}
	suffix := "AM"
	if s.Hour >= 12 {
		suffix = "PM"
	}
	return fmt.Sprintf("%d:%02d %s", h, s.Minute, suffix)
}

// Describe renders the recurrence for people, e.g. "Every Sunday at 9:30 AM".
func (s Spec) Describe() string {
	switch s.Frequency {
	case Weekly:
		return fmt.Sprintf("Every %s at %s", s.Weekday, s.TimeLabel())
	case Monthly:
		return fmt.Sprintf("Monthly on the %s at %s", Ordinal(s.DayOfMonth), s.TimeLabel())
	default:
		return "Every day at " + s.TimeLabel()
	}
}

// Ordinal returns n with its English suffix: 1st, 2nd, 3rd, 11th, 22nd.
func Ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}

// ParseClock parses a 24-hour "HH:MM" time.
func ParseClock(v string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(v, ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: time %q is not HH:MM", ErrInvalidSchedule, v)
	}
	if hour, err = parseField(h, 0, 23); err != nil {
		return 0, 0, fmt.Errorf("%w: hour: %v", ErrInvalidSchedule, err)
	}
	if minute, err = parseField(m, 0, 59); err != nil {
		return 0, 0, fmt.Errorf("%w: minute: %v", ErrInvalidSchedule, err)
	}
	return hour, minute, nil
}
