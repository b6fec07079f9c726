// Package schedule converts between a structured recurrence and the
// six-field cron expression (second minute hour day-of-month month day-of-week)
// persisted as an automation's schedule.
//
// Day-of-month and day-of-week are mutually exclusive: a daily schedule uses
// "*" for day-of-month and "?" for day-of-week, weekly and monthly schedules
// put "?" on whichever field does not drive the recurrence.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidSchedule = errors.New("invalid schedule")

type Frequency int

const (
	Daily Frequency = iota
	Weekly
	Monthly
)

func (f Frequency) String() string {
	switch f {
	case Daily:
		return "daily"
	case Weekly:
		return "weekly"
	case Monthly:
		return "monthly"
	}
	return fmt.Sprintf("frequency(%d)", int(f))
}

// ParseFrequency accepts daily, weekly or monthly in any case.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(s) {
	case "daily":
		return Daily, nil
	case "weekly":
		return Weekly, nil
	case "monthly":
		return Monthly, nil
	}
	return 0, fmt.Errorf("%w: unknown frequency %q", ErrInvalidSchedule, s)
}

// Spec is a structured recurrence. Weekday is used only by Weekly schedules
// and DayOfMonth only by Monthly ones.
type Spec struct {
	Frequency  Frequency
	Hour       int
	Minute     int
	Weekday    time.Weekday
	DayOfMonth int
}

// Validate checks ranges. Encode assumes a valid spec.
func (s Spec) Validate() error {
	if s.Hour < 0 || s.Hour > 23 {
		return fmt.Errorf("%w: hour %d out of range 0-23", ErrInvalidSchedule, s.Hour)
	}
	if s.Minute < 0 || s.Minute > 59 {
		return fmt.Errorf("%w: minute %d out of range 0-59", ErrInvalidSchedule, s.Minute)
	}
	switch s.Frequency {
	case Daily:
	case Weekly:
		if s.Weekday < time.Sunday || s.Weekday > time.Saturday {
			return fmt.Errorf("%w: weekday %d out of range 0-6", ErrInvalidSchedule, s.Weekday)
		}
	case Monthly:
		if s.DayOfMonth < 1 || s.DayOfMonth > 31 {
			return fmt.Errorf("%w: day of month %d out of range 1-31", ErrInvalidSchedule, s.DayOfMonth)
		}
	default:
		return fmt.Errorf("%w: unknown frequency %d", ErrInvalidSchedule, int(s.Frequency))
	}
	return nil
}

// Normalize zeroes the day selector the frequency does not use, giving the
// form Decode returns.
func (s Spec) Normalize() Spec {
	switch s.Frequency {
	case Daily:
		s.Weekday, s.DayOfMonth = 0, 0
	case Weekly:
		s.DayOfMonth = 0
	case Monthly:
		s.Weekday = 0
	}
	return s
}

var weekdayCodes = [7]string{"SUN", "MON", "TUE", "WED", "THU", "FRI", "SAT"}

// WeekdayCode returns the three-letter cron code for d.
func WeekdayCode(d time.Weekday) string {
	return weekdayCodes[((int(d)%7)+7)%7]
}

// ParseWeekday accepts a three-letter code in any case or a number 0-7,
// where both 0 and 7 mean Sunday.
func ParseWeekday(s string) (time.Weekday, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	for i, c := range weekdayCodes {
		if code == c {
			return time.Weekday(i), nil
		}
	}
	n, err := strconv.Atoi(code)
	if err != nil || n < 0 || n > 7 {
		return 0, fmt.Errorf("%w: weekday %q", ErrInvalidSchedule, s)
	}
	return time.Weekday(n % 7), nil
}

// Encode renders s as a six-field cron expression. The seconds field is always 0.
func Encode(s Spec) string {
	switch s.Frequency {
	case Weekly:
		return fmt.Sprintf("0 %d %d ? * %s", s.Minute, s.Hour, WeekdayCode(s.Weekday))
	case Monthly:
		return fmt.Sprintf("0 %d %d %d * ?", s.Minute, s.Hour, s.DayOfMonth)
	default:
		return fmt.Sprintf("0 %d %d * * ?", s.Minute, s.Hour)
	}
}

// Decode parses a cron expression produced by Encode or by the backend.
// A five-field expression has no day-of-week and is treated as "?".
// Minute and hour must be plain numbers in range; an unparsable day-of-month
// on a monthly schedule falls back to 1.
func Decode(expr string) (Spec, error) {
	fields := strings.Fields(expr)
	if len(fields) < 5 || len(fields) > 7 {
		return Spec{}, fmt.Errorf("%w: %q has %d fields", ErrInvalidSchedule, expr, len(fields))
	}

	minute, err := parseField(fields[1], 0, 59)
	if err != nil {
		return Spec{}, fmt.Errorf("%w: minute: %v", ErrInvalidSchedule, err)
	}
	hour, err := parseField(fields[2], 0, 23)
	if err != nil {
		return Spec{}, fmt.Errorf("%w: hour: %v", ErrInvalidSchedule, err)
	}

	dom, dow := fields[3], "?"
	if len(fields) > 5 {
		dow = fields[5]
	}

	s := Spec{Hour: hour, Minute: minute}
	if dom == "*" && (dow == "*" || dow == "?") {
		s.Frequency = Daily
		return s, nil
	}
	if dom == "?" {
		if wd, err := ParseWeekday(dow); err == nil {
			s.Frequency = Weekly
			s.Weekday = wd
			return s, nil
		}
	}
	s.Frequency = Monthly
	s.DayOfMonth = 1
	if n, err := parseField(dom, 1, 31); err == nil {
		s.DayOfMonth = n
	}
	return s, nil
}

func parseField(v string, lo, hi int) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", v)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%d out of range %d-%d", n, lo, hi)
	}
	return n, nil
}
