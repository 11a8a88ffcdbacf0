package recurrence

import (
	"errors"
	"strings"
	"time"
)

// Frequency represents supported recurrence intervals.
type Frequency int

const (
	// FrequencyUnspecified indicates the schedule frequency is not set.
	FrequencyUnspecified Frequency = iota
	// FrequencyDaily fires once per calendar day.
	FrequencyDaily
	// FrequencyWeekly fires every seven days.
	FrequencyWeekly
	// FrequencyMonthly fires once per calendar month on the same day-of-month.
	FrequencyMonthly
)

// ErrInvalidFrequency indicates the recurrence frequency is not supported.
var ErrInvalidFrequency = errors.New("recurrence: invalid frequency")

// String returns the display name used by the host platform.
func (f Frequency) String() string {
	switch f {
	case FrequencyDaily:
		return "Daily"
	case FrequencyWeekly:
		return "Weekly"
	case FrequencyMonthly:
		return "Monthly"
	default:
		return ""
	}
}

// Valid reports whether f is one of the supported frequencies.
func (f Frequency) Valid() bool {
	return f == FrequencyDaily || f == FrequencyWeekly || f == FrequencyMonthly
}

// ParseFrequency maps a case-insensitive display name onto a Frequency.
func ParseFrequency(value string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "daily":
		return FrequencyDaily, nil
	case "weekly":
		return FrequencyWeekly, nil
	case "monthly":
		return FrequencyMonthly, nil
	default:
		return FrequencyUnspecified, ErrInvalidFrequency
	}
}

// Date normalizes t to the calendar date it falls on in loc, expressed as
// midnight UTC. All calendar-date fields in the module use this form so they
// compare and persist without zone drift. A nil loc means UTC.
func Date(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NextDate returns the occurrence following current for the given frequency.
//
// Monthly steps keep the day-of-month when the target month has it and clamp
// to the month's last day otherwise, so Jan 31 advances to Feb 28/29.
func NextDate(current time.Time, freq Frequency) (time.Time, error) {
	current = Date(current, time.UTC)
	switch freq {
	case FrequencyDaily:
		return current.AddDate(0, 0, 1), nil
	case FrequencyWeekly:
		return current.AddDate(0, 0, 7), nil
	case FrequencyMonthly:
		return AddMonths(current, 1), nil
	default:
		return time.Time{}, ErrInvalidFrequency
	}
}

// Sequence returns the n occurrences that follow start, each computed from
// the previous one with NextDate. start itself is not included.
func Sequence(start time.Time, freq Frequency, n int) ([]time.Time, error) {
	if n <= 0 {
		return nil, nil
	}
	out := make([]time.Time, 0, n)
	current := start
	for i := 0; i < n; i++ {
		next, err := NextDate(current, freq)
		if err != nil {
			return nil, err
		}
		out = append(out, next)
		current = next
	}
	return out, nil
}

// AddMonths adds months calendar months to t, clamping the day to the last
// valid day of the resulting month. The clock portion of t is preserved.
func AddMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	firstOfTarget := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	last := daysIn(firstOfTarget.Year(), firstOfTarget.Month())
	if d > last {
		d = last
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
