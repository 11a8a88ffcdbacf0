package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

// ErrInvalidTimeOfDay indicates a local time string could not be parsed.
var ErrInvalidTimeOfDay = errors.New("recurrence: invalid time of day")

// TimeOfDay is a wall-clock offset from local midnight, in the range [0, 24h).
type TimeOfDay time.Duration

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, value)
	}
	limits := []int{23, 59, 59}
	var fields [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > limits[i] {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, value)
		}
		fields[i] = n
	}
	d := time.Duration(fields[0])*time.Hour + time.Duration(fields[1])*time.Minute + time.Duration(fields[2])*time.Second
	return TimeOfDay(d), nil
}

// Add shifts the time by d, wrapping around midnight.
func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	shifted := (time.Duration(t) + d) % day
	if shifted < 0 {
		shifted += day
	}
	return TimeOfDay(shifted)
}

// Seconds returns the offset from midnight in whole seconds.
func (t TimeOfDay) Seconds() int64 {
	return int64(time.Duration(t) / time.Second)
}

// On places the time of day on the calendar date of date in loc.
func (t TimeOfDay) On(date time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).Add(time.Duration(t))
}

// String formats the value as "HH:MM:SS".
func (t TimeOfDay) String() string {
	total := t.Seconds()
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
