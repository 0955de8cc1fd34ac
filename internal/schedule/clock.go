package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Clock is a time of day expressed in minutes since midnight of the business
// day.  Values of 24:00 and beyond belong to the following calendar day, so a
// service that closes at 01:45 is represented as 25:45.
type Clock int

const minutesPerDay = 24 * 60

// ErrInvalidTime is returned by ParseTime for malformed input.
var ErrInvalidTime = errors.New("invalid time: expected HH:MM")

// At builds a Clock from an hour and minute.  hour may exceed 23.
func At(hour, minute int) Clock { return Clock(hour*60 + minute) }

// Hour returns the unwrapped hour, e.g. 25 for 01:00 the next day.
func (c Clock) Hour() int { return int(c) / 60 }

// Minute returns the minute within the hour.
func (c Clock) Minute() int { return int(c) % 60 }

// NextDay reports whether the clock falls after midnight of the business day.
func (c Clock) NextDay() bool { return c >= minutesPerDay }

// String renders the wall-clock time as HH:MM, wrapping hours past 23.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", (c.Hour())%24, c.Minute())
}

// ParseTime parses a wall-clock "HH:MM" value.  A trailing ":SS" suffix, as
// returned by MySQL TIME columns, is accepted when the seconds are zero.
func ParseTime(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) == 3 {
		if parts[2] != "00" {
			return 0, ErrInvalidTime
		}
		parts = parts[:2]
	}
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, ErrInvalidTime
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, ErrInvalidTime
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, ErrInvalidTime
	}
	return At(h, m), nil
}

// MarshalText renders the clock as its wall-clock string.
func (c Clock) MarshalText() ([]byte, error) { return []byte(c.String()), nil }
