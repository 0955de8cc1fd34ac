package schedule

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the only accepted wire format for reservation dates.
const DateLayout = "2006-01-02"

// InvalidDateError reports a date that could not be parsed.  Callers should
// surface it as a client error.
type InvalidDateError struct {
	Input string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid date %q: expected YYYY-MM-DD", e.Input)
}

// ParseDate parses a YYYY-MM-DD calendar date.  The result is midnight UTC of
// that day; only its year, month and day are meaningful.
func ParseDate(s string) (time.Time, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return time.Time{}, &InvalidDateError{Input: s}
	}
	d, err := time.Parse(DateLayout, trimmed)
	if err != nil {
		return time.Time{}, &InvalidDateError{Input: s}
	}
	return d, nil
}

// sameDay reports whether a and b share a calendar day, each read in its own
// location.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// dayBefore reports whether calendar day a precedes calendar day b.
func dayBefore(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}
