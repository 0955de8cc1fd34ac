// Package schedule turns the restaurant's opening-hour rules into the list of
// bookable time slots for a calendar date.
//
// A business day opens in the evening and, on Fridays, Saturdays and the eve
// of a public holiday, runs past midnight.  Slot times are therefore kept as
// a Clock relative to midnight of the booking date, where 25:00 is 01:00 on
// the next calendar day.  Slots are listed in the order of the service, not
// in 24-hour clock order.
package schedule

import (
	"errors"
	"time"

	"github.com/iliyamo/restaurant-reservation/internal/holiday"
)

// OpeningWindow is the half-open interval [Open, Close) in which slots start.
type OpeningWindow struct {
	Open  Clock `json:"open"`
	Close Clock `json:"close"`
}

// Contains reports whether c lies in [Open, Close).
func (w OpeningWindow) Contains(c Clock) bool { return c >= w.Open && c < w.Close }

// Span returns the length of the window.
func (w OpeningWindow) Span() time.Duration { return time.Duration(w.Close-w.Open) * time.Minute }

// TimeSlot is a single bookable instant.
type TimeSlot struct {
	Time    string `json:"time"`
	Clock   Clock  `json:"-"`
	NextDay bool   `json:"next_day"`
	IsPast  bool   `json:"is_past"`
}

// HolidayOracle is the subset of holiday.Calendar used to pick a window.
type HolidayOracle interface {
	IsHolidayEve(date time.Time) bool
}

// Rules holds the opening-hour table and slot policy.
type Rules struct {
	Standard    OpeningWindow
	Late        OpeningWindow
	Granularity time.Duration
	LeadTime    time.Duration
	// Location is the restaurant's time zone.  Slot instants and "today"
	// are evaluated in it.
	Location *time.Location
	Holidays HolidayOracle
}

var (
	// ErrOutsideOpeningHours is returned for a time that is not a slot of
	// the day's opening window.
	ErrOutsideOpeningHours = errors.New("time is outside opening hours")
	// ErrSlotInPast is returned for a slot that has passed or falls inside
	// the booking lead time.
	ErrSlotInPast = errors.New("time slot is no longer bookable")
)

// DefaultRules returns the house rules: 18:00-21:30 on ordinary evenings,
// 18:00-01:45 on Fridays, Saturdays and holiday eves, 15 minute slots and a
// two hour lead time for same-day bookings.
func DefaultRules(loc *time.Location) Rules {
	if loc == nil {
		loc = time.Local
	}
	return Rules{
		Standard:    OpeningWindow{Open: At(18, 0), Close: At(21, 30)},
		Late:        OpeningWindow{Open: At(18, 0), Close: At(25, 45)},
		Granularity: 15 * time.Minute,
		LeadTime:    2 * time.Hour,
		Location:    loc,
		Holidays:    holiday.NewCalendar(),
	}
}

func (r Rules) location() *time.Location {
	if r.Location == nil {
		return time.Local
	}
	return r.Location
}

func (r Rules) step() Clock {
	s := Clock(r.Granularity / time.Minute)
	if s <= 0 {
		return 15
	}
	return s
}

// IsLateNight reports whether date uses the late window.
func (r Rules) IsLateNight(date time.Time) bool {
	switch date.Weekday() {
	case time.Friday, time.Saturday:
		return true
	}
	if r.Holidays != nil {
		return r.Holidays.IsHolidayEve(date)
	}
	return holiday.IsHolidayEve(date)
}

// WindowFor returns the opening window of date.
func (r Rules) WindowFor(date time.Time) OpeningWindow {
	if r.IsLateNight(date) {
		return r.Late
	}
	return r.Standard
}

// SlotTime returns the absolute instant of clock c on the business day date.
func (r Rules) SlotTime(date time.Time, c Clock) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, int(c), 0, 0, r.location())
}

// GenerateSlots lists the slots of date in service order.  now must be
// captured once by the caller; the result depends only on (r, date, now).
//
// When date is today, slots starting less than LeadTime after now are left
// out, except slots past midnight which are always kept.  When date is
// already over every slot is returned with IsPast set.
func (r Rules) GenerateSlots(date, now time.Time) []TimeSlot {
	w := r.WindowFor(date)
	step := r.step()
	local := now.In(r.location())
	today := sameDay(date, local)
	past := dayBefore(date, local)
	cutoff := local.Add(r.LeadTime)

	slots := make([]TimeSlot, 0, int((w.Close-w.Open)/step)+1)
	for c := w.Open; c < w.Close; c += step {
		if today && !c.NextDay() && r.SlotTime(date, c).Before(cutoff) {
			continue
		}
		slots = append(slots, TimeSlot{
			Time:    c.String(),
			Clock:   c,
			NextDay: c.NextDay(),
			IsPast:  past,
		})
	}
	return slots
}

// Resolve maps a wall-clock time to the business-day clock of date.  A time
// earlier than the opening hour is read as belonging to the next calendar day
// when the window extends that far.
func (r Rules) Resolve(date time.Time, wall Clock) Clock {
	w := r.WindowFor(date)
	if wall < w.Open && wall+minutesPerDay < w.Close {
		return wall + minutesPerDay
	}
	return wall
}

// ValidateSlot checks that wall is a bookable slot of date at instant now.
// It returns the resolved business-day clock.
func (r Rules) ValidateSlot(date time.Time, wall Clock, now time.Time) (Clock, error) {
	c := r.Resolve(date, wall)
	w := r.WindowFor(date)
	if !w.Contains(c) || (c-w.Open)%r.step() != 0 {
		return c, ErrOutsideOpeningHours
	}
	for _, s := range r.GenerateSlots(date, now) {
		if s.Clock == c {
			if s.IsPast {
				return c, ErrSlotInPast
			}
			return c, nil
		}
	}
	return c, ErrSlotInPast
}
