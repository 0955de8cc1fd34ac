// Package holiday answers whether a calendar date is a French public holiday
// or the eve of one.  The list for a year is built from fixed dates plus the
// days that move with Easter, and is memoized per year because it depends on
// nothing but the year.
package holiday

import (
	"sort"
	"sync"
	"time"
)

// Holiday is a single public holiday.  Date is midnight UTC of the day.
type Holiday struct {
	Name string
	Date time.Time
}

// fixed lists the holidays that fall on the same day every year.
var fixed = []struct {
	name  string
	month time.Month
	day   int
}{
	{"Jour de l'an", time.January, 1},
	{"Fête du Travail", time.May, 1},
	{"Victoire 1945", time.May, 8},
	{"Fête nationale", time.July, 14},
	{"Assomption", time.August, 15},
	{"Toussaint", time.November, 1},
	{"Armistice 1918", time.November, 11},
	{"Noël", time.December, 25},
}

// easterRelative lists the holidays expressed as an offset in days from
// Easter Sunday.
var easterRelative = []struct {
	name   string
	offset int
}{
	{"Pâques", 0},
	{"Lundi de Pâques", 1},
	{"Ascension", 39},
	{"Lundi de Pentecôte", 50},
}

// Easter returns Easter Sunday of the given Gregorian year using the
// Meeus/Jones/Butcher algorithm.
func Easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := ((h + l - 7*m + 114) % 31) + 1

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// Calendar memoizes the holiday list per year.  The zero value is ready to
// use and safe for concurrent callers.
type Calendar struct {
	mu    sync.RWMutex
	years map[int]map[dayKey]string
}

type dayKey struct {
	month time.Month
	day   int
}

// NewCalendar returns an empty Calendar.
func NewCalendar() *Calendar { return &Calendar{} }

// Holidays returns every holiday of year in chronological order.
func (c *Calendar) Holidays(year int) []Holiday {
	out := buildYear(year)
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// IsHoliday reports whether date is a public holiday.  Only the year, month
// and day of date are considered.
func (c *Calendar) IsHoliday(date time.Time) bool {
	_, ok := c.Lookup(date)
	return ok
}

// IsHolidayEve reports whether the day after date is a public holiday.
func (c *Calendar) IsHolidayEve(date time.Time) bool {
	y, m, d := date.Date()
	next := time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
	return c.IsHoliday(next)
}

// Lookup returns the name of the holiday falling on date, if any.
func (c *Calendar) Lookup(date time.Time) (string, bool) {
	y, m, d := date.Date()
	name, ok := c.year(y)[dayKey{m, d}]
	return name, ok
}

func (c *Calendar) year(y int) map[dayKey]string {
	c.mu.RLock()
	days, ok := c.years[y]
	c.mu.RUnlock()
	if ok {
		return days
	}

	days = make(map[dayKey]string, len(fixed)+len(easterRelative))
	for _, h := range buildYear(y) {
		days[dayKey{h.Date.Month(), h.Date.Day()}] = h.Name
	}

	c.mu.Lock()
	if c.years == nil {
		c.years = make(map[int]map[dayKey]string)
	}
	c.years[y] = days
	c.mu.Unlock()
	return days
}

func buildYear(year int) []Holiday {
	out := make([]Holiday, 0, len(fixed)+len(easterRelative))
	for _, f := range fixed {
		out = append(out, Holiday{Name: f.name, Date: time.Date(year, f.month, f.day, 0, 0, 0, 0, time.UTC)})
	}
	easter := Easter(year)
	for _, e := range easterRelative {
		out = append(out, Holiday{Name: e.name, Date: easter.AddDate(0, 0, e.offset)})
	}
	return out
}

var defaultCalendar = NewCalendar()

// IsHoliday reports whether date is a public holiday using the shared
// calendar.
func IsHoliday(date time.Time) bool { return defaultCalendar.IsHoliday(date) }

// IsHolidayEve reports whether date is the eve of a public holiday using the
// shared calendar.
func IsHolidayEve(date time.Time) bool { return defaultCalendar.IsHolidayEve(date) }

// Lookup returns the name of the holiday falling on date, if any.
func Lookup(date time.Time) (string, bool) { return defaultCalendar.Lookup(date) }
