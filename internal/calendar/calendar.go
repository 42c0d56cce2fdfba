// Package calendar answers whether the US equity market trades on a given day.
package calendar

import (
	"fmt"
	"sync"
	"time"
)

// Calendar knows US market holidays. Extra closures can be added at runtime.
type Calendar struct {
	mu    sync.RWMutex
	years map[int]map[time.Time]string
	extra map[time.Time]string
}

// New creates a calendar.
func New() *Calendar {
	return &Calendar{
		years: make(map[int]map[time.Time]string),
		extra: make(map[time.Time]string),
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AddClosure marks an unscheduled closure (e.g. a national day of mourning).
func (c *Calendar) AddClosure(date time.Time, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.extra[dateOnly(date)] = name
}

// Holiday returns the holiday name if the market is closed for one on date.
func (c *Calendar) Holiday(date time.Time) (string, bool) {
	d := dateOnly(date)
	c.mu.RLock()
	if name, ok := c.extra[d]; ok {
		c.mu.RUnlock()
		return name, true
	}
	hs, ok := c.years[d.Year()]
	c.mu.RUnlock()

	if !ok {
		hs = Holidays(d.Year())
		c.mu.Lock()
		c.years[d.Year()] = hs
		c.mu.Unlock()
	}
	name, ok := hs[d]
	return name, ok
}

// IsTradingDay reports whether the market is open on date.
func (c *Calendar) IsTradingDay(date time.Time) bool {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, closed := c.Holiday(date)
	return !closed
}

// PreviousTradingDay returns the last trading day strictly before date.
func (c *Calendar) PreviousTradingDay(date time.Time) (time.Time, error) {
	d := dateOnly(date)
	for i := 1; i <= 10; i++ {
		check := d.AddDate(0, 0, -i)
		if c.IsTradingDay(check) {
			return check, nil
		}
	}
	return time.Time{}, fmt.Errorf("no trading day found in the 10 days before %s", d.Format(time.DateOnly))
}

// Holidays returns the NYSE full-day holidays for year, already shifted to
// their observed weekday.
func Holidays(year int) map[time.Time]string {
	raw := map[time.Time]string{
		time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC):   "New Year's Day",
		time.Date(year, 7, 4, 0, 0, 0, 0, time.UTC):   "Independence Day",
		time.Date(year, 12, 25, 0, 0, 0, 0, time.UTC): "Christmas Day",
		nthWeekday(year, time.January, time.Monday, 3):  "Martin Luther King Jr. Day",
		nthWeekday(year, time.February, time.Monday, 3): "Presidents' Day",
		lastWeekday(year, time.May, time.Monday):        "Memorial Day",
		nthWeekday(year, time.September, time.Monday, 1): "Labor Day",
		nthWeekday(year, time.November, time.Thursday, 4): "Thanksgiving Day",
		easter(year).AddDate(0, 0, -2):                  "Good Friday",
	}
	if year >= 2022 {
		raw[time.Date(year, 6, 19, 0, 0, 0, 0, time.UTC)] = "Juneteenth"
	}

	out := make(map[time.Time]string, len(raw))
	for d, name := range raw {
		observed := observe(d)
		// New Year's Day on a Saturday is not observed on the prior Friday.
		if observed.Year() != year {
			continue
		}
		out[observed] = name
	}
	return out
}

func nthWeekday(year int, month time.Month, wd time.Weekday, n int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := int(wd - first.Weekday())
	if offset < 0 {
		offset += 7
	}
	return first.AddDate(0, 0, offset+(n-1)*7)
}

func lastWeekday(year int, month time.Month, wd time.Weekday) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	back := int(last.Weekday() - wd)
	if back < 0 {
		back += 7
	}
	return last.AddDate(0, 0, -back)
}

// easter returns Western Easter Sunday (anonymous Gregorian algorithm).
func easter(year int) time.Time {
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
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func observe(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}
