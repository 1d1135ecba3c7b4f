/*
Package calendar decides which days count as working time.

PURPOSE:
  Every SLA deadline in the tracker is measured in business time. This
  package answers "is this date a working day?" for a fixed national
  calendar and provides the business-hour arithmetic built on top of it
  (see business_time.go).

HOLIDAY SET (per calendar year):
  Fixed dates:
    Jan  1  Confraternização Universal
    Apr 21  Tiradentes
    May  1  Dia do Trabalho
    Sep  7  Independência
    Oct 12  Nossa Senhora Aparecida
    Nov  2  Finados
    Nov 15  Proclamação da República
    Dec 25  Natal

  Easter-relative (Western Easter Sunday = E):
    E-47  Carnaval
    E-46  Quarta-feira de Cinzas
    E-2   Sexta-feira Santa
    E     Páscoa
    E+60  Corpus Christi

CACHING:
  Holiday sets are a pure function of the year. YearCache computes a year
  on first use and keeps it for the life of the process. The cache is an
  explicit object handed to the calendar, so tests can inject any holiday
  function they like.

USAGE:
  cal := calendar.NewBrazil()
  cal.IsBusinessDay(time.Date(2026, 2, 17, 0, 0, 0, 0, time.UTC)) // false, Carnaval

SEE ALSO:
  - business_time.go: AddBusinessHours
  - sla/engine.go: deadline calculation
*/
package calendar

import (
	"sort"
	"sync"
	"time"
)

// =============================================================================
// DATE - Calendar date without time of day
// =============================================================================

// Date is a calendar day. It is comparable and safe to use as a map key.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// NewDate normalises out-of-range values (e.g. March 32 becomes April 1).
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) AddDays(n int) Date { return NewDate(d.Year, d.Month, d.Day+n) }
func (d Date) Weekday() time.Weekday { return d.In(time.UTC).Weekday() }
func (d Date) Before(other Date) bool { return d.In(time.UTC).Before(other.In(time.UTC)) }
func (d Date) After(other Date) bool { return other.Before(d) }
func (d Date) String() string { return d.In(time.UTC).Format("2006-01-02") }

// IsWeekend reports whether d is a Saturday or a Sunday.
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// =============================================================================
// CALENDAR - Business day lookup
// =============================================================================

// Calendar decides whether a day is a working day.
type Calendar interface {
	// IsBusinessDay reports whether the calendar date of t (in t's location)
	// is a working day.
	IsBusinessDay(t time.Time) bool
}

// HolidaySet maps each holiday date to its name.
type HolidaySet map[Date]string

// Contains reports whether d is a holiday.
func (h HolidaySet) Contains(d Date) bool {
	_, ok := h[d]
	return ok
}

// Holiday is a single named holiday, used for listing.
type Holiday struct {
	Date Date
	Name string
}

// Sorted returns the holidays in date order.
func (h HolidaySet) Sorted() []Holiday {
	out := make([]Holiday, 0, len(h))
	for d, name := range h {
		out = append(out, Holiday{Date: d, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// =============================================================================
// YEAR CACHE - Populate once, read many
// =============================================================================

// YearCache memoises holiday sets per year. Safe for concurrent use.
type YearCache struct {
	mu      sync.RWMutex
	years   map[int]HolidaySet
	compute func(year int) HolidaySet
}

// NewYearCache creates a cache backed by compute. compute must be pure.
func NewYearCache(compute func(year int) HolidaySet) *YearCache {
	return &YearCache{
		years:   make(map[int]HolidaySet),
		compute: compute,
	}
}

// Holidays returns the holiday set for year, computing it on first use.
// The returned set must not be modified.
func (c *YearCache) Holidays(year int) HolidaySet {
	c.mu.RLock()
	set, ok := c.years[year]
	c.mu.RUnlock()
	if ok {
		return set
	}

	set = c.compute(year)

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.years[year]; ok {
		return existing
	}
	c.years[year] = set
	return set
}

// Len returns the number of cached years.
func (c *YearCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.years)
}

// =============================================================================
// NATIONAL CALENDAR
// =============================================================================

// National is a weekend + national holiday calendar.
type National struct {
	cache *YearCache
}

// NewNational creates a calendar whose holidays come from cache.
func NewNational(cache *YearCache) *National {
	return &National{cache: cache}
}

// NewBrazil creates the national calendar with its own year cache.
func NewBrazil() *National {
	return NewNational(NewYearCache(BrazilianHolidays))
}

// IsBusinessDay implements Calendar.
func (n *National) IsBusinessDay(t time.Time) bool {
	return n.IsBusinessDate(DateOf(t))
}

// IsBusinessDate is IsBusinessDay for a bare date.
func (n *National) IsBusinessDate(d Date) bool {
	if d.IsWeekend() {
		return false
	}
	return !n.cache.Holidays(d.Year).Contains(d)
}

// Holidays returns the holiday set for a year.
func (n *National) Holidays(year int) HolidaySet {
	return n.cache.Holidays(year)
}

// BrazilianHolidays computes the national holiday set for a year.
func BrazilianHolidays(year int) HolidaySet {
	set := HolidaySet{
		NewDate(year, time.January, 1):   "Confraternização Universal",
		NewDate(year, time.April, 21):    "Tiradentes",
		NewDate(year, time.May, 1):       "Dia do Trabalho",
		NewDate(year, time.September, 7): "Independência",
		NewDate(year, time.October, 12):  "Nossa Senhora Aparecida",
		NewDate(year, time.November, 2):  "Finados",
		NewDate(year, time.November, 15): "Proclamação da República",
		NewDate(year, time.December, 25): "Natal",
	}

	easter := EasterSunday(year)
	set[easter.AddDays(-47)] = "Carnaval"
	set[easter.AddDays(-46)] = "Quarta-feira de Cinzas"
	set[easter.AddDays(-2)] = "Sexta-feira Santa"
	set[easter] = "Páscoa"
	set[easter.AddDays(60)] = "Corpus Christi"

	return set
}

// EasterSunday returns Western (Gregorian) Easter Sunday using the
// anonymous Gregorian algorithm (Meeus/Jones/Butcher).
func EasterSunday(year int) Date {
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
	return NewDate(year, time.Month(month), day)
}

// =============================================================================
// UTILITIES
// =============================================================================

// BusinessDaysBetween counts business days in [from, to], in either order.
func BusinessDaysBetween(cal Calendar, from, to Date) int {
	if to.Before(from) {
		from, to = to, from
	}
	count := 0
	for d := from; !d.After(to); d = d.AddDays(1) {
		if cal.IsBusinessDay(d.In(time.UTC)) {
			count++
		}
	}
	return count
}

// NextBusinessDay returns d if it is a business day, otherwise the first
// business day after it.
func NextBusinessDay(cal Calendar, d Date) Date {
	for !cal.IsBusinessDay(d.In(time.UTC)) {
		d = d.AddDays(1)
	}
	return d
}
