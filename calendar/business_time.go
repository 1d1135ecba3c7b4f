/*
business_time.go - Adding working hours to an instant

ALGORITHM:
  hours is split into fullDays = hours / hoursPerDay and
  remainder = hours % hoursPerDay.

  1. Starting at start's calendar date, step forward one calendar day at a
     time, counting only business days, until fullDays have been counted.
  2. Rebuild a timestamp on that date at start's time of day and add the
     remainder hours.
  3. If the remainder pushed the timestamp onto the next calendar date,
     drop the time of day and land at 08:00 on the first business day on or
     after that date.

  There is no 08:00-17:00 window during step 1. A Friday 16:00 start with
  one full day lands on Monday 16:00, not Monday 17:00 or Tuesday 08:00.
  Existing deadlines were computed this way; keep it.

EXAMPLE:
  fri := time.Date(2026, 10, 16, 16, 0, 0, 0, time.UTC)
  AddBusinessHours(cal, fri, 32, 8) // Thu 2026-10-22 16:00 UTC
*/
package calendar

import "time"

// DefaultHoursPerDay is the length of a business day in hours.
const DefaultHoursPerDay = 8

// StartOfBusinessDay is the hour spillover lands on.
const StartOfBusinessDay = 8

// AddBusinessHours adds hours of business time to start. The result keeps
// start's location; sub-second precision of start is dropped.
// hoursPerDay <= 0 means DefaultHoursPerDay; negative hours are treated as 0.
func AddBusinessHours(cal Calendar, start time.Time, hours, hoursPerDay int) time.Time {
	if hoursPerDay <= 0 {
		hoursPerDay = DefaultHoursPerDay
	}
	if hours < 0 {
		hours = 0
	}

	fullDays := hours / hoursPerDay
	remainder := hours % hoursPerDay
	loc := start.Location()

	current := DateOf(start)
	for added := 0; added < fullDays; {
		current = current.AddDays(1)
		if cal.IsBusinessDay(current.In(loc)) {
			added++
		}
	}

	// time.Date normalises hour overflow into the next day.
	result := time.Date(current.Year, current.Month, current.Day,
		start.Hour()+remainder, start.Minute(), start.Second(), 0, loc)

	if next := DateOf(result); next.After(current) {
		for !cal.IsBusinessDay(next.In(loc)) {
			next = next.AddDays(1)
		}
		result = time.Date(next.Year, next.Month, next.Day, StartOfBusinessDay, 0, 0, 0, loc)
	}

	return result
}
