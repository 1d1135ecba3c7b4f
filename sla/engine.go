/*
engine.go - Deadline, overdue and escalation computations

ESCALATION LEVELS:
  ┌───────┬───────────────────────────────────────────────────────────┐
  │ level │ condition (open items with a deadline)                    │
  ├───────┼───────────────────────────────────────────────────────────┤
  │   0   │ elapsed since creation < escalation hours                 │
  │   1   │ elapsed >= escalation hours, deadline not yet passed      │
  │  2+n  │ now > deadline, n = floor(hours overdue / esc. hours)     │
  └───────┴───────────────────────────────────────────────────────────┘

  Closed items and items without a deadline are always level 0.
  Elapsed and overdue time are wall-clock hours; only the deadline itself
  is computed in business hours.

NUMERICS:
  All comparisons use full precision. Rounding to one decimal is a
  presentation concern (dashboard.Round1).
*/
package sla

import (
	"math"
	"time"

	"github.com/warp/action-tracker/calendar"
)

// Item is the engine's view of an action item.
type Item struct {
	CreatedAt time.Time
	Deadline  *time.Time
	Severity  Severity
	Open      bool
}

// Engine evaluates SLA state against a calendar and a clock.
type Engine struct {
	Calendar    calendar.Calendar
	Clock       Clock
	HoursPerDay int
}

// NewEngine creates an engine with an 8-hour business day.
func NewEngine(cal calendar.Calendar, clock Clock) *Engine {
	return &Engine{Calendar: cal, Clock: clock, HoursPerDay: calendar.DefaultHoursPerDay}
}

// CalculateDeadline adds the resolution target to createdAt in business
// hours. resolutionHours overrides the severity default when positive.
func (e *Engine) CalculateDeadline(createdAt time.Time, severity Severity, resolutionHours *int) time.Time {
	hours := DefaultHours(severity).Resolution
	if resolutionHours != nil && *resolutionHours > 0 {
		hours = *resolutionHours
	}
	return calendar.AddBusinessHours(e.Calendar, createdAt, hours, e.HoursPerDay)
}

// IsOverdue reports whether an open item is past its deadline.
func (e *Engine) IsOverdue(item Item) bool {
	if item.Deadline == nil || !item.Open {
		return false
	}
	return e.Clock.Now().After(*item.Deadline)
}

// EscalationLevel returns the discrete urgency tier of an item.
// escalationHours overrides the severity default when positive.
func (e *Engine) EscalationLevel(item Item, escalationHours *int) int {
	if item.Deadline == nil || !item.Open {
		return 0
	}

	hours := DefaultHours(item.Severity).Escalation
	if escalationHours != nil && *escalationHours > 0 {
		hours = *escalationHours
	}

	now := e.Clock.Now()
	deadline := *item.Deadline

	if now.After(deadline) {
		overdue := now.Sub(deadline).Hours()
		return 2 + int(math.Floor(overdue/float64(hours)))
	}
	if now.Sub(item.CreatedAt).Hours() >= float64(hours) {
		return 1
	}
	return 0
}

// DaysUntilDeadline returns fractional days to the deadline, negative when
// overdue, or nil for closed items and items without a deadline.
func (e *Engine) DaysUntilDeadline(item Item) *float64 {
	if item.Deadline == nil || !item.Open {
		return nil
	}
	days := item.Deadline.Sub(e.Clock.Now()).Hours() / 24
	return &days
}
