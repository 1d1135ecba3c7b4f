/*
Package dashboard derives read-side metrics from a population of action items.

PURPOSE:
  Every function here is a pure transform of (items, now). Selecting the
  population (by study, date range, ...) is the caller's job; these
  functions consume whatever slice they are given.

DEFINITIONS:
  open       status in {new, in_progress, waiting_external}
  overdue    open, deadline set, deadline < now
  closed     status in {done, verified}
  on time    closed, deadline set, resolved_at <= deadline
  compliance on time / (closed with deadline) * 100, 100 when no such items

NUMERICS:
  Results are full precision. Round1 (round.go) is for presentation only.
  Empty populations never error: counts are zero, compliance is 100 and
  optional values are nil.

SEE ALSO:
  - kpis.go, burndown.go, pareto.go
*/
package dashboard

import (
	"time"

	"github.com/warp/action-tracker/actionitem"
	"github.com/warp/action-tracker/sla"
)

// Stats summarizes an item population.
type Stats struct {
	Total   int
	Open    int
	Overdue int

	ByStatus   map[actionitem.Status]int
	ByCategory map[sla.Category]int
	BySeverity map[sla.Severity]int

	SLACompliance float64
	// AverageResolutionHours is nil when no item has been resolved.
	AverageResolutionHours *float64
}

func ComputeStats(items []actionitem.ActionItem, now time.Time) Stats {
	s := Stats{
		Total:      len(items),
		ByStatus:   make(map[actionitem.Status]int),
		ByCategory: make(map[sla.Category]int),
		BySeverity: make(map[sla.Severity]int),
	}

	var resolvedHours float64
	var resolved int
	for i := range items {
		item := &items[i]
		s.ByStatus[item.Status]++
		s.ByCategory[item.Category]++
		s.BySeverity[item.Severity]++
		if item.IsOpen() {
			s.Open++
		}
		if isOverdue(item, now) {
			s.Overdue++
		}
		if item.ResolvedAt != nil {
			resolvedHours += item.ResolvedAt.Sub(item.CreatedAt).Hours()
			resolved++
		}
	}

	s.SLACompliance = Compliance(items)
	if resolved > 0 {
		avg := resolvedHours / float64(resolved)
		s.AverageResolutionHours = &avg
	}
	return s
}

// Compliance returns the percentage of closed items with a deadline that
// were resolved on or before it. It is 100 when there are none.
func Compliance(items []actionitem.ActionItem) float64 {
	var total, onTime int
	for i := range items {
		item := &items[i]
		if item.IsOpen() || item.SLADeadline == nil {
			continue
		}
		total++
		if item.ResolvedAt != nil && !item.ResolvedAt.After(*item.SLADeadline) {
			onTime++
		}
	}
	if total == 0 {
		return 100
	}
	return float64(onTime) / float64(total) * 100
}

func isOverdue(item *actionitem.ActionItem, now time.Time) bool {
	return item.IsOpen() && item.SLADeadline != nil && item.SLADeadline.Before(now)
}
