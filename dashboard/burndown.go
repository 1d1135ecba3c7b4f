package dashboard

import (
	"time"

	"github.com/warp/action-tracker/actionitem"
	"github.com/warp/action-tracker/calendar"
)

const (
	MinBurndownDays     = 7
	MaxBurndownDays     = 90
	DefaultBurndownDays = 30
)

// DailyPoint is one UTC day of the burndown series.
type DailyPoint struct {
	Date             calendar.Date
	OpenItems        int
	ClosedItems      int
	CumulativeClosed int
}

// ComputeBurndown returns one point per UTC day from (now - days) through
// today inclusive, i.e. days+1 points. Items created after now are ignored.
//
// For each day D with bounds [start, end):
//
//	OpenItems   = created before end - resolved before end
//	ClosedItems = resolved within [start, end)
func ComputeBurndown(items []actionitem.ActionItem, days int, now time.Time) ([]DailyPoint, error) {
	if days < MinBurndownDays || days > MaxBurndownDays {
		return nil, &actionitem.ValidationError{Field: "days", Message: "must be between 7 and 90"}
	}

	now = now.UTC()
	first := calendar.DateOf(now.AddDate(0, 0, -days))
	today := calendar.DateOf(now)

	points := make([]DailyPoint, 0, days+1)
	cumulative := 0
	for d := first; !d.After(today); d = d.AddDays(1) {
		start := d.In(time.UTC)
		end := start.AddDate(0, 0, 1)

		var created, resolved, closed int
		for i := range items {
			item := &items[i]
			if item.CreatedAt.After(now) {
				continue
			}
			if item.CreatedAt.Before(end) {
				created++
			}
			if r := item.ResolvedAt; r != nil && r.Before(end) {
				resolved++
				if !r.Before(start) {
					closed++
				}
			}
		}

		cumulative += closed
		points = append(points, DailyPoint{
			Date:             d,
			OpenItems:        created - resolved,
			ClosedItems:      closed,
			CumulativeClosed: cumulative,
		})
	}
	return points, nil
}
