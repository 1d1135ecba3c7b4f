package dashboard

import (
	"math"
	"sort"
	"time"

	"github.com/warp/action-tracker/actionitem"
	"github.com/warp/action-tracker/sla"
)

// TrailingWindow is the look-back for the created/resolved KPIs.
const TrailingWindow = 7 * 24 * time.Hour

// KPIs are the headline numbers of the dashboard.
type KPIs struct {
	OverdueCount int
	// AgingP90Days is the 90th percentile age of open items, nil when none are open.
	AgingP90Days      *float64
	TotalOpen         int
	SLACompliance     float64
	OpenBySeverity    map[sla.Severity]int
	CreatedLast7Days  int
	ResolvedLast7Days int
}

func ComputeKPIs(items []actionitem.ActionItem, now time.Time) KPIs {
	k := KPIs{OpenBySeverity: make(map[sla.Severity]int)}
	since := now.Add(-TrailingWindow)

	var ages []float64
	for i := range items {
		item := &items[i]
		if item.IsOpen() {
			k.TotalOpen++
			k.OpenBySeverity[item.Severity]++
			ages = append(ages, now.Sub(item.CreatedAt).Hours()/24)
		}
		if isOverdue(item, now) {
			k.OverdueCount++
		}
		if !item.CreatedAt.Before(since) {
			k.CreatedLast7Days++
		}
		if item.ResolvedAt != nil && !item.ResolvedAt.Before(since) {
			k.ResolvedLast7Days++
		}
	}

	k.SLACompliance = Compliance(items)
	if len(ages) > 0 {
		p90 := Percentile(ages, 0.9)
		k.AgingP90Days = &p90
	}
	return k
}

// Percentile returns the continuous percentile p (0..1) of values using
// linear interpolation between closest ranks. values must be non-empty;
// it is not modified.
func Percentile(values []float64, p float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	pos := p * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	weight := pos - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
