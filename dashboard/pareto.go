package dashboard

import (
	"sort"

	"github.com/warp/action-tracker/actionitem"
	"github.com/warp/action-tracker/sla"
)

const (
	MinParetoTopN     = 3
	MaxParetoTopN     = 10
	DefaultParetoTopN = 5
)

// CategoryShare is one bar of the Pareto chart.
type CategoryShare struct {
	Category             sla.Category
	Count                int
	Percentage           float64
	CumulativePercentage float64
}

// ComputePareto ranks open-item categories by count, descending, and
// returns the top topN. Percentages are of all open items, not just the
// top topN, so the last cumulative value may be below 100. Equal counts
// keep category order.
func ComputePareto(items []actionitem.ActionItem, topN int) ([]CategoryShare, error) {
	if topN < MinParetoTopN || topN > MaxParetoTopN {
		return nil, &actionitem.ValidationError{Field: "top_n", Message: "must be between 3 and 10"}
	}

	counts := make(map[sla.Category]int)
	total := 0
	for i := range items {
		if items[i].IsOpen() {
			counts[items[i].Category]++
			total++
		}
	}
	if total == 0 {
		return []CategoryShare{}, nil
	}

	var shares []CategoryShare
	for _, c := range sla.Categories() {
		if counts[c] > 0 {
			shares = append(shares, CategoryShare{Category: c, Count: counts[c]})
		}
	}
	sort.SliceStable(shares, func(i, j int) bool { return shares[i].Count > shares[j].Count })
	if len(shares) > topN {
		shares = shares[:topN]
	}

	cumulative := 0.0
	for i := range shares {
		pct := float64(shares[i].Count) / float64(total) * 100
		cumulative += pct
		shares[i].Percentage = pct
		shares[i].CumulativePercentage = cumulative
	}
	return shares, nil
}
