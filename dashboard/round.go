package dashboard

import "github.com/shopspring/decimal"

// Round1 rounds to one decimal place, half away from zero.
func Round1(v float64) float64 {
	return decimal.NewFromFloat(v).Round(1).InexactFloat64()
}

// Round1Ptr is Round1 for optional values.
func Round1Ptr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := Round1(*v)
	return &r
}
