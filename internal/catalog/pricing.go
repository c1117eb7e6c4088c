package catalog

import (
	"math"

	"curation-service/internal/models"
)

// BandFor buckets a price using ascending breakpoints. With the default
// breakpoints [20, 75, 250]: ≤20 budget, ≤75 mid_range, ≤250 premium,
// above that luxury.
func BandFor(price float64, breakpoints []float64) models.PriceBand {
	bands := []models.PriceBand{
		models.PriceBandBudget,
		models.PriceBandMidRange,
		models.PriceBandPremium,
	}
	for i, bp := range breakpoints {
		if i >= len(bands) {
			break
		}
		if price <= bp {
			return bands[i]
		}
	}
	return models.PriceBandLuxury
}

// Discount computes the markdown percentage and absolute amount from the rrp
// against the search price. Returns zeros when the rrp is absent, not
// positive, or not above the search price.
func Discount(rrp, searchPrice *float64) (pct, amount float64) {
	if rrp == nil || searchPrice == nil {
		return 0, 0
	}
	if *rrp <= 0 || *searchPrice <= 0 || *rrp <= *searchPrice {
		return 0, 0
	}
	amount = *rrp - *searchPrice
	pct = math.Round(amount/(*rrp)*10000) / 100
	return pct, amount
}
