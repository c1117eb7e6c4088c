package dedup

import (
	"math"

	"curation-service/internal/models"
)

// CrossMerchantStrategy identifies the same physical product listed by
// different sellers, keyed on GTIN/MPN equality or normalized name+brand with
// price proximity. Same-merchant pairs never match here; the cheaper
// strategies own those.
type CrossMerchantStrategy struct {
	priceDelta float64
}

// NewCrossMerchantStrategy builds the matcher; priceDelta is the maximum
// relative price difference (e.g. 0.05 for 5%) for the name+brand path.
func NewCrossMerchantStrategy(priceDelta float64) *CrossMerchantStrategy {
	return &CrossMerchantStrategy{priceDelta: priceDelta}
}

func (s *CrossMerchantStrategy) Method() models.DuplicateMethod {
	return models.MethodCrossMerchant
}

func (s *CrossMerchantStrategy) Match(a, b *Candidate) (float64, models.ConfidenceTier) {
	if a.MerchantID == b.MerchantID {
		return 0, models.ConfidenceVeryLow
	}

	if a.GTIN != "" && a.GTIN == b.GTIN {
		return 1.0, models.ConfidenceVeryHigh
	}
	if a.MPN != "" && a.MPN == b.MPN && a.normBrand != "" && a.normBrand == b.normBrand {
		return 1.0, models.ConfidenceVeryHigh
	}

	if a.normName != "" && a.normName == b.normName &&
		a.normBrand != "" && a.normBrand == b.normBrand &&
		s.pricesClose(a.Price, b.Price) {
		return 0.9, models.ConfidenceHigh
	}

	return 0, models.ConfidenceVeryLow
}

func (s *CrossMerchantStrategy) pricesClose(a, b *float64) bool {
	if a == nil || b == nil {
		return false
	}
	higher := math.Max(*a, *b)
	if higher <= 0 {
		return false
	}
	return math.Abs(*a-*b)/higher <= s.priceDelta
}
