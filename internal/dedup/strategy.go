package dedup

import (
	"time"

	"github.com/google/uuid"
	"curation-service/internal/models"
)

// Candidate is the matching view of a product: normalized text, cached
// trigrams, and the fields the election policy needs.
type Candidate struct {
	ID         uuid.UUID
	MerchantID int
	Name       string
	Brand      string
	Price      *float64
	GTIN       string
	MPN        string
	Quality    float64
	FirstSeen  time.Time

	normName  string
	normBrand string
	hash      string
	grams     map[string]struct{}
}

// NewCandidate precomputes the normalized matching features of a product
func NewCandidate(p *models.Product) *Candidate {
	c := &Candidate{
		ID:         p.ID,
		MerchantID: p.MerchantID,
		Name:       p.Name,
		Price:      p.SearchPrice,
		Quality:    p.QualityScore,
		FirstSeen:  p.IngestedAt,
	}
	if p.Brand != nil {
		c.Brand = *p.Brand
	}
	if p.GTIN != nil {
		c.GTIN = *p.GTIN
	}
	if p.MPN != nil {
		c.MPN = *p.MPN
	}
	c.normName = Normalize(c.Name)
	c.normBrand = Normalize(c.Brand)
	c.hash = ContentHash(c.Name, c.Brand, c.Price, c.MerchantID)
	c.grams = trigrams(c.normName + " " + c.normBrand)
	return c
}

// Hash returns the exact-match content hash of the candidate
func (c *Candidate) Hash() string {
	return c.hash
}

// Strategy is one duplicate-matching approach. Strategies differ in cost and
// precision; the resolver applies them in increasing cost order. New
// strategies plug in without touching resolver control flow.
type Strategy interface {
	Method() models.DuplicateMethod
	// Match scores the similarity of two candidates in [0,1] with a
	// discrete confidence tier. Scores below the strategy floor are not
	// matches and come back as very_low.
	Match(a, b *Candidate) (float64, models.ConfidenceTier)
}

// TierForScore maps a continuous similarity score onto a confidence tier
func TierForScore(score float64) models.ConfidenceTier {
	switch {
	case score >= 0.95:
		return models.ConfidenceVeryHigh
	case score >= 0.85:
		return models.ConfidenceHigh
	case score >= 0.75:
		return models.ConfidenceMedium
	case score >= 0.65:
		return models.ConfidenceLow
	default:
		return models.ConfidenceVeryLow
	}
}
