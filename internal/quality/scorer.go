package quality

import (
	"fmt"
	"math"
	"strings"

	"curation-service/internal/models"
)

const (
	// MinNameLength is the shortest product name considered valid
	MinNameLength = 3
	// MinDescriptionLength is the shortest description that earns its weight
	MinDescriptionLength = 20
)

// Weights holds the per-field contribution to the quality score.
// All weights must sum to exactly 1.0.
type Weights struct {
	Name          float64
	Description   float64
	Price         float64
	Image         float64
	Brand         float64
	Category      float64
	StockKnown    float64
	Colour        float64
	ImageCount    float64
	Discount      float64
	StockQuantity float64
}

// DefaultWeights returns the standard scoring weights
func DefaultWeights() Weights {
	return Weights{
		Name:          0.15,
		Description:   0.10,
		Price:         0.15,
		Image:         0.15,
		Brand:         0.10,
		Category:      0.05,
		StockKnown:    0.06,
		Colour:        0.05,
		ImageCount:    0.05,
		Discount:      0.05,
		StockQuantity: 0.09,
	}
}

// Sum returns the total of all weights
func (w Weights) Sum() float64 {
	return w.Name + w.Description + w.Price + w.Image + w.Brand + w.Category +
		w.StockKnown + w.Colour + w.ImageCount + w.Discount + w.StockQuantity
}

// Validate checks that the weights form a proper distribution
func (w Weights) Validate() error {
	if math.Abs(w.Sum()-1.0) > 1e-9 {
		return fmt.Errorf("quality weights must sum to 1.0, got %.6f", w.Sum())
	}
	return nil
}

// Issue is a quality problem detected during scoring. The scorer performs no
// I/O; callers append these to the ledger.
type Issue struct {
	Type     string
	Severity models.IssueSeverity
	Field    string
	Message  string
}

// Scorer assigns deterministic quality and completeness scores to raw records
type Scorer struct {
	weights             Weights
	invalidPricePenalty float64
}

// NewScorer builds a scorer from a weight distribution and the multiplicative
// penalty applied to records with an unusable price.
func NewScorer(weights Weights, invalidPricePenalty float64) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if invalidPricePenalty <= 0 || invalidPricePenalty > 1 {
		return nil, fmt.Errorf("invalid price penalty must be in (0,1], got %f", invalidPricePenalty)
	}
	return &Scorer{weights: weights, invalidPricePenalty: invalidPricePenalty}, nil
}

// Score computes the quality score in [0,1], the completeness score in
// [0,100], and any detected issues. Pure function of the record's fields.
func (s *Scorer) Score(rec *models.RawProductRecord) (float64, float64, []Issue) {
	var score float64
	var issues []Issue

	name := strings.TrimSpace(rec.Name)
	if len(name) >= MinNameLength {
		score += s.weights.Name
	} else {
		issues = append(issues, Issue{
			Type:     models.IssueInvalidName,
			Severity: models.SeverityCritical,
			Field:    "name",
			Message:  fmt.Sprintf("product name missing or shorter than %d characters", MinNameLength),
		})
	}

	if rec.Description != nil && len(strings.TrimSpace(*rec.Description)) >= MinDescriptionLength {
		score += s.weights.Description
	}

	priceValid := rec.HasValidPrice()
	if priceValid {
		score += s.weights.Price
	} else {
		issues = append(issues, Issue{
			Type:     models.IssueInvalidPrice,
			Severity: models.SeverityCritical,
			Field:    "search_price",
			Message:  "search price is missing or not positive",
		})
	}

	if rec.ImageCount() > 0 {
		score += s.weights.Image
	} else {
		issues = append(issues, Issue{
			Type:     models.IssueMissingImage,
			Severity: models.SeverityWarning,
			Field:    "image_url",
			Message:  "record carries no image URL",
		})
	}

	if rec.Brand != nil && strings.TrimSpace(*rec.Brand) != "" {
		score += s.weights.Brand
	}
	if rec.CategoryName != nil && strings.TrimSpace(*rec.CategoryName) != "" {
		score += s.weights.Category
	}
	if rec.InStockKnown() {
		score += s.weights.StockKnown
	}
	if rec.Colour != nil && strings.TrimSpace(*rec.Colour) != "" {
		score += s.weights.Colour
	}
	if rec.ImageCount() >= 2 {
		score += s.weights.ImageCount
	}
	if hasDiscountEvidence(rec) {
		score += s.weights.Discount
	}
	if rec.StockQuantity != nil && *rec.StockQuantity > 0 {
		score += s.weights.StockQuantity
	}

	// An unusable price tanks the whole score, not just the price weight.
	if !priceValid {
		score *= s.invalidPricePenalty
	}

	return clamp01(score), s.completeness(rec), issues
}

// completeness measures how many checklist fields are populated, in [0,100]
func (s *Scorer) completeness(rec *models.RawProductRecord) float64 {
	checks := []bool{
		strings.TrimSpace(rec.Name) != "",
		rec.Brand != nil && *rec.Brand != "",
		rec.Description != nil && *rec.Description != "",
		rec.CategoryName != nil && *rec.CategoryName != "",
		rec.SearchPrice != nil,
		rec.RRPPrice != nil,
		rec.Currency != nil && *rec.Currency != "",
		rec.ImageCount() > 0,
		rec.Colour != nil && *rec.Colour != "",
		rec.Size != nil && *rec.Size != "",
		rec.Material != nil && *rec.Material != "",
		rec.InStockKnown(),
		rec.StockQuantity != nil,
		rec.GTIN != nil && *rec.GTIN != "",
		rec.LastUpdated != nil,
	}

	populated := 0
	for _, ok := range checks {
		if ok {
			populated++
		}
	}
	return math.Round(float64(populated)/float64(len(checks))*10000) / 100
}

// hasDiscountEvidence reports whether the rrp price indicates a real markdown
func hasDiscountEvidence(rec *models.RawProductRecord) bool {
	return rec.RRPPrice != nil && rec.SearchPrice != nil &&
		*rec.RRPPrice > 0 && *rec.SearchPrice > 0 && *rec.RRPPrice > *rec.SearchPrice
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
