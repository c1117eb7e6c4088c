package lifecycle

import (
	"time"

	"curation-service/internal/models"
)

// Tracker derives freshness and removal-candidate tags for products.
// Removal is a tag consumed by an external purge process; this service never
// deletes rows.
type Tracker struct {
	thresholds      Thresholds
	minQualityScore float64
}

func NewTracker(thresholds Thresholds, minQualityScore float64) *Tracker {
	return &Tracker{thresholds: thresholds, minQualityScore: minQualityScore}
}

// Evaluate recomputes the freshness status and removal tag of a product in
// place. Idempotent for a fixed now: repeated calls change nothing beyond
// the derived fields themselves.
func (t *Tracker) Evaluate(now time.Time, p *models.Product) {
	p.FreshnessStatus = Freshness(now, p.LastUpdated, t.thresholds)
	p.RemovalReason = t.removalReason(p)
}

// removalReason combines freshness with business signals. Rules fire in
// priority order; the first hit wins.
func (t *Tracker) removalReason(p *models.Product) *models.RemovalReason {
	stale := p.FreshnessStatus == models.FreshnessStale || p.FreshnessStatus == models.FreshnessVeryStale
	outOfStock := p.InStock != nil && !*p.InStock

	switch {
	case p.FreshnessStatus == models.FreshnessVeryStale:
		return reason(models.RemovalVeryStale)
	case stale && outOfStock:
		return reason(models.RemovalStaleAndOutOfStock)
	case stale && p.QualityScore < t.minQualityScore:
		return reason(models.RemovalStaleAndLowQuality)
	case p.IsNSFW:
		return reason(models.RemovalNSFWContent)
	case p.SearchPrice == nil || *p.SearchPrice <= 0:
		return reason(models.RemovalInvalidPrice)
	default:
		return nil
	}
}

func reason(r models.RemovalReason) *models.RemovalReason {
	return &r
}
