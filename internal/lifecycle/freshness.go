package lifecycle

import (
	"time"

	"curation-service/internal/models"
)

const (
	freshWindow  = 7 * 24 * time.Hour
	recentWindow = 30 * 24 * time.Hour
)

// Thresholds holds the configurable staleness cutoffs in days. The fresh and
// recent windows are fixed at 7 and 30 days.
type Thresholds struct {
	StaleDays     int
	VeryStaleDays int
}

// DefaultThresholds returns the standard staleness cutoffs
func DefaultThresholds() Thresholds {
	return Thresholds{StaleDays: 90, VeryStaleDays: 180}
}

// Freshness classifies a product by elapsed time since its last feed update.
// Pure function of (now, lastUpdated, thresholds); recomputation with the
// same inputs always yields the same status. A nil lastUpdated is treated as
// maximally stale.
func Freshness(now time.Time, lastUpdated *time.Time, t Thresholds) models.FreshnessStatus {
	if lastUpdated == nil {
		return models.FreshnessVeryStale
	}

	age := now.Sub(*lastUpdated)
	switch {
	case age <= freshWindow:
		return models.FreshnessFresh
	case age <= recentWindow:
		return models.FreshnessRecent
	case age <= time.Duration(t.StaleDays)*24*time.Hour:
		return models.FreshnessAging
	case age <= time.Duration(t.VeryStaleDays)*24*time.Hour:
		return models.FreshnessStale
	default:
		return models.FreshnessVeryStale
	}
}
