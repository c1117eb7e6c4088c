package catalog

import (
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"curation-service/internal/models"
)

const minCatalogNameLength = 3

// Assembler builds the bounded, ranked canonical catalog view from a
// point-in-time snapshot of curated products.
type Assembler struct {
	minQualityScore      float64
	highQualityThreshold float64
	breakpoints          []float64
	partitionCap         int
	logger               *logrus.Entry
}

func NewAssembler(minQualityScore, highQualityThreshold float64, breakpoints []float64, partitionCap int, logger *logrus.Logger) *Assembler {
	return &Assembler{
		minQualityScore:      minQualityScore,
		highQualityThreshold: highQualityThreshold,
		breakpoints:          breakpoints,
		partitionCap:         partitionCap,
		logger:               logger.WithField("component", "catalog-assembler"),
	}
}

// Assemble filters, enriches, ranks and bounds the catalog. The input is
// read as a consistent snapshot; no product row is mutated except for the
// derived price band.
func (a *Assembler) Assemble(products []*models.Product, now time.Time) *models.CatalogView {
	entries := make([]models.CatalogEntry, 0, len(products))
	for _, p := range products {
		if !a.includable(p) {
			continue
		}

		band := BandFor(*p.SearchPrice, a.breakpoints)
		p.PriceBand = &band

		pct, amount := Discount(p.RRPPrice, p.SearchPrice)
		entries = append(entries, models.CatalogEntry{
			Product:            *p,
			DiscountPercentage: pct,
			DiscountAmount:     amount,
			HighQuality:        p.QualityScore >= a.highQualityThreshold,
		})
	}

	a.rankPartitions(entries)
	entries = a.capByCategory(entries)

	a.logger.WithFields(logrus.Fields{
		"candidates": len(products),
		"included":   len(entries),
	}).Info("Catalog assembled")

	return &models.CatalogView{
		Entries:     entries,
		Total:       len(entries),
		AssembledAt: now,
	}
}

// includable applies the catalog filter pipeline; every condition must hold
func (a *Assembler) includable(p *models.Product) bool {
	if !p.IsActive || p.IsNSFW {
		return false
	}
	if p.IsDuplicate || p.CanonicalProductID != nil {
		return false
	}
	if p.QualityScore < a.minQualityScore {
		return false
	}
	if p.SearchPrice == nil || *p.SearchPrice <= 0 {
		return false
	}
	if len(strings.TrimSpace(p.Name)) < minCatalogNameLength {
		return false
	}
	return true
}

// rankPartitions assigns the partitioned orderings: per brand and per
// category by quality then ascending price, per price band by quality then
// descending discount, plus a global dense quality rank.
func (a *Assembler) rankPartitions(entries []models.CatalogEntry) {
	byBrand := partition(entries, func(e *models.CatalogEntry) string {
		if e.Brand == nil {
			return ""
		}
		return *e.Brand
	})
	for _, members := range byBrand {
		sortByQualityThenPrice(entries, members)
		for rank, idx := range members {
			entries[idx].BrandRank = rank + 1
		}
	}

	byCategory := partition(entries, categoryKey)
	for _, members := range byCategory {
		sortByQualityThenPrice(entries, members)
		for rank, idx := range members {
			entries[idx].CategoryRank = rank + 1
		}
	}

	byBand := partition(entries, func(e *models.CatalogEntry) string {
		if e.PriceBand == nil {
			return ""
		}
		return string(*e.PriceBand)
	})
	for _, members := range byBand {
		sort.SliceStable(members, func(x, y int) bool {
			a, b := &entries[members[x]], &entries[members[y]]
			if a.QualityScore != b.QualityScore {
				return a.QualityScore > b.QualityScore
			}
			if a.DiscountPercentage != b.DiscountPercentage {
				return a.DiscountPercentage > b.DiscountPercentage
			}
			return a.ID.String() < b.ID.String()
		})
		for rank, idx := range members {
			entries[idx].PriceBandRank = rank + 1
		}
	}

	a.denseQualityRank(entries)
}

// denseQualityRank assigns the global rank: equal quality shares a rank and
// the next distinct quality takes the following value, with no gaps.
func (a *Assembler) denseQualityRank(entries []models.CatalogEntry) {
	order := make([]int, len(entries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		if entries[order[x]].QualityScore != entries[order[y]].QualityScore {
			return entries[order[x]].QualityScore > entries[order[y]].QualityScore
		}
		return entries[order[x]].ID.String() < entries[order[y]].ID.String()
	})

	rank := 0
	lastQuality := 2.0
	for _, idx := range order {
		if entries[idx].QualityScore != lastQuality {
			rank++
			lastQuality = entries[idx].QualityScore
		}
		entries[idx].QualityRank = rank
	}
}

// capByCategory bounds each category partition to the configured cap,
// always keeping the highest-ranked members.
func (a *Assembler) capByCategory(entries []models.CatalogEntry) []models.CatalogEntry {
	if a.partitionCap <= 0 {
		return entries
	}

	kept := make([]models.CatalogEntry, 0, len(entries))
	for _, e := range entries {
		if e.CategoryRank <= a.partitionCap {
			kept = append(kept, e)
		}
	}
	return kept
}

func categoryKey(e *models.CatalogEntry) string {
	if e.CategoryName == nil {
		return ""
	}
	return *e.CategoryName
}

// partition groups entry indexes by key, iterated in sorted key order for
// deterministic ranking across runs.
func partition(entries []models.CatalogEntry, key func(*models.CatalogEntry) string) [][]int {
	groups := make(map[string][]int)
	for i := range entries {
		k := key(&entries[i])
		groups[k] = append(groups[k], i)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([][]int, 0, len(keys))
	for _, k := range keys {
		out = append(out, groups[k])
	}
	return out
}

func sortByQualityThenPrice(entries []models.CatalogEntry, members []int) {
	sort.SliceStable(members, func(x, y int) bool {
		a, b := &entries[members[x]], &entries[members[y]]
		if a.QualityScore != b.QualityScore {
			return a.QualityScore > b.QualityScore
		}
		ap, bp := priceOf(a), priceOf(b)
		if ap != bp {
			return ap < bp
		}
		return a.ID.String() < b.ID.String()
	})
}

func priceOf(e *models.CatalogEntry) float64 {
	if e.SearchPrice == nil {
		return 0
	}
	return *e.SearchPrice
}
