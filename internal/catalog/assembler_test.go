package catalog

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"curation-service/internal/models"
)

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestAssembler(cap int) *Assembler {
	return NewAssembler(0.3, 0.8, []float64{20, 75, 250}, cap, testLogger())
}

func catalogProduct(name string, quality, price float64) *models.Product {
	return &models.Product{
		ID:           uuid.New(),
		Name:         name,
		Brand:        strPtr("Acme"),
		CategoryName: strPtr("Accessories"),
		SearchPrice:  f64Ptr(price),
		QualityScore: quality,
		IsActive:     true,
	}
}

func TestBandFor(t *testing.T) {
	breakpoints := []float64{20, 75, 250}

	assert.Equal(t, models.PriceBandBudget, BandFor(5, breakpoints))
	assert.Equal(t, models.PriceBandBudget, BandFor(20, breakpoints))
	assert.Equal(t, models.PriceBandMidRange, BandFor(20.01, breakpoints))
	assert.Equal(t, models.PriceBandMidRange, BandFor(75, breakpoints))
	assert.Equal(t, models.PriceBandPremium, BandFor(250, breakpoints))
	assert.Equal(t, models.PriceBandLuxury, BandFor(250.01, breakpoints))
}

func TestDiscount(t *testing.T) {
	pct, amount := Discount(f64Ptr(100), f64Ptr(75))
	assert.Equal(t, 25.0, pct)
	assert.Equal(t, 25.0, amount)

	// No rrp, rrp below price, and zero prices all mean no discount
	pct, amount = Discount(nil, f64Ptr(75))
	assert.Zero(t, pct)
	assert.Zero(t, amount)

	pct, amount = Discount(f64Ptr(50), f64Ptr(75))
	assert.Zero(t, pct)
	assert.Zero(t, amount)

	pct, amount = Discount(f64Ptr(0), f64Ptr(0))
	assert.Zero(t, pct)
	assert.Zero(t, amount)
}

func TestAssemble_FiltersExclusions(t *testing.T) {
	assembler := newTestAssembler(0)
	canonicalID := uuid.New()

	healthy := catalogProduct("Red Leather Wallet", 0.9, 19.99)

	inactive := catalogProduct("Inactive Product", 0.9, 19.99)
	inactive.IsActive = false

	nsfw := catalogProduct("Flagged Product", 0.9, 19.99)
	nsfw.IsNSFW = true

	duplicate := catalogProduct("Duplicate Product", 0.9, 19.99)
	duplicate.IsDuplicate = true
	duplicate.CanonicalProductID = &canonicalID

	lowQuality := catalogProduct("Low Quality Product", 0.1, 19.99)

	freePrice := catalogProduct("Free Product", 0.9, 0)

	noPrice := catalogProduct("Unpriced Product", 0.9, 19.99)
	noPrice.SearchPrice = nil

	shortName := catalogProduct("ab", 0.9, 19.99)

	view := assembler.Assemble([]*models.Product{
		healthy, inactive, nsfw, duplicate, lowQuality, freePrice, noPrice, shortName,
	}, time.Now())

	assert.Equal(t, 1, view.Total)
	assert.Equal(t, healthy.ID, view.Entries[0].ID)
}

func TestAssemble_AssignsPriceBandsAndDiscounts(t *testing.T) {
	assembler := newTestAssembler(0)

	budget := catalogProduct("Budget Product", 0.8, 15.00)
	premium := catalogProduct("Premium Product", 0.8, 120.00)
	premium.RRPPrice = f64Ptr(160.00)

	view := assembler.Assemble([]*models.Product{budget, premium}, time.Now())

	assert.Equal(t, 2, view.Total)
	byName := make(map[string]models.CatalogEntry)
	for _, e := range view.Entries {
		byName[e.Name] = e
	}

	assert.Equal(t, models.PriceBandBudget, *byName["Budget Product"].PriceBand)
	assert.Equal(t, models.PriceBandPremium, *byName["Premium Product"].PriceBand)
	assert.Equal(t, 25.0, byName["Premium Product"].DiscountPercentage)
	assert.Equal(t, 40.0, byName["Premium Product"].DiscountAmount)
}

func TestAssemble_FlagsHighQualityEntries(t *testing.T) {
	assembler := newTestAssembler(0)

	strong := catalogProduct("Strong Product", 0.85, 19.99)
	boundary := catalogProduct("Boundary Product", 0.8, 19.99)
	average := catalogProduct("Average Product", 0.6, 19.99)

	view := assembler.Assemble([]*models.Product{strong, boundary, average}, time.Now())

	flagByName := make(map[string]bool)
	for _, e := range view.Entries {
		flagByName[e.Name] = e.HighQuality
	}
	assert.True(t, flagByName["Strong Product"])
	assert.True(t, flagByName["Boundary Product"])
	assert.False(t, flagByName["Average Product"])
}

func TestAssemble_BrandRankByQualityThenPrice(t *testing.T) {
	assembler := newTestAssembler(0)

	best := catalogProduct("Best Product", 0.9, 30.00)
	cheaper := catalogProduct("Cheaper Same Quality", 0.7, 10.00)
	dearer := catalogProduct("Dearer Same Quality", 0.7, 20.00)

	view := assembler.Assemble([]*models.Product{dearer, cheaper, best}, time.Now())

	rankByName := make(map[string]int)
	for _, e := range view.Entries {
		rankByName[e.Name] = e.BrandRank
	}
	assert.Equal(t, 1, rankByName["Best Product"])
	assert.Equal(t, 2, rankByName["Cheaper Same Quality"])
	assert.Equal(t, 3, rankByName["Dearer Same Quality"])
}

func TestAssemble_DenseQualityRank(t *testing.T) {
	assembler := newTestAssembler(0)

	products := []*models.Product{
		catalogProduct("First", 0.9, 10),
		catalogProduct("Shared A", 0.7, 10),
		catalogProduct("Shared B", 0.7, 10),
		catalogProduct("Last", 0.5, 10),
	}

	view := assembler.Assemble(products, time.Now())

	rankByName := make(map[string]int)
	for _, e := range view.Entries {
		rankByName[e.Name] = e.QualityRank
	}
	assert.Equal(t, 1, rankByName["First"])
	assert.Equal(t, 2, rankByName["Shared A"])
	assert.Equal(t, 2, rankByName["Shared B"])
	assert.Equal(t, 3, rankByName["Last"])
}

func TestAssemble_CategoryCap(t *testing.T) {
	assembler := newTestAssembler(3)

	var products []*models.Product
	for i := 0; i < 10; i++ {
		p := catalogProduct(fmt.Sprintf("Product %02d", i), 0.5+float64(i)*0.01, 10)
		products = append(products, p)
	}

	view := assembler.Assemble(products, time.Now())

	assert.Equal(t, 3, view.Total)
	for _, e := range view.Entries {
		assert.LessOrEqual(t, e.CategoryRank, 3)
		// The cap keeps the highest-quality members
		assert.GreaterOrEqual(t, e.QualityScore, 0.57)
	}
}

func TestAssemble_PriceBandRankPrefersDiscount(t *testing.T) {
	assembler := newTestAssembler(0)

	discounted := catalogProduct("Discounted Product", 0.8, 15.00)
	discounted.RRPPrice = f64Ptr(30.00)
	fullPrice := catalogProduct("Full Price Product", 0.8, 12.00)

	view := assembler.Assemble([]*models.Product{fullPrice, discounted}, time.Now())

	rankByName := make(map[string]int)
	for _, e := range view.Entries {
		rankByName[e.Name] = e.PriceBandRank
	}
	assert.Equal(t, 1, rankByName["Discounted Product"])
	assert.Equal(t, 2, rankByName["Full Price Product"])
}

func TestAssemble_EmptyInput(t *testing.T) {
	assembler := newTestAssembler(0)

	view := assembler.Assemble(nil, time.Now())

	assert.NotNil(t, view)
	assert.Zero(t, view.Total)
	assert.Empty(t, view.Entries)
}

func TestAssemble_Deterministic(t *testing.T) {
	assembler := newTestAssembler(0)

	products := []*models.Product{
		catalogProduct("Alpha", 0.9, 10),
		catalogProduct("Beta", 0.7, 20),
		catalogProduct("Gamma", 0.7, 20),
		catalogProduct("Delta", 0.5, 5),
	}

	now := time.Now()
	first := assembler.Assemble(products, now)
	for i := 0; i < 5; i++ {
		view := assembler.Assemble(products, now)
		assert.Equal(t, first.Total, view.Total)
		for j := range first.Entries {
			assert.Equal(t, first.Entries[j].ID, view.Entries[j].ID)
			assert.Equal(t, first.Entries[j].QualityRank, view.Entries[j].QualityRank)
			assert.Equal(t, first.Entries[j].BrandRank, view.Entries[j].BrandRank)
		}
	}
}
