package dedup

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"curation-service/internal/models"
)

func testResolverConfig() ResolverConfig {
	return ResolverConfig{
		FuzzyMatchFloor:         0.65,
		ClusterMinSimilarity:    0.70,
		ClusterMinSize:          2,
		ClusterMaxIterations:    10000,
		CrossMerchantPriceDelta: 0.05,
		DuplicateScoreDiscount:  0.5,
		Shards:                  4,
	}
}

func newTestResolver(cfg ResolverConfig) *Resolver {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewResolver(cfg, logger)
}

func TestResolve_ExactDuplicates(t *testing.T) {
	resolver := newTestResolver(testResolverConfig())

	high := makeProduct("Red Leather Wallet", "Acme", 19.99, 1, 0.9)
	low := makeProduct("red leather wallet", "ACME", 19.99, 1, 0.5)
	other := makeProduct("Ceramic Flower Vase", "Bloomhouse", 14.50, 1, 0.7)

	resolution, err := resolver.Resolve(context.Background(), []*models.Product{high, low, other})

	assert.NoError(t, err)
	assert.Len(t, resolution.Sets, 1)
	assert.Equal(t, 1, resolution.DuplicateCount)
	assert.False(t, resolution.ClusterDegraded)

	set := resolution.Sets[0]
	assert.Equal(t, high.ID, set.Canonical.ID)
	assert.False(t, high.IsDuplicate)
	assert.Nil(t, high.CanonicalProductID)

	assert.True(t, low.IsDuplicate)
	assert.NotNil(t, low.CanonicalProductID)
	assert.Equal(t, high.ID, *low.CanonicalProductID)
	assert.InDelta(t, 0.25, low.QualityScore, 1e-9)

	assert.False(t, other.IsDuplicate)
	assert.Nil(t, other.CanonicalProductID)

	assert.Len(t, resolution.Links, 1)
	link := resolution.Links[0]
	assert.Equal(t, high.ID, link.OriginalID)
	assert.Equal(t, low.ID, link.DuplicateID)
	assert.Equal(t, models.MethodExactHash, link.Method)
	assert.Equal(t, 1.0, link.SimilarityScore)
	assert.Equal(t, models.ConfidenceVeryHigh, link.ConfidenceTier)
}

func TestResolve_ElectionTieBreaksOnPrice(t *testing.T) {
	resolver := newTestResolver(testResolverConfig())

	cheap := makeProduct("Red Leather Wallet", "Acme", 10.00, 1, 0.8)
	dear := makeProduct("Red Leather Wallet", "Acme", 20.00, 2, 0.8)

	resolution, err := resolver.Resolve(context.Background(), []*models.Product{dear, cheap})

	assert.NoError(t, err)
	assert.Len(t, resolution.Sets, 1)
	assert.Equal(t, cheap.ID, resolution.Sets[0].Canonical.ID)
	assert.True(t, dear.IsDuplicate)
}

func TestResolve_ElectionTieBreaksOnFirstSeen(t *testing.T) {
	resolver := newTestResolver(testResolverConfig())

	older := makeProduct("Red Leather Wallet", "Acme", 10.00, 1, 0.8)
	older.IngestedAt = time.Now().Add(-48 * time.Hour)
	newer := makeProduct("Red Leather Wallet", "Acme", 10.00, 2, 0.8)

	resolution, err := resolver.Resolve(context.Background(), []*models.Product{newer, older})

	assert.NoError(t, err)
	assert.Len(t, resolution.Sets, 1)
	assert.Equal(t, older.ID, resolution.Sets[0].Canonical.ID)
}

func TestResolve_PointersNeverChain(t *testing.T) {
	resolver := newTestResolver(testResolverConfig())

	products := []*models.Product{
		makeProduct("Red Leather Wallet", "Acme", 19.99, 1, 0.9),
		makeProduct("red leather wallet!", "Acme", 18.99, 2, 0.6),
		makeProduct("Red  Leather  Wallet", "ACME", 21.00, 3, 0.5),
		makeProduct("RED LEATHER WALLET", "Acme", 19.50, 4, 0.4),
	}

	resolution, err := resolver.Resolve(context.Background(), products)
	assert.NoError(t, err)
	assert.Len(t, resolution.Sets, 1)

	byID := make(map[string]*models.Product)
	for _, p := range products {
		byID[p.ID.String()] = p
	}
	for _, p := range products {
		if p.CanonicalProductID == nil {
			continue
		}
		target := byID[p.CanonicalProductID.String()]
		assert.NotNil(t, target)
		assert.False(t, target.IsDuplicate)
		assert.Nil(t, target.CanonicalProductID)
	}
}

func TestResolve_ClearsStaleDuplicateState(t *testing.T) {
	resolver := newTestResolver(testResolverConfig())

	orphanTarget := makeProduct("Ceramic Flower Vase", "Bloomhouse", 14.50, 1, 0.7)
	stale := makeProduct("Walnut Desk Organizer", "Craftwood", 32.00, 1, 0.8)
	stale.IsDuplicate = true
	staleID := orphanTarget.ID
	stale.CanonicalProductID = &staleID

	resolution, err := resolver.Resolve(context.Background(), []*models.Product{stale, orphanTarget})

	assert.NoError(t, err)
	assert.Empty(t, resolution.Sets)
	assert.False(t, stale.IsDuplicate)
	assert.Nil(t, stale.CanonicalProductID)
}

func TestResolve_CrossMerchantGTIN(t *testing.T) {
	resolver := newTestResolver(testResolverConfig())

	a := makeProduct("Red Leather Wallet", "Acme", 19.99, 1, 0.9)
	b := makeProduct("Crimson Billfold", "Acme", 25.00, 2, 0.6)
	a.GTIN = strPtr("5012345678900")
	b.GTIN = strPtr("5012345678900")

	resolution, err := resolver.Resolve(context.Background(), []*models.Product{a, b})

	assert.NoError(t, err)
	assert.Len(t, resolution.Sets, 1)
	assert.Equal(t, a.ID, resolution.Sets[0].Canonical.ID)
	assert.True(t, b.IsDuplicate)
	assert.Len(t, resolution.Links, 1)
	assert.Equal(t, models.MethodCrossMerchant, resolution.Links[0].Method)
}

func TestResolve_ClusterBudgetDegrades(t *testing.T) {
	cfg := testResolverConfig()
	cfg.ClusterMaxIterations = 1
	resolver := newTestResolver(cfg)

	products := []*models.Product{
		makeProduct("Red Leather Wallet", "Acme", 19.99, 1, 0.9),
		makeProduct("red leather wallet", "Acme", 18.99, 2, 0.6),
		makeProduct("Ceramic Flower Vase", "Bloomhouse", 14.50, 3, 0.7),
	}

	resolution, err := resolver.Resolve(context.Background(), products)

	// The batch survives; clustering alone degrades
	assert.NoError(t, err)
	assert.True(t, resolution.ClusterDegraded)
	// Fuzzy matching still resolves the obvious pair
	assert.Len(t, resolution.Sets, 1)
}

func TestResolve_FiveMemberSetElectsOneCanonical(t *testing.T) {
	resolver := newTestResolver(testResolverConfig())

	best := makeProduct("Red Leather Wallet", "Acme", 19.99, 1, 0.9)
	products := []*models.Product{
		best,
		makeProduct("red leather wallet", "Acme", 19.99, 1, 0.8),
		makeProduct("Red Leather Wallet!", "Acme", 18.99, 2, 0.7),
		makeProduct("RED LEATHER WALLET", "Acme", 19.50, 3, 0.6),
		makeProduct("Red  Leather  Wallet", "ACME", 21.00, 4, 0.5),
	}

	resolution, err := resolver.Resolve(context.Background(), products)

	assert.NoError(t, err)
	assert.Len(t, resolution.Sets, 1)
	assert.Equal(t, 4, resolution.DuplicateCount)
	assert.Len(t, resolution.Links, 4)
	assert.Equal(t, best.ID, resolution.Sets[0].Canonical.ID)

	for _, p := range products[1:] {
		assert.True(t, p.IsDuplicate)
		assert.NotNil(t, p.CanonicalProductID)
		assert.Equal(t, best.ID, *p.CanonicalProductID)
	}
	for _, link := range resolution.Links {
		assert.Equal(t, best.ID, link.OriginalID)
	}
}

func TestResolve_ClusterLinksNeverCarryVeryLowTier(t *testing.T) {
	cfg := testResolverConfig()
	cfg.ClusterMinSimilarity = 0.35
	resolver := newTestResolver(cfg)

	// Similar enough to cluster at the lowered floor, but below every
	// fuzzy tier boundary
	a := makeProduct("Red Leather Wallet", "Acme", 19.99, 1, 0.9)
	b := makeProduct("Red Silk Scarf", "Acme", 12.00, 2, 0.5)

	resolution, err := resolver.Resolve(context.Background(), []*models.Product{a, b})

	assert.NoError(t, err)
	assert.Len(t, resolution.Sets, 1)
	assert.Len(t, resolution.Links, 1)

	link := resolution.Links[0]
	assert.Equal(t, models.MethodDensityCluster, link.Method)
	assert.NotEqual(t, models.ConfidenceVeryLow, link.ConfidenceTier)
	assert.Equal(t, models.ConfidenceLow, link.ConfidenceTier)
}

func TestResolve_Deterministic(t *testing.T) {
	build := func() []*models.Product {
		products := []*models.Product{
			makeProduct("Red Leather Wallet", "Acme", 19.99, 1, 0.9),
			makeProduct("red leather wallet", "Acme", 18.99, 2, 0.6),
			makeProduct("Walnut Desk Organizer", "Craftwood", 32.00, 1, 0.8),
			makeProduct("walnut desk organiser", "Craftwood", 33.00, 2, 0.7),
			makeProduct("Ceramic Flower Vase", "Bloomhouse", 14.50, 3, 0.7),
		}
		return products
	}

	resolver := newTestResolver(testResolverConfig())

	first := build()
	firstRes, err := resolver.Resolve(context.Background(), first)
	assert.NoError(t, err)

	for i := 0; i < 5; i++ {
		products := build()
		// Pin IDs and timestamps so only iteration order could differ
		for j := range products {
			products[j].ID = first[j].ID
			products[j].IngestedAt = first[j].IngestedAt
		}
		res, err := resolver.Resolve(context.Background(), products)
		assert.NoError(t, err)
		assert.Len(t, res.Sets, len(firstRes.Sets))
		assert.Len(t, res.Links, len(firstRes.Links))
		for k, set := range res.Sets {
			assert.Equal(t, firstRes.Sets[k].Canonical.ID, set.Canonical.ID)
		}
	}
}

func TestResolve_EmptyAndSingleInput(t *testing.T) {
	resolver := newTestResolver(testResolverConfig())

	resolution, err := resolver.Resolve(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, resolution.Sets)

	solo := makeProduct("Red Leather Wallet", "Acme", 19.99, 1, 0.9)
	resolution, err = resolver.Resolve(context.Background(), []*models.Product{solo})
	assert.NoError(t, err)
	assert.Empty(t, resolution.Sets)
	assert.False(t, solo.IsDuplicate)
}
