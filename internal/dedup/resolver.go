package dedup

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"curation-service/internal/models"
)

// Resolver runs the matching strategies in increasing cost order, merges the
// resulting pairs into duplicate sets, and elects one canonical member per
// set. Duplicates keep their rows; resolution only rewrites pointers and
// discounts scores.
type Resolver struct {
	exact    *ExactStrategy
	fuzzy    *FuzzyStrategy
	cluster  *ClusterStrategy
	cross    *CrossMerchantStrategy
	discount float64
	shards   int
	logger   *logrus.Entry
}

// ResolverConfig carries the externally supplied tuning knobs
type ResolverConfig struct {
	FuzzyMatchFloor         float64
	ClusterMinSimilarity    float64
	ClusterMinSize          int
	ClusterMaxIterations    int
	CrossMerchantPriceDelta float64
	DuplicateScoreDiscount  float64
	Shards                  int
}

func NewResolver(cfg ResolverConfig, logger *logrus.Logger) *Resolver {
	shards := cfg.Shards
	if shards < 1 {
		shards = 1
	}
	return &Resolver{
		exact:    NewExactStrategy(),
		fuzzy:    NewFuzzyStrategy(cfg.FuzzyMatchFloor),
		cluster:  NewClusterStrategy(cfg.ClusterMinSimilarity, cfg.ClusterMinSize, cfg.ClusterMaxIterations),
		cross:    NewCrossMerchantStrategy(cfg.CrossMerchantPriceDelta),
		discount: cfg.DuplicateScoreDiscount,
		shards:   shards,
		logger:   logger.WithField("component", "dedup-resolver"),
	}
}

// DuplicateSet is one resolved group: the elected canonical plus its
// duplicates in deterministic order.
type DuplicateSet struct {
	Canonical  *models.Product
	Duplicates []*models.Product
}

// Resolution is the outcome of one dedup pass over the active record set
type Resolution struct {
	Sets            []DuplicateSet
	Links           []models.DuplicateLink
	DuplicateCount  int
	ClusterDegraded bool
}

type edge struct {
	a, b   int
	method models.DuplicateMethod
	score  float64
	tier   models.ConfidenceTier
}

// Resolve groups the given products into duplicate sets and applies canonical
// elections in place. Products outside any set get their duplicate state
// cleared, so elections are effectively re-run whenever membership changes.
func (r *Resolver) Resolve(ctx context.Context, products []*models.Product) (*Resolution, error) {
	cands := make([]*Candidate, len(products))
	pos := make(map[*Candidate]int, len(products))
	for i, p := range products {
		cands[i] = NewCandidate(p)
		pos[cands[i]] = i
	}

	var edges []edge

	// Phase 1: exact hash groups, O(1) index lookups
	for _, group := range r.exact.GroupByHash(cands) {
		base := pos[group[0]]
		for _, c := range group[1:] {
			edges = append(edges, edge{
				a: base, b: pos[c],
				method: r.exact.Method(), score: 1.0, tier: models.ConfidenceVeryHigh,
			})
		}
	}

	// Phase 2: fuzzy matching, sharded and parallel
	fuzzyEdges, err := r.fuzzyPhase(ctx, cands)
	if err != nil {
		return nil, err
	}
	edges = append(edges, fuzzyEdges...)

	// Phase 3: clustering over the merged global candidate view. All shard
	// results are in before this point; no pointer is written until after.
	resolution := &Resolution{}
	groups, err := r.cluster.Run(cands)
	if err != nil {
		// Cluster timeouts degrade to unresolved rather than failing the batch
		r.logger.WithError(err).Warn("Clustering did not converge, degrading affected sets to unresolved")
		resolution.ClusterDegraded = true
	}
	for _, group := range groups {
		base := pos[group[0]]
		for _, c := range group[1:] {
			j := pos[c]
			score, tier := r.cluster.Match(cands[base], cands[j])
			// Membership is transitive, so the pairwise score against the
			// base can sit below the floor. The edge stays, but never with
			// a tier that means "not a match".
			if tier == models.ConfidenceVeryLow {
				tier = models.ConfidenceLow
			}
			edges = append(edges, edge{a: base, b: j, method: r.cluster.Method(), score: score, tier: tier})
		}
	}

	// Phase 4: cross-merchant identity matching
	edges = append(edges, r.crossMerchantPhase(cands)...)

	r.apply(cands, products, edges, resolution)
	return resolution, nil
}

// fuzzyPhase shards candidates by brand (falling back to name prefix) and
// compares pairs within each shard concurrently.
func (r *Resolver) fuzzyPhase(ctx context.Context, cands []*Candidate) ([]edge, error) {
	shardKeys := make(map[string][]int)
	for i, c := range cands {
		key := c.normBrand
		if key == "" && c.normName != "" {
			key = c.normName[:1]
		}
		shardKeys[key] = append(shardKeys[key], i)
	}

	keys := make([]string, 0, len(shardKeys))
	for k := range shardKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	results := make([][]edge, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.shards)

	for ki, key := range keys {
		ki, members := ki, shardKeys[key]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var local []edge
			for x := 0; x < len(members); x++ {
				for y := x + 1; y < len(members); y++ {
					i, j := members[x], members[y]
					score, tier := r.fuzzy.Match(cands[i], cands[j])
					if tier == models.ConfidenceVeryLow {
						continue
					}
					local = append(local, edge{a: i, b: j, method: r.fuzzy.Method(), score: score, tier: tier})
				}
			}
			results[ki] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge in shard-key order so repeated runs see identical edge order
	var merged []edge
	for _, local := range results {
		merged = append(merged, local...)
	}
	return merged, nil
}

// crossMerchantPhase indexes candidates by GTIN, brand+MPN and name+brand so
// identity matches across merchants cost one lookup each.
func (r *Resolver) crossMerchantPhase(cands []*Candidate) []edge {
	byGTIN := make(map[string][]int)
	byBrandMPN := make(map[string][]int)
	byNameBrand := make(map[string][]int)

	for i, c := range cands {
		if c.GTIN != "" {
			byGTIN[c.GTIN] = append(byGTIN[c.GTIN], i)
		}
		if c.MPN != "" && c.normBrand != "" {
			byBrandMPN[c.normBrand+"|"+c.MPN] = append(byBrandMPN[c.normBrand+"|"+c.MPN], i)
		}
		if c.normName != "" && c.normBrand != "" {
			byNameBrand[c.normName+"|"+c.normBrand] = append(byNameBrand[c.normName+"|"+c.normBrand], i)
		}
	}

	var edges []edge
	emit := func(index map[string][]int) {
		keys := make([]string, 0, len(index))
		for k := range index {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			members := index[k]
			for x := 0; x < len(members); x++ {
				for y := x + 1; y < len(members); y++ {
					i, j := members[x], members[y]
					score, tier := r.cross.Match(cands[i], cands[j])
					if tier == models.ConfidenceVeryLow {
						continue
					}
					edges = append(edges, edge{a: i, b: j, method: r.cross.Method(), score: score, tier: tier})
				}
			}
		}
	}
	emit(byGTIN)
	emit(byBrandMPN)
	emit(byNameBrand)
	return edges
}

// apply merges edges into sets with union-find, elects canonicals, rewrites
// pointers and emits duplicate links. Mutations never remove a row.
func (r *Resolver) apply(cands []*Candidate, products []*models.Product, edges []edge, resolution *Resolution) {
	parent := make([]int, len(cands))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(i, j int) {
		ri, rj := find(i), find(j)
		if ri != rj {
			parent[rj] = ri
		}
	}

	incident := make(map[int][]edge)
	for _, e := range edges {
		union(e.a, e.b)
		incident[e.a] = append(incident[e.a], e)
		incident[e.b] = append(incident[e.b], e)
	}

	sets := make(map[int][]int)
	for i := range cands {
		root := find(i)
		sets[root] = append(sets[root], i)
	}

	roots := make([]int, 0, len(sets))
	for root, members := range sets {
		if len(members) > 1 {
			roots = append(roots, root)
		}
	}
	sort.Ints(roots)

	inSet := make(map[int]bool)
	for _, root := range roots {
		members := sets[root]
		r.electCanonical(cands, members)

		canonical := products[members[0]]
		canonical.IsDuplicate = false
		canonical.CanonicalProductID = nil
		inSet[members[0]] = true

		set := DuplicateSet{Canonical: canonical}
		for _, m := range members[1:] {
			inSet[m] = true
			dup := products[m]
			dup.IsDuplicate = true
			id := canonical.ID
			dup.CanonicalProductID = &id
			dup.QualityScore = cands[m].Quality * r.discount
			set.Duplicates = append(set.Duplicates, dup)

			best := r.bestIncidentEdge(incident[m])
			resolution.Links = append(resolution.Links, models.DuplicateLink{
				OriginalID:      canonical.ID,
				DuplicateID:     dup.ID,
				Method:          best.method,
				SimilarityScore: best.score,
				ConfidenceTier:  best.tier,
			})
			resolution.DuplicateCount++
		}
		resolution.Sets = append(resolution.Sets, set)
	}

	// Products outside any set lose stale duplicate state from earlier runs
	for i, p := range products {
		if !inSet[i] {
			p.IsDuplicate = false
			p.CanonicalProductID = nil
		}
	}
}

// electCanonical orders set members so the canonical comes first: highest
// quality, then lowest price, then earliest first-seen, then ID for a stable
// total order.
func (r *Resolver) electCanonical(cands []*Candidate, members []int) {
	sort.SliceStable(members, func(x, y int) bool {
		a, b := cands[members[x]], cands[members[y]]
		if a.Quality != b.Quality {
			return a.Quality > b.Quality
		}
		ap, bp := priceOrInf(a.Price), priceOrInf(b.Price)
		if ap != bp {
			return ap < bp
		}
		if !a.FirstSeen.Equal(b.FirstSeen) {
			return a.FirstSeen.Before(b.FirstSeen)
		}
		return a.ID.String() < b.ID.String()
	})
}

func (r *Resolver) bestIncidentEdge(edges []edge) edge {
	best := edges[0]
	for _, e := range edges[1:] {
		if e.score > best.score {
			best = e
		}
	}
	return best
}

func priceOrInf(p *float64) float64 {
	if p == nil {
		return maxPrice
	}
	return *p
}

const maxPrice = 1e18
