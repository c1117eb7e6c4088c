package dedup

import (
	"curation-service/internal/models"
)

// ExactStrategy matches candidates whose normalized name, brand, price and
// merchant canonicalize to the same content hash. Cheapest strategy, applied
// first via an O(1) hash index.
type ExactStrategy struct{}

func NewExactStrategy() *ExactStrategy {
	return &ExactStrategy{}
}

func (s *ExactStrategy) Method() models.DuplicateMethod {
	return models.MethodExactHash
}

func (s *ExactStrategy) Match(a, b *Candidate) (float64, models.ConfidenceTier) {
	if a.hash == b.hash {
		return 1.0, models.ConfidenceVeryHigh
	}
	return 0, models.ConfidenceVeryLow
}

// GroupByHash buckets candidates sharing a content hash. Only buckets with
// more than one member are returned.
func (s *ExactStrategy) GroupByHash(cands []*Candidate) [][]*Candidate {
	index := make(map[string][]*Candidate, len(cands))
	order := make([]string, 0, len(cands))
	for _, c := range cands {
		if _, seen := index[c.hash]; !seen {
			order = append(order, c.hash)
		}
		index[c.hash] = append(index[c.hash], c)
	}

	var groups [][]*Candidate
	for _, h := range order {
		if bucket := index[h]; len(bucket) > 1 {
			groups = append(groups, bucket)
		}
	}
	return groups
}
