package dedup

import (
	"errors"

	"curation-service/internal/models"
)

// ErrBudgetExhausted signals that clustering hit its iteration budget before
// converging. The affected candidate set degrades to unresolved; the batch
// carries on.
var ErrBudgetExhausted = errors.New("dedup: clustering iteration budget exhausted")

// ClusterStrategy finds many-to-many duplicate groups with density-based
// clustering over trigram space. Unlike the pairwise strategies it needs a
// single global view of its candidate set, which makes it the
// synchronization point of the dedup pass.
//
// Defaults (minimum similarity 0.70, minimum cluster size 2) are working
// assumptions and overridable through configuration.
type ClusterStrategy struct {
	minSimilarity float64
	minSize       int
	maxIterations int
	fuzzy         *FuzzyStrategy
}

func NewClusterStrategy(minSimilarity float64, minSize, maxIterations int) *ClusterStrategy {
	if minSize < 2 {
		minSize = 2
	}
	return &ClusterStrategy{
		minSimilarity: minSimilarity,
		minSize:       minSize,
		maxIterations: maxIterations,
		fuzzy:         NewFuzzyStrategy(minSimilarity),
	}
}

func (s *ClusterStrategy) Method() models.DuplicateMethod {
	return models.MethodDensityCluster
}

func (s *ClusterStrategy) Match(a, b *Candidate) (float64, models.ConfidenceTier) {
	score := s.fuzzy.Similarity(a, b)
	if score < s.minSimilarity {
		return score, models.ConfidenceVeryLow
	}
	return score, TierForScore(score)
}

// Run clusters the full candidate set in one pass. Each returned group holds
// transitively connected near-duplicates that pairwise matching alone would
// miss. Returns ErrBudgetExhausted when the pairwise comparison budget runs
// out before the pass completes.
func (s *ClusterStrategy) Run(cands []*Candidate) ([][]*Candidate, error) {
	n := len(cands)
	if n < s.minSize {
		return nil, nil
	}

	const (
		unvisited = 0
		noise     = -1
	)

	labels := make([]int, n)
	iterations := 0
	nextCluster := 0

	neighbors := func(i int) ([]int, error) {
		var out []int
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			iterations++
			if s.maxIterations > 0 && iterations > s.maxIterations {
				return nil, ErrBudgetExhausted
			}
			if s.fuzzy.Similarity(cands[i], cands[j]) >= s.minSimilarity {
				out = append(out, j)
			}
		}
		return out, nil
	}

	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}
		seeds, err := neighbors(i)
		if err != nil {
			return nil, err
		}
		if len(seeds)+1 < s.minSize {
			labels[i] = noise
			continue
		}

		nextCluster++
		labels[i] = nextCluster

		// Expand the cluster breadth-first over density-reachable points
		queue := append([]int(nil), seeds...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			if labels[j] == noise {
				labels[j] = nextCluster
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = nextCluster

			reach, err := neighbors(j)
			if err != nil {
				return nil, err
			}
			if len(reach)+1 >= s.minSize {
				queue = append(queue, reach...)
			}
		}
	}

	groups := make([][]*Candidate, nextCluster)
	for i, label := range labels {
		if label > 0 {
			groups[label-1] = append(groups[label-1], cands[i])
		}
	}

	var out [][]*Candidate
	for _, g := range groups {
		if len(g) >= s.minSize {
			out = append(out, g)
		}
	}
	return out, nil
}
