package dedup

import (
	"github.com/agext/levenshtein"
	"curation-service/internal/models"
)

// FuzzyStrategy matches on text similarity over normalized name+brand. The
// score is the stronger of trigram Jaccard overlap and Levenshtein
// similarity, so short names with small edits and long names with token
// reshuffles both register.
type FuzzyStrategy struct {
	floor float64
}

// NewFuzzyStrategy builds a fuzzy matcher; floor is the similarity below
// which a pair is not considered a match.
func NewFuzzyStrategy(floor float64) *FuzzyStrategy {
	return &FuzzyStrategy{floor: floor}
}

func (s *FuzzyStrategy) Method() models.DuplicateMethod {
	return models.MethodFuzzyName
}

func (s *FuzzyStrategy) Match(a, b *Candidate) (float64, models.ConfidenceTier) {
	score := s.Similarity(a, b)
	if score < s.floor {
		return score, models.ConfidenceVeryLow
	}
	return score, TierForScore(score)
}

// Similarity computes the raw text similarity of two candidates in [0,1]
func (s *FuzzyStrategy) Similarity(a, b *Candidate) float64 {
	tri := jaccard(a.grams, b.grams)
	lev := levenshtein.Similarity(a.normName+" "+a.normBrand, b.normName+" "+b.normBrand, nil)
	if lev > tri {
		return lev
	}
	return tri
}
