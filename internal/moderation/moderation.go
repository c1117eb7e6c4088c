package moderation

import (
	"strings"

	"github.com/cloudflare/ahocorasick"
	"curation-service/internal/models"
)

// defaultBlockedTerms seeds the NSFW/spam screen. Matching is
// case-insensitive over name and description.
var defaultBlockedTerms = []string{
	"xxx",
	"adult only",
	"adults only",
	"explicit",
	"erotic",
	"fetish",
	"sex toy",
	"pornographic",
	"nsfw",
}

// Screener flags records whose text content is unfit for the public catalog
type Screener struct {
	matcher *ahocorasick.Matcher
	terms   []string
}

// NewScreener builds a screener from the supplied terms, falling back to the
// default blocklist when none are given.
func NewScreener(terms []string) *Screener {
	if len(terms) == 0 {
		terms = defaultBlockedTerms
	}
	lowered := make([]string, len(terms))
	for i, t := range terms {
		lowered[i] = strings.ToLower(t)
	}
	return &Screener{
		matcher: ahocorasick.NewStringMatcher(lowered),
		terms:   lowered,
	}
}

// Check reports whether the record matches the blocklist and which term hit.
// A flagged record is tagged, never dropped.
func (s *Screener) Check(rec *models.RawProductRecord) (bool, string) {
	text := strings.ToLower(rec.Name)
	if rec.Description != nil {
		text += " " + strings.ToLower(*rec.Description)
	}

	hits := s.matcher.Match([]byte(text))
	if len(hits) == 0 {
		return false, ""
	}
	return true, s.terms[hits[0]]
}
