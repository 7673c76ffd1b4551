package search

import (
	"context"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
	"github.com/rotisserie/eris"
)

// MemorySearcher implements Searcher by scanning a Catalog and scoring with
// trigram similarity (pg_trgm-compatible padding) plus levenshtein edit
// distance for addresses. Backs the sqlite store, which has no fuzzy index.
type MemorySearcher struct {
	catalog       Catalog
	minSimilarity float64
}

// NewMemorySearcher creates a MemorySearcher over the given catalog.
func NewMemorySearcher(catalog Catalog, minSimilarity float64) *MemorySearcher {
	if minSimilarity <= 0 {
		minSimilarity = 0.1
	}
	return &MemorySearcher{catalog: catalog, minSimilarity: minSimilarity}
}

// Factories implements Searcher.
func (s *MemorySearcher) Factories(ctx context.Context, cleanedName, country string, limit int) ([]Hit, error) {
	factories, err := s.catalog.FactoriesByCountry(ctx, country)
	if err != nil {
		return nil, eris.Wrap(err, "search: list factories")
	}

	var hits []Hit
	for _, f := range factories {
		score := trigramSimilarity(cleanedName, f.CleanedName)
		if score > s.minSimilarity {
			hits = append(hits, Hit{ID: f.ID, Score: score})
		}
	}
	return topHits(hits, limit), nil
}

// Addresses implements Searcher.
func (s *MemorySearcher) Addresses(ctx context.Context, address, country string, maxDistance, limit int) ([]Hit, error) {
	addresses, err := s.catalog.AddressesByCountry(ctx, country)
	if err != nil {
		return nil, eris.Wrap(err, "search: list addresses")
	}

	query := strings.ToLower(address)
	var hits []Hit
	for _, a := range addresses {
		score := trigramSimilarity(address, a.Address)
		if score > s.minSimilarity ||
			levenshtein.Distance(query, strings.ToLower(a.Address), nil) <= maxDistance {
			hits = append(hits, Hit{ID: a.ID, Score: score})
		}
	}
	return topHits(hits, limit), nil
}

func topHits(hits []Hit, limit int) []Hit {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// trigramSimilarity computes pg_trgm-style similarity: the ratio of shared
// trigrams to total distinct trigrams, over lower-cased words padded with
// two leading and one trailing space.
func trigramSimilarity(a, b string) float64 {
	ta := trigrams(a)
	tb := trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

func trigrams(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(s)) {
		padded := "  " + word + " "
		runes := []rune(padded)
		for i := 0; i+3 <= len(runes); i++ {
			set[string(runes[i:i+3])] = struct{}{}
		}
	}
	return set
}
