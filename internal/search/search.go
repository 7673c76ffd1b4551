// Package search abstracts the fuzzy full-text index over canonical factory
// names and address text.
package search

import (
	"context"

	"github.com/facilityhub/registry-cli/internal/model"
)

// Hit is one index result: an entity id and its relevance score in [0, 1].
type Hit struct {
	ID    string
	Score float64
}

// Searcher queries the fuzzy index. Both methods filter to the given
// country and return at most limit hits, best first.
type Searcher interface {
	// Factories matches cleanedName against canonical factory cleaned names.
	Factories(ctx context.Context, cleanedName, country string, limit int) ([]Hit, error)

	// Addresses matches address text allowing up to maxDistance edits.
	Addresses(ctx context.Context, address, country string, maxDistance, limit int) ([]Hit, error)
}

// Catalog enumerates canonical entities for in-memory indexing.
type Catalog interface {
	FactoriesByCountry(ctx context.Context, country string) ([]model.Factory, error)
	AddressesByCountry(ctx context.Context, country string) ([]model.Address, error)
}
