package search

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/facilityhub/registry-cli/internal/db"
)

// PostgresSearcher implements Searcher on pg_trgm similarity plus
// fuzzystrmatch levenshtein for the address edit-distance predicate.
// Requires the pg_trgm and fuzzystrmatch extensions.
type PostgresSearcher struct {
	pool          db.Pool
	minSimilarity float64
}

// NewPostgresSearcher creates a PostgresSearcher. minSimilarity is the
// trigram similarity floor below which hits are dropped.
func NewPostgresSearcher(pool db.Pool, minSimilarity float64) *PostgresSearcher {
	if minSimilarity <= 0 {
		minSimilarity = 0.1
	}
	return &PostgresSearcher{pool: pool, minSimilarity: minSimilarity}
}

// Factories implements Searcher.
func (s *PostgresSearcher) Factories(ctx context.Context, cleanedName, country string, limit int) ([]Hit, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, similarity(cleaned_name, $1)::float8 AS score
		FROM factories
		WHERE country = $2 AND similarity(cleaned_name, $1) > $3
		ORDER BY score DESC, id
		LIMIT $4`,
		cleanedName, country, s.minSimilarity, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "search: factory query")
	}
	defer rows.Close()
	return scanHits(rows)
}

// Addresses implements Searcher. A row qualifies when its trigram
// similarity clears the floor or its lower-cased text is within
// maxDistance edits of the query.
func (s *PostgresSearcher) Addresses(ctx context.Context, address, country string, maxDistance, limit int) ([]Hit, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, similarity(address, $1)::float8 AS score
		FROM addresses
		WHERE country = $2
		  AND (similarity(address, $1) > $3
		       OR levenshtein_less_equal(lower(address), lower($1), $4) <= $4)
		ORDER BY score DESC, id
		LIMIT $5`,
		address, country, s.minSimilarity, maxDistance, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "search: address query")
	}
	defer rows.Close()
	return scanHits(rows)
}

func scanHits(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Hit, error) {
	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ID, &h.Score); err != nil {
			return nil, eris.Wrap(err, "search: scan hit")
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "search: iterate hits")
	}
	return hits, nil
}
