package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facilityhub/registry-cli/internal/model"
)

type fakeCatalog struct {
	factories []model.Factory
	addresses []model.Address
}

func (c *fakeCatalog) FactoriesByCountry(ctx context.Context, country string) ([]model.Factory, error) {
	var out []model.Factory
	for _, f := range c.factories {
		if f.Country == country {
			out = append(out, f)
		}
	}
	return out, nil
}

func (c *fakeCatalog) AddressesByCountry(ctx context.Context, country string) ([]model.Address, error) {
	var out []model.Address
	for _, a := range c.addresses {
		if a.Country == country {
			out = append(out, a)
		}
	}
	return out, nil
}

func TestTrigramSimilarity_Identical(t *testing.T) {
	assert.Equal(t, 1.0, trigramSimilarity("acme textiles", "acme textiles"))
}

func TestTrigramSimilarity_Disjoint(t *testing.T) {
	assert.Equal(t, 0.0, trigramSimilarity("xyz", "qrs"))
}

func TestTrigramSimilarity_Empty(t *testing.T) {
	assert.Equal(t, 0.0, trigramSimilarity("", "acme"))
	assert.Equal(t, 0.0, trigramSimilarity("acme", ""))
}

func TestTrigramSimilarity_Partial(t *testing.T) {
	score := trigramSimilarity("acme textiles", "acme textile")
	assert.Greater(t, score, 0.5)
	assert.Less(t, score, 1.0)
}

func TestMemoryFactories_RanksByScore(t *testing.T) {
	catalog := &fakeCatalog{factories: []model.Factory{
		{ID: "f1", CleanedName: "acme textiles", Country: "CN"},
		{ID: "f2", CleanedName: "acme textile mill", Country: "CN"},
		{ID: "f3", CleanedName: "completely different", Country: "CN"},
	}}
	s := NewMemorySearcher(catalog, 0.1)

	hits, err := s.Factories(context.Background(), "acme textiles", "CN", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "f1", hits[0].ID)
	assert.Equal(t, 1.0, hits[0].Score)
	assert.Equal(t, "f2", hits[1].ID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestMemoryFactories_FiltersCountry(t *testing.T) {
	catalog := &fakeCatalog{factories: []model.Factory{
		{ID: "f1", CleanedName: "acme textiles", Country: "CN"},
		{ID: "f2", CleanedName: "acme textiles", Country: "IN"},
	}}
	s := NewMemorySearcher(catalog, 0.1)

	hits, err := s.Factories(context.Background(), "acme textiles", "CN", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "f1", hits[0].ID)
}

func TestMemoryFactories_Limit(t *testing.T) {
	catalog := &fakeCatalog{factories: []model.Factory{
		{ID: "f1", CleanedName: "acme textiles", Country: "CN"},
		{ID: "f2", CleanedName: "acme textiles", Country: "CN"},
		{ID: "f3", CleanedName: "acme textiles", Country: "CN"},
	}}
	s := NewMemorySearcher(catalog, 0.1)

	hits, err := s.Factories(context.Background(), "acme textiles", "CN", 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
	// Equal scores tie-break on id.
	assert.Equal(t, "f1", hits[0].ID)
	assert.Equal(t, "f2", hits[1].ID)
}

func TestMemoryAddresses_EditDistanceCatchesLowSimilarity(t *testing.T) {
	catalog := &fakeCatalog{addresses: []model.Address{
		{ID: "a1", Address: "12 Mill Rd", Country: "CN"},
	}}
	// Similarity floor high enough that only the levenshtein leg can match.
	s := NewMemorySearcher(catalog, 0.99)

	hits, err := s.Addresses(context.Background(), "12 Mill Rd.", "CN", 2, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a1", hits[0].ID)
}

func TestMemoryAddresses_NoMatch(t *testing.T) {
	catalog := &fakeCatalog{addresses: []model.Address{
		{ID: "a1", Address: "88 Harbor Avenue", Country: "CN"},
	}}
	s := NewMemorySearcher(catalog, 0.5)

	hits, err := s.Addresses(context.Background(), "1 Tiny Ln", "CN", 2, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
