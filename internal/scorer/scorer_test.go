package scorer

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/facilityhub/registry-cli/internal/model"
	"github.com/facilityhub/registry-cli/internal/search"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeSearcher struct {
	nameHits []search.Hit
	addrHits []search.Hit
	nameErr  error
	addrErr  error
}

func (s *fakeSearcher) Factories(ctx context.Context, cleanedName, country string, limit int) ([]search.Hit, error) {
	return s.nameHits, s.nameErr
}

func (s *fakeSearcher) Addresses(ctx context.Context, address, country string, maxDistance, limit int) ([]search.Hit, error) {
	return s.addrHits, s.addrErr
}

type fakeEntities struct {
	factories []model.Factory
	addresses []model.Address
}

func (e *fakeEntities) FactoriesByIDs(ctx context.Context, ids []string) ([]model.Factory, error) {
	return e.factories, nil
}

func (e *fakeEntities) AddressesForFactories(ctx context.Context, factoryIDs []string, country string) ([]model.Address, error) {
	return e.addresses, nil
}

func TestScore_CombinesNameAndAddress(t *testing.T) {
	searcher := &fakeSearcher{
		nameHits: []search.Hit{{ID: "f1", Score: 0.9}},
		addrHits: []search.Hit{{ID: "a1", Score: 0.8}},
	}
	entities := &fakeEntities{
		factories: []model.Factory{{ID: "f1", Name: "Acme Textiles Co.", Country: "CN"}},
		addresses: []model.Address{{ID: "a1", Address: "12 Mill Rd", RelatedFactories: []string{"f1"}}},
	}
	s := New(searcher, entities, DefaultConfig())

	matches, err := s.Score(context.Background(), "acme textiles", "12 Mill Rd", "CN")
	require.NoError(t, err)
	require.Len(t, matches, 1)

	m := matches[0]
	assert.Equal(t, "Acme Textiles Co.", m.Name)
	assert.Equal(t, "f1", m.NameID)
	assert.Equal(t, "a1", m.AddressID)
	assert.Equal(t, "12 Mill Rd", m.Address)
	assert.InDelta(t, 0.9, m.NameScore, 1e-9)
	assert.InDelta(t, 0.8, m.AddressScore, 1e-9)
	// combined = 3*name + address
	assert.InDelta(t, 3*0.9+0.8, m.CombinedScore, 1e-9)
	assert.NotEmpty(t, m.MatchID)
	assert.Nil(t, m.Confirmed)
}

func TestScore_NoNameHits(t *testing.T) {
	s := New(&fakeSearcher{}, &fakeEntities{}, DefaultConfig())
	matches, err := s.Score(context.Background(), "acme", "12 Mill Rd", "CN")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestScore_NoLinkedAddresses(t *testing.T) {
	searcher := &fakeSearcher{
		nameHits: []search.Hit{{ID: "f1", Score: 0.9}},
		addrHits: []search.Hit{{ID: "a1", Score: 0.8}},
	}
	s := New(searcher, &fakeEntities{}, DefaultConfig())
	matches, err := s.Score(context.Background(), "acme", "12 Mill Rd", "CN")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestScore_NoAddressHits(t *testing.T) {
	searcher := &fakeSearcher{
		nameHits: []search.Hit{{ID: "f1", Score: 0.9}},
	}
	entities := &fakeEntities{
		factories: []model.Factory{{ID: "f1", Name: "Acme"}},
		addresses: []model.Address{{ID: "a1", RelatedFactories: []string{"f1"}}},
	}
	s := New(searcher, entities, DefaultConfig())
	matches, err := s.Score(context.Background(), "acme", "12 Mill Rd", "CN")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestScore_RequiresGraphLink(t *testing.T) {
	// The address hit exists but is not linked to the name-hit factory.
	searcher := &fakeSearcher{
		nameHits: []search.Hit{{ID: "f1", Score: 0.9}},
		addrHits: []search.Hit{{ID: "a1", Score: 0.8}},
	}
	entities := &fakeEntities{
		factories: []model.Factory{{ID: "f1", Name: "Acme"}},
		addresses: []model.Address{{ID: "a1", RelatedFactories: []string{"f2"}}},
	}
	s := New(searcher, entities, DefaultConfig())
	matches, err := s.Score(context.Background(), "acme", "12 Mill Rd", "CN")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestScore_RankingAndTieBreaks(t *testing.T) {
	searcher := &fakeSearcher{
		nameHits: []search.Hit{
			{ID: "f1", Score: 0.9},
			{ID: "f2", Score: 0.5},
			{ID: "f3", Score: 0.5},
		},
		addrHits: []search.Hit{
			{ID: "a1", Score: 0.6},
			{ID: "a2", Score: 0.6},
		},
	}
	entities := &fakeEntities{
		factories: []model.Factory{
			{ID: "f1", Name: "Alpha"},
			{ID: "f2", Name: "Beta"},
			{ID: "f3", Name: "Gamma"},
		},
		addresses: []model.Address{
			{ID: "a1", Address: "12 Mill Rd", RelatedFactories: []string{"f1", "f3"}},
			{ID: "a2", Address: "12 Mill Road", RelatedFactories: []string{"f2"}},
		},
	}
	s := New(searcher, entities, DefaultConfig())

	matches, err := s.Score(context.Background(), "acme", "12 Mill Rd", "CN")
	require.NoError(t, err)
	require.Len(t, matches, 3)

	// Highest combined score first.
	assert.Equal(t, "f1", matches[0].NameID)
	// Equal combined and address scores tie-break on factory id.
	assert.Equal(t, "f2", matches[1].NameID)
	assert.Equal(t, "f3", matches[2].NameID)
}

func TestScore_SearchErrorPropagates(t *testing.T) {
	s := New(&fakeSearcher{nameErr: eris.New("index down")}, &fakeEntities{}, DefaultConfig())
	_, err := s.Score(context.Background(), "acme", "12 Mill Rd", "CN")
	assert.Error(t, err)
}
