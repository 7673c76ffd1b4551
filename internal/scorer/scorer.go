// Package scorer ranks canonical factories against a candidate record by
// combining fuzzy name and address relevance.
package scorer

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/facilityhub/registry-cli/internal/model"
	"github.com/facilityhub/registry-cli/internal/search"
)

// Config tunes the candidate sweep. The zero value is unusable; use
// DefaultConfig.
type Config struct {
	// NameLimit caps the fuzzy name hits considered per record.
	NameLimit int `yaml:"name_limit" mapstructure:"name_limit"`
	// AddressLimit caps the fuzzy address hits considered per record.
	AddressLimit int `yaml:"address_limit" mapstructure:"address_limit"`
	// MaxDistance is the maximum address edit distance for a hit.
	MaxDistance int `yaml:"max_distance" mapstructure:"max_distance"`
	// NameWeight and AddressWeight weight the combined score. Name
	// similarity dominates: identically named facilities at slightly
	// different address strings are usually the same place.
	NameWeight    float64 `yaml:"name_weight" mapstructure:"name_weight"`
	AddressWeight float64 `yaml:"address_weight" mapstructure:"address_weight"`
}

// DefaultConfig returns the standard sweep limits and score weights.
func DefaultConfig() Config {
	return Config{
		NameLimit:     50,
		AddressLimit:  30,
		MaxDistance:   2,
		NameWeight:    3,
		AddressWeight: 1,
	}
}

// EntityReader is the subset of the store the scorer reads from.
type EntityReader interface {
	FactoriesByIDs(ctx context.Context, ids []string) ([]model.Factory, error)
	AddressesForFactories(ctx context.Context, factoryIDs []string, country string) ([]model.Address, error)
}

// Scorer produces ranked matches for a normalized candidate record.
type Scorer struct {
	searcher search.Searcher
	entities EntityReader
	cfg      Config
}

// New creates a Scorer.
func New(searcher search.Searcher, entities EntityReader, cfg Config) *Scorer {
	if cfg.NameLimit <= 0 || cfg.AddressLimit <= 0 {
		cfg = DefaultConfig()
	}
	return &Scorer{searcher: searcher, entities: entities, cfg: cfg}
}

// Score finds canonical factories resembling the candidate. A match requires
// both a name hit and an address hit linked to the same factory; either leg
// coming back empty yields no matches, never an error.
func (s *Scorer) Score(ctx context.Context, cleanedName, address, country string) ([]model.Match, error) {
	nameHits, err := s.searcher.Factories(ctx, cleanedName, country, s.cfg.NameLimit)
	if err != nil {
		return nil, eris.Wrap(err, "scorer: name search")
	}
	if len(nameHits) == 0 {
		return nil, nil
	}

	factoryIDs := make([]string, len(nameHits))
	nameScores := make(map[string]float64, len(nameHits))
	for i, h := range nameHits {
		factoryIDs[i] = h.ID
		nameScores[h.ID] = h.Score
	}

	linked, err := s.entities.AddressesForFactories(ctx, factoryIDs, country)
	if err != nil {
		return nil, eris.Wrap(err, "scorer: linked addresses")
	}
	if len(linked) == 0 {
		return nil, nil
	}

	addrHits, err := s.searcher.Addresses(ctx, address, country, s.cfg.MaxDistance, s.cfg.AddressLimit)
	if err != nil {
		return nil, eris.Wrap(err, "scorer: address search")
	}
	if len(addrHits) == 0 {
		return nil, nil
	}
	addrScores := make(map[string]float64, len(addrHits))
	for _, h := range addrHits {
		addrScores[h.ID] = h.Score
	}

	factories, err := s.entities.FactoriesByIDs(ctx, factoryIDs)
	if err != nil {
		return nil, eris.Wrap(err, "scorer: load factories")
	}
	factoriesByID := make(map[string]model.Factory, len(factories))
	for _, f := range factories {
		factoriesByID[f.ID] = f
	}

	// A (factory, address) pair matches when the factory came back from the
	// name sweep, the address from the address sweep, and the canonical
	// graph already links the two.
	var matches []model.Match
	for _, addr := range linked {
		addrScore, ok := addrScores[addr.ID]
		if !ok {
			continue
		}
		for _, fid := range addr.RelatedFactories {
			nameScore, ok := nameScores[fid]
			if !ok {
				continue
			}
			f, ok := factoriesByID[fid]
			if !ok {
				continue
			}
			matches = append(matches, model.Match{
				MatchID:       uuid.New().String(),
				Name:          f.Name,
				NameID:        f.ID,
				AddressID:     addr.ID,
				Address:       addr.Address,
				NameScore:     nameScore,
				AddressScore:  addrScore,
				CombinedScore: s.cfg.NameWeight*nameScore + s.cfg.AddressWeight*addrScore,
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].CombinedScore != matches[j].CombinedScore {
			return matches[i].CombinedScore > matches[j].CombinedScore
		}
		if matches[i].AddressScore != matches[j].AddressScore {
			return matches[i].AddressScore > matches[j].AddressScore
		}
		if matches[i].NameID != matches[j].NameID {
			return matches[i].NameID < matches[j].NameID
		}
		return matches[i].AddressID < matches[j].AddressID
	})

	zap.L().Debug("scored candidate",
		zap.String("country", country),
		zap.Int("name_hits", len(nameHits)),
		zap.Int("address_hits", len(addrHits)),
		zap.Int("matches", len(matches)),
	)
	return matches, nil
}
