// Package pipeline orchestrates resolution of submitted facility records
// into the canonical registry: normalize, geocode, persist, score.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/facilityhub/registry-cli/internal/model"
	"github.com/facilityhub/registry-cli/internal/normalize"
	"github.com/facilityhub/registry-cli/internal/region"
	"github.com/facilityhub/registry-cli/internal/scorer"
	"github.com/facilityhub/registry-cli/internal/store"
	"github.com/facilityhub/registry-cli/pkg/geocode"
)

// BatchConfig tunes batch processing and the geocode cache.
type BatchConfig struct {
	// Workers is the number of records processed concurrently.
	Workers int `yaml:"workers" mapstructure:"workers"`
	// Limit caps how many pending records one batch run picks up.
	Limit int `yaml:"limit" mapstructure:"limit"`
	// GeocodeTTL is how long geocode results are cached per address.
	GeocodeTTL time.Duration `yaml:"geocode_ttl" mapstructure:"geocode_ttl"`
	// MultiGeocode keeps all ranked geocode candidates instead of only the
	// best one. On by default: each candidate gets its own Geo
	// reconciliation.
	MultiGeocode bool `yaml:"multi_geocode" mapstructure:"multi_geocode"`
}

// DefaultBatchConfig returns the standard batch tuning.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		Workers:      4,
		Limit:        100,
		GeocodeTTL:   30 * 24 * time.Hour,
		MultiGeocode: true,
	}
}

// Pipeline wires the resolution stages together.
type Pipeline struct {
	store      store.Store
	normalizer *normalize.Normalizer
	regions    *region.Resolver
	geocoder   *geocode.Adapter
	scorer     *scorer.Scorer
	cfg        BatchConfig
}

// New creates a Pipeline with all dependencies.
func New(
	st store.Store,
	normalizer *normalize.Normalizer,
	regions *region.Resolver,
	geocoder *geocode.Adapter,
	sc *scorer.Scorer,
	cfg BatchConfig,
) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultBatchConfig().Workers
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultBatchConfig().Limit
	}
	if cfg.GeocodeTTL <= 0 {
		cfg.GeocodeTTL = DefaultBatchConfig().GeocodeTTL
	}
	return &Pipeline{
		store:      st,
		normalizer: normalizer,
		regions:    regions,
		geocoder:   geocoder,
		scorer:     sc,
		cfg:        cfg,
	}
}

// Submit validates and persists a new candidate record.
func (p *Pipeline) Submit(ctx context.Context, rawName, rawAddress, rawCountry, uploaderID string) (*model.CandidateRecord, error) {
	switch {
	case strings.TrimSpace(rawName) == "":
		return nil, eris.Wrap(ErrValidation, "name is required")
	case strings.TrimSpace(rawCountry) == "":
		return nil, eris.Wrap(ErrValidation, "country is required")
	case strings.TrimSpace(uploaderID) == "":
		return nil, eris.Wrap(ErrValidation, "uploader id is required")
	}

	rec := &model.CandidateRecord{
		RawName:    rawName,
		RawAddress: rawAddress,
		RawCountry: rawCountry,
		UploaderID: uploaderID,
	}
	if err := p.store.CreateRecord(ctx, rec); err != nil {
		return nil, err
	}
	zap.L().Info("record submitted",
		zap.String("record_id", rec.ID),
		zap.String("uploader_id", uploaderID),
	)
	return rec, nil
}

// ProcessRecord resolves one candidate record: upsert the entity chain,
// geocode the address, score matches, and stamp the record processed.
// Geocoding and scoring degrade to nothing rather than failing the record;
// only persistence errors propagate.
func (p *Pipeline) ProcessRecord(ctx context.Context, rec *model.CandidateRecord) (*model.CandidateRecord, error) {
	start := time.Now()
	log := zap.L().With(zap.String("record_id", rec.ID))

	src, err := p.store.UpsertSource(ctx, rec.UploaderID)
	if err != nil {
		return nil, err
	}

	country := p.regions.Resolve(rec.RawCountry)
	cleaned := p.normalizer.Normalize(rec.RawName, country)

	factory, err := p.store.UpsertFactory(ctx, rec.RawName, cleaned, country, src.ID)
	if err != nil {
		return nil, err
	}
	addr, err := p.store.UpsertAddress(ctx, rec.RawAddress, country, factory.ID, src.ID)
	if err != nil {
		return nil, err
	}

	if err := p.geocodeAddress(ctx, log, addr, country, src.ID); err != nil {
		return nil, err
	}

	matches, err := p.scorer.Score(ctx, cleaned, rec.RawAddress, country)
	if err != nil {
		log.Warn("scoring failed, recording no matches", zap.Error(err))
		matches = nil
	}
	matches = dropSelfPair(matches, factory.ID, addr.ID)

	processedAt := time.Now().UTC()
	if err := p.store.MarkProcessed(ctx, rec.ID, matches, processedAt); err != nil {
		return nil, err
	}

	rec.Status = model.RecordStatusProcessed
	rec.Matches = matches
	rec.ProcessedAt = &processedAt
	log.Info("record processed",
		zap.String("factory_id", factory.ID),
		zap.String("address_id", addr.ID),
		zap.Int("matches", len(matches)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return rec, nil
}

// geocodeAddress resolves the address location and links the geo node.
// A failed or empty geocode leaves the address without a location; only
// store errors propagate.
func (p *Pipeline) geocodeAddress(ctx context.Context, log *zap.Logger, addr *model.Address, country, sourceID string) error {
	if addr.Address == "" {
		return nil
	}

	outcome := p.cachedResolve(ctx, log, addr.Address, country)
	if outcome.NoAddress {
		log.Debug("address did not geocode", zap.String("address_id", addr.ID))
		return nil
	}

	places := outcome.Candidates
	if outcome.Best != nil {
		places = []geocode.Place{*outcome.Best}
	}
	for _, place := range places {
		geo, err := p.store.UpsertGeo(ctx, p.geoKey(place), place.CountryCode, addr.ID, sourceID, model.GeoPayload{
			FormattedAddress: place.FormattedAddress,
			PlaceTypes:       place.PlaceTypes,
			Raw:              place.Raw,
		})
		if err != nil {
			return err
		}
		if geo == nil {
			continue // country mismatch, logged by the store
		}
		log.Debug("geo linked",
			zap.String("address_id", addr.ID),
			zap.String("geo_id", geo.ID),
		)
	}
	return nil
}

// cachedResolve consults the geocode cache before calling the provider.
// Cache failures are ignored; the cache only saves provider calls.
func (p *Pipeline) cachedResolve(ctx context.Context, log *zap.Logger, address, country string) geocode.Outcome {
	hash := geocodeCacheKey(address, country)

	if cached, err := p.store.GetCachedGeocode(ctx, hash); err != nil {
		log.Warn("geocode cache read failed", zap.Error(err))
	} else if cached != nil {
		var outcome geocode.Outcome
		if err := json.Unmarshal(cached, &outcome); err == nil {
			return outcome
		}
		log.Warn("geocode cache entry corrupt, refetching", zap.Error(err))
	}

	outcome := p.geocoder.Resolve(ctx, address, country, p.cfg.MultiGeocode)

	if payload, err := json.Marshal(outcome); err == nil {
		if err := p.store.SetCachedGeocode(ctx, hash, payload, p.cfg.GeocodeTTL); err != nil {
			log.Warn("geocode cache write failed", zap.Error(err))
		}
	}
	return outcome
}

func (p *Pipeline) geoKey(place geocode.Place) model.GeoKey {
	if p.geocoder.KeyStrategy() == geocode.KeyByPlaceID && place.PlaceID != "" {
		return model.GeoKey{Kind: model.GeoKeyPlaceID, PlaceID: place.PlaceID, Lat: place.Lat, Lon: place.Lon}
	}
	return model.GeoKey{Kind: model.GeoKeyLatLon, Lat: place.Lat, Lon: place.Lon}
}

// dropSelfPair removes the match against the exact factory/address pair this
// record just upserted. The record's own entity chain is already in the
// canonical graph; presenting it back as a candidate match tells the operator
// nothing.
func dropSelfPair(matches []model.Match, factoryID, addressID string) []model.Match {
	kept := matches[:0]
	for _, m := range matches {
		if m.NameID == factoryID && m.AddressID == addressID {
			continue
		}
		kept = append(kept, m)
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

func geocodeCacheKey(address, country string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(address) + "|" + country))
	return hex.EncodeToString(sum[:])
}

// BatchResult summarizes one batch run.
type BatchResult struct {
	Picked    int
	Processed int
	Failed    int
}

// ProcessBatch drains up to the configured limit of pending records with a
// bounded worker pool. Individual record failures are logged and counted,
// not fatal to the batch.
func (p *Pipeline) ProcessBatch(ctx context.Context) (BatchResult, error) {
	pending, err := p.store.ListPendingRecords(ctx, p.cfg.Limit)
	if err != nil {
		return BatchResult{}, err
	}
	if len(pending) == 0 {
		return BatchResult{}, nil
	}

	var processed, failed atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i := range pending {
		rec := pending[i]
		g.Go(func() error {
			if _, err := p.ProcessRecord(ctx, &rec); err != nil {
				failed.Add(1)
				zap.L().Error("record processing failed",
					zap.String("record_id", rec.ID),
					zap.Error(err),
				)
				return nil
			}
			processed.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResult{}, err
	}

	result := BatchResult{
		Picked:    len(pending),
		Processed: int(processed.Load()),
		Failed:    int(failed.Load()),
	}
	zap.L().Info("batch complete",
		zap.Int("picked", result.Picked),
		zap.Int("processed", result.Processed),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}
