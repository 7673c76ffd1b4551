package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/facilityhub/registry-cli/internal/normalize"
	"github.com/facilityhub/registry-cli/internal/pipeline"
	"github.com/facilityhub/registry-cli/internal/region"
	"github.com/facilityhub/registry-cli/internal/resilience"
	"github.com/facilityhub/registry-cli/internal/scorer"
	"github.com/facilityhub/registry-cli/internal/search"
	"github.com/facilityhub/registry-cli/internal/store"
	"github.com/facilityhub/registry-cli/internal/workflow"
	"github.com/facilityhub/registry-cli/pkg/geocode"
)

// appEnv holds the initialized store and pipeline needed by the submit,
// process, confirm and serve commands.
type appEnv struct {
	Store     store.Store
	Pipeline  *pipeline.Pipeline
	Confirmer *workflow.Confirmer
}

// Close releases resources held by the environment.
func (ae *appEnv) Close() {
	if ae.Store != nil {
		_ = ae.Store.Close()
	}
}

// initApp sets up the store, searcher, geocoder and pipeline. Callers
// should defer env.Close().
func initApp(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	searcher := initSearcher(st)

	provider, err := initGeocodeProvider()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	retryCfg := resilience.DefaultRetryConfig()
	if cfg.Geocode.RetryAttempts > 0 {
		retryCfg.MaxAttempts = cfg.Geocode.RetryAttempts
	}
	adapter := geocode.NewAdapter(provider, retryCfg)

	sc := scorer.New(searcher, st, scorer.Config{
		NameLimit:     cfg.Scorer.NameLimit,
		AddressLimit:  cfg.Scorer.AddressLimit,
		MaxDistance:   cfg.Scorer.MaxDistance,
		NameWeight:    cfg.Scorer.NameWeight,
		AddressWeight: cfg.Scorer.AddressWeight,
	})

	normalizer, err := normalize.NewNormalizer()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	regions, err := region.NewResolver()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	p := pipeline.New(st, normalizer, regions, adapter, sc, pipeline.BatchConfig{
		Workers:      cfg.Batch.Workers,
		Limit:        cfg.Batch.Limit,
		GeocodeTTL:   time.Duration(cfg.Batch.GeocodeTTLHours) * time.Hour,
		MultiGeocode: cfg.Batch.MultiGeocode,
	})

	return &appEnv{
		Store:     st,
		Pipeline:  p,
		Confirmer: workflow.NewConfirmer(st),
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "registry.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initSearcher picks the fuzzy index implementation: pg_trgm when the store
// is postgres, an in-memory trigram index otherwise.
func initSearcher(st store.Store) search.Searcher {
	if ps, ok := st.(*store.PostgresStore); ok {
		zap.L().Debug("using pg_trgm searcher")
		return search.NewPostgresSearcher(ps.Pool(), cfg.Search.MinSimilarity)
	}
	zap.L().Debug("using in-memory searcher")
	return search.NewMemorySearcher(st, cfg.Search.MinSimilarity)
}

func initGeocodeProvider() (geocode.Provider, error) {
	opts := []geocode.Option{}
	if cfg.Geocode.BaseURL != "" {
		opts = append(opts, geocode.WithBaseURL(cfg.Geocode.BaseURL))
	}
	if cfg.Geocode.UserAgent != "" {
		opts = append(opts, geocode.WithUserAgent(cfg.Geocode.UserAgent))
	}
	if cfg.Geocode.RatePerSecond > 0 {
		opts = append(opts, geocode.WithRateLimit(cfg.Geocode.RatePerSecond))
	}

	switch cfg.Geocode.Provider {
	case "nominatim":
		return geocode.NewNominatimProvider(opts...), nil
	case "google":
		if cfg.Geocode.GoogleKey == "" {
			return nil, eris.New("google geocoder requires REGISTRY_GEOCODE_GOOGLE_KEY")
		}
		return geocode.NewGoogleProvider(cfg.Geocode.GoogleKey, opts...), nil
	default:
		return nil, eris.Errorf("unsupported geocode provider: %s", cfg.Geocode.Provider)
	}
}
