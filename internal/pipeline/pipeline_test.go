package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/facilityhub/registry-cli/internal/model"
	"github.com/facilityhub/registry-cli/internal/normalize"
	"github.com/facilityhub/registry-cli/internal/region"
	"github.com/facilityhub/registry-cli/internal/resilience"
	"github.com/facilityhub/registry-cli/internal/scorer"
	"github.com/facilityhub/registry-cli/internal/search"
	"github.com/facilityhub/registry-cli/internal/store"
	"github.com/facilityhub/registry-cli/pkg/geocode"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type stubGeocoder struct {
	mu     sync.Mutex
	places []geocode.Place
	err    error
	calls  int
}

func (p *stubGeocoder) Name() string                     { return "stub" }
func (p *stubGeocoder) KeyStrategy() geocode.KeyStrategy { return geocode.KeyByLatLon }

func (p *stubGeocoder) Forward(ctx context.Context, address, regionCode string) ([]geocode.Place, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.places, p.err
}

func (p *stubGeocoder) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func shanghaiPlace() geocode.Place {
	return geocode.Place{
		Lat:              31.2304,
		Lon:              121.4737,
		FormattedAddress: "12 Mill Rd, Shanghai, China",
		CountryCode:      "CN",
	}
}

func newTestPipeline(t *testing.T, provider geocode.Provider) (*Pipeline, *store.SQLiteStore) {
	t.Helper()

	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	normalizer, err := normalize.NewNormalizer()
	require.NoError(t, err)
	regions, err := region.NewResolver()
	require.NoError(t, err)

	retry := resilience.DefaultRetryConfig()
	retry.InitialBackoff = 1
	retry.MaxBackoff = 1
	adapter := geocode.NewAdapter(provider, retry)

	searcher := search.NewMemorySearcher(st, 0.1)
	sc := scorer.New(searcher, st, scorer.DefaultConfig())

	return New(st, normalizer, regions, adapter, sc, BatchConfig{Workers: 2, Limit: 100, MultiGeocode: true}), st
}

func TestDefaultBatchConfig(t *testing.T) {
	cfg := DefaultBatchConfig()
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 100, cfg.Limit)
	// Multi-result geocoding is the default: every ranked candidate is
	// reconciled into its own Geo node.
	assert.True(t, cfg.MultiGeocode)
}

func TestSubmit_Validation(t *testing.T) {
	p, _ := newTestPipeline(t, &stubGeocoder{})
	ctx := context.Background()

	_, err := p.Submit(ctx, "", "12 Mill Rd", "china", "u1")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = p.Submit(ctx, "Acme", "12 Mill Rd", "", "u1")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = p.Submit(ctx, "Acme", "12 Mill Rd", "china", "")
	assert.ErrorIs(t, err, ErrValidation)

	rec, err := p.Submit(ctx, "Acme", "", "china", "u1")
	require.NoError(t, err)
	assert.Equal(t, model.RecordStatusUnprocessed, rec.Status)
}

func TestProcessRecord_CreatesCanonicalEntities(t *testing.T) {
	geocoder := &stubGeocoder{places: []geocode.Place{shanghaiPlace()}}
	p, st := newTestPipeline(t, geocoder)
	ctx := context.Background()

	rec, err := p.Submit(ctx, "Acme Textiles Co.", "12 Mill Rd", "china", "uploader-1")
	require.NoError(t, err)

	rec, err = p.ProcessRecord(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, model.RecordStatusProcessed, rec.Status)
	require.NotNil(t, rec.ProcessedAt)

	// Country resolved to CN, name cleaned of legal suffixes.
	factories, err := st.FactoriesByCountry(ctx, "CN")
	require.NoError(t, err)
	require.Len(t, factories, 1)
	assert.Equal(t, "Acme Textiles Co.", factories[0].Name)
	assert.Equal(t, "acme textiles", factories[0].CleanedName)

	addrs, err := st.AddressesByCountry(ctx, "CN")
	require.NoError(t, err)
	require.Len(t, addrs, 1)
	assert.Equal(t, "12 Mill Rd", addrs[0].Address)
	assert.Equal(t, []string{factories[0].ID}, addrs[0].RelatedFactories)

	// A first-ever record has nothing to match against; its own entity
	// chain is not offered back as a candidate.
	assert.Empty(t, rec.Matches)

	assert.Equal(t, 1, geocoder.callCount())
}

func TestProcessRecord_SecondSimilarRecordMatchesFirst(t *testing.T) {
	geocoder := &stubGeocoder{places: []geocode.Place{shanghaiPlace()}}
	p, st := newTestPipeline(t, geocoder)
	ctx := context.Background()

	first, err := p.Submit(ctx, "Acme Textiles Co.", "12 Mill Rd", "china", "uploader-1")
	require.NoError(t, err)
	_, err = p.ProcessRecord(ctx, first)
	require.NoError(t, err)

	factories, err := st.FactoriesByCountry(ctx, "CN")
	require.NoError(t, err)
	require.Len(t, factories, 1)
	original := factories[0]

	second, err := p.Submit(ctx, "Acme Textile Co., Ltd.", "12 Mill Rd", "CN", "uploader-2")
	require.NoError(t, err)
	second, err = p.ProcessRecord(ctx, second)
	require.NoError(t, err)

	require.Len(t, second.Matches, 1)
	found := &second.Matches[0]
	assert.Equal(t, original.ID, found.NameID)
	assert.Equal(t, "Acme Textiles Co.", found.Name)
	assert.Greater(t, found.NameScore, 0.1)
	assert.InDelta(t, 3*found.NameScore+found.AddressScore, found.CombinedScore, 1e-9)
	assert.Nil(t, found.Confirmed)

	// Matches are ranked best first.
	for i := 1; i < len(second.Matches); i++ {
		assert.GreaterOrEqual(t, second.Matches[i-1].CombinedScore, second.Matches[i].CombinedScore)
	}

	// Same address string deduplicated into one row linked to both factories.
	addrs, err := st.AddressesByCountry(ctx, "CN")
	require.NoError(t, err)
	require.Len(t, addrs, 1)
	assert.Len(t, addrs[0].RelatedFactories, 2)
}

func TestProcessRecord_ReprocessIsIdempotent(t *testing.T) {
	geocoder := &stubGeocoder{places: []geocode.Place{shanghaiPlace()}}
	p, st := newTestPipeline(t, geocoder)
	ctx := context.Background()

	rec, err := p.Submit(ctx, "Acme Textiles Co.", "12 Mill Rd", "china", "u1")
	require.NoError(t, err)
	rec, err = p.ProcessRecord(ctx, rec)
	require.NoError(t, err)
	firstMatches := len(rec.Matches)

	rec, err = p.ProcessRecord(ctx, rec)
	require.NoError(t, err)

	// Re-running converges on the same canonical entities and fully replaces
	// the match list instead of accumulating.
	factories, err := st.FactoriesByCountry(ctx, "CN")
	require.NoError(t, err)
	assert.Len(t, factories, 1)

	addrs, err := st.AddressesByCountry(ctx, "CN")
	require.NoError(t, err)
	assert.Len(t, addrs, 1)

	stored, err := st.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Matches, firstMatches)
}

func TestProcessRecord_GeocodeCachedAcrossRecords(t *testing.T) {
	geocoder := &stubGeocoder{places: []geocode.Place{shanghaiPlace()}}
	p, _ := newTestPipeline(t, geocoder)
	ctx := context.Background()

	r1, err := p.Submit(ctx, "Acme Textiles Co.", "12 Mill Rd", "china", "u1")
	require.NoError(t, err)
	_, err = p.ProcessRecord(ctx, r1)
	require.NoError(t, err)

	r2, err := p.Submit(ctx, "Beta Mills", "12 Mill Rd", "china", "u2")
	require.NoError(t, err)
	_, err = p.ProcessRecord(ctx, r2)
	require.NoError(t, err)

	// Second record reuses the cached geocode for the same address.
	assert.Equal(t, 1, geocoder.callCount())
}

func TestProcessRecord_GeocodeFailureDegrades(t *testing.T) {
	geocoder := &stubGeocoder{err: assert.AnError}
	p, _ := newTestPipeline(t, geocoder)
	ctx := context.Background()

	rec, err := p.Submit(ctx, "Acme Textiles Co.", "12 Mill Rd", "china", "u1")
	require.NoError(t, err)

	rec, err = p.ProcessRecord(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, model.RecordStatusProcessed, rec.Status)
	assert.Empty(t, rec.Matches)
}

func TestProcessRecord_ZeroGeocodeResults(t *testing.T) {
	geocoder := &stubGeocoder{} // provider returns no places
	p, st := newTestPipeline(t, geocoder)
	ctx := context.Background()

	rec, err := p.Submit(ctx, "Acme Textiles Co.", "12 Mill Rd", "china", "u1")
	require.NoError(t, err)
	rec, err = p.ProcessRecord(ctx, rec)
	require.NoError(t, err)

	// Factory and Address exist despite the failed geocode.
	assert.Equal(t, model.RecordStatusProcessed, rec.Status)
	assert.Empty(t, rec.Matches)

	factories, err := st.FactoriesByCountry(ctx, "CN")
	require.NoError(t, err)
	assert.Len(t, factories, 1)
	addrs, err := st.AddressesByCountry(ctx, "CN")
	require.NoError(t, err)
	assert.Len(t, addrs, 1)
}

func TestProcessRecord_EmptyAddressSkipsGeocode(t *testing.T) {
	geocoder := &stubGeocoder{places: []geocode.Place{shanghaiPlace()}}
	p, _ := newTestPipeline(t, geocoder)
	ctx := context.Background()

	rec, err := p.Submit(ctx, "Acme Textiles Co.", "", "china", "u1")
	require.NoError(t, err)
	_, err = p.ProcessRecord(ctx, rec)
	require.NoError(t, err)
	assert.Zero(t, geocoder.callCount())
}

func TestProcessBatch_DrainsPending(t *testing.T) {
	geocoder := &stubGeocoder{places: []geocode.Place{shanghaiPlace()}}
	p, st := newTestPipeline(t, geocoder)
	ctx := context.Background()

	for _, name := range []string{"Acme Textiles Co.", "Beta Mills Ltd", "Gamma Garments"} {
		_, err := p.Submit(ctx, name, "12 Mill Rd", "china", "u1")
		require.NoError(t, err)
	}

	result, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Picked)
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 0, result.Failed)

	pending, err := st.ListPendingRecords(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestProcessBatch_Empty(t *testing.T) {
	p, _ := newTestPipeline(t, &stubGeocoder{})
	result, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Picked)
}
