package geocode

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facilityhub/registry-cli/internal/resilience"
)

type stubProvider struct {
	places   []Place
	err      error
	strategy KeyStrategy
	calls    int
	regions  []string
}

func (p *stubProvider) Name() string             { return "stub" }
func (p *stubProvider) KeyStrategy() KeyStrategy { return p.strategy }

func (p *stubProvider) Forward(ctx context.Context, address, regionCode string) ([]Place, error) {
	p.calls++
	p.regions = append(p.regions, regionCode)
	return p.places, p.err
}

func fastAdapterRetry() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.InitialBackoff = 1
	cfg.MaxBackoff = 1
	return cfg
}

func TestResolve_Best(t *testing.T) {
	p := &stubProvider{places: []Place{
		{Lat: 31.2304, Lon: 121.4737, FormattedAddress: "first"},
		{Lat: 39.9042, Lon: 116.4074, FormattedAddress: "second"},
	}}
	a := NewAdapter(p, fastAdapterRetry())

	out := a.Resolve(context.Background(), "12 Mill Rd", "CN", false)
	assert.False(t, out.NoAddress)
	require.NotNil(t, out.Best)
	assert.Equal(t, "first", out.Best.FormattedAddress)
	assert.Nil(t, out.Candidates)
}

func TestResolve_Multi(t *testing.T) {
	p := &stubProvider{places: []Place{
		{Lat: 31.2304, Lon: 121.4737},
		{Lat: 39.9042, Lon: 116.4074},
	}}
	a := NewAdapter(p, fastAdapterRetry())

	out := a.Resolve(context.Background(), "12 Mill Rd", "CN", true)
	assert.False(t, out.NoAddress)
	assert.Nil(t, out.Best)
	assert.Len(t, out.Candidates, 2)
}

func TestResolve_EmptyAddress(t *testing.T) {
	p := &stubProvider{}
	a := NewAdapter(p, fastAdapterRetry())

	out := a.Resolve(context.Background(), "", "CN", false)
	assert.True(t, out.NoAddress)
	assert.Zero(t, p.calls)
}

func TestResolve_ProviderFailureDegrades(t *testing.T) {
	p := &stubProvider{err: eris.New("api key rejected")}
	a := NewAdapter(p, fastAdapterRetry())

	out := a.Resolve(context.Background(), "12 Mill Rd", "CN", false)
	assert.True(t, out.NoAddress)
	assert.Nil(t, out.Best)
}

func TestResolve_TransientFailureRetriesThenDegrades(t *testing.T) {
	p := &stubProvider{err: resilience.NewTransientError(eris.New("503"), 503)}
	a := NewAdapter(p, fastAdapterRetry())

	out := a.Resolve(context.Background(), "12 Mill Rd", "CN", false)
	assert.True(t, out.NoAddress)
	assert.Equal(t, 3, p.calls)
}

func TestResolve_NoResults(t *testing.T) {
	p := &stubProvider{}
	a := NewAdapter(p, fastAdapterRetry())

	out := a.Resolve(context.Background(), "nowhere", "CN", false)
	assert.True(t, out.NoAddress)
}

func TestResolve_InvalidRegionHintDropped(t *testing.T) {
	p := &stubProvider{places: []Place{{Lat: 1, Lon: 2}}}
	a := NewAdapter(p, fastAdapterRetry())

	a.Resolve(context.Background(), "12 Mill Rd", "china", false)
	a.Resolve(context.Background(), "12 Mill Rd", "CN", false)
	require.Len(t, p.regions, 2)
	assert.Equal(t, "", p.regions[0])
	assert.Equal(t, "CN", p.regions[1])
}

func TestCollapseNearby_MergesJitteredDuplicates(t *testing.T) {
	places := []Place{
		{Lat: 31.23040, Lon: 121.47370, FormattedAddress: "canonical"},
		{Lat: 31.23041, Lon: 121.47371, FormattedAddress: "jitter"},
		{Lat: 39.90420, Lon: 116.40740, FormattedAddress: "far away"},
	}
	kept := collapseNearby(places)
	require.Len(t, kept, 2)
	assert.Equal(t, "canonical", kept[0].FormattedAddress)
	assert.Equal(t, "far away", kept[1].FormattedAddress)
}

func TestCollapseNearby_SamePlaceID(t *testing.T) {
	places := []Place{
		{Lat: 31.0, Lon: 121.0, PlaceID: "p1"},
		{Lat: 39.0, Lon: 116.0, PlaceID: "p1"},
	}
	kept := collapseNearby(places)
	assert.Len(t, kept, 1)
}

func TestIsRegionCode(t *testing.T) {
	assert.True(t, isRegionCode("CN"))
	assert.True(t, isRegionCode("us"))
	assert.False(t, isRegionCode("china"))
	assert.False(t, isRegionCode("C1"))
	assert.False(t, isRegionCode(""))
}
