package geocode

import (
	"context"
	"math"

	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/facilityhub/registry-cli/internal/resilience"
)

// nearbyDegrees is the coordinate distance under which two candidates from
// one response are treated as the same place (~25 m at the equator).
const nearbyDegrees = 0.00025

// Outcome is the result of resolving one address. The adapter never fails:
// provider errors, non-JSON payloads and empty result sets all collapse to
// NoAddress so the pipeline can continue.
type Outcome struct {
	NoAddress  bool
	Best       *Place
	Candidates []Place
}

// Adapter wraps a Provider with retry, region-hint validation and
// failure-to-degradation conversion.
type Adapter struct {
	provider Provider
	retry    resilience.RetryConfig
}

// NewAdapter creates an Adapter around the given provider.
func NewAdapter(provider Provider, retry resilience.RetryConfig) *Adapter {
	return &Adapter{provider: provider, retry: retry}
}

// KeyStrategy exposes the wrapped provider's dedup key policy.
func (a *Adapter) KeyStrategy() KeyStrategy { return a.provider.KeyStrategy() }

// Resolve forward-geocodes address. The region hint is applied only when it
// is a valid two-letter code. In multi mode the full ranked candidate list
// is returned; otherwise only the best match is populated.
func (a *Adapter) Resolve(ctx context.Context, address, regionHint string, multi bool) Outcome {
	if address == "" {
		return Outcome{NoAddress: true}
	}

	region := ""
	if isRegionCode(regionHint) {
		region = regionHint
	}

	places, err := resilience.DoVal(ctx, a.retry, "geocode_forward", func(ctx context.Context) ([]Place, error) {
		return a.provider.Forward(ctx, address, region)
	})
	if err != nil {
		zap.L().Warn("geocode: provider failed, marking no address",
			zap.String("provider", a.provider.Name()),
			zap.String("address", address),
			zap.Error(err),
		)
		return Outcome{NoAddress: true}
	}

	places = collapseNearby(places)
	if len(places) == 0 {
		zap.L().Debug("geocode: no results",
			zap.String("provider", a.provider.Name()),
			zap.String("address", address),
		)
		return Outcome{NoAddress: true}
	}

	if multi {
		return Outcome{Candidates: places}
	}
	best := places[0]
	return Outcome{Best: &best}
}

// collapseNearby drops candidates whose coordinates sit within
// nearbyDegrees of an earlier (higher ranked) candidate. Providers without
// stable place ids often return the same building several times.
func collapseNearby(places []Place) []Place {
	var kept []Place
	for _, p := range places {
		if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
			continue
		}
		dup := false
		for _, k := range kept {
			if p.PlaceID != "" && p.PlaceID == k.PlaceID {
				dup = true
				break
			}
			d := xy.Distance(
				geom.Coord{p.Lon, p.Lat},
				geom.Coord{k.Lon, k.Lat},
			)
			if d < nearbyDegrees {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, p)
		}
	}
	return kept
}

func isRegionCode(s string) bool {
	if len(s) != 2 {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
