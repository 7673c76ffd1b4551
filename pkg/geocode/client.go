// Package geocode resolves free-text addresses to candidate place records
// via pluggable forward-geocoding providers.
package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// KeyStrategy selects which uniqueness key a provider's places carry.
// Providers with stable place identifiers dedupe on those; coordinate-only
// providers dedupe on rounded lat/lon. The canonical store's geo dedup key
// follows this policy.
type KeyStrategy int

const (
	// KeyByLatLon dedupes places on rounded coordinates.
	KeyByLatLon KeyStrategy = iota
	// KeyByPlaceID dedupes places on the provider's place identifier.
	KeyByPlaceID
)

// Place is one forward-geocoding candidate.
type Place struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
	PlaceID          string
	PlaceTypes       []string
	CountryCode      string // ISO 3166-1 alpha-2, upper case, may be empty
	Raw              json.RawMessage
}

// Provider is a single forward-geocoding backend. Forward returns the
// provider's ranked candidate list; regionCode, when non-empty, is a valid
// two-letter region hint.
type Provider interface {
	Name() string
	KeyStrategy() KeyStrategy
	Forward(ctx context.Context, address, regionCode string) ([]Place, error)
}

// Option configures a provider client.
type Option func(*clientConfig)

type clientConfig struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) { c.httpClient = hc }
}

// WithBaseURL overrides the provider endpoint, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *clientConfig) { c.baseURL = u }
}

// WithUserAgent sets the User-Agent header sent to the provider.
func WithUserAgent(ua string) Option {
	return func(c *clientConfig) { c.userAgent = ua }
}

// WithRateLimit sets the requests-per-second limit for provider calls.
func WithRateLimit(rps float64) Option {
	return func(c *clientConfig) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

func newClientConfig(opts ...Option) clientConfig {
	c := clientConfig{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		limiter:    rate.NewLimiter(1, 1),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
