package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/facilityhub/registry-cli/internal/resilience"
)

const nominatimDefaultURL = "https://nominatim.openstreetmap.org"

// NominatimProvider forward-geocodes via the OSM Nominatim search API.
// Nominatim has no stable place identifier suitable for dedup, so its
// places are keyed by rounded coordinates.
type NominatimProvider struct {
	cfg clientConfig
}

// NewNominatimProvider creates a NominatimProvider. Nominatim's usage
// policy requires an identifying User-Agent and at most 1 req/s, which are
// the defaults here.
func NewNominatimProvider(opts ...Option) *NominatimProvider {
	cfg := newClientConfig(opts...)
	if cfg.baseURL == "" {
		cfg.baseURL = nominatimDefaultURL
	}
	if cfg.userAgent == "" {
		cfg.userAgent = "facility-registry/1.0"
	}
	return &NominatimProvider{cfg: cfg}
}

// Name implements Provider.
func (p *NominatimProvider) Name() string { return "nominatim" }

// KeyStrategy implements Provider.
func (p *NominatimProvider) KeyStrategy() KeyStrategy { return KeyByLatLon }

// nominatimResult is one entry of the Nominatim jsonv2 response.
type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Category    string `json:"category"`
	Type        string `json:"type"`
	Address     struct {
		CountryCode string `json:"country_code"`
	} `json:"address"`
}

// Forward implements Provider.
func (p *NominatimProvider) Forward(ctx context.Context, address, regionCode string) ([]Place, error) {
	if err := p.cfg.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim rate limit")
	}

	params := url.Values{
		"q":              {address},
		"format":         {"jsonv2"},
		"addressdetails": {"1"},
		"limit":          {"10"},
	}
	if regionCode != "" {
		params.Set("countrycodes", strings.ToLower(regionCode))
	}

	reqURL := p.cfg.baseURL + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim build request")
	}
	req.Header.Set("User-Agent", p.cfg.userAgent)

	resp, err := p.cfg.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("geocode: nominatim returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim read body")
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, eris.Wrap(err, "geocode: nominatim parse response")
	}

	places := make([]Place, 0, len(results))
	for _, r := range results {
		lat, latErr := strconv.ParseFloat(r.Lat, 64)
		lon, lonErr := strconv.ParseFloat(r.Lon, 64)
		if latErr != nil || lonErr != nil {
			continue
		}
		raw, _ := json.Marshal(r)
		places = append(places, Place{
			Lat:              lat,
			Lon:              lon,
			FormattedAddress: r.DisplayName,
			PlaceTypes:       nominatimTypes(r.Category, r.Type),
			CountryCode:      strings.ToUpper(r.Address.CountryCode),
			Raw:              raw,
		})
	}
	return places, nil
}

func nominatimTypes(category, typ string) []string {
	var types []string
	if category != "" {
		types = append(types, category)
	}
	if typ != "" && typ != category {
		types = append(types, typ)
	}
	return types
}
