package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/facilityhub/registry-cli/internal/resilience"
)

const googleDefaultURL = "https://maps.googleapis.com/maps/api/geocode/json"

// GoogleProvider forward-geocodes via the Google Geocoding API. Google
// returns a stable place_id, so its places are keyed by place id.
type GoogleProvider struct {
	cfg clientConfig
	key string
}

// NewGoogleProvider creates a GoogleProvider with the given API key.
func NewGoogleProvider(key string, opts ...Option) *GoogleProvider {
	cfg := newClientConfig(opts...)
	if cfg.baseURL == "" {
		cfg.baseURL = googleDefaultURL
	}
	return &GoogleProvider{cfg: cfg, key: key}
}

// Name implements Provider.
func (p *GoogleProvider) Name() string { return "google" }

// KeyStrategy implements Provider.
func (p *GoogleProvider) KeyStrategy() KeyStrategy { return KeyByPlaceID }

// googleResponse is the JSON response from the Google Geocoding API.
type googleResponse struct {
	Results []googleResult `json:"results"`
	Status  string         `json:"status"`
}

type googleResult struct {
	PlaceID          string   `json:"place_id"`
	FormattedAddress string   `json:"formatted_address"`
	Types            []string `json:"types"`
	Geometry         struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	AddressComponents []struct {
		ShortName string   `json:"short_name"`
		Types     []string `json:"types"`
	} `json:"address_components"`
}

// Forward implements Provider.
func (p *GoogleProvider) Forward(ctx context.Context, address, regionCode string) ([]Place, error) {
	if p.key == "" {
		return nil, eris.New("geocode: google api key not configured")
	}
	if err := p.cfg.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: google rate limit")
	}

	params := url.Values{
		"address": {address},
		"key":     {p.key},
	}
	if regionCode != "" {
		params.Set("region", strings.ToLower(regionCode))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google build request")
	}

	resp, err := p.cfg.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("geocode: google returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: google read body")
	}

	var gr googleResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, eris.Wrap(err, "geocode: google parse response")
	}
	if gr.Status == "OVER_QUERY_LIMIT" {
		return nil, resilience.NewTransientError(eris.New("geocode: google over query limit"), http.StatusTooManyRequests)
	}
	if gr.Status != "OK" && gr.Status != "ZERO_RESULTS" {
		return nil, eris.Errorf("geocode: google status %s", gr.Status)
	}

	places := make([]Place, 0, len(gr.Results))
	for _, r := range gr.Results {
		raw, _ := json.Marshal(r)
		places = append(places, Place{
			Lat:              r.Geometry.Location.Lat,
			Lon:              r.Geometry.Location.Lng,
			FormattedAddress: r.FormattedAddress,
			PlaceID:          r.PlaceID,
			PlaceTypes:       r.Types,
			CountryCode:      googleCountry(r),
			Raw:              raw,
		})
	}
	return places, nil
}

func googleCountry(r googleResult) string {
	for _, c := range r.AddressComponents {
		for _, t := range c.Types {
			if t == "country" {
				return strings.ToUpper(c.ShortName)
			}
		}
	}
	return ""
}
