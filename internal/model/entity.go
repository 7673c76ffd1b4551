package model

import (
	"fmt"

	geom "github.com/twpayne/go-geom"
)

// Source is the attribution anchor for contributed data: one per uploader.
type Source struct {
	ID         string `json:"id"`
	UploaderID string `json:"uploader_id"`
}

// Factory is a deduplicated canonical facility, unique by (name, country).
// Sources and ConfirmedLinks are append-only sets.
type Factory struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	CleanedName    string   `json:"cleaned_name"`
	Country        string   `json:"country"`
	Sources        []string `json:"sources"`
	ConfirmedLinks []string `json:"confirmed_links"`
}

// Address is a deduplicated canonical address, unique by (address, country).
type Address struct {
	ID               string   `json:"id"`
	Address          string   `json:"address"`
	Country          string   `json:"country"`
	RelatedFactories []string `json:"related_factories"`
	Sources          []string `json:"sources"`
}

// GeoKeyKind selects which uniqueness key a Geo node carries. The kind
// depends on the geocoding provider strategy: place-id keyed providers
// dedupe on the provider's stable identifier, coordinate keyed providers
// dedupe on rounded lat/lon.
type GeoKeyKind string

const (
	GeoKeyLatLon  GeoKeyKind = "latlon"
	GeoKeyPlaceID GeoKeyKind = "place_id"
)

// GeoKey is the dedup key for a Geo node.
type GeoKey struct {
	Kind    GeoKeyKind
	PlaceID string
	Lat     float64
	Lon     float64
}

// String renders the key in its canonical stored form. Coordinates are
// rounded to 5 decimal places (~1 m) so provider jitter maps to one node.
func (k GeoKey) String() string {
	if k.Kind == GeoKeyPlaceID {
		return "place:" + k.PlaceID
	}
	return fmt.Sprintf("ll:%.5f,%.5f", k.Lat, k.Lon)
}

// GeoPayload carries the provider fields persisted alongside a Geo node.
type GeoPayload struct {
	FormattedAddress string   `json:"formatted_address,omitempty"`
	PlaceTypes       []string `json:"place_types,omitempty"`
	Raw              []byte   `json:"raw,omitempty"`
}

// Geo is a deduplicated geocoded location, unique by GeoKey.
type Geo struct {
	ID               string     `json:"id"`
	Key              GeoKey     `json:"-"`
	Lat              float64    `json:"lat"`
	Lon              float64    `json:"lon"`
	PlaceID          string     `json:"place_id,omitempty"`
	Country          string     `json:"country"`
	RelatedAddresses []string   `json:"related_addresses"`
	Sources          []string   `json:"sources"`
	Payload          GeoPayload `json:"payload"`
}

// Point returns the location as a geometry point (lon/lat order).
func (g *Geo) Point() *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{g.Lon, g.Lat})
}

// Confirm is the permanent cross-reference created when an operator accepts
// a candidate match. Immutable once created; at most one per match id.
type Confirm struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address"`
	FactoryID string `json:"factory_id"`
	AddressID string `json:"address_id"`
	SourceID  string `json:"source_id"`
	RecordID  string `json:"record_id"`
	MatchID   string `json:"match_id"`
}
