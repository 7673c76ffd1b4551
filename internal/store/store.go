// Package store persists the canonical entity graph and candidate records.
// All find-or-create operations are atomic with respect to their uniqueness
// keys: Factory (name, country), Address (address, country), Geo (geo key),
// Source (uploader), Confirm (match id). Repeated calls only grow the
// attribution sets, never duplicate rows.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/facilityhub/registry-cli/internal/model"
)

// ErrNotFound is returned when a referenced record or entity does not exist.
var ErrNotFound = eris.New("store: not found")

// ErrMatchNotFound is returned when a match id is absent from a record.
var ErrMatchNotFound = eris.New("store: match not found")

// Store is the persistence interface for the resolution pipeline.
type Store interface {
	// UpsertSource finds or creates the attribution source for an uploader.
	UpsertSource(ctx context.Context, uploaderID string) (*model.Source, error)

	// GetSourceByUploader returns the source for an uploader, or nil when
	// none exists.
	GetSourceByUploader(ctx context.Context, uploaderID string) (*model.Source, error)

	// UpsertFactory finds or creates a factory by (name, country) and adds
	// sourceID to its sources set.
	UpsertFactory(ctx context.Context, name, cleanedName, country, sourceID string) (*model.Factory, error)

	// UpsertAddress finds or creates an address by (address, country) and
	// adds factoryID and sourceID to its sets.
	UpsertAddress(ctx context.Context, address, country, factoryID, sourceID string) (*model.Address, error)

	// UpsertGeo finds or creates a geo node by key and links it to the
	// address. When the geocoded country disagrees with the address's
	// stored country the node is not created or linked and (nil, nil) is
	// returned: a location must not be attributed to the wrong
	// jurisdiction.
	UpsertGeo(ctx context.Context, key model.GeoKey, country, addressID, sourceID string, payload model.GeoPayload) (*model.Geo, error)

	// AddFactoryLinks appends a confirm id and source id to a factory's
	// confirmed_links and sources sets. Idempotent.
	AddFactoryLinks(ctx context.Context, factoryID, confirmID, sourceID string) error

	// AddressesForFactories returns addresses in country whose
	// related_factories intersect factoryIDs.
	AddressesForFactories(ctx context.Context, factoryIDs []string, country string) ([]model.Address, error)

	// FactoriesByIDs returns the factories with the given ids. Missing ids
	// are skipped.
	FactoriesByIDs(ctx context.Context, ids []string) ([]model.Factory, error)

	// FactoriesByCountry and AddressesByCountry implement search.Catalog.
	FactoriesByCountry(ctx context.Context, country string) ([]model.Factory, error)
	AddressesByCountry(ctx context.Context, country string) ([]model.Address, error)

	// CreateRecord persists a newly submitted candidate record.
	CreateRecord(ctx context.Context, rec *model.CandidateRecord) error

	// BulkCreateRecords persists many unprocessed records at once and
	// returns how many were inserted. IDs and timestamps are assigned to
	// records missing them.
	BulkCreateRecords(ctx context.Context, recs []model.CandidateRecord) (int64, error)

	// GetRecord returns a candidate record or ErrNotFound.
	GetRecord(ctx context.Context, id string) (*model.CandidateRecord, error)

	// ListPendingRecords returns up to limit unprocessed records, oldest
	// first.
	ListPendingRecords(ctx context.Context, limit int) ([]model.CandidateRecord, error)

	// MarkProcessed stamps a record processed, fully replacing its match
	// list.
	MarkProcessed(ctx context.Context, recordID string, matches []model.Match, processedAt time.Time) error

	// SetMatchConfirmed updates the confirmed flag of exactly one match
	// entry, leaving all others untouched. Returns ErrMatchNotFound when
	// the match id is absent.
	SetMatchConfirmed(ctx context.Context, recordID, matchID string, confirmed bool) error

	// CreateConfirm creates the cross-reference for a confirmed match.
	// Idempotent per match id: the second return is false when a confirm
	// for the match already existed, and the existing confirm is returned.
	CreateConfirm(ctx context.Context, c model.Confirm) (*model.Confirm, bool, error)

	// GetCachedGeocode returns the cached geocode payload for an address
	// hash, or nil on miss or expiry.
	GetCachedGeocode(ctx context.Context, addressHash string) ([]byte, error)

	// SetCachedGeocode stores a geocode payload with the given TTL.
	SetCachedGeocode(ctx context.Context, addressHash string, payload []byte, ttl time.Duration) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// appendUnique returns set with vals appended, skipping values already
// present. The input slice is not modified.
func appendUnique(set []string, vals ...string) []string {
	out := append([]string{}, set...)
	for _, v := range vals {
		found := false
		for _, s := range out {
			if s == v {
				found = true
				break
			}
		}
		if !found {
			out = append(out, v)
		}
	}
	return out
}
