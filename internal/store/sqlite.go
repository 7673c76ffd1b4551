package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/facilityhub/registry-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Entity sets are
// stored as JSON text columns; find-or-create runs inside a transaction on
// the store's single connection, so the read and the write of an upsert
// cannot interleave with another writer's.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// A single writer connection sidesteps SQLITE_BUSY on concurrent
	// upserts from the batch workers.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sources (
	id          TEXT PRIMARY KEY,
	uploader_id TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS factories (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	cleaned_name    TEXT NOT NULL,
	country         TEXT NOT NULL,
	sources         TEXT NOT NULL DEFAULT '[]',
	confirmed_links TEXT NOT NULL DEFAULT '[]',
	UNIQUE (name, country)
);
CREATE INDEX IF NOT EXISTS idx_factories_country ON factories(country);

CREATE TABLE IF NOT EXISTS addresses (
	id                TEXT PRIMARY KEY,
	address           TEXT NOT NULL,
	country           TEXT NOT NULL,
	related_factories TEXT NOT NULL DEFAULT '[]',
	sources           TEXT NOT NULL DEFAULT '[]',
	UNIQUE (address, country)
);
CREATE INDEX IF NOT EXISTS idx_addresses_country ON addresses(country);

CREATE TABLE IF NOT EXISTS geos (
	id                TEXT PRIMARY KEY,
	geo_key           TEXT NOT NULL UNIQUE,
	lat               REAL NOT NULL,
	lon               REAL NOT NULL,
	place_id          TEXT,
	country           TEXT NOT NULL,
	location          TEXT NOT NULL,
	related_addresses TEXT NOT NULL DEFAULT '[]',
	sources           TEXT NOT NULL DEFAULT '[]',
	payload           TEXT
);

CREATE TABLE IF NOT EXISTS candidate_records (
	id           TEXT PRIMARY KEY,
	raw_name     TEXT NOT NULL,
	raw_address  TEXT NOT NULL,
	raw_country  TEXT NOT NULL,
	uploader_id  TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'unprocessed',
	matches      TEXT NOT NULL DEFAULT '[]',
	processed_at DATETIME,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_candidate_records_status ON candidate_records(status);

CREATE TABLE IF NOT EXISTS confirms (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	address    TEXT NOT NULL,
	factory_id TEXT NOT NULL,
	address_id TEXT NOT NULL,
	source_id  TEXT NOT NULL,
	record_id  TEXT NOT NULL,
	match_id   TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS geocode_cache (
	address_hash TEXT PRIMARY KEY,
	payload      TEXT NOT NULL,
	cached_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at   DATETIME NOT NULL
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// writeTx runs fn inside a transaction and commits. Writes are serialized
// by the pool's single connection (SetMaxOpenConns(1) in NewSQLite), which
// is what keeps the SELECT and UPDATE of a find-or-create atomic against
// concurrent upserts.
func (s *SQLiteStore) writeTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	if err := fn(tx); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

func (s *SQLiteStore) UpsertSource(ctx context.Context, uploaderID string) (*model.Source, error) {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO sources (id, uploader_id) VALUES (?, ?)
		ON CONFLICT (uploader_id) DO NOTHING`,
		uuid.New().String(), uploaderID,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: upsert source")
	}
	return s.GetSourceByUploader(ctx, uploaderID)
}

func (s *SQLiteStore) GetSourceByUploader(ctx context.Context, uploaderID string) (*model.Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, uploader_id FROM sources WHERE uploader_id = ?`, uploaderID)
	var src model.Source
	if err := row.Scan(&src.ID, &src.UploaderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get source")
	}
	return &src, nil
}

func (s *SQLiteStore) UpsertFactory(ctx context.Context, name, cleanedName, country, sourceID string) (*model.Factory, error) {
	var f model.Factory
	err := s.writeTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT id, name, cleaned_name, country, sources, confirmed_links
			FROM factories WHERE name = ? AND country = ?`,
			name, country,
		)
		var sourcesJSON, linksJSON string
		err := row.Scan(&f.ID, &f.Name, &f.CleanedName, &f.Country, &sourcesJSON, &linksJSON)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			f = model.Factory{
				ID:          uuid.New().String(),
				Name:        name,
				CleanedName: cleanedName,
				Country:     country,
				Sources:     []string{sourceID},
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO factories (id, name, cleaned_name, country, sources, confirmed_links)
				VALUES (?, ?, ?, ?, ?, '[]')`,
				f.ID, f.Name, f.CleanedName, f.Country, marshalSet(f.Sources),
			)
			return eris.Wrap(err, "sqlite: insert factory")
		case err != nil:
			return eris.Wrap(err, "sqlite: find factory")
		}

		if err := unmarshalSet(sourcesJSON, &f.Sources); err != nil {
			return err
		}
		if err := unmarshalSet(linksJSON, &f.ConfirmedLinks); err != nil {
			return err
		}
		f.Sources = appendUnique(f.Sources, sourceID)
		_, err = tx.ExecContext(ctx, `UPDATE factories SET sources = ? WHERE id = ?`,
			marshalSet(f.Sources), f.ID)
		return eris.Wrap(err, "sqlite: update factory sources")
	})
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *SQLiteStore) UpsertAddress(ctx context.Context, address, country, factoryID, sourceID string) (*model.Address, error) {
	var a model.Address
	err := s.writeTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT id, address, country, related_factories, sources
			FROM addresses WHERE address = ? AND country = ?`,
			address, country,
		)
		var factoriesJSON, sourcesJSON string
		err := row.Scan(&a.ID, &a.Address, &a.Country, &factoriesJSON, &sourcesJSON)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			a = model.Address{
				ID:               uuid.New().String(),
				Address:          address,
				Country:          country,
				RelatedFactories: []string{factoryID},
				Sources:          []string{sourceID},
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO addresses (id, address, country, related_factories, sources)
				VALUES (?, ?, ?, ?, ?)`,
				a.ID, a.Address, a.Country, marshalSet(a.RelatedFactories), marshalSet(a.Sources),
			)
			return eris.Wrap(err, "sqlite: insert address")
		case err != nil:
			return eris.Wrap(err, "sqlite: find address")
		}

		if err := unmarshalSet(factoriesJSON, &a.RelatedFactories); err != nil {
			return err
		}
		if err := unmarshalSet(sourcesJSON, &a.Sources); err != nil {
			return err
		}
		a.RelatedFactories = appendUnique(a.RelatedFactories, factoryID)
		a.Sources = appendUnique(a.Sources, sourceID)
		_, err = tx.ExecContext(ctx, `
			UPDATE addresses SET related_factories = ?, sources = ? WHERE id = ?`,
			marshalSet(a.RelatedFactories), marshalSet(a.Sources), a.ID)
		return eris.Wrap(err, "sqlite: update address sets")
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *SQLiteStore) UpsertGeo(ctx context.Context, key model.GeoKey, country, addressID, sourceID string, payload model.GeoPayload) (*model.Geo, error) {
	var g model.Geo
	var skipped bool
	err := s.writeTx(ctx, func(tx *sql.Tx) error {
		var addrCountry string
		row := tx.QueryRowContext(ctx, `SELECT country FROM addresses WHERE id = ?`, addressID)
		if err := row.Scan(&addrCountry); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return eris.Wrapf(ErrNotFound, "sqlite: address %s", addressID)
			}
			return eris.Wrap(err, "sqlite: geo address lookup")
		}

		if country != "" && country != addrCountry {
			zap.L().Warn("geo country mismatch, skipping linkage",
				zap.String("geo_key", key.String()),
				zap.String("geocoded_country", country),
				zap.String("address_country", addrCountry),
				zap.String("address_id", addressID),
			)
			skipped = true
			return nil
		}

		geoRow := tx.QueryRowContext(ctx, `
			SELECT id, lat, lon, place_id, country, related_addresses, sources
			FROM geos WHERE geo_key = ?`,
			key.String(),
		)
		var placeID sql.NullString
		var addressesJSON, sourcesJSON string
		err := geoRow.Scan(&g.ID, &g.Lat, &g.Lon, &placeID, &g.Country, &addressesJSON, &sourcesJSON)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			location, err := wkt.Marshal(geom.NewPointFlat(geom.XY, []float64{key.Lon, key.Lat}))
			if err != nil {
				return eris.Wrap(err, "sqlite: encode geo point")
			}
			payloadJSON, err := json.Marshal(payload)
			if err != nil {
				return eris.Wrap(err, "sqlite: marshal geo payload")
			}
			g = model.Geo{
				ID:               uuid.New().String(),
				Key:              key,
				Lat:              key.Lat,
				Lon:              key.Lon,
				Country:          addrCountry,
				RelatedAddresses: []string{addressID},
				Sources:          []string{sourceID},
				Payload:          payload,
			}
			if key.Kind == model.GeoKeyPlaceID {
				g.PlaceID = key.PlaceID
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO geos (id, geo_key, lat, lon, place_id, country, location, related_addresses, sources, payload)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				g.ID, key.String(), g.Lat, g.Lon, nullable(g.PlaceID), g.Country, location,
				marshalSet(g.RelatedAddresses), marshalSet(g.Sources), string(payloadJSON),
			)
			return eris.Wrap(err, "sqlite: insert geo")
		case err != nil:
			return eris.Wrap(err, "sqlite: find geo")
		}

		g.Key = key
		g.Payload = payload
		if placeID.Valid {
			g.PlaceID = placeID.String
		}
		if err := unmarshalSet(addressesJSON, &g.RelatedAddresses); err != nil {
			return err
		}
		if err := unmarshalSet(sourcesJSON, &g.Sources); err != nil {
			return err
		}
		g.RelatedAddresses = appendUnique(g.RelatedAddresses, addressID)
		g.Sources = appendUnique(g.Sources, sourceID)
		_, err = tx.ExecContext(ctx, `
			UPDATE geos SET related_addresses = ?, sources = ? WHERE id = ?`,
			marshalSet(g.RelatedAddresses), marshalSet(g.Sources), g.ID)
		return eris.Wrap(err, "sqlite: update geo sets")
	})
	if err != nil {
		return nil, err
	}
	if skipped {
		return nil, nil
	}
	return &g, nil
}

func (s *SQLiteStore) AddFactoryLinks(ctx context.Context, factoryID, confirmID, sourceID string) error {
	return s.writeTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT confirmed_links, sources FROM factories WHERE id = ?`, factoryID)
		var linksJSON, sourcesJSON string
		if err := row.Scan(&linksJSON, &sourcesJSON); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return eris.Wrapf(ErrNotFound, "sqlite: factory %s", factoryID)
			}
			return eris.Wrap(err, "sqlite: find factory")
		}
		var links, sources []string
		if err := unmarshalSet(linksJSON, &links); err != nil {
			return err
		}
		if err := unmarshalSet(sourcesJSON, &sources); err != nil {
			return err
		}
		links = appendUnique(links, confirmID)
		sources = appendUnique(sources, sourceID)
		_, err := tx.ExecContext(ctx, `
			UPDATE factories SET confirmed_links = ?, sources = ? WHERE id = ?`,
			marshalSet(links), marshalSet(sources), factoryID)
		return eris.Wrap(err, "sqlite: update factory links")
	})
}

func (s *SQLiteStore) AddressesForFactories(ctx context.Context, factoryIDs []string, country string) ([]model.Address, error) {
	if len(factoryIDs) == 0 {
		return nil, nil
	}
	// Small per-country tables; filter the JSON membership in Go.
	all, err := s.AddressesByCountry(ctx, country)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(factoryIDs))
	for _, id := range factoryIDs {
		wanted[id] = struct{}{}
	}
	var out []model.Address
	for _, a := range all {
		for _, fid := range a.RelatedFactories {
			if _, ok := wanted[fid]; ok {
				out = append(out, a)
				break
			}
		}
	}
	return out, nil
}

func (s *SQLiteStore) FactoriesByCountry(ctx context.Context, country string) ([]model.Factory, error) {
	return s.queryFactories(ctx, `
		SELECT id, name, cleaned_name, country, sources, confirmed_links
		FROM factories WHERE country = ? ORDER BY id`,
		country,
	)
}

func (s *SQLiteStore) FactoriesByIDs(ctx context.Context, ids []string) ([]model.Factory, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return s.queryFactories(ctx, `
		SELECT id, name, cleaned_name, country, sources, confirmed_links
		FROM factories WHERE id IN (`+placeholders+`) ORDER BY id`,
		args...,
	)
}

func (s *SQLiteStore) queryFactories(ctx context.Context, query string, args ...any) ([]model.Factory, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: factories by country")
	}
	defer rows.Close() //nolint:errcheck

	var factories []model.Factory
	for rows.Next() {
		var f model.Factory
		var sourcesJSON, linksJSON string
		if err := rows.Scan(&f.ID, &f.Name, &f.CleanedName, &f.Country, &sourcesJSON, &linksJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan factory")
		}
		if err := unmarshalSet(sourcesJSON, &f.Sources); err != nil {
			return nil, err
		}
		if err := unmarshalSet(linksJSON, &f.ConfirmedLinks); err != nil {
			return nil, err
		}
		factories = append(factories, f)
	}
	return factories, eris.Wrap(rows.Err(), "sqlite: iterate factories")
}

func (s *SQLiteStore) AddressesByCountry(ctx context.Context, country string) ([]model.Address, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, address, country, related_factories, sources
		FROM addresses WHERE country = ? ORDER BY id`,
		country,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: addresses by country")
	}
	defer rows.Close() //nolint:errcheck

	var addresses []model.Address
	for rows.Next() {
		var a model.Address
		var factoriesJSON, sourcesJSON string
		if err := rows.Scan(&a.ID, &a.Address, &a.Country, &factoriesJSON, &sourcesJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan address")
		}
		if err := unmarshalSet(factoriesJSON, &a.RelatedFactories); err != nil {
			return nil, err
		}
		if err := unmarshalSet(sourcesJSON, &a.Sources); err != nil {
			return nil, err
		}
		addresses = append(addresses, a)
	}
	return addresses, eris.Wrap(rows.Err(), "sqlite: iterate addresses")
}

func (s *SQLiteStore) CreateRecord(ctx context.Context, rec *model.CandidateRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Status == "" {
		rec.Status = model.RecordStatusUnprocessed
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	matchesJSON, err := json.Marshal(emptyIfNil(rec.Matches))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal matches")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO candidate_records (id, raw_name, raw_address, raw_country, uploader_id, status, matches, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RawName, rec.RawAddress, rec.RawCountry, rec.UploaderID,
		string(rec.Status), string(matchesJSON), rec.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert record")
}

func (s *SQLiteStore) BulkCreateRecords(ctx context.Context, recs []model.CandidateRecord) (int64, error) {
	var inserted int64
	err := s.writeTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO candidate_records (id, raw_name, raw_address, raw_country, uploader_id, status, matches, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare bulk insert")
		}
		defer stmt.Close() //nolint:errcheck

		now := time.Now().UTC()
		for i := range recs {
			rec := &recs[i]
			if rec.ID == "" {
				rec.ID = uuid.New().String()
			}
			if rec.Status == "" {
				rec.Status = model.RecordStatusUnprocessed
			}
			if rec.CreatedAt.IsZero() {
				rec.CreatedAt = now
			}
			matchesJSON, err := json.Marshal(emptyIfNil(rec.Matches))
			if err != nil {
				return eris.Wrap(err, "sqlite: marshal matches")
			}
			if _, err := stmt.ExecContext(ctx,
				rec.ID, rec.RawName, rec.RawAddress, rec.RawCountry, rec.UploaderID,
				string(rec.Status), string(matchesJSON), rec.CreatedAt,
			); err != nil {
				return eris.Wrap(err, "sqlite: bulk insert record")
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*model.CandidateRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, raw_name, raw_address, raw_country, uploader_id, status, matches, processed_at, created_at
		FROM candidate_records WHERE id = ?`,
		id,
	)
	rec, err := scanSQLiteRecord(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: record %s", id)
		}
		return nil, eris.Wrap(err, "sqlite: get record")
	}
	return rec, nil
}

func (s *SQLiteStore) ListPendingRecords(ctx context.Context, limit int) ([]model.CandidateRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, raw_name, raw_address, raw_country, uploader_id, status, matches, processed_at, created_at
		FROM candidate_records WHERE status = ? ORDER BY created_at LIMIT ?`,
		string(model.RecordStatusUnprocessed), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pending")
	}
	defer rows.Close() //nolint:errcheck

	var records []model.CandidateRecord
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: iterate records")
}

func scanSQLiteRecord(scan func(dest ...any) error) (*model.CandidateRecord, error) {
	var rec model.CandidateRecord
	var status, matchesJSON string
	var processedAt sql.NullTime
	if err := scan(&rec.ID, &rec.RawName, &rec.RawAddress, &rec.RawCountry, &rec.UploaderID,
		&status, &matchesJSON, &processedAt, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.Status = model.RecordStatus(status)
	if processedAt.Valid {
		t := processedAt.Time
		rec.ProcessedAt = &t
	}
	if matchesJSON != "" {
		if err := json.Unmarshal([]byte(matchesJSON), &rec.Matches); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal matches")
		}
	}
	return &rec, nil
}

func (s *SQLiteStore) MarkProcessed(ctx context.Context, recordID string, matches []model.Match, processedAt time.Time) error {
	matchesJSON, err := json.Marshal(emptyIfNil(matches))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal matches")
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE candidate_records SET status = ?, matches = ?, processed_at = ? WHERE id = ?`,
		string(model.RecordStatusProcessed), string(matchesJSON), processedAt, recordID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: mark processed")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: mark processed rows")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: record %s", recordID)
	}
	return nil
}

func (s *SQLiteStore) SetMatchConfirmed(ctx context.Context, recordID, matchID string, confirmed bool) error {
	return s.writeTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT matches FROM candidate_records WHERE id = ?`, recordID)
		var matchesJSON string
		if err := row.Scan(&matchesJSON); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return eris.Wrapf(ErrNotFound, "sqlite: record %s", recordID)
			}
			return eris.Wrap(err, "sqlite: load record")
		}

		var matches []model.Match
		if matchesJSON != "" {
			if err := json.Unmarshal([]byte(matchesJSON), &matches); err != nil {
				return eris.Wrap(err, "sqlite: unmarshal matches")
			}
		}
		updated, err := setConfirmed(matches, matchID, confirmed)
		if err != nil {
			return err
		}
		updatedJSON, err := json.Marshal(updated)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal matches")
		}
		_, err = tx.ExecContext(ctx, `UPDATE candidate_records SET matches = ? WHERE id = ?`,
			string(updatedJSON), recordID)
		return eris.Wrap(err, "sqlite: update match")
	})
}

func (s *SQLiteStore) CreateConfirm(ctx context.Context, c model.Confirm) (*model.Confirm, bool, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO confirms (id, name, address, factory_id, address_id, source_id, record_id, match_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (match_id) DO NOTHING`,
		c.ID, c.Name, c.Address, c.FactoryID, c.AddressID, c.SourceID, c.RecordID, c.MatchID,
	)
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: insert confirm")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: insert confirm rows")
	}
	if n == 1 {
		return &c, true, nil
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, address, factory_id, address_id, source_id, record_id, match_id
		FROM confirms WHERE match_id = ?`,
		c.MatchID,
	)
	var existing model.Confirm
	if err := row.Scan(&existing.ID, &existing.Name, &existing.Address, &existing.FactoryID,
		&existing.AddressID, &existing.SourceID, &existing.RecordID, &existing.MatchID); err != nil {
		return nil, false, eris.Wrap(err, "sqlite: get existing confirm")
	}
	return &existing, false, nil
}

func (s *SQLiteStore) GetCachedGeocode(ctx context.Context, addressHash string) ([]byte, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT payload FROM geocode_cache WHERE address_hash = ? AND expires_at > ?`,
		addressHash, time.Now().UTC(),
	)
	var payload string
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get geocode cache")
	}
	return []byte(payload), nil
}

func (s *SQLiteStore) SetCachedGeocode(ctx context.Context, addressHash string, payload []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO geocode_cache (address_hash, payload, cached_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (address_hash) DO UPDATE SET
			payload = excluded.payload,
			cached_at = excluded.cached_at,
			expires_at = excluded.expires_at`,
		addressHash, string(payload), now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set geocode cache")
}

func marshalSet(set []string) string {
	if set == nil {
		set = []string{}
	}
	b, _ := json.Marshal(set)
	return string(b)
}

func unmarshalSet(s string, dst *[]string) error {
	if s == "" {
		*dst = nil
		return nil
	}
	return eris.Wrap(json.Unmarshal([]byte(s), dst), "sqlite: unmarshal set")
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
