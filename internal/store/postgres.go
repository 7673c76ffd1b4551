package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
	"go.uber.org/zap"

	"github.com/facilityhub/registry-cli/internal/db"
	"github.com/facilityhub/registry-cli/internal/model"
)

// PostgresStore implements Store using pgxpool. Uniqueness is enforced by
// the schema's unique constraints; all upserts are single INSERT .. ON
// CONFLICT statements, so they are atomic under concurrent writers.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool, mainly for tests.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (the pg_trgm searcher).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS pg_trgm;
CREATE EXTENSION IF NOT EXISTS fuzzystrmatch;

CREATE TABLE IF NOT EXISTS sources (
	id          TEXT PRIMARY KEY,
	uploader_id TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS factories (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	cleaned_name    TEXT NOT NULL,
	country         TEXT NOT NULL,
	sources         TEXT[] NOT NULL DEFAULT '{}',
	confirmed_links TEXT[] NOT NULL DEFAULT '{}',
	UNIQUE (name, country)
);
CREATE INDEX IF NOT EXISTS idx_factories_country ON factories(country);
CREATE INDEX IF NOT EXISTS idx_factories_cleaned_trgm ON factories USING gin (cleaned_name gin_trgm_ops);

CREATE TABLE IF NOT EXISTS addresses (
	id                TEXT PRIMARY KEY,
	address           TEXT NOT NULL,
	country           TEXT NOT NULL,
	related_factories TEXT[] NOT NULL DEFAULT '{}',
	sources           TEXT[] NOT NULL DEFAULT '{}',
	UNIQUE (address, country)
);
CREATE INDEX IF NOT EXISTS idx_addresses_country ON addresses(country);
CREATE INDEX IF NOT EXISTS idx_addresses_address_trgm ON addresses USING gin (address gin_trgm_ops);

CREATE TABLE IF NOT EXISTS geos (
	id                TEXT PRIMARY KEY,
	geo_key           TEXT NOT NULL UNIQUE,
	lat               DOUBLE PRECISION NOT NULL,
	lon               DOUBLE PRECISION NOT NULL,
	place_id          TEXT,
	country           TEXT NOT NULL,
	location          TEXT NOT NULL,
	related_addresses TEXT[] NOT NULL DEFAULT '{}',
	sources           TEXT[] NOT NULL DEFAULT '{}',
	payload           JSONB
);

CREATE TABLE IF NOT EXISTS candidate_records (
	id           TEXT PRIMARY KEY,
	raw_name     TEXT NOT NULL,
	raw_address  TEXT NOT NULL,
	raw_country  TEXT NOT NULL,
	uploader_id  TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'unprocessed',
	matches      JSONB NOT NULL DEFAULT '[]',
	processed_at TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
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
	payload      JSONB NOT NULL,
	cached_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at   TIMESTAMPTZ NOT NULL
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertSource(ctx context.Context, uploaderID string) (*model.Source, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO sources (id, uploader_id) VALUES ($1, $2)
		ON CONFLICT (uploader_id) DO UPDATE SET uploader_id = EXCLUDED.uploader_id
		RETURNING id, uploader_id`,
		uuid.New().String(), uploaderID,
	)
	var src model.Source
	if err := row.Scan(&src.ID, &src.UploaderID); err != nil {
		return nil, eris.Wrap(err, "postgres: upsert source")
	}
	return &src, nil
}

func (s *PostgresStore) GetSourceByUploader(ctx context.Context, uploaderID string) (*model.Source, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, uploader_id FROM sources WHERE uploader_id = $1`, uploaderID)
	var src model.Source
	if err := row.Scan(&src.ID, &src.UploaderID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get source")
	}
	return &src, nil
}

func (s *PostgresStore) UpsertFactory(ctx context.Context, name, cleanedName, country, sourceID string) (*model.Factory, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO factories (id, name, cleaned_name, country, sources)
		VALUES ($1, $2, $3, $4, ARRAY[$5])
		ON CONFLICT (name, country) DO UPDATE SET
			sources = CASE WHEN $5 = ANY (factories.sources)
			               THEN factories.sources
			               ELSE array_append(factories.sources, $5) END
		RETURNING id, name, cleaned_name, country, sources, confirmed_links`,
		uuid.New().String(), name, cleanedName, country, sourceID,
	)
	var f model.Factory
	if err := row.Scan(&f.ID, &f.Name, &f.CleanedName, &f.Country, &f.Sources, &f.ConfirmedLinks); err != nil {
		return nil, eris.Wrap(err, "postgres: upsert factory")
	}
	return &f, nil
}

func (s *PostgresStore) UpsertAddress(ctx context.Context, address, country, factoryID, sourceID string) (*model.Address, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO addresses (id, address, country, related_factories, sources)
		VALUES ($1, $2, $3, ARRAY[$4], ARRAY[$5])
		ON CONFLICT (address, country) DO UPDATE SET
			related_factories = CASE WHEN $4 = ANY (addresses.related_factories)
			                         THEN addresses.related_factories
			                         ELSE array_append(addresses.related_factories, $4) END,
			sources = CASE WHEN $5 = ANY (addresses.sources)
			               THEN addresses.sources
			               ELSE array_append(addresses.sources, $5) END
		RETURNING id, address, country, related_factories, sources`,
		uuid.New().String(), address, country, factoryID, sourceID,
	)
	var a model.Address
	if err := row.Scan(&a.ID, &a.Address, &a.Country, &a.RelatedFactories, &a.Sources); err != nil {
		return nil, eris.Wrap(err, "postgres: upsert address")
	}
	return &a, nil
}

func (s *PostgresStore) UpsertGeo(ctx context.Context, key model.GeoKey, country, addressID, sourceID string, payload model.GeoPayload) (*model.Geo, error) {
	var addrCountry string
	row := s.pool.QueryRow(ctx, `SELECT country FROM addresses WHERE id = $1`, addressID)
	if err := row.Scan(&addrCountry); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: address %s", addressID)
		}
		return nil, eris.Wrap(err, "postgres: geo address lookup")
	}

	if country != "" && country != addrCountry {
		zap.L().Warn("geo country mismatch, skipping linkage",
			zap.String("geo_key", key.String()),
			zap.String("geocoded_country", country),
			zap.String("address_country", addrCountry),
			zap.String("address_id", addressID),
		)
		return nil, nil
	}

	location, err := wkt.Marshal(geom.NewPointFlat(geom.XY, []float64{key.Lon, key.Lat}))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: encode geo point")
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal geo payload")
	}

	var placeID *string
	if key.Kind == model.GeoKeyPlaceID {
		placeID = &key.PlaceID
	}

	geoRow := s.pool.QueryRow(ctx, `
		INSERT INTO geos (id, geo_key, lat, lon, place_id, country, location, related_addresses, sources, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, ARRAY[$8], ARRAY[$9], $10)
		ON CONFLICT (geo_key) DO UPDATE SET
			related_addresses = CASE WHEN $8 = ANY (geos.related_addresses)
			                         THEN geos.related_addresses
			                         ELSE array_append(geos.related_addresses, $8) END,
			sources = CASE WHEN $9 = ANY (geos.sources)
			               THEN geos.sources
			               ELSE array_append(geos.sources, $9) END
		RETURNING id, lat, lon, place_id, country, related_addresses, sources`,
		uuid.New().String(), key.String(), key.Lat, key.Lon, placeID, addrCountry, location, addressID, sourceID, payloadJSON,
	)

	var g model.Geo
	var scannedPlaceID *string
	if err := geoRow.Scan(&g.ID, &g.Lat, &g.Lon, &scannedPlaceID, &g.Country, &g.RelatedAddresses, &g.Sources); err != nil {
		return nil, eris.Wrap(err, "postgres: upsert geo")
	}
	if scannedPlaceID != nil {
		g.PlaceID = *scannedPlaceID
	}
	g.Key = key
	g.Payload = payload
	return &g, nil
}

func (s *PostgresStore) AddFactoryLinks(ctx context.Context, factoryID, confirmID, sourceID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE factories SET
			confirmed_links = CASE WHEN $2 = ANY (confirmed_links)
			                       THEN confirmed_links
			                       ELSE array_append(confirmed_links, $2) END,
			sources = CASE WHEN $3 = ANY (sources)
			               THEN sources
			               ELSE array_append(sources, $3) END
		WHERE id = $1`,
		factoryID, confirmID, sourceID,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: add factory links")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: factory %s", factoryID)
	}
	return nil
}

func (s *PostgresStore) AddressesForFactories(ctx context.Context, factoryIDs []string, country string) ([]model.Address, error) {
	if len(factoryIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, address, country, related_factories, sources
		FROM addresses
		WHERE country = $1 AND related_factories && $2
		ORDER BY id`,
		country, factoryIDs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: addresses for factories")
	}
	defer rows.Close()
	return scanAddresses(rows)
}

func (s *PostgresStore) FactoriesByCountry(ctx context.Context, country string) ([]model.Factory, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, cleaned_name, country, sources, confirmed_links
		FROM factories WHERE country = $1 ORDER BY id`,
		country,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: factories by country")
	}
	defer rows.Close()
	return scanFactories(rows)
}

func (s *PostgresStore) FactoriesByIDs(ctx context.Context, ids []string) ([]model.Factory, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, cleaned_name, country, sources, confirmed_links
		FROM factories WHERE id = ANY($1) ORDER BY id`,
		ids,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: factories by ids")
	}
	defer rows.Close()
	return scanFactories(rows)
}

func scanFactories(rows pgx.Rows) ([]model.Factory, error) {
	var factories []model.Factory
	for rows.Next() {
		var f model.Factory
		if err := rows.Scan(&f.ID, &f.Name, &f.CleanedName, &f.Country, &f.Sources, &f.ConfirmedLinks); err != nil {
			return nil, eris.Wrap(err, "postgres: scan factory")
		}
		factories = append(factories, f)
	}
	return factories, eris.Wrap(rows.Err(), "postgres: iterate factories")
}

func (s *PostgresStore) AddressesByCountry(ctx context.Context, country string) ([]model.Address, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, address, country, related_factories, sources
		FROM addresses WHERE country = $1 ORDER BY id`,
		country,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: addresses by country")
	}
	defer rows.Close()
	return scanAddresses(rows)
}

func scanAddresses(rows pgx.Rows) ([]model.Address, error) {
	var addresses []model.Address
	for rows.Next() {
		var a model.Address
		if err := rows.Scan(&a.ID, &a.Address, &a.Country, &a.RelatedFactories, &a.Sources); err != nil {
			return nil, eris.Wrap(err, "postgres: scan address")
		}
		addresses = append(addresses, a)
	}
	return addresses, eris.Wrap(rows.Err(), "postgres: iterate addresses")
}

func (s *PostgresStore) CreateRecord(ctx context.Context, rec *model.CandidateRecord) error {
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
		return eris.Wrap(err, "postgres: marshal matches")
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO candidate_records (id, raw_name, raw_address, raw_country, uploader_id, status, matches, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.RawName, rec.RawAddress, rec.RawCountry, rec.UploaderID, string(rec.Status), matchesJSON, rec.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert record")
}

func (s *PostgresStore) BulkCreateRecords(ctx context.Context, recs []model.CandidateRecord) (int64, error) {
	rows := make([][]any, 0, len(recs))
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
			return 0, eris.Wrap(err, "postgres: marshal matches")
		}
		rows = append(rows, []any{
			rec.ID, rec.RawName, rec.RawAddress, rec.RawCountry, rec.UploaderID,
			string(rec.Status), matchesJSON, rec.CreatedAt,
		})
	}
	return db.CopyFrom(ctx, s.pool, "candidate_records",
		[]string{"id", "raw_name", "raw_address", "raw_country", "uploader_id", "status", "matches", "created_at"},
		rows,
	)
}

const recordColumns = `id, raw_name, raw_address, raw_country, uploader_id, status, matches, processed_at, created_at`

func (s *PostgresStore) GetRecord(ctx context.Context, id string) (*model.CandidateRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM candidate_records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: record %s", id)
		}
		return nil, eris.Wrap(err, "postgres: get record")
	}
	return rec, nil
}

func (s *PostgresStore) ListPendingRecords(ctx context.Context, limit int) ([]model.CandidateRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+recordColumns+` FROM candidate_records
		WHERE status = $1 ORDER BY created_at LIMIT $2`,
		string(model.RecordStatusUnprocessed), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pending")
	}
	defer rows.Close()

	var records []model.CandidateRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		records = append(records, *rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: iterate records")
}

func scanRecord(row pgx.Row) (*model.CandidateRecord, error) {
	var rec model.CandidateRecord
	var status string
	var matchesJSON []byte
	if err := row.Scan(&rec.ID, &rec.RawName, &rec.RawAddress, &rec.RawCountry, &rec.UploaderID,
		&status, &matchesJSON, &rec.ProcessedAt, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.Status = model.RecordStatus(status)
	if len(matchesJSON) > 0 {
		if err := json.Unmarshal(matchesJSON, &rec.Matches); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal matches")
		}
	}
	return &rec, nil
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, recordID string, matches []model.Match, processedAt time.Time) error {
	matchesJSON, err := json.Marshal(emptyIfNil(matches))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal matches")
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE candidate_records SET status = $2, matches = $3, processed_at = $4 WHERE id = $1`,
		recordID, string(model.RecordStatusProcessed), matchesJSON, processedAt,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: mark processed")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: record %s", recordID)
	}
	return nil
}

func (s *PostgresStore) SetMatchConfirmed(ctx context.Context, recordID, matchID string, confirmed bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin confirm tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var matchesJSON []byte
	row := tx.QueryRow(ctx, `SELECT matches FROM candidate_records WHERE id = $1 FOR UPDATE`, recordID)
	if err := row.Scan(&matchesJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return eris.Wrapf(ErrNotFound, "postgres: record %s", recordID)
		}
		return eris.Wrap(err, "postgres: lock record")
	}

	var matches []model.Match
	if len(matchesJSON) > 0 {
		if err := json.Unmarshal(matchesJSON, &matches); err != nil {
			return eris.Wrap(err, "postgres: unmarshal matches")
		}
	}

	updated, err := setConfirmed(matches, matchID, confirmed)
	if err != nil {
		return err
	}
	updatedJSON, err := json.Marshal(updated)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal matches")
	}

	if _, err := tx.Exec(ctx, `UPDATE candidate_records SET matches = $2 WHERE id = $1`, recordID, updatedJSON); err != nil {
		return eris.Wrap(err, "postgres: update match")
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit confirm tx")
}

// setConfirmed flips the confirmed flag of one match entry, leaving every
// other entry byte-for-byte untouched.
func setConfirmed(matches []model.Match, matchID string, confirmed bool) ([]model.Match, error) {
	for i := range matches {
		if matches[i].MatchID == matchID {
			c := confirmed
			matches[i].Confirmed = &c
			return matches, nil
		}
	}
	return nil, eris.Wrapf(ErrMatchNotFound, "match %s", matchID)
}

func (s *PostgresStore) CreateConfirm(ctx context.Context, c model.Confirm) (*model.Confirm, bool, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO confirms (id, name, address, factory_id, address_id, source_id, record_id, match_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (match_id) DO NOTHING`,
		c.ID, c.Name, c.Address, c.FactoryID, c.AddressID, c.SourceID, c.RecordID, c.MatchID,
	)
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: insert confirm")
	}
	if tag.RowsAffected() == 1 {
		return &c, true, nil
	}

	row := s.pool.QueryRow(ctx, `
		SELECT id, name, address, factory_id, address_id, source_id, record_id, match_id
		FROM confirms WHERE match_id = $1`,
		c.MatchID,
	)
	var existing model.Confirm
	if err := row.Scan(&existing.ID, &existing.Name, &existing.Address, &existing.FactoryID,
		&existing.AddressID, &existing.SourceID, &existing.RecordID, &existing.MatchID); err != nil {
		return nil, false, eris.Wrap(err, "postgres: get existing confirm")
	}
	return &existing, false, nil
}

func (s *PostgresStore) GetCachedGeocode(ctx context.Context, addressHash string) ([]byte, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT payload FROM geocode_cache WHERE address_hash = $1 AND expires_at > now()`,
		addressHash,
	)
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get geocode cache")
	}
	return payload, nil
}

func (s *PostgresStore) SetCachedGeocode(ctx context.Context, addressHash string, payload []byte, ttl time.Duration) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO geocode_cache (address_hash, payload, cached_at, expires_at)
		VALUES ($1, $2, now(), $3)
		ON CONFLICT (address_hash) DO UPDATE SET
			payload = EXCLUDED.payload,
			cached_at = now(),
			expires_at = EXCLUDED.expires_at`,
		addressHash, payload, time.Now().UTC().Add(ttl),
	)
	return eris.Wrap(err, "postgres: set geocode cache")
}

func emptyIfNil(matches []model.Match) []model.Match {
	if matches == nil {
		return []model.Match{}
	}
	return matches
}
