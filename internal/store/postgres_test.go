package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facilityhub/registry-cli/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresFromPool(mock), mock
}

func TestPostgresUpsertSource(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO sources").
		WithArgs(pgxmock.AnyArg(), "uploader-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "uploader_id"}).
			AddRow("src-1", "uploader-1"))

	src, err := st.UpsertSource(context.Background(), "uploader-1")
	require.NoError(t, err)
	assert.Equal(t, "src-1", src.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetSourceByUploader_MissReturnsNil(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, uploader_id FROM sources").
		WithArgs("nobody").
		WillReturnRows(pgxmock.NewRows([]string{"id", "uploader_id"}))

	src, err := st.GetSourceByUploader(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, src)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertFactory(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO factories").
		WithArgs(pgxmock.AnyArg(), "Acme Textiles Co.", "acme textiles", "CN", "s1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "cleaned_name", "country", "sources", "confirmed_links"}).
			AddRow("f1", "Acme Textiles Co.", "acme textiles", "CN", []string{"s1"}, []string{}))

	f, err := st.UpsertFactory(context.Background(), "Acme Textiles Co.", "acme textiles", "CN", "s1")
	require.NoError(t, err)
	assert.Equal(t, "f1", f.ID)
	assert.Equal(t, []string{"s1"}, f.Sources)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertGeo_CountryMismatchSkips(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT country FROM addresses").
		WithArgs("a1").
		WillReturnRows(pgxmock.NewRows([]string{"country"}).AddRow("CN"))

	key := model.GeoKey{Kind: model.GeoKeyLatLon, Lat: 48.8566, Lon: 2.3522}
	g, err := st.UpsertGeo(context.Background(), key, "FR", "a1", "s1", model.GeoPayload{})
	require.NoError(t, err)
	assert.Nil(t, g)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMarkProcessed_NotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("UPDATE candidate_records").
		WithArgs("missing", "processed", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := st.MarkProcessed(context.Background(), "missing", nil, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateConfirm_ExistingReturned(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO confirms").
		WithArgs(pgxmock.AnyArg(), "Acme", "12 Mill Rd", "f1", "a1", "s1", "r1", "m1").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT id, name, address, factory_id").
		WithArgs("m1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "address", "factory_id", "address_id", "source_id", "record_id", "match_id"}).
			AddRow("c-existing", "Acme", "12 Mill Rd", "f1", "a1", "s1", "r1", "m1"))

	c, created, err := st.CreateConfirm(context.Background(), model.Confirm{
		Name: "Acme", Address: "12 Mill Rd",
		FactoryID: "f1", AddressID: "a1", SourceID: "s1",
		RecordID: "r1", MatchID: "m1",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "c-existing", c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBulkCreateRecords(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"candidate_records"},
		[]string{"id", "raw_name", "raw_address", "raw_country", "uploader_id", "status", "matches", "created_at"}).
		WillReturnResult(2)

	n, err := st.BulkCreateRecords(context.Background(), []model.CandidateRecord{
		{RawName: "Acme", RawCountry: "CN", UploaderID: "u1"},
		{RawName: "Beta Mills", RawCountry: "IN", UploaderID: "u1"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetConfirmed(t *testing.T) {
	matches := []model.Match{{MatchID: "m1"}, {MatchID: "m2"}}

	updated, err := setConfirmed(matches, "m1", true)
	require.NoError(t, err)
	require.NotNil(t, updated[0].Confirmed)
	assert.True(t, *updated[0].Confirmed)
	assert.Nil(t, updated[1].Confirmed)

	_, err = setConfirmed(matches, "missing", true)
	assert.ErrorIs(t, err, ErrMatchNotFound)
}
