package migrations

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "sqlmock"), mock
}

func TestListMigrations_SortsByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"V10__late.sql":    {Data: []byte("SELECT 10")},
		"V2__second.sql":   {Data: []byte("SELECT 2")},
		"V1__first.sql":    {Data: []byte("SELECT 1")},
		"README.md":        {Data: []byte("ignored")},
		"nested/V3__x.sql": {Data: []byte("ignored")},
	}
	migs, err := listMigrations(fsys)
	require.NoError(t, err)

	names := make([]string, 0, len(migs))
	for _, m := range migs {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"V1__first.sql", "V2__second.sql", "V10__late.sql"}, names)
	assert.Equal(t, "10", migs[2].Version)
}

func TestListMigrations_RejectsBadName(t *testing.T) {
	_, err := listMigrations(fstest.MapFS{"schema.sql": {Data: []byte("SELECT 1")}})
	assert.Error(t, err)
}

func TestParseVersion(t *testing.T) {
	assert.Equal(t, "1", parseVersion("V1__schema.sql"))
	assert.Equal(t, "", parseVersion("V1schema.sql"))
	assert.Equal(t, "", parseVersion("schema.sql"))
}

func TestApplyFS_SkipsAppliedAndRecordsNew(t *testing.T) {
	db, mock := newMockDB(t)
	fsys := fstest.MapFS{
		"V1__schema.sql": {Data: []byte("CREATE TABLE a (id int)")},
		"V2__seed.sql":   {Data: []byte("INSERT INTO a VALUES (1)")},
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("1"))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO a VALUES").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs("2", "V2__seed.sql").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, ApplyFS(context.Background(), db, fsys))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyFS_RollsBackOnFailure(t *testing.T) {
	db, mock := newMockDB(t)
	fsys := fstest.MapFS{"V1__schema.sql": {Data: []byte("CREATE TABLE broken")}}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE broken").WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	err := ApplyFS(context.Background(), db, fsys)
	assert.ErrorContains(t, err, "V1__schema.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmbeddedMigrationsAreListed(t *testing.T) {
	migs, err := listMigrations(mustSub(t))
	require.NoError(t, err)
	require.Len(t, migs, 2)
	assert.Equal(t, "V1__schema.sql", migs[0].Name)
	assert.Equal(t, "V2__catalog_seed.sql", migs[1].Name)
}

func mustSub(t *testing.T) fs.FS {
	t.Helper()
	sub, err := fs.Sub(embedded, "sql")
	require.NoError(t, err)
	return sub
}
