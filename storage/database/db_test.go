package database

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openstud/openstud/core"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func testConfig() *core.Config {
	conf := core.NewTestConfig()
	conf.Database = core.DatabaseConfig{
		Engine:   "postgres",
		Host:     "localhost",
		Port:     5432,
		Name:     "openstud_test",
		User:     "openstud",
		Password: "s3cr'et",
	}
	return conf
}

func TestCreateAppUser(t *testing.T) {
	conf := testConfig()
	ctx := context.Background()

	t.Run("exists", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT true FROM pg_roles WHERE rolname = $1")).
			WithArgs("openstud").
			WillReturnRows(sqlmock.NewRows([]string{"bool"}).AddRow(true))

		assert.NoError(t, createAppUser(ctx, db, conf))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery("SELECT true FROM pg_roles").
			WithArgs("openstud").
			WillReturnRows(sqlmock.NewRows([]string{"bool"}))
		mock.ExpectExec(regexp.QuoteMeta(`CREATE USER "openstud" CREATEDB ENCRYPTED PASSWORD 's3cr''et'`)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.NoError(t, createAppUser(ctx, db, conf))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCreateDB(t *testing.T) {
	conf := testConfig()
	ctx := context.Background()
	db, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT true FROM pg_database WHERE datname = $1")).
		WithArgs("openstud_test").
		WillReturnRows(sqlmock.NewRows([]string{"bool"}))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE DATABASE "openstud_test"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, createDB(ctx, db, conf))

	mock.ExpectQuery("SELECT true FROM pg_database").
		WillReturnError(errors.New("connection reset"))

	err := createDB(ctx, db, conf)
	assert.EqualError(t, err, "checking DB: connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPing(t *testing.T) {
	pingMaxElapsedTime = 2 * time.Second
	defer func() { pingMaxElapsedTime = 30 * time.Second }()

	db, mock := newMock(t)
	mock.ExpectPing().WillReturnError(errors.New("starting up"))
	mock.ExpectPing().WillReturnError(errors.New("starting up"))
	mock.ExpectPing()

	assert.NoError(t, ping(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mock.ExpectPing().WillReturnError(errors.New("down"))
	assert.Error(t, ping(ctx, db))
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir(migrationsDir)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{
		"00001_create_users.sql",
		"00002_create_workspaces.sql",
		"00003_create_courses.sql",
	}, names)
}
