package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/withObsrvr/csv-pipeline-workflow/ingest"
)

func newMockDuckDB(t *testing.T, drop bool) (*SaveToDuckDB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	config := parseDuckDBConfig(map[string]interface{}{
		"table":         "customers",
		"drop_existing": drop,
	})
	return newSaveToDuckDB(db, config), mock
}

func expectDuckDBColumns(mock sqlmock.Sqlmock, names ...string) {
	rows := sqlmock.NewRows([]string{"column_name"})
	for _, name := range names {
		rows.AddRow(name)
	}
	mock.ExpectQuery("SELECT column_name FROM information_schema.columns").
		WithArgs("customers").
		WillReturnRows(rows)
}

func TestDuckDBEnsureContainerCreatesTable(t *testing.T) {
	adapter, mock := newMockDuckDB(t, false)

	expectDuckDBColumns(mock)
	mock.ExpectExec(regexp.QuoteMeta(
		`CREATE TABLE "customers" ("name" VARCHAR, "email" VARCHAR)`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, adapter.EnsureContainer(context.Background(), testSchema()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDuckDBEnsureContainerSchemaConflict(t *testing.T) {
	adapter, mock := newMockDuckDB(t, false)

	expectDuckDBColumns(mock, "name")

	err := adapter.EnsureContainer(context.Background(), testSchema())
	assert.ErrorIs(t, err, ErrSchemaConflict)
}

func TestDuckDBLoadBatchUsesOneMultiRowInsert(t *testing.T) {
	adapter, mock := newMockDuckDB(t, false)

	expectDuckDBColumns(mock)
	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, adapter.EnsureContainer(context.Background(), testSchema()))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(
		`INSERT INTO "customers" ("name", "email") VALUES (?, ?), (?, ?), (?, ?)`)).
		WithArgs("A", "a@x.com", "B", "b@y.org", "C", "c@z.info").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	batch := ingest.Batch{
		{"Name": "A", "Email": "a@x.com"},
		{"Name": "B", "Email": "b@y.org"},
		{"Name": "C", "Email": "c@z.info"},
	}
	n, err := adapter.LoadBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDuckDBLoadBatchRollsBackOnFailure(t *testing.T) {
	adapter, mock := newMockDuckDB(t, false)

	expectDuckDBColumns(mock)
	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, adapter.EnsureContainer(context.Background(), testSchema()))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO").WillReturnError(errors.New("conversion error"))
	mock.ExpectRollback()

	n, err := adapter.LoadBatch(context.Background(), ingest.Batch{{"Name": "A", "Email": "a@x.com"}})
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, ErrLoadFailure)
}

func TestDuckDBLoadBatchEmpty(t *testing.T) {
	adapter, mock := newMockDuckDB(t, false)

	expectDuckDBColumns(mock)
	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, adapter.EnsureContainer(context.Background(), testSchema()))

	n, err := adapter.LoadBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDuckDBRunAggregateQuery(t *testing.T) {
	adapter, mock := newMockDuckDB(t, false)

	schema := ingest.Schema{
		{Name: "Name", Type: ingest.TypeText, StoreIdentifier: "name"},
		{Name: "Website", Type: ingest.TypeText, StoreIdentifier: "website"},
	}
	expectDuckDBColumns(mock)
	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, adapter.EnsureContainer(context.Background(), schema))

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT COUNT(*) FROM "customers" WHERE "website" LIKE '%.info' OR "website" LIKE '%.info/%'`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	count, err := adapter.RunAggregateQuery(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), count)
}

func TestDuckDBRunAggregateQueryWithoutURLColumn(t *testing.T) {
	adapter, mock := newMockDuckDB(t, false)

	schema := ingest.Schema{{Name: "City", Type: ingest.TypeText, StoreIdentifier: "city"}}
	expectDuckDBColumns(mock)
	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, adapter.EnsureContainer(context.Background(), schema))

	_, err := adapter.RunAggregateQuery(context.Background())
	assert.ErrorIs(t, err, ErrQueryExecution)
}

func TestDuckDBCloseIdempotent(t *testing.T) {
	adapter, mock := newMockDuckDB(t, false)

	mock.ExpectClose()
	require.NoError(t, adapter.Close())
	require.NoError(t, adapter.Close())
}
