package runindex

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestInsert_ExecutesExpectedStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS runs").WillReturnResult(sqlmock.NewResult(0, 0))
	idx, err := New(db)
	require.NoError(t, err)

	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO runs").
		WithArgs("run-1", "promise.x", "green", 0.9, now.Format(time.RFC3339), "/runs/run-1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = idx.Insert(context.Background(), Record{
		RunID: "run-1", PromiseID: "promise.x", Verdict: "green", Credence: 0.9,
		TimestampUTC: now, RunDir: "/runs/run-1",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_ScansRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS runs").WillReturnResult(sqlmock.NewResult(0, 0))
	idx, err := New(db)
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"run_id", "promise_id", "verdict", "credence", "timestamp_utc", "run_dir"}).
		AddRow("run-1", "promise.x", "green", 0.9, "2026-07-31T00:00:00Z", "/runs/run-1")
	mock.ExpectQuery("SELECT run_id, promise_id, verdict, credence, timestamp_utc, run_dir FROM runs WHERE run_id").
		WithArgs("run-1").
		WillReturnRows(rows)

	rec, err := idx.Get(context.Background(), "run-1")
	require.NoError(t, err)
	require.Equal(t, "promise.x", rec.PromiseID)
	require.Equal(t, 0.9, rec.Credence)
}

func TestGet_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS runs").WillReturnResult(sqlmock.NewResult(0, 0))
	idx, err := New(db)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT run_id, promise_id, verdict, credence, timestamp_utc, run_dir FROM runs WHERE run_id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err = idx.Get(context.Background(), "missing")
	require.Error(t, err)
}

func TestListByPromise_ReturnsRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS runs").WillReturnResult(sqlmock.NewResult(0, 0))
	idx, err := New(db)
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"run_id", "promise_id", "verdict", "credence", "timestamp_utc", "run_dir"}).
		AddRow("run-2", "promise.x", "red", 0.2, "2026-07-31T01:00:00Z", "/runs/run-2").
		AddRow("run-1", "promise.x", "green", 0.9, "2026-07-31T00:00:00Z", "/runs/run-1")
	mock.ExpectQuery("SELECT run_id, promise_id, verdict, credence, timestamp_utc, run_dir FROM runs WHERE promise_id").
		WithArgs("promise.x", 10).
		WillReturnRows(rows)

	recs, err := idx.ListByPromise(context.Background(), "promise.x", 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, "run-2", recs[0].RunID)
}
