package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oraklabs/oraklscan/internal/domain"
	"github.com/oraklabs/oraklscan/internal/persistence"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "postgres"), mock
}

func TestSaveBarsUpserts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBarsRepo(db, 5*time.Second)

	start := time.Date(2025, 10, 22, 12, 0, 0, 0, time.UTC)
	bars := []domain.Bar{
		{Symbol: "SPY", Timeframe: domain.Timeframe60m, Start: start, End: start.Add(time.Hour),
			Open: 450, High: 455, Low: 449, Close: 454, Volume: 1000},
		{Symbol: "SPY", Timeframe: domain.Timeframe60m, Start: start.Add(time.Hour), End: start.Add(2 * time.Hour),
			Open: 454, High: 456, Low: 448, Close: 448, Volume: 1200},
	}

	mock.ExpectBegin()
	for range bars {
		mock.ExpectExec("INSERT INTO bars").WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, repo.SaveBars(context.Background(), bars))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertAlertDuplicateIsDedupHit(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPatternsRepo(db, 5*time.Second)

	alert := persistence.Alert{
		Symbol:      "AAPL",
		PatternType: "3-2-2",
		Timeframe:   "60m",
		AlertTS:     time.Now().UTC(),
		DedupKey:    "AAPL|3-2-2|60m|2025-10-22",
	}

	mock.ExpectExec("INSERT INTO alerts").WillReturnResult(sqlmock.NewResult(1, 1))
	fresh, err := repo.InsertAlert(context.Background(), alert)
	require.NoError(t, err)
	assert.True(t, fresh)

	// Second insert hits the unique dedup_key constraint: dedup hit, no
	// error.
	mock.ExpectExec("INSERT INTO alerts").WillReturnError(&pq.Error{Code: pqUniqueViolation})
	fresh, err = repo.InsertAlert(context.Background(), alert)
	require.NoError(t, err)
	assert.False(t, fresh)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkAlertParsesKey(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPatternsRepo(db, 5*time.Second)

	mock.ExpectExec("INSERT INTO alerts").
		WithArgs(sqlmock.AnyArg(), int64(0), "AAPL", "3-2-2", "60m",
			sqlmock.AnyArg(), sqlmock.AnyArg(), "AAPL|3-2-2|60m|2025-10-22").
		WillReturnResult(sqlmock.NewResult(1, 1))

	fresh, err := repo.MarkAlert(context.Background(), "AAPL|3-2-2|60m|2025-10-22")
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePattern(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPatternsRepo(db, 5*time.Second)

	rec := domain.PatternRecord{
		Symbol:             "AAPL",
		Pattern:            domain.Pattern322,
		Timeframe:          domain.Timeframe60m,
		CompletionBarStart: time.Date(2025, 10, 22, 14, 0, 0, 0, time.UTC),
		Direction:          domain.Call,
		Entry:              450, Stop: 449, Target: 456,
		Confidence: 0.72,
	}

	mock.ExpectQuery("INSERT INTO patterns").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, err := repo.SavePattern(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRunLifecycle(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobsRepo(db, 5*time.Second)

	mock.ExpectExec("INSERT INTO job_runs").WillReturnResult(sqlmock.NewResult(1, 1))
	run, err := repo.StartRun(context.Background(), "strat_322")
	require.NoError(t, err)
	assert.Equal(t, "running", run.Status)
	assert.NotEmpty(t, run.ID)

	run.SymbolsScanned = 25
	run.PatternsFound = 1
	run.AlertsSent = 1
	mock.ExpectExec("UPDATE job_runs").WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.FinishRun(context.Background(), run))

	assert.NoError(t, mock.ExpectationsWereMet())
}
