package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-center-api/internal/models"
)

func newLedgerMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func ledgerColumns() []string {
	return []string{"year", "month", "generated_at", "generated_by", "count", "is_complete", "in_progress", "run_token"}
}

func TestGenerationStatusRepositoryFind(t *testing.T) {
	db, mock, cleanup := newLedgerMock(t)
	defer cleanup()
	repo := NewGenerationStatusRepository(db)

	mock.ExpectQuery("SELECT year, month, generated_at").
		WithArgs(2025, 3).
		WillReturnRows(sqlmock.NewRows(ledgerColumns()).
			AddRow(2025, 3, time.Now(), "system", 12, true, false, nil))

	status, err := repo.Find(context.Background(), 3, 2025)
	require.NoError(t, err)
	assert.Equal(t, 2025, status.Year)
	assert.Equal(t, 3, status.Month)
	assert.Equal(t, 12, status.Count)
	assert.True(t, status.IsComplete)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerationStatusRepositoryClaimWins(t *testing.T) {
	db, mock, cleanup := newLedgerMock(t)
	defer cleanup()
	repo := NewGenerationStatusRepository(db)

	mock.ExpectQuery("INSERT INTO generation_status").
		WithArgs(2025, 3, sqlmock.AnyArg(), "system", "token-1", sqlmock.AnyArg(), false).
		WillReturnRows(sqlmock.NewRows([]string{"run_token"}).AddRow("token-1"))

	claimed, err := repo.Claim(context.Background(), 3, 2025, "token-1", "system", 10*time.Minute, false)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerationStatusRepositoryClaimLost(t *testing.T) {
	db, mock, cleanup := newLedgerMock(t)
	defer cleanup()
	repo := NewGenerationStatusRepository(db)

	// Conditional upsert touches no row when another run holds the period.
	mock.ExpectQuery("INSERT INTO generation_status").
		WithArgs(2025, 3, sqlmock.AnyArg(), "system", "token-2", sqlmock.AnyArg(), false).
		WillReturnRows(sqlmock.NewRows([]string{"run_token"}))

	claimed, err := repo.Claim(context.Background(), 3, 2025, "token-2", "system", 10*time.Minute, false)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerationStatusRepositoryComplete(t *testing.T) {
	db, mock, cleanup := newLedgerMock(t)
	defer cleanup()
	repo := NewGenerationStatusRepository(db)

	mock.ExpectExec("UPDATE generation_status").
		WithArgs(2025, 3, "token-1", 9, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Complete(context.Background(), 3, 2025, "token-1", 9)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerationStatusRepositoryCompleteClaimLost(t *testing.T) {
	db, mock, cleanup := newLedgerMock(t)
	defer cleanup()
	repo := NewGenerationStatusRepository(db)

	mock.ExpectExec("UPDATE generation_status").
		WithArgs(2025, 3, "stale-token", 9, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Complete(context.Background(), 3, 2025, "stale-token", 9)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "claim lost")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerationStatusRepositoryListPeriods(t *testing.T) {
	db, mock, cleanup := newLedgerMock(t)
	defer cleanup()
	repo := NewGenerationStatusRepository(db)

	mock.ExpectQuery("SELECT year, month, generated_at").
		WithArgs(2025, 1, 2024, 12).
		WillReturnRows(sqlmock.NewRows(ledgerColumns()).
			AddRow(2025, 1, time.Now(), "system", 4, true, false, nil))

	statuses, err := repo.ListPeriods(context.Background(), []models.BillingPeriod{
		{Year: 2025, Month: 1},
		{Year: 2024, Month: 12},
	})
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, 1, statuses[0].Month)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerationStatusRepositoryListPeriodsEmpty(t *testing.T) {
	db, _, cleanup := newLedgerMock(t)
	defer cleanup()
	repo := NewGenerationStatusRepository(db)

	statuses, err := repo.ListPeriods(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, statuses)
}
