package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-center-api/internal/models"
)

func newPaymentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func samplePayment() models.Payment {
	return models.Payment{
		StudentID:     "s1",
		StudentName:   "Ana",
		StudentEmail:  "ana@example.com",
		ClassID:       "c1",
		ClassName:     "Algebra",
		Year:          2025,
		Month:         3,
		Amount:        decimal.NewFromInt(200),
		DueDate:       time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
		Status:        models.PaymentStatusPending,
		PaymentMethod: models.PaymentMethodCash,
	}
}

func TestPaymentRepositoryExists(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery("SELECT 1 FROM payments").
		WithArgs("s1", "c1", 2025, 3).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.Exists(context.Background(), "s1", "c1", 2025, 3)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryExistsNoRow(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery("SELECT 1 FROM payments").
		WithArgs("s1", "c1", 2025, 3).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err := repo.Exists(context.Background(), "s1", "c1", 2025, 3)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryInsertBatch(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, err := repo.InsertBatch(context.Background(), []models.Payment{samplePayment(), samplePayment()})
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryInsertBatchConflictIsNoOp(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	// ON CONFLICT DO NOTHING reports zero rows affected.
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, err := repo.InsertBatch(context.Background(), []models.Payment{samplePayment(), samplePayment()})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryInsertBatchContinuesPastRowError(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec("INSERT INTO payments").WillReturnError(errors.New("constraint violation"))
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, err := repo.InsertBatch(context.Background(), []models.Payment{samplePayment(), samplePayment()})
	require.Error(t, err)
	assert.Equal(t, 1, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	paidAt := time.Now().UTC()
	mock.ExpectExec("UPDATE payments SET status").
		WithArgs("p1", models.PaymentStatusPaid, models.PaymentMethodCard, paidAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "p1", models.PaymentStatusPaid, models.PaymentMethodCard, &paidAt)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryIncrementReminders(t *testing.T) {
	db, mock, cleanup := newPaymentMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery("UPDATE payments SET reminders_sent").
		WithArgs("p1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"reminders_sent"}).AddRow(3))

	count, err := repo.IncrementReminders(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
