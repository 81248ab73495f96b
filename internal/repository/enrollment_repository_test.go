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

func newEnrollmentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func enrollmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "student_id", "student_name", "class_id", "class_name",
		"enrolled_at", "status", "ended_at", "fee_adjustment", "notes", "created_at", "updated_at"})
}

func TestEnrollmentRepositoryListActive(t *testing.T) {
	db, mock, cleanup := newEnrollmentMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := enrollmentRows().
		AddRow("e1", "s1", "Ana", "c1", "Algebra", time.Now(), "active", nil, nil, "", time.Now(), time.Now()).
		AddRow("e2", "s2", "Ben", "c1", "Algebra", time.Now(), "active", nil,
			[]byte(`{"kind":"discount","value":"25"}`), "", time.Now(), time.Now())
	mock.ExpectQuery("SELECT (.+) FROM enrollments WHERE status").
		WithArgs(models.EnrollmentStatusActive).
		WillReturnRows(rows)

	enrollments, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, enrollments, 2)
	assert.Nil(t, enrollments[0].FeeAdjustment)
	require.NotNil(t, enrollments[1].FeeAdjustment)
	assert.Equal(t, models.FeeAdjustmentDiscount, enrollments[1].FeeAdjustment.Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExists(t *testing.T) {
	db, mock, cleanup := newEnrollmentMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery("SELECT 1 FROM enrollments").
		WithArgs("s1", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.Exists(context.Background(), "s1", "c1")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery("SELECT 1 FROM enrollments").
		WithArgs("s1", "c9").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err = repo.Exists(context.Background(), "s1", "c9")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newEnrollmentMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO enrollments").WillReturnResult(sqlmock.NewResult(1, 1))

	enrollment := &models.Enrollment{StudentID: "s1", StudentName: "Ana", ClassID: "c1", ClassName: "Algebra"}
	err := repo.Create(context.Background(), enrollment)
	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newEnrollmentMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	endedAt := time.Now().UTC()
	mock.ExpectExec("UPDATE enrollments SET status").
		WithArgs("e1", models.EnrollmentStatusWithdrawn, endedAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "e1", models.EnrollmentStatusWithdrawn, &endedAt)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
