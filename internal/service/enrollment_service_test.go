package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-center-api/internal/models"
	appErrors "github.com/noah-isme/tutor-center-api/pkg/errors"
)

type enrollmentRepoStub struct {
	items    map[string]models.Enrollment
	existing map[string]bool
	created  []models.Enrollment
}

func (s *enrollmentRepoStub) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	result := make([]models.Enrollment, 0, len(s.items))
	for _, item := range s.items {
		result = append(result, item)
	}
	return result, len(result), nil
}

func (s *enrollmentRepoStub) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if item, ok := s.items[id]; ok {
		return &item, nil
	}
	return nil, sql.ErrNoRows
}

func (s *enrollmentRepoStub) Exists(ctx context.Context, studentID, classID string) (bool, error) {
	return s.existing[studentID+"/"+classID], nil
}

func (s *enrollmentRepoStub) Create(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.ID = "new"
	s.created = append(s.created, *enrollment)
	if s.items == nil {
		s.items = make(map[string]models.Enrollment)
	}
	s.items[enrollment.ID] = *enrollment
	return nil
}

func (s *enrollmentRepoStub) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, endedAt *time.Time) error {
	item := s.items[id]
	item.Status = status
	item.EndedAt = endedAt
	s.items[id] = item
	return nil
}

func (s *enrollmentRepoStub) UpdateFeeAdjustment(ctx context.Context, id string, adj *models.FeeAdjustment) error {
	item := s.items[id]
	item.FeeAdjustment = adj
	s.items[id] = item
	return nil
}

func enrollmentServiceFixture() (*EnrollmentService, *enrollmentRepoStub) {
	repo := &enrollmentRepoStub{existing: map[string]bool{}}
	students := &studentReaderStub{students: map[string]models.Student{
		"s1": {ID: "s1", FullName: "Ana", Active: true},
		"s2": {ID: "s2", FullName: "Ben", Active: false},
	}}
	classes := &classReaderStub{classes: map[string]models.Class{
		"c1": {ID: "c1", Name: "Algebra", Active: true},
		"c2": {ID: "c2", Name: "Retired", Active: false},
	}}
	return NewEnrollmentService(repo, students, classes, nil, nil), repo
}

func TestEnrollmentCreateSnapshotsNames(t *testing.T) {
	svc, repo := enrollmentServiceFixture()

	enrollment, err := svc.Create(context.Background(), CreateEnrollmentRequest{StudentID: "s1", ClassID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "Ana", enrollment.StudentName)
	assert.Equal(t, "Algebra", enrollment.ClassName)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	require.Len(t, repo.created, 1)
}

func TestEnrollmentCreateRejectsDuplicate(t *testing.T) {
	svc, repo := enrollmentServiceFixture()
	repo.existing["s1/c1"] = true

	_, err := svc.Create(context.Background(), CreateEnrollmentRequest{StudentID: "s1", ClassID: "c1"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestEnrollmentCreateRejectsInactiveStudent(t *testing.T) {
	svc, _ := enrollmentServiceFixture()
	_, err := svc.Create(context.Background(), CreateEnrollmentRequest{StudentID: "s2", ClassID: "c1"})
	require.Error(t, err)
}

func TestEnrollmentCreateRejectsInactiveClass(t *testing.T) {
	svc, _ := enrollmentServiceFixture()
	_, err := svc.Create(context.Background(), CreateEnrollmentRequest{StudentID: "s1", ClassID: "c2"})
	require.Error(t, err)
}

func TestEnrollmentCreateValidatesFeeAdjustment(t *testing.T) {
	svc, _ := enrollmentServiceFixture()

	_, err := svc.Create(context.Background(), CreateEnrollmentRequest{
		StudentID:     "s1",
		ClassID:       "c1",
		FeeAdjustment: &models.FeeAdjustment{Kind: models.FeeAdjustmentDiscount, Amount: decimal.NewFromInt(150)},
	})
	require.Error(t, err)

	_, err = svc.Create(context.Background(), CreateEnrollmentRequest{
		StudentID:     "s1",
		ClassID:       "c1",
		FeeAdjustment: &models.FeeAdjustment{Kind: "mystery"},
	})
	require.Error(t, err)
}

func TestEnrollmentUpdateStatusStampsEndedAt(t *testing.T) {
	svc, repo := enrollmentServiceFixture()
	repo.items = map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", ClassID: "c1", Status: models.EnrollmentStatusActive},
	}

	enrollment, err := svc.UpdateStatus(context.Background(), "e1", UpdateEnrollmentStatusRequest{Status: models.EnrollmentStatusWithdrawn})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusWithdrawn, enrollment.Status)
	assert.NotNil(t, enrollment.EndedAt)
}

func TestEnrollmentUpdateFeeAdjustmentClears(t *testing.T) {
	svc, repo := enrollmentServiceFixture()
	repo.items = map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", ClassID: "c1", Status: models.EnrollmentStatusActive,
			FeeAdjustment: &models.FeeAdjustment{Kind: models.FeeAdjustmentWaiver}},
	}

	enrollment, err := svc.UpdateFeeAdjustment(context.Background(), "e1", UpdateFeeAdjustmentRequest{})
	require.NoError(t, err)
	assert.Nil(t, enrollment.FeeAdjustment)
}
