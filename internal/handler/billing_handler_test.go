package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-center-api/internal/models"
	"github.com/noah-isme/tutor-center-api/internal/service"
)

type billingLedgerMock struct {
	status  *models.GenerationStatus
	claimOK bool
}

func (m *billingLedgerMock) Find(ctx context.Context, month, year int) (*models.GenerationStatus, error) {
	if m.status == nil {
		return nil, sql.ErrNoRows
	}
	return m.status, nil
}

func (m *billingLedgerMock) Claim(ctx context.Context, month, year int, token, actor string, lease time.Duration, force bool) (bool, error) {
	return m.claimOK, nil
}

func (m *billingLedgerMock) Complete(ctx context.Context, month, year int, token string, count int) error {
	return nil
}

func (m *billingLedgerMock) MarkFailed(ctx context.Context, month, year int, token string) error {
	return nil
}

func (m *billingLedgerMock) ListPeriods(ctx context.Context, periods []models.BillingPeriod) ([]models.GenerationStatus, error) {
	return nil, nil
}

type billingEnrollmentsMock struct {
	enrollments []models.Enrollment
}

func (m *billingEnrollmentsMock) ListActive(ctx context.Context) ([]models.Enrollment, error) {
	return m.enrollments, nil
}

type billingClassesMock struct{}

func (m *billingClassesMock) FindByID(ctx context.Context, id string) (*models.Class, error) {
	return &models.Class{ID: id, Name: "Algebra", MonthlyFee: decimal.NewFromInt(300), Active: true}, nil
}

type billingStudentsMock struct{}

func (m *billingStudentsMock) FindByID(ctx context.Context, id string) (*models.Student, error) {
	return &models.Student{ID: id, FullName: "Ana", Email: "ana@example.com", Active: true}, nil
}

type billingPaymentsMock struct {
	inserted []models.Payment
}

func (m *billingPaymentsMock) Exists(ctx context.Context, studentID, classID string, year, month int) (bool, error) {
	return false, nil
}

func (m *billingPaymentsMock) InsertBatch(ctx context.Context, payments []models.Payment) (int, error) {
	m.inserted = append(m.inserted, payments...)
	return len(payments), nil
}

type regenerateMock struct {
	month, year int
	force       bool
	result      *models.GenerationResult
	err         error
}

func (m *regenerateMock) Regenerate(ctx context.Context, month, year int, force bool) (*models.GenerationResult, error) {
	m.month, m.year, m.force = month, year, force
	return m.result, m.err
}

func newBillingTestHandler(ledger *billingLedgerMock, generator *regenerateMock) *BillingHandler {
	gen := service.NewPaymentGenerationService(
		ledger,
		&billingEnrollmentsMock{enrollments: []models.Enrollment{
			{ID: "e1", StudentID: "s1", ClassID: "c1", Status: models.EnrollmentStatusActive},
		}},
		&billingClassesMock{},
		&billingStudentsMock{},
		&billingPaymentsMock{},
		nil, nil, service.GenerationConfig{DueDay: 5},
	)
	recovery := service.NewRecoveryService(ledger, generator, nil, nil, nil, nil, 3, 0)
	return NewBillingHandler(gen, recovery)
}

func postJSON(c *gin.Context, path string, payload interface{}) {
	body, _ := json.Marshal(payload)
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
}

func TestBillingHandlerGenerate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newBillingTestHandler(&billingLedgerMock{claimOK: true}, &regenerateMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	postJSON(c, "/billing/generate", GeneratePaymentsRequest{Year: 2025, Month: 4})

	handler.Generate(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.GenerationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, 2025, envelope.Data.Year)
	assert.Equal(t, 4, envelope.Data.Month)
	assert.Equal(t, 1, envelope.Data.NewCount)
	assert.False(t, envelope.Data.AlreadyComplete)
}

func TestBillingHandlerGenerateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newBillingTestHandler(&billingLedgerMock{claimOK: true}, &regenerateMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/billing/generate", bytes.NewReader([]byte(`not json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Generate(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBillingHandlerGenerateConflictWhenRunActive(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newBillingTestHandler(&billingLedgerMock{claimOK: false}, &regenerateMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	postJSON(c, "/billing/generate", GeneratePaymentsRequest{Year: 2025, Month: 4})

	handler.Generate(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestBillingHandlerRecover(t *testing.T) {
	gin.SetMode(gin.TestMode)
	generator := &regenerateMock{result: &models.GenerationResult{Year: 2025, Month: 2, NewCount: 3}}
	handler := newBillingTestHandler(&billingLedgerMock{claimOK: true}, generator)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	postJSON(c, "/billing/recovery", RecoveryRequest{Year: 2025, Month: 2, Force: true})

	handler.Recover(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, generator.month)
	assert.Equal(t, 2025, generator.year)
	assert.True(t, generator.force)

	var envelope struct {
		Data models.GenerationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, 3, envelope.Data.NewCount)
}

func TestBillingHandlerStatusMissingParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newBillingTestHandler(&billingLedgerMock{claimOK: true}, &regenerateMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/billing/status", nil)
	c.Request = req

	handler.Status(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
