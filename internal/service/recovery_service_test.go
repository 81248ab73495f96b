package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-center-api/internal/models"
	"github.com/noah-isme/tutor-center-api/pkg/jobs"
)

type periodLedgerStub struct {
	statuses []models.GenerationStatus
	asked    []models.BillingPeriod
	err      error
}

func (l *periodLedgerStub) ListPeriods(ctx context.Context, periods []models.BillingPeriod) ([]models.GenerationStatus, error) {
	l.asked = periods
	return l.statuses, l.err
}

type regeneratorStub struct {
	calls  []models.BillingPeriod
	forced []bool
	result *models.GenerationResult
	err    error
}

func (g *regeneratorStub) Regenerate(ctx context.Context, month, year int, force bool) (*models.GenerationResult, error) {
	g.calls = append(g.calls, models.BillingPeriod{Year: year, Month: month})
	g.forced = append(g.forced, force)
	if g.err != nil {
		return nil, g.err
	}
	if g.result != nil {
		return g.result, nil
	}
	return &models.GenerationResult{Year: year, Month: month}, nil
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func fixedClock(year int, month time.Month) func() time.Time {
	return func() time.Time {
		return time.Date(year, month, 15, 12, 0, 0, 0, time.UTC)
	}
}

func TestScanRecentPeriodsRollsOverYearBoundary(t *testing.T) {
	ledger := &periodLedgerStub{}
	svc := NewRecoveryService(ledger, &regeneratorStub{}, nil, nil, nil, fixedClock(2025, time.January), 3, 0)

	reports, err := svc.ScanRecentPeriods(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, []models.BillingPeriod{
		{Year: 2025, Month: 1},
		{Year: 2024, Month: 12},
		{Year: 2024, Month: 11},
	}, ledger.asked)
	for _, report := range reports {
		assert.False(t, report.Generated)
	}
}

func TestScanRecentPeriodsMapsLedgerRows(t *testing.T) {
	ledger := &periodLedgerStub{statuses: []models.GenerationStatus{
		{Year: 2025, Month: 6, IsComplete: true, Count: 12},
		{Year: 2025, Month: 5, IsComplete: false, Count: 3},
	}}
	svc := NewRecoveryService(ledger, &regeneratorStub{}, nil, nil, nil, fixedClock(2025, time.June), 3, 0)

	reports, err := svc.ScanRecentPeriods(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, reports, 3)

	assert.True(t, reports[0].Generated)
	assert.True(t, reports[0].Complete)
	assert.Equal(t, 12, reports[0].Count)

	assert.True(t, reports[1].Generated)
	assert.False(t, reports[1].Complete)
	assert.Equal(t, 3, reports[1].Count)

	assert.False(t, reports[2].Generated)
}

func TestScanRecentPeriodsClampsWindow(t *testing.T) {
	ledger := &periodLedgerStub{}
	svc := NewRecoveryService(ledger, &regeneratorStub{}, nil, nil, nil, fixedClock(2025, time.June), 3, 0)

	_, err := svc.ScanRecentPeriods(context.Background(), 500)
	require.NoError(t, err)
	assert.Len(t, ledger.asked, maxRecoveryWindow)

	_, err = svc.ScanRecentPeriods(context.Background(), -1)
	require.NoError(t, err)
	assert.Len(t, ledger.asked, 3)
}

func TestTriggerRecoveryPassesForce(t *testing.T) {
	gen := &regeneratorStub{}
	svc := NewRecoveryService(&periodLedgerStub{}, gen, nil, nil, nil, fixedClock(2025, time.June), 3, 0)

	_, err := svc.TriggerRecovery(context.Background(), 4, 2025, true)
	require.NoError(t, err)
	require.Len(t, gen.calls, 1)
	assert.Equal(t, models.BillingPeriod{Year: 2025, Month: 4}, gen.calls[0])
	assert.True(t, gen.forced[0])
}

func TestBackfillIncompleteQueuesMissingPeriods(t *testing.T) {
	ledger := &periodLedgerStub{statuses: []models.GenerationStatus{
		{Year: 2025, Month: 6, IsComplete: true, Count: 10},
	}}
	queue := &queueStub{}
	svc := NewRecoveryService(ledger, &regeneratorStub{}, nil, queue, nil, fixedClock(2025, time.June), 3, 0)

	queued, err := svc.BackfillIncomplete(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, queued)
	require.Len(t, queue.jobs, 2)
	for _, job := range queue.jobs {
		assert.Equal(t, JobTypeGeneratePeriod, job.Type)
		_, ok := job.Payload.(models.BillingPeriod)
		assert.True(t, ok)
	}
}

func TestBackfillIncompleteRequiresQueue(t *testing.T) {
	svc := NewRecoveryService(&periodLedgerStub{}, &regeneratorStub{}, nil, nil, nil, fixedClock(2025, time.June), 3, 0)
	_, err := svc.BackfillIncomplete(context.Background())
	require.Error(t, err)
}
