package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-center-api/internal/models"
	appErrors "github.com/noah-isme/tutor-center-api/pkg/errors"
	"github.com/noah-isme/tutor-center-api/pkg/jobs"
)

const maxRecoveryWindow = 24

type periodLedgerReader interface {
	ListPeriods(ctx context.Context, periods []models.BillingPeriod) ([]models.GenerationStatus, error)
}

type periodGenerator interface {
	Regenerate(ctx context.Context, month, year int, force bool) (*models.GenerationResult, error)
}

type recoveryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// RecoveryService inspects the generation ledger across a trailing window of
// billing periods and repairs missed or interrupted runs.
type RecoveryService struct {
	ledger        periodLedgerReader
	generator     periodGenerator
	cache         recoveryCache
	queue         jobEnqueuer
	logger        *zap.Logger
	clock         func() time.Time
	defaultWindow int
	cacheTTL      time.Duration
}

// NewRecoveryService constructs the scanner. The clock is injected so window
// rollover is testable; nil defaults to time.Now.
func NewRecoveryService(ledger periodLedgerReader, generator periodGenerator, cache recoveryCache, queue jobEnqueuer, logger *zap.Logger, clock func() time.Time, defaultWindow int, cacheTTL time.Duration) *RecoveryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = time.Now
	}
	if defaultWindow < 1 {
		defaultWindow = 3
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &RecoveryService{
		ledger:        ledger,
		generator:     generator,
		cache:         cache,
		queue:         queue,
		logger:        logger,
		clock:         clock,
		defaultWindow: defaultWindow,
		cacheTTL:      cacheTTL,
	}
}

// ScanRecentPeriods walks backward from the current period and reports, for
// each of the window's periods, whether generation ran and completed.
func (s *RecoveryService) ScanRecentPeriods(ctx context.Context, window int) ([]models.PeriodReport, error) {
	if window <= 0 {
		window = s.defaultWindow
	}
	if window > maxRecoveryWindow {
		window = maxRecoveryWindow
	}

	cacheKey := ""
	if window == s.defaultWindow && s.cache != nil {
		cacheKey = s.periodsCacheKey()
		var cached []models.PeriodReport
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	now := s.clock()
	period := models.BillingPeriod{Year: now.Year(), Month: int(now.Month())}
	periods := make([]models.BillingPeriod, 0, window)
	for i := 0; i < window; i++ {
		periods = append(periods, period)
		period = period.Previous()
	}

	statuses, err := s.ledger.ListPeriods(ctx, periods)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan generation periods")
	}
	byPeriod := make(map[models.BillingPeriod]models.GenerationStatus, len(statuses))
	for _, status := range statuses {
		byPeriod[models.BillingPeriod{Year: status.Year, Month: status.Month}] = status
	}

	reports := make([]models.PeriodReport, 0, len(periods))
	for _, p := range periods {
		report := models.PeriodReport{Year: p.Year, Month: p.Month}
		if status, ok := byPeriod[p]; ok {
			report.Generated = true
			report.Complete = status.IsComplete
			report.Count = status.Count
		}
		reports = append(reports, report)
	}

	if cacheKey != "" {
		if err := s.cache.Set(ctx, cacheKey, reports, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache period scan", zap.Error(err))
		}
	}
	return reports, nil
}

// TriggerRecovery re-invokes the payment generator for a specific period.
// With force a period already marked complete is regenerated; missing
// records only, duplicates stay impossible.
func (s *RecoveryService) TriggerRecovery(ctx context.Context, month, year int, force bool) (*models.GenerationResult, error) {
	result, err := s.generator.Regenerate(ctx, month, year, force)
	if err != nil {
		return nil, err
	}
	s.invalidateScan(ctx)
	return result, nil
}

// BackfillIncomplete scans the default window and enqueues a background
// generation job for every period that never ran or never completed.
// Returns how many periods were queued.
func (s *RecoveryService) BackfillIncomplete(ctx context.Context) (int, error) {
	if s.queue == nil {
		return 0, appErrors.Clone(appErrors.ErrPreconditionFailed, "background billing queue not configured")
	}
	reports, err := s.ScanRecentPeriods(ctx, s.defaultWindow)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, report := range reports {
		if report.Generated && report.Complete {
			continue
		}
		job := jobs.Job{
			ID:      uuid.NewString(),
			Type:    JobTypeGeneratePeriod,
			Payload: models.BillingPeriod{Year: report.Year, Month: report.Month},
		}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("failed to enqueue recovery job",
				zap.Int("year", report.Year), zap.Int("month", report.Month), zap.Error(err))
			continue
		}
		queued++
	}
	s.invalidateScan(ctx)
	return queued, nil
}

func (s *RecoveryService) invalidateScan(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.periodsCacheKey()); err != nil {
		s.logger.Warn("failed to invalidate period scan cache", zap.Error(err))
	}
}

func (s *RecoveryService) periodsCacheKey() string {
	return fmt.Sprintf("billing:periods:%d", s.defaultWindow)
}
