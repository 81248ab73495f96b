package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-center-api/internal/models"
	appErrors "github.com/noah-isme/tutor-center-api/pkg/errors"
)

type generationLedger interface {
	Find(ctx context.Context, month, year int) (*models.GenerationStatus, error)
	Claim(ctx context.Context, month, year int, token, actor string, lease time.Duration, force bool) (bool, error)
	Complete(ctx context.Context, month, year int, token string, count int) error
	MarkFailed(ctx context.Context, month, year int, token string) error
}

type activeEnrollmentLister interface {
	ListActive(ctx context.Context) ([]models.Enrollment, error)
}

type billingClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type billingStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type paymentStore interface {
	Exists(ctx context.Context, studentID, classID string, year, month int) (bool, error)
	InsertBatch(ctx context.Context, payments []models.Payment) (int, error)
}

// GenerationConfig tunes one generator instance.
type GenerationConfig struct {
	DueDay           int
	GeneratedBy      string
	RunLease         time.Duration
	ProrationEnabled bool
}

// PaymentGenerationService derives the month's payment records from active
// enrollments. Idempotency rests on two independent layers: the period-level
// ledger short-circuits runs for completed periods, and the per-record
// existence check plus the unique payment constraint tolerate partial reruns.
type PaymentGenerationService struct {
	ledger      generationLedger
	enrollments activeEnrollmentLister
	classes     billingClassReader
	students    billingStudentReader
	payments    paymentStore
	metrics     *MetricsService
	logger      *zap.Logger
	cfg         GenerationConfig
}

// NewPaymentGenerationService constructs the generator.
func NewPaymentGenerationService(
	ledger generationLedger,
	enrollments activeEnrollmentLister,
	classes billingClassReader,
	students billingStudentReader,
	payments paymentStore,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg GenerationConfig,
) *PaymentGenerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DueDay < 1 || cfg.DueDay > 28 {
		cfg.DueDay = 5
	}
	if cfg.GeneratedBy == "" {
		cfg.GeneratedBy = "system"
	}
	if cfg.RunLease <= 0 {
		cfg.RunLease = 10 * time.Minute
	}
	return &PaymentGenerationService{
		ledger:      ledger,
		enrollments: enrollments,
		classes:     classes,
		students:    students,
		payments:    payments,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
	}
}

// Generate runs one generation pass for the billing period. Safe to call
// repeatedly: a completed period returns immediately with zero new records.
func (s *PaymentGenerationService) Generate(ctx context.Context, month, year int) (*models.GenerationResult, error) {
	return s.run(ctx, month, year, false)
}

// Regenerate re-enters the generator for a period. With force the completed
// short-circuit is bypassed; the per-record existence layer still guarantees
// no duplicates, so a forced run only fills gaps.
func (s *PaymentGenerationService) Regenerate(ctx context.Context, month, year int, force bool) (*models.GenerationResult, error) {
	return s.run(ctx, month, year, force)
}

// Status returns the ledger entry for one billing period.
func (s *PaymentGenerationService) Status(ctx context.Context, month, year int) (*models.GenerationStatus, error) {
	if month < 1 || month > 12 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "month must be between 1 and 12")
	}
	status, err := s.ledger.Find(ctx, month, year)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no generation recorded for period")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read generation status")
	}
	return status, nil
}

func (s *PaymentGenerationService) run(ctx context.Context, month, year int, force bool) (*models.GenerationResult, error) {
	if month < 1 || month > 12 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "month must be between 1 and 12")
	}
	if year < 2000 || year > 2100 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "year out of range")
	}

	start := time.Now()
	log := s.logger.With(zap.Int("year", year), zap.Int("month", month))

	status, err := s.ledger.Find(ctx, month, year)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read generation status")
	}
	if status != nil && status.IsComplete && !force {
		log.Debug("generation already complete, skipping")
		s.observeRun("skipped", 0, status.Count, time.Since(start))
		return &models.GenerationResult{Year: year, Month: month, SkipCount: status.Count, AlreadyComplete: true}, nil
	}

	token := uuid.NewString()
	claimed, err := s.ledger.Claim(ctx, month, year, token, s.cfg.GeneratedBy, s.cfg.RunLease, force)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to claim generation run")
	}
	if !claimed {
		log.Info("generation claim lost, another run is active")
		return nil, appErrors.Clone(appErrors.ErrGenerationRunning, "")
	}

	result, err := s.scanAndInsert(ctx, month, year, token, log)
	if err != nil {
		s.releaseClaim(ctx, month, year, token, log)
		s.observeRun("failure", 0, 0, time.Since(start))
		return nil, err
	}

	if err := s.ledger.Complete(ctx, month, year, token, result.NewCount); err != nil {
		s.releaseClaim(ctx, month, year, token, log)
		s.observeRun("failure", 0, 0, time.Since(start))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize generation run")
	}

	log.Info("generation run complete",
		zap.Int("new_count", result.NewCount),
		zap.Int("skip_count", result.SkipCount),
	)
	s.observeRun("success", result.NewCount, result.SkipCount, time.Since(start))
	return result, nil
}

func (s *PaymentGenerationService) scanAndInsert(ctx context.Context, month, year int, token string, log *zap.Logger) (*models.GenerationResult, error) {
	enrollments, err := s.enrollments.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list active enrollments")
	}

	dueDate := time.Date(year, time.Month(month), s.cfg.DueDay, 0, 0, 0, 0, time.UTC)
	batch := make([]models.Payment, 0, len(enrollments))
	skipped := 0

	for _, enrollment := range enrollments {
		exists, err := s.payments.Exists(ctx, enrollment.StudentID, enrollment.ClassID, year, month)
		if err != nil {
			log.Warn("payment existence check failed, skipping enrollment",
				zap.String("enrollment_id", enrollment.ID), zap.Error(err))
			continue
		}
		if exists {
			skipped++
			continue
		}

		class, err := s.classes.FindByID(ctx, enrollment.ClassID)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				log.Warn("class lookup failed, skipping enrollment",
					zap.String("enrollment_id", enrollment.ID), zap.Error(err))
			}
			continue
		}
		student, err := s.students.FindByID(ctx, enrollment.StudentID)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				log.Warn("student lookup failed, skipping enrollment",
					zap.String("enrollment_id", enrollment.ID), zap.Error(err))
			}
			continue
		}

		baseFee := class.MonthlyFee
		if s.cfg.ProrationEnabled {
			baseFee = ComputeProratedAmount(baseFee, enrollment.EnrolledAt, month, year)
		}
		amount := ComputeFee(baseFee, enrollment.FeeAdjustment)

		batch = append(batch, models.Payment{
			StudentID:     student.ID,
			StudentName:   student.FullName,
			StudentEmail:  student.Email,
			ClassID:       class.ID,
			ClassName:     class.Name,
			Year:          year,
			Month:         month,
			Amount:        amount,
			DueDate:       dueDate,
			Status:        PaymentStatusForAmount(amount),
			PaymentMethod: student.PaymentMethod,
			InvoiceSent:   false,
			RemindersSent: 0,
		})
	}

	inserted, insertErr := s.payments.InsertBatch(ctx, batch)
	if insertErr != nil {
		if inserted == 0 && len(batch) > 0 {
			return nil, appErrors.Wrap(insertErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "bulk insert of payments failed")
		}
		// Unordered semantics: surviving rows are kept, losers are logged.
		log.Warn("partial payment insert failures", zap.Error(insertErr))
	}
	skipped += len(batch) - inserted

	return &models.GenerationResult{Year: year, Month: month, NewCount: inserted, SkipCount: skipped}, nil
}

// releaseClaim is the best-effort error path: the ledger keeps
// is_complete=false so the recovery scanner finds the period later. A failure
// here is swallowed because the originating error already dominates.
func (s *PaymentGenerationService) releaseClaim(ctx context.Context, month, year int, token string, log *zap.Logger) {
	if err := s.ledger.MarkFailed(ctx, month, year, token); err != nil {
		log.Warn("failed to record failed generation run", zap.Error(err))
	}
}

func (s *PaymentGenerationService) observeRun(result string, newCount, skipCount int, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveGenerationRun(result, newCount, skipCount, elapsed)
}
