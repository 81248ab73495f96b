package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-center-api/internal/models"
	appErrors "github.com/noah-isme/tutor-center-api/pkg/errors"
)

// JobTypeGeneratePeriod identifies background generation jobs.
const JobTypeGeneratePeriod = "generate_period"

type triggerGenerator interface {
	Generate(ctx context.Context, month, year int) (*models.GenerationResult, error)
}

// GenerationTrigger owns the scheduling state for automatic payment
// generation. All state lives on the struct and the clock is injected, so the
// trigger can be constructed, exercised, and reset freely in tests.
type GenerationTrigger struct {
	generator triggerGenerator
	logger    *zap.Logger
	clock     func() time.Time
	interval  time.Duration
	cronSpec  string

	cron *cron.Cron

	mu      sync.Mutex
	lastRun time.Time
	hasRun  bool
}

// NewGenerationTrigger constructs the trigger. A nil clock defaults to
// time.Now; interval gates how often CheckAndGenerate actually fires.
func NewGenerationTrigger(generator triggerGenerator, cronSpec string, interval time.Duration, clock func() time.Time, logger *zap.Logger) *GenerationTrigger {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cronSpec == "" {
		cronSpec = "0 * * * *"
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &GenerationTrigger{
		generator: generator,
		logger:    logger,
		clock:     clock,
		interval:  interval,
		cronSpec:  cronSpec,
	}
}

// Start schedules the periodic check.
func (t *GenerationTrigger) Start() error {
	t.cron = cron.New()
	if _, err := t.cron.AddFunc(t.cronSpec, func() {
		if _, err := t.CheckAndGenerate(context.Background()); err != nil {
			t.logger.Error("scheduled generation check failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}
	t.cron.Start()
	t.logger.Info("generation trigger started", zap.String("cron", t.cronSpec))
	return nil
}

// Stop halts the schedule and waits for a running check to finish.
func (t *GenerationTrigger) Stop() {
	if t.cron == nil {
		return
	}
	<-t.cron.Stop().Done()
	t.logger.Info("generation trigger stopped")
}

// CheckAndGenerate invokes the generator for the current billing period,
// unless a check already ran within the configured interval. Returns nil
// without error when the check was gated. Repeated calls for a completed
// period are cheap: the generator short-circuits on the ledger.
func (t *GenerationTrigger) CheckAndGenerate(ctx context.Context) (*models.GenerationResult, error) {
	now := t.clock()

	t.mu.Lock()
	if t.hasRun && now.Sub(t.lastRun) < t.interval {
		t.mu.Unlock()
		return nil, nil
	}
	t.lastRun = now
	t.hasRun = true
	t.mu.Unlock()

	result, err := t.generator.Generate(ctx, int(now.Month()), now.Year())
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) && appErr.Code == appErrors.ErrGenerationRunning.Code {
			t.logger.Info("generation already running elsewhere, skipping trigger")
			return nil, nil
		}
		return nil, err
	}
	if result.AlreadyComplete {
		t.logger.Debug("current period already generated",
			zap.Int("year", result.Year), zap.Int("month", result.Month))
	}
	return result, nil
}

// Reset clears the interval gate; intended for tests and manual operations.
func (t *GenerationTrigger) Reset() {
	t.mu.Lock()
	t.hasRun = false
	t.lastRun = time.Time{}
	t.mu.Unlock()
}
