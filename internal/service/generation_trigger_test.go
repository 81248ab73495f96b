package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-center-api/internal/models"
	appErrors "github.com/noah-isme/tutor-center-api/pkg/errors"
)

type triggerGeneratorStub struct {
	calls  []models.BillingPeriod
	result *models.GenerationResult
	err    error
}

func (g *triggerGeneratorStub) Generate(ctx context.Context, month, year int) (*models.GenerationResult, error) {
	g.calls = append(g.calls, models.BillingPeriod{Year: year, Month: month})
	if g.err != nil {
		return nil, g.err
	}
	if g.result != nil {
		return g.result, nil
	}
	return &models.GenerationResult{Year: year, Month: month}, nil
}

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestCheckAndGenerateUsesCurrentPeriod(t *testing.T) {
	gen := &triggerGeneratorStub{}
	clock := &manualClock{now: time.Date(2025, 8, 30, 9, 0, 0, 0, time.UTC)}
	trigger := NewGenerationTrigger(gen, "", time.Hour, clock.Now, nil)

	result, err := trigger.CheckAndGenerate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, gen.calls, 1)
	assert.Equal(t, models.BillingPeriod{Year: 2025, Month: 8}, gen.calls[0])
}

func TestCheckAndGenerateGatesWithinInterval(t *testing.T) {
	gen := &triggerGeneratorStub{}
	clock := &manualClock{now: time.Date(2025, 8, 30, 9, 0, 0, 0, time.UTC)}
	trigger := NewGenerationTrigger(gen, "", time.Hour, clock.Now, nil)

	_, err := trigger.CheckAndGenerate(context.Background())
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	result, err := trigger.CheckAndGenerate(context.Background())
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Len(t, gen.calls, 1)

	clock.Advance(51 * time.Minute)
	result, err = trigger.CheckAndGenerate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Len(t, gen.calls, 2)
}

func TestCheckAndGenerateResetClearsGate(t *testing.T) {
	gen := &triggerGeneratorStub{}
	clock := &manualClock{now: time.Date(2025, 8, 30, 9, 0, 0, 0, time.UTC)}
	trigger := NewGenerationTrigger(gen, "", time.Hour, clock.Now, nil)

	_, err := trigger.CheckAndGenerate(context.Background())
	require.NoError(t, err)
	trigger.Reset()

	result, err := trigger.CheckAndGenerate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Len(t, gen.calls, 2)
}

func TestCheckAndGenerateSwallowsConcurrentRun(t *testing.T) {
	gen := &triggerGeneratorStub{err: appErrors.Clone(appErrors.ErrGenerationRunning, "")}
	clock := &manualClock{now: time.Date(2025, 8, 30, 9, 0, 0, 0, time.UTC)}
	trigger := NewGenerationTrigger(gen, "", time.Hour, clock.Now, nil)

	result, err := trigger.CheckAndGenerate(context.Background())
	require.NoError(t, err)
	assert.Nil(t, result)
}
