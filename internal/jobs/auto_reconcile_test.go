package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"statement-reconciliation-backend/internal/config"
	"statement-reconciliation-backend/internal/models"
	"statement-reconciliation-backend/internal/services/matching"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type stubPlans struct {
	month string
	plans []models.Plan
	err   error
}

func (s *stubPlans) ActivePlansInMonth(_ context.Context, month string) ([]models.Plan, error) {
	s.month = month
	return s.plans, s.err
}

type stubRunner struct {
	calls []uuid.UUID
	users []string
	fail  map[uuid.UUID]bool
}

func (r *stubRunner) Run(_ context.Context, planID uuid.UUID, dryRun bool, userID *string) (*matching.RunResult, error) {
	r.calls = append(r.calls, planID)
	r.users = append(r.users, *userID)
	if dryRun {
		return nil, errors.New("sweep must not dry-run")
	}
	if r.fail[planID] {
		return nil, errors.New("boom")
	}
	return &matching.RunResult{Stats: matching.Stats{Matched: 2}}, nil
}

func TestSweepRunsEveryPlanAndContinuesAfterFailure(t *testing.T) {
	a, b, c := models.Plan{ID: uuid.New()}, models.Plan{ID: uuid.New()}, models.Plan{ID: uuid.New()}
	plans := &stubPlans{plans: []models.Plan{a, b, c}}
	runner := &stubRunner{fail: map[uuid.UUID]bool{b.ID: true}}

	sweep := NewAutoReconcileSweep(plans, runner)
	sweep.now = func() time.Time { return time.Date(2026, 2, 14, 6, 0, 0, 0, time.UTC) }

	summary, err := sweep.Process(context.Background())
	require.NoError(t, err)
	require.Equal(t, "2026-02", plans.month)
	require.Equal(t, []uuid.UUID{a.ID, b.ID, c.ID}, runner.calls)
	require.Equal(t, []string{"scheduler", "scheduler", "scheduler"}, runner.users)
	require.Equal(t, SweepSummary{Plans: 3, Failed: 1, Matched: 4}, summary)
}

func TestSweepReportsPlanLookupFailure(t *testing.T) {
	sweep := NewAutoReconcileSweep(&stubPlans{err: errors.New("db down")}, &stubRunner{})
	_, err := sweep.Process(context.Background())
	require.ErrorContains(t, err, "db down")
}

func TestSweepStopsOnCancelledContext(t *testing.T) {
	plans := &stubPlans{plans: []models.Plan{{ID: uuid.New()}}}
	runner := &stubRunner{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewAutoReconcileSweep(plans, runner).Process(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, runner.calls)
}

func TestStartSchedulerRejectsBadSchedule(t *testing.T) {
	sweep := NewAutoReconcileSweep(&stubPlans{}, &stubRunner{})
	_, err := StartScheduler(config.SchedulerConfig{Schedule: "not a cron line", Timezone: "UTC"}, sweep)
	require.Error(t, err)

	c, err := StartScheduler(config.SchedulerConfig{Timezone: "Europe/Berlin"}, sweep)
	require.NoError(t, err)
	require.Len(t, c.Entries(), 1)
	c.Stop()
}
