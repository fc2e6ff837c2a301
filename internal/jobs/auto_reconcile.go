package jobs

import (
	"context"
	"fmt"
	"time"

	"statement-reconciliation-backend/internal/config"
	"statement-reconciliation-backend/internal/logger"
	"statement-reconciliation-backend/internal/models"
	"statement-reconciliation-backend/internal/services/matching"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

const (
	defaultSchedule = "0 6 * * *"
	sweepTimeout    = 10 * time.Minute
	schedulerUser   = "scheduler"
)

type PlanSource interface {
	ActivePlansInMonth(ctx context.Context, month string) ([]models.Plan, error)
}

type Runner interface {
	Run(ctx context.Context, planID uuid.UUID, dryRun bool, userID *string) (*matching.RunResult, error)
}

type SweepSummary struct {
	Plans   int
	Failed  int
	Matched int
}

// AutoReconcileSweep runs the matcher over every open plan of the current month.
type AutoReconcileSweep struct {
	plans  PlanSource
	runner Runner
	now    func() time.Time
}

func NewAutoReconcileSweep(plans PlanSource, runner Runner) *AutoReconcileSweep {
	return &AutoReconcileSweep{plans: plans, runner: runner, now: time.Now}
}

// Process handles the plans one after another. A failing plan is logged and
// skipped.
func (s *AutoReconcileSweep) Process(ctx context.Context) (SweepSummary, error) {
	var summary SweepSummary
	month := s.now().Format("2006-01")

	plans, err := s.plans.ActivePlansInMonth(ctx, month)
	if err != nil {
		return summary, fmt.Errorf("load plans for %s: %w", month, err)
	}

	user := schedulerUser
	for _, p := range plans {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		summary.Plans++
		res, err := s.runner.Run(ctx, p.ID, false, &user)
		if err != nil {
			summary.Failed++
			logger.L.Error("scheduled auto reconcile failed", "plan_id", p.ID, "error", err)
			continue
		}
		summary.Matched += res.Stats.Matched
	}

	logger.L.Info("scheduled auto reconcile sweep finished", "month", month,
		"plans", summary.Plans, "failed", summary.Failed, "matched", summary.Matched)
	return summary, nil
}

// StartScheduler registers the sweep with cron. The returned scheduler is
// already running; stop it on shutdown.
func StartScheduler(cfg config.SchedulerConfig, sweep *AutoReconcileSweep) (*cron.Cron, error) {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = defaultSchedule
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.L.Warn("unknown scheduler timezone, using UTC", "timezone", cfg.Timezone)
		loc = time.UTC
	}
	sweep.now = func() time.Time { return time.Now().In(loc) }

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if _, err := sweep.Process(ctx); err != nil {
			logger.L.Error("auto reconcile sweep failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("unable to schedule auto reconcile sweep: %w", err)
	}

	c.Start()
	logger.L.Info("auto reconcile scheduler started", "schedule", schedule, "timezone", loc.String())
	return c, nil
}
