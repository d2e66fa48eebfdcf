package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/hqc-labs/huddle-delivery/internal/clock"
	"github.com/hqc-labs/huddle-delivery/internal/metrics"
	"github.com/hqc-labs/huddle-delivery/internal/repository"
)

// completedRetention is how long a COMPLETED schedule stays visible in
// default listings before the janitor soft-deactivates it.
const completedRetention = 30 * 24 * time.Hour

// Janitor recovers schedules whose executor died mid-run (the claim is
// released and the schedule becomes due again) and sweeps long-completed
// schedules out of active listings.
type Janitor struct {
	store        repository.ScheduleStore
	logger       *slog.Logger
	clock        clock.Clock
	interval     time.Duration
	claimTimeout time.Duration
}

func NewJanitor(store repository.ScheduleStore, logger *slog.Logger, clk clock.Clock, interval, claimTimeout time.Duration) *Janitor {
	return &Janitor{
		store:        store,
		logger:       logger.With("component", "janitor"),
		clock:        clk,
		interval:     interval,
		claimTimeout: claimTimeout,
	}
}

func (j *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("janitor started", "interval", j.interval, "claim_timeout", j.claimTimeout)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("janitor shut down")
			return
		case <-ticker.C:
			j.tick(ctx)
		}
	}
}

func (j *Janitor) tick(ctx context.Context) {
	now := j.clock.Now()

	released, err := j.store.ReleaseStaleClaims(ctx, now.Add(-j.claimTimeout))
	if err != nil {
		j.logger.Error("release stale claims", "error", err)
	} else if released > 0 {
		metrics.StaleClaimsReleasedTotal.Add(float64(released))
		j.logger.Warn("released stale claims", "count", released)
	}

	deactivated, err := j.store.DeactivateCompletedBefore(ctx, now.Add(-completedRetention))
	if err != nil {
		j.logger.Error("deactivate completed schedules", "error", err)
	} else if deactivated > 0 {
		j.logger.Info("deactivated old completed schedules", "count", deactivated)
	}
}
