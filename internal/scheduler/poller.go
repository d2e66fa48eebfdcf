package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hqc-labs/huddle-delivery/internal/clock"
	"github.com/hqc-labs/huddle-delivery/internal/domain"
	"github.com/hqc-labs/huddle-delivery/internal/metrics"
	"github.com/hqc-labs/huddle-delivery/internal/repository"
)

// scheduleRunner is what the poller dispatches to; satisfied by *Executor.
type scheduleRunner interface {
	Execute(ctx context.Context, s *domain.Schedule) error
}

// Poller is the periodic driver: each tick claims due schedules and
// dispatches one execution per schedule onto a bounded worker pool. A slow
// publish in one schedule never stalls discovery of the others, and a
// failure (or panic) in one execution never aborts the tick.
type Poller struct {
	id       string
	store    repository.ScheduleStore
	runner   scheduleRunner
	logger   *slog.Logger
	clock    clock.Clock
	interval time.Duration
	sem      chan struct{}
}

func NewPoller(
	store repository.ScheduleStore,
	runner scheduleRunner,
	logger *slog.Logger,
	clk clock.Clock,
	interval time.Duration,
	concurrency int,
) *Poller {
	hostname, _ := os.Hostname()
	id := fmt.Sprintf("%s-%d", hostname, os.Getpid())
	return &Poller{
		id:       id,
		store:    store,
		runner:   runner,
		logger:   logger.With("component", "poller", "poller_id", id),
		clock:    clk,
		interval: interval,
		sem:      make(chan struct{}, concurrency),
	}
}

func (p *Poller) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("poller started", "interval", p.interval, "concurrency", cap(p.sem))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller shut down")
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.PollCycleDuration.Observe(time.Since(start).Seconds())
	}()

	available := cap(p.sem) - len(p.sem)
	if available == 0 {
		return
	}

	due, err := p.store.ClaimDue(ctx, p.clock.Now(), available, p.id)
	if err != nil {
		p.logger.Error("claim due schedules", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}

	metrics.SchedulesClaimedTotal.Add(float64(len(due)))
	p.logger.Info("claimed due schedules", "count", len(due), "slots_used", len(p.sem)+len(due), "slots_total", cap(p.sem))

	for _, s := range due {
		p.sem <- struct{}{}
		go func(s *domain.Schedule) {
			metrics.SchedulesInFlight.Inc()
			defer metrics.SchedulesInFlight.Dec()
			defer func() { <-p.sem }()
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("schedule execution panicked", "schedule_id", s.ID, "panic", r)
				}
			}()

			if err := p.runner.Execute(ctx, s); err != nil {
				// Already booked against the schedule by the executor;
				// logged here so one tick's failures are visible together.
				p.logger.Warn("schedule execution returned error", "schedule_id", s.ID, "error", err)
			}
		}(s)
	}
}
