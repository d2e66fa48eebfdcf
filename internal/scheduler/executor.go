package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hqc-labs/huddle-delivery/internal/clock"
	"github.com/hqc-labs/huddle-delivery/internal/content"
	"github.com/hqc-labs/huddle-delivery/internal/domain"
	"github.com/hqc-labs/huddle-delivery/internal/metrics"
	"github.com/hqc-labs/huddle-delivery/internal/notify"
	"github.com/hqc-labs/huddle-delivery/internal/recurrence"
	"github.com/hqc-labs/huddle-delivery/internal/repository"
)

// Executor performs one schedule's execution: publish, notify, advance state,
// persist. The claim taken by the poller is released by Save, so nothing can
// dispatch this schedule again until its new state is durable.
type Executor struct {
	store       repository.ScheduleStore
	sequences   repository.SequenceStore
	publisher   content.Publisher
	targets     content.TargetResolver
	notifier    notify.Notifier
	calc        *recurrence.Calculator
	clock       clock.Clock
	logger      *slog.Logger
	callTimeout time.Duration
}

func NewExecutor(
	store repository.ScheduleStore,
	sequences repository.SequenceStore,
	publisher content.Publisher,
	targets content.TargetResolver,
	notifier notify.Notifier,
	calc *recurrence.Calculator,
	clk clock.Clock,
	logger *slog.Logger,
	callTimeout time.Duration,
) *Executor {
	return &Executor{
		store:       store,
		sequences:   sequences,
		publisher:   publisher,
		targets:     targets,
		notifier:    notifier,
		calc:        calc,
		clock:       clk,
		logger:      logger.With("component", "executor"),
		callTimeout: callTimeout,
	}
}

func (e *Executor) Execute(ctx context.Context, s *domain.Schedule) error {
	start := time.Now()
	e.logger.InfoContext(ctx, "executing schedule", "schedule_id", s.ID, "sequence_id", s.SequenceID)

	if err := e.deliver(ctx, s); err != nil {
		e.recordFailure(ctx, s, err)
		metrics.ExecutionDuration.WithLabelValues("failure").Observe(time.Since(start).Seconds())
		return err
	}

	now := e.clock.Now()
	s.MarkExecuted(now)

	next, ok, err := e.calc.Next(s, now)
	switch {
	case err != nil:
		// Validation keeps this from happening; a stale NextExecutionAt
		// would double-fire, so a broken recurrence config fails the run.
		e.recordFailure(ctx, s, fmt.Errorf("compute next occurrence: %w", err))
		metrics.ExecutionDuration.WithLabelValues("failure").Observe(time.Since(start).Seconds())
		return err
	case ok:
		s.NextExecutionAt = &next
	default:
		s.NextExecutionAt = nil
	}

	if s.IsExpired(now) || s.HasReachedMaxExecutions() {
		s.Complete()
	}

	if err := e.store.Save(ctx, s); err != nil {
		// The claim stays held; the janitor releases it and the schedule
		// remains due, so the run is retried rather than lost.
		e.logger.ErrorContext(ctx, "persist executed schedule", "schedule_id", s.ID, "error", err)
		metrics.ExecutionDuration.WithLabelValues("failure").Observe(time.Since(start).Seconds())
		return fmt.Errorf("save schedule %s: %w", s.ID, err)
	}

	metrics.ScheduleExecutionsTotal.WithLabelValues("success").Inc()
	metrics.ExecutionDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())
	e.logger.InfoContext(ctx, "schedule executed",
		"schedule_id", s.ID,
		"execution_count", s.ExecutionCount,
		"status", s.Status,
		"next_execution_at", s.NextExecutionAt,
	)
	return nil
}

// deliver runs the external side of an execution: publish and notify.
// Every collaborator call carries its own timeout; a timeout is a failure
// like any other.
func (e *Executor) deliver(ctx context.Context, s *domain.Schedule) error {
	if s.AutoPublish {
		callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
		err := e.publisher.Publish(callCtx, s.SequenceID)
		cancel()
		if err != nil {
			return fmt.Errorf("publish sequence %s: %w", s.SequenceID, err)
		}
	}

	if s.SendNotifications {
		callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
		defer cancel()

		seq, err := e.sequences.GetInfo(callCtx, s.SequenceID)
		if err != nil {
			return fmt.Errorf("load sequence %s: %w", s.SequenceID, err)
		}
		recipients, err := e.targets.Resolve(callCtx, s.SequenceID)
		if err != nil {
			return fmt.Errorf("resolve targets for sequence %s: %w", s.SequenceID, err)
		}
		if err := e.notifier.SendRelease(callCtx, recipients, seq); err != nil {
			return fmt.Errorf("send release notifications for sequence %s: %w", s.SequenceID, err)
		}
	}

	return nil
}

// recordFailure books a failed execution. NextExecutionAt is left untouched,
// so the schedule stays due and is retried passively until it succeeds or
// the auto-disable threshold trips.
func (e *Executor) recordFailure(ctx context.Context, s *domain.Schedule, cause error) {
	msg := cause.Error()
	wasActive := s.Status == domain.StatusActive
	s.MarkFailed(msg)

	if wasActive && s.Status == domain.StatusFailed {
		metrics.SchedulesAutoDisabledTotal.Inc()
		e.logger.WarnContext(ctx, "schedule auto-disabled after consecutive failures",
			"schedule_id", s.ID, "failures", s.ConsecutiveFailures)
	}

	if err := e.store.Save(ctx, s); err != nil {
		e.logger.ErrorContext(ctx, "persist failed schedule", "schedule_id", s.ID, "error", err)
	}

	// Best-effort operator alert. A broken notifier must not disturb the
	// bookkeeping that already happened.
	alertCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	if err := e.notifier.SendFailureAlert(alertCtx, s, msg); err != nil {
		e.logger.WarnContext(ctx, "send failure alert", "schedule_id", s.ID, "error", err)
	}

	metrics.ScheduleExecutionsTotal.WithLabelValues("failure").Inc()
	e.logger.WarnContext(ctx, "schedule execution failed",
		"schedule_id", s.ID,
		"error", msg,
		"consecutive_failures", s.ConsecutiveFailures,
		"status", s.Status,
	)
}
