package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/hqc-labs/huddle-delivery/internal/clock"
	"github.com/hqc-labs/huddle-delivery/internal/content"
	"github.com/hqc-labs/huddle-delivery/internal/domain"
	"github.com/hqc-labs/huddle-delivery/internal/metrics"
	"github.com/hqc-labs/huddle-delivery/internal/notify"
	"github.com/hqc-labs/huddle-delivery/internal/repository"
)

// reminderLookahead bounds the near-due query window. Anything further out
// than this cannot be inside any schedule's reminder window yet.
const reminderLookahead = 48 * time.Hour

// ReminderSweep sends pre-release reminders. It runs on a coarse cadence
// (hourly by default) while reminder windows can be narrower, so each
// occurrence is marked sent in the store before the send goes out —
// at-most-once per occurrence across adjacent and concurrent sweeps.
type ReminderSweep struct {
	store     repository.ScheduleStore
	sequences repository.SequenceStore
	targets   content.TargetResolver
	notifier  notify.Notifier
	logger    *slog.Logger
	clock     clock.Clock
	interval  time.Duration
}

func NewReminderSweep(
	store repository.ScheduleStore,
	sequences repository.SequenceStore,
	targets content.TargetResolver,
	notifier notify.Notifier,
	logger *slog.Logger,
	clk clock.Clock,
	interval time.Duration,
) *ReminderSweep {
	return &ReminderSweep{
		store:     store,
		sequences: sequences,
		targets:   targets,
		notifier:  notifier,
		logger:    logger.With("component", "reminder_sweep"),
		clock:     clk,
		interval:  interval,
	}
}

func (r *ReminderSweep) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reminder sweep started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reminder sweep shut down")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *ReminderSweep) sweep(ctx context.Context) {
	now := r.clock.Now()

	schedules, err := r.store.FindNearDue(ctx, now, now.Add(reminderLookahead))
	if err != nil {
		r.logger.Error("find near-due schedules", "error", err)
		return
	}

	for _, s := range schedules {
		if !s.SendNotifications || s.ReminderHoursBefore <= 0 || s.NextExecutionAt == nil {
			continue
		}

		occurrence := *s.NextExecutionAt
		remindAt := occurrence.Add(-time.Duration(s.ReminderHoursBefore) * time.Hour)
		if now.Before(remindAt) {
			continue
		}

		sent, err := r.store.MarkReminderSent(ctx, s.ID, occurrence)
		if err != nil {
			r.logger.Error("mark reminder sent", "schedule_id", s.ID, "error", err)
			continue
		}
		if !sent {
			continue // already reminded for this occurrence
		}

		r.send(ctx, s, occurrence)
	}
}

func (r *ReminderSweep) send(ctx context.Context, s *domain.Schedule, occurrence time.Time) {
	seq, err := r.sequences.GetInfo(ctx, s.SequenceID)
	if err != nil {
		r.logger.Error("load sequence for reminder", "schedule_id", s.ID, "sequence_id", s.SequenceID, "error", err)
		return
	}
	recipients, err := r.targets.Resolve(ctx, s.SequenceID)
	if err != nil {
		r.logger.Error("resolve reminder targets", "schedule_id", s.ID, "error", err)
		return
	}
	if err := r.notifier.SendReminder(ctx, recipients, seq); err != nil {
		// The occurrence stays marked: reminders are at-most-once.
		r.logger.Warn("send reminder", "schedule_id", s.ID, "error", err)
		return
	}

	metrics.RemindersSentTotal.Inc()
	r.logger.Info("reminder sent",
		"schedule_id", s.ID,
		"sequence_id", s.SequenceID,
		"occurrence", occurrence,
		"recipients", len(recipients),
	)
}
