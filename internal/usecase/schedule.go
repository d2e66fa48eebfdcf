package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hqc-labs/huddle-delivery/internal/clock"
	"github.com/hqc-labs/huddle-delivery/internal/domain"
	"github.com/hqc-labs/huddle-delivery/internal/recurrence"
	"github.com/hqc-labs/huddle-delivery/internal/repository"
)

// Authorizer is the explicit permission check at the administrative
// boundary. Rule evaluation (roles, org units) lives outside this service;
// the engine only guarantees the check happens before any mutation.
type Authorizer interface {
	CanManageSchedules(ctx context.Context, actorID, agencyID string) error
}

// AllowAllAuthorizer is the local-dev authorizer: permission rules are
// evaluated upstream of this service in every deployed environment.
type AllowAllAuthorizer struct{}

func (AllowAllAuthorizer) CanManageSchedules(context.Context, string, string) error { return nil }

type ScheduleUsecase struct {
	store     repository.ScheduleStore
	sequences repository.SequenceStore
	authz     Authorizer
	calc      *recurrence.Calculator
	clock     clock.Clock
	logger    *slog.Logger
}

func NewScheduleUsecase(
	store repository.ScheduleStore,
	sequences repository.SequenceStore,
	authz Authorizer,
	calc *recurrence.Calculator,
	clk clock.Clock,
	logger *slog.Logger,
) *ScheduleUsecase {
	return &ScheduleUsecase{
		store:     store,
		sequences: sequences,
		authz:     authz,
		calc:      calc,
		clock:     clk,
		logger:    logger.With("component", "schedule_usecase"),
	}
}

// ScheduleInput carries the recurrence and delivery configuration shared by
// create and update. Nil booleans take the system defaults (both true).
type ScheduleInput struct {
	Frequency               domain.FrequencyType
	StartDate               time.Time
	EndDate                 *time.Time
	ReleaseTime             string
	DaysOfWeek              []time.Weekday
	TimeZone                string
	CronExpr                *string
	AutoPublish             *bool
	SendNotifications       *bool
	NotificationHoursBefore int
	ReminderHoursBefore     int
	MaxExecutions           *int
}

type CreateScheduleInput struct {
	ActorID    string
	SequenceID string
	ScheduleInput
}

func (u *ScheduleUsecase) Create(ctx context.Context, input CreateScheduleInput) (*domain.Schedule, error) {
	seq, err := u.sequences.GetInfo(ctx, input.SequenceID)
	if err != nil {
		return nil, fmt.Errorf("get sequence: %w", err)
	}
	if err := u.authz.CanManageSchedules(ctx, input.ActorID, seq.AgencyID); err != nil {
		return nil, err
	}

	s := &domain.Schedule{
		SequenceID: seq.ID,
		AgencyID:   seq.AgencyID,
		Status:     domain.StatusActive,
		Active:     true,
	}
	if err := u.applyConfig(s, input.ScheduleInput); err != nil {
		return nil, err
	}
	if err := u.recomputeNext(s, u.clock.Now()); err != nil {
		return nil, err
	}

	created, err := u.store.Create(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}
	u.logger.InfoContext(ctx, "schedule created",
		"schedule_id", created.ID,
		"sequence_id", created.SequenceID,
		"frequency", created.Frequency,
		"next_execution_at", created.NextExecutionAt,
	)
	return created, nil
}

type UpdateScheduleInput struct {
	ActorID    string
	ScheduleID string
	ScheduleInput
}

func (u *ScheduleUsecase) Update(ctx context.Context, input UpdateScheduleInput) (*domain.Schedule, error) {
	s, err := u.authorized(ctx, input.ActorID, input.ScheduleID)
	if err != nil {
		return nil, err
	}
	if s.Status == domain.StatusCancelled {
		return nil, domain.ErrScheduleTerminal
	}

	if err := u.applyConfig(s, input.ScheduleInput); err != nil {
		return nil, err
	}
	// A config change invalidates the previously computed occurrence.
	if err := u.recomputeNext(s, u.clock.Now()); err != nil {
		return nil, err
	}

	if err := u.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save schedule: %w", err)
	}
	u.logger.InfoContext(ctx, "schedule updated", "schedule_id", s.ID, "next_execution_at", s.NextExecutionAt)
	return s, nil
}

func (u *ScheduleUsecase) Pause(ctx context.Context, actorID, scheduleID string) error {
	s, err := u.authorized(ctx, actorID, scheduleID)
	if err != nil {
		return err
	}
	if s.Status != domain.StatusActive {
		return domain.ErrScheduleNotActive
	}

	s.Status = domain.StatusPaused
	if err := u.store.Save(ctx, s); err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	u.logger.InfoContext(ctx, "schedule paused", "schedule_id", s.ID)
	return nil
}

// Resume reactivates a PAUSED or FAILED schedule. The next occurrence is
// computed from the resume instant; windows missed while paused are not
// replayed. The failure streak is cleared so a resumed schedule does not
// immediately re-trip the auto-disable.
func (u *ScheduleUsecase) Resume(ctx context.Context, actorID, scheduleID string) (*domain.Schedule, error) {
	s, err := u.authorized(ctx, actorID, scheduleID)
	if err != nil {
		return nil, err
	}
	if s.Status != domain.StatusPaused && s.Status != domain.StatusFailed {
		return nil, domain.ErrScheduleNotResumable
	}

	now := u.clock.Now()
	s.Status = domain.StatusActive
	s.ConsecutiveFailures = 0
	s.LastError = nil
	if err := u.recomputeNext(s, now); err != nil {
		return nil, err
	}
	if s.IsExpired(now) {
		s.Complete()
	}

	if err := u.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save schedule: %w", err)
	}
	u.logger.InfoContext(ctx, "schedule resumed", "schedule_id", s.ID, "next_execution_at", s.NextExecutionAt)
	return s, nil
}

// Cancel is terminal and irreversible. The row survives with is_active
// flipped off; nothing is hard-deleted.
func (u *ScheduleUsecase) Cancel(ctx context.Context, actorID, scheduleID string) error {
	s, err := u.authorized(ctx, actorID, scheduleID)
	if err != nil {
		return err
	}
	if s.Status == domain.StatusCancelled || s.Status == domain.StatusCompleted {
		return domain.ErrScheduleTerminal
	}

	s.Status = domain.StatusCancelled
	s.Active = false
	s.NextExecutionAt = nil
	if err := u.store.Save(ctx, s); err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	u.logger.InfoContext(ctx, "schedule cancelled", "schedule_id", s.ID)
	return nil
}

func (u *ScheduleUsecase) Get(ctx context.Context, actorID, scheduleID string) (*domain.Schedule, error) {
	return u.authorized(ctx, actorID, scheduleID)
}

func (u *ScheduleUsecase) ListBySequence(ctx context.Context, actorID, sequenceID string) ([]*domain.Schedule, error) {
	seq, err := u.sequences.GetInfo(ctx, sequenceID)
	if err != nil {
		return nil, fmt.Errorf("get sequence: %w", err)
	}
	if err := u.authz.CanManageSchedules(ctx, actorID, seq.AgencyID); err != nil {
		return nil, err
	}
	return u.store.ListBySequence(ctx, sequenceID)
}

func (u *ScheduleUsecase) ListByAgency(ctx context.Context, actorID, agencyID string) ([]*domain.Schedule, error) {
	if err := u.authz.CanManageSchedules(ctx, actorID, agencyID); err != nil {
		return nil, err
	}
	return u.store.ListByAgency(ctx, agencyID)
}

func (u *ScheduleUsecase) authorized(ctx context.Context, actorID, scheduleID string) (*domain.Schedule, error) {
	s, err := u.store.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	if err := u.authz.CanManageSchedules(ctx, actorID, s.AgencyID); err != nil {
		return nil, err
	}
	return s, nil
}

// applyConfig validates the input and writes it onto s. Runtime state
// (counters, status, claim) is never touched here.
func (u *ScheduleUsecase) applyConfig(s *domain.Schedule, input ScheduleInput) error {
	switch input.Frequency {
	case domain.FrequencyImmediate, domain.FrequencyDaily, domain.FrequencyWeekly,
		domain.FrequencyMonthly, domain.FrequencyCustom:
	default:
		return fmt.Errorf("%w: %q", domain.ErrInvalidFrequency, input.Frequency)
	}

	tz := input.TimeZone
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("%w: %q", domain.ErrInvalidTimeZone, tz)
	}

	var rt domain.ReleaseTime
	if input.ReleaseTime != "" {
		parsed, err := domain.ParseReleaseTime(input.ReleaseTime)
		if err != nil {
			return err
		}
		rt = parsed
	} else if input.Frequency == domain.FrequencyDaily ||
		input.Frequency == domain.FrequencyWeekly ||
		input.Frequency == domain.FrequencyMonthly {
		return domain.ErrInvalidReleaseTime
	}

	if input.Frequency == domain.FrequencyWeekly && len(input.DaysOfWeek) == 0 {
		return domain.ErrEmptyDaysOfWeek
	}
	if input.MaxExecutions != nil && *input.MaxExecutions <= 0 {
		return domain.ErrInvalidMaxExecutions
	}

	startDate := input.StartDate
	if startDate.IsZero() {
		startDate = u.clock.Now()
	}
	if input.EndDate != nil && !input.EndDate.After(startDate) {
		return domain.ErrInvalidDateRange
	}

	s.Frequency = input.Frequency
	s.StartDate = startDate
	s.EndDate = input.EndDate
	s.ReleaseTime = rt
	s.DaysOfWeek = input.DaysOfWeek
	s.TimeZone = tz
	s.CronExpr = input.CronExpr
	s.AutoPublish = boolOr(input.AutoPublish, true)
	s.SendNotifications = boolOr(input.SendNotifications, true)
	s.NotificationHoursBefore = intOr(input.NotificationHoursBefore, 24)
	s.ReminderHoursBefore = intOr(input.ReminderHoursBefore, 1)
	s.MaxExecutions = input.MaxExecutions
	return nil
}

// recomputeNext refreshes NextExecutionAt from ref. An invalid custom cron
// expression surfaces here, so it is caught at the administrative boundary.
func (u *ScheduleUsecase) recomputeNext(s *domain.Schedule, ref time.Time) error {
	next, ok, err := u.calc.Next(s, ref)
	if err != nil {
		return err
	}
	if ok {
		s.NextExecutionAt = &next
	} else {
		s.NextExecutionAt = nil
	}
	return nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
