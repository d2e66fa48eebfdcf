package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hqc-labs/huddle-delivery/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const scheduleColumns = `
	schedule_id, sequence_id, agency_id, frequency_type, start_date, end_date,
	release_time, days_of_week, time_zone, cron_expression,
	auto_publish, send_notifications, notification_hours_before, reminder_hours_before,
	max_executions, next_execution_at, last_execution_at, schedule_status,
	execution_count, consecutive_failures, last_error, is_active,
	reminder_sent_for, claimed_at, claimed_by, created_at, updated_at`

type ScheduleRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewScheduleRepository(pool *pgxpool.Pool, logger *slog.Logger) *ScheduleRepository {
	return &ScheduleRepository{pool: pool, logger: logger.With("component", "schedule_repo")}
}

func (r *ScheduleRepository) Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error) {
	query := `
		INSERT INTO delivery_schedules (
			sequence_id, agency_id, frequency_type, start_date, end_date,
			release_time, days_of_week, time_zone, cron_expression,
			auto_publish, send_notifications, notification_hours_before, reminder_hours_before,
			max_executions, next_execution_at, schedule_status, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING` + scheduleColumns

	row := r.pool.QueryRow(ctx, query,
		s.SequenceID, s.AgencyID, s.Frequency, s.StartDate, s.EndDate,
		s.ReleaseTime.String(), weekdaysToInts(s.DaysOfWeek), s.TimeZone, s.CronExpr,
		s.AutoPublish, s.SendNotifications, s.NotificationHoursBefore, s.ReminderHoursBefore,
		s.MaxExecutions, s.NextExecutionAt, s.Status, s.Active,
	)
	return scanSchedule(row)
}

func (r *ScheduleRepository) GetByID(ctx context.Context, id string) (*domain.Schedule, error) {
	query := `SELECT` + scheduleColumns + ` FROM delivery_schedules WHERE schedule_id = $1`
	return scanSchedule(r.pool.QueryRow(ctx, query, id))
}

func (r *ScheduleRepository) ListBySequence(ctx context.Context, sequenceID string) ([]*domain.Schedule, error) {
	query := `
		SELECT` + scheduleColumns + `
		FROM delivery_schedules
		WHERE sequence_id = $1 AND is_active
		ORDER BY created_at DESC`
	return r.list(ctx, query, sequenceID)
}

func (r *ScheduleRepository) ListByAgency(ctx context.Context, agencyID string) ([]*domain.Schedule, error) {
	query := `
		SELECT` + scheduleColumns + `
		FROM delivery_schedules
		WHERE agency_id = $1 AND is_active
		ORDER BY next_execution_at ASC NULLS LAST`
	return r.list(ctx, query, agencyID)
}

// Save writes the schedule's full mutable state and releases any claim.
// Callers must only invoke it once the post-execution state is final.
func (r *ScheduleRepository) Save(ctx context.Context, s *domain.Schedule) error {
	query := `
		UPDATE delivery_schedules SET
			frequency_type = $2, start_date = $3, end_date = $4,
			release_time = $5, days_of_week = $6, time_zone = $7, cron_expression = $8,
			auto_publish = $9, send_notifications = $10,
			notification_hours_before = $11, reminder_hours_before = $12, max_executions = $13,
			next_execution_at = $14, last_execution_at = $15, schedule_status = $16,
			execution_count = $17, consecutive_failures = $18, last_error = $19,
			is_active = $20, reminder_sent_for = $21,
			claimed_at = NULL, claimed_by = NULL, updated_at = NOW()
		WHERE schedule_id = $1`

	tag, err := r.pool.Exec(ctx, query,
		s.ID, s.Frequency, s.StartDate, s.EndDate,
		s.ReleaseTime.String(), weekdaysToInts(s.DaysOfWeek), s.TimeZone, s.CronExpr,
		s.AutoPublish, s.SendNotifications,
		s.NotificationHoursBefore, s.ReminderHoursBefore, s.MaxExecutions,
		s.NextExecutionAt, s.LastExecutionAt, s.Status,
		s.ExecutionCount, s.ConsecutiveFailures, s.LastError,
		s.Active, s.ReminderSentFor,
	)
	if err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrScheduleNotFound
	}
	return nil
}

// ClaimDue claims due schedules in one statement. SKIP LOCKED keeps
// concurrent ticks (and replicas) from fighting over rows; the claimed_at
// guard keeps a schedule invisible until Save releases it, so overlapping
// ticks cannot double-fire the same due instant.
func (r *ScheduleRepository) ClaimDue(ctx context.Context, now time.Time, limit int, claimedBy string) ([]*domain.Schedule, error) {
	query := `
		WITH due AS (
			SELECT schedule_id FROM delivery_schedules
			WHERE schedule_status = 'active' AND is_active
			  AND claimed_at IS NULL
			  AND next_execution_at IS NOT NULL AND next_execution_at <= $1
			ORDER BY next_execution_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		), claimed AS (
			UPDATE delivery_schedules ds
			SET claimed_at = NOW(), claimed_by = $3, updated_at = NOW()
			FROM due WHERE ds.schedule_id = due.schedule_id
			RETURNING` + scheduleColumns + `
		)
		SELECT * FROM claimed ORDER BY next_execution_at ASC`

	return r.list(ctx, query, now, limit, claimedBy)
}

func (r *ScheduleRepository) FindNearDue(ctx context.Context, windowStart, windowEnd time.Time) ([]*domain.Schedule, error) {
	query := `
		SELECT` + scheduleColumns + `
		FROM delivery_schedules
		WHERE schedule_status = 'active' AND is_active
		  AND next_execution_at > $1 AND next_execution_at <= $2
		ORDER BY next_execution_at ASC`
	return r.list(ctx, query, windowStart, windowEnd)
}

func (r *ScheduleRepository) MarkReminderSent(ctx context.Context, id string, occurrence time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE delivery_schedules
		SET reminder_sent_for = $2, updated_at = NOW()
		WHERE schedule_id = $1
		  AND (reminder_sent_for IS NULL OR reminder_sent_for <> $2)`,
		id, occurrence)
	if err != nil {
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ScheduleRepository) ReleaseStaleClaims(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE delivery_schedules
		SET claimed_at = NULL, claimed_by = NULL, updated_at = NOW()
		WHERE claimed_at IS NOT NULL AND claimed_at < $1`,
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("release stale claims: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *ScheduleRepository) DeactivateCompletedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE delivery_schedules
		SET is_active = FALSE, updated_at = NOW()
		WHERE schedule_status = 'completed' AND is_active
		  AND last_execution_at IS NOT NULL AND last_execution_at < $1`,
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("deactivate completed schedules: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *ScheduleRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Schedule, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}
	return schedules, nil
}

func scanSchedule(row rowScanner) (*domain.Schedule, error) {
	var (
		s           domain.Schedule
		releaseTime string
		days        []int32
	)
	err := row.Scan(
		&s.ID, &s.SequenceID, &s.AgencyID, &s.Frequency, &s.StartDate, &s.EndDate,
		&releaseTime, &days, &s.TimeZone, &s.CronExpr,
		&s.AutoPublish, &s.SendNotifications, &s.NotificationHoursBefore, &s.ReminderHoursBefore,
		&s.MaxExecutions, &s.NextExecutionAt, &s.LastExecutionAt, &s.Status,
		&s.ExecutionCount, &s.ConsecutiveFailures, &s.LastError, &s.Active,
		&s.ReminderSentFor, &s.ClaimedAt, &s.ClaimedBy, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("scan schedule: %w", err)
	}

	rt, err := domain.ParseReleaseTime(releaseTime)
	if err != nil {
		return nil, fmt.Errorf("schedule %s: %w", s.ID, err)
	}
	s.ReleaseTime = rt
	s.DaysOfWeek = intsToWeekdays(days)
	return &s, nil
}

func weekdaysToInts(days []time.Weekday) []int32 {
	out := make([]int32, len(days))
	for i, d := range days {
		out[i] = int32(d)
	}
	return out
}

func intsToWeekdays(days []int32) []time.Weekday {
	if len(days) == 0 {
		return nil
	}
	out := make([]time.Weekday, len(days))
	for i, d := range days {
		out[i] = time.Weekday(d)
	}
	return out
}
