package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrScheduleNotFound     = errors.New("schedule not found")
	ErrSequenceNotFound     = errors.New("sequence not found")
	ErrEmptyDaysOfWeek      = errors.New("weekly schedule requires at least one day of week")
	ErrInvalidTimeZone      = errors.New("invalid time zone identifier")
	ErrInvalidReleaseTime   = errors.New("invalid release time, expected HH:MM")
	ErrInvalidMaxExecutions = errors.New("max executions must be positive")
	ErrInvalidDateRange     = errors.New("end date must be after start date")
	ErrInvalidCronExpr      = errors.New("invalid cron expression")
	ErrInvalidFrequency     = errors.New("invalid frequency type")
	ErrScheduleNotActive    = errors.New("schedule is not active")
	ErrScheduleNotResumable = errors.New("schedule is not paused or failed")
	ErrScheduleTerminal     = errors.New("schedule is in a terminal state")
	ErrPermissionDenied     = errors.New("permission denied")
)

type FrequencyType string

const (
	FrequencyImmediate FrequencyType = "immediate"
	FrequencyDaily     FrequencyType = "daily"
	FrequencyWeekly    FrequencyType = "weekly"
	FrequencyMonthly   FrequencyType = "monthly"
	FrequencyCustom    FrequencyType = "custom"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether the status admits no further executions.
// FAILED is terminal only until an explicit resume.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// MaxConsecutiveFailures is the auto-disable threshold: reaching it moves a
// schedule to StatusFailed until an operator resumes it.
const MaxConsecutiveFailures = 3

// ReleaseTime is a wall-clock time of day, interpreted in the schedule's zone.
type ReleaseTime struct {
	Hour   int
	Minute int
}

func ParseReleaseTime(s string) (ReleaseTime, error) {
	var rt ReleaseTime
	if _, err := fmt.Sscanf(s, "%d:%d", &rt.Hour, &rt.Minute); err != nil {
		return ReleaseTime{}, ErrInvalidReleaseTime
	}
	if rt.Hour < 0 || rt.Hour > 23 || rt.Minute < 0 || rt.Minute > 59 {
		return ReleaseTime{}, ErrInvalidReleaseTime
	}
	return rt, nil
}

func (rt ReleaseTime) String() string {
	return fmt.Sprintf("%02d:%02d", rt.Hour, rt.Minute)
}

// Schedule is a plan, recurring or one-shot, to publish a content sequence
// and notify its audience. It belongs to exactly one sequence, and through
// that sequence to exactly one agency.
type Schedule struct {
	ID         string
	SequenceID string
	AgencyID   string

	Frequency   FrequencyType
	StartDate   time.Time
	EndDate     *time.Time
	ReleaseTime ReleaseTime
	DaysOfWeek  []time.Weekday // weekly only
	TimeZone    string         // IANA identifier
	CronExpr    *string        // custom only

	AutoPublish             bool
	SendNotifications       bool
	NotificationHoursBefore int
	ReminderHoursBefore     int
	MaxExecutions           *int

	NextExecutionAt     *time.Time
	LastExecutionAt     *time.Time
	Status              Status
	ExecutionCount      int
	ConsecutiveFailures int
	LastError           *string
	Active              bool // soft-delete flag; cancel flips it, nothing hard-deletes

	// ReminderSentFor is the occurrence (NextExecutionAt value) for which a
	// reminder has already gone out, so adjacent hourly sweeps don't resend.
	ReminderSentFor *time.Time

	// Claim columns: set while an executor owns this schedule.
	ClaimedAt *time.Time
	ClaimedBy *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Location resolves the schedule's IANA zone.
func (s *Schedule) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimeZone, s.TimeZone)
	}
	return loc, nil
}

func (s *Schedule) IsExpired(now time.Time) bool {
	return s.EndDate != nil && now.After(*s.EndDate)
}

func (s *Schedule) HasReachedMaxExecutions() bool {
	return s.MaxExecutions != nil && s.ExecutionCount >= *s.MaxExecutions
}

// HasDay reports whether d is one of the configured weekly days.
func (s *Schedule) HasDay(d time.Weekday) bool {
	for _, day := range s.DaysOfWeek {
		if day == d {
			return true
		}
	}
	return false
}

// MarkExecuted records a successful execution. Any failure streak ends here.
func (s *Schedule) MarkExecuted(now time.Time) {
	s.LastExecutionAt = &now
	s.ExecutionCount++
	s.ConsecutiveFailures = 0
	s.LastError = nil
}

// MarkFailed records a failed execution and trips the auto-disable once the
// streak reaches MaxConsecutiveFailures. Already-terminal statuses are left
// untouched.
func (s *Schedule) MarkFailed(errMsg string) {
	s.LastError = &errMsg
	s.ConsecutiveFailures++
	if s.ConsecutiveFailures >= MaxConsecutiveFailures && s.Status == StatusActive {
		s.Status = StatusFailed
	}
}

// Complete moves the schedule to COMPLETED and clears the next occurrence.
func (s *Schedule) Complete() {
	s.Status = StatusCompleted
	s.NextExecutionAt = nil
}
