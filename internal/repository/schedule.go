package repository

import (
	"context"
	"time"

	"github.com/hqc-labs/huddle-delivery/internal/domain"
)

// ScheduleStore is the persistence surface the drivers and the admin
// operations share. Components depend on this interface, not on postgres,
// so tests can pass hand-written fakes.
type ScheduleStore interface {
	Create(ctx context.Context, s *domain.Schedule) (*domain.Schedule, error)
	GetByID(ctx context.Context, id string) (*domain.Schedule, error)
	ListBySequence(ctx context.Context, sequenceID string) ([]*domain.Schedule, error)
	ListByAgency(ctx context.Context, agencyID string) ([]*domain.Schedule, error)

	// Save persists the schedule's full state and releases any claim held on
	// it. Executors must not call it before the new runtime state (next
	// occurrence, counters) is final: clearing the claim is what allows the
	// next dispatch for this schedule.
	Save(ctx context.Context, s *domain.Schedule) error

	// ClaimDue atomically claims up to limit due schedules (status active,
	// not soft-deleted, next_execution_at <= now, unclaimed), ordered by
	// next_execution_at ascending. A schedule claimed here is invisible to
	// concurrent ClaimDue calls until Save or ReleaseStaleClaims.
	ClaimDue(ctx context.Context, now time.Time, limit int, claimedBy string) ([]*domain.Schedule, error)

	// FindNearDue returns active schedules whose next occurrence falls
	// inside (windowStart, windowEnd], for the reminder sweep.
	FindNearDue(ctx context.Context, windowStart, windowEnd time.Time) ([]*domain.Schedule, error)

	// MarkReminderSent records that a reminder went out for the given
	// occurrence. Returns false when one was already recorded, which is the
	// sweep's dedupe across adjacent ticks.
	MarkReminderSent(ctx context.Context, id string, occurrence time.Time) (bool, error)

	// ReleaseStaleClaims clears claims older than cutoff so schedules held
	// by a crashed executor become dispatchable again.
	ReleaseStaleClaims(ctx context.Context, cutoff time.Time) (int, error)

	// DeactivateCompletedBefore soft-deactivates COMPLETED schedules whose
	// last execution predates cutoff.
	DeactivateCompletedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// SequenceStore exposes the sequence facts the engine needs. The sequence
// aggregate itself is owned by the authoring system.
type SequenceStore interface {
	GetInfo(ctx context.Context, sequenceID string) (*domain.SequenceInfo, error)
}
