package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/hqc-labs/huddle-delivery/internal/domain"
)

func TestParseReleaseTime(t *testing.T) {
	tests := []struct {
		in      string
		want    domain.ReleaseTime
		wantErr bool
	}{
		{"09:00", domain.ReleaseTime{Hour: 9, Minute: 0}, false},
		{"00:00", domain.ReleaseTime{Hour: 0, Minute: 0}, false},
		{"23:59", domain.ReleaseTime{Hour: 23, Minute: 59}, false},
		{"24:00", domain.ReleaseTime{}, true},
		{"12:60", domain.ReleaseTime{}, true},
		{"-1:30", domain.ReleaseTime{}, true},
		{"nine", domain.ReleaseTime{}, true},
		{"", domain.ReleaseTime{}, true},
	}

	for _, tt := range tests {
		got, err := domain.ParseReleaseTime(tt.in)
		if tt.wantErr {
			if !errors.Is(err, domain.ErrInvalidReleaseTime) {
				t.Errorf("ParseReleaseTime(%q): expected ErrInvalidReleaseTime, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseReleaseTime(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseReleaseTime(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestReleaseTime_String(t *testing.T) {
	rt := domain.ReleaseTime{Hour: 7, Minute: 5}
	if got := rt.String(); got != "07:05" {
		t.Errorf("String() = %q, want %q", got, "07:05")
	}
}

func TestMarkExecuted_ResetsFailureStreak(t *testing.T) {
	errMsg := "smtp timeout"
	s := &domain.Schedule{
		Status:              domain.StatusActive,
		ConsecutiveFailures: 2,
		LastError:           &errMsg,
		ExecutionCount:      4,
	}

	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	s.MarkExecuted(now)

	if s.ExecutionCount != 5 {
		t.Errorf("ExecutionCount = %d, want 5", s.ExecutionCount)
	}
	if s.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0", s.ConsecutiveFailures)
	}
	if s.LastError != nil {
		t.Errorf("LastError = %q, want nil", *s.LastError)
	}
	if s.LastExecutionAt == nil || !s.LastExecutionAt.Equal(now) {
		t.Errorf("LastExecutionAt = %v, want %v", s.LastExecutionAt, now)
	}
}

func TestMarkFailed_TripsAutoDisableAtThreshold(t *testing.T) {
	s := &domain.Schedule{Status: domain.StatusActive}

	s.MarkFailed("first")
	if s.Status != domain.StatusActive {
		t.Fatalf("status after 1 failure = %s, want active", s.Status)
	}
	s.MarkFailed("second")
	if s.Status != domain.StatusActive {
		t.Fatalf("status after 2 failures = %s, want active", s.Status)
	}
	s.MarkFailed("third")
	if s.Status != domain.StatusFailed {
		t.Fatalf("status after 3 failures = %s, want failed", s.Status)
	}
	if s.ConsecutiveFailures != domain.MaxConsecutiveFailures {
		t.Errorf("ConsecutiveFailures = %d, want %d", s.ConsecutiveFailures, domain.MaxConsecutiveFailures)
	}
	if s.LastError == nil || *s.LastError != "third" {
		t.Errorf("LastError = %v, want %q", s.LastError, "third")
	}
}

func TestMarkFailed_DoesNotTouchNonActiveStatus(t *testing.T) {
	for _, status := range []domain.Status{
		domain.StatusPaused,
		domain.StatusCompleted,
		domain.StatusCancelled,
	} {
		s := &domain.Schedule{Status: status, ConsecutiveFailures: 5}
		s.MarkFailed("boom")
		if s.Status != status {
			t.Errorf("status %s moved to %s after failure", status, s.Status)
		}
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	terminal := map[domain.Status]bool{
		domain.StatusActive:    false,
		domain.StatusPaused:    false,
		domain.StatusCompleted: true,
		domain.StatusFailed:    true,
		domain.StatusCancelled: true,
	}
	for status, want := range terminal {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	s := &domain.Schedule{}
	if s.IsExpired(now) {
		t.Error("schedule without end date reported expired")
	}

	end := now.Add(time.Hour)
	s.EndDate = &end
	if s.IsExpired(now) {
		t.Error("schedule with future end date reported expired")
	}
	if s.IsExpired(end) {
		t.Error("schedule expired exactly at end date; boundary is exclusive")
	}
	if !s.IsExpired(end.Add(time.Second)) {
		t.Error("schedule past end date not reported expired")
	}
}

func TestHasReachedMaxExecutions(t *testing.T) {
	s := &domain.Schedule{ExecutionCount: 100}
	if s.HasReachedMaxExecutions() {
		t.Error("unbounded schedule reported at max executions")
	}

	max := 3
	s.MaxExecutions = &max
	s.ExecutionCount = 2
	if s.HasReachedMaxExecutions() {
		t.Error("2 of 3 executions reported at max")
	}
	s.ExecutionCount = 3
	if !s.HasReachedMaxExecutions() {
		t.Error("3 of 3 executions not reported at max")
	}
}

func TestComplete_ClearsNextExecution(t *testing.T) {
	next := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	s := &domain.Schedule{Status: domain.StatusActive, NextExecutionAt: &next}

	s.Complete()

	if s.Status != domain.StatusCompleted {
		t.Errorf("status = %s, want completed", s.Status)
	}
	if s.NextExecutionAt != nil {
		t.Errorf("NextExecutionAt = %v, want nil", s.NextExecutionAt)
	}
}

func TestLocation(t *testing.T) {
	s := &domain.Schedule{TimeZone: "America/New_York"}
	loc, err := s.Location()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.String() != "America/New_York" {
		t.Errorf("location = %s, want America/New_York", loc)
	}

	s.TimeZone = "Mars/Olympus_Mons"
	if _, err := s.Location(); !errors.Is(err, domain.ErrInvalidTimeZone) {
		t.Errorf("expected ErrInvalidTimeZone, got %v", err)
	}
}
