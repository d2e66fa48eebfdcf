package recurrence_test

import (
	"errors"
	"testing"
	"time"

	"github.com/hqc-labs/huddle-delivery/internal/domain"
	"github.com/hqc-labs/huddle-delivery/internal/recurrence"
)

// ---- fakes ----

type fakeCronEvaluator struct {
	next func(expr string, after time.Time) (time.Time, error)
}

func (f *fakeCronEvaluator) Next(expr string, after time.Time) (time.Time, error) {
	return f.next(expr, after)
}

// ---- helpers ----

func mustReleaseTime(t *testing.T, s string) domain.ReleaseTime {
	t.Helper()
	rt, err := domain.ParseReleaseTime(s)
	if err != nil {
		t.Fatalf("parse release time %q: %v", s, err)
	}
	return rt
}

func dailySchedule(t *testing.T, tz, release string, start time.Time) *domain.Schedule {
	t.Helper()
	return &domain.Schedule{
		ID:          "sched-1",
		Frequency:   domain.FrequencyDaily,
		StartDate:   start,
		ReleaseTime: mustReleaseTime(t, release),
		TimeZone:    tz,
	}
}

func utc(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

// ---- daily ----

func TestNext_DailyBeforeReleaseTime_FiresSameDay(t *testing.T) {
	calc := recurrence.NewCalculator(nil)
	s := dailySchedule(t, "UTC", "09:00", utc(2026, 1, 1, 0, 0))

	next, ok, err := calc.Next(s, utc(2026, 3, 3, 7, 30))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected an occurrence")
	}
	if want := utc(2026, 3, 3, 9, 0); !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestNext_DailyAfterReleaseTime_FiresNextDay(t *testing.T) {
	calc := recurrence.NewCalculator(nil)
	s := dailySchedule(t, "UTC", "09:00", utc(2026, 1, 1, 0, 0))

	next, _, err := calc.Next(s, utc(2026, 3, 3, 10, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := utc(2026, 3, 4, 9, 0); !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestNext_DailyExactlyAtReleaseTime_FiresNextDay(t *testing.T) {
	calc := recurrence.NewCalculator(nil)
	s := dailySchedule(t, "UTC", "09:00", utc(2026, 1, 1, 0, 0))

	next, _, err := calc.Next(s, utc(2026, 3, 3, 9, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The next occurrence is strictly after the reference.
	if want := utc(2026, 3, 4, 9, 0); !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestNext_DailyObservesScheduleZoneAcrossDST(t *testing.T) {
	calc := recurrence.NewCalculator(nil)
	s := dailySchedule(t, "America/New_York", "09:00", utc(2026, 1, 1, 0, 0))

	// Mar 7 2026: EST, 09:00 local is 14:00 UTC.
	next, _, err := calc.Next(s, utc(2026, 3, 7, 1, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := utc(2026, 3, 7, 14, 0); !next.Equal(want) {
		t.Errorf("next before DST = %v, want %v", next, want)
	}

	// Mar 8 2026: DST begins, 09:00 local is 13:00 UTC. The UTC instant
	// shifts but the local wall time does not.
	next, _, err = calc.Next(s, next)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := utc(2026, 3, 8, 13, 0); !next.Equal(want) {
		t.Errorf("next after DST = %v, want %v", next, want)
	}
}

func TestNext_FutureStartDateDefersFirstOccurrence(t *testing.T) {
	calc := recurrence.NewCalculator(nil)
	s := dailySchedule(t, "UTC", "09:00", utc(2026, 9, 1, 0, 0))

	next, _, err := calc.Next(s, utc(2026, 8, 20, 12, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := utc(2026, 9, 1, 9, 0); !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

// ---- weekly ----

func weeklySchedule(t *testing.T, days []time.Weekday) *domain.Schedule {
	t.Helper()
	return &domain.Schedule{
		ID:          "sched-w",
		Frequency:   domain.FrequencyWeekly,
		StartDate:   utc(2026, 1, 1, 0, 0),
		ReleaseTime: mustReleaseTime(t, "09:00"),
		TimeZone:    "UTC",
		DaysOfWeek:  days,
	}
}

func TestNext_WeeklySkipsToNextConfiguredDay(t *testing.T) {
	calc := recurrence.NewCalculator(nil)
	s := weeklySchedule(t, []time.Weekday{time.Monday, time.Wednesday})

	// Tuesday Mar 3 2026 -> Wednesday Mar 4.
	next, _, err := calc.Next(s, utc(2026, 3, 3, 12, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := utc(2026, 3, 4, 9, 0); !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestNext_WeeklySameDayAfterReleaseTime_WrapsToNextWeek(t *testing.T) {
	calc := recurrence.NewCalculator(nil)
	s := weeklySchedule(t, []time.Weekday{time.Monday})

	// Monday Mar 2 2026 at 10:00, past the 09:00 release -> Monday Mar 9.
	next, _, err := calc.Next(s, utc(2026, 3, 2, 10, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := utc(2026, 3, 9, 9, 0); !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestNext_WeeklySameDayBeforeReleaseTime_FiresToday(t *testing.T) {
	calc := recurrence.NewCalculator(nil)
	s := weeklySchedule(t, []time.Weekday{time.Monday})

	next, _, err := calc.Next(s, utc(2026, 3, 2, 8, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := utc(2026, 3, 2, 9, 0); !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestNext_WeeklyWithoutDays_Errors(t *testing.T) {
	calc := recurrence.NewCalculator(nil)
	s := weeklySchedule(t, nil)

	if _, _, err := calc.Next(s, utc(2026, 3, 2, 8, 0)); !errors.Is(err, domain.ErrEmptyDaysOfWeek) {
		t.Errorf("expected ErrEmptyDaysOfWeek, got %v", err)
	}
}

// ---- monthly ----

func monthlySchedule(t *testing.T, start time.Time) *domain.Schedule {
	t.Helper()
	return &domain.Schedule{
		ID:          "sched-m",
		Frequency:   domain.FrequencyMonthly,
		StartDate:   start,
		ReleaseTime: mustReleaseTime(t, "10:00"),
		TimeZone:    "UTC",
	}
}

func TestNext_MonthlyAnchorsToStartDay(t *testing.T) {
	calc := recurrence.NewCalculator(nil)
	s := monthlySchedule(t, utc(2026, 1, 15, 0, 0))

	next, _, err := calc.Next(s, utc(2026, 3, 1, 0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := utc(2026, 3, 15, 10, 0); !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}

	// Past this month's anchor -> next month.
	next, _, err = calc.Next(s, utc(2026, 3, 20, 0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := utc(2026, 4, 15, 10, 0); !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestNext_MonthlyClampsToShortMonths(t *testing.T) {
	calc := recurrence.NewCalculator(nil)
	s := monthlySchedule(t, utc(2026, 1, 31, 0, 0))

	// February 2026 has 28 days; the anchor on the 31st clamps.
	next, _, err := calc.Next(s, utc(2026, 2, 1, 0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := utc(2026, 2, 28, 10, 0); !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}

	// March restores the full anchor day.
	next, _, err = calc.Next(s, next)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := utc(2026, 3, 31, 10, 0); !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

// ---- immediate and custom ----

func TestNext_ImmediateHasNoComputableOccurrence(t *testing.T) {
	calc := recurrence.NewCalculator(nil)
	s := &domain.Schedule{Frequency: domain.FrequencyImmediate, TimeZone: "UTC"}

	_, ok, err := calc.Next(s, utc(2026, 3, 3, 0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("immediate schedule produced an occurrence")
	}
}

func TestNext_CustomDelegatesToEvaluator(t *testing.T) {
	want := utc(2026, 4, 1, 6, 0)
	var gotExpr string
	eval := &fakeCronEvaluator{
		next: func(expr string, _ time.Time) (time.Time, error) {
			gotExpr = expr
			return want, nil
		},
	}
	calc := recurrence.NewCalculator(eval)

	expr := "0 6 1 * *"
	s := &domain.Schedule{
		ID:        "sched-c",
		Frequency: domain.FrequencyCustom,
		StartDate: utc(2026, 1, 1, 0, 0),
		TimeZone:  "UTC",
		CronExpr:  &expr,
	}

	next, ok, err := calc.Next(s, utc(2026, 3, 3, 0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected an occurrence")
	}
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
	if gotExpr != expr {
		t.Errorf("evaluator got expression %q, want %q", gotExpr, expr)
	}
}

func TestNext_CustomEvaluatorErrorIsSurfaced(t *testing.T) {
	cronErr := errors.New("bad field count")
	eval := &fakeCronEvaluator{
		next: func(string, time.Time) (time.Time, error) { return time.Time{}, cronErr },
	}
	calc := recurrence.NewCalculator(eval)

	expr := "not a cron"
	s := &domain.Schedule{
		ID:        "sched-c",
		Frequency: domain.FrequencyCustom,
		TimeZone:  "UTC",
		CronExpr:  &expr,
	}

	if _, _, err := calc.Next(s, utc(2026, 3, 3, 0, 0)); !errors.Is(err, cronErr) {
		t.Errorf("expected evaluator error, got %v", err)
	}
}

func TestNext_CustomWithoutExpression_NoOccurrence(t *testing.T) {
	calc := recurrence.NewCalculator(nil)
	s := &domain.Schedule{Frequency: domain.FrequencyCustom, TimeZone: "UTC"}

	_, ok, err := calc.Next(s, utc(2026, 3, 3, 0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("custom schedule without expression produced an occurrence")
	}
}

// ---- general properties ----

func TestNext_AlwaysStrictlyAfterReference(t *testing.T) {
	calc := recurrence.NewCalculator(nil)
	schedules := []*domain.Schedule{
		dailySchedule(t, "America/Chicago", "06:30", utc(2026, 1, 1, 0, 0)),
		weeklySchedule(t, []time.Weekday{time.Tuesday, time.Friday}),
		monthlySchedule(t, utc(2026, 1, 29, 0, 0)),
	}

	for _, s := range schedules {
		ref := utc(2026, 2, 27, 5, 0)
		for i := 0; i < 12; i++ {
			next, ok, err := calc.Next(s, ref)
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", s.Frequency, err)
			}
			if !ok {
				t.Fatalf("%s: expected an occurrence", s.Frequency)
			}
			if !next.After(ref) {
				t.Fatalf("%s: next %v not strictly after ref %v", s.Frequency, next, ref)
			}
			ref = next
		}
	}
}

func TestNext_ReturnsUTC(t *testing.T) {
	calc := recurrence.NewCalculator(nil)
	s := dailySchedule(t, "Asia/Tokyo", "08:00", utc(2026, 1, 1, 0, 0))

	next, _, err := calc.Next(s, utc(2026, 3, 3, 0, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Location() != time.UTC {
		t.Errorf("next returned in %v, want UTC", next.Location())
	}
}

func TestStandardCronEvaluator(t *testing.T) {
	eval := recurrence.StandardCronEvaluator{}

	after := utc(2026, 3, 3, 5, 0)
	next, err := eval.Next("0 6 * * *", after)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := utc(2026, 3, 3, 6, 0); !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}

	if _, err := eval.Next("not a cron", after); !errors.Is(err, domain.ErrInvalidCronExpr) {
		t.Errorf("expected ErrInvalidCronExpr, got %v", err)
	}
}
