package recurrence

import (
	"fmt"
	"time"

	"github.com/hqc-labs/huddle-delivery/internal/domain"
)

// CronEvaluator computes the next occurrence of a cron expression strictly
// after the given instant. The instant is already in the schedule's zone.
type CronEvaluator interface {
	Next(expr string, after time.Time) (time.Time, error)
}

// Calculator derives the next due instant for a schedule. It is pure: no
// ambient clock, the reference instant always comes in as an argument.
type Calculator struct {
	cron CronEvaluator // nil disables the custom frequency
}

func NewCalculator(cron CronEvaluator) *Calculator {
	return &Calculator{cron: cron}
}

// Next returns the next due instant strictly after ref, as UTC.
// ok is false when the schedule has no further computable occurrence:
// IMMEDIATE (fires once, externally triggered) and CUSTOM without an
// evaluator or expression.
//
// A future StartDate moves the reference forward, so a schedule never fires
// before its configured start.
func (c *Calculator) Next(s *domain.Schedule, ref time.Time) (time.Time, bool, error) {
	if s.Frequency == domain.FrequencyImmediate {
		return time.Time{}, false, nil
	}

	loc, err := s.Location()
	if err != nil {
		return time.Time{}, false, err
	}

	base := ref
	if s.StartDate.After(base) {
		base = s.StartDate
	}
	base = base.In(loc)

	var next time.Time
	switch s.Frequency {
	case domain.FrequencyDaily:
		next = c.nextDaily(s, base, loc)
	case domain.FrequencyWeekly:
		next, err = c.nextWeekly(s, base, loc)
		if err != nil {
			return time.Time{}, false, err
		}
	case domain.FrequencyMonthly:
		next = c.nextMonthly(s, base, loc)
	case domain.FrequencyCustom:
		if c.cron == nil || s.CronExpr == nil || *s.CronExpr == "" {
			return time.Time{}, false, nil
		}
		next, err = c.cron.Next(*s.CronExpr, base)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("evaluate cron for schedule %s: %w", s.ID, err)
		}
	default:
		return time.Time{}, false, fmt.Errorf("unknown frequency type %q", s.Frequency)
	}

	return next.UTC(), true, nil
}

func (c *Calculator) nextDaily(s *domain.Schedule, base time.Time, loc *time.Location) time.Time {
	cand := atReleaseTime(base.Year(), base.Month(), base.Day(), s.ReleaseTime, loc)
	if !cand.After(base) {
		cand = atReleaseTime(base.Year(), base.Month(), base.Day()+1, s.ReleaseTime, loc)
	}
	return cand
}

func (c *Calculator) nextWeekly(s *domain.Schedule, base time.Time, loc *time.Location) (time.Time, error) {
	if len(s.DaysOfWeek) == 0 {
		return time.Time{}, domain.ErrEmptyDaysOfWeek
	}

	// Day 0 only matches when the release time is still ahead; day 7 covers
	// the wrap to the same weekday of the following week.
	for i := 0; i <= 7; i++ {
		day := base.AddDate(0, 0, i)
		if !s.HasDay(day.Weekday()) {
			continue
		}
		cand := atReleaseTime(day.Year(), day.Month(), day.Day(), s.ReleaseTime, loc)
		if cand.After(base) {
			return cand, nil
		}
	}
	return time.Time{}, fmt.Errorf("no weekly occurrence found for schedule %s", s.ID)
}

// nextMonthly anchors to StartDate's day-of-month, clamped to the target
// month's length (a schedule anchored on the 31st fires on Feb 28/29).
func (c *Calculator) nextMonthly(s *domain.Schedule, base time.Time, loc *time.Location) time.Time {
	anchor := s.StartDate.In(loc).Day()

	cand := monthlyAt(base.Year(), base.Month(), anchor, s.ReleaseTime, loc)
	if !cand.After(base) {
		following := time.Date(base.Year(), base.Month()+1, 1, 0, 0, 0, 0, loc)
		cand = monthlyAt(following.Year(), following.Month(), anchor, s.ReleaseTime, loc)
	}
	return cand
}

func monthlyAt(year int, month time.Month, day int, rt domain.ReleaseTime, loc *time.Location) time.Time {
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return atReleaseTime(year, month, day, rt, loc)
}

func atReleaseTime(year int, month time.Month, day int, rt domain.ReleaseTime, loc *time.Location) time.Time {
	return time.Date(year, month, day, rt.Hour, rt.Minute, 0, 0, loc)
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the following month normalizes to this month's last day.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
