package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/hqc-labs/huddle-delivery/internal/domain"
	"github.com/robfig/cron/v3"
)

// StandardCronEvaluator evaluates five-field cron expressions.
type StandardCronEvaluator struct{}

func (StandardCronEvaluator) Next(expr string, after time.Time) (time.Time, error) {
	spec, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", domain.ErrInvalidCronExpr, err)
	}

	next := spec.Next(after)
	if next.IsZero() {
		return time.Time{}, errors.New("cron expression has no future occurrence")
	}
	return next, nil
}
