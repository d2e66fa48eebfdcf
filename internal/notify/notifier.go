package notify

import (
	"context"

	"github.com/hqc-labs/huddle-delivery/internal/domain"
)

// Notifier delivers release, reminder, and failure messages. All sends are
// best-effort fire-and-forget; callers decide whether a send failure counts
// against the schedule.
type Notifier interface {
	SendRelease(ctx context.Context, recipients []domain.Recipient, seq *domain.SequenceInfo) error
	SendReminder(ctx context.Context, recipients []domain.Recipient, seq *domain.SequenceInfo) error
	SendFailureAlert(ctx context.Context, schedule *domain.Schedule, message string) error
}
