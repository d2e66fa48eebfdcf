package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hqc-labs/huddle-delivery/internal/domain"
	"github.com/resend/resend-go/v2"
)

// LogNotifier logs notifications instead of sending them — used in ENV=local.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "log_notifier")}
}

func (n *LogNotifier) SendRelease(_ context.Context, recipients []domain.Recipient, seq *domain.SequenceInfo) error {
	n.logger.Info("release notification (local dev)", "sequence_id", seq.ID, "title", seq.Title, "recipients", len(recipients))
	return nil
}

func (n *LogNotifier) SendReminder(_ context.Context, recipients []domain.Recipient, seq *domain.SequenceInfo) error {
	n.logger.Info("reminder notification (local dev)", "sequence_id", seq.ID, "title", seq.Title, "recipients", len(recipients))
	return nil
}

func (n *LogNotifier) SendFailureAlert(_ context.Context, schedule *domain.Schedule, message string) error {
	n.logger.Warn("schedule failure alert (local dev)", "schedule_id", schedule.ID, "error", message)
	return nil
}

// EmailNotifier sends via the Resend API — used in staging/production.
type EmailNotifier struct {
	client     *resend.Client
	from       string
	alertEmail string
}

func NewEmailNotifier(apiKey, from, alertEmail string) *EmailNotifier {
	return &EmailNotifier{
		client:     resend.NewClient(apiKey),
		from:       from,
		alertEmail: alertEmail,
	}
}

func (n *EmailNotifier) SendRelease(ctx context.Context, recipients []domain.Recipient, seq *domain.SequenceInfo) error {
	subject := fmt.Sprintf("New training available: %s", seq.Title)
	body := fmt.Sprintf("<p>A new training sequence, <strong>%s</strong>, has been released for you.</p>", seq.Title)
	return n.send(ctx, recipients, subject, body)
}

func (n *EmailNotifier) SendReminder(ctx context.Context, recipients []domain.Recipient, seq *domain.SequenceInfo) error {
	subject := fmt.Sprintf("Upcoming training: %s", seq.Title)
	body := fmt.Sprintf("<p>The training sequence <strong>%s</strong> will be released soon.</p>", seq.Title)
	return n.send(ctx, recipients, subject, body)
}

func (n *EmailNotifier) SendFailureAlert(ctx context.Context, schedule *domain.Schedule, message string) error {
	if n.alertEmail == "" {
		return nil
	}
	params := &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{n.alertEmail},
		Subject: fmt.Sprintf("Delivery schedule %s failing", schedule.ID),
		Html: fmt.Sprintf(
			"<p>Schedule <strong>%s</strong> (sequence %s) failed: %s</p><p>Consecutive failures: %d</p>",
			schedule.ID, schedule.SequenceID, message, schedule.ConsecutiveFailures,
		),
	}
	if _, err := n.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send failure alert: %w", err)
	}
	return nil
}

func (n *EmailNotifier) send(ctx context.Context, recipients []domain.Recipient, subject, body string) error {
	if len(recipients) == 0 {
		return nil
	}
	to := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if r.Email != "" {
			to = append(to, r.Email)
		}
	}
	if len(to) == 0 {
		return nil
	}

	params := &resend.SendEmailRequest{
		From:    n.from,
		To:      to,
		Subject: subject,
		Html:    body,
	}
	if _, err := n.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// NewNotifier returns a LogNotifier for ENV=local, EmailNotifier otherwise.
func NewNotifier(env, apiKey, from, alertEmail string, logger *slog.Logger) Notifier {
	if env == "local" {
		return NewLogNotifier(logger)
	}
	return NewEmailNotifier(apiKey, from, alertEmail)
}
