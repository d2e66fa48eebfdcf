package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hqc-labs/huddle-delivery/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SequenceRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewSequenceRepository(pool *pgxpool.Pool, logger *slog.Logger) *SequenceRepository {
	return &SequenceRepository{pool: pool, logger: logger.With("component", "sequence_repo")}
}

func (r *SequenceRepository) GetInfo(ctx context.Context, sequenceID string) (*domain.SequenceInfo, error) {
	var info domain.SequenceInfo
	err := r.pool.QueryRow(ctx, `
		SELECT sequence_id, agency_id, title,
		       sequence_status = 'published', published_at
		FROM huddle_sequences
		WHERE sequence_id = $1 AND is_active`,
		sequenceID,
	).Scan(&info.ID, &info.AgencyID, &info.Title, &info.Published, &info.PublishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSequenceNotFound
		}
		return nil, fmt.Errorf("get sequence info: %w", err)
	}
	return &info, nil
}

// Publish flips a sequence to published. Re-publishing is a no-op, which is
// what makes executor retries safe.
func (r *SequenceRepository) Publish(ctx context.Context, sequenceID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE huddle_sequences
		SET sequence_status = 'published', published_at = NOW(), updated_at = NOW()
		WHERE sequence_id = $1 AND sequence_status <> 'published'`,
		sequenceID)
	if err != nil {
		return fmt.Errorf("publish sequence: %w", err)
	}
	if tag.RowsAffected() > 0 {
		r.logger.InfoContext(ctx, "sequence published", "sequence_id", sequenceID)
		return nil
	}

	// Zero rows means either already published (fine) or missing (not fine).
	if _, err := r.GetInfo(ctx, sequenceID); err != nil {
		return err
	}
	return nil
}

// Resolve returns the sequence's agency audience. The full targeting-rule
// engine (role, discipline, org unit filters) lives outside this service;
// this default resolver delivers to every active user of the owning agency.
func (r *SequenceRepository) Resolve(ctx context.Context, sequenceID string) ([]domain.Recipient, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.user_id, u.email, u.name
		FROM users u
		JOIN huddle_sequences s ON s.agency_id = u.agency_id
		WHERE s.sequence_id = $1 AND u.is_active`,
		sequenceID)
	if err != nil {
		return nil, fmt.Errorf("resolve targets: %w", err)
	}
	defer rows.Close()

	var recipients []domain.Recipient
	for rows.Next() {
		var rec domain.Recipient
		if err := rows.Scan(&rec.UserID, &rec.Email, &rec.Name); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		recipients = append(recipients, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipients: %w", err)
	}
	return recipients, nil
}
