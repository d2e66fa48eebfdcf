// Package content declares the collaborator contracts the delivery engine
// consumes. The implementations that ship here are thin postgres defaults;
// the real authoring and targeting logic lives outside this service.
package content

import (
	"context"

	"github.com/hqc-labs/huddle-delivery/internal/domain"
)

// Publisher flips a content sequence to its published state.
// Publish is idempotent: publishing an already-published sequence is a no-op.
type Publisher interface {
	Publish(ctx context.Context, sequenceID string) error
}

// TargetResolver computes the notification audience for a sequence from its
// targeting rules (role, discipline, org unit).
type TargetResolver interface {
	Resolve(ctx context.Context, sequenceID string) ([]domain.Recipient, error)
}
