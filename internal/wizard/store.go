package wizard

import (
	"context"

	"github.com/kingscribe/chancery/model"
)

// ProgressStore persists wizard sessions.
type ProgressStore interface {
	// Create persists a new progress record.
	Create(ctx context.Context, progress model.SubmissionProgress) error

	// GetByID retrieves a progress record. Returns NOT_FOUND if absent.
	GetByID(ctx context.Context, id string) (model.SubmissionProgress, error)

	// Update persists an updated record with optimistic locking. The
	// version must match the stored version; returns CONFLICT otherwise.
	Update(ctx context.Context, progress model.SubmissionProgress) error

	// FindByUser lists a user's progress records, optionally filtered by
	// entity type. Terminal records are excluded.
	FindByUser(ctx context.Context, userID, entityType string) ([]model.SubmissionProgress, error)

	// Delete removes a progress record. Returns NOT_FOUND if absent.
	Delete(ctx context.Context, id string) error
}
