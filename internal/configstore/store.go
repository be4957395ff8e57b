// Package configstore persists form and display configuration
// documents. Documents are saved by full replace; the stringified
// sub-document encoding (step order, conditions, action-button flags)
// happens only in this package's implementations, never in the
// interpreters.
package configstore

import (
	"context"

	"github.com/kingscribe/chancery/model"
)

// FormStore persists FormConfiguration documents.
type FormStore interface {
	// GetByID retrieves a configuration. Returns NOT_FOUND if absent.
	GetByID(ctx context.Context, id string) (model.FormConfiguration, error)

	// GetDefault retrieves the default configuration for an entity type.
	// Returns NOT_FOUND when no default exists.
	GetDefault(ctx context.Context, entityType string) (model.FormConfiguration, error)

	// GetAll lists configurations for an entity type, or every
	// configuration when entityType is empty.
	GetAll(ctx context.Context, entityType string) ([]model.FormConfiguration, error)

	// Create persists a new document. Returns CONFLICT on a duplicate id.
	Create(ctx context.Context, cfg model.FormConfiguration) error

	// Update replaces a document wholesale. Returns NOT_FOUND if absent.
	Update(ctx context.Context, cfg model.FormConfiguration) error

	// Delete removes a document. Returns NOT_FOUND if absent.
	Delete(ctx context.Context, id string) error

	// ListEntityTypes returns the distinct entity types with at least one
	// configuration, sorted.
	ListEntityTypes(ctx context.Context) ([]string, error)
}

// DisplayStore persists DisplayConfiguration documents with the same
// contract as FormStore.
type DisplayStore interface {
	GetByID(ctx context.Context, id string) (model.DisplayConfiguration, error)
	GetDefault(ctx context.Context, entityType string) (model.DisplayConfiguration, error)
	GetAll(ctx context.Context, entityType string) ([]model.DisplayConfiguration, error)
	Create(ctx context.Context, cfg model.DisplayConfiguration) error
	Update(ctx context.Context, cfg model.DisplayConfiguration) error
	Delete(ctx context.Context, id string) error
	ListEntityTypes(ctx context.Context) ([]string, error)
}
