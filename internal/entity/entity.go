// Package entity provides access to the game-content backend: a typed
// registry of per-entity repositories, an HTTP gateway implementation,
// and entity metadata projected from the backend's OpenAPI document.
package entity

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kingscribe/chancery/model"
)

// Repository is the capability bundle for one entity type. Entities are
// schemaless maps at this layer; the interpreters bind them to
// configuration documents.
type Repository interface {
	// GetByID fetches one entity. Returns NOT_FOUND if absent.
	GetByID(ctx context.Context, rctx *model.RequestContext, id string) (map[string]any, error)

	// Create persists a new entity and returns the backend's echo,
	// including generated ids.
	Create(ctx context.Context, rctx *model.RequestContext, payload map[string]any) (map[string]any, error)

	// Update replaces an entity. The payload must carry the id.
	Update(ctx context.Context, rctx *model.RequestContext, payload map[string]any) (map[string]any, error)

	// Delete removes an entity. A referential-constraint rejection
	// surfaces as CONFLICT.
	Delete(ctx context.Context, rctx *model.RequestContext, id string) error

	// SearchPaged runs a paged query.
	SearchPaged(ctx context.Context, rctx *model.RequestContext, query SearchQuery) (PagedResult, error)
}

// SearchQuery describes a paged search.
type SearchQuery struct {
	Term     string
	Page     int
	PageSize int
	SortBy   string
	SortDesc bool
}

// PagedResult is one page of search results.
type PagedResult struct {
	Items      []map[string]any `json:"items"`
	TotalCount int              `json:"totalCount"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
}

// MetadataProvider serves entity metadata for field pickers and the
// normalizer's relationship classification.
type MetadataProvider interface {
	GetEntityMetadata(ctx context.Context, entityType string) (model.EntityMetadata, error)
}

// Registry maps entity type names to their repositories. Lookup is
// case-insensitive so URL segments and configuration documents don't
// have to agree on casing.
type Registry struct {
	mu    sync.RWMutex
	repos map[string]Repository // key: lowercased entity type
	names map[string]string     // lowercased -> canonical
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		repos: make(map[string]Repository),
		names: make(map[string]string),
	}
}

// Register adds a repository for an entity type, replacing any previous
// registration.
func (r *Registry) Register(entityType string, repo Repository) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(entityType)
	r.repos[key] = repo
	r.names[key] = entityType
}

// Repository resolves the repository for an entity type. Returns
// NOT_FOUND for unregistered types.
func (r *Registry) Repository(entityType string) (Repository, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	repo, ok := r.repos[strings.ToLower(entityType)]
	if !ok {
		return nil, model.NewNotFoundError(
			fmt.Sprintf("entity type %q is not registered", entityType),
		)
	}
	return repo, nil
}

// CanonicalName returns the registered spelling of an entity type name,
// or the input unchanged when the type is not registered.
func (r *Registry) CanonicalName(entityType string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name, ok := r.names[strings.ToLower(entityType)]; ok {
		return name
	}
	return entityType
}

// EntityTypes returns the registered canonical names, sorted.
func (r *Registry) EntityTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.names))
	for _, name := range r.names {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}
