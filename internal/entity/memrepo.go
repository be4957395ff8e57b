package entity

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/kingscribe/chancery/model"
)

// MemoryRepository is an in-memory Repository for testing and local
// runs. Entities are stored by stringified id.
type MemoryRepository struct {
	mu         sync.RWMutex
	entityType string
	items      map[string]map[string]any

	// FailDeletes simulates referential-constraint rejections: ids in
	// this set refuse deletion with CONFLICT.
	FailDeletes map[string]bool

	// FailNextCreate makes the next Create call fail. For exercising
	// submission retry behavior in tests.
	FailNextCreate bool
}

// NewMemoryRepository creates an empty repository for one entity type.
func NewMemoryRepository(entityType string) *MemoryRepository {
	return &MemoryRepository{
		entityType:  entityType,
		items:       make(map[string]map[string]any),
		FailDeletes: make(map[string]bool),
	}
}

// Seed inserts an entity directly, generating an id when absent. For
// test setup.
func (r *MemoryRepository) Seed(item map[string]any) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := fmt.Sprint(item["id"])
	if id == "" || id == "<nil>" {
		id = uuid.NewString()
		item["id"] = id
	}
	r.items[id] = item
	return id
}

// GetByID fetches one entity.
func (r *MemoryRepository) GetByID(_ context.Context, _ *model.RequestContext, id string) (map[string]any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return nil, model.NewNotFoundError(
			fmt.Sprintf("%s %q not found", r.entityType, id),
		)
	}
	return cloneEntity(item), nil
}

// Create persists a new entity, assigning an id when the payload has
// none.
func (r *MemoryRepository) Create(_ context.Context, _ *model.RequestContext, payload map[string]any) (map[string]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailNextCreate {
		r.FailNextCreate = false
		return nil, model.NewBackendUnavailableError()
	}

	item := cloneEntity(payload)
	id := fmt.Sprint(item["id"])
	if id == "" || id == "<nil>" {
		id = uuid.NewString()
		item["id"] = id
	}
	if _, exists := r.items[id]; exists {
		return nil, model.NewConflictError(
			fmt.Sprintf("%s %q already exists", r.entityType, id),
		)
	}
	r.items[id] = item
	return cloneEntity(item), nil
}

// Update replaces an entity.
func (r *MemoryRepository) Update(_ context.Context, _ *model.RequestContext, payload map[string]any) (map[string]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := fmt.Sprint(payload["id"])
	if _, exists := r.items[id]; !exists {
		return nil, model.NewNotFoundError(
			fmt.Sprintf("%s %q not found", r.entityType, id),
		)
	}
	item := cloneEntity(payload)
	r.items[id] = item
	return cloneEntity(item), nil
}

// Delete removes an entity, honoring FailDeletes.
func (r *MemoryRepository) Delete(_ context.Context, _ *model.RequestContext, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[id]; !exists {
		return model.NewNotFoundError(
			fmt.Sprintf("%s %q not found", r.entityType, id),
		)
	}
	if r.FailDeletes[id] {
		return model.NewConflictError(
			fmt.Sprintf("%s %q has dependents and cannot be deleted", r.entityType, id),
		)
	}
	delete(r.items, id)
	return nil
}

// SearchPaged returns entities whose "name" contains the term,
// case-insensitively, sorted by id.
func (r *MemoryRepository) SearchPaged(_ context.Context, _ *model.RequestContext, query SearchQuery) (PagedResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []map[string]any
	for _, item := range r.items {
		if query.Term != "" {
			name := fmt.Sprint(item["name"])
			if !strings.Contains(strings.ToLower(name), strings.ToLower(query.Term)) {
				continue
			}
		}
		matched = append(matched, cloneEntity(item))
	}
	sort.Slice(matched, func(i, j int) bool {
		return fmt.Sprint(matched[i]["id"]) < fmt.Sprint(matched[j]["id"])
	})

	total := len(matched)
	page := query.Page
	if page < 1 {
		page = 1
	}
	size := query.PageSize
	if size < 1 {
		size = 20
	}
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	return PagedResult{
		Items:      matched[start:end],
		TotalCount: total,
		Page:       page,
		PageSize:   size,
	}, nil
}

func cloneEntity(item map[string]any) map[string]any {
	out := make(map[string]any, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}
