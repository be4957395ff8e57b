package configstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kingscribe/chancery/model"
)

// MemoryFormStore is an in-memory FormStore for testing and local runs.
type MemoryFormStore struct {
	mu   sync.RWMutex
	docs map[string]model.FormConfiguration // key: configuration ID
}

// NewMemoryFormStore creates a new in-memory form configuration store.
func NewMemoryFormStore() *MemoryFormStore {
	return &MemoryFormStore{docs: make(map[string]model.FormConfiguration)}
}

// GetByID retrieves a configuration by ID.
func (s *MemoryFormStore) GetByID(_ context.Context, id string) (model.FormConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, exists := s.docs[id]
	if !exists {
		return model.FormConfiguration{}, model.NewNotFoundError(
			fmt.Sprintf("form configuration %q not found", id),
		)
	}
	return cfg, nil
}

// GetDefault retrieves the default configuration for an entity type.
func (s *MemoryFormStore) GetDefault(_ context.Context, entityType string) (model.FormConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, cfg := range s.docs {
		if cfg.IsDefault && strings.EqualFold(cfg.EntityName, entityType) {
			return cfg, nil
		}
	}
	return model.FormConfiguration{}, model.NewNotFoundError(
		fmt.Sprintf("no default form configuration for entity type %q", entityType),
	)
}

// GetAll lists configurations for an entity type, sorted by name.
func (s *MemoryFormStore) GetAll(_ context.Context, entityType string) ([]model.FormConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.FormConfiguration
	for _, cfg := range s.docs {
		if entityType != "" && !strings.EqualFold(cfg.EntityName, entityType) {
			continue
		}
		result = append(result, cfg)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ConfigurationName < result[j].ConfigurationName
	})
	return result, nil
}

// Create persists a new document.
func (s *MemoryFormStore) Create(_ context.Context, cfg model.FormConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[cfg.ID]; exists {
		return model.NewConflictError(
			fmt.Sprintf("form configuration %q already exists", cfg.ID),
		)
	}
	s.docs[cfg.ID] = cfg
	return nil
}

// Update replaces a document wholesale.
func (s *MemoryFormStore) Update(_ context.Context, cfg model.FormConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[cfg.ID]; !exists {
		return model.NewNotFoundError(
			fmt.Sprintf("form configuration %q not found", cfg.ID),
		)
	}
	s.docs[cfg.ID] = cfg
	return nil
}

// Delete removes a document.
func (s *MemoryFormStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[id]; !exists {
		return model.NewNotFoundError(
			fmt.Sprintf("form configuration %q not found", id),
		)
	}
	delete(s.docs, id)
	return nil
}

// ListEntityTypes returns the distinct entity types, sorted.
func (s *MemoryFormStore) ListEntityTypes(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var types []string
	for _, cfg := range s.docs {
		if !seen[cfg.EntityName] {
			seen[cfg.EntityName] = true
			types = append(types, cfg.EntityName)
		}
	}
	sort.Strings(types)
	return types, nil
}

// MemoryDisplayStore is an in-memory DisplayStore for testing and local
// runs.
type MemoryDisplayStore struct {
	mu   sync.RWMutex
	docs map[string]model.DisplayConfiguration // key: configuration ID
}

// NewMemoryDisplayStore creates a new in-memory display configuration
// store.
func NewMemoryDisplayStore() *MemoryDisplayStore {
	return &MemoryDisplayStore{docs: make(map[string]model.DisplayConfiguration)}
}

// GetByID retrieves a configuration by ID.
func (s *MemoryDisplayStore) GetByID(_ context.Context, id string) (model.DisplayConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, exists := s.docs[id]
	if !exists {
		return model.DisplayConfiguration{}, model.NewNotFoundError(
			fmt.Sprintf("display configuration %q not found", id),
		)
	}
	return cfg, nil
}

// GetDefault retrieves the default configuration for an entity type.
func (s *MemoryDisplayStore) GetDefault(_ context.Context, entityType string) (model.DisplayConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, cfg := range s.docs {
		if cfg.IsDefault && strings.EqualFold(cfg.EntityTypeName, entityType) {
			return cfg, nil
		}
	}
	return model.DisplayConfiguration{}, model.NewNotFoundError(
		fmt.Sprintf("no default display configuration for entity type %q", entityType),
	)
}

// GetAll lists configurations for an entity type, sorted by name.
func (s *MemoryDisplayStore) GetAll(_ context.Context, entityType string) ([]model.DisplayConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.DisplayConfiguration
	for _, cfg := range s.docs {
		if entityType != "" && !strings.EqualFold(cfg.EntityTypeName, entityType) {
			continue
		}
		result = append(result, cfg)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// Create persists a new document.
func (s *MemoryDisplayStore) Create(_ context.Context, cfg model.DisplayConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[cfg.ID]; exists {
		return model.NewConflictError(
			fmt.Sprintf("display configuration %q already exists", cfg.ID),
		)
	}
	s.docs[cfg.ID] = cfg
	return nil
}

// Update replaces a document wholesale.
func (s *MemoryDisplayStore) Update(_ context.Context, cfg model.DisplayConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[cfg.ID]; !exists {
		return model.NewNotFoundError(
			fmt.Sprintf("display configuration %q not found", cfg.ID),
		)
	}
	s.docs[cfg.ID] = cfg
	return nil
}

// Delete removes a document.
func (s *MemoryDisplayStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[id]; !exists {
		return model.NewNotFoundError(
			fmt.Sprintf("display configuration %q not found", id),
		)
	}
	delete(s.docs, id)
	return nil
}

// ListEntityTypes returns the distinct entity types, sorted.
func (s *MemoryDisplayStore) ListEntityTypes(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var types []string
	for _, cfg := range s.docs {
		if !seen[cfg.EntityTypeName] {
			seen[cfg.EntityTypeName] = true
			types = append(types, cfg.EntityTypeName)
		}
	}
	sort.Strings(types)
	return types, nil
}
