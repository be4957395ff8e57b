package wizard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kingscribe/chancery/model"
)

// MemoryProgressStore is an in-memory ProgressStore for testing and
// local runs.
type MemoryProgressStore struct {
	mu      sync.RWMutex
	records map[string]model.SubmissionProgress // key: progress ID

	// FailNextUpdate makes the next Update call fail. For exercising the
	// forward-navigation atomicity contract in tests.
	FailNextUpdate bool
}

// NewMemoryProgressStore creates a new in-memory progress store.
func NewMemoryProgressStore() *MemoryProgressStore {
	return &MemoryProgressStore{records: make(map[string]model.SubmissionProgress)}
}

// Create persists a new progress record.
func (s *MemoryProgressStore) Create(_ context.Context, p model.SubmissionProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[p.ID]; exists {
		return model.NewConflictError(
			fmt.Sprintf("progress %q already exists", p.ID),
		)
	}
	s.records[p.ID] = p
	return nil
}

// GetByID retrieves a progress record.
func (s *MemoryProgressStore) GetByID(_ context.Context, id string) (model.SubmissionProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.records[id]
	if !exists {
		return model.SubmissionProgress{}, model.NewNotFoundError(
			fmt.Sprintf("progress %q not found", id),
		)
	}
	return p, nil
}

// Update persists an updated record with optimistic locking.
func (s *MemoryProgressStore) Update(_ context.Context, p model.SubmissionProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailNextUpdate {
		s.FailNextUpdate = false
		return model.NewBackendUnavailableError()
	}

	existing, exists := s.records[p.ID]
	if !exists {
		return model.NewNotFoundError(
			fmt.Sprintf("progress %q not found", p.ID),
		)
	}
	if existing.Version != p.Version {
		return model.NewConflictError(
			fmt.Sprintf("progress %q version conflict (expected %d, got %d)", p.ID, p.Version, existing.Version),
		)
	}

	p.Version++
	p.UpdatedAt = time.Now().UTC()
	s.records[p.ID] = p
	return nil
}

// FindByUser lists a user's non-terminal progress records, most
// recently updated first.
func (s *MemoryProgressStore) FindByUser(_ context.Context, userID, entityType string) ([]model.SubmissionProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.SubmissionProgress
	for _, p := range s.records {
		if p.UserID != userID {
			continue
		}
		if entityType != "" && !strings.EqualFold(p.EntityTypeName, entityType) {
			continue
		}
		if p.Terminal() {
			continue
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

// Delete removes a progress record.
func (s *MemoryProgressStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[id]; !exists {
		return model.NewNotFoundError(
			fmt.Sprintf("progress %q not found", id),
		)
	}
	delete(s.records, id)
	return nil
}

// Len returns the number of stored records. For testing.
func (s *MemoryProgressStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
