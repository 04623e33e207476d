package memory

import (
	"context"
	"sort"
	"sync"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunRecord // keyed by run_id
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		data: make(map[string]*domain.RunRecord),
	}
}

// Insert adds a new run record. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(_ context.Context, r *domain.RunRecord) error {
	if r == nil || r.RunID == "" || r.RunName == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *r
	s.data[r.RunID] = &copy
	return nil
}

// GetByID retrieves a run by its ID.
func (s *RunStore) GetByID(_ context.Context, runID string) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[runID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *r
	return &copy, nil
}

// GetByName retrieves all runs with the given name, ordered by creation time ASC.
func (s *RunStore) GetByName(_ context.Context, runName string) ([]*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RunRecord
	for _, r := range s.data {
		if r.RunName == runName {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].RunID < result[j].RunID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

var _ storage.RunStore = (*RunStore)(nil)
