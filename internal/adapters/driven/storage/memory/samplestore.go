package memory

import (
	"context"
	"sync"

	"github.com/docuchat/ragcore/internal/core/domain"
	"github.com/docuchat/ragcore/internal/core/ports/driven"
)

// Ensure SampleStore implements the interface.
var _ driven.SampleStore = (*SampleStore)(nil)

// SampleStore is an in-memory implementation of driven.SampleStore.
type SampleStore struct {
	mu  sync.RWMutex
	set *domain.SampleSet
}

// NewSampleStore creates a new in-memory sample store.
func NewSampleStore() *SampleStore {
	return &SampleStore{}
}

// Load returns the persisted sample set.
func (s *SampleStore) Load(_ context.Context) (*domain.SampleSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.set == nil {
		return nil, domain.ErrNotFound
	}
	set := *s.set
	return &set, nil
}

// Save persists a sample set. Refuses to overwrite an existing one.
func (s *SampleStore) Save(_ context.Context, set *domain.SampleSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set != nil {
		return domain.ErrSampleSetImmutable
	}
	copied := *set
	s.set = &copied
	return nil
}
