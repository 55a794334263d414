package memory

import (
	"context"
	"sync"
	"time"

	"github.com/docuchat/ragcore/internal/core/domain"
	"github.com/docuchat/ragcore/internal/core/ports/driven"
)

// Ensure the pipeline support stores implement their interfaces.
var (
	_ driven.CheckpointStore = (*CheckpointStore)(nil)
	_ driven.LeaderElector   = (*LeaderElector)(nil)
)

// CheckpointStore is an in-memory implementation of driven.CheckpointStore.
type CheckpointStore struct {
	mu sync.RWMutex
	cp *domain.Checkpoint
}

// NewCheckpointStore creates a new in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{}
}

// LoadCheckpoint returns the persisted checkpoint, or a zero
// checkpoint when none exists.
func (s *CheckpointStore) LoadCheckpoint(_ context.Context) (*domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cp == nil {
		return &domain.Checkpoint{}, nil
	}
	cp := copyCheckpoint(*s.cp)
	return &cp, nil
}

// SaveCheckpoint persists the checkpoint.
func (s *CheckpointStore) SaveCheckpoint(_ context.Context, cp *domain.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := copyCheckpoint(*cp)
	copied.UpdatedAt = time.Now().UTC()
	s.cp = &copied
	return nil
}

// copyCheckpoint clones the checkpoint so FailedChunks never shares a
// backing array between stored state and callers.
func copyCheckpoint(cp domain.Checkpoint) domain.Checkpoint {
	if cp.FailedChunks != nil {
		failed := make([]string, len(cp.FailedChunks))
		copy(failed, cp.FailedChunks)
		cp.FailedChunks = failed
	}
	return cp
}

// ResetCheckpoint clears the checkpoint.
func (s *CheckpointStore) ResetCheckpoint(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cp = nil
	return nil
}

// LeaderElector is an in-memory lease. Useful for tests and for
// single-process deployments where no other context competes.
type LeaderElector struct {
	mu        sync.Mutex
	holder    string
	expiresAt time.Time
}

// NewLeaderElector creates a new in-memory leader elector.
func NewLeaderElector() *LeaderElector {
	return &LeaderElector{}
}

// Acquire attempts to take the lease.
func (l *LeaderElector) Acquire(_ context.Context, holder string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if l.holder != "" && l.holder != holder && now.Before(l.expiresAt) {
		return false, nil
	}
	l.holder = holder
	l.expiresAt = now.Add(ttl)
	return true, nil
}

// Renew extends the lease if holder still owns it.
func (l *LeaderElector) Renew(_ context.Context, holder string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder != holder || time.Now().After(l.expiresAt) {
		return false, nil
	}
	l.expiresAt = time.Now().Add(ttl)
	return true, nil
}

// Release gives up the lease if holder owns it.
func (l *LeaderElector) Release(_ context.Context, holder string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder == holder {
		l.holder = ""
		l.expiresAt = time.Time{}
	}
	return nil
}
