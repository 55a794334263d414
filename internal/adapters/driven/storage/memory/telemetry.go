package memory

import (
	"context"
	"sync"
	"time"

	"github.com/docuchat/ragcore/internal/core/domain"
	"github.com/docuchat/ragcore/internal/core/ports/driven"
)

// Ensure TelemetryStore implements the interface.
var _ driven.TelemetryStore = (*TelemetryStore)(nil)

// TelemetryStore is an in-memory implementation of driven.TelemetryStore.
type TelemetryStore struct {
	mu      sync.Mutex
	records []domain.RetrievalTelemetry
}

// NewTelemetryStore creates a new in-memory telemetry store.
func NewTelemetryStore() *TelemetryStore {
	return &TelemetryStore{}
}

// RecordRetrieval stores one telemetry record.
func (s *TelemetryStore) RecordRetrieval(_ context.Context, rec *domain.RetrievalTelemetry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *rec)
	return nil
}

// DeleteOlderThan removes records created before the horizon.
func (s *TelemetryStore) DeleteOlderThan(_ context.Context, horizon time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[:0]
	deleted := 0
	for _, rec := range s.records {
		if rec.CreatedAt.Before(horizon) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	s.records = kept
	return deleted, nil
}

// Len returns the number of stored records. Test helper.
func (s *TelemetryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
