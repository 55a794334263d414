package memory

import (
	"context"
	"sync"

	"github.com/docuchat/ragcore/internal/core/domain"
	"github.com/docuchat/ragcore/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore is an in-memory implementation of driven.VectorStore.
type VectorStore struct {
	mu         sync.RWMutex
	embeddings map[string]domain.VectorEmbedding
	byChunk    map[string]string // chunkID -> embedding ID
}

// NewVectorStore creates a new in-memory vector store.
func NewVectorStore() *VectorStore {
	return &VectorStore{
		embeddings: make(map[string]domain.VectorEmbedding),
		byChunk:    make(map[string]string),
	}
}

// Insert stores an embedding record. A second embedding for the same
// chunk is rejected, mirroring the unique index in the SQLite schema.
func (s *VectorStore) Insert(_ context.Context, emb *domain.VectorEmbedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byChunk[emb.ChunkID]; ok {
		return domain.ErrAlreadyExists
	}
	s.embeddings[emb.ID] = *emb
	s.byChunk[emb.ChunkID] = emb.ID
	return nil
}

// ExistsForChunk reports whether an embedding exists for the chunk.
func (s *VectorStore) ExistsForChunk(_ context.Context, chunkID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byChunk[chunkID]
	return ok, nil
}

// RangeByDistanceKey returns embeddings whose key on the axis lies
// within [low, high] inclusive.
func (s *VectorStore) RangeByDistanceKey(_ context.Context, axis int, low, high string) ([]domain.VectorEmbedding, error) {
	if axis < 0 || axis >= domain.SampleCount {
		return nil, domain.ErrInvalidInput
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.VectorEmbedding
	for _, emb := range s.embeddings {
		key := emb.DistanceKeys[axis]
		if key >= low && key <= high {
			result = append(result, emb)
		}
	}
	return result, nil
}

// All returns every embedding.
func (s *VectorStore) All(_ context.Context) ([]domain.VectorEmbedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.VectorEmbedding, 0, len(s.embeddings))
	for _, emb := range s.embeddings {
		result = append(result, emb)
	}
	return result, nil
}

// DeleteForChunk removes the embedding for a chunk, if any.
func (s *VectorStore) DeleteForChunk(_ context.Context, chunkID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byChunk[chunkID]; ok {
		delete(s.embeddings, id)
		delete(s.byChunk, chunkID)
	}
	return nil
}

// DeleteForDocument removes all embeddings for a document.
func (s *VectorStore) DeleteForDocument(_ context.Context, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, emb := range s.embeddings {
		if emb.DocumentID == documentID {
			delete(s.embeddings, id)
			delete(s.byChunk, emb.ChunkID)
			deleted++
		}
	}
	return deleted, nil
}

// CountForDocument returns the number of embeddings for a document.
func (s *VectorStore) CountForDocument(_ context.Context, documentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, emb := range s.embeddings {
		if emb.DocumentID == documentID {
			count++
		}
	}
	return count, nil
}

// Count returns the total number of embeddings.
func (s *VectorStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.embeddings), nil
}

// ListDocumentIDs returns the distinct document IDs referenced by
// stored embeddings.
func (s *VectorStore) ListDocumentIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var ids []string
	for _, emb := range s.embeddings {
		if !seen[emb.DocumentID] {
			seen[emb.DocumentID] = true
			ids = append(ids, emb.DocumentID)
		}
	}
	return ids, nil
}
