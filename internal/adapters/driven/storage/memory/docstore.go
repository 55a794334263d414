// Package memory provides in-memory implementations of the driven
// storage ports. Used by tests and as a no-persistence mode.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/docuchat/ragcore/internal/core/domain"
	"github.com/docuchat/ragcore/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	chunks    map[string]domain.DocumentChunk
	chunkSeq  []string // chunk IDs in insertion order
	watchers  []chan struct{}
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
		chunks:    make(map[string]domain.DocumentChunk),
	}
}

// SaveDocument stores or updates a document.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = copyDocument(*doc)
	return nil
}

// SaveChunks stores chunks in bulk and signals watchers.
func (s *DocumentStore) SaveChunks(_ context.Context, chunks []domain.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	s.mu.Lock()
	for _, chunk := range chunks {
		if _, ok := s.chunks[chunk.ID]; !ok {
			s.chunkSeq = append(s.chunkSeq, chunk.ID)
		}
		s.chunks[chunk.ID] = chunk
	}
	watchers := make([]chan struct{}, len(s.watchers))
	copy(watchers, s.watchers)
	s.mu.Unlock()

	for _, ch := range watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := copyDocument(doc)
	return &copied, nil
}

// GetChunks retrieves all chunks for a document in ChunkIndex order.
func (s *DocumentStore) GetChunks(_ context.Context, documentID string) ([]domain.DocumentChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.DocumentChunk
	for _, chunk := range s.chunks {
		if chunk.DocumentID == documentID {
			result = append(result, chunk)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ChunkIndex < result[j].ChunkIndex
	})
	return result, nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *DocumentStore) GetChunk(_ context.Context, id string) (*domain.DocumentChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunk, ok := s.chunks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &chunk, nil
}

// ListChunks pages through chunks in insertion order.
func (s *DocumentStore) ListChunks(_ context.Context, cursor string, limit int) ([]domain.DocumentChunk, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, "", domain.ErrInvalidInput
		}
		start = n
	}
	if limit <= 0 {
		limit = 100
	}

	var result []domain.DocumentChunk
	pos := start
	for pos < len(s.chunkSeq) && len(result) < limit {
		if chunk, ok := s.chunks[s.chunkSeq[pos]]; ok {
			result = append(result, chunk)
		}
		pos++
	}

	return result, strconv.Itoa(pos), nil
}

// CountChunks returns the number of chunks for a document.
func (s *DocumentStore) CountChunks(_ context.Context, documentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, chunk := range s.chunks {
		if chunk.DocumentID == documentID {
			count++
		}
	}
	return count, nil
}

// DeleteDocument removes the document record only.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, id)
	return nil
}

// DeleteChunks removes all chunks for a document.
func (s *DocumentStore) DeleteChunks(_ context.Context, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, chunk := range s.chunks {
		if chunk.DocumentID == documentID {
			delete(s.chunks, id)
			deleted++
		}
	}
	return deleted, nil
}

// ListDocuments returns all documents for a user.
func (s *DocumentStore) ListDocuments(_ context.Context, userID string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Document
	for id := range s.documents {
		doc := s.documents[id]
		if doc.UserID == userID {
			result = append(result, copyDocument(doc))
		}
	}
	return result, nil
}

// ListActiveDocuments returns documents active in a session.
func (s *DocumentStore) ListActiveDocuments(_ context.Context, sessionID string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Document
	for id := range s.documents {
		doc := s.documents[id]
		if doc.IsActiveIn(sessionID) {
			result = append(result, copyDocument(doc))
		}
	}
	return result, nil
}

// ListDocumentIDs returns the IDs of every document.
func (s *DocumentStore) ListDocumentIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.documents))
	for id := range s.documents {
		ids = append(ids, id)
	}
	return ids, nil
}

// ListChunkDocumentIDs returns the distinct document IDs referenced
// by chunks, including dangling references.
func (s *DocumentStore) ListChunkDocumentIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var ids []string
	for _, chunk := range s.chunks {
		if !seen[chunk.DocumentID] {
			seen[chunk.DocumentID] = true
			ids = append(ids, chunk.DocumentID)
		}
	}
	return ids, nil
}

// Counts returns total documents and chunks.
func (s *DocumentStore) Counts(_ context.Context) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents), len(s.chunks), nil
}

// copyDocument clones a document record. ActiveSessions gets its own
// backing array so callers mutating a returned document never reach
// into stored state or into other callers' snapshots.
func copyDocument(doc domain.Document) domain.Document {
	if doc.ActiveSessions != nil {
		sessions := make([]string, len(doc.ActiveSessions))
		copy(sessions, doc.ActiveSessions)
		doc.ActiveSessions = sessions
	}
	return doc
}

// Watch returns a channel signalled on chunk writes.
func (s *DocumentStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	s.watchers = append(s.watchers, ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		for i, w := range s.watchers {
			if w == ch {
				s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
	}()

	return ch, nil
}
