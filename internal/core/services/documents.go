package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docuchat/ragcore/internal/chunker"
	"github.com/docuchat/ragcore/internal/core/domain"
	"github.com/docuchat/ragcore/internal/core/ports/driven"
	"github.com/docuchat/ragcore/internal/core/ports/driving"
	"github.com/docuchat/ragcore/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentManager = (*DocumentService)(nil)

// DocumentService manages document lifecycle: upload and chunking,
// session activation, and storage statistics.
type DocumentService struct {
	docStore    driven.DocumentStore
	vectorStore driven.VectorStore
	cache       driven.EmbeddingCache
	chunker     *chunker.Chunker
}

// NewDocumentService creates a new document service. vectorStore and
// cache are only consulted for statistics and may be nil.
func NewDocumentService(
	docStore driven.DocumentStore,
	vectorStore driven.VectorStore,
	cache driven.EmbeddingCache,
	ck *chunker.Chunker,
) *DocumentService {
	if ck == nil {
		ck = chunker.New()
	}
	return &DocumentService{
		docStore:    docStore,
		vectorStore: vectorStore,
		cache:       cache,
		chunker:     ck,
	}
}

// AddDocument splits content into overlapping chunks and persists the
// document together with its chunks. Chunks are written first and the
// document record last, so a queryable document always has its chunks;
// on failure the partial write is rolled back.
func (s *DocumentService) AddDocument(
	ctx context.Context, content string, meta driving.DocumentUpload,
) (*domain.Document, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("empty document content: %w", domain.ErrInvalidInput)
	}
	if meta.UserID == "" || meta.SessionID == "" {
		return nil, fmt.Errorf("missing user or session: %w", domain.ErrInvalidInput)
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:              uuid.New().String(),
		UserID:          meta.UserID,
		Filename:        meta.Filename,
		Content:         content,
		MimeType:        meta.MimeType,
		SizeBytes:       int64(len(content)),
		SessionID:       meta.SessionID,
		ActiveSessions:  []string{meta.SessionID},
		AccessCount:     0,
		EmbeddingStatus: domain.EmbeddingStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	chunks := s.chunker.Split(doc.ID, content)
	doc.ChunkCount = len(chunks)

	logger.Debug("documents: adding %q (%d bytes, %d chunks)", meta.Filename, doc.SizeBytes, len(chunks))

	// Chunks before document: the document must never be visible
	// without its chunks.
	if err := s.docStore.SaveChunks(ctx, chunks); err != nil {
		return nil, fmt.Errorf("saving chunks: %w", err)
	}

	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		// Roll the chunks back so neither half is visible alone
		if _, rbErr := s.docStore.DeleteChunks(ctx, doc.ID); rbErr != nil {
			logger.Warn("documents: rollback of chunks for %s failed: %v", doc.ID, rbErr)
		}
		return nil, fmt.Errorf("saving document: %w", err)
	}

	return doc, nil
}

// ActivateForSession adds sessionID to the document's active sessions
// and increments its access count. Idempotent for membership: an
// already-active session is a no-op.
func (s *DocumentService) ActivateForSession(ctx context.Context, docID, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("empty session id: %w", domain.ErrInvalidInput)
	}

	doc, err := s.docStore.GetDocument(ctx, docID)
	if err != nil {
		return fmt.Errorf("getting document: %w", err)
	}

	if !doc.IsActiveIn(sessionID) {
		// Fresh slice: appending in place could write into backing
		// array capacity shared with previously returned snapshots
		sessions := make([]string, len(doc.ActiveSessions), len(doc.ActiveSessions)+1)
		copy(sessions, doc.ActiveSessions)
		doc.ActiveSessions = append(sessions, sessionID)
	}
	doc.AccessCount++
	doc.UpdatedAt = time.Now().UTC()

	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// DeactivateFromSession removes sessionID from the document's active
// sessions. The document is never deleted here; one with no remaining
// sessions becomes orphaned and awaits explicit reclamation.
func (s *DocumentService) DeactivateFromSession(ctx context.Context, docID, sessionID string) error {
	doc, err := s.docStore.GetDocument(ctx, docID)
	if err != nil {
		return fmt.Errorf("getting document: %w", err)
	}

	// Filter into a fresh slice, never in place: the loaded slice can
	// share its backing array with snapshots other readers still hold
	filtered := make([]string, 0, len(doc.ActiveSessions))
	for _, sess := range doc.ActiveSessions {
		if sess != sessionID {
			filtered = append(filtered, sess)
		}
	}
	doc.ActiveSessions = filtered
	doc.UpdatedAt = time.Now().UTC()

	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	doc, err := s.docStore.GetDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return doc, nil
}

// ListForUser returns all documents owned by a user.
func (s *DocumentService) ListForUser(ctx context.Context, userID string) ([]domain.Document, error) {
	docs, err := s.docStore.ListDocuments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return docs, nil
}

// StorageStats summarises persisted state.
func (s *DocumentService) StorageStats(ctx context.Context) (*domain.StorageStats, error) {
	docs, chunks, err := s.docStore.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}

	stats := &domain.StorageStats{
		Documents: docs,
		Chunks:    chunks,
	}

	if s.vectorStore != nil {
		embeddings, err := s.vectorStore.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("counting embeddings: %w", err)
		}
		stats.Embeddings = embeddings
	}

	ids, err := s.docStore.ListDocumentIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing document ids: %w", err)
	}
	for _, id := range ids {
		doc, err := s.docStore.GetDocument(ctx, id)
		if err != nil {
			continue
		}
		if doc.IsOrphaned() {
			stats.OrphanedDocuments++
		}
	}

	if s.cache != nil {
		stats.CacheEntries = s.cache.Len()
		stats.CacheCapacity = s.cache.Capacity()
	}

	return stats, nil
}

// Chunker exposes the configured chunker so the pipeline and tests
// share the same overlap settings.
func (s *DocumentService) Chunker() *chunker.Chunker {
	return s.chunker
}
