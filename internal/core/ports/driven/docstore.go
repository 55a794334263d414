package driven

import (
	"context"

	"github.com/docuchat/ragcore/internal/core/domain"
)

// DocumentStore persists documents and chunks.
// Backed by SQLite for local storage.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// SaveChunks stores chunks in bulk. Callers persist chunks
	// before marking the owning document queryable so a document is
	// never visible without its chunks.
	SaveChunks(ctx context.Context, chunks []domain.DocumentChunk) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetChunks retrieves all chunks for a document in ChunkIndex order.
	GetChunks(ctx context.Context, documentID string) ([]domain.DocumentChunk, error)

	// GetChunk retrieves a specific chunk by ID.
	GetChunk(ctx context.Context, id string) (*domain.DocumentChunk, error)

	// ListChunks pages through all chunks in stable insertion order.
	// cursor is an opaque position returned by a previous call; empty
	// starts from the beginning. Returns the chunks and the cursor for
	// the next page; an empty result means no chunks remain past the
	// cursor.
	ListChunks(ctx context.Context, cursor string, limit int) ([]domain.DocumentChunk, string, error)

	// CountChunks returns the number of persisted chunks for a document.
	CountChunks(ctx context.Context, documentID string) (int, error)

	// DeleteDocument removes the document record only. Chunks and
	// embeddings are cascaded separately by the maintenance service.
	DeleteDocument(ctx context.Context, id string) error

	// DeleteChunks removes all chunks for a document, returning the
	// number deleted.
	DeleteChunks(ctx context.Context, documentID string) (int, error)

	// ListDocuments returns all documents for a user.
	ListDocuments(ctx context.Context, userID string) ([]domain.Document, error)

	// ListActiveDocuments returns documents active in a session.
	ListActiveDocuments(ctx context.Context, sessionID string) ([]domain.Document, error)

	// ListDocumentIDs returns the IDs of every document.
	ListDocumentIDs(ctx context.Context) ([]string, error)

	// ListChunkDocumentIDs returns the distinct document IDs
	// referenced by persisted chunks, including dangling references.
	ListChunkDocumentIDs(ctx context.Context) ([]string, error)

	// Counts returns total documents and chunks.
	Counts(ctx context.Context) (docs, chunks int, err error)

	// Watch returns a channel that receives a signal whenever chunks
	// are added, closing when ctx is done. Used by the pipeline to
	// react to new work without polling the whole collection.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
