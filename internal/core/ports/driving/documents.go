package driving

import (
	"context"

	"github.com/docuchat/ragcore/internal/core/domain"
)

// DocumentUpload carries the metadata for a new document.
type DocumentUpload struct {
	// UserID is the owning user.
	UserID string

	// SessionID is the chat session performing the upload.
	SessionID string

	// Filename is the original upload filename.
	Filename string

	// MimeType is the declared content type.
	MimeType string
}

// DocumentManager exposes document lifecycle operations to the
// surrounding chat application.
type DocumentManager interface {
	// AddDocument splits content into overlapping chunks and persists
	// document plus chunks. The document becomes queryable only after
	// its chunks are stored; on failure both are rolled back.
	AddDocument(ctx context.Context, content string, meta DocumentUpload) (*domain.Document, error)

	// ActivateForSession adds sessionID to the document's active
	// sessions (idempotent) and increments its access count.
	ActivateForSession(ctx context.Context, docID, sessionID string) error

	// DeactivateFromSession removes sessionID from the document's
	// active sessions. It never deletes the document.
	DeactivateFromSession(ctx context.Context, docID, sessionID string) error

	// Get retrieves a document by ID.
	Get(ctx context.Context, id string) (*domain.Document, error)

	// ListForUser returns all documents owned by a user.
	ListForUser(ctx context.Context, userID string) ([]domain.Document, error)

	// StorageStats summarises persisted state.
	StorageStats(ctx context.Context) (*domain.StorageStats, error)
}
